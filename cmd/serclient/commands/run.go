package commands

import (
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ooblab/serclient"
	"github.com/ooblab/serclient/internal/device"
	"github.com/ooblab/serclient/internal/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent against the configured serial port",
	RunE:  runAgent,
}

func init() {
	runCmd.Flags().String("port", "", "serial port (overrides config)")
	runCmd.Flags().Bool("debug", false, "enable debug logging")
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Serial.Port = port
	}

	logConfig := logging.DefaultConfig()
	logConfig.Level = logging.ParseLevel(cfg.Logging.Level)
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	serclient.Version = buildVersion

	options := &serclient.Options{Logger: logger}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		options.Observer = serclient.NewPrometheusObserver(reg)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			logger.Infof("serving metrics on %s", cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("metrics server failed: %v", err)
			}
		}()
		defer srv.Close()
	}

	params := serclient.Params{
		Serial: device.Config{
			Driver:      device.Driver(cfg.Serial.Driver),
			Port:        cfg.Serial.Port,
			Baud:        cfg.Serial.Baud,
			DataBits:    cfg.Serial.DataBits,
			Parity:      cfg.Serial.Parity,
			StopBits:    cfg.Serial.StopBits,
			ReadTimeout: time.Second,
		},
		CommandTimeout: cfg.CommandTimeout,
		RootDir:        cfg.RootDir,
		PoolMaxBytes:   cfg.PoolMaxBytes,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serclient.Run(ctx, params, options)
}
