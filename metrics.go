package serclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ooblab/serclient/internal/interfaces"
)

// PrometheusObserver implements the Observer interface with Prometheus
// collectors. All methods are safe for concurrent use; executors call the
// command hooks from their own goroutines.
type PrometheusObserver struct {
	packetsIn       *prometheus.CounterVec
	packetsOut      *prometheus.CounterVec
	bytesIn         prometheus.Counter
	bytesOut        prometheus.Counter
	resyncBytes     prometheus.Counter
	logicTimeouts   prometheus.Counter
	shortWrites     prometheus.Counter
	commandsStarted *prometheus.CounterVec
	commandErrors   prometheus.Counter
	commandSeconds  prometheus.Histogram
	queueDepth      *prometheus.GaugeVec
}

// NewPrometheusObserver registers the agent's collectors with reg and
// returns the observer.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	return &PrometheusObserver{
		packetsIn: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "serclient_packets_received_total",
				Help: "Logical packets received, by command type",
			},
			[]string{"command"},
		),
		packetsOut: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "serclient_packets_sent_total",
				Help: "Packets transmitted, by command type",
			},
			[]string{"command"},
		),
		bytesIn: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "serclient_bytes_received_total",
				Help: "Bytes of accepted logical packets",
			},
		),
		bytesOut: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "serclient_bytes_sent_total",
				Help: "Bytes written to the serial line",
			},
		),
		resyncBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "serclient_resync_bytes_discarded_total",
				Help: "Garbage bytes discarded while hunting for a start sentinel",
			},
		),
		logicTimeouts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "serclient_logic_timeouts_total",
				Help: "Headers whose body never completed within the logic timeout",
			},
		),
		shortWrites: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "serclient_short_writes_total",
				Help: "Device writes that accepted fewer bytes than offered",
			},
		),
		commandsStarted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "serclient_commands_started_total",
				Help: "Command executions spawned, by blocking class",
			},
			[]string{"blocking"},
		),
		commandErrors: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "serclient_command_errors_total",
				Help: "Command executions that finished with an error outcome",
			},
		),
		commandSeconds: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "serclient_command_duration_seconds",
				Help:    "Wall-clock duration of command executions",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),
		queueDepth: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "serclient_queue_depth",
				Help: "Engine queue depths, by queue",
			},
			[]string{"queue"}, // "pending", "inflight"
		),
	}
}

func (o *PrometheusObserver) ObservePacketIn(command string, bytes int) {
	o.packetsIn.WithLabelValues(command).Inc()
	o.bytesIn.Add(float64(bytes))
}

func (o *PrometheusObserver) ObservePacketOut(command string, bytes int) {
	o.packetsOut.WithLabelValues(command).Inc()
	o.bytesOut.Add(float64(bytes))
}

func (o *PrometheusObserver) ObserveResync(discarded int) {
	o.resyncBytes.Add(float64(discarded))
}

func (o *PrometheusObserver) ObserveLogicTimeout() {
	o.logicTimeouts.Inc()
}

func (o *PrometheusObserver) ObserveShortWrite() {
	o.shortWrites.Inc()
}

func (o *PrometheusObserver) ObserveCommandStart(blocking bool) {
	label := "false"
	if blocking {
		label = "true"
	}
	o.commandsStarted.WithLabelValues(label).Inc()
}

func (o *PrometheusObserver) ObserveCommandDone(latencyNs uint64, success bool) {
	o.commandSeconds.Observe(float64(latencyNs) / 1e9)
	if !success {
		o.commandErrors.Inc()
	}
}

func (o *PrometheusObserver) ObserveQueueDepth(pending, inflight int) {
	o.queueDepth.WithLabelValues("pending").Set(float64(pending))
	o.queueDepth.WithLabelValues("inflight").Set(float64(inflight))
}

// NoOpObserver is a no-op implementation of Observer
type NoOpObserver struct{}

func (NoOpObserver) ObservePacketIn(string, int)      {}
func (NoOpObserver) ObservePacketOut(string, int)     {}
func (NoOpObserver) ObserveResync(int)                {}
func (NoOpObserver) ObserveLogicTimeout()             {}
func (NoOpObserver) ObserveShortWrite()               {}
func (NoOpObserver) ObserveCommandStart(bool)         {}
func (NoOpObserver) ObserveCommandDone(uint64, bool)  {}
func (NoOpObserver) ObserveQueueDepth(int, int)       {}

// Compile-time interface checks
var (
	_ interfaces.Observer = (*PrometheusObserver)(nil)
	_ interfaces.Observer = (*NoOpObserver)(nil)
)
