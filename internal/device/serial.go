package device

import (
	"fmt"
	"io"

	goserial "github.com/tarm/serial"

	"github.com/ooblab/serclient/internal/interfaces"
)

// Port adapts tarm/serial to the engine's device contract.
type Port struct {
	port    *goserial.Port
	logger  interfaces.Logger
	scratch []byte
}

func openSerial(cfg Config, logger interfaces.Logger) (*Port, error) {
	parity, err := mapParity(cfg.Parity)
	if err != nil {
		return nil, err
	}
	stop, err := mapStopBits(cfg.StopBits)
	if err != nil {
		return nil, err
	}
	if cfg.DataBits < 5 || cfg.DataBits > 8 {
		return nil, fmt.Errorf("unsupported data bits %d", cfg.DataBits)
	}

	p, err := goserial.OpenPort(&goserial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		Size:        byte(cfg.DataBits),
		Parity:      parity,
		StopBits:    stop,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	return &Port{port: p, logger: logger}, nil
}

func mapParity(s string) (goserial.Parity, error) {
	switch s {
	case "", "none":
		return goserial.ParityNone, nil
	case "even":
		return goserial.ParityEven, nil
	case "odd":
		return goserial.ParityOdd, nil
	}
	return goserial.ParityNone, fmt.Errorf("unsupported parity %q", s)
}

func mapStopBits(n int) (goserial.StopBits, error) {
	switch n {
	case 0, 1:
		return goserial.Stop1, nil
	case 2:
		return goserial.Stop2, nil
	}
	return goserial.Stop1, fmt.Errorf("unsupported stop bits %d", n)
}

// Read returns up to max bytes, empty when the read timeout expired.
func (p *Port) Read(max int) ([]byte, error) {
	if len(p.scratch) < max {
		p.scratch = make([]byte, max)
	}
	n, err := p.port.Read(p.scratch[:max])
	if err != nil {
		// tarm/serial surfaces a read timeout as io.EOF with no data.
		if err == io.EOF && n == 0 {
			return nil, nil
		}
		return nil, err
	}
	out := make([]byte, n)
	copy(out, p.scratch[:n])
	return out, nil
}

// Write hands bytes to the port and returns the accepted count.
func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close releases the port.
func (p *Port) Close() error {
	return p.port.Close()
}

// Compile-time interface check
var _ interfaces.SerialDevice = (*Port)(nil)
