//go:build linux

package device

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ooblab/serclient/internal/interfaces"
)

// RawPort drives the tty directly through termios. Unlike the portable
// driver it puts the port in exclusive mode (TIOCEXCL), so a second opener
// on the node gets EBUSY instead of silently corrupting the packet stream.
type RawPort struct {
	fd      int
	logger  interfaces.Logger
	scratch []byte
}

var baudBits = map[int]uint32{
	1200:    unix.B1200,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	921600:  unix.B921600,
	1000000: unix.B1000000,
}

var sizeBits = map[int]uint32{
	5: unix.CS5,
	6: unix.CS6,
	7: unix.CS7,
	8: unix.CS8,
}

func openRaw(cfg Config, logger interfaces.Logger) (*RawPort, error) {
	baud, ok := baudBits[cfg.Baud]
	if !ok {
		return nil, fmt.Errorf("unsupported baud rate %d", cfg.Baud)
	}
	size, ok := sizeBits[cfg.DataBits]
	if !ok {
		return nil, fmt.Errorf("unsupported data bits %d", cfg.DataBits)
	}

	fd, err := unix.Open(cfg.Port, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}

	if err := unix.IoctlSetInt(fd, unix.TIOCEXCL, 0); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set exclusive mode on %s: %w", cfg.Port, err)
	}

	t := unix.Termios{
		Cflag:  unix.CREAD | unix.CLOCAL | baud | size,
		Ispeed: baud,
		Ospeed: baud,
	}
	switch cfg.Parity {
	case "", "none":
		t.Iflag |= unix.IGNPAR
	case "even":
		t.Cflag |= unix.PARENB
		t.Iflag |= unix.INPCK
	case "odd":
		t.Cflag |= unix.PARENB | unix.PARODD
		t.Iflag |= unix.INPCK
	default:
		unix.Close(fd)
		return nil, fmt.Errorf("unsupported parity %q", cfg.Parity)
	}
	switch cfg.StopBits {
	case 0, 1:
	case 2:
		t.Cflag |= unix.CSTOPB
	default:
		unix.Close(fd)
		return nil, fmt.Errorf("unsupported stop bits %d", cfg.StopBits)
	}

	// Non-canonical reads: return whatever arrived once VTIME deciseconds
	// pass without data.
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = timeoutDeciseconds(cfg.ReadTimeout)

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &t); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("configure %s: %w", cfg.Port, err)
	}
	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("clear nonblock on %s: %w", cfg.Port, err)
	}

	return &RawPort{fd: fd, logger: logger}, nil
}

func timeoutDeciseconds(d time.Duration) uint8 {
	ds := d.Milliseconds() / 100
	if ds < 1 {
		ds = 1
	}
	if ds > 255 {
		ds = 255
	}
	return uint8(ds)
}

// Read returns up to max bytes, empty when VTIME expired with no data.
func (p *RawPort) Read(max int) ([]byte, error) {
	if len(p.scratch) < max {
		p.scratch = make([]byte, max)
	}
	n, err := unix.Read(p.fd, p.scratch[:max])
	if err != nil {
		if err == unix.EINTR || err == unix.EAGAIN {
			return nil, nil
		}
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	out := make([]byte, n)
	copy(out, p.scratch[:n])
	return out, nil
}

// Write hands bytes to the tty and returns the accepted count.
func (p *RawPort) Write(b []byte) (int, error) {
	n, err := unix.Write(p.fd, b)
	if n < 0 {
		n = 0
	}
	return n, err
}

// Close drops exclusive mode and releases the tty.
func (p *RawPort) Close() error {
	_ = unix.IoctlSetInt(p.fd, unix.TIOCNXCL, 0)
	return unix.Close(p.fd)
}

// Compile-time interface check
var _ interfaces.SerialDevice = (*RawPort)(nil)
