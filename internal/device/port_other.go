//go:build !linux

package device

import (
	"fmt"

	"github.com/ooblab/serclient/internal/interfaces"
)

func openRaw(cfg Config, logger interfaces.Logger) (interfaces.SerialDevice, error) {
	return nil, fmt.Errorf("raw serial driver is only available on linux")
}
