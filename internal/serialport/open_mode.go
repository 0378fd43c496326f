package serialport

import (
	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.uber.org/multierr"
)

// ModeOpener opens ports with go.bug.st/serial, which can set any baud rate
// the driver accepts (IOSSIOSPEED on macOS).
type ModeOpener struct {
	open func(path string, mode *serial.Mode) (serial.Port, error)
}

// Open implements Opener.
func (o ModeOpener) Open(cfg OpenConfig) (Port, error) {
	open := o.open
	if open == nil {
		open = serial.Open
	}
	p, err := open(cfg.Path, &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if cfg.ReadTimeout > 0 {
		if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
			_ = p.Close()
			return nil, errors.Wrap(err, "failed to set read timeout")
		}
	}
	return modePort{p}, nil
}

type modePort struct {
	serial.Port
}

// Flush discards both directions of the port's buffers.
func (p modePort) Flush() error {
	return multierr.Combine(p.ResetInputBuffer(), p.ResetOutputBuffer())
}
