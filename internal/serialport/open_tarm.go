//go:build linux || windows

package serialport

import "github.com/tarm/serial"

// TarmOpener opens ports with github.com/tarm/serial.
type TarmOpener struct{}

// Open implements Opener.
func (TarmOpener) Open(cfg OpenConfig) (Port, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Path,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func systemOpener() Opener { return TarmOpener{} }
