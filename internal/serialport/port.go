// Package serialport finds, opens and owns the serial link to the servo board.
package serialport

import (
	"io"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial/enumerator"
)

// PortInfo describes an enumerated serial port.
type PortInfo struct {
	Path        string
	Description string
	IsUSB       bool
	VID         string
	PID         string
}

// A Lister enumerates the serial ports present on the host.
type Lister interface {
	List() ([]PortInfo, error)
}

// Port is an open serial port.
type Port interface {
	io.Writer
	Flush() error
	Close() error
}

// OpenConfig is what an Opener needs to open one port.
type OpenConfig struct {
	Path        string
	Baud        int
	ReadTimeout time.Duration
}

// An Opener opens serial ports.
type Opener interface {
	Open(cfg OpenConfig) (Port, error)
}

// Config holds link settings.
type Config struct {
	// Baud rate of the board link (default: 2000000)
	Baud int

	// Read timeout on the open port (default: 1 second)
	ReadTimeout time.Duration

	// Substring of the USB product description identifying the board
	Match string

	// When Probe is set and no port matches, ports whose path starts with
	// one of ProbePrefixes are opened in turn and the first that opens is used.
	Probe         bool
	ProbePrefixes []string
}

// DefaultConfig returns a Config with default values. Probing is enabled on
// macOS, where older USB stacks do not report a product description.
func DefaultConfig() Config {
	return Config{
		Baud:        2000000,
		ReadTimeout: time.Second,
		Match:       "Arduino Micro",
		Probe:       runtime.GOOS == "darwin",
		ProbePrefixes: []string{
			"/dev/tty.usbmodem",
			"/dev/tty.usbserial",
			"/dev/cu.usbmodem",
			"/dev/cu.usbserial",
		},
	}
}

// probeBaud is the rate used for liveness probes; the port is closed again
// straight away so the value does not reach the board.
const probeBaud = 9600

// SystemLister enumerates ports through the OS USB metadata.
type SystemLister struct{}

// List implements Lister.
func (SystemLister) List() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate serial ports")
	}
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Path:        d.Name,
			Description: d.Product,
			IsUSB:       d.IsUSB,
			VID:         d.VID,
			PID:         d.PID,
		})
	}
	return ports, nil
}
