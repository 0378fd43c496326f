package driver

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"plenctl/internal/serialport"
)

// Transport carries encoded commands to the board. Exactly one
// implementation is chosen at startup.
type Transport interface {
	// Connect finds and opens the link. It reports false, with a nil error,
	// when there is nothing to connect to.
	Connect() (bool, error)
	// Disconnect closes the link. It reports false when nothing was open.
	Disconnect() (bool, error)
	Write(b []byte) error
	IsConnected() bool
}

var (
	_ Transport = (*serialport.Manager)(nil)
	_ Transport = (*DryRun)(nil)
)

// DryRun is a Transport that never touches hardware. Every write is logged
// and, if an output is set, printed one payload per line.
type DryRun struct {
	logger    *zap.SugaredLogger
	out       io.Writer
	connected bool
}

// NewDryRun returns a disconnected DryRun transport. out may be nil.
func NewDryRun(logger *zap.SugaredLogger, out io.Writer) *DryRun {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &DryRun{logger: logger, out: out}
}

// Connect always succeeds.
func (t *DryRun) Connect() (bool, error) {
	t.connected = true
	t.logger.Info("dry run connected")
	return true, nil
}

// Disconnect implements Transport.
func (t *DryRun) Disconnect() (bool, error) {
	if !t.connected {
		return false, nil
	}
	t.connected = false
	t.logger.Info("dry run disconnected")
	return true, nil
}

// Write implements Transport.
func (t *DryRun) Write(b []byte) error {
	if !t.connected {
		return serialport.ErrNotConnected
	}
	t.logger.Debugw("write", "payload", string(b), "len", len(b))
	if t.out != nil {
		if _, err := fmt.Fprintf(t.out, "%s\n", b); err != nil {
			return err
		}
	}
	return nil
}

// IsConnected implements Transport.
func (t *DryRun) IsConnected() bool {
	return t.connected
}
