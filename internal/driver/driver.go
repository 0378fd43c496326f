// Package driver exposes the servo board's operations over a Transport.
//
// Every operation reports success as a bool. A false result with a nil
// error means the operation was refused because no link is open, or, for
// Connect, that no board was found. A non-nil error is either a caller
// mistake (an unknown device, an invalid motion) or a transport failure; in
// the latter case the link has already been dropped and the caller must
// Connect again.
//
// Set position commands (Apply, ApplyDiff) and every install block are
// followed by a pacing delay so the firmware can drain its input. Limit,
// home, play and stop commands are written without one.
package driver

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"plenctl/internal/devicemap"
	"plenctl/internal/motion"
	"plenctl/internal/protocol"
)

// DefaultPacing is the delay after each paced write.
const DefaultPacing = 10 * time.Millisecond

// Driver is the board's operation set. Operations are serialized; a
// Driver may be shared between goroutines.
type Driver struct {
	mu sync.Mutex

	transport  Transport
	state      *protocol.ChannelState
	encoder    protocol.Encoder
	clock      clock.Clock
	pacing     time.Duration
	legacyTail bool
	logger     *zap.SugaredLogger
}

// Option configures a Driver.
type Option func(*Driver)

// WithClock sets the clock used for pacing sleeps.
func WithClock(c clock.Clock) Option {
	return func(d *Driver) { d.clock = c }
}

// WithPacing sets the delay after each paced write.
func WithPacing(p time.Duration) Option {
	return func(d *Driver) { d.pacing = p }
}

// WithLegacyNameField controls whether long motion names are cut to 19
// characters (true, the default) or 20.
func WithLegacyNameField(legacy bool) Option {
	return func(d *Driver) { d.encoder.LegacyNameField = legacy }
}

// WithLegacyTailResend controls whether an install payload whose length is
// a multiple of the block size is sent a second time as its tail block
// (true, the default).
func WithLegacyTailResend(legacy bool) Option {
	return func(d *Driver) { d.legacyTail = legacy }
}

// WithLogger sets the driver's logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(d *Driver) { d.logger = l }
}

// New returns a Driver for devices over transport, with a zeroed channel
// state owned by the Driver.
func New(devices *devicemap.Map, transport Transport, opts ...Option) *Driver {
	state := protocol.NewChannelState()
	d := &Driver{
		transport: transport,
		state:     state,
		encoder: protocol.Encoder{
			Devices:         devices,
			State:           state,
			LegacyNameField: true,
		},
		clock:      clock.New(),
		pacing:     DefaultPacing,
		legacyTail: true,
		logger:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Apply moves device to the absolute position value.
func (d *Driver) Apply(device string, value int) (bool, error) {
	return d.send(protocol.SetAbsolute{Device: device, Value: value}, true)
}

// ApplyDiff moves device to value relative to its home position.
func (d *Driver) ApplyDiff(device string, value int) (bool, error) {
	return d.send(protocol.SetDelta{Device: device, Value: value}, true)
}

// SetMin stores the lower limit of device.
func (d *Driver) SetMin(device string, value int) (bool, error) {
	return d.send(protocol.SetMin{Device: device, Value: value}, false)
}

// SetMax stores the upper limit of device.
func (d *Driver) SetMax(device string, value int) (bool, error) {
	return d.send(protocol.SetMax{Device: device, Value: value}, false)
}

// SetHome stores the home position of device.
func (d *Driver) SetHome(device string, value int) (bool, error) {
	return d.send(protocol.SetHome{Device: device, Value: value}, false)
}

// Play starts the motion in slot.
func (d *Driver) Play(slot int) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.transport.IsConnected() {
		return false, nil
	}
	if slot < 0 || slot > 0xFF {
		return false, errors.Errorf("slot %d out of range [0, 255]", slot)
	}
	return d.write(protocol.Play{Slot: uint8(slot)}, false)
}

// Stop halts the running motion.
func (d *Driver) Stop() (bool, error) {
	return d.send(protocol.Stop{}, false)
}

// Install writes script to its slot, one paced block at a time. Frames
// update the driver's channel state, which carries over to later installs.
func (d *Driver) Install(script protocol.MotionScript) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.transport.IsConnected() {
		return false, nil
	}
	return d.install(script)
}

// InstallDocument validates doc and installs it.
func (d *Driver) InstallDocument(doc *motion.Document) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.transport.IsConnected() {
		return false, nil
	}
	script, err := doc.Script()
	if err != nil {
		return false, err
	}
	return d.install(script)
}

func (d *Driver) install(script protocol.MotionScript) (bool, error) {
	payload, err := d.encoder.Encode(protocol.InstallMotion{Script: script})
	if err != nil {
		return false, err
	}
	chunks := protocol.Chunk(payload, d.legacyTail)
	d.logger.Debugw("installing motion", "slot", script.Slot, "name", script.Name,
		"frames", len(script.Frames), "bytes", len(payload), "blocks", len(chunks))

	for _, chunk := range chunks {
		if err := d.transport.Write(chunk); err != nil {
			return false, d.dropLink(err)
		}
		d.clock.Sleep(d.pacing)
	}
	return true, nil
}

// Connect opens the link to the board, replacing any open link.
func (d *Driver) Connect() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.transport.Connect()
}

// Disconnect closes the link.
func (d *Driver) Disconnect() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.transport.Disconnect()
}

// IsConnected reports whether the link is open.
func (d *Driver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.transport.IsConnected()
}

// State returns a copy of the channel values last written by an install.
func (d *Driver) State() [devicemap.Channels]uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state.Snapshot()
}

func (d *Driver) send(cmd protocol.Command, paced bool) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.transport.IsConnected() {
		return false, nil
	}
	return d.write(cmd, paced)
}

func (d *Driver) write(cmd protocol.Command, paced bool) (bool, error) {
	payload, err := d.encoder.Encode(cmd)
	if err != nil {
		return false, err
	}
	if err := d.transport.Write(payload); err != nil {
		return false, d.dropLink(err)
	}
	if paced {
		d.clock.Sleep(d.pacing)
	}
	return true, nil
}

// dropLink makes sure a transport that failed a write is left closed.
func (d *Driver) dropLink(err error) error {
	d.logger.Warnw("transport write failed", "error", err)
	if d.transport.IsConnected() {
		if _, cerr := d.transport.Disconnect(); cerr != nil {
			d.logger.Debugw("closing failed transport", "error", cerr)
		}
	}
	return err
}
