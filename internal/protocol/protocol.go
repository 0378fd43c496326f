// Package protocol encodes commands for the PLEN servo board.
//
// Every command is a short ASCII string: a three character header followed
// by fixed-width lowercase hex fields. Set commands carry a channel (2 hex)
// and a 12-bit value (3 hex); play carries a slot; stop carries nothing.
// Motion installs are long and are split into blocks by Chunk before being
// written to the board.
package protocol

import (
	"fmt"

	"github.com/pkg/errors"

	"plenctl/internal/devicemap"
)

// Command headers.
const (
	headerAbsolute = "$AN"
	headerDelta    = "$AD"
	headerMin      = ">MI"
	headerMax      = ">MA"
	headerHome     = ">HO"
	headerPlay     = "$PM"
	headerStop     = "$SM"
	headerInstall  = ">IN"
)

// valueMask keeps the 12 bits the board accepts for a set command.
const valueMask = 0xFFF

// A Command is one logical request to the board.
type Command interface {
	header() string
}

// SetAbsolute moves a device to an absolute position.
type SetAbsolute struct {
	Device string
	Value  int
}

// SetDelta offsets a device relative to its home position.
type SetDelta struct {
	Device string
	Value  int
}

// SetMin stores the lower angle limit of a device.
type SetMin struct {
	Device string
	Value  int
}

// SetMax stores the upper angle limit of a device.
type SetMax struct {
	Device string
	Value  int
}

// SetHome stores the home position of a device.
type SetHome struct {
	Device string
	Value  int
}

// Play starts the motion stored in Slot.
type Play struct {
	Slot uint8
}

// Stop halts the running motion.
type Stop struct{}

// InstallMotion writes Script into its slot on the board.
type InstallMotion struct {
	Script MotionScript
}

func (SetAbsolute) header() string   { return headerAbsolute }
func (SetDelta) header() string      { return headerDelta }
func (SetMin) header() string        { return headerMin }
func (SetMax) header() string        { return headerMax }
func (SetHome) header() string       { return headerHome }
func (Play) header() string          { return headerPlay }
func (Stop) header() string          { return headerStop }
func (InstallMotion) header() string { return headerInstall }

type channelCommand interface {
	Command
	target() (string, int)
}

func (c SetAbsolute) target() (string, int) { return c.Device, c.Value }
func (c SetDelta) target() (string, int)    { return c.Device, c.Value }
func (c SetMin) target() (string, int)      { return c.Device, c.Value }
func (c SetMax) target() (string, int)      { return c.Device, c.Value }
func (c SetHome) target() (string, int)     { return c.Device, c.Value }

// Value reduces v to 16 bits, masks it to 12 and renders three hex digits.
func Value(v int) string {
	return fmt.Sprintf("%03x", uint16(v)&valueMask)
}

// Encoder turns commands into wire payloads. Installs overwrite channels in
// State as frames are serialized; nothing else touches it.
type Encoder struct {
	Devices *devicemap.Map
	State   *ChannelState

	// LegacyNameField truncates long motion names to 19 characters
	// rather than 20, as deployed firmware expects.
	LegacyNameField bool
}

// Encode encodes cmd using the legacy name field rules.
func Encode(cmd Command, devices *devicemap.Map, state *ChannelState) ([]byte, error) {
	e := Encoder{Devices: devices, State: state, LegacyNameField: true}
	return e.Encode(cmd)
}

// Encode returns the wire payload for cmd.
func (e *Encoder) Encode(cmd Command) ([]byte, error) {
	switch c := cmd.(type) {
	case channelCommand:
		device, value := c.target()
		ch, err := e.Devices.Channel(device)
		if err != nil {
			return nil, err
		}
		return []byte(fmt.Sprintf("%s%02x%s", c.header(), ch, Value(value))), nil
	case Play:
		return []byte(fmt.Sprintf("%s%02x", c.header(), c.Slot)), nil
	case Stop:
		return []byte(c.header()), nil
	case InstallMotion:
		return e.install(c.Script)
	case nil:
		return nil, errors.New("nil command")
	default:
		return nil, errors.Errorf("unsupported command %T", cmd)
	}
}
