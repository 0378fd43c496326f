package protocol

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

const (
	// nameWidth is the width of the padded motion name field.
	nameWidth = 20
	// legacyNameCut is where deployed firmware expects long names to be cut.
	legacyNameCut = 19

	// MaxFrames is the most frames a motion can carry; the count is one byte.
	MaxFrames = 255
)

// TriggerKind selects what the board does after the last frame of a motion.
type TriggerKind int

// Trigger kinds.
const (
	TriggerNone TriggerKind = iota
	TriggerLoop
	TriggerJump
)

// Trigger is the control function of a motion. Count is only used by loops.
type Trigger struct {
	Kind   TriggerKind
	Count  uint8
	Target uint8
}

// Output overrides one device's raw value in a frame.
type Output struct {
	Device string
	Value  int
}

// Frame is a single keyframe.
type Frame struct {
	TransitionTime uint16
	Outputs        []Output
}

// MotionScript is a named motion bound for a board slot.
type MotionScript struct {
	Slot    uint8
	Name    string
	Trigger Trigger
	Frames  []Frame
}

type assignment struct {
	channel int
	value   uint16
}

func (e *Encoder) install(script MotionScript) ([]byte, error) {
	if len(script.Frames) > MaxFrames {
		return nil, errors.Errorf("motion %q has %d frames, at most %d allowed", script.Name, len(script.Frames), MaxFrames)
	}
	if e.State == nil {
		return nil, errors.New("install requires a channel state")
	}

	// Resolve every device up front so a bad name leaves State untouched.
	frames := make([][]assignment, len(script.Frames))
	for i, frame := range script.Frames {
		frames[i] = make([]assignment, 0, len(frame.Outputs))
		for _, out := range frame.Outputs {
			ch, err := e.Devices.Channel(out.Device)
			if err != nil {
				return nil, errors.Wrapf(err, "frame %d", i)
			}
			frames[i] = append(frames[i], assignment{channel: ch, value: uint16(out.Value)})
		}
	}

	var b strings.Builder
	b.WriteString(headerInstall)
	fmt.Fprintf(&b, "%02x", script.Slot)
	b.WriteString(e.nameField(script.Name))
	b.WriteString(controlField(script.Trigger))
	fmt.Fprintf(&b, "%02x", len(script.Frames))

	for i, frame := range script.Frames {
		fmt.Fprintf(&b, "%04x", frame.TransitionTime)
		for _, a := range frames[i] {
			if err := e.State.Set(a.channel, a.value); err != nil {
				return nil, err
			}
		}
		for _, v := range e.State.Snapshot() {
			fmt.Fprintf(&b, "%04x", v)
		}
	}
	return []byte(b.String()), nil
}

// nameField pads short names to 20 characters. Long names are cut to 19 in
// legacy mode, which leaves the field one character short.
func (e *Encoder) nameField(name string) string {
	if len(name) < nameWidth {
		return name + strings.Repeat(" ", nameWidth-len(name))
	}
	if e.LegacyNameField {
		return name[:legacyNameCut]
	}
	return name[:nameWidth]
}

func controlField(t Trigger) string {
	switch t.Kind {
	case TriggerLoop:
		return fmt.Sprintf("01%02x%02x", t.Count, t.Target)
	case TriggerJump:
		return fmt.Sprintf("02%02x00", t.Target)
	default:
		return "000000"
	}
}
