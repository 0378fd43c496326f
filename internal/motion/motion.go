// Package motion decodes motion install documents.
//
// A document is the JSON body the control server has always accepted for
// installs:
//
//	{
//	  "slot": 3,
//	  "name": "wave",
//	  "codes": [{"func": "loop", "args": [0, 2]}],
//	  "frames": [
//	    {"transition_time_ms": 300, "outputs": [{"device": "head", "value": 120}]}
//	  ]
//	}
package motion

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"plenctl/internal/protocol"
)

// Control function names understood in a document's codes list.
const (
	FuncLoop = "loop"
	FuncJump = "jump"
)

// ErrInvalidDocument is returned for documents that cannot be encoded.
var ErrInvalidDocument = errors.New("invalid motion document")

// Code is a control function entry.
type Code struct {
	Func string `json:"func"`
	Args []int  `json:"args"`
}

// Output is a device override within a frame.
type Output struct {
	Device string `json:"device"`
	Value  int    `json:"value"`
}

// Frame is a keyframe entry.
type Frame struct {
	TransitionTimeMs int      `json:"transition_time_ms"`
	Outputs          []Output `json:"outputs"`
}

// Document is a decoded install document.
type Document struct {
	Slot   int     `json:"slot"`
	Name   string  `json:"name"`
	Codes  []Code  `json:"codes"`
	Frames []Frame `json:"frames"`
}

// Parse decodes a JSON document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(ErrInvalidDocument, err.Error())
	}
	return &doc, nil
}

// Load reads and decodes the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read motion %q", path)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "motion %q", path)
	}
	return doc, nil
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidDocument, format, args...)
}

func byteRange(field string, v int) (uint8, error) {
	if v < 0 || v > 0xFF {
		return 0, invalid("%s %d out of range [0, 255]", field, v)
	}
	return uint8(v), nil
}

// Script validates the document and converts it for encoding. Device names
// are not checked here; the encoder resolves them against the device map.
func (d *Document) Script() (protocol.MotionScript, error) {
	var script protocol.MotionScript

	slot, err := byteRange("slot", d.Slot)
	if err != nil {
		return script, err
	}
	for i := 0; i < len(d.Name); i++ {
		if d.Name[i] > 0x7E || d.Name[i] < 0x20 {
			return script, invalid("name %q must be printable ASCII", d.Name)
		}
	}
	if len(d.Frames) > protocol.MaxFrames {
		return script, invalid("%d frames, at most %d allowed", len(d.Frames), protocol.MaxFrames)
	}
	trigger, err := TriggerOf(d.Codes)
	if err != nil {
		return script, err
	}

	frames := make([]protocol.Frame, len(d.Frames))
	for i, f := range d.Frames {
		if f.TransitionTimeMs < 0 || f.TransitionTimeMs > 0xFFFF {
			return script, invalid("frame %d: transition time %d out of range [0, 65535]", i, f.TransitionTimeMs)
		}
		outputs := make([]protocol.Output, len(f.Outputs))
		for j, o := range f.Outputs {
			outputs[j] = protocol.Output{Device: o.Device, Value: o.Value}
		}
		frames[i] = protocol.Frame{TransitionTime: uint16(f.TransitionTimeMs), Outputs: outputs}
	}

	script = protocol.MotionScript{
		Slot:    slot,
		Name:    d.Name,
		Trigger: trigger,
		Frames:  frames,
	}
	return script, nil
}

// TriggerOf returns the trigger named by the first loop or jump entry in
// codes. Entries after it, and entries with other function names, are
// ignored.
func TriggerOf(codes []Code) (protocol.Trigger, error) {
	for i, code := range codes {
		switch code.Func {
		case FuncLoop:
			if len(code.Args) < 2 {
				return protocol.Trigger{}, invalid("code %d: loop needs 2 args, got %d", i, len(code.Args))
			}
			count, err := byteRange("loop count", code.Args[0])
			if err != nil {
				return protocol.Trigger{}, err
			}
			target, err := byteRange("loop target", code.Args[1])
			if err != nil {
				return protocol.Trigger{}, err
			}
			return protocol.Trigger{Kind: protocol.TriggerLoop, Count: count, Target: target}, nil
		case FuncJump:
			if len(code.Args) < 1 {
				return protocol.Trigger{}, invalid("code %d: jump needs 1 arg", i)
			}
			target, err := byteRange("jump target", code.Args[0])
			if err != nil {
				return protocol.Trigger{}, err
			}
			return protocol.Trigger{Kind: protocol.TriggerJump, Target: target}, nil
		}
	}
	return protocol.Trigger{Kind: protocol.TriggerNone}, nil
}
