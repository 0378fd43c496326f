package protocol

import (
	"github.com/pkg/errors"

	"plenctl/internal/devicemap"
)

// ChannelState holds the last raw value commanded for every channel by a
// motion install. It starts zeroed and is never reset, so channels a frame
// does not mention keep whatever an earlier frame or install left there.
type ChannelState struct {
	values [devicemap.Channels]uint16
}

// NewChannelState returns a zeroed state.
func NewChannelState() *ChannelState {
	return &ChannelState{}
}

// Set stores v for channel ch.
func (s *ChannelState) Set(ch int, v uint16) error {
	if ch < 0 || ch >= devicemap.Channels {
		return errors.Errorf("channel %d out of range", ch)
	}
	s.values[ch] = v
	return nil
}

// Snapshot returns a copy of all channel values.
func (s *ChannelState) Snapshot() [devicemap.Channels]uint16 {
	return s.values
}
