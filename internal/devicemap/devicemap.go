// Package devicemap binds human-readable device names to servo board channels.
package devicemap

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Channels is the number of addressable outputs on the board.
const Channels = 24

// ErrUnknownDevice is returned when a device name has no channel binding.
var ErrUnknownDevice = errors.New("unknown device")

// Map is a read-only name to channel binding. The zero value is an empty map.
type Map struct {
	channels map[string]int
}

// New validates the given bindings and returns a Map holding a private copy of them.
func New(bindings map[string]int) (*Map, error) {
	channels := make(map[string]int, len(bindings))
	for name, ch := range bindings {
		if name == "" {
			return nil, errors.New("device name must not be empty")
		}
		if ch < 0 || ch >= Channels {
			return nil, errors.Errorf("device %q: channel %d out of range [0, %d)", name, ch, Channels)
		}
		channels[name] = ch
	}
	return &Map{channels: channels}, nil
}

// Parse decodes a device map document. JSON documents (the historical
// device_map.json) and YAML documents are both accepted.
func Parse(data []byte) (*Map, error) {
	var bindings map[string]int
	if err := yaml.Unmarshal(data, &bindings); err != nil {
		return nil, errors.Wrap(err, "failed to parse device map")
	}
	return New(bindings)
}

// Load reads and parses the device map at path.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read device map %q", path)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "device map %q", path)
	}
	return m, nil
}

// Channel returns the channel bound to device.
func (m *Map) Channel(device string) (int, error) {
	ch, ok := m.channels[device]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownDevice, "%q", device)
	}
	return ch, nil
}

// Len returns the number of bound devices.
func (m *Map) Len() int {
	return len(m.channels)
}

// Names returns the bound device names ordered by channel, then name.
func (m *Map) Names() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := m.channels[names[i]], m.channels[names[j]]
		if ci != cj {
			return ci < cj
		}
		return names[i] < names[j]
	})
	return names
}
