package protocol

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plenctl/internal/devicemap"
)

func testDevices(t *testing.T) *devicemap.Map {
	t.Helper()
	m, err := devicemap.New(map[string]int{"head": 0, "neck": 1, "right_foot_roll": 23})
	require.NoError(t, err)
	return m
}

func TestValue(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "000"},
		{300, "12c"},
		{4095, "fff"},
		{4096, "000"},
		{4097, "001"},
		{65535, "fff"},
		{65536, "000"},
		{-1, "fff"},
		{-4096, "000"},
		{-4097, "fff"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, Value(tt.in))
		})
	}
}

func TestValueMatchesModularReduction(t *testing.T) {
	for v := -140000; v <= 140000; v += 37 {
		reduced := (v%65536 + 65536) % 65536 % 4096
		require.Equal(t, fmt.Sprintf("%03x", reduced), Value(v), "v=%d", v)
	}
}

func TestEncodeSetCommands(t *testing.T) {
	devices := testDevices(t)
	state := NewChannelState()

	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"absolute", SetAbsolute{Device: "head", Value: 4097}, "$AN00001"},
		{"delta", SetDelta{Device: "neck", Value: -1}, "$AD01fff"},
		{"min", SetMin{Device: "right_foot_roll", Value: 300}, ">MI1712c"},
		{"max", SetMax{Device: "head", Value: 4095}, ">MA00fff"},
		{"home", SetHome{Device: "neck", Value: 1000}, ">HO013e8"},
		{"play", Play{Slot: 10}, "$PM0a"},
		{"stop", Stop{}, "$SM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.cmd, devices, state)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
	assert.Equal(t, [devicemap.Channels]uint16{}, state.Snapshot())
}

func TestEncodeUnknownDevice(t *testing.T) {
	_, err := Encode(SetAbsolute{Device: "tail", Value: 1}, testDevices(t), NewChannelState())
	require.Error(t, err)
	assert.True(t, errors.Is(err, devicemap.ErrUnknownDevice))
}

func TestEncodeNilCommand(t *testing.T) {
	_, err := Encode(nil, testDevices(t), NewChannelState())
	assert.Error(t, err)
}

func zeros(n int) string {
	return strings.Repeat("0000", n)
}

func TestEncodeInstall(t *testing.T) {
	devices := testDevices(t)
	state := NewChannelState()

	script := MotionScript{
		Slot:    3,
		Name:    "wave",
		Trigger: Trigger{Kind: TriggerLoop, Count: 0, Target: 2},
		Frames: []Frame{
			{TransitionTime: 300, Outputs: []Output{{Device: "head", Value: 120}}},
			{TransitionTime: 100, Outputs: []Output{{Device: "neck", Value: -1}}},
		},
	}
	got, err := Encode(InstallMotion{Script: script}, devices, state)
	require.NoError(t, err)

	want := ">IN03" + "wave                " + "010002" + "02" +
		"012c" + "0078" + zeros(23) +
		"0064" + "0078" + "ffff" + zeros(22)
	assert.Equal(t, want, string(got))
	assert.Len(t, got, 233)

	assert.Equal(t, uint16(120), state.Snapshot()[0])
	assert.Equal(t, uint16(0xffff), state.Snapshot()[1])
}

func TestEncodeInstallStatePersistsAcrossInstalls(t *testing.T) {
	devices := testDevices(t)
	state := NewChannelState()

	first := MotionScript{Slot: 0, Name: "a", Frames: []Frame{
		{TransitionTime: 1, Outputs: []Output{{Device: "head", Value: 5}, {Device: "right_foot_roll", Value: 6}}},
	}}
	_, err := Encode(InstallMotion{Script: first}, devices, state)
	require.NoError(t, err)

	second := MotionScript{Slot: 1, Name: "b", Frames: []Frame{
		{TransitionTime: 2, Outputs: []Output{{Device: "neck", Value: 7}}},
	}}
	got, err := Encode(InstallMotion{Script: second}, devices, state)
	require.NoError(t, err)

	want := ">IN01" + "b                   " + "000000" + "01" +
		"0002" + "0005" + "0007" + zeros(21) + "0006"
	assert.Equal(t, want, string(got))
}

func TestEncodeInstallUnknownDeviceLeavesState(t *testing.T) {
	devices := testDevices(t)
	state := NewChannelState()
	require.NoError(t, state.Set(0, 7))

	script := MotionScript{Name: "bad", Frames: []Frame{
		{Outputs: []Output{{Device: "head", Value: 9}}},
		{Outputs: []Output{{Device: "tail", Value: 9}}},
	}}
	_, err := Encode(InstallMotion{Script: script}, devices, state)
	require.Error(t, err)
	assert.True(t, errors.Is(err, devicemap.ErrUnknownDevice))
	assert.Equal(t, uint16(7), state.Snapshot()[0])
}

func TestEncodeInstallTooManyFrames(t *testing.T) {
	script := MotionScript{Name: "long", Frames: make([]Frame, MaxFrames+1)}
	_, err := Encode(InstallMotion{Script: script}, testDevices(t), NewChannelState())
	assert.Error(t, err)
}

func TestEncodeInstallMaxFrames(t *testing.T) {
	script := MotionScript{Name: "long", Frames: make([]Frame, MaxFrames)}
	got, err := Encode(InstallMotion{Script: script}, testDevices(t), NewChannelState())
	require.NoError(t, err)
	assert.Equal(t, "ff", string(got[31:33]))
}

func TestNameField(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		legacy bool
		want   string
	}{
		{"empty", "", true, strings.Repeat(" ", 20)},
		{"short", "walk", true, "walk" + strings.Repeat(" ", 16)},
		{"nineteen", strings.Repeat("x", 19), true, strings.Repeat("x", 19) + " "},
		{"twenty legacy", strings.Repeat("y", 20), true, strings.Repeat("y", 19)},
		{"long legacy", "abcdefghijklmnopqrstuvwxyz", true, "abcdefghijklmnopqrs"},
		{"twenty fixed", strings.Repeat("y", 20), false, strings.Repeat("y", 20)},
		{"long fixed", "abcdefghijklmnopqrstuvwxyz", false, "abcdefghijklmnopqrst"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Encoder{LegacyNameField: tt.legacy}
			assert.Equal(t, tt.want, e.nameField(tt.in))
		})
	}
}

func TestInstallNameFieldWidth(t *testing.T) {
	devices := testDevices(t)
	for n := 0; n <= 30; n++ {
		name := strings.Repeat("n", n)
		got, err := Encode(InstallMotion{Script: MotionScript{Name: name}}, devices, NewChannelState())
		require.NoError(t, err)

		width := 20
		if n >= 20 {
			width = 19
		}
		// header(3) + slot(2) + name + control(6) + count(2)
		assert.Len(t, got, 3+2+width+6+2, "name length %d", n)
	}
}

func TestControlField(t *testing.T) {
	assert.Equal(t, "000000", controlField(Trigger{}))
	assert.Equal(t, "010305", controlField(Trigger{Kind: TriggerLoop, Count: 3, Target: 5}))
	assert.Equal(t, "02ff00", controlField(Trigger{Kind: TriggerJump, Count: 9, Target: 255}))
}
