package motion

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plenctl/internal/protocol"
)

const waveDoc = `{
	"slot": 3,
	"name": "wave",
	"codes": [{"func": "loop", "args": [0, 2]}],
	"frames": [
		{"transition_time_ms": 300, "outputs": [{"device": "head", "value": 120}]},
		{"transition_time_ms": 100, "outputs": [{"device": "neck", "value": -1}]}
	]
}`

func TestParseScript(t *testing.T) {
	doc, err := Parse([]byte(waveDoc))
	require.NoError(t, err)

	script, err := doc.Script()
	require.NoError(t, err)

	assert.Equal(t, protocol.MotionScript{
		Slot:    3,
		Name:    "wave",
		Trigger: protocol.Trigger{Kind: protocol.TriggerLoop, Count: 0, Target: 2},
		Frames: []protocol.Frame{
			{TransitionTime: 300, Outputs: []protocol.Output{{Device: "head", Value: 120}}},
			{TransitionTime: 100, Outputs: []protocol.Output{{Device: "neck", Value: -1}}},
		},
	}, script)
}

func TestTriggerOf(t *testing.T) {
	tests := []struct {
		name  string
		codes []Code
		want  protocol.Trigger
	}{
		{
			name: "no codes",
			want: protocol.Trigger{Kind: protocol.TriggerNone},
		},
		{
			name:  "loop",
			codes: []Code{{Func: "loop", Args: []int{4, 1}}},
			want:  protocol.Trigger{Kind: protocol.TriggerLoop, Count: 4, Target: 1},
		},
		{
			name:  "jump ignores extra args",
			codes: []Code{{Func: "jump", Args: []int{7, 99}}},
			want:  protocol.Trigger{Kind: protocol.TriggerJump, Target: 7},
		},
		{
			name:  "loop listed first wins",
			codes: []Code{{Func: "loop", Args: []int{1, 2}}, {Func: "jump", Args: []int{3}}},
			want:  protocol.Trigger{Kind: protocol.TriggerLoop, Count: 1, Target: 2},
		},
		{
			name:  "jump listed first wins",
			codes: []Code{{Func: "jump", Args: []int{3}}, {Func: "loop", Args: []int{1, 2}}},
			want:  protocol.Trigger{Kind: protocol.TriggerJump, Target: 3},
		},
		{
			name:  "unknown functions skipped",
			codes: []Code{{Func: "wait", Args: []int{1}}, {Func: "jump", Args: []int{5}}},
			want:  protocol.Trigger{Kind: protocol.TriggerJump, Target: 5},
		},
		{
			name:  "only unknown functions",
			codes: []Code{{Func: "wait"}},
			want:  protocol.Trigger{Kind: protocol.TriggerNone},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TriggerOf(tt.codes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTriggerOfRejectsShortArgs(t *testing.T) {
	_, err := TriggerOf([]Code{{Func: "loop", Args: []int{1}}})
	assert.True(t, errors.Is(err, ErrInvalidDocument))

	_, err = TriggerOf([]Code{{Func: "jump"}})
	assert.True(t, errors.Is(err, ErrInvalidDocument))

	_, err = TriggerOf([]Code{{Func: "loop", Args: []int{256, 0}}})
	assert.True(t, errors.Is(err, ErrInvalidDocument))
}

func TestScriptRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
	}{
		{name: "slot too large", doc: Document{Slot: 256}},
		{name: "negative slot", doc: Document{Slot: -1}},
		{name: "non ascii name", doc: Document{Name: "ウェーブ"}},
		{name: "control char in name", doc: Document{Name: "a\nb"}},
		{name: "too many frames", doc: Document{Frames: make([]Frame, 256)}},
		{name: "transition too long", doc: Document{Frames: []Frame{{TransitionTimeMs: 70000}}}},
		{name: "negative transition", doc: Document{Frames: []Frame{{TransitionTimeMs: -5}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.doc.Script()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDocument))
		})
	}
}

func TestScriptEncodesControlField(t *testing.T) {
	m := map[string][]Code{
		"000000": nil,
		"010102": {{Func: "loop", Args: []int{1, 2}}},
		"020300": {{Func: "jump", Args: []int{3}}, {Func: "loop", Args: []int{1, 2}}},
	}
	for want, codes := range m {
		doc := Document{Name: "x", Codes: codes}
		script, err := doc.Script()
		require.NoError(t, err)

		payload, err := protocol.Encode(protocol.InstallMotion{Script: script}, nil, protocol.NewChannelState())
		require.NoError(t, err)
		// header(3) + slot(2) + name(20)
		assert.Equal(t, want, string(payload[25:31]))
	}
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte(`{"slot": "three"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDocument))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wave.json")
	require.NoError(t, os.WriteFile(path, []byte(waveDoc), 0o600))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wave", doc.Name)
	assert.Len(t, doc.Frames, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "missing.json"))
}
