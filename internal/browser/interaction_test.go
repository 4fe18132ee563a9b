package browser

import (
	"testing"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Test Cases: Key Chord Parsing --

func TestParseKeyChord(t *testing.T) {
	testCases := []struct {
		name     string
		chord    string
		key      string
		mods     []input.Modifier
		hasError bool
	}{
		{"named key", "Escape", kb.Escape, nil, false},
		{"named key lowercase", "enter", kb.Enter, nil, false},
		{"single letter", "a", "a", nil, false},
		{"control chord", "Control+A", "a", []input.Modifier{input.ModifierCtrl}, false},
		{"ctrl alias", "ctrl+c", "c", []input.Modifier{input.ModifierCtrl}, false},
		{"stacked modifiers", "Control+Shift+Tab", kb.Tab, []input.Modifier{input.ModifierCtrl, input.ModifierShift}, false},
		{"meta alias", "cmd+v", "v", []input.Modifier{input.ModifierMeta}, false},
		{"space key", "space", " ", nil, false},
		{"unknown modifier", "Hyper+X", "", nil, true},
		{"empty key", "Control+", "", nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			key, mods, err := parseKeyChord(tc.chord)
			if tc.hasError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.key, key)
			assert.Equal(t, tc.mods, mods)
		})
	}
}

// -- Test Cases: Chrome Flag Parsing --

func TestParseChromeFlag(t *testing.T) {
	// ExecAllocatorOption is opaque; the most this can assert is that both
	// argument shapes produce an option without panicking.
	assert.NotNil(t, parseChromeFlag("--window-position=0,0"))
	assert.NotNil(t, parseChromeFlag("disable-extensions"))
}
