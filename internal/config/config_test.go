package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Config{ChordWindowMS: 50, StickyTimeoutMS: 1000, WatchDebounceMS: 300}, cfg)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("KANACHORD_OUTPUT_DIR", "/tmp/assets")
	t.Setenv("KANACHORD_STATE_DB", "/tmp/state.db")
	t.Setenv("KANACHORD_CHORD_WINDOW_MS", "80")
	t.Setenv("KANACHORD_STICKY_TIMEOUT_MS", "600")
	t.Setenv("KANACHORD_WATCH_DEBOUNCE_MS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Config{
		OutputDir:       "/tmp/assets",
		StateDB:         "/tmp/state.db",
		ChordWindowMS:   80,
		StickyTimeoutMS: 600,
		WatchDebounceMS: 0,
	}, cfg)
}

func TestLoadParseError(t *testing.T) {
	t.Setenv("KANACHORD_CHORD_WINDOW_MS", "fast")

	_, err := Load()
	assert.ErrorContains(t, err, "parse env:")
}

func TestLoadRejectsBadTiming(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"zero window", "KANACHORD_CHORD_WINDOW_MS", "0", "KANACHORD_CHORD_WINDOW_MS must be positive"},
		{"negative timeout", "KANACHORD_STICKY_TIMEOUT_MS", "-1", "KANACHORD_STICKY_TIMEOUT_MS must be positive"},
		{"negative debounce", "KANACHORD_WATCH_DEBOUNCE_MS", "-5", "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
