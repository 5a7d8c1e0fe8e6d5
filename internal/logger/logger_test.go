package logger_test

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/tdpctl/internal/errors"
	"codeberg.org/mutker/tdpctl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tt := []struct {
		in   string
		want logger.LogLevel
	}{
		{"debug", logger.DebugLevel},
		{"INFO", logger.InfoLevel},
		{"", logger.InfoLevel},
		{"warning", logger.WarnLevel},
		{"warn", logger.WarnLevel},
		{"error", logger.ErrorLevel},
	}
	for _, tc := range tt {
		got, err := logger.ParseLevel(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := logger.ParseLevel("loud")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, logger.Init("debug", true, &buf))
	t.Cleanup(func() { _ = logger.Init("info", true, nil) })

	log := logger.New("controller").With("device", "rembrandt")
	log.Info().Int("generation", 3).Msg("Applied profile")

	out := buf.String()
	assert.Contains(t, out, "Applied profile")
	assert.Contains(t, out, "component=controller")
	assert.Contains(t, out, "device=rembrandt")
	assert.Contains(t, out, "generation=3")

	buf.Reset()
	logger.SetLogLevel(logger.WarnLevel)
	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestNop(t *testing.T) {
	log := logger.Nop()
	assert.NotPanics(t, func() {
		log.Error().Str("k", "v").Msg("discarded")
		log.ErrorWithCode(errors.New().New(errors.ErrTimeout)).Msg("discarded")
	})
}
