package logging_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/bale/internal/logging"
	"github.com/stretchr/testify/assert"
)

func TestNewWithWriter_NormalizesKeys(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithWriter(&buf, slog.LevelInfo, logging.FormatText)

	log.Info("built", "error", errors.New("boom"), "took", 1500*time.Millisecond)
	log.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "err=boom")
	assert.Contains(t, out, "took=1.5s")
	assert.NotContains(t, out, "hidden")
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logging.NewWithWriter(&buf, slog.LevelDebug, logging.FormatJSON).Debug("x", "error", "e")
	assert.Contains(t, buf.String(), `"err":"e"`)
}
