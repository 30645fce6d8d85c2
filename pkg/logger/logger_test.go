package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestWith_ComponentField(t *testing.T) {
	var buf bytes.Buffer
	sub := With("reward").Output(&buf)

	sub.Info().Str("event_id", "fb_1").Msg("sweep completed")

	out := buf.String()
	if !strings.Contains(out, `"component":"reward"`) {
		t.Errorf("expected component field in output, got %s", out)
	}
	if !strings.Contains(out, `"event_id":"fb_1"`) {
		t.Errorf("expected event_id field in output, got %s", out)
	}
}

func TestInit_LevelFiltering(t *testing.T) {
	defer Init("info")
	Init("error")

	var buf bytes.Buffer
	sub := With("test").Output(&buf)

	sub.Info().Msg("should be dropped")
	if buf.Len() != 0 {
		t.Errorf("info line emitted at error level: %s", buf.String())
	}

	sub.Error().Msg("should be kept")
	if !strings.Contains(buf.String(), "should be kept") {
		t.Errorf("error line missing, got %s", buf.String())
	}
}
