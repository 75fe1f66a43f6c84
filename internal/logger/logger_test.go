package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithWriterEmitsServiceAndStack(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("memory-service", &buf)
	l.Error().Stack().Err(errors.New("boom")).Msg("failed")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if line["service"] != "memory-service" {
		t.Fatalf("service = %v", line["service"])
	}
	if _, ok := line["stack"]; !ok {
		t.Fatalf("expected stack field in %s", buf.String())
	}
}

func TestSetLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	SetLevel("debug")
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("level = %v, want debug", zerolog.GlobalLevel())
	}
	SetLevel("nonsense")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("level = %v, want info", zerolog.GlobalLevel())
	}
}
