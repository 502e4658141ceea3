package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestLookupLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"trace", LevelTrace, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := LookupLevel(tt.in)
		if (err != nil) != tt.wantErr || (!tt.wantErr && got != tt.want) {
			t.Errorf("LookupLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
	if ParseLevel("loud") != slog.LevelInfo {
		t.Error("ParseLevel did not fall back to info")
	}
}

func TestLookupFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatAuto, "auto": FormatAuto, "tint": FormatText, "JSON": FormatJSON} {
		got, err := LookupFormat(in)
		if err != nil || got != want {
			t.Errorf("LookupFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := LookupFormat("xml"); err == nil {
		t.Error("LookupFormat accepted xml")
	}
}

func TestJSONHandlerNamesTrace(t *testing.T) {
	var buf bytes.Buffer
	// A buffer is not a terminal, so auto selects JSON.
	log := slog.New(NewHandler(&buf, FormatAuto, LevelTrace))
	log.Log(context.Background(), LevelTrace, "deep")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %q", buf.String())
	}
	if rec["level"] != "TRACE" || rec["msg"] != "deep" {
		t.Fatalf("record = %v", rec)
	}
}
