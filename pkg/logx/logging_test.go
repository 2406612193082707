package logx

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFileSinkWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	svc, log := New(Config{
		Level: "debug",
		File:  FileConfig{Enabled: true, Path: path},
	})

	log.Info("engine started", String("driver", "sqlite"), Int("workers", 4))
	log.With(String("post", "p-1")).Warn("publish failed", Err(errors.New("boom")))
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %q", len(lines), string(b))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line not JSON: %v", err)
	}
	if first["message"] != "engine started" || first["driver"] != "sqlite" {
		t.Fatalf("bad first line: %v", first)
	}

	var second map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("line not JSON: %v", err)
	}
	if second["post"] != "p-1" || second["err"] != "boom" || second["level"] != "warn" {
		t.Fatalf("bad second line: %v", second)
	}
}

func TestApplySwapsLevelAtRuntime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	svc, log := New(Config{
		Level: "info",
		File:  FileConfig{Enabled: true, Path: path},
	})
	defer svc.Close()

	if log.Enabled(LevelDebug) {
		t.Fatal("debug enabled at info level")
	}
	log.Debug("dropped")

	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	if !log.Enabled(LevelDebug) {
		t.Fatal("debug still disabled after Apply")
	}
	log.Debug("kept")
	_ = svc.Close()

	b, _ := os.ReadFile(path)
	if strings.Contains(string(b), "dropped") {
		t.Fatal("suppressed line written")
	}
	if !strings.Contains(string(b), "kept") {
		t.Fatalf("line missing after level change: %q", string(b))
	}
}

func TestZeroAndNopLoggersAreSafe(t *testing.T) {
	var zero Logger
	if !zero.IsZero() {
		t.Fatal("zero value not reported as zero")
	}
	zero.Info("ignored", String("k", "v"))
	zero.With(Duration("d", time.Second)).Error("ignored too")

	nop := Nop()
	if nop.IsZero() {
		t.Fatal("Nop logger reported as zero")
	}
	nop.Warn("ignored")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		" DEBUG ": zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in, zerolog.InfoLevel); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
