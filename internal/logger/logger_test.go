package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		" Error ": slog.LevelInfo, // no trimming, unknown maps to info
	}
	for in, want := range cases {
		if got := (Config{Level: in}).SlogLevel(); got != want {
			t.Fatalf("level %q = %v, want %v", in, got, want)
		}
	}
}

func TestWriterNilWithoutDir(t *testing.T) {
	if w := (Config{}).Writer("b1"); w != nil {
		t.Fatalf("expected nil writer when no dir is configured")
	}
}

func TestWriterCreatesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	w := Config{Dir: dir}.Writer("my-bot")
	if w == nil {
		t.Fatalf("expected a writer")
	}
	if _, err := w.Write([]byte("hello from the bot\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "my-bot.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello from the bot") {
		t.Fatalf("log content: %q", data)
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Config{Level: "warn"})
	log.Info("hidden")
	log.Warn("visible", "id", "b1")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "visible") || !strings.Contains(out, "b1") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestColorHandlerPrefixesLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Config{Level: "debug"})
	log.Error("boom")
	out := buf.String()
	if !strings.Contains(out, levelColors[slog.LevelError]+"ERROR"+colorReset) {
		t.Fatalf("missing colored level prefix: %q", out)
	}
}
