package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogPath(t *testing.T) {
	got := LogPath("/work/proj")
	want := filepath.Join("/work/proj", ".ai", "projectmind.log")
	if got != want {
		t.Errorf("LogPath = %s, want %s", got, want)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/p")

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got: %s", cfg.Level)
	}
	if cfg.MaxSizeMB != 10 {
		t.Errorf("expected MaxSizeMB 10, got: %d", cfg.MaxSizeMB)
	}
	if cfg.MaxFiles != 5 {
		t.Errorf("expected MaxFiles 5, got: %d", cfg.MaxFiles)
	}
	if !cfg.WriteToStderr {
		t.Error("expected WriteToStderr true")
	}
}

func TestMCPConfig_NeverWritesToStderr(t *testing.T) {
	cfg := MCPConfig("/p", "debug")
	if cfg.WriteToStderr {
		t.Error("MCP config must not write to stderr")
	}
	if cfg.Level != "debug" {
		t.Errorf("expected debug, got %s", cfg.Level)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetup_WritesJSONRecords(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Level: "debug", FilePath: filepath.Join(dir, "x.log")}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	logger.Info("index_run_complete", slog.Int("added", 3))
	cleanup()

	data, err := os.ReadFile(cfg.FilePath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, data)
	}
	if rec["msg"] != "index_run_complete" {
		t.Errorf("unexpected msg: %v", rec["msg"])
	}
	if rec["added"] != float64(3) {
		t.Errorf("unexpected added attr: %v", rec["added"])
	}
}

func TestRotatingWriter_RotatesAndKeepsMaxFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "r.log")

	w, err := NewRotatingWriter(path, 1, 2)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer w.Close()

	chunk := []byte(strings.Repeat("x", 600*1024))
	for i := 0; i < 6; i++ {
		if _, err := w.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	for _, name := range []string{path, path + ".1", path + ".2"} {
		if _, err := os.Stat(name); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Errorf("expected %s.3 to be pruned", path)
	}
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "c.log"), 1, 1)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := w.Write([]byte("late")); err == nil {
		t.Error("expected error writing to closed writer")
	}
}
