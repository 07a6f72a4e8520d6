package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// logFilesKept is how many server log files survive in LOG_DIR.
const logFilesKept = 10

const logFilePattern = "tenderplan-*.log"

// NewLogger builds the JSON logger for the server. Debug level is on in dev.
// When LOG_DIR is set the output is also written to a fresh file there; the
// returned close func releases it.
func NewLogger(cfg *Config) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if cfg.Environment == "dev" {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.LogDir != "" {
		f, err := openLogFile(cfg.LogDir, time.Now())
		if err != nil {
			return nil, nil, err
		}
		if err := pruneLogs(cfg.LogDir, logFilesKept); err != nil {
			fmt.Fprintf(os.Stderr, "warning: prune logs: %v\n", err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closeFn = func() { _ = f.Close() }
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	return logger, closeFn, nil
}

func openLogFile(dir string, now time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	name := filepath.Join(dir, "tenderplan-"+now.Format("2006-01-02T15-04-05")+".log")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	return f, nil
}

// pruneLogs deletes the oldest log files beyond keep. The timestamp in the
// name sorts chronologically.
func pruneLogs(dir string, keep int) error {
	files, err := filepath.Glob(filepath.Join(dir, logFilePattern))
	if err != nil {
		return err
	}
	if len(files) <= keep {
		return nil
	}
	sort.Strings(files)
	for _, old := range files[:len(files)-keep] {
		if err := os.Remove(old); err != nil {
			return fmt.Errorf("remove %s: %w", old, err)
		}
	}
	return nil
}
