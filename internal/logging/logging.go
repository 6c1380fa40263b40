// Package logging builds the application's rotating file logger.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nhle/efficio/internal/model"
)

// Logger is a *log.Logger whose output rotates by size. Close releases the
// underlying file.
type Logger struct {
	*log.Logger
	out io.Closer
}

// New opens the log file described by cfg. An empty path yields a logger
// that discards everything.
func New(cfg model.LogConfig, prefix string) (*Logger, error) {
	if cfg.Path == "" {
		return &Logger{Logger: log.New(io.Discard, "", 0)}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}
	return &Logger{
		Logger: log.New(w, prefix, log.LstdFlags|log.Lmsgprefix),
		out:    w,
	}, nil
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l.out == nil {
		return nil
	}
	return l.out.Close()
}
