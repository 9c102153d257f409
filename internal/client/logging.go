package client

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger returns a logger writing to w at the named level.
func NewLogger(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
	}), nil
}

// NewStderrLogger is the logger used by headless commands.
func NewStderrLogger(level string) (*log.Logger, error) {
	return NewLogger(os.Stderr, level)
}

// NewFileLogger writes to a size-rotated file so the terminal stays free for
// the UI. Close the returned closer on exit.
func NewFileLogger(path, level string) (*log.Logger, io.Closer, error) {
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     7, // days
	}
	logger, err := NewLogger(rotator, level)
	if err != nil {
		return nil, nil, err
	}
	return logger, rotator, nil
}
