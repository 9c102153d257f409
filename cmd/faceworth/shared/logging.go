package shared

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/lox/faceworth/internal/client"
)

// SetupLogger returns a stderr logger at the configured level.
func SetupLogger(cfg *client.Config) (*log.Logger, error) {
	return client.NewStderrLogger(cfg.UI.LogLevel)
}

// SetupFileLogger logs to a rotating file so the terminal stays free for the
// UI. An empty path uses ui.log_file.
func SetupFileLogger(cfg *client.Config, path string) (*log.Logger, io.Closer, error) {
	if path == "" {
		path = cfg.UI.LogFile
	}
	return client.NewFileLogger(path, cfg.UI.LogLevel)
}
