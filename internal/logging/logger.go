// Package logging builds the arbor logger used by every build stage.
package logging

import (
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

// DefaultLevel applies when no level is configured.
const DefaultLevel = "info"

// New returns a console logger at level. An empty level means DefaultLevel.
func New(level string) arbor.ILogger {
	if level == "" {
		level = DefaultLevel
	}
	return arbor.NewLogger().WithConsoleWriter(models.WriterConfiguration{
		Type:             models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		TextOutput:       true,
		DisableTimestamp: false,
	}).WithLevelFromString(level)
}

// WithFile adds a rotating file writer at path. When the directory cannot be
// created the console logger is returned unchanged and the failure is logged.
func WithFile(logger arbor.ILogger, path string) arbor.ILogger {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("log file disabled")
		return logger
	}
	return logger.WithFileWriter(models.WriterConfiguration{
		Type:             models.LogWriterTypeFile,
		FileName:         path,
		TimeFormat:       "15:04:05",
		MaxSize:          10 * 1024 * 1024,
		MaxBackups:       3,
		TextOutput:       true,
		DisableTimestamp: false,
	})
}
