package logging

import (
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig controls the rotating log file sink.
type FileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// NewFileLogger creates a logger writing to a size-rotated file.
// The returned closer flushes and closes the current log file.
func NewFileLogger(cfg FileConfig, level Level) (*DefaultLogger, func() error) {
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}

	writer := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    maxSize, // MB
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	return NewWriterLogger(writer, level), writer.Close
}
