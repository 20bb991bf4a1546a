package app

import "strings"

import "github.com/probuildhq/probuild/pkg/logger"

// ConfigureLogging initialises the global logger with the provided level and format,
// defaulting to info-level JSON output.
func ConfigureLogging(level, format string) error {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}
	format = strings.TrimSpace(format)
	if format == "" {
		format = "json"
	}
	return logger.Init(level, format)
}
