// Package logging configures zerolog for the verification core. Every
// component logs through a named child logger; token values never appear in
// fields, only their fingerprints.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogFormat selects the output encoding.
type LogFormat string

const (
	LogFormatJSON    LogFormat = "json"
	LogFormatConsole LogFormat = "console"
)

// Config holds the logging configuration.
type Config struct {
	Level       string    `json:"level"`
	Format      LogFormat `json:"format"`
	ServiceName string    `json:"service_name"`
	Caller      bool      `json:"caller"`
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:       "info",
		Format:      LogFormatConsole,
		ServiceName: "tokengate",
		Caller:      false,
	}
}

// Configure sets up the global logger and returns it.
func Configure(config *Config) zerolog.Logger {
	if config == nil {
		config = DefaultConfig()
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var logger zerolog.Logger
	switch config.Format {
	case LogFormatConsole:
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		logger = zerolog.New(output).With().Timestamp().Logger()
	default:
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	logger = logger.With().Str("service", config.ServiceName).Logger()
	if config.Caller {
		logger = logger.With().Caller().Logger()
	}

	log.Logger = logger
	return logger
}

// ConfigureFromEnv configures logging from LOG_LEVEL and LOG_FORMAT.
func ConfigureFromEnv() zerolog.Logger {
	config := DefaultConfig()
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Level = strings.ToLower(level)
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		config.Format = LogFormat(strings.ToLower(format))
	}
	return Configure(config)
}

// GetLogger returns a child logger tagged with a component name.
func GetLogger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}
