// Package logging sets up the process logger. Every line carries the
// service name; packages tag their own lines through Component.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Service is the value of the service field on every log line.
const Service = "soundscape"

// Setup configures zerolog for the process.
func Setup(environment string) zerolog.Logger {
	return SetupWithWriter(environment, os.Stdout)
}

// SetupWithWriter configures zerolog writing human-readable output to w.
// Development gets debug lines and caller locations.
func SetupWithWriter(environment string, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	ctx := zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Str("service", Service)
	level := zerolog.InfoLevel
	if environment == "development" {
		level = zerolog.DebugLevel
		ctx = ctx.Caller()
	}

	logger := ctx.Logger().Level(level)
	log.Logger = logger
	return logger
}

// Component returns logger tagged with the component that writes through it.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
