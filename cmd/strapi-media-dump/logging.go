/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// setupLogger sends human-readable logs to stderr; stdout is reserved for command output.
func setupLogger(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
	}
	log.Logger = zerolog.New(consoleWriter).With().Timestamp().Logger()

	if debug {
		log.Logger = log.Logger.With().Caller().Logger()
	}
}

// getLogger returns a logger tagged with the component name.
func getLogger(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
