package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

//NewLogger sets the global log level and returns a logger tagged with the
//service name. Console output is used when json is false.
func NewLogger(serviceName, level string, json bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	base := log.Logger
	if !json {
		base = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return base.With().Str("service", strings.ToLower(serviceName)).Logger()
}
