// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/knx-actuator/internal/config"
)

// Setup applies cfg to the standard logger. Unknown levels fall back to info.
// Every entry carries the device serial.
func Setup(cfg config.LoggingConfig, serial string) *log.Entry {
	return setup(log.StandardLogger(), os.Stderr, cfg, serial)
}

func setup(l *log.Logger, out io.Writer, cfg config.LoggingConfig, serial string) *log.Entry {
	lvl, err := log.ParseLevel(cfg.Level)
	if err != nil {
		lvl = log.InfoLevel
	}
	l.SetLevel(lvl)
	l.SetOutput(out)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&log.JSONFormatter{})
	default:
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	return l.WithField("serial", serial)
}
