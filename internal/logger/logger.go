// Package logger builds the structured logger shared by the service and CLI.
package logger

import (
	"io"
	"os"

	"github.com/kozaktomas/agent-faceid/internal/config"
	"github.com/sirupsen/logrus"
)

// New returns a logrus logger configured from cfg. Unknown levels fall back to info.
func New(cfg config.LogConfig) *logrus.Logger {
	return NewWithOutput(cfg, os.Stderr)
}

// NewWithOutput is New with an explicit writer.
func NewWithOutput(cfg config.LogConfig, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if cfg.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}

// Discard returns a logger that drops everything. Used by tests and quiet CLI runs.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
