package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

type Logger struct {
	*logrus.Logger
}

// NewLogger builds a logger writing to stderr. An unknown level falls
// back to info, an unknown format to JSON.
func NewLogger(level string, format string) *Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if strings.EqualFold(format, FormatText) {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	return &Logger{
		log,
	}
}

// Discard returns a logger that drops everything. The SDK uses it when the
// caller does not inject one.
func Discard() *Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return &Logger{
		log,
	}
}

// Component returns an entry tagged with the emitting component.
func (l *Logger) Component(name string) *logrus.Entry {
	return l.WithField("component", name)
}
