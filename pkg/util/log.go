package util

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is shared by every package. Commands configure it once with
// ConfigureLogging before doing any work.
var Logger = newLogger()

const (
	textTimestamp = "2006-01-02 15:04:05"
	jsonTimestamp = "2006-01-02T15:04:05Z07:00"
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: textTimestamp})
	return l
}

// ConfigureLogging applies the command-line logging flags. Verbose runs
// log at debug level; otherwise only warnings and errors reach stderr.
func ConfigureLogging(verbose, json bool) {
	level := logrus.WarnLevel
	if verbose {
		level = logrus.DebugLevel
	}
	Logger.SetLevel(level)
	if json {
		Logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: jsonTimestamp})
	}
}

// SetLogLevel parses a logrus level name such as "debug" or "warn".
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger.SetLevel(lvl)
	return nil
}

func SetLogOutput(w io.Writer) {
	Logger.SetOutput(w)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

func WithFields(fields map[string]interface{}) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithDevice scopes log lines to one device address.
func WithDevice(device string) *logrus.Entry {
	return Logger.WithField("device", device)
}

// WithRun scopes log lines to one replay run.
func WithRun(runID string) *logrus.Entry {
	return Logger.WithField("run_id", runID)
}

// WithObject adds object identity to a device-scoped entry.
func WithObject(entry *logrus.Entry, objType, id, name string) *logrus.Entry {
	return entry.WithFields(logrus.Fields{"type": objType, "id": id, "name": name})
}

func Debugf(format string, args ...interface{}) {
	Logger.Debugf(format, args...)
}

func Warnf(format string, args ...interface{}) {
	Logger.Warnf(format, args...)
}
