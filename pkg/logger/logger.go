// Package logger provides the process-wide structured logger.
package logger

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

var log = newLogger()

// Formatter renders entries as "[15:04:05.000] [LEVL] message".
type Formatter struct {
	TimestampFormat string
}

// Format implements logrus.Formatter.
func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := entry.Time.Format(f.TimestampFormat)
	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}
	msg := fmt.Sprintf("[%s] [%s] %s", timestamp, level, entry.Message)
	if len(entry.Data) > 0 {
		for _, k := range sortedKeys(entry.Data) {
			msg += fmt.Sprintf(" %s=%v", k, entry.Data[k])
		}
	}
	return []byte(msg + "\n"), nil
}

func sortedKeys(data logrus.Fields) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&Formatter{TimestampFormat: "15:04:05.000"})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel changes the log level: one of debug, info, warn, error.
// Unknown levels leave the current level in place.
func SetLevel(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		log.Warnf("unknown log level %q", level)
		return
	}
	log.SetLevel(parsed)
}

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) {
	log.Debugf(format, args...)
}

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) {
	log.Infof(format, args...)
}

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) {
	log.Warnf(format, args...)
}

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) {
	log.Errorf(format, args...)
}

// WithFields returns an entry carrying structured fields.
func WithFields(fields map[string]any) *logrus.Entry {
	return log.WithFields(fields)
}
