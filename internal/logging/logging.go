// Package logging configures the process-wide logrus logger used by the
// jamfpro CLI and exporter.
package logging

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// Component is the field every entry logged through this package carries.
const Component = "jamfpro"

func entry() *log.Entry {
	return log.WithField("component", Component)
}

// LogInfo logs an informational message.
func LogInfo(msg string) {
	entry().Info(msg)
}

// LogWarn logs a recoverable condition worth an operator's attention.
func LogWarn(msg string) {
	entry().Warn(msg)
}

// LogError logs a recoverable error that does not terminate the program.
func LogError(msg string) {
	entry().Error(msg)
}

// LogPanic logs err and panics.
func LogPanic(err error) {
	entry().Panic(err)
}

// HandleError logs err and exits with status 2.
func HandleError(err error) {
	entry().Error(err)
	os.Exit(2)
}

// SetDebug switches the global level between Debug and Info.
func SetDebug(debug bool) {
	if debug {
		log.SetLevel(log.DebugLevel)
		return
	}
	log.SetLevel(log.InfoLevel)
}

// PrepareLogs sends JSON log entries to stderr and, when logName is set, to
// that file as well. The file is created if missing and appended to otherwise.
func PrepareLogs(logName string) error {
	log.SetFormatter(&log.JSONFormatter{})
	if logName == "" {
		log.SetOutput(os.Stderr)
		return nil
	}

	logFile, err := os.OpenFile(logName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, logFile))
	return nil
}
