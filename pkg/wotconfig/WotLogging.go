// Package wotconfig with logrus logging setup
package wotconfig

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// SetLogging sets the logging level and output file.
//  levelName is one of error, warn(ing), info, debug. Default is warning.
//  logFile to log to, in addition to stderr. Use "" for stderr only.
// Returns an error when the log file cannot be opened.
func SetLogging(levelName string, logFile string) error {
	loggingLevel := logrus.WarnLevel
	switch levelName {
	case "error":
		loggingLevel = logrus.ErrorLevel
	case "warn", "warning":
		loggingLevel = logrus.WarnLevel
	case "info":
		loggingLevel = logrus.InfoLevel
	case "debug":
		loggingLevel = logrus.DebugLevel
	}
	logrus.SetLevel(loggingLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	if logFile == "" {
		logrus.SetOutput(os.Stderr)
		return nil
	}
	fileHandle, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		logrus.Errorf("SetLogging: unable to open logfile %s: %s", logFile, err)
		return err
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, fileHandle))
	return nil
}
