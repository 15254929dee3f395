package util

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const consoleLog = "console"

// InitLog parses and sets log-level input
func InitLog(logLevel string, logPath string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Errorf("Failed parsing log-level %s: %s", logLevel, err)
		return err
	}

	if logPath != "" && logPath != consoleLog {
		lumberjackLogger := &lumberjack.Logger{
			// Log file absolute path, os agnostic
			Filename:   filepath.ToSlash(logPath),
			MaxSize:    5, // MB
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		}
		log.SetOutput(io.Writer(lumberjackLogger))
	} else {
		log.SetOutput(os.Stderr)
	}

	log.SetFormatter(&CustomFormatter{
		TextFormatter: log.TextFormatter{
			FullTimestamp: true,
		},
	})
	log.SetLevel(level)
	return nil
}

// CustomFormatter prefixes entries that belong to a check operation with its id
type CustomFormatter struct {
	log.TextFormatter
}

func (f *CustomFormatter) Format(entry *log.Entry) ([]byte, error) {
	if entry.Context == nil {
		return f.TextFormatter.Format(entry)
	}

	if opID, ok := entry.Context.Value(OperationIDKey).(string); ok && opID != "" {
		entry.Data["operation"] = opID
	}

	return f.TextFormatter.Format(entry)
}

type contextKey string

// OperationIDKey is the context key carrying the id of the running check or publish operation
const OperationIDKey contextKey = "operationID"
