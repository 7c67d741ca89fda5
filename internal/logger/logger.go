package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var Log = logrus.New()

// Init configures the shared logger. Unknown levels fall back to info.
func Init(level, format string) {
	InitWithOutput(level, format, os.Stdout)
}

func InitWithOutput(level, format string, out io.Writer) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)
	if format == "json" {
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	Log.SetOutput(out)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}

func Info(args ...any) {
	Log.Info(args...)
}

func Infof(format string, args ...any) {
	Log.Infof(format, args...)
}

func Warn(args ...any) {
	Log.Warn(args...)
}

func Error(args ...any) {
	Log.Error(args...)
}

func Fatalf(format string, args ...any) {
	Log.Fatalf(format, args...)
}
