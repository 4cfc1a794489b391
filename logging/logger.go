package logging

import (
	"os"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger = &logrus.Logger{
	Out: os.Stdout,
	Formatter: &logrus.TextFormatter{
		DisableLevelTruncation: true,
		PadLevelText:           true,
		FullTimestamp:          true,
	},
	Hooks: make(logrus.LevelHooks),
	Level: logrus.InfoLevel,
}

// SetLevel parses a level name such as "debug" or "warn" and applies it to Logger.
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger.SetLevel(lvl)
	return nil
}

// Resolve returns l, or the shared Logger when l is nil.
func Resolve(l *logrus.Logger) *logrus.Logger {
	if l == nil {
		return Logger
	}
	return l
}

// Fields builds the base field set for a log line, naming the calling function as the method.
func Fields(module string) logrus.Fields {
	return logrus.Fields{"module": module, "method": shortName(Trace(1).Function)}
}

// Trace returns the frame of the caller skip levels above the function calling Trace.
func Trace(skip int) runtime.Frame {
	pc := make([]uintptr, 15)
	n := runtime.Callers(2+skip, pc)
	frames := runtime.CallersFrames(pc[:n])
	frame, _ := frames.Next()
	return frame
}

func shortName(function string) string {
	if i := strings.LastIndex(function, "/"); i >= 0 {
		function = function[i+1:]
	}
	if i := strings.Index(function, "."); i >= 0 {
		function = function[i+1:]
	}
	return function
}
