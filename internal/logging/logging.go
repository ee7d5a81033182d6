package logging

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mborders/logmatic"
)

var (
	mu sync.RWMutex
	l  = newLogger(logmatic.INFO)
)

func newLogger(level logmatic.LogLevel) *logmatic.Logger {
	lg := logmatic.NewLogger()
	lg.SetLevel(level)
	lg.ExitOnFatal = true
	return lg
}

// SetLevel switches the process log level. Accepts trace|debug|info|warn|error;
// anything else leaves info.
func SetLevel(level string) {
	lg := newLogger(parseLevel(level))
	mu.Lock()
	l = lg
	mu.Unlock()
}

func parseLevel(level string) logmatic.LogLevel {
	var lv logmatic.LogLevel = logmatic.INFO
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		lv = logmatic.TRACE
	case "debug":
		lv = logmatic.DEBUG
	case "warn", "warning":
		lv = logmatic.WARN
	case "error":
		lv = logmatic.ERROR
	}
	return lv
}

func get() *logmatic.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return l
}

func Debug(format string, a ...interface{}) { get().Debug("%s", fmt.Sprintf(format, a...)) }
func Info(format string, a ...interface{})  { get().Info("%s", fmt.Sprintf(format, a...)) }
func Warn(format string, a ...interface{})  { get().Warn("%s", fmt.Sprintf(format, a...)) }
func Error(format string, a ...interface{}) { get().Error("%s", fmt.Sprintf(format, a...)) }

// Fatal logs and exits the process.
func Fatal(format string, a ...interface{}) { get().Fatal("%s", fmt.Sprintf(format, a...)) }
