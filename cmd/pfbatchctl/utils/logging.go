// Package utils holds pfbatchctl helpers shared by the command handlers.
package utils

import (
	"os"

	"github.com/concave-dev/pfbatch/cmd/pfbatchctl/config"
	"github.com/concave-dev/pfbatch/internal/logging"
)

// RestyLogger routes resty's internal logging through the CLI logger
type RestyLogger struct{}

// Errorf logs at ERROR.
func (RestyLogger) Errorf(format string, v ...interface{}) {
	logging.Error(format, v...)
}

// Warnf logs at WARN.
func (RestyLogger) Warnf(format string, v ...interface{}) {
	logging.Warn(format, v...)
}

// Debugf logs at DEBUG.
func (RestyLogger) Debugf(format string, v ...interface{}) {
	logging.Debug(format, v...)
}

// SetupLogging keeps CLI output clean: only command output is shown unless
// DEBUG=true is set.
func SetupLogging() {
	if os.Getenv("DEBUG") == "true" {
		logging.RestoreOutput()
		logging.SetLevel("DEBUG")
		return
	}
	logging.SetLevel(config.Global.LogLevel)
	logging.SuppressOutput()
}
