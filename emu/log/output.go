package log

import (
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/term"
	"gopkg.in/Sirupsen/logrus.v0"
)

var disabled atomic.Bool

// Disable turns off all logging, including warnings and errors.
func Disable() {
	disabled.Store(true)
}

// Enable reverts a previous call to Disable.
func Enable() {
	disabled.Store(false)
}

// SetOutput directs log output to w. Colors are used when w is a terminal.
func SetOutput(w io.Writer) {
	colors := false
	if f, ok := w.(*os.File); ok {
		colors = term.IsTerminal(int(f.Fd()))
	}

	logrus.SetOutput(w)
	logrus.SetLevel(logrus.DebugLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:      colors,
		DisableColors:    !colors,
		DisableTimestamp: true,
	})
}
