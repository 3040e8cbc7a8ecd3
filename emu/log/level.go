package log

import "gopkg.in/Sirupsen/logrus.v0"

type Level uint32

// Levels are ordered like logrus ones: lower is more severe.
const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

func (lvl Level) logrus() logrus.Level {
	return logrus.Level(lvl)
}

func (lvl Level) String() string {
	return lvl.logrus().String()
}
