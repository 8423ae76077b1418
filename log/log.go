package log

import "go.uber.org/zap"

var Logger = zap.NewNop()

// EnsureLogger replaces the no-op logger with a development or production one.
func EnsureLogger(development bool) {
	var err error
	if development {
		Logger, err = zap.NewDevelopment()
	} else {
		Logger, err = zap.NewProduction()
	}
	if err != nil {
		Logger = zap.NewNop()
	}
}

func Sync() {
	_ = Logger.Sync()
}
