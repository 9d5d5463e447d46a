package log

import (
	"fmt"
	"io"
	"sync"

	medErrors "github.com/ezoic/medscore/pkg/errors"
)

var (
	providerMu     sync.RWMutex
	globalProvider LoggerProvider
)

// SetupLogger installs a zerolog provider at the given level ("debug", "info",
// "warn", "error") as the process-wide provider and routes library warnings to it.
func SetupLogger(loglevel string) {
	SetupLoggerWithWriter(nil, loglevel)
}

// SetupLoggerWithWriter is SetupLogger with an explicit destination; nil means stderr.
func SetupLoggerWithWriter(w io.Writer, loglevel string) {
	var p *ZerologProvider
	if w == nil {
		p = NewZerologProvider(ToLogLevel(loglevel))
	} else {
		p = NewZerologProviderWithWriter(w, ToLogLevel(loglevel))
	}
	SetProvider(p)
	medErrors.SetZerologWarnFunc(p.warnSink)
}

// ToLogLevel parses a level name. It panics on unknown names; validate user input
// with ParseLevel first.
func ToLogLevel(level string) Level {
	l, err := ParseLevel(level)
	if err != nil {
		panic(err.Error())
	}
	return l
}

// ParseLevel parses a level name.
func ParseLevel(level string) (Level, error) {
	switch level {
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %q", level)
	}
}

// SetProvider replaces the process-wide provider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	globalProvider = p
}

// Provider returns the process-wide provider, creating an info-level zerolog
// provider on first use.
func Provider() LoggerProvider {
	providerMu.RLock()
	p := globalProvider
	providerMu.RUnlock()
	if p != nil {
		return p
	}

	providerMu.Lock()
	defer providerMu.Unlock()
	if globalProvider == nil {
		globalProvider = NewZerologProvider(ToLogLevel("info"))
	}
	return globalProvider
}

// GetLogger returns the default logger of the process-wide provider.
func GetLogger() Logger {
	return Provider().GetLogger()
}

// GetLoggerWithName returns a component logger from the process-wide provider.
func GetLoggerWithName(name string) Logger {
	return Provider().GetLoggerWithName(name)
}
