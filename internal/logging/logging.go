// Package logging provides leveled, named loggers for the logsieve service.
//
// Every component asks for a logger by name:
//
//	logger := logging.GetLogger("pipeline.processor")
//	logger.Info("ingested %d lines", n)
//
// Initialize sets the default level once at startup and optionally a set of
// per-package overrides, so a single component can be turned up to debug
// without flooding the rest:
//
//	logging.Initialize("info", map[string]string{
//	    "storage.*": "debug",
//	    "anomaly":   "warn",
//	})
//
// Override keys are either exact logger names or prefix patterns ending in
// ".*". The most specific (longest) matching pattern wins; loggers without a
// match use the default level.
//
// Loggers are immutable. WithField, WithFields, WithContext, and WithName
// return new instances, so a logger may be shared across goroutines freely.
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Level is the message severity. Messages below the effective level for a
// logger's name are dropped.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l Level) String() string {
	if l < DEBUG || l > FATAL {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel converts a level name to a Level, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	case "FATAL":
		return FATAL, nil
	}
	return 0, fmt.Errorf("invalid level: %s (must be DEBUG, INFO, WARN, ERROR, or FATAL)", s)
}

type settings struct {
	defaultLevel Level
	overrides    map[string]Level
}

var (
	mu       sync.RWMutex
	current  = settings{defaultLevel: INFO}
	exitFunc = os.Exit // swapped out in Fatal tests
)

// Initialize sets the default level and per-package overrides for all loggers,
// existing and future. An unknown default level name falls back to INFO; an
// unknown override level is an error.
func Initialize(levelStr string, packageLevels ...map[string]string) error {
	level, err := ParseLevel(levelStr)
	if err != nil {
		level = INFO
	}

	overrides := make(map[string]Level)
	if len(packageLevels) > 0 {
		for name, value := range packageLevels[0] {
			parsed, err := ParseLevel(value)
			if err != nil {
				return fmt.Errorf("invalid log level for package %q: %w", name, err)
			}
			overrides[name] = parsed
		}
	}

	mu.Lock()
	current = settings{defaultLevel: level, overrides: overrides}
	mu.Unlock()
	return nil
}

// GetLogger returns a logger emitting under the given name. The effective
// level is resolved against the global settings on every call site, so
// Initialize may run before or after.
func GetLogger(name string) *Logger {
	return &Logger{name: name}
}

// effectiveLevel resolves the threshold for a logger name: exact override,
// then the longest matching ".*" prefix pattern, then the default.
func effectiveLevel(name string) Level {
	mu.RLock()
	defer mu.RUnlock()

	if level, ok := current.overrides[name]; ok {
		return level
	}

	bestLen := -1
	best := current.defaultLevel
	for pattern, level := range current.overrides {
		if !strings.HasSuffix(pattern, ".*") {
			continue
		}
		prefix := strings.TrimSuffix(pattern, ".*")
		if strings.HasPrefix(name, prefix+".") && len(pattern) > bestLen {
			bestLen = len(pattern)
			best = level
		}
	}
	return best
}
