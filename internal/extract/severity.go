package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// levelPatterns are scanned in priority order; the first hit wins.
// Whole-word, case-insensitive.
var levelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(EMERGENCY|EMERG|PANIC)\b`),
	regexp.MustCompile(`(?i)\b(ALERT)\b`),
	regexp.MustCompile(`(?i)\b(CRITICAL|CRIT|FATAL)\b`),
	regexp.MustCompile(`(?i)\b(ERROR|ERR|FAIL|FAILED)\b`),
	regexp.MustCompile(`(?i)\b(WARNING|WARN|NOTICE)\b`),
	regexp.MustCompile(`(?i)\b(INFO|INFORMATION)\b`),
	regexp.MustCompile(`(?i)\b(DEBUG|TRACE)\b`),
}

var levelAliases = map[string]string{
	"EMERGENCY": "EMERGENCY", "EMERG": "EMERGENCY", "PANIC": "EMERGENCY",
	"ALERT":    "ALERT",
	"CRITICAL": "CRITICAL", "CRIT": "CRITICAL", "FATAL": "CRITICAL",
	"ERROR": "ERROR", "ERR": "ERROR", "FAIL": "ERROR", "FAILED": "ERROR",
	"WARNING": "WARN", "WARN": "WARN", "NOTICE": "WARN",
	"INFO": "INFO", "INFORMATION": "INFO",
	"DEBUG": "DEBUG", "TRACE": "DEBUG",
}

var syslogPriority = regexp.MustCompile(`<(\d+)>`)

// severityTable maps syslog severity numbers (priority mod 8) to levels.
var severityTable = map[int]string{
	0: "EMERGENCY", 1: "ALERT", 2: "CRITICAL", 3: "ERROR",
	4: "WARN", 5: "NOTICE", 6: "INFO", 7: "DEBUG",
}

// Level extracts a severity from a log message. It is a pure function of the
// message: explicit level words first, then a syslog-style <N> priority, then
// keyword heuristics, then the default.
func Level(message, defaultLevel string) string {
	for _, pattern := range levelPatterns {
		if match := pattern.FindStringSubmatch(message); match != nil {
			word := strings.ToUpper(match[1])
			if level, ok := levelAliases[word]; ok {
				return level
			}
			return defaultLevel
		}
	}

	if match := syslogPriority.FindStringSubmatch(message); match != nil {
		priority, err := strconv.Atoi(match[1])
		if err == nil {
			if level, ok := severityTable[priority%8]; ok {
				return level
			}
		}
		return defaultLevel
	}

	upper := strings.ToUpper(message)
	switch {
	case containsAny(upper, "FAIL", "ERROR", "EXCEPTION", "CRASH"):
		return "ERROR"
	case containsAny(upper, "WARN", "ALERT", "DENY", "BLOCK"):
		return "WARN"
	case containsAny(upper, "DEBUG", "TRACE"):
		return "DEBUG"
	}

	return defaultLevel
}

func containsAny(s string, words ...string) bool {
	for _, word := range words {
		if strings.Contains(s, word) {
			return true
		}
	}
	return false
}
