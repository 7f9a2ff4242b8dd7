package logging

import "strings"

// Severity orders log levels from chattiest to fatal. DEBUG traces
// per-operation store activity (snapshot loads, evictions, sweeps), INFO
// covers lifecycle events, WARN marks degradations such as a component
// falling back to memory-only persistence.
type Severity int32

const (
	DEBUG Severity = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String returns the canonical upper-case level name.
func (s Severity) String() string {
	return [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}[s]
}

// ParseSeverity maps a level name to its Severity, ignoring case so config
// files can say "warn" as well as "WARN". Unknown names fall back to INFO.
func ParseSeverity(level string) Severity {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}
