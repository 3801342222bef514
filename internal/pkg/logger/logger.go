// Package logger provides structured JSON logging with email redaction.
//
// Log entries are single-line JSON objects written to stderr. Fields are
// passed as alternating key/value pairs; values in email-bearing fields are
// redacted before serialization so subscriber addresses never land in logs.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger writes structured JSON log entries.
type Logger struct {
	mu        sync.Mutex
	out       io.Writer
	level     Level
	redactPII bool
}

var std = &Logger{out: os.Stderr, level: INFO, redactPII: true}

// New returns a logger writing to out at the given level, with redaction on.
func New(out io.Writer, level Level) *Logger {
	return &Logger{out: out, level: level, redactPII: true}
}

// SetLevel sets the minimum level for the package-level logger.
func SetLevel(l Level) { std.level = l }

// SetRedactPII toggles email redaction on the package-level logger.
func SetRedactPII(on bool) { std.redactPII = on }

// Debug emits a DEBUG entry on the package-level logger.
func Debug(msg string, fields ...any) { std.Log(DEBUG, msg, fields...) }

// Info emits an INFO entry on the package-level logger.
func Info(msg string, fields ...any) { std.Log(INFO, msg, fields...) }

// Warn emits a WARN entry on the package-level logger.
func Warn(msg string, fields ...any) { std.Log(WARN, msg, fields...) }

// Error emits an ERROR entry on the package-level logger.
func Error(msg string, fields ...any) { std.Log(ERROR, msg, fields...) }

// Log writes one entry if level clears the logger's threshold. Fields are
// alternating key/value pairs; a trailing odd key is ignored.
func (l *Logger) Log(level Level, msg string, fields ...any) {
	if level < l.level {
		return
	}

	entry := map[string]string{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": level.String(),
		"msg":   msg,
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fmt.Sprintf("%v", fields[i+1])
		if l.redactPII {
			val = redactField(key, val)
		}
		entry[key] = val
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	l.mu.Lock()
	fmt.Fprintln(l.out, string(line))
	l.mu.Unlock()
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// redactField masks emails in a field value. Fields whose key mentions
// email/recipient are redacted wholesale; other values only have embedded
// addresses masked.
func redactField(key, val string) string {
	k := strings.ToLower(key)
	if strings.Contains(k, "email") || strings.Contains(k, "recipient") {
		return RedactEmail(val)
	}
	return emailPattern.ReplaceAllStringFunc(val, RedactEmail)
}
