package logging

import (
	"fmt"
	"io"
	"strings"
)

// EarlyLog reports flag and config problems before the structured logger
// is built from the config it failed to load.
type EarlyLog struct {
	w io.Writer
}

func NewEarlyLog(w io.Writer) *EarlyLog {
	return &EarlyLog{w: w}
}

func (l *EarlyLog) Error(format string, args ...any) {
	l.print("error", format, args...)
}

func (l *EarlyLog) Warn(format string, args ...any) {
	l.print("warn", format, args...)
}

// print prefixes every line of the message; joined errors span several.
func (l *EarlyLog) print(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	for _, line := range strings.Split(strings.TrimRight(msg, "\n"), "\n") {
		fmt.Fprintf(l.w, "logtrigger: %s: %s\n", level, line)
	}
}
