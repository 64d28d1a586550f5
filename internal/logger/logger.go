// Package logger is a thin leveled wrapper around the standard log package.
// Output is discarded unless SetOutput points it somewhere; the TUI runs on
// the alternate screen, so debug logs go to a file, never stdout.
package logger

import (
	"io"
	"log"
)

var std = log.New(io.Discard, "[openports] ", log.LstdFlags|log.Lshortfile)

// SetOutput redirects all subsequent log lines to w.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

func Debugf(format string, v ...any) {
	std.Printf("[DEBUG] "+format, v...)
}

func Infof(format string, v ...any) {
	std.Printf("[INFO] "+format, v...)
}

func Errorf(format string, v ...any) {
	std.Printf("[ERROR] "+format, v...)
}
