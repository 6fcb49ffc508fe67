// Package klog is the kernel's Logger collaborator (spec §6): level +
// subsystem tag + message, printed with the standard library logger the
// way every distri command prints its own diagnostics.
package klog

import (
	"fmt"
	"log"
	"os"

	"github.com/mattn/go-isatty"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

var levelName = map[Level]string{
	Debug: "DEBUG",
	Info:  "INFO",
	Warn:  "WARN",
	Error: "ERROR",
}

var levelColor = map[Level]string{
	Debug: "\x1b[36m", // cyan
	Info:  "\x1b[32m", // green
	Warn:  "\x1b[33m", // yellow
	Error: "\x1b[31m", // red
}

const colorReset = "\x1b[0m"

// Logger tags every message with a subsystem name, e.g. "rtl8139" or
// "minixfs". Color is only used when stderr is a terminal, matching how
// distri's CLI tools decide whether to colorize their own output.
type Logger struct {
	subsystem string
	min       Level
	color     bool
	out       *log.Logger
}

// New creates a Logger for subsystem, filtering out messages below min.
func New(subsystem string, min Level) *Logger {
	return &Logger{
		subsystem: subsystem,
		min:       min,
		color:     isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()),
		out:       log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.min {
		return
	}
	msg := fmt.Sprintf(format, args...)
	tag := fmt.Sprintf("[%s] %s:", levelName[level], l.subsystem)
	if l.color {
		tag = levelColor[level] + tag + colorReset
	}
	l.out.Printf("%s %s", tag, msg)
}

func (l *Logger) Debugf(format string, args ...any) { l.log(Debug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(Info, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(Warn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(Error, format, args...) }

// With returns a Logger for a child subsystem, e.g. rtl8139.With("tx").
func (l *Logger) With(child string) *Logger {
	return &Logger{
		subsystem: l.subsystem + "." + child,
		min:       l.min,
		color:     l.color,
		out:       l.out,
	}
}
