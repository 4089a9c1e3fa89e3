package csm

import (
	"log"
	"os"
)

// Logger is the leveled logging contract used for fit progress and fatal
// conditions. Library code never prints unconditionally; callers that want
// teacher-style fmt.Println progress output can pass StdLogger at LevelDebug.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Level controls which of Debugf/Infof/Errorf actually write output.
type Level int

const (
	LevelError Level = iota
	LevelInfo
	LevelDebug
)

// StdLogger wraps the standard library logger with level filtering. A CSM
// built without a Logger does not use it: it discards all log output.
type StdLogger struct {
	level Level
	inner *log.Logger
}

// NewStdLogger returns a StdLogger writing to stderr at the given level.
func NewStdLogger(level Level) *StdLogger {
	return &StdLogger{level: level, inner: log.New(os.Stderr, "", log.LstdFlags)}
}

func (l *StdLogger) Debugf(format string, args ...interface{}) {
	if l.level >= LevelDebug {
		l.inner.Printf("DEBUG "+format, args...)
	}
}

func (l *StdLogger) Infof(format string, args ...interface{}) {
	if l.level >= LevelInfo {
		l.inner.Printf("INFO  "+format, args...)
	}
}

func (l *StdLogger) Errorf(format string, args ...interface{}) {
	if l.level >= LevelError {
		l.inner.Printf("ERROR "+format, args...)
	}
}

// noopLogger discards everything; used when a CSM is constructed without an
// explicit Logger so library code never has a nil-pointer special case.
type noopLogger struct{}

func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Errorf(string, ...interface{}) {}
