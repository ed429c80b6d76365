package logging

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const Stacktrace = "stacktrace"

// WithStacktrace adds err and, when any error in its chain was created by pkg/errors, the innermost recorded stack
// trace to entry.
func WithStacktrace(entry *log.Entry, err error) *log.Entry {
	entry = entry.WithError(err)
	if stack := ExtractStack(err); stack != nil {
		entry = entry.WithField(Stacktrace, stack)
	}
	return entry
}

// ExtractStack returns the stack trace recorded closest to the root cause of err, or nil if there is none.
func ExtractStack(err error) errors.StackTrace {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}

	var stack errors.StackTrace
	for err != nil {
		if tracer, ok := err.(stackTracer); ok {
			stack = tracer.StackTrace()
		}
		err = errors.Unwrap(err)
	}
	return stack
}
