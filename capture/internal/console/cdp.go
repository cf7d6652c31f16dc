package console

import (
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/devlens/event"
)

// FromConsoleAPI converts a console.* call. ok is false for levels that are
// never recorded (debug, table, trace, ...).
func FromConsoleAPI(ev *proto.RuntimeConsoleAPICalled) (e event.ConsoleError, ok bool) {
	switch ev.Type {
	case proto.RuntimeConsoleAPICalledTypeError, proto.RuntimeConsoleAPICalledTypeAssert:
		e.Type = event.LevelError
	case proto.RuntimeConsoleAPICalledTypeWarning:
		e.Type = event.LevelWarn
	case proto.RuntimeConsoleAPICalledTypeInfo, proto.RuntimeConsoleAPICalledTypeLog:
		e.Type = event.LevelInfo
	default:
		return e, false
	}
	e.Message = stringifyArgs(ev.Args)
	e.Timestamp = cdpTime(float64(ev.Timestamp))
	if ev.StackTrace != nil && len(ev.StackTrace.CallFrames) > 0 {
		f := ev.StackTrace.CallFrames[0]
		e.Source = f.URL
		e.Line = f.LineNumber + 1
		e.Column = f.ColumnNumber + 1
	}
	return e, true
}

// FromException converts an uncaught exception into an error entry.
func FromException(ev *proto.RuntimeExceptionThrown) event.ConsoleError {
	e := event.ConsoleError{Type: event.LevelError, Timestamp: cdpTime(float64(ev.Timestamp))}
	d := ev.ExceptionDetails
	if d == nil {
		return e
	}
	e.Message = d.Text
	if d.Exception != nil && d.Exception.Description != "" {
		e.Message = d.Exception.Description
	}
	e.Source = d.URL
	e.Line = d.LineNumber + 1
	e.Column = d.ColumnNumber + 1
	return e
}

func stringifyArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}

// cdpTime accepts both millisecond and second epoch values.
func cdpTime(v float64) time.Time {
	switch {
	case v <= 0:
		return time.Now().UTC()
	case v < 1e11:
		return time.UnixMilli(int64(v * 1000)).UTC()
	default:
		return time.UnixMilli(int64(v)).UTC()
	}
}
