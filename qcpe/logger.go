package qcpe

import (
	"fmt"
	"io"

	"github.com/oxplot/go-qc"
	"github.com/oxplot/go-qc/qcline"
)

// Logger is a passthrough event handler that writes a textual description of
// engine events to a given io.Writer. It's mostly used for debugging
// purposes.
type Logger struct {
	w    io.Writer
	sep  string
	next EventHandler
}

// NewLogger creates a new logger which will write to the given writer and
// optionally passes the events on to next. Line separator is written to the
// writer after each line of output. Some common values are "\n", "\r",
// "\r\n".
func NewLogger(w io.Writer, lineSep string, next EventHandler) *Logger {
	return &Logger{
		w:    w,
		sep:  lineSep,
		next: next,
	}
}

// HandleEvent implements EventHandler interface.
func (l *Logger) HandleEvent(e Event, lv qc.Level) {
	switch e {
	case EventHandshakeStarted:
		fmt.Fprint(l.w, "Handshake started")
	case EventHandshakeDone:
		fmt.Fprint(l.w, "Handshake done")
	case EventApplied:
		fmt.Fprintf(l.w, "Applied %s (%s)", lv, qcline.Encode(lv))
	case EventStepUp:
		fmt.Fprint(l.w, "Stepped up")
	case EventStepDown:
		fmt.Fprint(l.w, "Stepped down")
	default:
		fmt.Fprintf(l.w, "Unknown event %q", string(e))
	}
	fmt.Fprint(l.w, l.sep)
	if l.next != nil {
		l.next.HandleEvent(e, lv)
	}
}
