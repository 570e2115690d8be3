// Package qcdriver defines interfaces and helper functions for implementing
// GPIO backends for a QC sink.
//
// A backend only needs to provide single digital lines. Port assembles them
// into a qc.Port keyed by logical pin.
package qcdriver

import (
	"errors"
	"fmt"

	"github.com/oxplot/go-qc"
)

// Line defines a minimum interface to a single digital line, already
// configured for the direction it is used in.
type Line interface {

	// Out drives the line high or low. It is only called on output lines.
	Out(high bool) error

	// In reads the level of the line. It is only called on input lines.
	In() (bool, error)
}

// Port is a qc.Port built from a set of lines.
type Port struct {
	lines map[qc.Pin]Line
}

// NewPort creates a port from the given pin to line mapping. Pins without a
// line return qc.ErrUnknownPin.
func NewPort(lines map[qc.Pin]Line) *Port {
	m := make(map[qc.Pin]Line, len(lines))
	for p, l := range lines {
		m[p] = l
	}
	return &Port{lines: m}
}

// Out implements qc.Port interface.
func (p *Port) Out(pin qc.Pin, high bool) error {
	l, ok := p.lines[pin]
	if !ok {
		return fmt.Errorf("%w: %s", qc.ErrUnknownPin, pin)
	}
	if err := l.Out(high); err != nil {
		return fmt.Errorf("qcdriver: write %s: %w", pin, err)
	}
	return nil
}

// In implements qc.Port interface.
func (p *Port) In(pin qc.Pin) (bool, error) {
	l, ok := p.lines[pin]
	if !ok {
		return false, fmt.Errorf("%w: %s", qc.ErrUnknownPin, pin)
	}
	v, err := l.In()
	if err != nil {
		return false, fmt.Errorf("qcdriver: read %s: %w", pin, err)
	}
	return v, nil
}

// Has returns true if the port has a line for pin.
func (p *Port) Has(pin qc.Pin) bool {
	_, ok := p.lines[pin]
	return ok
}

type inverted struct {
	Line
}

// Inverted returns a line whose levels are the inverse of l in both
// directions.
func Inverted(l Line) Line {
	return inverted{l}
}

func (i inverted) Out(high bool) error {
	return i.Line.Out(!high)
}

func (i inverted) In() (bool, error) {
	v, err := i.Line.In()
	return !v, err
}

// LineFuncs adapts a pair of functions to Line. Either may be nil if the line
// is only used in one direction.
type LineFuncs struct {
	OutFunc func(bool) error
	InFunc  func() (bool, error)
}

// Out implements Line interface.
func (f LineFuncs) Out(high bool) error {
	if f.OutFunc == nil {
		return errNotOutput
	}
	return f.OutFunc(high)
}

// In implements Line interface.
func (f LineFuncs) In() (bool, error) {
	if f.InFunc == nil {
		return false, errNotInput
	}
	return f.InFunc()
}

var (
	errNotOutput = errors.New("qcdriver: line is not an output")
	errNotInput  = errors.New("qcdriver: line is not an input")
)
