// Package qcinput reads the human inputs of a QC sink: the voltage selector
// switch and the up/down buttons used in continuous mode.
package qcinput

import (
	"github.com/oxplot/go-qc"
)

// CodeTable maps a selector code to the level it requests. Codes missing
// from the table request qc.Five.
type CodeTable map[uint8]qc.Level

// DefaultCodeTable is the code table of a selector with switches pulling to
// ground: no switch closed requests 5V.
var DefaultCodeTable = CodeTable{
	0: qc.Five,
	1: qc.Nine,
	2: qc.Twelve,
	3: qc.Twenty,
	4: qc.Continuous,
}

// Lookup returns the level for code, falling back to qc.Five for unknown
// codes.
func (t CodeTable) Lookup(code uint8) qc.Level {
	if l, ok := t[code]; ok && l.Valid() {
		return l
	}
	return qc.Five
}

// Selector reads the voltage selector. The selector is a set of switches,
// each contributing one bit of the code. It is assumed to be mechanically
// stable at the poll interval, so reads are not debounced.
type Selector struct {
	port      qc.Port
	pins      []qc.Pin
	activeLow bool
	table     CodeTable
}

// NewSelector creates a selector reading the given pins, least significant
// bit first. If activeLow is set, a low pin reads as a 1 bit. A nil table
// uses DefaultCodeTable.
func NewSelector(port qc.Port, pins []qc.Pin, activeLow bool, table CodeTable) *Selector {
	if table == nil {
		table = DefaultCodeTable
	}
	return &Selector{
		port:      port,
		pins:      append([]qc.Pin(nil), pins...),
		activeLow: activeLow,
		table:     table,
	}
}

// Code reads the selector pins and returns the selector code.
func (s *Selector) Code() (uint8, error) {
	var c uint8
	for i, p := range s.pins {
		v, err := s.port.In(p)
		if err != nil {
			return 0, err
		}
		if v != s.activeLow {
			c |= 1 << i
		}
	}
	return c, nil
}

// Read returns the level requested by the selector. A selector which can't
// be read requests qc.Five.
func (s *Selector) Read() qc.Level {
	c, err := s.Code()
	if err != nil {
		return qc.Five
	}
	return s.table.Lookup(c)
}

// Button identifies one of the continuous mode buttons.
type Button uint8

// Buttons of continuous mode.
const (
	ButtonUp Button = iota
	ButtonDown
)

func (b Button) String() string {
	switch b {
	case ButtonUp:
		return "up"
	case ButtonDown:
		return "down"
	default:
		return "INVALID"
	}
}

// ButtonReader is an interface that wraps the method Pressed.
type ButtonReader interface {
	// Pressed returns true if the button is currently held down.
	Pressed(Button) bool
}

// Buttons reads momentary push buttons. It has no state: debouncing and
// autorepeat are left to the caller, which polls.
type Buttons struct {
	port      qc.Port
	pins      [2]qc.Pin
	activeLow bool
}

// NewButtons creates a button reader on the qc.PinButtonUp and
// qc.PinButtonDown pins of port.
func NewButtons(port qc.Port, activeLow bool) *Buttons {
	return &Buttons{
		port:      port,
		pins:      [2]qc.Pin{ButtonUp: qc.PinButtonUp, ButtonDown: qc.PinButtonDown},
		activeLow: activeLow,
	}
}

// Pressed implements ButtonReader interface. A button that can't be read
// is reported as released.
func (b *Buttons) Pressed(btn Button) bool {
	if int(btn) >= len(b.pins) {
		return false
	}
	v, err := b.port.In(b.pins[btn])
	if err != nil {
		return false
	}
	return v != b.activeLow
}

// NoButtons is a ButtonReader for hardware without buttons.
type NoButtons struct{}

// Pressed implements ButtonReader interface.
func (NoButtons) Pressed(Button) bool { return false }
