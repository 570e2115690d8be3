// Package qcline encodes requested voltage levels as D+/D- line states and
// drives them onto a port.
package qcline

import (
	"github.com/oxplot/go-qc"
)

// table maps each level to the line state the source decodes it from.
var table = [...]qc.LineState{
	qc.Five:       {DPlus: qc.Drive0V6, DMinus: qc.Drive0V},
	qc.Nine:       {DPlus: qc.Drive3V3, DMinus: qc.Drive0V6},
	qc.Twelve:     {DPlus: qc.Drive0V6, DMinus: qc.Drive0V6},
	qc.Twenty:     {DPlus: qc.Drive3V3, DMinus: qc.Drive3V3},
	qc.Continuous: {DPlus: qc.Drive0V6, DMinus: qc.Drive3V3},
}

// Encode returns the line state for the given level. Unrecognised levels
// encode as qc.Five, the lowest voltage the source can supply.
func Encode(l qc.Level) qc.LineState {
	if !l.Valid() {
		return table[qc.Five]
	}
	return table[l]
}

// Decode returns the level a line state encodes. ok is false if the state
// is not one of the encodings, which can happen mid-transition.
func Decode(s qc.LineState) (l qc.Level, ok bool) {
	for i, t := range table {
		if t == s {
			return qc.Level(i), true
		}
	}
	return qc.Five, false
}

// Bits returns the output levels of the two pins driving a single line.
func Bits(d qc.Drive) (lo, hi bool) {
	switch d {
	case qc.Drive0V6:
		return true, false
	case qc.Drive3V3:
		return true, true
	default:
		return false, false
	}
}

// FromBits is the inverse of Bits. The hi pin alone does not produce a
// defined level and is read as 0V.
func FromBits(lo, hi bool) qc.Drive {
	switch {
	case lo && hi:
		return qc.Drive3V3
	case lo:
		return qc.Drive0V6
	default:
		return qc.Drive0V
	}
}

// Encoder drives line states onto a port.
type Encoder struct {
	port qc.Port
}

// New creates an encoder writing to the given port.
func New(port qc.Port) *Encoder {
	return &Encoder{port: port}
}

// Apply drives the encoding of l onto the data lines.
func (e *Encoder) Apply(l qc.Level) error {
	return e.Drive(Encode(l))
}

// Drive writes s to the data lines, D+ first. The two lines are not written
// atomically and the source may briefly observe a mix of the old and new
// states.
func (e *Encoder) Drive(s qc.LineState) error {
	if err := e.DriveDPlus(s.DPlus); err != nil {
		return err
	}
	return e.DriveDMinus(s.DMinus)
}

// DriveDPlus writes d to the D+ line only.
func (e *Encoder) DriveDPlus(d qc.Drive) error {
	return e.line(qc.PinDPlus0V6, qc.PinDPlus3V3, d)
}

// DriveDMinus writes d to the D- line only.
func (e *Encoder) DriveDMinus(d qc.Drive) error {
	return e.line(qc.PinDMinus0V6, qc.PinDMinus3V3, d)
}

// line writes the pins of a single line in the order that never leaves the
// hi pin set on its own.
func (e *Encoder) line(loPin, hiPin qc.Pin, d qc.Drive) error {
	lo, hi := Bits(d)
	first, firstV, second, secondV := hiPin, hi, loPin, lo
	if lo {
		first, firstV, second, secondV = loPin, lo, hiPin, hi
	}
	if err := e.port.Out(first, firstV); err != nil {
		return err
	}
	return e.port.Out(second, secondV)
}
