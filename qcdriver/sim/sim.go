// Package sim implements an in-memory qc.Port. It is used in tests and for
// dry runs on machines without the hardware attached.
package sim

import (
	"fmt"
	"io"
	"sync"

	"github.com/oxplot/go-qc"
	"github.com/oxplot/go-qc/qcline"
)

// Write is a single recorded output write.
type Write struct {
	Pin  qc.Pin
	High bool
}

// Port is a simulated port. Outputs remember the last value written to them.
// Inputs return a fixed level set with SetInput, or a scripted sequence set
// with Script.
//
// Port is safe for concurrent use so tests may change inputs while an engine
// is running.
type Port struct {
	mu      sync.Mutex
	outputs map[qc.Pin]bool
	inputs  map[qc.Pin]bool
	scripts map[qc.Pin][]bool
	reads   map[qc.Pin]int
	writes  []Write
	trace   io.Writer
	sep     string
}

// New creates a port with all lines low.
func New() *Port {
	return &Port{
		outputs: map[qc.Pin]bool{},
		inputs:  map[qc.Pin]bool{},
		scripts: map[qc.Pin][]bool{},
		reads:   map[qc.Pin]int{},
	}
}

// Trace makes the port write a line describing every output change and the
// resulting data line state to w. Line separator is written after each line.
func (p *Port) Trace(w io.Writer, lineSep string) {
	p.mu.Lock()
	p.trace = w
	p.sep = lineSep
	p.mu.Unlock()
}

// SetInput sets the raw level returned for pin and clears any script for it.
func (p *Port) SetInput(pin qc.Pin, high bool) {
	p.mu.Lock()
	p.inputs[pin] = high
	delete(p.scripts, pin)
	p.mu.Unlock()
}

// Script sets the raw levels returned by successive reads of pin. Once the
// script is consumed, the last value is returned indefinitely.
func (p *Port) Script(pin qc.Pin, levels ...bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(levels) == 0 {
		delete(p.scripts, pin)
		return
	}
	p.scripts[pin] = append([]bool(nil), levels...)
	p.inputs[pin] = levels[len(levels)-1]
}

// Reads returns how many times pin has been read.
func (p *Port) Reads(pin qc.Pin) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads[pin]
}

// Output returns the last level written to pin.
func (p *Port) Output(pin qc.Pin) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outputs[pin]
}

// LineState returns the current state of the data lines.
func (p *Port) LineState() qc.LineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lineState()
}

func (p *Port) lineState() qc.LineState {
	return qc.LineState{
		DPlus:  qcline.FromBits(p.outputs[qc.PinDPlus0V6], p.outputs[qc.PinDPlus3V3]),
		DMinus: qcline.FromBits(p.outputs[qc.PinDMinus0V6], p.outputs[qc.PinDMinus3V3]),
	}
}

// Writes returns a copy of all output writes so far.
func (p *Port) Writes() []Write {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Write(nil), p.writes...)
}

// Reset forgets recorded writes and read counts. Line levels are kept.
func (p *Port) Reset() {
	p.mu.Lock()
	p.writes = nil
	p.reads = map[qc.Pin]int{}
	p.mu.Unlock()
}

// Out implements qc.Port interface.
func (p *Port) Out(pin qc.Pin, high bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	changed := p.outputs[pin] != high
	p.outputs[pin] = high
	p.writes = append(p.writes, Write{Pin: pin, High: high})
	if p.trace != nil && changed {
		fmt.Fprintf(p.trace, "%s -> %t (%s)%s", pin, high, p.lineState(), p.sep)
	}
	return nil
}

// In implements qc.Port interface.
func (p *Port) In(pin qc.Pin) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads[pin]++
	if s := p.scripts[pin]; len(s) > 0 {
		v := s[0]
		if len(s) == 1 {
			delete(p.scripts, pin)
		} else {
			p.scripts[pin] = s[1:]
		}
		return v, nil
	}
	return p.inputs[pin], nil
}
