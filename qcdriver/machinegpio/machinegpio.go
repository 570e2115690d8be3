//go:build tinygo

// Package machinegpio implements GPIO backend for a QC sink on
// microcontrollers supported by TinyGo.
package machinegpio

import (
	"machine"

	"github.com/oxplot/go-qc"
	"github.com/oxplot/go-qc/qcdriver"
)

// Pins maps logical pins to machine pins.
type Pins map[qc.Pin]machine.Pin

// Open configures the given pins and returns a port made of them. Outputs
// are set low, or high if invertOutputs is set. Inputs get the internal
// pull-up if pullUp is set.
func Open(outputs, inputs Pins, pullUp, invertOutputs bool) *qcdriver.Port {
	lines := make(map[qc.Pin]qcdriver.Line, len(outputs)+len(inputs))
	for p, pin := range outputs {
		pin := pin
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		var l qcdriver.Line = qcdriver.LineFuncs{
			OutFunc: func(high bool) error {
				pin.Set(high)
				return nil
			},
		}
		if invertOutputs {
			l = qcdriver.Inverted(l)
		}
		l.Out(false)
		lines[p] = l
	}
	mode := machine.PinInput
	if pullUp {
		mode = machine.PinInputPullup
	}
	for p, pin := range inputs {
		pin := pin
		pin.Configure(machine.PinConfig{Mode: mode})
		lines[p] = qcdriver.LineFuncs{
			InFunc: func() (bool, error) {
				return pin.Get(), nil
			},
		}
	}
	return qcdriver.NewPort(lines)
}
