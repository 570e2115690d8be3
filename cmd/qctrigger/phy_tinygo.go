//go:build tinygo

package main

import (
	"context"
	"fmt"
	"machine"
	"strconv"
	"strings"

	"github.com/oxplot/go-qc"
	"github.com/oxplot/go-qc/qcconfig"
	"github.com/oxplot/go-qc/qcdriver/machinegpio"
)

// openPort maps pin names of the form "GPIOn" to machine pin n, which is the
// numbering used by RP2040 boards.
func openPort(rev qcconfig.Revision) (qc.Port, error) {
	outputs, err := machinePins(rev.OutputPins())
	if err != nil {
		return nil, err
	}
	inputs, err := machinePins(rev.InputPins())
	if err != nil {
		return nil, err
	}
	pullUp := rev.Selector.ActiveLow || rev.Buttons.ActiveLow
	return machinegpio.Open(outputs, inputs, pullUp, rev.Outputs.Invert), nil
}

func machinePins(names map[qc.Pin]string) (machinegpio.Pins, error) {
	pins := make(machinegpio.Pins, len(names))
	for p, name := range names {
		n, err := strconv.Atoi(strings.TrimPrefix(name, "GPIO"))
		if err != nil || !strings.HasPrefix(name, "GPIO") {
			return nil, fmt.Errorf("bad pin name %q for %s", name, p)
		}
		pins[p] = machine.Pin(n)
	}
	return pins, nil
}

func runContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}
