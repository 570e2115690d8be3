//go:build !tinygo

package main

import (
	"context"
	"os"
	"os/signal"

	"periph.io/x/conn/v3/gpio"

	"github.com/oxplot/go-qc"
	"github.com/oxplot/go-qc/qcconfig"
	"github.com/oxplot/go-qc/qcdriver/periphgpio"
)

func openPort(rev qcconfig.Revision) (qc.Port, error) {
	pull := gpio.PullNoChange
	if rev.Selector.ActiveLow || rev.Buttons.ActiveLow {
		pull = gpio.PullUp
	}
	return periphgpio.Open(rev.OutputPins(), rev.InputPins(), periphgpio.Options{
		Pull:          pull,
		InvertOutputs: rev.Outputs.Invert,
	})
}

func runContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
