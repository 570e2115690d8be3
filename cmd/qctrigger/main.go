// QCTrigger negotiates the output voltage of a Quick Charge 2.0 power source
// and keeps following the voltage selector of the board.
//
// The board revision is picked with -rev, or read from a YAML file given with
// -config. With -dry-run, no hardware is touched and line changes are printed
// instead.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/oxplot/go-qc"
	"github.com/oxplot/go-qc/qcconfig"
	"github.com/oxplot/go-qc/qcdriver/sim"
	"github.com/oxplot/go-qc/qcinput"
	"github.com/oxplot/go-qc/qcpe"
)

const lineSep = "\r\n"

func main() {
	log.SetFlags(0)

	revName := flag.String("rev", qcconfig.DefaultRevision, "board revision, one of: "+strings.Join(qcconfig.Names(), ", "))
	cfgPath := flag.String("config", "", "YAML file describing the board, overrides -rev")
	dryRun := flag.Bool("dry-run", false, "print line changes instead of driving GPIO")
	flag.Parse()

	rev, err := loadRevision(*revName, *cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	var port qc.Port
	if *dryRun {
		port = dryRunPort(rev)
	} else if port, err = openPort(rev); err != nil {
		log.Fatal(err)
	}

	table, err := rev.CodeTable()
	if err != nil {
		log.Fatal(err)
	}
	sel := qcinput.NewSelector(port, rev.SelectorPins(), rev.Selector.ActiveLow, table)
	var buttons qcinput.ButtonReader
	if rev.HasButtons() {
		buttons = qcinput.NewButtons(port, rev.Buttons.ActiveLow)
	}

	fmt.Printf("Board revision %s%s", rev.Name, lineSep)
	pe := qcpe.New(port, sel, buttons, qc.SystemSleeper, rev.EngineConfig())
	pe.SetEventHandler(qcpe.NewLogger(os.Stdout, lineSep, nil))

	ctx, stop := runContext()
	defer stop()
	if err := pe.Run(ctx); err != nil && !errors.Is(err, ctx.Err()) {
		log.Fatal(err)
	}
}

func loadRevision(name, path string) (qcconfig.Revision, error) {
	if path != "" {
		return qcconfig.Load(path)
	}
	rev, err := qcconfig.Builtin(name)
	if err != nil {
		return rev, err
	}
	return rev, rev.Validate()
}

// dryRunPort returns a simulated port with all switches and buttons open.
func dryRunPort(rev qcconfig.Revision) qc.Port {
	p := sim.New()
	p.Trace(os.Stdout, lineSep)
	for _, pin := range rev.SelectorPins() {
		p.SetInput(pin, rev.Selector.ActiveLow)
	}
	p.SetInput(qc.PinButtonUp, rev.Buttons.ActiveLow)
	p.SetInput(qc.PinButtonDown, rev.Buttons.ActiveLow)
	return p
}
