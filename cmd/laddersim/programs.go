// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"sort"

	"github.com/AleutianAI/laddersim/services/ladder/logic"
	"github.com/AleutianAI/laddersim/services/ladder/state"
	"github.com/AleutianAI/laddersim/services/ladder/system"
)

// demo is a built-in program the CLI can run without a config file.
type demo struct {
	name        string
	description string
	build       func() *logic.Program

	// inputs are patched before the first scan.
	inputs map[string]any

	// watch lists the tags shown by default.
	watch []string
}

var demos = map[string]demo{
	"motor":   motorDemo(),
	"blink":   blinkDemo(),
	"traffic": trafficDemo(),
}

func lookupDemo(name string) (demo, error) {
	d, ok := demos[name]
	if !ok {
		return demo{}, fmt.Errorf("unknown program %q (see 'laddersim programs')", name)
	}
	return d, nil
}

func demoNames() []string {
	names := make([]string, 0, len(demos))
	for n := range demos {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// -----------------------------------------------------------------------------
// motor: start/stop seal-in with a run timer and a start counter
// -----------------------------------------------------------------------------

func motorDemo() demo {
	start := state.BoolTag("Start")
	stop := state.BoolTag("Stop")
	motor := state.BoolTag("Motor")
	runDone := state.BoolTag("RunDone")
	runAcc := state.IntTag("RunAcc")
	starts := state.IntTag("Starts", state.Retentive())

	return demo{
		name:        "motor",
		description: "Start/stop seal-in circuit with a 3 s run timer and a retentive start counter",
		build: func() *logic.Program {
			return logic.NewProgram(
				logic.NewRung(logic.MustAny(logic.Bit(start), logic.Bit(motor)), logic.NC(stop)).
					Do(logic.Out(motor)).
					WithComment("seal-in"),
				logic.NewRung(logic.Bit(motor)).
					Do(logic.OnDelay(runDone, runAcc, 3, logic.Unit(logic.UnitSec))).
					WithComment("run timer"),
				logic.NewRung(logic.Rise(motor)).
					Do(logic.Calc(logic.Add(starts, 1), starts)).
					WithComment("count starts"),
				logic.NewRung().
					Do(logic.Copy(false, start)).
					WithComment("start is momentary"),
			).Named("motor")
		},
		inputs: map[string]any{"Start": true},
		watch:  []string{"Start", "Stop", "Motor", "RunDone", "RunAcc", "Starts"},
	}
}

// -----------------------------------------------------------------------------
// blink: two-timer oscillator driving a lamp
// -----------------------------------------------------------------------------

func blinkDemo() demo {
	onDone := state.BoolTag("OnDone")
	onAcc := state.IntTag("OnAcc")
	offDone := state.BoolTag("OffDone")
	offAcc := state.IntTag("OffAcc")
	lamp := state.BoolTag("Lamp")
	flashDone := state.BoolTag("FlashDone")
	flashes := state.IntTag("Flashes")

	return demo{
		name:        "blink",
		description: "Two-timer oscillator flashing a lamp every second, counting five flashes",
		build: func() *logic.Program {
			return logic.NewProgram(
				logic.NewRung(logic.NC(offDone)).Do(logic.OnDelay(onDone, onAcc, 500)),
				logic.NewRung(logic.Bit(onDone)).Do(logic.OnDelay(offDone, offAcc, 500)),
				logic.NewRung(logic.Bit(onDone)).Do(logic.Out(lamp)),
				logic.NewRung(logic.Bit(lamp)).Do(logic.CountUp(flashDone, flashes, 5, logic.False())),
			).Named("blink")
		},
		watch: []string{"Lamp", "OnAcc", "OffAcc", "Flashes", "FlashDone"},
	}
}

// -----------------------------------------------------------------------------
// traffic: three-phase traffic light with a phase-advance subroutine
// -----------------------------------------------------------------------------

func trafficDemo() demo {
	phase := state.IntTag("Phase")
	green := state.BoolTag("Green")
	yellow := state.BoolTag("Yellow")
	red := state.BoolTag("Red")
	gDone, gAcc := state.BoolTag("GreenDone"), state.IntTag("GreenAcc")
	yDone, yAcc := state.BoolTag("YellowDone"), state.IntTag("YellowAcc")
	rDone, rAcc := state.BoolTag("RedDone"), state.IntTag("RedAcc")
	cycles := state.IntTag("Cycles")
	firstScan := state.BoolTag(system.FirstScan)

	return demo{
		name:        "traffic",
		description: "Traffic light cycling green 4 s, yellow 1 s, red 3 s",
		build: func() *logic.Program {
			return logic.NewProgram(
				logic.NewRung(logic.Bit(firstScan)).Do(logic.Copy(0, phase)).WithComment("power-up phase"),
				logic.NewRung(logic.Eq(phase, 0)).Do(
					logic.Out(green),
					logic.OnDelay(gDone, gAcc, 4, logic.Unit(logic.UnitSec)),
				),
				logic.NewRung(logic.Eq(phase, 1)).Do(
					logic.Out(yellow),
					logic.OnDelay(yDone, yAcc, 1, logic.Unit(logic.UnitSec)),
				),
				logic.NewRung(logic.Eq(phase, 2)).Do(
					logic.Out(red),
					logic.OnDelay(rDone, rAcc, 3, logic.Unit(logic.UnitSec)),
				),
				logic.NewRung(logic.MustAny(logic.Bit(gDone), logic.Bit(yDone), logic.Bit(rDone))).
					Do(logic.Call("advance")).
					WithComment("phase timer expired"),
			).DefineSubroutine("advance",
				logic.NewRung(logic.Bit(rDone)).Do(logic.Calc(logic.Add(cycles, 1), cycles)),
				logic.NewRung().Do(logic.Calc(logic.Mod(logic.Add(phase, 1), 3), phase)),
			).Named("traffic")
		},
		watch: []string{"Phase", "Green", "Yellow", "Red", "Cycles"},
	}
}
