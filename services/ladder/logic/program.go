// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logic

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/laddersim/services/ladder/state"
)

// Program is an ordered list of main rungs plus named subroutines.
//
// Description:
//
//	Main rungs run every scan in order. Subroutines run only when a Call
//	instruction reaches them. Program implements SubroutineResolver.
//
// Thread Safety: Build on one goroutine. A finished Program is read-only and
// may be shared between runners.
type Program struct {
	name  string
	main  []*Rung
	subs  map[string][]*Rung
	order []string
}

// NewProgram creates a program from its main rungs.
func NewProgram(rungs ...*Rung) *Program {
	return &Program{
		main: append([]*Rung(nil), rungs...),
		subs: make(map[string][]*Rung),
	}
}

// Named sets a display name and returns the program.
func (p *Program) Named(name string) *Program {
	p.name = name
	return p
}

// Name returns the display name, or "main".
func (p *Program) Name() string {
	if p.name == "" {
		return "main"
	}
	return p.name
}

// Add appends main rungs and returns the program.
func (p *Program) Add(rungs ...*Rung) *Program {
	p.main = append(p.main, rungs...)
	return p
}

// DefineSubroutine registers rungs under name, replacing any earlier
// definition, and returns the program.
func (p *Program) DefineSubroutine(name string, rungs ...*Rung) *Program {
	if _, ok := p.subs[name]; !ok {
		p.order = append(p.order, name)
	}
	p.subs[name] = append([]*Rung(nil), rungs...)
	return p
}

// Rungs returns the main rungs.
func (p *Program) Rungs() []*Rung { return p.main }

// LookupSubroutine implements SubroutineResolver.
func (p *Program) LookupSubroutine(name string) ([]*Rung, bool) {
	rungs, ok := p.subs[name]
	return rungs, ok
}

// SubroutineNames returns subroutine names in definition order.
func (p *Program) SubroutineNames() []string { return append([]string(nil), p.order...) }

// Tags returns every tag the program references, main rungs first then
// subroutines in definition order, without duplicates.
func (p *Program) Tags() []state.Tag {
	seen := make(map[string]bool)
	var out []state.Tag
	collect := func(rungs []*Rung) {
		for _, r := range rungs {
			if r == nil {
				continue
			}
			for _, t := range r.Tags() {
				if !seen[t.Name] {
					seen[t.Name] = true
					out = append(out, t)
				}
			}
		}
	}
	collect(p.main)
	for _, name := range p.order {
		collect(p.subs[name])
	}
	return out
}

// Validate checks every instruction and Call target.
//
// Description:
//
//	Reports malformed instructions (wrong tag kinds, mismatched ranges,
//	invalid literals), calls to undefined subroutines and tags referenced
//	with conflicting metadata. All problems are joined into one error.
//
// Outputs:
//   - error: nil when the program is runnable.
func (p *Program) Validate() error {
	var errs []error
	check := func(where string, rungs []*Rung) {
		for i, r := range rungs {
			if r == nil {
				errs = append(errs, fmt.Errorf("%s rung %d: %w: nil rung", where, i, ErrInvalidInstruction))
				continue
			}
			if err := r.check(); err != nil {
				errs = append(errs, fmt.Errorf("%s rung %d: %w", where, i, err))
			}
			for _, name := range r.calls() {
				if _, ok := p.subs[name]; !ok {
					errs = append(errs, fmt.Errorf("%s rung %d: %w: %q", where, i, ErrUnknownSubroutine, name))
				}
			}
		}
	}
	check(p.Name(), p.main)
	for _, name := range p.order {
		check("subroutine "+name, p.subs[name])
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	reg := state.NewRegistry()
	for _, t := range p.allRefs() {
		if err := reg.Register(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// allRefs returns every tag reference including duplicates.
func (p *Program) allRefs() []state.Tag {
	var out []state.Tag
	visit := func(rungs []*Rung) {
		for _, r := range rungs {
			r.walk(func(n *Rung) {
				for _, c := range n.conds {
					out = append(out, c.refs()...)
				}
				for _, it := range n.items {
					if it.instr != nil {
						out = append(out, it.instr.refs()...)
					}
				}
			})
		}
	}
	visit(p.main)
	for _, name := range p.order {
		visit(p.subs[name])
	}
	return out
}

// String renders the program as a listing.
func (p *Program) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "PROGRAM %s\n", p.Name())
	for i, r := range p.main {
		fmt.Fprintf(&b, "[%d] %s\n", i, r)
	}
	names := p.SubroutineNames()
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "SUB %s\n", name)
		for i, r := range p.subs[name] {
			fmt.Fprintf(&b, "  [%d] %s\n", i, r)
		}
	}
	return b.String()
}
