// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package instrument

import (
	base "github.com/aflgo/go-aflgo/go-aflgo-defs"
	"github.com/aflgo/go-aflgo/internal/ir"
)

// State tracks the variables reported to the state hook: locals touched so
// far in the current function, and the globals of the module.
type State struct {
	locals    []*ir.Local
	localSet  map[*ir.Local]bool
	globals   []*ir.Global
	globalSet map[*ir.Global]bool
}

func NewState() *State {
	return &State{
		localSet:  make(map[*ir.Local]bool),
		globalSet: make(map[*ir.Global]bool),
	}
}

// ResetLocals starts a new function.
func (s *State) ResetLocals() {
	s.locals = nil
	s.localSet = make(map[*ir.Local]bool)
}

// RegisterLocals records the locals used by i.
func (s *State) RegisterLocals(i *ir.Instr) {
	for _, a := range i.Args {
		if l, ok := a.(*ir.Local); ok && !s.localSet[l] {
			s.localSet[l] = true
			s.locals = append(s.locals, l)
		}
	}
}

// RegisterGlobals records the mutable program globals of m.
func (s *State) RegisterGlobals(m *ir.Module) {
	for _, g := range m.Globals {
		if g.Synthetic || g.ReadOnly || s.globalSet[g] {
			continue
		}
		s.globalSet[g] = true
		s.globals = append(s.globals, g)
	}
}

func (s *State) Locals() []*ir.Local { return s.locals }
func (s *State) Globals() []*ir.Global { return s.globals }

// monitor scans b for event locations. The first matching instruction gets
// the hooks of the active mode; later matches in the same block get none.
// In automaton mode every return of the entry function finalizes the trace.
// It returns the injected hook kind, if any.
func (p *Pass) monitor(f *ir.Function, b *ir.Block) string {
	hook := ""
	triggered := false
	instrs := append([]*ir.Instr(nil), b.Instrs...)
	for _, i := range instrs {
		if i.Injected {
			continue
		}
		if id, ok := p.opts.Resolver.OfPos(i.Pos); ok {
			p.state.RegisterLocals(i)
			if !triggered {
				if p.opts.Automaton != nil {
					if out, hit := p.opts.Automaton[id]; hit {
						p.injectAutomaton(f, i, out)
						triggered, hook = true, "automaton"
					}
				} else if prop, hit := p.opts.Protocol[id]; hit {
					p.injectProposition(f, i, prop)
					triggered, hook = true, "protocol"
				}
			}
		}
		if f.Entry && p.opts.Automaton != nil && i.Op == ir.OpReturn {
			bld := ir.NewBuilderBefore(i)
			bld.Call(base.EvaluateHook, 0, ir.Int(32, base.TraceFinalize))
		}
	}
	return hook
}

func (p *Pass) injectAutomaton(f *ir.Function, at *ir.Instr, out int) {
	bld := ir.NewBuilderBefore(at)
	var input ir.Value = ir.Null{}
	if len(f.Params) != 0 {
		input = f.Params[0]
	}
	bld.Call(base.AutomataHook, 0, input, ir.Int(32, uint64(uint32(int32(out)))))
	p.state.RegisterGlobals(f.Module())
	p.injectState(bld)
}

func (p *Pass) injectProposition(f *ir.Function, at *ir.Instr, prop string) {
	bld := ir.NewBuilderBefore(at)
	bld.Call(base.PropositionHook, 0, &ir.Str{Val: prop})
	p.state.RegisterGlobals(f.Module())
	p.injectState(bld)
	bld.Call(base.EvaluateHook, 0, ir.Int(32, base.TraceContinue))
}

// injectState passes the current snapshot sets to the state hook:
// global values, global sizes, global count, local values, local count.
func (p *Pass) injectState(bld *ir.Builder) {
	gvals, gsizes, lvals := new(ir.Vec), new(ir.Vec), new(ir.Vec)
	for _, g := range p.state.globals {
		gvals.Elems = append(gvals.Elems, bld.Load(g, valueBits(g.Size)))
		gsizes.Elems = append(gsizes.Elems, ir.Int(32, uint64(g.Size)))
	}
	for _, l := range p.state.locals {
		lvals.Elems = append(lvals.Elems, bld.Load(l, valueBits(l.Size)))
	}
	bld.Call(base.StateHook, 0,
		gvals, gsizes, ir.Int(32, uint64(len(gvals.Elems))),
		lvals, ir.Int(32, uint64(len(lvals.Elems))))
}

// valueBits is the width used to snapshot a variable of size bytes.
func valueBits(size int) int {
	switch {
	case size <= 1:
		return 8
	case size >= 8:
		return 64
	default:
		return size * 8
	}
}
