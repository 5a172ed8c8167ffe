// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package instrument implements the instrumentation phase: coverage and
// distance feedback for every sampled block, plus automaton and protocol
// monitoring hooks when event maps are supplied.
package instrument

import (
	"github.com/sirupsen/logrus"

	base "github.com/aflgo/go-aflgo/go-aflgo-defs"
	"github.com/aflgo/go-aflgo/internal/distance"
	"github.com/aflgo/go-aflgo/internal/events"
	"github.com/aflgo/go-aflgo/internal/identity"
	"github.com/aflgo/go-aflgo/internal/ir"
	"github.com/aflgo/go-aflgo/internal/sampling"
)

// Options configures one instrumentation run.
type Options struct {
	Resolver *identity.Resolver
	Sampler  *sampling.Controller
	Layout   base.Layout

	// Distances is nil for plain coverage instrumentation.
	Distances *distance.Map
	// Automaton takes precedence over Protocol when both are set.
	Automaton events.AutomatonMap
	Protocol  events.ProtocolMap

	Log *logrus.Entry
}

// Pass instruments modules. A Pass keeps the global snapshot registry
// across the functions of a module.
type Pass struct {
	opts  Options
	state *State

	area    *ir.Global
	prevLoc *ir.Global
	report  *Report
}

func New(opts Options) *Pass {
	if opts.Resolver == nil {
		opts.Resolver = identity.NewResolver()
	}
	if opts.Layout.WordSize == 0 {
		opts.Layout = base.NativeLayout
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pass{opts: opts, state: NewState()}
}

func (p *Pass) monitoring() bool {
	return p.opts.Automaton != nil || p.opts.Protocol != nil
}

// Run instruments m in place.
func (p *Pass) Run(m *ir.Module) *Report {
	p.area = m.GetOrInsertGlobal(base.AreaPtrSym, p.opts.Layout.WordSize, false)
	p.prevLoc = m.GetOrInsertGlobal(base.PrevLocSym, 4, true)
	p.report = newReport(m, &p.opts)
	for _, f := range m.Funcs {
		p.state.ResetLocals()
		fr := FuncReport{Name: f.Name}
		for _, b := range f.Blocks {
			fr.Blocks = append(fr.Blocks, p.block(f, b))
		}
		p.report.Functions = append(p.report.Functions, fr)
	}
	return p.report
}

func (p *Pass) block(f *ir.Function, b *ir.Block) BlockReport {
	id, named := p.opts.Resolver.Resolve(b)
	br := BlockReport{Index: b.Index, ID: string(id), Distance: distance.Unknown}

	// Monitoring hooks are placed before the selective decision below,
	// so they fire on blocks that get no coverage.
	if p.monitoring() {
		br.Hook = p.monitor(f, b)
		if br.Hook != "" {
			p.report.Hooks++
		}
	}

	dist := distance.Unknown
	if p.opts.Distances != nil {
		switch {
		case !named || !p.opts.Distances.Known(id):
			if p.opts.Sampler.Selective() {
				br.Skipped = "selective"
				p.report.Skipped++
				return br
			}
		case p.opts.Sampler.ApplyDistance():
			dist = p.opts.Distances.Lookup(id)
		}
	}

	if !p.opts.Sampler.Instrument() {
		br.Skipped = "ratio"
		p.report.SampledOut++
		return br
	}

	cur := p.opts.Sampler.Tag()
	bld := ir.NewBuilder(b)
	areaPtr := p.injectCoverage(bld, cur)
	br.Tag = &cur
	p.report.Instrumented++
	if dist >= 0 {
		p.injectDistance(bld, areaPtr, id)
		br.Distance = dist
		p.report.WithDistance++
	}
	return br
}

func noSanitize(i *ir.Instr) *ir.Instr {
	i.NoSanitize = true
	return i
}

// injectCoverage increments the counter of the edge from the previous block
// and makes this block the previous one. It returns the loaded area pointer.
func (p *Pass) injectCoverage(bld *ir.Builder, cur uint32) *ir.Instr {
	prev := noSanitize(bld.Load(p.prevLoc, 32))
	prevCasted := bld.ZExt(prev, 32)

	areaPtr := noSanitize(bld.Load(p.area, p.opts.Layout.WordBits()))
	idx := bld.Index(areaPtr, bld.Xor(prevCasted, ir.Int(32, uint64(cur)), 32))

	counter := noSanitize(bld.Load(idx, 8))
	incr := bld.Add(counter, ir.Int(8, 1), 8)
	noSanitize(bld.Store(incr, idx))

	noSanitize(bld.Store(ir.Int(32, uint64(cur>>1)), p.prevLoc))
	return areaPtr
}

// injectDistance adds the runtime distance of block id to the distance slot
// and bumps the visited count slot.
func (p *Pass) injectDistance(bld *ir.Builder, areaPtr *ir.Instr, id identity.ID) {
	w := p.opts.Layout.WordBits()
	ret := bld.Call(base.DistanceHook, 32, &ir.Str{Val: string(id)})

	distPtr := bld.Index(areaPtr, ir.Int(w, uint64(p.opts.Layout.DistanceOffset())))
	dist := noSanitize(bld.Load(distPtr, w))
	incr := bld.Add(dist, bld.ZExt(ret, w), w)
	noSanitize(bld.Store(incr, distPtr))

	cntPtr := bld.Index(areaPtr, ir.Int(w, uint64(p.opts.Layout.CountOffset())))
	cnt := noSanitize(bld.Load(cntPtr, w))
	incrCnt := bld.Add(cnt, ir.Int(w, 1), w)
	noSanitize(bld.Store(incrCnt, cntPtr))
}
