// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package aflgodep

import (
	base "github.com/aflgo/go-aflgo/go-aflgo-defs"
)

// EventKind identifies a monitoring hook.
type EventKind int

const (
	EventAutomaton EventKind = iota
	EventState
	EventProposition
	EventEvaluate
)

// Event is one monitoring call.
type Event struct {
	Kind   EventKind
	Input  uint64 // automaton input
	Output int    // automaton output symbol
	Prop   string

	Globals     []uint64
	GlobalSizes []int
	Locals      []uint64

	Flag int // evaluate: TraceContinue or TraceFinalize
}

// Monitor implements the runtime hooks called by injected code.
// It records the trace of one execution.
type Monitor struct {
	// Distances maps block identities to their per-visit contribution.
	Distances map[string]uint32
	Trace     []Event
	Finalized bool
}

func NewMonitor() *Monitor {
	return &Monitor{Distances: make(map[string]uint32)}
}

// GetDistanceToTarget returns the contribution of the block named id.
func (m *Monitor) GetDistanceToTarget(id string) uint32 {
	return m.Distances[id]
}

func (m *Monitor) AutomataHandler(input uint64, output int) {
	m.Trace = append(m.Trace, Event{Kind: EventAutomaton, Input: input, Output: output})
}

func (m *Monitor) StateHandler(globals []uint64, sizes []int, locals []uint64) {
	m.Trace = append(m.Trace, Event{
		Kind:        EventState,
		Globals:     append([]uint64(nil), globals...),
		GlobalSizes: append([]int(nil), sizes...),
		Locals:      append([]uint64(nil), locals...),
	})
}

func (m *Monitor) PropositionHandler(prop string) {
	m.Trace = append(m.Trace, Event{Kind: EventProposition, Prop: prop})
}

func (m *Monitor) EvaluateTrace(flag int) {
	m.Trace = append(m.Trace, Event{Kind: EventEvaluate, Flag: flag})
	if flag == base.TraceFinalize {
		m.Finalized = true
	}
}

// Reset clears the recorded trace.
func (m *Monitor) Reset() {
	m.Trace = m.Trace[:0]
	m.Finalized = false
}
