// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package base holds the contract shared by the instrumenter, the runtime
// and the fuzzer: the coverage area layout, runtime symbol names and the
// names of the artifacts written by the extraction phase.
package base

import "strconv"

const (
	// MapSize is the number of edge-hit counters in the coverage area.
	MapSize = 64 << 10
)

// Runtime symbols referenced by injected code.
const (
	AreaPtrSym = "__afl_area_ptr"
	PrevLocSym = "__afl_prev_loc"

	DistanceHook    = "get_distance_to_target"
	AutomataHook    = "automata_handler"
	StateHook       = "state_handler"
	PropositionHook = "proposition_handler"
	EvaluateHook    = "evaluate_trace"
	ProfilingHook   = "llvm_profiling_call"
)

// Arguments of EvaluateHook.
const (
	TraceFinalize = 0
	TraceContinue = 1
)

// Extraction artifacts, relative to the output directory.
const (
	BlockNamesFile  = "BBnames.txt"
	CallEdgesFile   = "BBcalls.txt"
	FuncNamesFile   = "Fnames.txt"
	TargetFuncsFile = "Ftargets.txt"
	DotDir          = "dot-files"
)

// Layout describes the coverage area: MapSize byte counters followed by a
// distance accumulator word and a visited-block count word.
type Layout struct {
	WordSize int // bytes
}

// NativeLayout uses the word size of the host.
var NativeLayout = Layout{WordSize: strconv.IntSize / 8}

func (l Layout) DistanceOffset() int { return MapSize }
func (l Layout) CountOffset() int { return MapSize + l.WordSize }
func (l Layout) Size() int { return MapSize + 2*l.WordSize }

// WordBits is the width of the accumulator slots.
func (l Layout) WordBits() int { return l.WordSize * 8 }

// CFGFile returns the dot export name for function fn inside DotDir.
func CFGFile(fn string) string {
	return "cfg." + fn + ".dot"
}
