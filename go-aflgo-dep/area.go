// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package aflgodep models the runtime side of the instrumentation: the
// coverage area laid out as in package base and the hooks called by
// injected code. Instrumented code can be executed against it.
package aflgodep

import (
	"encoding/binary"

	base "github.com/aflgo/go-aflgo/go-aflgo-defs"
)

// Area is the coverage area: edge counters, distance and count slots.
type Area struct {
	Layout  base.Layout
	Mem     []byte
	PrevLoc uint32
}

// NewArea allocates a zeroed area.
func NewArea(l base.Layout) *Area {
	return &Area{Layout: l, Mem: make([]byte, l.Size())}
}

// Hit records the edge from the previous block to the block tagged cur.
// Counters wrap around.
func (a *Area) Hit(cur uint32) {
	a.Mem[(a.PrevLoc^cur)%base.MapSize]++
	a.PrevLoc = cur >> 1
}

// AddDistance accumulates the distance contribution of a visited block.
func (a *Area) AddDistance(d uint32) {
	a.putWord(a.Layout.DistanceOffset(), a.Distance()+uint64(d))
	a.putWord(a.Layout.CountOffset(), a.Count()+1)
}

// Distance is the accumulated distance of the current execution.
func (a *Area) Distance() uint64 {
	return a.word(a.Layout.DistanceOffset())
}

// Count is the number of visited blocks with a distance.
func (a *Area) Count() uint64 {
	return a.word(a.Layout.CountOffset())
}

// Counter returns the hit counter at idx.
func (a *Area) Counter(idx int) byte {
	return a.Mem[idx]
}

// Reset clears the area between executions.
func (a *Area) Reset() {
	for i := range a.Mem {
		a.Mem[i] = 0
	}
	a.PrevLoc = 0
}

// Word reads the native word at off.
func (a *Area) Word(off int) uint64 {
	return a.word(off)
}

// PutWord writes the native word at off.
func (a *Area) PutWord(off int, v uint64) {
	a.putWord(off, v)
}

func (a *Area) word(off int) uint64 {
	if a.Layout.WordSize == 4 {
		return uint64(binary.NativeEndian.Uint32(a.Mem[off:]))
	}
	return binary.NativeEndian.Uint64(a.Mem[off:])
}

func (a *Area) putWord(off int, v uint64) {
	if a.Layout.WordSize == 4 {
		binary.NativeEndian.PutUint32(a.Mem[off:], uint32(v))
		return
	}
	binary.NativeEndian.PutUint64(a.Mem[off:], v)
}
