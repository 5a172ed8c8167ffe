// Copyright 2019 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package pcg implements a 32 bit PRNG with a 64 bit period: pcg xsh rr 64 32.
// See https://www.pcg-random.org/ for more information.
// A Rand draws the edge tags and sampling decisions of one instrumentation
// run. Runs are reproducible only when the seed is fixed.
package pcg

import (
	"math/bits"
	"time"
)

const (
	multiplier uint64 = 6364136223846793005
	increment  uint64 = 1442695040888963407
)

// Rand is a PRNG.
// It should not be copied or shared.
// No Rand methods are concurrency safe.
type Rand struct {
	noCopy noCopy // help avoid mistakes: ask vet to ensure that we don't make a copy
	state  uint64
	inc    uint64
}

// New returns a Rand seeded from the clock.
func New() *Rand {
	return NewSeeded(uint64(time.Now().UnixNano()))
}

// NewSeeded returns a Rand whose sequence is fully determined by seed.
func NewSeeded(seed uint64) *Rand {
	r := &Rand{inc: increment | 1}
	r.step()
	r.state += seed
	r.step()
	return r
}

func (r *Rand) step() {
	r.state *= multiplier
	r.state += r.inc
}

// Uint32 returns a pseudo-random uint32.
func (r *Rand) Uint32() uint32 {
	x := r.state
	r.step()
	return bits.RotateLeft32(uint32(((x>>18)^x)>>27), -int(x>>59))
}

// Intn returns a pseudo-random number in [0, n).
// n must fit in a uint32.
func (r *Rand) Intn(n int) int {
	if int(uint32(n)) != n {
		panic("large Intn")
	}
	return int(r.Uint32n(uint32(n)))
}

// Uint32n returns a pseudo-random number in [0, n).
//
// For implementation details, see:
// https://lemire.me/blog/2016/06/27/a-fast-alternative-to-the-modulo-reduction
// https://lemire.me/blog/2016/06/30/fast-random-shuffling
func (r *Rand) Uint32n(n uint32) uint32 {
	v := r.Uint32()
	prod := uint64(v) * uint64(n)
	low := uint32(prod)
	if low < n {
		thresh := uint32(-int32(n)) % n
		for low < thresh {
			v = r.Uint32()
			prod = uint64(v) * uint64(n)
			low = uint32(prod)
		}
	}
	return uint32(prod >> 32)
}

// noCopy may be embedded into structs which must not be copied
// after the first use.
//
// See https://golang.org/issues/8005#issuecomment-190753527
// for details.
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
