// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package sampling decides, block by block, which instrumentation is
// injected: the coverage ratio, the distance ratio, selective mode and
// the random edge tags.
package sampling

import (
	base "github.com/aflgo/go-aflgo/go-aflgo-defs"
)

// Source is a uniform random source. *pcg.Rand implements it.
type Source interface {
	Intn(n int) int
}

// Controller combines the three gates of a run.
// Ratios are percentages: 100 always passes, 0 never does.
type Controller struct {
	src           Source
	instRatio     int
	distanceRatio int
	selective     bool
}

func New(src Source, instRatio, distanceRatio int, selective bool) *Controller {
	return &Controller{
		src:           src,
		instRatio:     instRatio,
		distanceRatio: distanceRatio,
		selective:     selective,
	}
}

// Instrument draws the coverage gate for one block.
func (c *Controller) Instrument() bool {
	return c.src.Intn(100) < c.instRatio
}

// ApplyDistance draws the distance gate for a block with a known distance.
func (c *Controller) ApplyDistance() bool {
	return c.src.Intn(100) < c.distanceRatio
}

// Selective reports whether blocks without a known distance are dropped.
func (c *Controller) Selective() bool {
	return c.selective
}

// Tag draws the edge tag of a block, uniform over the coverage map.
func (c *Controller) Tag() uint32 {
	return uint32(c.src.Intn(base.MapSize))
}

func (c *Controller) InstRatio() int { return c.instRatio }
func (c *Controller) DistanceRatio() int { return c.distanceRatio }
