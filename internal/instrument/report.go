// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package instrument

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/aflgo/go-aflgo/internal/ir"
)

// Report describes the decisions taken for every block.
type Report struct {
	Module        string `yaml:"module"`
	InstRatio     int    `yaml:"inst_ratio"`
	DistanceRatio int    `yaml:"distance_ratio"`
	Selective     bool   `yaml:"selective"`

	Instrumented int `yaml:"instrumented"`
	WithDistance int `yaml:"with_distance"`
	Skipped      int `yaml:"skipped"`
	SampledOut   int `yaml:"sampled_out"`
	Hooks        int `yaml:"monitor_hooks"`

	Functions []FuncReport `yaml:"functions"`
}

type FuncReport struct {
	Name   string        `yaml:"name"`
	Blocks []BlockReport `yaml:"blocks"`
}

type BlockReport struct {
	Index    int     `yaml:"index"`
	ID       string  `yaml:"id,omitempty"`
	Tag      *uint32 `yaml:"tag,omitempty"`
	Distance int     `yaml:"distance"`
	Hook     string  `yaml:"hook,omitempty"`
	Skipped  string  `yaml:"skipped,omitempty"`
}

func newReport(m *ir.Module, opts *Options) *Report {
	return &Report{
		Module:        m.Name,
		InstRatio:     opts.Sampler.InstRatio(),
		DistanceRatio: opts.Sampler.DistanceRatio(),
		Selective:     opts.Sampler.Selective(),
	}
}

// Block returns the report of block index of function fn.
func (r *Report) Block(fn string, index int) (BlockReport, bool) {
	for _, f := range r.Functions {
		if f.Name != fn {
			continue
		}
		for _, b := range f.Blocks {
			if b.Index == index {
				return b, true
			}
		}
	}
	return BlockReport{}, false
}

// WriteYAML encodes the report.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
