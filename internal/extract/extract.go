// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package extract implements the preprocessing phase: it names every block
// after its identity and writes the block, call edge and function ledgers
// and one control-flow graph per function for the distance calculator.
package extract

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	base "github.com/aflgo/go-aflgo/go-aflgo-defs"
	"github.com/aflgo/go-aflgo/internal/identity"
	"github.com/aflgo/go-aflgo/internal/ir"
	"github.com/aflgo/go-aflgo/internal/ledger"
)

// Options configures one extraction run.
type Options struct {
	Resolver *identity.Resolver
	Targets  *identity.TargetSet
	Ledgers  *ledger.Set
	OutDir   string
	// Trace injects a profiling call before the terminator of every
	// named block.
	Trace bool
	Log   *logrus.Entry
}

// Result summarizes what was written.
type Result struct {
	Functions       int
	TargetFunctions int
	Blocks          int
	CallEdges       int
	Graphs          int
}

// Run extracts the metadata of m. The caller closes opts.Ledgers.
func Run(m *ir.Module, opts Options) (*Result, error) {
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	dotDir := filepath.Join(opts.OutDir, base.DotDir)
	if err := makeDir(dotDir); err != nil {
		return nil, err
	}
	res := new(Result)
	for _, f := range m.Funcs {
		if identity.Blacklisted(f.Name) {
			continue
		}
		hasBlocks, isTarget := false, false
		for _, b := range f.Blocks {
			id, target := extractBlock(b, &opts, res)
			isTarget = isTarget || target
			if id == "" {
				continue
			}
			b.Name = string(id)
			opts.Ledgers.Blocks.Append(string(id))
			res.Blocks++
			hasBlocks = true
			if opts.Trace {
				bld := ir.NewBuilderBefore(b.Terminator())
				bld.Call(base.ProfilingHook, 0, &ir.Str{Val: string(id)})
			}
		}
		if !hasBlocks {
			continue
		}
		if err := writeGraph(dotDir, f); err != nil {
			opts.Log.WithError(err).WithField("function", f.Name).Warn("failed to write CFG")
		} else {
			res.Graphs++
		}
		if isTarget {
			opts.Ledgers.TargetFuncs.Append(f.Name)
			res.TargetFunctions++
			opts.Log.WithField("function", f.Name).Debug("function contains a target")
		}
		opts.Ledgers.Functions.Append(f.Name)
		res.Functions++
	}
	return res, nil
}

// extractBlock scans the located instructions of b. It returns the block
// identity (empty if none) and whether any of them is a target location.
// Call edges are recorded against the block identity.
func extractBlock(b *ir.Block, opts *Options, res *Result) (identity.ID, bool) {
	var id identity.ID
	target := false
	for _, i := range b.Instrs {
		if i.Injected {
			continue
		}
		iid, ok := opts.Resolver.OfPos(i.Pos)
		if !ok {
			continue
		}
		if id == "" {
			id = iid
		}
		if !target && opts.Targets.Contains(i.Pos.File, i.Pos.Line) {
			target = true
		}
		if i.Op == ir.OpCall && i.Callee != "" && !identity.Blacklisted(i.Callee) {
			opts.Ledgers.Calls.Append(string(id), i.Callee)
			res.CallEdges++
		}
	}
	return id, target
}

// makeDir creates the graph directory. Parallel units share it, so an
// existing directory is fine.
func makeDir(dir string) error {
	err := os.Mkdir(dir, 0755)
	if err == nil {
		return nil
	}
	if os.IsExist(err) {
		if st, serr := os.Stat(dir); serr == nil && st.IsDir() {
			return nil
		}
	}
	return errors.Wrapf(err, "could not create directory %v", dir)
}

func writeGraph(dir string, f *ir.Function) error {
	name := strings.ReplaceAll(f.Name, string(filepath.Separator), "_")
	name = strings.ReplaceAll(name, "/", "_")
	out, err := os.Create(filepath.Join(dir, base.CFGFile(name)))
	if err != nil {
		return err
	}
	if err := ir.WriteGraph(out, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
