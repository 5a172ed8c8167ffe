// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package ssair lowers Go packages into the instrumentation IR using the
// SSA form built by golang.org/x/tools/go/ssa.
package ssair

import (
	"fmt"
	"go/token"
	"go/types"
	"runtime"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/aflgo/go-aflgo/internal/ir"
)

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
	packages.NeedImports | packages.NeedDeps | packages.NeedTypes | packages.NeedTypesSizes |
	packages.NeedSyntax | packages.NeedTypesInfo

// Load loads the packages matching patterns (relative to dir) and lowers
// every function they define.
func Load(dir string, tags []string, patterns ...string) (*ir.Module, error) {
	cfg := &packages.Config{
		Mode: loadMode,
		Dir:  dir,
	}
	if len(tags) != 0 {
		cfg.BuildFlags = []string{"-tags", strings.Join(tags, ",")}
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load packages")
	}
	if len(pkgs) == 0 {
		return nil, errors.Errorf("no packages match %v", patterns)
	}
	var msgs []string
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			msgs = append(msgs, e.Error())
		}
	})
	if len(msgs) != 0 {
		return nil, errors.Errorf("failed to load packages:\n%v", strings.Join(msgs, "\n"))
	}
	prog, ssaPkgs := ssautil.AllPackages(pkgs, ssa.InstantiateGenerics)
	prog.Build()
	var paths []string
	for _, p := range pkgs {
		paths = append(paths, p.PkgPath)
	}
	return Lower(strings.Join(paths, " "), prog, ssaPkgs), nil
}

// Lower converts the functions and globals defined in pkgs.
func Lower(name string, prog *ssa.Program, pkgs []*ssa.Package) *ir.Module {
	l := &lowerer{
		fset:    prog.Fset,
		mod:     ir.NewModule(name),
		sizes:   types.SizesFor("gc", runtime.GOARCH),
		pkgs:    make(map[*ssa.Package]bool),
		globals: make(map[*ssa.Global]*ir.Global),
	}
	for _, p := range pkgs {
		if p != nil {
			l.pkgs[p] = true
		}
	}
	for _, p := range pkgs {
		if p == nil {
			continue
		}
		var names []string
		for name, mem := range p.Members {
			if _, ok := mem.(*ssa.Global); ok {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			g := p.Members[name].(*ssa.Global)
			l.globals[g] = l.mod.AddGlobal(p.Pkg.Path()+"."+name, l.sizeof(deref(g.Type())), false)
		}
	}
	var fns []*ssa.Function
	for fn := range ssautil.AllFunctions(prog) {
		if len(fn.Blocks) == 0 || !l.pkgs[fn.Pkg] {
			continue
		}
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool {
		pi, pj := fns[i].Pos(), fns[j].Pos()
		if pi != pj {
			return pi < pj
		}
		return FuncName(fns[i]) < FuncName(fns[j])
	})
	for _, fn := range fns {
		l.lowerFunc(fn)
	}
	return l.mod
}

// FuncName is the name used for fn in ledgers and call edges: the package
// import path followed by the package-relative function name. Packages
// sharing a name stay apart.
func FuncName(fn *ssa.Function) string {
	if fn.Pkg == nil {
		return fn.String()
	}
	return fn.Pkg.Pkg.Path() + "." + fn.RelString(fn.Pkg.Pkg)
}

type lowerer struct {
	fset    *token.FileSet
	mod     *ir.Module
	sizes   types.Sizes
	pkgs    map[*ssa.Package]bool
	globals map[*ssa.Global]*ir.Global

	// per function
	fn     *ir.Function
	locals map[*ssa.Alloc]*ir.Local
	params map[*ssa.Parameter]*ir.Param
}

func (l *lowerer) lowerFunc(fn *ssa.Function) {
	var params []string
	for _, p := range fn.Params {
		params = append(params, p.Name())
	}
	f := l.mod.NewFunction(FuncName(fn), params...)
	f.Entry = fn.Name() == "main" && fn.Parent() == nil && fn.Signature.Recv() == nil &&
		fn.Pkg.Pkg.Name() == "main"
	l.fn = f
	l.locals = make(map[*ssa.Alloc]*ir.Local)
	l.params = make(map[*ssa.Parameter]*ir.Param)
	for i, p := range fn.Params {
		l.params[p] = f.Params[i]
	}

	blocks := make(map[*ssa.BasicBlock]*ir.Block)
	for _, bb := range fn.Blocks {
		blocks[bb] = f.NewBlock()
	}
	for _, bb := range fn.Blocks {
		b := blocks[bb]
		for _, s := range bb.Succs {
			b.AddEdge(blocks[s])
		}
		for _, instr := range bb.Instrs {
			b.Append(l.lowerInstr(instr))
		}
	}
}

func (l *lowerer) lowerInstr(instr ssa.Instruction) *ir.Instr {
	i := &ir.Instr{Op: ir.OpOther}
	if pos := instr.Pos(); pos.IsValid() {
		p := l.fset.Position(pos)
		i.Pos = ir.Pos{File: p.Filename, Line: p.Line}
	}
	if v, ok := instr.(ssa.Value); ok {
		i.Text = fmt.Sprintf("%v = %v", v.Name(), instr)
	} else {
		i.Text = instr.String()
	}
	switch in := instr.(type) {
	case *ssa.Phi:
		i.Op = ir.OpPhi
	case *ssa.Return:
		i.Op = ir.OpReturn
	case *ssa.If, *ssa.Jump:
		i.Op = ir.OpBranch
	case ssa.CallInstruction:
		i.Op = ir.OpCall
		if callee := in.Common().StaticCallee(); callee != nil {
			i.Callee = FuncName(callee)
		}
	}
	if alloc, ok := instr.(*ssa.Alloc); ok {
		i.Args = append(i.Args, l.local(alloc))
	}
	for _, op := range instr.Operands(nil) {
		if op == nil || *op == nil {
			continue
		}
		switch v := (*op).(type) {
		case *ssa.Alloc:
			i.Args = append(i.Args, l.local(v))
		case *ssa.Global:
			if g := l.globals[v]; g != nil {
				i.Args = append(i.Args, g)
			}
		case *ssa.Parameter:
			if p := l.params[v]; p != nil {
				i.Args = append(i.Args, p)
			}
		}
	}
	return i
}

func (l *lowerer) local(alloc *ssa.Alloc) *ir.Local {
	if loc := l.locals[alloc]; loc != nil {
		return loc
	}
	name := alloc.Comment
	if name == "" {
		name = alloc.Name()
	}
	loc := l.fn.NewLocal(fmt.Sprintf("%v.%v", name, alloc.Name()), l.sizeof(deref(alloc.Type())))
	l.locals[alloc] = loc
	return loc
}

func (l *lowerer) sizeof(t types.Type) (size int) {
	defer func() {
		// Sizes panics on type parameters.
		if recover() != nil {
			size = 0
		}
	}()
	return int(l.sizes.Sizeof(t))
}

func deref(t types.Type) types.Type {
	if p, ok := t.Underlying().(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}
