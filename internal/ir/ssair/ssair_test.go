// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package ssair

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/aflgo/go-aflgo/internal/identity"
	"github.com/aflgo/go-aflgo/internal/ir"
)

const src = `package main

var counter int

func check(x int) bool {
	if x > 10 {
		counter++
		return true
	}
	return false
}

func main() {
	if check(len("hello")) {
		println("hit")
	}
}
`

func lower(t *testing.T, filename string) *ir.Module {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, src, 0)
	if err != nil {
		t.Fatal(err)
	}
	tc := &types.Config{Importer: importer.Default()}
	pkg, _, err := ssautil.BuildPackage(tc, fset, types.NewPackage("example.com/prog", ""), []*ast.File{f}, ssa.SanityCheckFunctions)
	if err != nil {
		t.Fatal(err)
	}
	return Lower("prog", pkg.Prog, []*ssa.Package{pkg})
}

func function(t *testing.T, m *ir.Module, name string) *ir.Function {
	t.Helper()
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("function %v not lowered", name)
	return nil
}

func identities(m *ir.Module) map[string][]string {
	r := identity.NewResolver()
	res := make(map[string][]string)
	for _, f := range m.Funcs {
		for _, b := range f.Blocks {
			id, _ := r.Resolve(b)
			res[f.Name] = append(res[f.Name], string(id))
		}
	}
	return res
}

func TestLower(t *testing.T) {
	m := lower(t, "/work/prog/main.go")

	mainFn := function(t, m, "example.com/prog.main")
	check := function(t, m, "example.com/prog.check")
	if !mainFn.Entry || check.Entry {
		t.Fatal("bad entry function")
	}
	if len(check.Params) != 1 || check.Params[0].Ident != "x" {
		t.Fatalf("bad params: %v", check.Params)
	}
	if len(check.Blocks) < 3 || len(check.Blocks[0].Succs) != 2 {
		t.Fatal("bad control flow")
	}
	if id, ok := identity.NewResolver().Resolve(check.Blocks[0]); !ok || id != "main.go:6" {
		t.Fatalf("entry block of check is %q", id)
	}

	calls := 0
	for _, b := range mainFn.Blocks {
		for _, i := range b.Instrs {
			if i.Op == ir.OpCall && i.Callee == "example.com/prog.check" {
				calls++
				if !i.Pos.IsValid() {
					t.Error("call without position")
				}
			}
		}
	}
	if calls != 1 {
		t.Fatalf("%v calls to check", calls)
	}

	g := m.Global("example.com/prog.counter")
	if g == nil || g.Size == 0 || g.Synthetic {
		t.Fatalf("bad global: %+v", g)
	}
	uses := 0
	for _, b := range check.Blocks {
		for _, i := range b.Instrs {
			for _, a := range i.Args {
				if a == ir.Value(g) {
					uses++
				}
			}
		}
	}
	if uses == 0 {
		t.Fatal("global operands not lowered")
	}
}

func TestIdentitiesAreStable(t *testing.T) {
	a := identities(lower(t, "/work/one/main.go"))
	b := identities(lower(t, "/tmp/two/main.go"))
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("identities depend on the build directory (-one +two):\n%s", diff)
	}
}

const utilSrc = `package util

var hits int

func F(x int) int {
	hits++
	return x + 1
}
`

// typeCheck adds utilSrc to prog as the package at path.
func typeCheck(t *testing.T, prog *ssa.Program, path, filename string) *ssa.Package {
	t.Helper()
	f, err := parser.ParseFile(prog.Fset, filename, utilSrc, 0)
	if err != nil {
		t.Fatal(err)
	}
	info := &types.Info{
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Defs:       make(map[*ast.Ident]types.Object),
		Uses:       make(map[*ast.Ident]types.Object),
		Implicits:  make(map[ast.Node]types.Object),
		Instances:  make(map[*ast.Ident]types.Instance),
		Scopes:     make(map[ast.Node]*types.Scope),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
	}
	tc := &types.Config{Importer: importer.Default()}
	pkg, err := tc.Check(path, prog.Fset, []*ast.File{f}, info)
	if err != nil {
		t.Fatal(err)
	}
	return prog.CreatePackage(pkg, []*ast.File{f}, info, true)
}

func TestSameNamePackagesStayApart(t *testing.T) {
	prog := ssa.NewProgram(token.NewFileSet(), ssa.SanityCheckFunctions)
	a := typeCheck(t, prog, "example.com/a/util", "/src/a/util/util.go")
	b := typeCheck(t, prog, "example.com/b/util", "/src/b/util/util.go")
	prog.Build()
	m := Lower("m", prog, []*ssa.Package{a, b})

	seen := make(map[string]int)
	for _, f := range m.Funcs {
		seen[f.Name]++
	}
	for name, n := range seen {
		if n != 1 {
			t.Errorf("function %v lowered %v times", name, n)
		}
	}
	for _, name := range []string{"example.com/a/util.F", "example.com/b/util.F"} {
		if seen[name] != 1 {
			t.Errorf("function %v missing, have %v", name, seen)
		}
	}
	if m.Global("example.com/a/util.hits") == nil || m.Global("example.com/b/util.hits") == nil {
		t.Error("globals of same-name packages merged")
	}
}
