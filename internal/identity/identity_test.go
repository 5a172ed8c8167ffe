// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package identity

import (
	"strings"
	"testing"

	"github.com/aflgo/go-aflgo/internal/ir"
)

func TestOfPos(t *testing.T) {
	r := NewResolver()
	for _, test := range []struct {
		pos ir.Pos
		id  ID
		ok  bool
	}{
		{ir.Pos{File: "/home/u/src/foo.c", Line: 10}, "foo.c:10", true},
		{ir.Pos{File: "foo.c", Line: 10}, "foo.c:10", true},
		{ir.Pos{File: `C:\src\foo.c`, Line: 3}, "foo.c:3", true},
		{ir.Pos{File: "/usr/include/stdio.h", Line: 10}, "", false},
		{ir.Pos{File: "foo.c", Line: 0}, "", false},
		{ir.Pos{File: "", Line: 5}, "", false},
		{ir.Pos{File: "/src/", Line: 5}, "", false},
	} {
		id, ok := r.OfPos(test.pos)
		if id != test.id || ok != test.ok {
			t.Errorf("OfPos(%+v) = %q, %v; want %q, %v", test.pos, id, ok, test.id, test.ok)
		}
	}
}

func TestCustomLibraryPrefixes(t *testing.T) {
	r := NewResolver("/opt/sdk/")
	if _, ok := r.OfPos(ir.Pos{File: "/opt/sdk/lib.go", Line: 1}); ok {
		t.Error("custom prefix not rejected")
	}
	if _, ok := r.OfPos(ir.Pos{File: "/usr/lib.go", Line: 1}); !ok {
		t.Error("default prefix applied with custom prefixes")
	}
}

func TestResolveIsStable(t *testing.T) {
	build := func(dir string) *ir.Block {
		m := ir.NewModule("m")
		b := m.NewFunction("f").NewBlock()
		b.Append(&ir.Instr{Op: ir.OpPhi})
		b.Append(&ir.Instr{Pos: ir.Pos{File: "/usr/lib/x.h", Line: 1}})
		b.Append(&ir.Instr{Pos: ir.Pos{File: dir + "/foo.go", Line: 42}})
		b.Append(&ir.Instr{Pos: ir.Pos{File: dir + "/foo.go", Line: 43}})
		return b
	}
	r := NewResolver()
	id1, ok1 := r.Resolve(build("/build/one"))
	id2, ok2 := r.Resolve(build("/tmp/two"))
	if !ok1 || !ok2 || id1 != id2 || id1 != "foo.go:42" {
		t.Fatalf("unstable identity: %q %q", id1, id2)
	}
}

func TestResolveSkipsInjected(t *testing.T) {
	m := ir.NewModule("m")
	b := m.NewFunction("f").NewBlock()
	b.Append(&ir.Instr{Pos: ir.Pos{File: "a.go", Line: 2}})
	ir.NewBuilder(b).Call("hook", 0)
	b.Instrs[0].Pos = ir.Pos{File: "injected.go", Line: 1}
	if id, _ := NewResolver().Resolve(b); id != "a.go:2" {
		t.Fatalf("got %q", id)
	}
}

func TestBlacklisted(t *testing.T) {
	for fn, want := range map[string]bool{
		"asan.module_ctor":          true,
		"llvm.memcpy.p0i8":          true,
		"sancov.module_ctor":        true,
		"__ubsan_handle_add":        true,
		"malloc":                    true,
		"free":                      true,
		"realloc_array":             true,
		"main.parse":                false,
		"runtime.mallocgc":          false,
		"github.com/x/y.(*T).Close": false,
	} {
		if got := Blacklisted(fn); got != want {
			t.Errorf("Blacklisted(%q) = %v, want %v", fn, got, want)
		}
	}
}

func TestParseTargets(t *testing.T) {
	ts, err := ParseTargets(strings.NewReader("/a/b/foo.c:10\n\n  bar.c:7  \nC:\\x\\baz.c:1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if ts.Len() != 3 {
		t.Fatalf("got %v targets", ts.Len())
	}
	for _, loc := range []struct {
		file string
		line int
	}{{"foo.c", 10}, {"/other/dir/foo.c", 10}, {"bar.c", 7}, {"baz.c", 1}} {
		if !ts.Contains(loc.file, loc.line) {
			t.Errorf("%v:%v not a target", loc.file, loc.line)
		}
	}
	if ts.Contains("foo.c", 11) {
		t.Error("foo.c:11 is a target")
	}
	if !ts.ContainsID("bar.c:7") || ts.ContainsID("bar.c") {
		t.Error("ContainsID")
	}
}

func TestParseTargetsErrors(t *testing.T) {
	for _, data := range []string{"foo.c", "foo.c:x", "foo.c:0", ":5", "foo.c:10\nbad\n"} {
		if _, err := ParseTargets(strings.NewReader(data)); err == nil {
			t.Errorf("%q: no error", data)
		}
	}
}

func TestLoadTargetsMissing(t *testing.T) {
	if _, err := LoadTargets(t.TempDir() + "/none"); err == nil {
		t.Fatal("no error")
	}
}
