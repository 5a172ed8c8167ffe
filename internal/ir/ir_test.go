// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package ir

import (
	"bytes"
	"strings"
	"testing"
)

func TestBuilderOrder(t *testing.T) {
	m := NewModule("m")
	b := m.NewFunction("f").NewBlock()
	phi := b.Append(&Instr{Op: OpPhi, Text: "phi"})
	orig := b.Append(&Instr{Text: "orig", Pos: Pos{File: "a.go", Line: 1}})
	term := b.Append(&Instr{Op: OpReturn, Text: "ret"})

	bld := NewBuilder(b)
	x := bld.Load(Int(32, 0), 32)
	y := bld.Add(x, Int(32, 1), 32)
	before := NewBuilderBefore(term)
	c := before.Call("hook", 0, &Str{Val: "s"})

	want := []*Instr{phi, x, y, orig, c, term}
	if len(b.Instrs) != len(want) {
		t.Fatalf("got %v instructions", len(b.Instrs))
	}
	for i, instr := range want {
		if b.Instrs[i] != instr {
			t.Fatalf("instruction %v is %v, want %v", i, b.Instrs[i], instr)
		}
	}
	for _, i := range []*Instr{x, y, c} {
		if !i.Injected || i.Block() != b {
			t.Fatalf("%v not adopted", i)
		}
	}
	if x.Name() == y.Name() {
		t.Fatal("duplicate value names")
	}
	if b.Terminator() != term {
		t.Fatal("terminator moved")
	}
}

func TestLabel(t *testing.T) {
	m := NewModule("m")
	f := m.NewFunction("f")
	b0, b1 := f.NewBlock(), f.NewBlock()
	b0.Name = "a.go:3"
	if b0.Label() != "a.go:3" || b1.Label() != "%1" {
		t.Fatalf("labels %q %q", b0.Label(), b1.Label())
	}
	b0.AddEdge(b1)
	if len(b1.Preds) != 1 || b1.Preds[0] != b0 || b0.Parent() != f {
		t.Fatal("bad edge")
	}
}

func TestGlobals(t *testing.T) {
	m := NewModule("m")
	g := m.AddGlobal("m.x", 8, false)
	a := m.GetOrInsertGlobal("area", 8, false)
	if m.GetOrInsertGlobal("area", 8, false) != a || !a.Synthetic {
		t.Fatal("GetOrInsertGlobal")
	}
	if m.Global("m.x") != g || m.Global("none") != nil {
		t.Fatal("Global")
	}
}

func TestWriteGraph(t *testing.T) {
	m := NewModule("m")
	f := m.NewFunction("(*T).Close")
	b0, b1 := f.NewBlock(), f.NewBlock()
	b0.Name = "a{b}.go:1"
	b0.AddEdge(b1)
	b1.AddEdge(b0)

	buf := new(bytes.Buffer)
	if err := WriteGraph(buf, f); err != nil {
		t.Fatal(err)
	}
	want := `digraph "CFG for '(*T).Close' function" {
	label="CFG for '(*T).Close' function";

	Node0 [shape=record,label="{a\{b\}.go:1}"];
	Node0 -> Node1;
	Node1 [shape=record,label="{%1}"];
	Node1 -> Node0;
}
`
	if buf.String() != want {
		t.Fatalf("got:\n%s\nwant:\n%s", buf, want)
	}
}

func TestFprint(t *testing.T) {
	m := NewModule("m")
	m.GetOrInsertGlobal("__afl_prev_loc", 4, true)
	m.AddGlobal("m.c", 4, true)
	f := m.NewFunction("m.main", "x")
	f.Entry = true
	b := f.NewBlock()
	b.Append(&Instr{Text: "t0 = x + 1", Pos: Pos{File: "/src/a.go", Line: 7}})
	NewBuilder(b).Store(Int(32, 5), m.Global("__afl_prev_loc")).NoSanitize = true

	buf := new(bytes.Buffer)
	if err := Fprint(buf, m); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"module m\n",
		"@__afl_prev_loc size 4 thread_local external\n",
		"@m.c size 4 const\n",
		"func m.main(%x) entry {\n",
		"\tstore i32 5, @__afl_prev_loc !nosanitize\n",
		"\tt0 = x + 1  ; a.go:7\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("listing does not contain %q:\n%s", want, out)
		}
	}
}
