// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package ir is the control-flow representation the instrumentation passes
// operate on: modules of functions made of basic blocks of instructions.
// Frontends (see package ssair) lower real programs into it; the passes read
// source positions from it and splice runtime calls into it.
package ir

import (
	"fmt"
	"path/filepath"
)

// Pos is a source location. The zero Pos carries no location.
type Pos struct {
	File string
	Line int
}

func (p Pos) IsValid() bool {
	return p.File != "" && p.Line != 0
}

func (p Pos) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%v:%v", filepath.Base(p.File), p.Line)
}

// Op classifies an instruction.
type Op int

const (
	OpOther  Op = iota // any instruction of the original program
	OpPhi              // must stay at the top of its block
	OpCall             // Callee names the static target, "" if dynamic
	OpReturn
	OpBranch

	// Operations created by instrumentation.
	OpLoad  // Args[0] is the address
	OpStore // Args[0] is the value, Args[1] the address
	OpXor
	OpAdd
	OpShr
	OpZExt
	OpIndex // address Args[0] advanced by Args[1] bytes
)

var opNames = [...]string{
	OpOther:  "op",
	OpPhi:    "phi",
	OpCall:   "call",
	OpReturn: "ret",
	OpBranch: "br",
	OpLoad:   "load",
	OpStore:  "store",
	OpXor:    "xor",
	OpAdd:    "add",
	OpShr:    "shr",
	OpZExt:   "zext",
	OpIndex:  "index",
}

func (op Op) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return fmt.Sprintf("op%d", int(op))
	}
	return opNames[op]
}

// Value is an operand.
type Value interface {
	Name() string
}

// Const is an integer constant of Bits width.
type Const struct {
	Bits int
	Val  uint64
}

func (c *Const) Name() string { return fmt.Sprintf("i%d %d", c.Bits, c.Val) }

// Str is a pointer to a constant string.
type Str struct {
	Val string
}

func (s *Str) Name() string { return fmt.Sprintf("%q", s.Val) }

// Null is the null pointer.
type Null struct{}

func (Null) Name() string { return "null" }

// Vec is an array built for a runtime call.
type Vec struct {
	Elems []Value
}

func (v *Vec) Name() string {
	s := "["
	for i, e := range v.Elems {
		if i != 0 {
			s += ", "
		}
		s += e.Name()
	}
	return s + "]"
}

// Global is a module-level variable.
type Global struct {
	Sym         string
	Size        int  // bytes
	ReadOnly    bool // constants are never snapshotted
	Synthetic   bool // created by instrumentation
	ThreadLocal bool
}

func (g *Global) Name() string { return "@" + g.Sym }

// Param is a formal parameter of a function.
type Param struct {
	Ident string
	Index int
}

func (p *Param) Name() string { return "%" + p.Ident }

// Local is a stack variable of a function.
type Local struct {
	Ident string
	Size  int
}

func (l *Local) Name() string { return "%" + l.Ident }

// Instr is a single operation. Instructions of the original program keep
// their Text; instrumentation-created ones are built through a Builder.
type Instr struct {
	Op     Op
	Pos    Pos
	Text   string
	Callee string
	Args   []Value
	Bits   int // result width of Load, arithmetic and ZExt

	// NoSanitize excludes the access from sanitizer instrumentation.
	NoSanitize bool
	Injected   bool

	id    int
	block *Block
}

func (i *Instr) Name() string { return fmt.Sprintf("%%t%d", i.id) }

func (i *Instr) Block() *Block { return i.block }

// Block is a basic block.
type Block struct {
	Index  int
	Name   string // display name, empty until assigned
	Instrs []*Instr
	Succs  []*Block
	Preds  []*Block

	fn *Function
}

func (b *Block) Parent() *Function { return b.fn }

// Terminator returns the last instruction of the block, if any.
func (b *Block) Terminator() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	return b.Instrs[len(b.Instrs)-1]
}

// Label is the name shown for b in listings and graphs.
func (b *Block) Label() string {
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("%%%d", b.Index)
}

// Function is a function definition.
type Function struct {
	Name   string
	Entry  bool // program entry point
	Params []*Param
	Locals []*Local
	Blocks []*Block

	mod *Module
}

func (f *Function) Module() *Module { return f.mod }

// Module is a compilation unit.
type Module struct {
	Name    string
	Funcs   []*Function
	Globals []*Global

	nextID int
}

func NewModule(name string) *Module {
	return &Module{Name: name}
}

// NewFunction appends an empty function to m.
func (m *Module) NewFunction(name string, params ...string) *Function {
	f := &Function{Name: name, mod: m}
	for i, p := range params {
		f.Params = append(f.Params, &Param{Ident: p, Index: i})
	}
	m.Funcs = append(m.Funcs, f)
	return f
}

// Global returns the global named sym, or nil.
func (m *Module) Global(sym string) *Global {
	for _, g := range m.Globals {
		if g.Sym == sym {
			return g
		}
	}
	return nil
}

// GetOrInsertGlobal returns the synthetic global sym, declaring it if needed.
func (m *Module) GetOrInsertGlobal(sym string, size int, tls bool) *Global {
	if g := m.Global(sym); g != nil {
		return g
	}
	g := &Global{Sym: sym, Size: size, Synthetic: true, ThreadLocal: tls}
	m.Globals = append(m.Globals, g)
	return g
}

// AddGlobal declares a program global.
func (m *Module) AddGlobal(sym string, size int, readOnly bool) *Global {
	g := &Global{Sym: sym, Size: size, ReadOnly: readOnly}
	m.Globals = append(m.Globals, g)
	return g
}

// NewBlock appends an empty block to f.
func (f *Function) NewBlock() *Block {
	b := &Block{Index: len(f.Blocks), fn: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

// NewLocal declares a stack variable of f.
func (f *Function) NewLocal(ident string, size int) *Local {
	l := &Local{Ident: ident, Size: size}
	f.Locals = append(f.Locals, l)
	return l
}

// AddEdge records control flow from b to succ.
func (b *Block) AddEdge(succ *Block) {
	b.Succs = append(b.Succs, succ)
	succ.Preds = append(succ.Preds, b)
}

// Append adds an original program instruction at the end of b.
func (b *Block) Append(i *Instr) *Instr {
	b.adopt(i)
	b.Instrs = append(b.Instrs, i)
	return i
}

func (b *Block) adopt(i *Instr) {
	m := b.fn.mod
	m.nextID++
	i.id = m.nextID
	i.block = b
}

// index returns the position of i in b, or -1.
func (b *Block) index(i *Instr) int {
	for n, x := range b.Instrs {
		if x == i {
			return n
		}
	}
	return -1
}

// FirstInsertionPoint is the index of the first instruction that is not a phi.
func (b *Block) FirstInsertionPoint() int {
	n := 0
	for n < len(b.Instrs) && b.Instrs[n].Op == OpPhi {
		n++
	}
	return n
}
