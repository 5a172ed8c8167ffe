// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package instrument

import (
	"fmt"
	"testing"

	base "github.com/aflgo/go-aflgo/go-aflgo-defs"
	aflgodep "github.com/aflgo/go-aflgo/go-aflgo-dep"
	"github.com/aflgo/go-aflgo/internal/ir"
)

// areaBase is the fake address the area pointer global holds. It fits in
// the 32 bit layout and lies above the whole area.
const areaBase = 1 << 24

// machine executes injected instructions against the runtime, so tests
// observe what an instrumented binary would record. Original program
// instructions are no-ops.
type machine struct {
	t      *testing.T
	area   *aflgodep.Area
	mon    *aflgodep.Monitor
	params []uint64
	mem    map[ir.Value]uint64 // program globals and locals
	vals   map[*ir.Instr]uint64
}

func newMachine(t *testing.T, l base.Layout) *machine {
	return &machine{
		t:    t,
		area: aflgodep.NewArea(l),
		mon:  aflgodep.NewMonitor(),
		mem:  make(map[ir.Value]uint64),
		vals: make(map[*ir.Instr]uint64),
	}
}

// run executes blocks of f in the given order.
func (m *machine) run(f *ir.Function, path ...int) {
	for _, idx := range path {
		for _, i := range f.Blocks[idx].Instrs {
			if i.Injected {
				m.exec(i)
			}
		}
	}
}

func mask(v uint64, bits int) uint64 {
	if bits == 0 || bits >= 64 {
		return v
	}
	return v & (1<<uint(bits) - 1)
}

func (m *machine) value(v ir.Value) uint64 {
	switch v := v.(type) {
	case *ir.Const:
		return v.Val
	case *ir.Instr:
		x, ok := m.vals[v]
		if !ok {
			m.t.Fatalf("use of %v before definition", v.Name())
		}
		return x
	case *ir.Param:
		if v.Index < len(m.params) {
			return m.params[v.Index]
		}
		return 0
	case ir.Null:
		return 0
	}
	m.t.Fatalf("unexpected operand %v", v.Name())
	return 0
}

func (m *machine) vec(v ir.Value) []uint64 {
	var res []uint64
	for _, e := range v.(*ir.Vec).Elems {
		res = append(res, m.value(e))
	}
	return res
}

func (m *machine) load(addr ir.Value, bits int) uint64 {
	switch a := addr.(type) {
	case *ir.Global:
		switch a.Sym {
		case base.PrevLocSym:
			return uint64(m.area.PrevLoc)
		case base.AreaPtrSym:
			return areaBase
		}
		return mask(m.mem[a], bits)
	case *ir.Local:
		return mask(m.mem[a], bits)
	}
	off := int(m.value(addr) - areaBase)
	if bits == 8 {
		return uint64(m.area.Mem[off])
	}
	if bits != m.area.Layout.WordBits() {
		m.t.Fatalf("load of %v bits from the area", bits)
	}
	return m.area.Word(off)
}

func (m *machine) store(val uint64, addr ir.Value) {
	switch a := addr.(type) {
	case *ir.Global:
		if a.Sym == base.PrevLocSym {
			m.area.PrevLoc = uint32(val)
			return
		}
		m.mem[a] = val
		return
	case *ir.Local:
		m.mem[a] = val
		return
	}
	off := int(m.value(addr) - areaBase)
	if off < base.MapSize {
		m.area.Mem[off] = byte(val)
		return
	}
	m.area.PutWord(off, val)
}

func (m *machine) exec(i *ir.Instr) {
	var res uint64
	switch i.Op {
	case ir.OpLoad:
		res = m.load(i.Args[0], i.Bits)
	case ir.OpStore:
		m.store(m.value(i.Args[0]), i.Args[1])
	case ir.OpXor:
		res = mask(m.value(i.Args[0])^m.value(i.Args[1]), i.Bits)
	case ir.OpAdd:
		res = mask(m.value(i.Args[0])+m.value(i.Args[1]), i.Bits)
	case ir.OpZExt:
		res = m.value(i.Args[0])
	case ir.OpIndex:
		res = m.value(i.Args[0]) + m.value(i.Args[1])
	case ir.OpCall:
		res = m.call(i)
	default:
		m.t.Fatalf("unexpected injected instruction %v", i)
	}
	m.vals[i] = mask(res, i.Bits)
}

func (m *machine) call(i *ir.Instr) uint64 {
	switch i.Callee {
	case base.DistanceHook:
		return uint64(m.mon.GetDistanceToTarget(i.Args[0].(*ir.Str).Val))
	case base.AutomataHook:
		m.mon.AutomataHandler(m.value(i.Args[0]), int(int32(uint32(m.value(i.Args[1])))))
	case base.StateHook:
		var sizes []int
		for _, s := range m.vec(i.Args[1]) {
			sizes = append(sizes, int(s))
		}
		gvals, lvals := m.vec(i.Args[0]), m.vec(i.Args[3])
		if int(m.value(i.Args[2])) != len(gvals) || int(m.value(i.Args[4])) != len(lvals) {
			m.t.Fatalf("state hook counts disagree with values: %v", i)
		}
		m.mon.StateHandler(gvals, sizes, lvals)
	case base.PropositionHook:
		m.mon.PropositionHandler(i.Args[0].(*ir.Str).Val)
	case base.EvaluateHook:
		m.mon.EvaluateTrace(int(m.value(i.Args[0])))
	default:
		panic(fmt.Sprintf("unknown runtime function %v", i.Callee))
	}
	return 0
}
