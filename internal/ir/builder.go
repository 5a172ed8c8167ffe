// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package ir

// Builder inserts instrumentation into a block at a fixed point.
// Every created instruction is placed before the insertion point,
// so consecutive calls produce instructions in program order.
type Builder struct {
	b  *Block
	at int
}

// NewBuilder positions a builder at the first insertion point of b.
func NewBuilder(b *Block) *Builder {
	return &Builder{b: b, at: b.FirstInsertionPoint()}
}

// NewBuilderBefore positions a builder right before i.
func NewBuilderBefore(i *Instr) *Builder {
	b := i.block
	at := b.index(i)
	if at < 0 {
		panic("instruction is not in its block")
	}
	return &Builder{b: b, at: at}
}

func (bld *Builder) insert(i *Instr) *Instr {
	i.Injected = true
	bld.b.adopt(i)
	bld.b.Instrs = append(bld.b.Instrs, nil)
	copy(bld.b.Instrs[bld.at+1:], bld.b.Instrs[bld.at:])
	bld.b.Instrs[bld.at] = i
	bld.at++
	return i
}

func (bld *Builder) Load(addr Value, bits int) *Instr {
	return bld.insert(&Instr{Op: OpLoad, Args: []Value{addr}, Bits: bits})
}

func (bld *Builder) Store(val, addr Value) *Instr {
	return bld.insert(&Instr{Op: OpStore, Args: []Value{val, addr}})
}

func (bld *Builder) Xor(x, y Value, bits int) *Instr {
	return bld.insert(&Instr{Op: OpXor, Args: []Value{x, y}, Bits: bits})
}

func (bld *Builder) Add(x, y Value, bits int) *Instr {
	return bld.insert(&Instr{Op: OpAdd, Args: []Value{x, y}, Bits: bits})
}

func (bld *Builder) ZExt(x Value, bits int) *Instr {
	return bld.insert(&Instr{Op: OpZExt, Args: []Value{x}, Bits: bits})
}

func (bld *Builder) Index(addr, off Value) *Instr {
	return bld.insert(&Instr{Op: OpIndex, Args: []Value{addr, off}})
}

// Call calls the runtime function callee. bits is the width of the result,
// 0 for none.
func (bld *Builder) Call(callee string, bits int, args ...Value) *Instr {
	return bld.insert(&Instr{Op: OpCall, Callee: callee, Args: args, Bits: bits})
}

// Int returns an integer constant.
func Int(bits int, v uint64) *Const {
	return &Const{Bits: bits, Val: v}
}
