// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package ir

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Fprint writes a textual listing of m.
func Fprint(w io.Writer, m *Module) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "module %v\n", m.Name)
	for _, g := range m.Globals {
		attrs := ""
		if g.ThreadLocal {
			attrs += " thread_local"
		}
		if g.ReadOnly {
			attrs += " const"
		}
		if g.Synthetic {
			attrs += " external"
		}
		fmt.Fprintf(bw, "%v size %v%v\n", g.Name(), g.Size, attrs)
	}
	for _, f := range m.Funcs {
		fprintFunc(bw, f)
	}
	return bw.Flush()
}

func fprintFunc(w io.Writer, f *Function) {
	var params []string
	for _, p := range f.Params {
		params = append(params, p.Name())
	}
	fmt.Fprintf(w, "\nfunc %v(%v)", f.Name, strings.Join(params, ", "))
	if f.Entry {
		fmt.Fprintf(w, " entry")
	}
	fmt.Fprintf(w, " {\n")
	for _, b := range f.Blocks {
		var succs []string
		for _, s := range b.Succs {
			succs = append(succs, s.Label())
		}
		fmt.Fprintf(w, "%v:", b.Label())
		if len(succs) != 0 {
			fmt.Fprintf(w, " ; -> %v", strings.Join(succs, " "))
		}
		fmt.Fprintf(w, "\n")
		for _, i := range b.Instrs {
			fmt.Fprintf(w, "\t%v\n", i)
		}
	}
	fmt.Fprintf(w, "}\n")
}

func (i *Instr) String() string {
	var sb strings.Builder
	if !i.Injected {
		sb.WriteString(i.Text)
		if sb.Len() == 0 {
			sb.WriteString(i.Op.String())
		}
		if i.Pos.IsValid() {
			fmt.Fprintf(&sb, "  ; %v", i.Pos)
		}
		return sb.String()
	}
	if i.Bits != 0 {
		fmt.Fprintf(&sb, "%v = ", i.Name())
	}
	sb.WriteString(i.Op.String())
	if i.Bits != 0 {
		fmt.Fprintf(&sb, " i%d", i.Bits)
	}
	if i.Op == OpCall {
		fmt.Fprintf(&sb, " @%v", i.Callee)
	}
	for n, a := range i.Args {
		if n == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(a.Name())
	}
	if i.NoSanitize {
		sb.WriteString(" !nosanitize")
	}
	return sb.String()
}
