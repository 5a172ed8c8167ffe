// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package ir

import (
	"bufio"
	"fmt"
	"io"
)

// WriteGraph renders the control-flow graph of f in graphviz format.
// Nodes are labelled with the block display name, falling back to the
// block operand (%N) for unnamed blocks.
func WriteGraph(w io.Writer, f *Function) error {
	bw := bufio.NewWriter(w)
	title := fmt.Sprintf("CFG for '%v' function", f.Name)
	fmt.Fprintf(bw, "digraph %q {\n", title)
	fmt.Fprintf(bw, "\tlabel=%q;\n\n", title)
	for _, b := range f.Blocks {
		fmt.Fprintf(bw, "\tNode%d [shape=record,label=\"{%s}\"];\n", b.Index, dotEscape(b.Label()))
		for _, s := range b.Succs {
			fmt.Fprintf(bw, "\tNode%d -> Node%d;\n", b.Index, s.Index)
		}
	}
	fmt.Fprintf(bw, "}\n")
	return bw.Flush()
}

// dotEscape escapes characters that are special in record labels.
func dotEscape(s string) string {
	var out []byte
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '{', '}', '<', '>', '|', '"', '\\':
			out = append(out, '\\', c)
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
