// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package identity derives the block identities that correlate the
// extraction phase, the offline distance computation and the
// instrumentation phase. Both phases run in separate processes and share
// nothing but source positions, so the derivation must stay a pure
// function of the position.
package identity

import (
	"strconv"
	"strings"

	"github.com/aflgo/go-aflgo/internal/ir"
)

// Version is bumped whenever the derivation below changes.
// Distance files produced for another version do not match.
const Version = 1

// ID is a block identity of the form basename(file):line.
type ID string

// Make formats the identity for a file and line.
func Make(file string, line int) ID {
	return ID(Base(file) + ":" + strconv.Itoa(line))
}

// Base strips any directory (slash or backslash separated) from file.
func Base(file string) string {
	if i := strings.LastIndexAny(file, `/\`); i >= 0 {
		return file[i+1:]
	}
	return file
}

// DefaultLibraryPrefixes lists path prefixes of code that is never analysed.
var DefaultLibraryPrefixes = []string{"/usr/"}

// Resolver maps source positions to identities.
type Resolver struct {
	LibraryPrefixes []string
}

// NewResolver returns a resolver rejecting positions under prefixes.
// With no prefixes DefaultLibraryPrefixes apply.
func NewResolver(prefixes ...string) *Resolver {
	if len(prefixes) == 0 {
		prefixes = DefaultLibraryPrefixes
	}
	return &Resolver{LibraryPrefixes: prefixes}
}

// OfPos returns the identity of pos, or false if pos has no usable location.
func (r *Resolver) OfPos(pos ir.Pos) (ID, bool) {
	if pos.File == "" || pos.Line <= 0 {
		return "", false
	}
	for _, prefix := range r.LibraryPrefixes {
		if strings.HasPrefix(pos.File, prefix) {
			return "", false
		}
	}
	file := Base(pos.File)
	if file == "" {
		return "", false
	}
	return Make(file, pos.Line), true
}

// Resolve returns the identity of the first instruction in b that has a
// usable location.
func (r *Resolver) Resolve(b *ir.Block) (ID, bool) {
	for _, i := range b.Instrs {
		if i.Injected {
			continue
		}
		if id, ok := r.OfPos(i.Pos); ok {
			return id, true
		}
	}
	return "", false
}

var blacklist = []string{
	"asan.",
	"llvm.",
	"sancov.",
	"__ubsan_handle_",
	"free",
	"malloc",
	"calloc",
	"realloc",
}

// Blacklisted reports whether fn belongs to sanitizer or allocator runtime
// support and must be left alone.
func Blacklisted(fn string) bool {
	for _, prefix := range blacklist {
		if strings.HasPrefix(fn, prefix) {
			return true
		}
	}
	return false
}
