// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package ledger implements the append-only text logs written by the
// extraction phase.
//
// A build system runs one extraction process per compilation unit, often in
// parallel, and all of them append to the same files. A Log buffers the lines
// of one process and appends them with a single write on Close. With locking
// enabled the write happens while holding an exclusive flock on <path>.lock,
// so units never interleave. Without locking, concurrent units rely on
// O_APPEND and may interleave at arbitrary byte boundaries on some systems.
package ledger

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/stephens2424/writerset"

	base "github.com/aflgo/go-aflgo/go-aflgo-defs"
)

// Log is an append-only line log.
type Log struct {
	path   string
	lock   bool
	buf    bytes.Buffer
	mirror *writerset.WriterSet
}

// Open prepares a log at path. Nothing is written until Close.
func Open(path string, lock bool) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create ledger dir")
	}
	return &Log{path: path, lock: lock, mirror: writerset.New()}, nil
}

// Mirror copies every appended line to w as well. Mirrors that fail are
// dropped; the error is delivered on the returned channel.
func (l *Log) Mirror(w io.Writer) <-chan error {
	return l.mirror.Add(w)
}

// Append adds one line made of fields joined by commas.
func (l *Log) Append(fields ...string) {
	line := strings.Join(fields, ",") + "\n"
	l.buf.WriteString(line)
	l.mirror.Write([]byte(line))
}

// Close appends the buffered lines to the file. The file is created even
// when there is nothing to append.
func (l *Log) Close() error {
	if l.lock {
		fl := flock.NewFlock(l.path + ".lock")
		if err := fl.Lock(); err != nil {
			return errors.Wrapf(err, "failed to lock %v", l.path)
		}
		defer fl.Unlock()
	}
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return errors.Wrapf(err, "failed to open ledger")
	}
	if _, err := f.Write(l.buf.Bytes()); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to append to %v", l.path)
	}
	l.buf.Reset()
	return errors.Wrapf(f.Close(), "failed to close %v", l.path)
}

// Set is the group of ledgers of the extraction phase.
type Set struct {
	Blocks      *Log // block identities
	Calls       *Log // caller block,callee function
	Functions   *Log // functions with at least one named block
	TargetFuncs *Log // functions containing a target
}

// OpenSet prepares the ledgers inside dir.
func OpenSet(dir string, lock bool) (*Set, error) {
	s := new(Set)
	for _, x := range []struct {
		log  **Log
		name string
	}{
		{&s.Blocks, base.BlockNamesFile},
		{&s.Calls, base.CallEdgesFile},
		{&s.Functions, base.FuncNamesFile},
		{&s.TargetFuncs, base.TargetFuncsFile},
	} {
		l, err := Open(filepath.Join(dir, x.name), lock)
		if err != nil {
			return nil, err
		}
		*x.log = l
	}
	return s, nil
}

// Mirror copies the lines of every ledger to w.
func (s *Set) Mirror(w io.Writer) {
	for _, l := range s.all() {
		l.Mirror(w)
	}
}

// Close flushes every ledger and returns the first error.
func (s *Set) Close() error {
	var first error
	for _, l := range s.all() {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *Set) all() []*Log {
	return []*Log{s.Blocks, s.Calls, s.Functions, s.TargetFuncs}
}
