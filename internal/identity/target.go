// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package identity

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Target is a location from the targets file, reduced to basename and line.
type Target struct {
	File string
	Line int
}

// ParseTarget parses a file:line entry. Directories are ignored, so
// "/a/b/foo.c:10" and "foo.c:10" denote the same target.
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	pos := strings.LastIndexByte(s, ':')
	if pos < 0 {
		return Target{}, errors.Errorf("bad target %q: want file:line", s)
	}
	line, err := strconv.Atoi(s[pos+1:])
	if err != nil || line <= 0 {
		return Target{}, errors.Errorf("bad target %q: bad line number", s)
	}
	file := Base(s[:pos])
	if file == "" {
		return Target{}, errors.Errorf("bad target %q: empty file name", s)
	}
	return Target{File: file, Line: line}, nil
}

// TargetSet is the set of target locations.
type TargetSet struct {
	m map[Target]struct{}
}

func NewTargetSet(targets ...Target) *TargetSet {
	ts := &TargetSet{m: make(map[Target]struct{})}
	for _, t := range targets {
		ts.m[t] = struct{}{}
	}
	return ts
}

func (ts *TargetSet) Len() int {
	return len(ts.m)
}

// Contains reports whether file:line is a target. file may carry directories.
func (ts *TargetSet) Contains(file string, line int) bool {
	_, ok := ts.m[Target{File: Base(file), Line: line}]
	return ok
}

// ContainsID reports whether the identity denotes a target.
func (ts *TargetSet) ContainsID(id ID) bool {
	t, err := ParseTarget(string(id))
	if err != nil {
		return false
	}
	_, ok := ts.m[t]
	return ok
}

// ParseTargets reads one file:line per line. Blank lines are skipped.
func ParseTargets(r io.Reader) (*TargetSet, error) {
	ts := NewTargetSet()
	s := bufio.NewScanner(r)
	for n := 1; s.Scan(); n++ {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		t, err := ParseTarget(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %v", n)
		}
		ts.m[t] = struct{}{}
	}
	if err := s.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read targets")
	}
	return ts, nil
}

// LoadTargets reads the targets file at path.
func LoadTargets(path string) (*TargetSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open targets file")
	}
	defer f.Close()
	ts, err := ParseTargets(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%v", path)
	}
	return ts, nil
}
