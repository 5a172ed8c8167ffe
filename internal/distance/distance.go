// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package distance loads the block distance file produced by the offline
// distance calculator.
package distance

import (
	"bufio"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/aflgo/go-aflgo/internal/identity"
)

// Unknown is the distance of blocks absent from the map.
const Unknown = -1

// TieBreak selects the entry used when an identity appears more than once.
type TieBreak int

const (
	// LastWins uses the last entry in file order.
	LastWins TieBreak = iota
	// FirstWins uses the first entry in file order.
	FirstWins
)

// Entry is one line of the distance file.
type Entry struct {
	ID       identity.ID
	Distance int // 100 * distance, rounded
}

// Map is the immutable identity -> distance table of a run.
type Map struct {
	entries []Entry
	known   map[identity.ID]int // index of the selected entry
}

// Parse reads lines of the form <identity>,<float distance>.
func Parse(r io.Reader, tb TieBreak) (*Map, error) {
	m := &Map{known: make(map[identity.ID]int)}
	s := bufio.NewScanner(r)
	for n := 1; s.Scan(); n++ {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		pos := strings.IndexByte(line, ',')
		if pos <= 0 {
			return nil, errors.Errorf("line %v: want <block>,<distance>, got %q", n, line)
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(line[pos+1:]), 64)
		if err != nil || math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			return nil, errors.Errorf("line %v: bad distance %q", n, line[pos+1:])
		}
		m.add(Entry{ID: identity.ID(line[:pos]), Distance: int(math.Round(100 * d))}, tb)
	}
	if err := s.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read distances")
	}
	return m, nil
}

func (m *Map) add(e Entry, tb TieBreak) {
	m.entries = append(m.entries, e)
	if _, dup := m.known[e.ID]; dup && tb == FirstWins {
		return
	}
	m.known[e.ID] = len(m.entries) - 1
}

// Load reads the distance file at path.
func Load(path string, tb TieBreak) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to find %v", path)
	}
	defer f.Close()
	m, err := Parse(f, tb)
	if err != nil {
		return nil, errors.Wrapf(err, "%v", path)
	}
	return m, nil
}

// Known reports whether id is listed in the distance file.
func (m *Map) Known(id identity.ID) bool {
	_, ok := m.known[id]
	return ok
}

// Lookup returns the distance of id, or Unknown.
func (m *Map) Lookup(id identity.ID) int {
	idx, ok := m.known[id]
	if !ok {
		return Unknown
	}
	return m.entries[idx].Distance
}

// Entries returns all lines in file order, duplicates included.
func (m *Map) Entries() []Entry {
	return m.entries
}

// Len is the number of distinct identities.
func (m *Map) Len() int {
	return len(m.known)
}
