// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package events loads the location -> event maps used for model-based
// fuzzing: integer output symbols of an automaton, or protocol
// proposition names.
package events

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/aflgo/go-aflgo/internal/identity"
)

// AutomatonMap maps a location to the output symbol emitted there.
type AutomatonMap map[identity.ID]int

// ProtocolMap maps a location to the proposition that holds there.
type ProtocolMap map[identity.ID]string

// split cuts a line at its last colon; the location itself is file:line.
func split(line string) (identity.ID, string, bool) {
	pos := strings.LastIndexByte(line, ':')
	if pos <= 0 || pos == len(line)-1 {
		return "", "", false
	}
	return identity.ID(line[:pos]), line[pos+1:], true
}

// each calls fn for every non-blank line. The first entry of a location wins.
func each(r io.Reader, fn func(n int, loc identity.ID, evt string) error) error {
	s := bufio.NewScanner(r)
	for n := 1; s.Scan(); n++ {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		loc, evt, ok := split(line)
		if !ok {
			return errors.Errorf("line %v: want <location>:<event>, got %q", n, line)
		}
		if err := fn(n, loc, evt); err != nil {
			return err
		}
	}
	return errors.Wrap(s.Err(), "failed to read events")
}

// ParseAutomaton reads lines of the form <location>:<integer event>.
func ParseAutomaton(r io.Reader) (AutomatonMap, error) {
	m := make(AutomatonMap)
	err := each(r, func(n int, loc identity.ID, evt string) error {
		v, err := strconv.Atoi(evt)
		if err != nil {
			return errors.Errorf("line %v: bad event %q", n, evt)
		}
		if _, dup := m[loc]; !dup {
			m[loc] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ParseProtocol reads lines of the form <location>:<proposition>.
func ParseProtocol(r io.Reader) (ProtocolMap, error) {
	m := make(ProtocolMap)
	err := each(r, func(n int, loc identity.ID, evt string) error {
		if _, dup := m[loc]; !dup {
			m[loc] = evt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ErrMissing wraps the error of an event file that cannot be opened.
// Monitoring for that mode is then disabled rather than the run aborted.
type ErrMissing struct {
	Path string
	Err  error
}

func (e *ErrMissing) Error() string {
	return "cannot open event file " + e.Path + ": " + e.Err.Error()
}

func open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ErrMissing{Path: path, Err: err}
	}
	return f, nil
}

// LoadAutomaton reads the automaton event file at path.
func LoadAutomaton(path string) (AutomatonMap, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := ParseAutomaton(f)
	return m, errors.Wrapf(err, "%v", path)
}

// LoadProtocol reads the protocol event file at path.
func LoadProtocol(path string) (ProtocolMap, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := ParseProtocol(f)
	return m, errors.Wrapf(err, "%v", path)
}
