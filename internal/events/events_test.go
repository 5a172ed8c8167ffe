// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package events

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestParseAutomaton(t *testing.T) {
	m, err := ParseAutomaton(strings.NewReader("foo.c:20:3\n\nbar.c:1:-1\nfoo.c:20:9\n"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(AutomatonMap{"foo.c:20": 3, "bar.c:1": -1}, m); diff != "" {
		t.Fatalf("map differs (-want +got):\n%s", diff)
	}
}

func TestParseProtocol(t *testing.T) {
	m, err := ParseProtocol(strings.NewReader("net.c:5:connected\nnet.c:9:a:b\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := ProtocolMap{"net.c:5": "connected", "net.c:9:a": "b"}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Fatalf("map differs (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	for _, data := range []string{"foo.c", ":3", "foo.c:20:"} {
		if _, err := ParseProtocol(strings.NewReader(data)); err == nil {
			t.Errorf("protocol %q: no error", data)
		}
	}
	if _, err := ParseAutomaton(strings.NewReader("foo.c:20:x")); err == nil {
		t.Error("non-numeric automaton output accepted")
	}
}

func TestLoadMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none")
	_, err := LoadAutomaton(path)
	var missing *ErrMissing
	if !errors.As(err, &missing) || missing.Path != path {
		t.Fatalf("got %v", err)
	}
	_, err = LoadProtocol(path)
	if !errors.As(err, &missing) {
		t.Fatalf("got %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "revents.txt")
	if err := os.WriteFile(path, []byte("foo.c:20:3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadAutomaton(path)
	if err != nil {
		t.Fatal(err)
	}
	if m["foo.c:20"] != 3 {
		t.Fatalf("got %v", m)
	}
}
