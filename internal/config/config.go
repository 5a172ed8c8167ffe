// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package config holds the configuration of one instrumentation run.
// A Config is assembled once (defaults, optional TOML file, environment,
// command line), validated, and then passed to every component.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Mode is the phase selected by the supplied inputs.
type Mode int

const (
	// ModeCoverage instruments plain coverage: neither targets nor
	// distances were given.
	ModeCoverage Mode = iota
	// ModeExtract is the preprocessing phase: targets were given.
	ModeExtract
	// ModeDistance is the distance instrumentation phase.
	ModeDistance
)

func (m Mode) String() string {
	switch m {
	case ModeExtract:
		return "preprocessing"
	case ModeDistance:
		return "distance instrumentation"
	default:
		return "coverage"
	}
}

// Config is the configuration of one run.
type Config struct {
	TargetsFile         string `toml:"targets"`
	DistanceFile        string `toml:"distance"`
	AutomatonEventsFile string `toml:"revents"`
	ProtocolEventsFile  string `toml:"pevents"`
	OutDir              string `toml:"outdir"`

	// InstRatio is the percentage of blocks that get coverage.
	InstRatio int `toml:"inst_ratio"`
	// DistanceRatio is the percentage of blocks with a known distance
	// that get distance accumulation.
	DistanceRatio int `toml:"distance_ratio"`
	// Selective drops blocks that have no known distance.
	Selective bool `toml:"selective"`

	Quiet     bool `toml:"quiet"`
	Harden    bool `toml:"harden"`
	Sanitizer bool `toml:"sanitizer"`

	// Trace injects a profiling call into every named block during extraction.
	Trace bool `toml:"trace"`
	// Seed fixes the random source; 0 seeds from the clock.
	Seed uint64 `toml:"seed"`
	// LockLedgers serializes ledger appends across processes.
	LockLedgers bool `toml:"lock_ledgers"`
	// LibraryPrefixes are path prefixes never analysed.
	LibraryPrefixes []string `toml:"library_prefixes"`
}

// Default returns the configuration used when nothing is supplied.
func Default() *Config {
	return &Config{
		InstRatio:       100,
		DistanceRatio:   100,
		LockLedgers:     true,
		LibraryPrefixes: []string{"/usr/"},
	}
}

// Error is a configuration error. All of them are fatal.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("bad configuration: %v: %v", e.Field, e.Msg)
}

func errorf(field, format string, args ...interface{}) *Error {
	return &Error{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Mode returns the phase selected by the inputs. Call Validate first.
func (c *Config) Mode() Mode {
	switch {
	case c.TargetsFile != "":
		return ModeExtract
	case c.DistanceFile != "":
		return ModeDistance
	default:
		return ModeCoverage
	}
}

// Monitoring reports whether any event map was requested.
func (c *Config) Monitoring() bool {
	return c.AutomatonEventsFile != "" || c.ProtocolEventsFile != ""
}

// Validate checks the configuration as a whole.
func (c *Config) Validate() error {
	if c.TargetsFile != "" && c.DistanceFile != "" {
		return errorf("targets", "cannot specify both targets and distance")
	}
	if c.TargetsFile != "" && c.OutDir == "" {
		return errorf("outdir", "provide output directory with targets")
	}
	if c.DistanceFile == "" && c.Monitoring() {
		return errorf("revents", "event files require a distance file")
	}
	if c.InstRatio < 1 || c.InstRatio > 100 {
		return errorf("inst_ratio", "%v is not between 1 and 100", c.InstRatio)
	}
	if c.DistanceRatio < 1 || c.DistanceRatio > 100 {
		return errorf("distance_ratio", "%v is not between 1 and 100", c.DistanceRatio)
	}
	return nil
}

// LoadFile overlays the TOML file at path onto c.
func (c *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return errors.Wrapf(err, "failed to parse config %v", path)
	}
	if undec := md.Undecoded(); len(undec) != 0 {
		var keys []string
		for _, k := range undec {
			keys = append(keys, k.String())
		}
		return errorf(strings.Join(keys, ","), "unknown key in %v", path)
	}
	return nil
}

// Environment variables honoured by LoadEnv.
const (
	EnvInstRatio     = "AFL_INST_RATIO"
	EnvDistanceRatio = "AFLGO_INST_RATIO"
	EnvSelective     = "AFLGO_SELECTIVE"
	EnvQuiet         = "AFL_QUIET"
	EnvHarden        = "AFL_HARDEN"
	EnvASAN          = "AFL_USE_ASAN"
	EnvMSAN          = "AFL_USE_MSAN"
	EnvTracing       = "AFLGO_TRACING"
	EnvSeed          = "AFLGO_SEED"
)

// LoadEnv overlays the environment onto c. getenv is usually os.Getenv.
func (c *Config) LoadEnv(getenv func(string) string) error {
	if v := getenv(EnvInstRatio); v != "" {
		r, err := parseRatio(EnvInstRatio, v)
		if err != nil {
			return err
		}
		c.InstRatio = r
	}
	if v := getenv(EnvDistanceRatio); v != "" {
		r, err := parseRatio(EnvDistanceRatio, v)
		if err != nil {
			return err
		}
		c.DistanceRatio = r
	}
	if v := getenv(EnvSelective); v != "" {
		switch v {
		case "0":
			c.Selective = false
		case "1":
			c.Selective = true
		default:
			return errorf(EnvSelective, "bad value %q (must be 0 or 1)", v)
		}
	}
	if v := getenv(EnvSeed); v != "" {
		seed, err := strconv.ParseUint(v, 0, 64)
		if err != nil {
			return errorf(EnvSeed, "bad value %q", v)
		}
		c.Seed = seed
	}
	if getenv(EnvQuiet) != "" {
		c.Quiet = true
	}
	if getenv(EnvHarden) != "" {
		c.Harden = true
	}
	if getenv(EnvASAN) != "" || getenv(EnvMSAN) != "" {
		c.Sanitizer = true
	}
	if getenv(EnvTracing) != "" {
		c.Trace = true
	}
	return nil
}

func parseRatio(field, v string) (int, error) {
	r, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || r < 1 || r > 100 {
		return 0, errorf(field, "bad value %q (must be between 1 and 100)", v)
	}
	return r, nil
}

// HardeningLabel describes the build flavour for the summary line.
func (c *Config) HardeningLabel() string {
	switch {
	case c.Harden:
		return "hardened"
	case c.Sanitizer:
		return "ASAN/MSAN"
	default:
		return "non-hardened"
	}
}
