// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/aflgo/go-aflgo/internal/config"
	"github.com/aflgo/go-aflgo/internal/distance"
	"github.com/aflgo/go-aflgo/internal/driver"
	"github.com/aflgo/go-aflgo/internal/ir"
	"github.com/aflgo/go-aflgo/internal/ir/ssair"
)

// Build implements subcommands.Command for the "build" command.
type Build struct {
	configFile string
	cfg        config.Config
	seed       uint64
	dir        string
	tags       string
	out        string
	report     string
	firstWins  bool
	noLock     bool
	verbose    bool
}

// Name implements subcommands.Command.
func (*Build) Name() string {
	return "build"
}

// Synopsis implements subcommands.Command.
func (*Build) Synopsis() string {
	return "run the preprocessing or instrumentation pass over packages"
}

// Usage implements subcommands.Command.
func (*Build) Usage() string {
	return `build [flags] <packages>
  Preprocessing:   build -targets BBtargets.txt -outdir out ./...
  Instrumentation: build -distance distance.cfg.txt [-revents f] [-pevents f] -o out.ir ./...
`
}

// SetFlags implements subcommands.Command.
func (b *Build) SetFlags(f *flag.FlagSet) {
	f.StringVar(&b.configFile, "config", "", "TOML configuration file")
	f.StringVar(&b.cfg.TargetsFile, "targets", "", "input file containing the target lines of code")
	f.StringVar(&b.cfg.DistanceFile, "distance", "", "distance file containing the distance of each basic block to the targets")
	f.StringVar(&b.cfg.OutDir, "outdir", "", "output directory for the ledgers and dot-files")
	f.StringVar(&b.cfg.AutomatonEventsFile, "revents", "", "event file mapping locations to automaton outputs")
	f.StringVar(&b.cfg.ProtocolEventsFile, "pevents", "", "event file mapping locations to protocol propositions")
	f.Uint64Var(&b.seed, "seed", 0, "random seed (0 seeds from the clock)")
	f.StringVar(&b.dir, "dir", "", "directory to load packages from")
	f.StringVar(&b.tags, "tags", "", "comma-separated build tags")
	f.StringVar(&b.out, "o", "", "write the instrumented IR listing to this file")
	f.StringVar(&b.report, "report", "", "write a YAML instrumentation report to this file")
	f.BoolVar(&b.firstWins, "first-distance", false, "use the first entry of duplicate distance lines instead of the last")
	f.BoolVar(&b.noLock, "nolock", false, "append to ledgers without file locking")
	f.BoolVar(&b.verbose, "v", false, "verbose output")
}

// config merges defaults, the config file, the environment and the flags,
// in increasing priority.
func (b *Build) config() (*config.Config, error) {
	cfg := config.Default()
	if b.configFile != "" {
		if err := cfg.LoadFile(b.configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadEnv(os.Getenv); err != nil {
		return nil, err
	}
	for _, x := range []struct {
		dst *string
		src string
	}{
		{&cfg.TargetsFile, b.cfg.TargetsFile},
		{&cfg.DistanceFile, b.cfg.DistanceFile},
		{&cfg.OutDir, b.cfg.OutDir},
		{&cfg.AutomatonEventsFile, b.cfg.AutomatonEventsFile},
		{&cfg.ProtocolEventsFile, b.cfg.ProtocolEventsFile},
	} {
		if x.src != "" {
			*x.dst = x.src
		}
	}
	if b.seed != 0 {
		cfg.Seed = b.seed
	}
	if b.noLock {
		cfg.LockLedgers = false
	}
	return cfg, cfg.Validate()
}

// Execute implements subcommands.Command.Execute.
func (b *Build) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	cfg, err := b.config()
	if err != nil {
		failf("%v", err)
	}
	log := logrus.StandardLogger()
	opts := driver.Options{Log: log}
	if b.verbose {
		log.SetLevel(logrus.DebugLevel)
		opts.Mirror = os.Stderr
	}
	if b.firstWins {
		opts.TieBreak = distance.FirstWins
	}

	var tags []string
	if b.tags != "" {
		tags = strings.Split(b.tags, ",")
	}
	m, err := ssair.Load(b.dir, tags, f.Args()...)
	if err != nil {
		failf("%v", err)
	}
	sum, err := driver.Run(cfg, m, opts)
	if err != nil {
		failf("%v", err)
	}

	if b.out != "" {
		writeFile(b.out, func(fd *os.File) error { return ir.Fprint(fd, m) })
	}
	if b.report != "" {
		if sum.Report == nil {
			failf("-report is only available in instrumentation mode")
		}
		writeFile(b.report, func(fd *os.File) error { return sum.Report.WriteYAML(fd) })
	}
	return subcommands.ExitSuccess
}

func writeFile(path string, write func(*os.File) error) {
	fd, err := os.Create(path)
	if err != nil {
		failf("failed to create %v: %v", path, err)
	}
	if err := write(fd); err != nil {
		fd.Close()
		failf("failed to write %v: %v", path, err)
	}
	if err := fd.Close(); err != nil {
		failf("failed to write %v: %v", path, err)
	}
}
