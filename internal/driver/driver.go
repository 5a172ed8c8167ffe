// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package driver runs one instrumentation pass over a module: it selects
// the phase from the configuration, loads the input files and reports.
package driver

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	base "github.com/aflgo/go-aflgo/go-aflgo-defs"
	"github.com/aflgo/go-aflgo/internal/config"
	"github.com/aflgo/go-aflgo/internal/distance"
	"github.com/aflgo/go-aflgo/internal/events"
	"github.com/aflgo/go-aflgo/internal/extract"
	"github.com/aflgo/go-aflgo/internal/identity"
	"github.com/aflgo/go-aflgo/internal/instrument"
	"github.com/aflgo/go-aflgo/internal/ir"
	"github.com/aflgo/go-aflgo/internal/ledger"
	"github.com/aflgo/go-aflgo/internal/pcg"
	"github.com/aflgo/go-aflgo/internal/sampling"
)

// Version is reported in the banner.
const Version = "2.57b"

// stderrIsTerminal reports whether the banner and summary have a reader.
var stderrIsTerminal = func() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Options are the collaborators of a run that are not configuration.
type Options struct {
	// Source overrides the random source; by default a pcg.Rand seeded
	// with the configured seed (or the clock).
	Source sampling.Source
	Log    *logrus.Logger
	// Banner receives the banner; os.Stderr by default.
	Banner io.Writer
	// Mirror receives a copy of every ledger line when set.
	Mirror io.Writer
	// TieBreak selects the distance used for duplicate identities.
	TieBreak distance.TieBreak
}

// Summary is the outcome of a run.
type Summary struct {
	Mode    config.Mode
	Extract *extract.Result    // ModeExtract
	Report  *instrument.Report // other modes
}

// Run validates cfg and runs the selected phase over m. Nothing is
// written when the configuration is invalid.
func Run(cfg *config.Config, m *ir.Module, opts Options) (*Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Banner == nil {
		opts.Banner = os.Stderr
	}
	log := opts.Log.WithFields(logrus.Fields{
		"module":           m.Name,
		"mode":             cfg.Mode().String(),
		"identity_version": identity.Version,
	})
	quiet := cfg.Quiet || !stderrIsTerminal()
	if !quiet {
		banner(opts.Banner, cfg.Mode())
	}
	resolver := identity.NewResolver(cfg.LibraryPrefixes...)

	if cfg.Mode() == config.ModeExtract {
		res, err := runExtract(cfg, m, resolver, opts, log)
		if err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{
			"functions": res.Functions,
			"targets":   res.TargetFunctions,
			"blocks":    res.Blocks,
			"calls":     res.CallEdges,
		}).Debug("extraction done")
		return &Summary{Mode: config.ModeExtract, Extract: res}, nil
	}

	iopts := instrument.Options{
		Resolver: resolver,
		Layout:   base.NativeLayout,
		Log:      log,
	}
	if cfg.Mode() == config.ModeDistance {
		dist, err := distance.Load(cfg.DistanceFile, opts.TieBreak)
		if err != nil {
			return nil, err
		}
		iopts.Distances = dist
		if iopts.Automaton, err = loadAutomaton(cfg.AutomatonEventsFile, log); err != nil {
			return nil, err
		}
		if iopts.Protocol, err = loadProtocol(cfg.ProtocolEventsFile, log); err != nil {
			return nil, err
		}
	}
	src := opts.Source
	if src == nil {
		if cfg.Seed != 0 {
			src = pcg.NewSeeded(cfg.Seed)
		} else {
			src = pcg.New()
		}
	}
	iopts.Sampler = sampling.New(src, cfg.InstRatio, cfg.DistanceRatio, cfg.Selective)
	rep := instrument.New(iopts).Run(m)
	if !quiet {
		if rep.Instrumented == 0 {
			log.Warn("No instrumentation targets found.")
		} else {
			log.Infof("Instrumented %v locations (%v mode, ratio %v%%, dist. ratio %v%%).",
				rep.Instrumented, cfg.HardeningLabel(), cfg.InstRatio, cfg.DistanceRatio)
		}
	}
	return &Summary{Mode: cfg.Mode(), Report: rep}, nil
}

func runExtract(cfg *config.Config, m *ir.Module, resolver *identity.Resolver, opts Options, log *logrus.Entry) (*extract.Result, error) {
	targets, err := identity.LoadTargets(cfg.TargetsFile)
	if err != nil {
		return nil, err
	}
	if targets.Len() == 0 {
		log.Warn("targets file lists no locations")
	}
	ledgers, err := ledger.OpenSet(cfg.OutDir, cfg.LockLedgers)
	if err != nil {
		return nil, err
	}
	if opts.Mirror != nil {
		ledgers.Mirror(opts.Mirror)
	}
	res, err := extract.Run(m, extract.Options{
		Resolver: resolver,
		Targets:  targets,
		Ledgers:  ledgers,
		OutDir:   cfg.OutDir,
		Trace:    cfg.Trace,
		Log:      log,
	})
	if err != nil {
		return nil, err
	}
	if err := ledgers.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to write ledgers")
	}
	return res, nil
}

func loadAutomaton(path string, log *logrus.Entry) (events.AutomatonMap, error) {
	if path == "" {
		return nil, nil
	}
	m, err := events.LoadAutomaton(path)
	var missing *events.ErrMissing
	if errors.As(err, &missing) {
		log.WithError(err).Warn("automaton monitoring disabled")
		return nil, nil
	}
	return m, err
}

func loadProtocol(path string, log *logrus.Entry) (events.ProtocolMap, error) {
	if path == "" {
		return nil, nil
	}
	m, err := events.LoadProtocol(path)
	var missing *events.ErrMissing
	if errors.As(err, &missing) {
		log.WithError(err).Warn("protocol monitoring disabled")
		return nil, nil
	}
	return m, err
}

func banner(w io.Writer, mode config.Mode) {
	cyan := color.New(color.FgCyan)
	bright := color.New(color.FgHiWhite)
	if mode == config.ModeCoverage {
		cyan.Fprint(w, "afl-ssa-pass ")
		bright.Fprintln(w, Version)
		return
	}
	cyan.Fprint(w, "aflgo-ssa-pass (yeah!) ")
	bright.Fprint(w, Version)
	color.New(color.Reset).Fprintf(w, " (%v mode)\n", mode)
}
