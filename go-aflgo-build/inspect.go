// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/aflgo/go-aflgo/internal/config"
	"github.com/aflgo/go-aflgo/internal/identity"
	"github.com/aflgo/go-aflgo/internal/ir"
	"github.com/aflgo/go-aflgo/internal/ir/ssair"
)

// Inspect implements subcommands.Command for the "inspect" command.
type Inspect struct {
	configFile string
	dir        string
	tags       string
	fn         string
}

// Name implements subcommands.Command.
func (*Inspect) Name() string {
	return "inspect"
}

// Synopsis implements subcommands.Command.
func (*Inspect) Synopsis() string {
	return "print the IR of packages with block identities"
}

// Usage implements subcommands.Command.
func (*Inspect) Usage() string {
	return `inspect [-config file] [-func name] <packages>
`
}

// SetFlags implements subcommands.Command.
func (i *Inspect) SetFlags(f *flag.FlagSet) {
	f.StringVar(&i.configFile, "config", "", "TOML configuration file")
	f.StringVar(&i.dir, "dir", "", "directory to load packages from")
	f.StringVar(&i.tags, "tags", "", "comma-separated build tags")
	f.StringVar(&i.fn, "func", "", "print the control-flow graph of this function in dot format")
}

// Execute implements subcommands.Command.Execute.
func (i *Inspect) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	res, err := resolver(i.configFile)
	if err != nil {
		failf("%v", err)
	}
	var tags []string
	if i.tags != "" {
		tags = strings.Split(i.tags, ",")
	}
	m, err := ssair.Load(i.dir, tags, f.Args()...)
	if err != nil {
		failf("%v", err)
	}
	for _, fn := range m.Funcs {
		for _, b := range fn.Blocks {
			if id, ok := res.Resolve(b); ok {
				b.Name = string(id)
			}
		}
	}
	if i.fn == "" {
		if err := ir.Fprint(os.Stdout, m); err != nil {
			failf("%v", err)
		}
		return subcommands.ExitSuccess
	}
	for _, fn := range m.Funcs {
		if fn.Name == i.fn {
			if err := ir.WriteGraph(os.Stdout, fn); err != nil {
				failf("%v", err)
			}
			return subcommands.ExitSuccess
		}
	}
	failf("function %v not found", i.fn)
	return subcommands.ExitFailure
}

// resolver returns the resolver build would use: library prefixes come
// from the defaults, the config file and the environment.
func resolver(configFile string) (*identity.Resolver, error) {
	cfg := config.Default()
	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadEnv(os.Getenv); err != nil {
		return nil, err
	}
	return identity.NewResolver(cfg.LibraryPrefixes...), nil
}
