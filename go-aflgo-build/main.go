// Copyright 2015 go-fuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Command go-aflgo-build runs the directed fuzzing passes over Go packages.
//
// The preprocessing phase (-targets) writes block, call and function ledgers
// and control-flow graphs for the distance calculator. The instrumentation
// phase (-distance) injects coverage and distance feedback.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(Build), "")
	subcommands.Register(new(Inspect), "")

	flag.Parse()
	logrus.SetOutput(os.Stderr)
	os.Exit(int(subcommands.Execute(context.Background())))
}

func failf(str string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, str+"\n", args...)
	os.Exit(1)
}
