// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command gaitsym runs one forward-dynamics simulation of a musculoskeletal
// model and prints the terminal fitness scalar. Exit codes: 0 normal
// termination, 1 abort-by-predicate, 2 model load failure, 3 I/O error.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/cpmech/gaitsym/modelfile"
	"github.com/cpmech/gosl/io"
	"github.com/cpmech/gosl/mpi"
)

func main() {
	os.Exit(run())
}

func run() int {
	// the core is single-simulation; mpi is started only so an outer
	// population-based optimiser can wrap this binary rank-per-candidate
	// without code changes, and so only rank 0 chats on stdout
	mpi.Start(false)
	defer mpi.Stop(false)
	root := mpi.Rank() == 0

	var (
		configFile      = flag.String("config", "", "model file to load (required)")
		outputState     = flag.String("output-state", "", "write a model-state snapshot to this file")
		outputStateTime = flag.Float64("output-state-at-time", 0, "write the snapshot when simulation time reaches T")
		outputStateCyc  = flag.Int("output-state-at-cycle", 0, "write the snapshot at the start of cycle N")
		dumpDir         = flag.String("dump", ".", "directory for per-entity .tsv dump streams")
		abortAfterState = flag.Bool("abort-after-state", false, "terminate once the model-state snapshot is written")
		verbose         = flag.Bool("verbose", false, "print load warnings and progress")
	)
	flag.Parse()

	if *configFile == "" {
		if root {
			io.PfRed("gaitsym: --config MODEL.xml is required\n")
		}
		return 2
	}

	data, err := io.ReadFile(*configFile)
	if err != nil {
		if root {
			io.PfRed("gaitsym: cannot read %q: %v\n", *configFile, err)
		}
		return 3
	}

	model, err := modelfile.Load(data, *verbose && root)
	if err != nil {
		if root {
			io.PfRed("gaitsym: model load failed: %v\n", err)
		}
		return 2
	}

	s := model.Sim
	if *outputState != "" {
		s.Config.OutputModelStateFile = *outputState
		s.Config.OutputStateAtTime = *outputStateTime
		s.Config.OutputStateAtCycle = *outputStateCyc
		s.Config.AbortAfterState = *abortAfterState
	}

	if root && *verbose {
		io.PfWhite("\nGaitsym -- forward-dynamics musculoskeletal simulator\n\n")
		io.Pf("model    = %s\n", *configFile)
		io.Pf("stepsize = %g\n", s.Config.StepSize)
		io.Pf("bodies=%d joints=%d muscles=%d drivers=%d targets=%d\n",
			s.Bodies.Len(), s.Joints.Len(), s.Muscles.Len(), len(s.Drivers), s.DataTargets.Len())
	}

	fitness, err := s.Run(context.Background())
	if errs := s.Close(*dumpDir); len(errs) > 0 {
		for _, e := range errs {
			if root {
				io.PfRed("gaitsym: %v\n", e)
			}
		}
		return 3
	}
	if err != nil {
		if root {
			io.PfRed("gaitsym: %v\n", err)
		}
		return 3
	}

	io.Pf("%.17e\n", fitness)
	if aborted, reason := s.Aborted(); aborted {
		fmt.Fprintf(os.Stderr, "abort: %s\n", reason)
		return 1
	}
	return 0
}
