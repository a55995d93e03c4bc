// Copyright 2024 The Gaitsym Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cpmech/gosl/io"
)

// dumpStream is one entity's `<id>.tsv` output channel (spec.md §6 "Dump
// streams"): a header line followed by one tab-separated record per
// physical step. The underlying file is opened lazily — nothing touches
// disk until Close flushes the accumulated buffer — and closed once, at
// Simulation destruction, matching the scoped-resource note of spec.md §5
// ("Dump file streams: opened lazily on first dump, closed at Simulation
// destruction").
type dumpStream struct {
	id     string
	header []string
	sample func() []float64

	buf     strings.Builder
	wrote   bool
	broken  bool
	lastErr error
}

func newDumpStream(id string, header []string, sample func() []float64) *dumpStream {
	return &dumpStream{id: id, header: header, sample: sample}
}

func (d *dumpStream) appendStep() {
	if d.broken {
		return
	}
	if !d.wrote {
		d.buf.WriteString(strings.Join(d.header, "\t"))
		d.buf.WriteByte('\n')
		d.wrote = true
	}
	vals := d.sample()
	fields := make([]string, len(vals))
	for i, v := range vals {
		// Scientific notation with 17 digits after the decimal point (18
		// significant digits), per spec.md §6.
		fields[i] = fmt.Sprintf("%.17e", v)
	}
	d.buf.WriteString(strings.Join(fields, "\t"))
	d.buf.WriteByte('\n')
}

// RegisterDump opens a dump channel for one entity: header names the
// columns (first line of the .tsv) and sample reads that entity's current
// values, called once per step while the channel stays healthy. Entities
// call this at load time when their model-file Dump attribute is true.
func (s *Simulation) RegisterDump(id string, header []string, sample func() []float64) {
	if s.dumps == nil {
		s.dumps = make(map[string]*dumpStream)
	}
	s.dumps[id] = newDumpStream(id, header, sample)
}

// dumpStep appends one record to every healthy dump stream (spec.md §4.1
// phase 9, "append dump records").
func (s *Simulation) dumpStep() {
	for _, d := range s.dumps {
		d.appendStep()
	}
}

// closeDumps flushes every dump stream's buffer to `<dir>/<id>.tsv` and
// marks it closed; this is the "closed at Simulation destruction" half of
// the dump-stream resource contract, invoked by the CLI after Run returns.
// A stream whose write fails is a Resource error (spec.md §7): it is
// disabled (its error recorded) rather than aborting the run, since by the
// time Close runs the simulation has already finished.
func (s *Simulation) closeDumps(dir string) []error {
	var errs []error
	for id, d := range s.dumps {
		if d.broken || !d.wrote {
			continue
		}
		if err := writeFileSD(dir, id+".tsv", d.buf.String()); err != nil {
			d.broken = true
			d.lastErr = err
			errs = append(errs, fmt.Errorf("dump %q: %w", id, err))
		}
	}
	return errs
}

// writeFileSD adapts gosl's panic-on-failure file writers into the
// resource-error channel of spec.md §7 (log and disable, don't crash),
// the same panic-to-sink conversion spec.md §9 prescribes for the
// engine's C-style callbacks.
func writeFileSD(dir, fn, data string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	io.WriteStringToFileD(dir, fn, data)
	return nil
}

// disableDump stops accumulating a stream after a resource error during the
// run itself (spec.md §7: "dumping is disabled for that entity for the rest
// of the run; simulation continues unless strict mode is set").
func (s *Simulation) disableDump(id string, err error) {
	if d, ok := s.dumps[id]; ok {
		d.broken = true
		d.lastErr = err
	}
}

// ModelStateEncoder renders the current world into model-file text
// identical in schema to the input (spec.md §6, "Model-state snapshot").
// The sim package only owns the scheduling of when to invoke it; the
// encoding itself belongs to the model-file loader/writer, wired in by the
// CLI at load time to avoid a sim<->modelfile import cycle.
type ModelStateEncoder func(*Simulation) (string, error)

// maybeWriteModelState writes OutputModelStateFile when the configured
// schedule (an exact time or an exact cycle boundary) is reached this step,
// per spec.md §6's CLI flags --output-state-at-time/--output-state-at-cycle.
func (s *Simulation) maybeWriteModelState() {
	if s.Config.OutputModelStateFile == "" || s.StateEncoder == nil {
		return
	}
	due := false
	if s.Config.OutputStateAtTime > 0 && s.Time >= s.Config.OutputStateAtTime && !s.wroteStateAtTime {
		due = true
		s.wroteStateAtTime = true
	}
	if s.Config.OutputStateAtCycle > 0 {
		cycle := s.CycleTime()
		if cycle > 0 {
			n := int(s.Time / cycle)
			if n >= s.Config.OutputStateAtCycle && s.lastStateCycle < s.Config.OutputStateAtCycle {
				due = true
				s.lastStateCycle = n
			}
		}
	}
	if !due {
		return
	}
	text, err := s.StateEncoder(s)
	if err != nil {
		s.lastResourceErr = err
		return
	}
	if err := writeFile(s.Config.OutputModelStateFile, text); err != nil {
		s.lastResourceErr = err
		return
	}
	if s.Config.AbortAfterState {
		s.abortAfterStateWrite = true
	}
}

// writeFile is the whole-path variant of writeFileSD.
func writeFile(path, data string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	buf := bytes.NewBufferString(data)
	io.WriteFile(path, buf)
	return nil
}
