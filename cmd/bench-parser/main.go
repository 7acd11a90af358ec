// Copyright ©2026 The confecalc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command bench-parser turns `go test -json -bench` output into a run log
// that compare can check against a baseline.
//
// Usage:
//
//	go test -json -run '^$' -bench . ./assignment > bench.json
//	bench-parser -file bench.json -report runs
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/LynnColeArt/confecalc"
)

func main() {
	file := flag.String("file", "", "JSON test event stream (default: stdin)")
	report := flag.String("report", "", "Write the parsed results to a run log in this directory")
	flag.Parse()
	logger := confecalc.NewTextLogger(slog.LevelInfo)

	var in io.Reader = os.Stdin
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			logger.Error("cannot open events", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	if err := run(in, os.Stdout, *report, logger); err != nil {
		logger.Error("bench-parser failed", "error", err)
		os.Exit(1)
	}
}

var errNoResults = errors.New("no benchmark results found")

// run parses the event stream in, records the results to a run log in
// report when it is set, and prints the summary to out.
func run(in io.Reader, out io.Writer, report string, logger *confecalc.Logger) error {
	results, err := confecalc.ParseBenchmarkEvents(in)
	if err != nil {
		return fmt.Errorf("parse events: %w", err)
	}
	if len(results) == 0 {
		return errNoResults
	}

	if report != "" {
		runs, err := confecalc.OpenRunLog(report, "bench")
		if err != nil {
			return err
		}
		for _, r := range results {
			if err := runs.Record(r); err != nil {
				return fmt.Errorf("record %s: %w", r.Name, err)
			}
		}
		logger.Info("run log written", "path", runs.Path(), "results", len(results))
	}

	return confecalc.WriteSummary(out, results)
}
