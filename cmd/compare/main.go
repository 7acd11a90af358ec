// Copyright ©2026 The confecalc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command compare checks an assemble run log against a baseline session
// and exits non-zero when a variant failed, vanished or slowed down.
//
// Usage:
//
//	compare -baseline runs/assemble_20260101_120000.000.json -dir runs
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/LynnColeArt/confecalc"
)

func main() {
	var (
		baselineFile = flag.String("baseline", "", "Baseline run log")
		currentFile  = flag.String("current", "", "Current run log (default: latest in -dir)")
		dir          = flag.String("dir", "runs", "Directory searched for the latest run log")
		regress      = flag.Float64("regress", 1.1, "Slowdown factor treated as a regression")
		allowSlower  = flag.Bool("allow-slower", false, "Do not fail on performance regressions")
	)
	flag.Parse()
	logger := confecalc.NewTextLogger(slog.LevelInfo)

	if *baselineFile == "" || *regress <= 1 {
		fmt.Fprintln(os.Stderr, "compare: -baseline is required and -regress must exceed 1")
		flag.Usage()
		os.Exit(2)
	}

	baseline, err := confecalc.ReadRunLog(*baselineFile)
	if err != nil {
		logger.Error("cannot load baseline", "path", *baselineFile, "error", err)
		os.Exit(1)
	}

	path := *currentFile
	if path == "" {
		if path, err = confecalc.LatestRunLog(*dir); err != nil {
			logger.Error("cannot find current run log", "error", err)
			os.Exit(1)
		}
	}
	current, err := confecalc.ReadRunLog(path)
	if err != nil {
		logger.Error("cannot load current run log", "path", path, "error", err)
		os.Exit(1)
	}

	comparisons := confecalc.CompareRuns(baseline, current, *regress)
	printSummary(os.Stdout, comparisons)
	os.Exit(exitCode(comparisons, *allowSlower))
}

// exitCode is 1 when a variant failed or vanished, or slowed down and
// slowdowns are not allowed.
func exitCode(comparisons []confecalc.RunComparison, allowSlower bool) int {
	for _, c := range comparisons {
		switch c.Status {
		case confecalc.CompareFail, confecalc.CompareMissing:
			return 1
		case confecalc.CompareSlower:
			if !allowSlower {
				return 1
			}
		}
	}
	return 0
}

func printSummary(w io.Writer, comparisons []confecalc.RunComparison) {
	counts := make(map[string]int)
	for _, c := range comparisons {
		counts[c.Status]++
	}

	fmt.Fprintf(w, "Total variants: %d\n", len(comparisons))
	for _, status := range []string{
		confecalc.ComparePass,
		confecalc.CompareFail,
		confecalc.CompareMissing,
		confecalc.CompareSlower,
		confecalc.CompareFaster,
	} {
		fmt.Fprintf(w, "  %-8s %d\n", status+":", counts[status])
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-36s %-8s %14s %14s %8s  %s\n", "Variant", "Status", "Baseline", "Current", "Speedup", "Note")
	fmt.Fprintln(w, strings.Repeat("-", 96))
	for _, c := range comparisons {
		fmt.Fprintf(w, "%-36s %-8s %14v %14v %8.2f  %s\n",
			c.Key, c.Status, c.Baseline, c.Current, c.Speedup, c.Message)
	}
}
