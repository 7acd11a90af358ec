// Copyright ©2026 The confecalc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command assemble builds batches of conformation assignments both on
// plain launches and on cooperative thread blocks, checks that the two
// agree and reports how long each took.
//
// Usage:
//
//	assemble -positions 20 -grid 256 -iters 10
//	assemble -out space.cspc -precision 64
//	assemble -in space.cspc -precision 64 -threads 64
//	assemble -report runs -iters 20
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/LynnColeArt/confecalc"
	"github.com/LynnColeArt/confecalc/assignment"
	"github.com/LynnColeArt/confecalc/confspace"
	"github.com/LynnColeArt/confecalc/real3"
)

type options struct {
	positions  int
	confs      int
	atoms      int
	seed       int64
	threads    int
	grid       int
	iters      int
	unassigned float64
	in         string
	out        string
	report     string
	precision  int
	cold       bool
	compress   confspace.Compression
}

func main() {
	var opts options
	flag.IntVar(&opts.positions, "positions", 12, "Design positions in a generated space")
	flag.IntVar(&opts.confs, "confs", 8, "Maximum conformations per position in a generated space")
	flag.IntVar(&opts.atoms, "atoms", 12, "Maximum atoms per conformation in a generated space")
	flag.Int64Var(&opts.seed, "seed", 1, "Random seed")
	flag.IntVar(&opts.threads, "threads", 0, "Threads per cooperative block (0 = largest that fits)")
	flag.IntVar(&opts.grid, "grid", 128, "Assignments built per launch")
	flag.IntVar(&opts.iters, "iters", 5, "Timed launches per variant")
	flag.Float64Var(&opts.unassigned, "unassigned", 0.2, "Probability a position is left unassigned")
	flag.StringVar(&opts.in, "in", "", "Read the conformation space from this file instead of generating one")
	flag.StringVar(&opts.out, "out", "", "Write the conformation space to this file")
	flag.StringVar(&opts.report, "report", "", "Append timing results to a JSON session file in this directory")
	flag.BoolVar(&opts.cold, "cold", false, "Evict caches before every timed launch")
	flag.IntVar(&opts.precision, "precision", 32, "Floating point precision: 32 or 64")
	compression := flag.String("compression", "zstd", "Compression for -out: none, zstd, lz4")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", false, "Log as JSON")
	device := flag.Int("device", 0, "Device to run on")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level: %v\n", err)
		os.Exit(2)
	}
	var err error
	if opts.compress, err = confspace.ParseCompression(*compression); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -compression: %v\n", err)
		os.Exit(2)
	}
	logger := confecalc.NewTextLogger(level)
	if *logJSON {
		logger = confecalc.NewJSONLogger(level)
	}

	if err := confecalc.SetDevice(*device); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -device: %v (%d available)\n", err, confecalc.GetDeviceCount())
		os.Exit(2)
	}
	dev, err := confecalc.GetDeviceProperties(*device)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -device: %v\n", err)
		os.Exit(2)
	}
	ctx := confecalc.NewContext(dev)
	defer ctx.Destroy()
	ctx.SetLogger(logger)

	var runs *confecalc.RunLog
	if opts.report != "" {
		if runs, err = confecalc.OpenRunLog(opts.report, "assemble"); err != nil {
			logger.Error("cannot open run log", "error", err)
			os.Exit(1)
		}
	}

	switch opts.precision {
	case 32:
		err = run[float32](ctx, opts, runs)
	case 64:
		err = run[float64](ctx, opts, runs)
	default:
		err = fmt.Errorf("precision must be 32 or 64, got %d", opts.precision)
	}
	if runs != nil {
		if serr := confecalc.WriteSummary(os.Stdout, runs.Results()); serr != nil && err == nil {
			err = serr
		}
		logger.Info("run log written", "path", runs.Path())
	}
	if err != nil {
		logger.Error("assemble failed", "error", err)
		ctx.Destroy()
		os.Exit(1)
	}
}

func loadSpace[T real3.Float](ctx *confecalc.Context, opts options) (*confspace.ConfSpace[T], error) {
	var (
		cs     *confspace.ConfSpace[T]
		err    error
		source = opts.in
	)
	if opts.in != "" {
		cs, err = confspace.ReadFile[T](opts.in)
	} else {
		source = fmt.Sprintf("random(seed=%d)", opts.seed)
		ro := confspace.DefaultRandomOptions()
		ro.NumPos = opts.positions
		ro.MaxConfs = opts.confs
		ro.MaxAtoms = opts.atoms
		cs, err = confspace.Random[T](rand.New(rand.NewSource(opts.seed)), ro)
	}
	if err != nil {
		ctx.Logger().LogConfSpace(context.Background(), source, 0, 0, err)
		return nil, err
	}
	ctx.Logger().LogConfSpace(context.Background(), source, cs.NumPos, cs.MaxNumConfAtoms, nil)

	if opts.out != "" {
		if err := confspace.WriteFileWith(opts.out, cs, opts.compress); err != nil {
			return nil, err
		}
		ctx.Logger().Info("conformation space written", "path", opts.out, "compression", opts.compress)
	}
	return cs, nil
}

func run[T real3.Float](ctx *confecalc.Context, opts options, runs *confecalc.RunLog) error {
	if opts.grid <= 0 || opts.iters <= 0 {
		return fmt.Errorf("-grid and -iters must be positive")
	}

	cs, err := loadSpace[T](ctx, opts)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(opts.seed + 1))
	confs := make([][]int32, opts.grid)
	for i := range confs {
		confs[i] = confspace.RandomConf(rng, cs, opts.unassigned)
		if err := confspace.ValidateConf(cs, confs[i]); err != nil {
			return err
		}
	}

	sequential, err := newBatch(ctx, cs, len(confs))
	if err != nil {
		return err
	}
	defer sequential.free(ctx)
	cooperative, err := newBatch(ctx, cs, len(confs))
	if err != nil {
		return err
	}
	defer cooperative.free(ctx)

	sequentialKernel := sequentialBuild[T]{cs: cs, confs: confs, out: sequential}
	cooperativeKernel := cooperativeBuild[T]{ctx: ctx, cs: cs, confs: confs, out: cooperative}.Run
	sharedBytes := assignment.SharedBytes(cs)
	stream := ctx.CreateStream()

	threads := opts.threads
	if threads <= 0 {
		if threads, err = ctx.OptimizeThreads(cooperativeKernel, sharedBytes, 0); err != nil {
			return err
		}
	}

	grid := confecalc.Dim3{X: len(confs), Y: 1, Z: 1}
	one := confecalc.Dim3{X: 1, Y: 1, Z: 1}
	block := confecalc.Dim3{X: threads, Y: 1, Z: 1}

	var flusher *cacheFlusher
	cache := "hot"
	if opts.cold {
		flusher = newCacheFlusher(coldCacheBytes)
		cache = "cold"
	}

	base := confecalc.RunResult{
		Precision:   opts.precision,
		Positions:   cs.NumPos,
		Assignments: len(confs),
		Cache:       cache,
	}
	seqResult := base
	seqResult.Name = "sequential"
	sequentialTime, err := timeIters(opts.iters, flusher, func() error {
		if err := ctx.LaunchStream(sequentialKernel, grid, one, stream); err != nil {
			return err
		}
		stream.Synchronize()
		return nil
	})
	if err != nil {
		return errors.Join(err, record(runs, seqResult, err))
	}
	seqResult.PerLaunch = sequentialTime

	coopResult := base
	coopResult.Name = "cooperative"
	coopResult.Threads = threads
	coopResult.SharedBytes = sharedBytes
	cooperativeTime, err := timeIters(opts.iters, flusher, func() error {
		return ctx.LaunchCooperative(cooperativeKernel, grid, block, int(sharedBytes))
	})
	if err != nil {
		return errors.Join(err, record(runs, seqResult, nil), record(runs, coopResult, err))
	}
	coopResult.PerLaunch = cooperativeTime

	mismatches := compare(ctx.Logger(), sequential, cooperative)
	var verifyErr error
	if len(mismatches) > 0 {
		verifyErr = confecalc.NewNumericalError("verify",
			fmt.Sprintf("%d of %d assignments differ between sequential and cooperative construction", len(mismatches), len(confs)),
			mismatches)
	}
	if err := record(runs, seqResult, nil); err != nil {
		return err
	}
	if err := record(runs, coopResult, verifyErr); err != nil {
		return err
	}

	usage := assignment.NewTermUsage(cs, sequential.tables)

	allocated, peak := ctx.MemoryStats()
	fmt.Printf("confecalc:    %s\n", confecalc.VersionString())
	fmt.Printf("device:       %d of %d, %s, %d cores, %s\n",
		ctx.Device().ID, confecalc.GetDeviceCount(), ctx.Device().Name, ctx.Device().NumCores, ctx.Device().Features)
	fmt.Printf("space:        %d positions, %d atoms per assignment, %d terms\n", cs.NumPos, cs.MaxNumConfAtoms, cs.NumTerms())
	fmt.Printf("batch:        %d assignments, %d shared bytes per block, %d threads per block\n", len(confs), sharedBytes, threads)
	fmt.Printf("sequential:   %v per launch\n", sequentialTime)
	fmt.Printf("cooperative:  %v per launch\n", cooperativeTime)
	fmt.Printf("terms:        %d of %d referenced, %d by every assignment\n", usage.Distinct(), cs.NumTerms(), len(usage.Shared()))
	fmt.Printf("memory:       %d bytes allocated, %d peak\n", allocated, peak)

	if verifyErr != nil {
		return verifyErr
	}
	fmt.Println("verify:       PASS")
	return nil
}

// record appends r to runs, if any, as failed when runErr is set.
func record(runs *confecalc.RunLog, r confecalc.RunResult, runErr error) error {
	if runs == nil {
		return nil
	}
	if runErr != nil {
		return runs.Fail(r, runErr)
	}
	r.Status = confecalc.RunPass
	return runs.Record(r)
}

// timeIters runs fn iters times and returns the mean duration. Cache
// eviction, when enabled, is not timed.
func timeIters(iters int, flusher *cacheFlusher, fn func() error) (time.Duration, error) {
	var total time.Duration
	for i := 0; i < iters; i++ {
		flusher.flush()
		start := time.Now()
		if err := fn(); err != nil {
			return 0, err
		}
		total += time.Since(start)
	}
	return total / time.Duration(iters), nil
}
