package main

import (
	"slices"

	"github.com/LynnColeArt/confecalc"
	"github.com/LynnColeArt/confecalc/assignment"
	"github.com/LynnColeArt/confecalc/confspace"
	"github.com/LynnColeArt/confecalc/real3"
)

// batch is the output of one launch: one coordinate block and one set of
// tables per assignment. Coordinates, index offsets and energies are
// views of device memory; term slots stay on the host.
type batch[T real3.Float] struct {
	ptrs   []confecalc.DevicePtr
	atoms  []real3.Coords[T]
	tables []assignment.Shared[T]
}

func newBatch[T real3.Float](ctx *confecalc.Context, cs *confspace.ConfSpace[T], n int) (*batch[T], error) {
	perConf := int(cs.MaxNumConfAtoms)
	numPos := cs.NumPos
	b := &batch[T]{
		atoms:  make([]real3.Coords[T], n),
		tables: make([]assignment.Shared[T], n),
	}

	atomsPtr, all, err := confecalc.MallocCoords[T](ctx, max(n*perConf, 1))
	if err != nil {
		return nil, err
	}
	b.ptrs = append(b.ptrs, atomsPtr)
	offsetsPtr, err := ctx.Malloc(int(assignment.SizeofIndexOffsets(max(n*numPos, 1))))
	if err != nil {
		b.free(ctx)
		return nil, err
	}
	b.ptrs = append(b.ptrs, offsetsPtr)
	energiesPtr, err := ctx.Malloc(int(assignment.SizeofConfEnergies[T](max(n*numPos, 1))))
	if err != nil {
		b.free(ctx)
		return nil, err
	}
	b.ptrs = append(b.ptrs, energiesPtr)

	offsets := offsetsPtr.Int32()
	energies := deviceScalars[T](energiesPtr)
	for i := range b.atoms {
		lo, hi := i*numPos, (i+1)*numPos
		b.atoms[i] = all.Slice(i*perConf, perConf)
		b.tables[i] = assignment.Shared[T]{
			IndexOffsets: offsets[lo:hi:hi],
			AtomPairs:    make([]confspace.TermRef, confspace.NumTermSlots(numPos)),
			ConfEnergies: energies[lo:hi:hi],
		}
	}
	return b, nil
}

// deviceScalars views d as scalars of precision T.
func deviceScalars[T real3.Float](d confecalc.DevicePtr) []T {
	var zero T
	if _, ok := any(zero).(float32); ok {
		return any(d.Float32()).([]T)
	}
	return any(d.Float64()).([]T)
}

func (b *batch[T]) free(ctx *confecalc.Context) {
	for _, ptr := range b.ptrs {
		if err := ctx.Free(ptr); err != nil {
			ctx.Logger().Warn("free failed", "error", err)
		}
	}
	b.ptrs = nil
}

// sequentialBuild is a plain kernel launched on single-thread blocks:
// block i builds confs[i] into out.
type sequentialBuild[T real3.Float] struct {
	cs    *confspace.ConfSpace[T]
	confs [][]int32
	out   *batch[T]
}

func (k sequentialBuild[T]) Execute(tid confecalc.ThreadID, args ...interface{}) {
	i := tid.LinearBlock()
	assignment.NewInto(k.cs, k.confs[i], k.out.atoms[i], k.out.tables[i])
}

// cooperativeBuild builds confs[i] in the shared memory of block i, then
// copies the result out to out.
type cooperativeBuild[T real3.Float] struct {
	ctx   *confecalc.Context
	cs    *confspace.ConfSpace[T]
	confs [][]int32
	out   *batch[T]
}

func (k cooperativeBuild[T]) Run(tid confecalc.ThreadID, blk *confecalc.Block) {
	atoms, tables, err := assignment.Carve(blk.Shared(), k.cs)
	if err != nil {
		panic(err)
	}
	i := tid.LinearBlock()
	a := assignment.NewShared(blk, k.cs, k.confs[i], atoms, tables)

	k.out.atoms[i].CopyFromStrided(a.Atoms(), 0, blk.ThreadRank(), blk.Size())
	if blk.ThreadRank() == 0 {
		if err := copyTables(k.ctx, k.out.tables[i], a.Tables()); err != nil {
			panic(err)
		}
	}
}

// copyTables copies the tables of one assignment from block shared memory.
func copyTables[T real3.Float](ctx *confecalc.Context, dst, src assignment.Shared[T]) error {
	n := len(src.IndexOffsets)
	if err := ctx.Memcpy(dst.IndexOffsets, src.IndexOffsets, int(assignment.SizeofIndexOffsets(n)), confecalc.MemcpyDeviceToDevice); err != nil {
		return err
	}
	if err := ctx.Memcpy(dst.AtomPairs, src.AtomPairs, int(assignment.SizeofAtomPairs(n)), confecalc.MemcpyDeviceToHost); err != nil {
		return err
	}
	return ctx.Memcpy(dst.ConfEnergies, src.ConfEnergies, int(assignment.SizeofConfEnergies[T](n)), confecalc.MemcpyDeviceToDevice)
}

// compare returns the indices of assignments whose coordinates or tables differ.
func compare[T real3.Float](logger *confecalc.Logger, want, got *batch[T]) []int {
	tol := real3.Tolerance{NaNEqual: true}
	var mismatches []int
	for i := range want.atoms {
		result := real3.Verify(want.atoms[i], got.atoms[i], tol)
		same := result.NumErrors == 0 &&
			want.atoms[i].Equal(got.atoms[i]) &&
			slices.Equal(want.tables[i].IndexOffsets, got.tables[i].IndexOffsets) &&
			slices.Equal(want.tables[i].AtomPairs, got.tables[i].AtomPairs) &&
			slices.Equal(want.tables[i].ConfEnergies, got.tables[i].ConfEnergies)
		if !same {
			mismatches = append(mismatches, i)
			logger.Error("assignment mismatch", "index", i, "atoms", result.String())
		}
	}
	return mismatches
}
