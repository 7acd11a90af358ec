package assignment

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LynnColeArt/confecalc"
	"github.com/LynnColeArt/confecalc/confspace"
	"github.com/LynnColeArt/confecalc/real3"
)

func v32(x, y, z int) real3.Real3[float32] {
	return real3.FromInts[float32](x, y, z)
}

// exampleSpace has 3 positions holding at most 2, 3 and 1 atoms, behind
// 2 static atoms.
func exampleSpace(t testing.TB) *confspace.ConfSpace[float32] {
	t.Helper()
	b := confspace.NewBuilder[float32]()
	b.SetStatic([]real3.Real3[float32]{v32(1, 1, 1), v32(2, 2, 2)}, -3)
	b.AddParams([]float32{1})

	b.AddPos("A", 1)
	b.AddPos("B", 1)
	b.AddPos("C", 2)
	b.AddConf(0, "A0", 0, []real3.Real3[float32]{v32(10, 0, 0), v32(11, 0, 0)}, 0.5)
	b.AddConf(1, "B0", 0, []real3.Real3[float32]{v32(20, 0, 0), v32(21, 0, 0), v32(22, 0, 0)}, 1.5)
	b.AddConf(2, "C0", 0, []real3.Real3[float32]{v32(30, 0, 0)}, 2.5)
	b.AddConf(2, "C1", 1, []real3.Real3[float32]{v32(31, 0, 0)}, 3.5)

	b.SetStaticStatic([]confspace.AtomPair{{Atomi1: 0, Atomi2: 1}})
	b.SetStaticPos(0, 0, []confspace.AtomPair{{Atomi1: 0, Atomi2: 1}})
	b.SetStaticPos(2, 1, []confspace.AtomPair{{Atomi1: 1, Atomi2: 0}})
	b.SetPos(0, 0, []confspace.AtomPair{{Atomi1: 0, Atomi2: 1}})
	b.SetPosPos(2, 1, 0, 0, []confspace.AtomPair{{Atomi1: 0, Atomi2: 1}})
	b.SetPosPos(1, 0, 0, 0, []confspace.AtomPair{{Atomi1: 2, Atomi2: 0}})

	cs, err := b.Build()
	require.NoError(t, err)
	return cs
}

func TestEndToEndExample(t *testing.T) {
	cs := exampleSpace(t)
	require.Equal(t, int64(8), cs.MaxNumConfAtoms)

	a := New(cs, []int32{0, -1, 1})
	defer a.Close()

	assert.Equal(t, int32(2), a.IndexOffset(0))
	assert.Equal(t, int32(4), a.IndexOffset(1))
	assert.Equal(t, int32(7), a.IndexOffset(2))

	want := []real3.Real3[float32]{
		v32(1, 1, 1), v32(2, 2, 2),
		v32(10, 0, 0), v32(11, 0, 0),
		{}, {}, {},
		v32(31, 0, 0),
	}
	assert.Equal(t, want, a.Atoms().ToSlice())
	assert.True(t, a.Atoms().Equal(real3.FromSlice(want)), "padding scalars must be zero")

	assert.Equal(t, float32(0.5), a.ConfEnergy(0))
	assert.Equal(t, float32(0), a.ConfEnergy(1))
	assert.Equal(t, float32(3.5), a.ConfEnergy(2))

	sp := confspace.StaticPos
	assert.Equal(t, cs.StaticStaticPairs(), a.AtomPairs(sp, sp))
	assert.Equal(t, cs.StaticPosPairs(0, 0), a.AtomPairs(sp, 0))
	assert.Equal(t, confspace.NoTerms, a.AtomPairs(sp, 1))
	assert.Equal(t, cs.StaticPosPairs(2, 1), a.AtomPairs(2, sp))
	assert.Equal(t, cs.PosPairs(0, 0), a.AtomPairs(0, 0))
	assert.Equal(t, confspace.NoTerms, a.AtomPairs(1, 1))
	assert.Equal(t, cs.PosPairs(2, 1), a.AtomPairs(2, 2))
	assert.Equal(t, confspace.NoTerms, a.AtomPairs(1, 0))
	assert.Equal(t, confspace.NoTerms, a.AtomPairs(2, 1))
	assert.Equal(t, cs.PosPosPairs(2, 1, 0, 0), a.AtomPairs(0, 2))

	pp := a.Terms(2, 0)
	require.NotNil(t, pp)
	assert.Equal(t, []confspace.AtomPair{{Atomi1: 0, Atomi2: 1}}, pp.Pairs)
	assert.Nil(t, a.Terms(1, 0))
	assert.Equal(t, 1, a.Terms(sp, sp).Len())

	// the pair term refers to atom 0 of C1 and atom 1 of A0
	assert.Equal(t, v32(31, 0, 0), a.Atoms().At(int(a.Index(2, int(pp.Pairs[0].Atomi1)))))
	assert.Equal(t, v32(11, 0, 0), a.Atoms().At(int(a.Index(0, int(pp.Pairs[0].Atomi2)))))
	assert.Equal(t, v32(2, 2, 2), a.Atoms().At(int(a.StaticIndex(1))))
}

func TestSinglePosition(t *testing.T) {
	b := confspace.NewBuilder[float64]()
	b.SetStatic([]real3.Real3[float64]{real3.New(1.0, 2.0, 3.0)}, 0)
	b.AddPos("only", 1)
	b.AddConf(0, "c", 0, []real3.Real3[float64]{real3.New(4.0, 5.0, 6.0)}, 7)
	cs, err := b.Build()
	require.NoError(t, err)

	a := New(cs, []int32{0})
	defer a.Close()

	require.Len(t, a.Tables().AtomPairs, 3)
	assert.Equal(t, int32(1), a.IndexOffset(0))
	assert.Equal(t, 7.0, a.ConfEnergy(0))
	assert.Equal(t, cs.StaticStaticPairs(), a.AtomPairs(confspace.StaticPos, confspace.StaticPos))
	assert.Equal(t, cs.StaticPosPairs(0, 0), a.AtomPairs(confspace.StaticPos, 0))
	assert.Equal(t, cs.PosPairs(0, 0), a.AtomPairs(0, 0))
	assert.Equal(t, real3.New(4.0, 5.0, 6.0), a.Atoms().At(int(a.Index(0, 0))))
}

func TestAllUnassigned(t *testing.T) {
	cs, err := confspace.Random[float32](rand.New(rand.NewSource(11)), confspace.DefaultRandomOptions())
	require.NoError(t, err)

	a := New(cs, confspace.Unassign(cs.NumPos))
	defer a.Close()

	for i, ref := range a.Tables().AtomPairs {
		if int64(i) == cs.IndexStaticStatic() {
			assert.True(t, ref.Valid())
			continue
		}
		assert.Equal(t, confspace.NoTerms, ref, "slot %d", i)
	}
	for posi := 0; posi < cs.NumPos; posi++ {
		assert.Zero(t, a.ConfEnergy(posi))
	}

	static := cs.StaticAtomCoords.Len()
	assert.True(t, a.Atoms().Slice(0, static).Equal(cs.StaticAtomCoords))
	assert.True(t, a.Atoms().Slice(static, int(cs.MaxNumConfAtoms)-static).Equal(
		real3.NewCoords[float32](int(cs.MaxNumConfAtoms)-static)))
}

// checkLayout verifies every position block holds its conformation's
// atoms followed by zeros.
func checkLayout[T real3.Float](t *testing.T, a *Assignment[T]) {
	t.Helper()
	cs := a.ConfSpace()
	offset := int32(cs.StaticAtomCoords.Len())
	for posi := 0; posi < cs.NumPos; posi++ {
		pos := cs.Pos(posi)
		require.Equal(t, offset, a.IndexOffset(posi))
		require.Equal(t, int64(offset), a.Index(posi, 0))

		n := 0
		if confi := a.Conf()[posi]; confi >= 0 {
			src := cs.Conf(posi, confi).AtomCoords
			n = src.Len()
			require.True(t, a.Atoms().Slice(int(offset), n).Equal(src), "pos %d atoms", posi)
		}
		require.True(t, a.Atoms().Slice(int(offset)+n, pos.MaxNumAtoms-n).Equal(real3.NewCoords[T](pos.MaxNumAtoms-n)),
			"pos %d padding", posi)
		offset += int32(pos.MaxNumAtoms)
	}
	require.Equal(t, int64(offset), cs.MaxNumConfAtoms)
}

func TestLayoutRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 20; i++ {
		opts := confspace.DefaultRandomOptions()
		opts.NumPos = 1 + rng.Intn(10)
		cs, err := confspace.Random[float32](rng, opts)
		require.NoError(t, err)
		a := New(cs, confspace.RandomConf(rng, cs, 0.3))
		checkLayout(t, a)
		a.Close()
	}
}

func TestIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	cs, err := confspace.Random[float64](rng, confspace.DefaultRandomOptions())
	require.NoError(t, err)
	conf := confspace.RandomConf(rng, cs, 0.3)

	first := New(cs, conf)
	defer first.Close()
	second := New(cs, conf)
	defer second.Close()
	assertSame(t, first, second)

	// reused buffers carry nothing over from an earlier assignment
	atoms := real3.NewCoords[float64](int(cs.MaxNumConfAtoms))
	tables := NewTables[float64](cs.NumPos)
	for i := 0; i < 10; i++ {
		NewInto(cs, confspace.RandomConf(rng, cs, 0.5), atoms, tables)
	}
	reused := NewInto(cs, conf, atoms, tables)
	assert.False(t, reused.Owned())
	assertSame(t, first, reused)
}

func TestClose(t *testing.T) {
	cs := exampleSpace(t)
	a := New(cs, []int32{0, 0, 0})
	require.True(t, a.Owned())

	a.Close()
	assert.Nil(t, a.ConfSpace())
	assert.Equal(t, 0, a.Atoms().Len())
	assert.False(t, a.Owned())
	assert.NotPanics(t, a.Close)
}

func assertSame[T real3.Float](t *testing.T, want, got *Assignment[T]) {
	t.Helper()
	require.True(t, want.Atoms().Equal(got.Atoms()), "atoms differ")
	require.Equal(t, want.Tables().IndexOffsets, got.Tables().IndexOffsets)
	require.Equal(t, want.Tables().AtomPairs, got.Tables().AtomPairs)
	require.Equal(t, want.Tables().ConfEnergies, got.Tables().ConfEnergies)
}

func TestSizes(t *testing.T) {
	assert.Equal(t, int64(12), SizeofIndexOffsets(3))
	assert.Equal(t, int64(40), SizeofAtomPairs(3))
	assert.Equal(t, int64(12), SizeofConfEnergies[float32](3))
	assert.Equal(t, int64(24), SizeofConfEnergies[float64](3))

	cs := exampleSpace(t)
	// 8 atoms * 16 bytes, then 12 -> 16, 40 -> 48, 12
	assert.Equal(t, int64(128+16+48+12), SharedBytes(cs))

	mem := confecalc.NewSharedMemory(confecalc.AllocAligned(int(SharedBytes(cs)), confecalc.SharedAlignment))
	atoms, tables, err := Carve(mem, cs)
	require.NoError(t, err)
	assert.Equal(t, 8, atoms.Len())
	assert.Len(t, tables.IndexOffsets, 3)
	assert.Len(t, tables.AtomPairs, 10)
	assert.Len(t, tables.ConfEnergies, 3)
	assert.Equal(t, int64(0), mem.Remaining())
}

func TestCarveExhausted(t *testing.T) {
	cs := exampleSpace(t)
	mem := confecalc.NewSharedMemory(confecalc.AllocAligned(int(SharedBytes(cs))-1, confecalc.SharedAlignment))
	_, _, err := Carve(mem, cs)
	require.Error(t, err)
	assert.True(t, confecalc.IsMemoryError(err))
}

func TestNewSharedSingleThread(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	cs, err := confspace.Random[float32](rng, confspace.DefaultRandomOptions())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		conf := confspace.RandomConf(rng, cs, 0.3)
		want := New(cs, conf)
		got := NewShared(confecalc.SingleThread{}, cs, conf,
			real3.NewCoords[float32](int(cs.MaxNumConfAtoms)), NewTables[float32](cs.NumPos))
		assertSame(t, want, got)
		want.Close()
	}
}

// result is one block's copy of its assignment, taken after construction.
type result[T real3.Float] struct {
	atoms  real3.Coords[T]
	tables Shared[T]
}

func (r *result[T]) assignment(cs *confspace.ConfSpace[T], conf []int32) *Assignment[T] {
	return &Assignment[T]{cs: cs, conf: conf, atoms: r.atoms, tables: r.tables}
}

// runCooperative builds one assignment per block, with blocks of
// threads threads, and returns copies of what each block built.
func runCooperative[T real3.Float](t *testing.T, cs *confspace.ConfSpace[T], confs [][]int32, threads int) []result[T] {
	t.Helper()
	ctx := confecalc.NewContext(confecalc.GetDevice())
	defer ctx.Destroy()

	results := make([]result[T], len(confs))
	for i := range results {
		results[i] = result[T]{
			atoms:  real3.NewCoords[T](int(cs.MaxNumConfAtoms)),
			tables: NewTables[T](cs.NumPos),
		}
	}

	kernel := func(tid confecalc.ThreadID, blk *confecalc.Block) {
		atoms, tables, err := Carve(blk.Shared(), cs)
		if err != nil {
			panic(err)
		}
		conf := confs[tid.BlockIdx.X]
		a := NewShared(blk, cs, conf, atoms, tables)

		out := &results[tid.BlockIdx.X]
		out.atoms.CopyFromStrided(a.Atoms(), 0, blk.ThreadRank(), blk.Size())
		if blk.ThreadRank() == 0 {
			copy(out.tables.IndexOffsets, a.Tables().IndexOffsets)
			copy(out.tables.AtomPairs, a.Tables().AtomPairs)
			copy(out.tables.ConfEnergies, a.Tables().ConfEnergies)
		}
	}

	err := ctx.LaunchCooperative(kernel,
		confecalc.Dim3{X: len(confs), Y: 1, Z: 1},
		confecalc.Dim3{X: threads, Y: 1, Z: 1},
		int(SharedBytes(cs)))
	require.NoError(t, err)
	return results
}

func testCooperativeMatchesSequential[T real3.Float](t *testing.T, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	opts := confspace.DefaultRandomOptions()
	opts.NumPos = 12

	for _, threads := range []int{1, 3, 32, 64} {
		t.Run(fmt.Sprintf("threads=%d", threads), func(t *testing.T) {
			cs, err := confspace.Random[T](rng, opts)
			require.NoError(t, err)

			confs := make([][]int32, 16)
			for i := range confs {
				confs[i] = confspace.RandomConf(rng, cs, 0.3)
			}
			confs[0] = confspace.Unassign(cs.NumPos)

			results := runCooperative(t, cs, confs, threads)
			for i, conf := range confs {
				want := New(cs, conf)
				got := results[i].assignment(cs, conf)
				assertSame(t, want, got)
				checkLayout(t, got)
				want.Close()
			}
		})
	}
}

func TestCooperativeMatchesSequential(t *testing.T) {
	t.Run("float32", func(t *testing.T) {
		testCooperativeMatchesSequential[float32](t, 1)
	})
	t.Run("float64", func(t *testing.T) {
		testCooperativeMatchesSequential[float64](t, 2)
	})
}

func TestCooperativeExample(t *testing.T) {
	cs := exampleSpace(t)
	conf := []int32{0, -1, 1}

	results := runCooperative(t, cs, [][]int32{conf}, 4)
	want := New(cs, conf)
	defer want.Close()
	assertSame(t, want, results[0].assignment(cs, conf))
}

// Tiles of one block each build their own assignment in their own
// region of the block's shared memory.
func TestCooperativeTiles(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	cs, err := confspace.Random[float32](rng, confspace.DefaultRandomOptions())
	require.NoError(t, err)

	const blockSize, tileSize = 16, 4
	numTiles := blockSize / tileSize
	confs := make([][]int32, numTiles)
	for i := range confs {
		confs[i] = confspace.RandomConf(rng, cs, 0.3)
	}
	results := make([]result[float32], numTiles)
	for i := range results {
		results[i] = result[float32]{
			atoms:  real3.NewCoords[float32](int(cs.MaxNumConfAtoms)),
			tables: NewTables[float32](cs.NumPos),
		}
	}

	region := confecalc.PadToAlignment(SharedBytes(cs), confecalc.SharedAlignment)
	kernel := func(tid confecalc.ThreadID, blk *confecalc.Block) {
		tile := confecalc.TiledPartition(blk, tileSize)
		tileRank := confecalc.TileRank(blk, tile)
		if confecalc.NumTiles(blk, tile) != numTiles {
			panic("unexpected tile count")
		}

		mem := blk.Shared()
		var atoms real3.Coords[float32]
		var tables Shared[float32]
		for i := 0; i <= tileRank; i++ {
			var err error
			if atoms, tables, err = Carve(mem, cs); err != nil {
				panic(err)
			}
		}

		a := NewShared(tile, cs, confs[tileRank], atoms, tables)
		if tile.ThreadRank() == 0 {
			out := &results[tileRank]
			out.atoms.CopyFrom(a.Atoms(), 0)
			copy(out.tables.IndexOffsets, a.Tables().IndexOffsets)
			copy(out.tables.AtomPairs, a.Tables().AtomPairs)
			copy(out.tables.ConfEnergies, a.Tables().ConfEnergies)
		}
	}

	err = confecalc.LaunchCooperative(kernel,
		confecalc.Dim3{X: 1, Y: 1, Z: 1},
		confecalc.Dim3{X: blockSize, Y: 1, Z: 1},
		int(region)*numTiles)
	require.NoError(t, err)

	for i, conf := range confs {
		want := New(cs, conf)
		assertSame(t, want, results[i].assignment(cs, conf))
		want.Close()
	}
}

func TestOptimizeThreadsForAssembly(t *testing.T) {
	cs, err := confspace.Random[float32](rand.New(rand.NewSource(3)), confspace.DefaultRandomOptions())
	require.NoError(t, err)

	ctx := confecalc.NewContext(confecalc.GetDevice())
	defer ctx.Destroy()

	kernel := func(tid confecalc.ThreadID, blk *confecalc.Block) {}
	threads, err := ctx.OptimizeThreads(kernel, SharedBytes(cs), 0)
	require.NoError(t, err)
	assert.Greater(t, threads, 0)
	assert.Zero(t, threads%ctx.Device().WarpSize)
	assert.LessOrEqual(t, threads, ctx.Device().MaxThreadsPerBlock)
}

func benchmarkSpace(b *testing.B) (*confspace.ConfSpace[float32], [][]int32) {
	rng := rand.New(rand.NewSource(1))
	opts := confspace.DefaultRandomOptions()
	opts.NumPos = 20
	opts.MaxAtoms = 16
	cs, err := confspace.Random[float32](rng, opts)
	require.NoError(b, err)
	confs := make([][]int32, 64)
	for i := range confs {
		confs[i] = confspace.RandomConf(rng, cs, 0.2)
	}
	return cs, confs
}

func BenchmarkNew(b *testing.B) {
	cs, confs := benchmarkSpace(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		New(cs, confs[i%len(confs)]).Close()
	}
}

func BenchmarkNewInto(b *testing.B) {
	cs, confs := benchmarkSpace(b)
	atoms := real3.NewCoords[float32](int(cs.MaxNumConfAtoms))
	tables := NewTables[float32](cs.NumPos)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NewInto(cs, confs[i%len(confs)], atoms, tables)
	}
}

func BenchmarkNewShared(b *testing.B) {
	cs, confs := benchmarkSpace(b)
	ctx := confecalc.NewContext(confecalc.GetDevice())
	defer ctx.Destroy()

	kernel := func(tid confecalc.ThreadID, blk *confecalc.Block) {
		atoms, tables, err := Carve(blk.Shared(), cs)
		if err != nil {
			panic(err)
		}
		NewShared(blk, cs, confs[tid.BlockIdx.X], atoms, tables)
	}
	grid := confecalc.Dim3{X: len(confs), Y: 1, Z: 1}
	block := confecalc.Dim3{X: 32, Y: 1, Z: 1}
	shared := int(SharedBytes(cs))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := ctx.LaunchCooperative(kernel, grid, block, shared); err != nil {
			b.Fatal(err)
		}
	}
}

func TestTermSet(t *testing.T) {
	cs := exampleSpace(t)

	a := New(cs, []int32{0, -1, 1})
	defer a.Close()
	b := New(cs, []int32{0, 0, 0})
	defer b.Close()

	// refs follow the order the builder set the terms in; ref 6 is the
	// shared pairless term behind every unset fragment combination
	emptyRef := a.AtomPairs(2, 2)
	require.Equal(t, confspace.TermRef(6), emptyRef)
	require.Zero(t, cs.Terms(emptyRef).Len())
	assert.Equal(t, []uint32{0, 1, 2, 3, 4}, a.TermSet().ToArray())
	assert.Equal(t, []uint32{0, 1, 3, 5}, b.TermSet().ToArray())

	u := NewTermUsage(cs, []Shared[float32]{a.Tables(), b.Tables()})
	assert.Equal(t, 6, u.Distinct())
	assert.Equal(t, []confspace.TermRef{0, 1, 3}, u.Shared())
	assert.Equal(t, 2, u.Count(0))
	assert.Equal(t, 1, u.Count(2))
	assert.True(t, u.Used(5))
	assert.False(t, u.Used(6))
	assert.False(t, u.Used(confspace.NoTerms))

	none := New(cs, confspace.Unassign(cs.NumPos))
	defer none.Close()
	assert.Equal(t, []uint32{0}, none.TermSet().ToArray())

	empty := NewTermUsage[float32](cs, nil)
	assert.Zero(t, empty.Distinct())
	assert.Empty(t, empty.Shared())
}
