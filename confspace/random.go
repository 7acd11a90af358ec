package confspace

import (
	"math/rand"
	"strconv"

	"github.com/LynnColeArt/confecalc/real3"
)

// RandomOptions sizes a generated conformation space.
type RandomOptions struct {
	NumPos       int
	MaxConfs     int // Conformations per position, 1..MaxConfs
	MaxAtoms     int // Atoms per conformation, 1..MaxAtoms
	MaxFrags     int // Fragments per position, 1..MaxFrags
	StaticAtoms  int
	PairsPerTerm int // Atom pairs per term, 0..PairsPerTerm
	NumParams    int // Parameters per set
}

// DefaultRandomOptions returns options for a small space.
func DefaultRandomOptions() RandomOptions {
	return RandomOptions{
		NumPos:       6,
		MaxConfs:     5,
		MaxAtoms:     8,
		MaxFrags:     3,
		StaticAtoms:  10,
		PairsPerTerm: 4,
		NumParams:    2,
	}
}

// Random generates a conformation space from rng. The same seed and
// options always give the same space. Some fragment combinations are
// left without pairs so empty terms are exercised too.
func Random[T real3.Float](rng *rand.Rand, opts RandomOptions) (*ConfSpace[T], error) {
	if opts.NumPos < 0 || opts.MaxConfs < 1 || opts.MaxAtoms < 1 || opts.MaxFrags < 1 {
		return nil, invalidArg("Random", "positions must be >= 0 and conformations, atoms and fragments >= 1", nil)
	}

	coord := func() T {
		return T(rng.Float64()*40 - 20)
	}
	atoms := func(n int) []real3.Real3[T] {
		out := make([]real3.Real3[T], n)
		for i := range out {
			out[i] = real3.New(coord(), coord(), coord())
		}
		return out
	}

	b := NewBuilder[T]()
	b.SetStatic(atoms(opts.StaticAtoms), T(rng.Float64()*-100))

	numParams := max(opts.NumParams, 1)
	for i := 0; i < 8; i++ {
		params := make([]T, numParams)
		for j := range params {
			params[j] = T(rng.Float64())
		}
		b.AddParams(params)
	}

	// atom counts per fragment so every term refers to real atoms
	fragAtoms := make([][]int, opts.NumPos)
	for posi := 0; posi < opts.NumPos; posi++ {
		numFrags := 1 + rng.Intn(opts.MaxFrags)
		b.AddPos(posName(posi), numFrags)
		fragAtoms[posi] = make([]int, numFrags)
		for f := range fragAtoms[posi] {
			fragAtoms[posi][f] = 1 + rng.Intn(opts.MaxAtoms)
		}
		numConfs := 1 + rng.Intn(opts.MaxConfs)
		for c := 0; c < numConfs; c++ {
			frag := int32(rng.Intn(numFrags))
			b.AddConf(posi, confName(posi, c), frag, atoms(fragAtoms[posi][frag]), T(rng.Float64()*10-5))
		}
	}

	pairs := func(n1, n2 int) []AtomPair {
		if opts.PairsPerTerm <= 0 {
			return nil
		}
		out := make([]AtomPair, rng.Intn(opts.PairsPerTerm+1))
		for i := range out {
			out[i] = AtomPair{
				Atomi1:  int32(rng.Intn(n1)),
				Atomi2:  int32(rng.Intn(n2)),
				Paramsi: int32(rng.Intn(8)),
			}
		}
		return out
	}

	if opts.StaticAtoms > 0 {
		b.SetStaticStatic(pairs(opts.StaticAtoms, opts.StaticAtoms))
	}
	for posi := 0; posi < opts.NumPos; posi++ {
		for f, n := range fragAtoms[posi] {
			if opts.StaticAtoms > 0 && rng.Intn(4) != 0 {
				b.SetStaticPos(posi, int32(f), pairs(opts.StaticAtoms, n))
			}
			if rng.Intn(4) != 0 {
				b.SetPos(posi, int32(f), pairs(n, n))
			}
			for posi2 := 0; posi2 < posi; posi2++ {
				for f2, n2 := range fragAtoms[posi2] {
					if rng.Intn(4) != 0 {
						b.SetPosPos(posi, int32(f), posi2, int32(f2), pairs(n, n2))
					}
				}
			}
		}
	}

	return b.Build()
}

// RandomConf draws an assignment for cs. Each position is left
// unassigned with probability pUnassigned.
func RandomConf[T real3.Float](rng *rand.Rand, cs *ConfSpace[T], pUnassigned float64) []int32 {
	conf := make([]int32, cs.NumPos)
	for posi := range conf {
		if rng.Float64() < pUnassigned {
			conf[posi] = Unassigned
			continue
		}
		conf[posi] = int32(rng.Intn(cs.Positions[posi].NumConfs()))
	}
	return conf
}

func posName(posi int) string {
	return "pos" + strconv.Itoa(posi)
}

func confName(posi, confi int) string {
	return posName(posi) + "-conf" + strconv.Itoa(confi)
}
