package confspace

import (
	"fmt"

	"github.com/LynnColeArt/confecalc/real3"
)

// Builder assembles a ConfSpace. Positions and conformations are added
// in order; energy terms may be set in any order. Every fragment
// combination left without a term gets an empty one, so every lookup
// on a built ConfSpace yields a valid TermRef.
//
// The first error sticks: later calls are ignored and Build reports it.
type Builder[T real3.Float] struct {
	static       []real3.Real3[T]
	staticEnergy T
	positions    []Pos[T]
	params       [][]T
	terms        []AtomPairs

	staticStatic TermRef
	staticPos    [][]TermRef
	pos          [][]TermRef
	posPos       map[[4]int]TermRef

	err error
}

// NewBuilder returns an empty builder.
func NewBuilder[T real3.Float]() *Builder[T] {
	return &Builder[T]{
		staticStatic: NoTerms,
		posPos:       make(map[[4]int]TermRef),
	}
}

func (b *Builder[T]) fail(op, format string, args ...interface{}) {
	if b.err == nil {
		b.err = invalidArg(op, fmt.Sprintf(format, args...), nil)
	}
}

// SetStatic sets the static atoms and the static energy.
func (b *Builder[T]) SetStatic(atoms []real3.Real3[T], energy T) *Builder[T] {
	b.static = append([]real3.Real3[T](nil), atoms...)
	b.staticEnergy = energy
	return b
}

// AddPos adds a position with numFrags fragments and returns its index.
func (b *Builder[T]) AddPos(name string, numFrags int) int {
	posi := len(b.positions)
	if numFrags <= 0 {
		b.fail("AddPos", "position %s needs at least one fragment, got %d", name, numFrags)
	}
	b.positions = append(b.positions, Pos[T]{
		Index:    posi,
		Name:     name,
		NumFrags: numFrags,
	})
	b.staticPos = append(b.staticPos, newRefs(numFrags))
	b.pos = append(b.pos, newRefs(numFrags))
	return posi
}

func newRefs(n int) []TermRef {
	refs := make([]TermRef, max(n, 0))
	for i := range refs {
		refs[i] = NoTerms
	}
	return refs
}

func (b *Builder[T]) checkFrag(op string, posi int, frag int32) bool {
	if posi < 0 || posi >= len(b.positions) {
		b.fail(op, "position %d out of range [0,%d)", posi, len(b.positions))
		return false
	}
	if frag < 0 || int(frag) >= b.positions[posi].NumFrags {
		b.fail(op, "fragment %d out of range [0,%d) at position %d", frag, b.positions[posi].NumFrags, posi)
		return false
	}
	return true
}

// AddConf adds a conformation of fragment frag to position posi and
// returns its conformation index.
func (b *Builder[T]) AddConf(posi int, id string, frag int32, atoms []real3.Real3[T], internalEnergy T) int32 {
	if !b.checkFrag("AddConf", posi, frag) {
		return -1
	}
	p := &b.positions[posi]
	p.Confs = append(p.Confs, Conf[T]{
		ID:             id,
		AtomCoords:     real3.FromSlice(atoms),
		InternalEnergy: internalEnergy,
		FragIndex:      frag,
	})
	p.MaxNumAtoms = max(p.MaxNumAtoms, len(atoms))
	return int32(len(p.Confs) - 1)
}

// ReserveAtoms raises the atom capacity of posi to at least n, for
// positions whose largest conformation is added later or never.
func (b *Builder[T]) ReserveAtoms(posi, n int) *Builder[T] {
	if posi < 0 || posi >= len(b.positions) {
		b.fail("ReserveAtoms", "position %d out of range [0,%d)", posi, len(b.positions))
		return b
	}
	b.positions[posi].MaxNumAtoms = max(b.positions[posi].MaxNumAtoms, n)
	return b
}

// AddParams adds one energy parameter set and returns its index.
func (b *Builder[T]) AddParams(params []T) int32 {
	b.params = append(b.params, append([]T(nil), params...))
	return int32(len(b.params) - 1)
}

func (b *Builder[T]) addTerm(pairs []AtomPair) TermRef {
	b.terms = append(b.terms, AtomPairs{Pairs: append([]AtomPair(nil), pairs...)})
	return TermRef(len(b.terms) - 1)
}

// SetStaticStatic sets the static/static term.
func (b *Builder[T]) SetStaticStatic(pairs []AtomPair) *Builder[T] {
	b.staticStatic = b.addTerm(pairs)
	return b
}

// SetStaticPos sets the term between the static atoms and fragment frag at posi.
func (b *Builder[T]) SetStaticPos(posi int, frag int32, pairs []AtomPair) *Builder[T] {
	if b.checkFrag("SetStaticPos", posi, frag) {
		b.staticPos[posi][frag] = b.addTerm(pairs)
	}
	return b
}

// SetPos sets the internal term of fragment frag at posi.
func (b *Builder[T]) SetPos(posi int, frag int32, pairs []AtomPair) *Builder[T] {
	if b.checkFrag("SetPos", posi, frag) {
		b.pos[posi][frag] = b.addTerm(pairs)
	}
	return b
}

// SetPosPos sets the term between fragment frag1 at posi1 and fragment
// frag2 at posi2. The positions may come in either order but must differ.
// Atom indices in pairs follow the argument order.
func (b *Builder[T]) SetPosPos(posi1 int, frag1 int32, posi2 int, frag2 int32, pairs []AtomPair) *Builder[T] {
	if !b.checkFrag("SetPosPos", posi1, frag1) || !b.checkFrag("SetPosPos", posi2, frag2) {
		return b
	}
	if posi1 == posi2 {
		b.fail("SetPosPos", "pair term needs two different positions, got %d twice", posi1)
		return b
	}
	if posi1 < posi2 {
		posi1, posi2 = posi2, posi1
		frag1, frag2 = frag2, frag1
		swapped := make([]AtomPair, len(pairs))
		for i, p := range pairs {
			swapped[i] = AtomPair{Atomi1: p.Atomi2, Atomi2: p.Atomi1, Paramsi: p.Paramsi}
		}
		pairs = swapped
	}
	b.posPos[[4]int{posi1, int(frag1), posi2, int(frag2)}] = b.addTerm(pairs)
	return b
}

// Build validates the description and returns the ConfSpace.
func (b *Builder[T]) Build() (*ConfSpace[T], error) {
	if b.err != nil {
		return nil, b.err
	}

	numPos := len(b.positions)
	cs := &ConfSpace[T]{
		NumPos:           numPos,
		Positions:        b.positions,
		StaticAtomCoords: real3.FromSlice(b.static),
		StaticEnergy:     b.staticEnergy,
		Params:           b.params,
		terms:            b.terms,
		staticPos:        b.staticPos,
		pos:              b.pos,
		posPos:           make([][][]TermRef, numPos*(numPos-1)/2),
	}

	empty := NoTerms
	emptyTerm := func() TermRef {
		if empty == NoTerms {
			cs.terms = append(cs.terms, AtomPairs{})
			empty = TermRef(len(cs.terms) - 1)
		}
		return empty
	}
	fill := func(refs []TermRef) {
		for i, r := range refs {
			if r == NoTerms {
				refs[i] = emptyTerm()
			}
		}
	}

	cs.staticStatic = b.staticStatic
	if cs.staticStatic == NoTerms {
		cs.staticStatic = emptyTerm()
	}

	cs.MaxNumConfAtoms = int64(len(b.static))
	for posi := range cs.Positions {
		cs.MaxNumConfAtoms += int64(cs.Positions[posi].MaxNumAtoms)
		fill(cs.staticPos[posi])
		fill(cs.pos[posi])

		for posi2 := 0; posi2 < posi; posi2++ {
			frags1 := cs.Positions[posi].NumFrags
			frags2 := cs.Positions[posi2].NumFrags
			table := make([][]TermRef, frags1)
			for f1 := range table {
				table[f1] = make([]TermRef, frags2)
				for f2 := range table[f1] {
					r, ok := b.posPos[[4]int{posi, f1, posi2, f2}]
					if !ok {
						r = emptyTerm()
					}
					table[f1][f2] = r
				}
			}
			cs.posPos[cs.IndexPosPos(posi, posi2)-1-2*int64(numPos)] = table
		}
	}

	for _, term := range cs.terms {
		for _, p := range term.Pairs {
			if p.Paramsi < 0 || int(p.Paramsi) >= len(cs.Params) {
				return nil, invalidArg("Build", fmt.Sprintf("atom pair refers to params %d of %d", p.Paramsi, len(cs.Params)), nil)
			}
		}
	}

	// the builder hands its tables over
	*b = *NewBuilder[T]()
	return cs, nil
}
