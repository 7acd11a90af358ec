package assignment

import (
	"unsafe"

	"github.com/LynnColeArt/confecalc"
	"github.com/LynnColeArt/confecalc/confspace"
	"github.com/LynnColeArt/confecalc/real3"
)

// SizeofIndexOffsets returns the bytes of the index offset table.
func SizeofIndexOffsets(numPos int) int64 {
	return int64(numPos) * int64(unsafe.Sizeof(int32(0)))
}

// SizeofAtomPairs returns the bytes of the term slot table.
func SizeofAtomPairs(numPos int) int64 {
	return int64(confspace.NumTermSlots(numPos)) * int64(unsafe.Sizeof(confspace.NoTerms))
}

// SizeofConfEnergies returns the bytes of the energy table.
func SizeofConfEnergies[T real3.Float](numPos int) int64 {
	return int64(numPos) * int64(real3.ScalarSize[T]())
}

// SharedBytes returns the block shared memory one cooperative
// construction over cs needs when its coordinates and tables are carved
// with Carve.
func SharedBytes[T real3.Float](cs *confspace.ConfSpace[T]) int64 {
	return confecalc.SharedFootprint(
		confecalc.SizeofCoords[T](int(cs.MaxNumConfAtoms)),
		SizeofIndexOffsets(cs.NumPos),
		SizeofAtomPairs(cs.NumPos),
		SizeofConfEnergies[T](cs.NumPos),
	)
}

// CarveShared carves the tables for numPos positions from mem, in the
// order index offsets, term slots, energies.
func CarveShared[T real3.Float](mem *confecalc.SharedMemory, numPos int) (Shared[T], error) {
	var s Shared[T]
	var err error
	if s.IndexOffsets, err = confecalc.SharedSlice[int32](mem, numPos); err != nil {
		return Shared[T]{}, err
	}
	if s.AtomPairs, err = confecalc.SharedSlice[confspace.TermRef](mem, confspace.NumTermSlots(numPos)); err != nil {
		return Shared[T]{}, err
	}
	if s.ConfEnergies, err = confecalc.SharedSlice[T](mem, numPos); err != nil {
		return Shared[T]{}, err
	}
	return s, nil
}

// Carve carves the coordinates and then the tables for cs from mem.
// SharedBytes reports the room this takes.
func Carve[T real3.Float](mem *confecalc.SharedMemory, cs *confspace.ConfSpace[T]) (real3.Coords[T], Shared[T], error) {
	atoms, err := confecalc.SharedCoords[T](mem, int(cs.MaxNumConfAtoms))
	if err != nil {
		return real3.Coords[T]{}, Shared[T]{}, err
	}
	tables, err := CarveShared[T](mem, cs.NumPos)
	if err != nil {
		return real3.Coords[T]{}, Shared[T]{}, err
	}
	return atoms, tables, nil
}

// NewShared assembles conf over cs cooperatively. Every thread of blk
// must call it with the same arguments; atoms and tables are shared by
// the group and borrowed by the returned Assignment.
//
// Rank 0 writes the per-position entries, the pair slots and atom copies
// are split across ranks, and each slot has exactly one writer. The call
// ends with blk.Sync, after which every thread sees the complete
// tables.
func NewShared[T real3.Float](blk confecalc.ThreadGroup, cs *confspace.ConfSpace[T], conf []int32, atoms real3.Coords[T], tables Shared[T]) *Assignment[T] {
	a := &Assignment[T]{cs: cs, conf: conf, atoms: atoms, tables: tables}
	rank, size := blk.ThreadRank(), blk.Size()
	var zero real3.Real3[T]

	offset := atoms.CopyFromStrided(cs.StaticAtomCoords, 0, rank, size)
	if rank == 0 {
		tables.AtomPairs[cs.IndexStaticStatic()] = cs.StaticStaticPairs()
	}

	for posi1 := range cs.Positions {
		pos1 := &cs.Positions[posi1]
		confi1 := conf[posi1]

		var conf1 *confspace.Conf[T]
		if confi1 >= 0 {
			conf1 = cs.Conf(posi1, confi1)
		}

		if rank == 0 {
			tables.IndexOffsets[posi1] = int32(offset)
			if conf1 != nil {
				tables.ConfEnergies[posi1] = conf1.InternalEnergy
				tables.AtomPairs[cs.IndexStaticPos(posi1)] = cs.StaticPosPairs(posi1, conf1.FragIndex)
				tables.AtomPairs[cs.IndexPos(posi1)] = cs.PosPairs(posi1, conf1.FragIndex)
			} else {
				tables.ConfEnergies[posi1] = 0
				tables.AtomPairs[cs.IndexStaticPos(posi1)] = confspace.NoTerms
				tables.AtomPairs[cs.IndexPos(posi1)] = confspace.NoTerms
			}
		}

		for posi2 := rank; posi2 < posi1; posi2 += size {
			term := confspace.NoTerms
			if conf1 != nil {
				term = a.pairTerm(posi1, conf1.FragIndex, posi2)
			}
			tables.AtomPairs[cs.IndexPosPos(posi1, posi2)] = term
		}

		n := 0
		if conf1 != nil {
			n = atoms.CopyFromStrided(conf1.AtomCoords, offset, rank, size)
		}
		atoms.FillStrided(offset+n, pos1.MaxNumAtoms-n, zero, rank, size)
		offset += pos1.MaxNumAtoms
	}

	blk.Sync()
	return a
}
