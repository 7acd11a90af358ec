package assignment

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/LynnColeArt/confecalc/confspace"
	"github.com/LynnColeArt/confecalc/real3"
)

// TermSet returns the distinct terms the assignment's table refers to.
// Unset slots and terms without atom pairs are not members.
func (a *Assignment[T]) TermSet() *roaring.Bitmap {
	return TableTermSet(a.cs, a.tables)
}

// TableTermSet returns the distinct terms of cs referenced by the pair
// table of tables. The builder points every unset fragment combination at
// one shared term with no pairs; it is left out like NoTerms.
func TableTermSet[T real3.Float](cs *confspace.ConfSpace[T], tables Shared[T]) *roaring.Bitmap {
	set := roaring.New()
	for _, ref := range tables.AtomPairs {
		if ref.Valid() && cs.Terms(ref).Len() > 0 {
			set.Add(uint32(ref))
		}
	}
	return set
}

// TermUsage counts how many of the given tables refer to each term. Terms
// no table uses are absent from the result.
type TermUsage struct {
	used   *roaring.Bitmap
	counts map[confspace.TermRef]int
	tables int
}

// NewTermUsage gathers usage over every table in the batch, all built
// over cs.
func NewTermUsage[T real3.Float](cs *confspace.ConfSpace[T], batch []Shared[T]) *TermUsage {
	u := &TermUsage{
		counts: make(map[confspace.TermRef]int),
		tables: len(batch),
	}
	sets := make([]*roaring.Bitmap, len(batch))
	for i := range batch {
		sets[i] = TableTermSet(cs, batch[i])
		it := sets[i].Iterator()
		for it.HasNext() {
			u.counts[confspace.TermRef(it.Next())]++
		}
	}
	u.used = roaring.FastOr(sets...)
	return u
}

// Distinct returns the number of terms at least one table refers to.
func (u *TermUsage) Distinct() int {
	return int(u.used.GetCardinality())
}

// Used reports whether any table refers to ref.
func (u *TermUsage) Used(ref confspace.TermRef) bool {
	return ref.Valid() && u.used.Contains(uint32(ref))
}

// Count returns how many tables refer to ref.
func (u *TermUsage) Count(ref confspace.TermRef) int {
	return u.counts[ref]
}

// Shared returns the terms every table refers to.
func (u *TermUsage) Shared() []confspace.TermRef {
	var out []confspace.TermRef
	for _, v := range u.used.ToArray() {
		ref := confspace.TermRef(v)
		if u.counts[ref] == u.tables {
			out = append(out, ref)
		}
	}
	return out
}
