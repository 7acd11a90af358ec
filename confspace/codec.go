package confspace

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/LynnColeArt/confecalc"
	"github.com/LynnColeArt/confecalc/real3"
)

// Encoded layout: a plain header followed by the body, compressed as the
// header says. All integers and scalars are little-endian.
//
//	header: magic "CSPC" | version u32 | scalar size u32 (4 or 8) | compression u32
//	body:   numPos u32
//	        static atoms | static energy
//	        per position: name | numFrags u32 | maxNumAtoms u32 | numConfs u32
//	                      per conf: id | frag i32 | energy | atoms
//	        params: count u32, per set: len u32, scalars
//	        terms: count u32, per term: len u32, (atomi1, atomi2, paramsi i32)*
//	        staticStatic ref | staticPos refs | pos refs | posPos refs
//
// Strings are a u32 length and bytes; atoms are a u32 count and three
// scalars per atom.
const (
	magic   = "CSPC"
	version = 1

	// maxCount bounds every decoded length. Slices grow as their
	// elements are read, so a length alone never allocates more than
	// preallocCount elements.
	maxCount      = 1 << 24
	preallocCount = 1 << 10

	// limits on the fragment tables Build allocates from decoded counts
	maxFrags     = 1 << 12 // per position
	maxFragSlots = 1 << 16 // over all positions
	maxPairSlots = 1 << 22 // fragment pairs over all position pairs
	maxPosAtoms  = 1 << 16 // atom capacity of one position
)

const headerSize = 16

var byteOrder = binary.LittleEndian

// Compression selects how the body of an encoded space is compressed.
type Compression uint32

const (
	CompressNone Compression = iota
	CompressZstd
	CompressLZ4
)

var compressionNames = [...]string{"none", "zstd", "lz4"}

func (c Compression) String() string {
	if int(c) < len(compressionNames) {
		return compressionNames[c]
	}
	return fmt.Sprintf("Compression(%d)", uint32(c))
}

// ParseCompression maps a name printed by Compression.String back to its
// value.
func ParseCompression(name string) (Compression, error) {
	for i, n := range compressionNames {
		if n == name {
			return Compression(i), nil
		}
	}
	return 0, invalidArg("ParseCompression", fmt.Sprintf("unknown compression %q", name), nil)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func (c Compression) writer(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CompressNone:
		return nopWriteCloser{w}, nil
	case CompressZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, err
		}
		return zw, nil
	case CompressLZ4:
		return lz4.NewWriter(w), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedCompression, c)
}

func (c Compression) reader(r io.Reader) (io.Reader, func(), error) {
	switch c {
	case CompressNone:
		return r, func() {}, nil
	case CompressZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case CompressLZ4:
		return lz4.NewReader(r), func() {}, nil
	}
	return nil, nil, ErrUnsupportedCompression
}

// Encode writes cs to w with zstd compression.
func Encode[T real3.Float](w io.Writer, cs *ConfSpace[T]) error {
	return EncodeWith(w, cs, CompressZstd)
}

// EncodeWith writes cs to w with the given compression.
func EncodeWith[T real3.Float](w io.Writer, cs *ConfSpace[T], c Compression) error {
	var header [headerSize]byte
	copy(header[:4], magic)
	byteOrder.PutUint32(header[4:], version)
	byteOrder.PutUint32(header[8:], uint32(real3.ScalarSize[T]()))
	byteOrder.PutUint32(header[12:], uint32(c))

	cw, err := c.writer(w)
	if err != nil {
		return confecalc.NewFormatError("Encode", "starting compressor", err)
	}
	if _, err := w.Write(header[:]); err != nil {
		return confecalc.NewFormatError("Encode", "writing header", err)
	}
	e := &encoder{w: bufio.NewWriter(cw)}
	encodeBody(e, cs)
	if e.err == nil {
		e.err = e.w.Flush()
	}
	if cerr := cw.Close(); e.err == nil {
		e.err = cerr
	}
	if e.err != nil {
		return confecalc.NewFormatError("Encode", "writing body", e.err)
	}
	return nil
}

func encodeBody[T real3.Float](e *encoder, cs *ConfSpace[T]) {
	e.u32(uint32(cs.NumPos))
	encodeAtoms(e, cs.StaticAtomCoords)
	e.scalar(cs.StaticEnergy)

	for posi := range cs.Positions {
		p := &cs.Positions[posi]
		e.str(p.Name)
		e.u32(uint32(p.NumFrags))
		e.u32(uint32(p.MaxNumAtoms))
		e.u32(uint32(len(p.Confs)))
		for confi := range p.Confs {
			c := &p.Confs[confi]
			e.str(c.ID)
			e.i32(c.FragIndex)
			e.scalar(c.InternalEnergy)
			encodeAtoms(e, c.AtomCoords)
		}
	}

	e.u32(uint32(len(cs.Params)))
	for _, params := range cs.Params {
		e.u32(uint32(len(params)))
		for _, v := range params {
			e.scalar(v)
		}
	}

	e.u32(uint32(len(cs.terms)))
	for _, term := range cs.terms {
		e.u32(uint32(len(term.Pairs)))
		for _, p := range term.Pairs {
			e.i32(p.Atomi1)
			e.i32(p.Atomi2)
			e.i32(p.Paramsi)
		}
	}

	e.i32(int32(cs.staticStatic))
	for _, refs := range [][][]TermRef{cs.staticPos, cs.pos} {
		for _, row := range refs {
			for _, r := range row {
				e.i32(int32(r))
			}
		}
	}
	for _, table := range cs.posPos {
		for _, row := range table {
			for _, r := range row {
				e.i32(int32(r))
			}
		}
	}
}

func encodeAtoms[T real3.Float](e *encoder, atoms real3.Coords[T]) {
	e.u32(uint32(atoms.Len()))
	for i := 0; i < atoms.Len(); i++ {
		a := atoms.At(i)
		e.scalar(a.X)
		e.scalar(a.Y)
		e.scalar(a.Z)
	}
}

// Decode reads a ConfSpace of precision T from r.
func Decode[T real3.Float](r io.Reader) (*ConfSpace[T], error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, confecalc.NewFormatError("Decode", "reading header", err)
	}
	if string(header[:4]) != magic {
		return nil, confecalc.NewFormatError("Decode", fmt.Sprintf("magic %q", header[:4]), ErrBadMagic)
	}
	if v := byteOrder.Uint32(header[4:]); v != version {
		return nil, confecalc.NewFormatError("Decode", fmt.Sprintf("version %d", v), ErrUnsupportedVersion)
	}
	if size := byteOrder.Uint32(header[8:]); int(size) != real3.ScalarSize[T]() {
		return nil, confecalc.NewFormatError("Decode",
			fmt.Sprintf("encoded with %d-byte scalars, want %d", size, real3.ScalarSize[T]()), ErrPrecisionMismatch)
	}

	c := Compression(byteOrder.Uint32(header[12:]))
	body, closeBody, err := c.reader(r)
	if err != nil {
		return nil, confecalc.NewFormatError("Decode", fmt.Sprintf("compression %v", c), err)
	}
	defer closeBody()

	d := &decoder{r: bufio.NewReader(body)}
	cs := decodeBody[T](d)
	if d.err != nil {
		return nil, confecalc.NewFormatError("Decode", "reading body", d.err)
	}
	return cs, nil
}

func decodeBody[T real3.Float](d *decoder) *ConfSpace[T] {
	b := NewBuilder[T]()

	numPos := d.count()
	b.SetStatic(decodeAtoms[T](d), decodeScalar[T](d))

	var fragSlots, pairSlots int
	for posi := 0; posi < numPos && d.err == nil; posi++ {
		name := d.str()
		numFrags := d.count()
		maxAtoms := d.count()
		if d.err != nil {
			break
		}
		pairSlots += numFrags * fragSlots
		fragSlots += numFrags
		switch {
		case numFrags > maxFrags:
			d.err = fmt.Errorf("position %d has %d fragments, limit %d", posi, numFrags, maxFrags)
		case fragSlots > maxFragSlots:
			d.err = fmt.Errorf("%d fragments exceed limit %d", fragSlots, maxFragSlots)
		case pairSlots > maxPairSlots:
			d.err = fmt.Errorf("%d fragment pairs exceed limit %d", pairSlots, maxPairSlots)
		case maxAtoms > maxPosAtoms:
			d.err = fmt.Errorf("position %d holds %d atoms, limit %d", posi, maxAtoms, maxPosAtoms)
		}
		if d.err != nil {
			break
		}
		b.AddPos(name, numFrags)
		b.ReserveAtoms(posi, maxAtoms)
		numConfs := d.count()
		for confi := 0; confi < numConfs && d.err == nil; confi++ {
			id := d.str()
			frag := d.i32()
			energy := decodeScalar[T](d)
			b.AddConf(posi, id, frag, decodeAtoms[T](d), energy)
		}
	}

	numParams := d.count()
	for i := 0; i < numParams && d.err == nil; i++ {
		n := d.count()
		params := make([]T, 0, min(n, preallocCount))
		for j := 0; j < n && d.err == nil; j++ {
			params = append(params, decodeScalar[T](d))
		}
		b.AddParams(params)
	}

	numTerms := d.count()
	terms := make([]AtomPairs, 0, min(numTerms, preallocCount))
	for i := 0; i < numTerms && d.err == nil; i++ {
		n := d.count()
		var pairs []AtomPair
		if n > 0 {
			pairs = make([]AtomPair, 0, min(n, preallocCount))
		}
		for j := 0; j < n && d.err == nil; j++ {
			pairs = append(pairs, AtomPair{Atomi1: d.i32(), Atomi2: d.i32(), Paramsi: d.i32()})
		}
		terms = append(terms, AtomPairs{Pairs: pairs})
	}
	if d.err != nil {
		return nil
	}

	cs, err := b.Build()
	if err != nil {
		d.err = err
		return nil
	}
	// every slot is overwritten below with a ref into the decoded arena
	cs.terms = terms

	ref := func() TermRef {
		r := TermRef(d.i32())
		if d.err == nil && (r < 0 || int(r) >= len(terms)) {
			d.err = fmt.Errorf("term ref %d out of range [0,%d)", r, len(terms))
		}
		return r
	}
	cs.staticStatic = ref()
	for _, refs := range [][][]TermRef{cs.staticPos, cs.pos} {
		for _, row := range refs {
			for i := range row {
				row[i] = ref()
			}
		}
	}
	for _, table := range cs.posPos {
		for _, row := range table {
			for i := range row {
				row[i] = ref()
			}
		}
	}
	for _, term := range terms {
		for _, p := range term.Pairs {
			if d.err == nil && (p.Paramsi < 0 || int(p.Paramsi) >= len(cs.Params)) {
				d.err = fmt.Errorf("atom pair refers to params %d of %d", p.Paramsi, len(cs.Params))
			}
		}
	}
	return cs
}

func decodeAtoms[T real3.Float](d *decoder) []real3.Real3[T] {
	n := d.count()
	atoms := make([]real3.Real3[T], 0, min(n, preallocCount))
	for i := 0; i < n; i++ {
		v := real3.New(decodeScalar[T](d), decodeScalar[T](d), decodeScalar[T](d))
		if d.err != nil {
			return nil
		}
		atoms = append(atoms, v)
	}
	return atoms
}

func decodeScalar[T real3.Float](d *decoder) T {
	var v T
	d.read(&v)
	return v
}

// WriteFile encodes cs into the named file with zstd compression.
func WriteFile[T real3.Float](path string, cs *ConfSpace[T]) error {
	return WriteFileWith(path, cs, CompressZstd)
}

// WriteFileWith encodes cs into the named file with the given compression.
func WriteFileWith[T real3.Float](path string, cs *ConfSpace[T], c Compression) error {
	f, err := os.Create(path)
	if err != nil {
		return confecalc.NewFormatError("WriteFile", "create "+path, err)
	}
	if err := EncodeWith(f, cs, c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile decodes a ConfSpace of precision T from the named file.
func ReadFile[T real3.Float](path string) (*ConfSpace[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, confecalc.NewFormatError("ReadFile", "open "+path, err)
	}
	defer f.Close()
	return Decode[T](bufio.NewReader(f))
}

type encoder struct {
	w   *bufio.Writer
	err error
}

func (e *encoder) write(v interface{}) {
	if e.err == nil {
		e.err = binary.Write(e.w, byteOrder, v)
	}
}

func (e *encoder) u32(v uint32) { e.write(v) }
func (e *encoder) i32(v int32)  { e.write(v) }

func (e *encoder) scalar(v interface{}) { e.write(v) }

func (e *encoder) str(s string) {
	e.u32(uint32(len(s)))
	if e.err == nil {
		_, e.err = e.w.WriteString(s)
	}
}

type decoder struct {
	r   *bufio.Reader
	err error
}

func (d *decoder) read(v interface{}) {
	if d.err == nil {
		d.err = binary.Read(d.r, byteOrder, v)
	}
}

func (d *decoder) u32() uint32 {
	var v uint32
	d.read(&v)
	return v
}

func (d *decoder) i32() int32 {
	var v int32
	d.read(&v)
	return v
}

// count reads a length and rejects implausible values.
func (d *decoder) count() int {
	n := d.u32()
	if d.err == nil && n > maxCount {
		d.err = fmt.Errorf("length %d exceeds limit %d", n, maxCount)
	}
	if d.err != nil {
		return 0
	}
	return int(n)
}

func (d *decoder) str() string {
	n := d.count()
	if d.err != nil || n == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(min(n, preallocCount))
	if _, err := io.CopyN(&sb, d.r, int64(n)); err != nil {
		d.err = err
		return ""
	}
	return sb.String()
}
