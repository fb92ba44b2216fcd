package dng

import (
	"encoding/binary"
	"math"
	"sort"
)

// TIFF field types
const (
	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeUndefined = 7
	typeSRational = 10
)

const ifdEntryLen = 12

// An entry is one IFD tag. Values are held as uint32s whatever the
// type; a (S)RATIONAL takes two of them.
type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []uint32
}

func (e *entry) dataLen() int {
	switch e.typ {
	case typeByte, typeASCII, typeUndefined:
		return int(e.count)
	case typeShort:
		return int(e.count) * 2
	case typeRational, typeSRational:
		return int(e.count) * 8
	default:
		return int(e.count) * 4
	}
}

func (e *entry) putData(p []byte) {
	for _, d := range e.data {
		switch e.typ {
		case typeByte, typeASCII, typeUndefined:
			p[0] = byte(d)
			p = p[1:]
		case typeShort:
			binary.LittleEndian.PutUint16(p, uint16(d))
			p = p[2:]
		default:
			binary.LittleEndian.PutUint32(p, d)
			p = p[4:]
		}
	}
}

// An ifd collects tags, and then lays itself out at a known offset:
// the entry table, the next-IFD link (always 0 here) and then a pointer
// area for every value too big to sit inline.
type ifd struct {
	entries []*entry
}

func (d *ifd) add(e *entry) *entry {
	d.entries = append(d.entries, e)
	return e
}

func (d *ifd) addShort(tag uint16, vals ...uint16) {
	data := make([]uint32, len(vals))
	for i, v := range vals {
		data[i] = uint32(v)
	}
	d.add(&entry{tag, typeShort, uint32(len(vals)), data})
}

func (d *ifd) addLong(tag uint16, vals ...uint32) *entry {
	return d.add(&entry{tag, typeLong, uint32(len(vals)), vals})
}

func (d *ifd) addBytes(tag uint16, typ uint16, vals []byte) {
	data := make([]uint32, len(vals))
	for i, v := range vals {
		data[i] = uint32(v)
	}
	d.add(&entry{tag, typ, uint32(len(vals)), data})
}

// addASCII adds the NUL terminator; empty strings are skipped.
func (d *ifd) addASCII(tag uint16, s string) {
	if s == "" {
		return
	}
	d.addBytes(tag, typeASCII, append([]byte(s), 0))
}

func (d *ifd) addRational(tag uint16, vals ...float64) {
	data := make([]uint32, 0, 2*len(vals))
	for _, v := range vals {
		num, den := toRational(math.Max(v, 0), math.MaxUint32)
		data = append(data, uint32(num), uint32(den))
	}
	d.add(&entry{tag, typeRational, uint32(len(vals)), data})
}

func (d *ifd) addSRational(tag uint16, vals ...float64) {
	data := make([]uint32, 0, 2*len(vals))
	for _, v := range vals {
		num, den := toRational(v, math.MaxInt32)
		data = append(data, uint32(int32(num)), uint32(int32(den)))
	}
	d.add(&entry{tag, typeSRational, uint32(len(vals)), data})
}

// toRational finds num/den ~= v, with a denominator of up to a million
// (less if the numerator would not fit under limit).
func toRational(v float64, limit float64) (int64, int64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, 1
	}
	den := int64(1000000)
	for den > 1 && math.Abs(v)*float64(den) > limit {
		den /= 10
	}
	num := int64(math.Round(v * float64(den)))
	if g := gcd(abs64(num), den); g > 1 {
		num, den = num/g, den/g
	}
	return num, den
}

func abs64(a int64) int64 {
	if a < 0 {
		return -a
	}
	return a
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func (d *ifd) sort() {
	sort.Slice(d.entries, func(i, j int) bool { return d.entries[i].tag < d.entries[j].tag })
}

// size is the number of bytes marshal will produce. Out of line values
// are padded to an even length, to keep every offset word aligned.
func (d *ifd) size() int64 {
	n := int64(2 + len(d.entries)*ifdEntryLen + 4)
	for _, e := range d.entries {
		if l := e.dataLen(); l > 4 {
			n += int64(l + l%2)
		}
	}
	return n
}

// marshal lays the IFD out, assuming it will be written at offset.
func (d *ifd) marshal(offset int64) []byte {
	d.sort()

	out := make([]byte, d.size())
	binary.LittleEndian.PutUint16(out[0:2], uint16(len(d.entries)))

	p := out[2:]
	parea := int64(2 + len(d.entries)*ifdEntryLen + 4)

	for _, e := range d.entries {
		binary.LittleEndian.PutUint16(p[0:2], e.tag)
		binary.LittleEndian.PutUint16(p[2:4], e.typ)
		binary.LittleEndian.PutUint32(p[4:8], e.count)

		if l := e.dataLen(); l <= 4 {
			e.putData(p[8:12])
		} else {
			e.putData(out[parea : parea+int64(l)])
			binary.LittleEndian.PutUint32(p[8:12], uint32(offset+parea))
			parea += int64(l + l%2)
		}
		p = p[ifdEntryLen:]
	}

	// The next-IFD link is left as zero.
	return out
}
