package capability

import "fmt"

// CAddr is a variable-length hierarchical capability address: a sequence
// of (value, nbits) parts separated by continuation bits, as described in
// spec.md §3.4.
type CAddr uint64

// NewCAddr creates a single-part CAddr addressing value within a CSpace
// that needs nbits to index.
func NewCAddr(value uint64, nbits uint) CAddr {
	mask := partMask(nbits)
	if value > mask {
		panic(fmt.Sprintf("capability: CAddr value %d does not fit in %d bits", value, nbits))
	}

	return CAddr(value)
}

// Raw returns the address's bit-packed representation.
func (c CAddr) Raw() uint64 { return uint64(c) }

func partMask(nbits uint) uint64 {
	if nbits >= 64 {
		return ^uint64(0)
	}

	return (uint64(1) << nbits) - 1
}

// TakeBits consumes the first nbits of the address, returning the part
// those bits encode and, if the continuation bit following them is set,
// the remaining address to resolve in the next CSpace down. A false
// second return means this was the last part.
func (c CAddr) TakeBits(nbits uint) (value uint64, remainder CAddr, more bool) {
	mask := partMask(nbits)
	part := uint64(c) & mask
	rest := uint64(c) >> nbits

	if rest&1 == 0 {
		return part, 0, false
	}

	return part, CAddr(rest >> 1), true
}

// addPart prepends a new outer part to an already-built address, used by
// CAddrBuilder.Finish to assemble a multi-part address outer-part-first.
func (c CAddr) addPart(value uint64, nbits uint) CAddr {
	mask := partMask(nbits)
	if value > mask {
		panic(fmt.Sprintf("capability: CAddr part value %d does not fit in %d bits", value, nbits))
	}

	previous := (uint64(c) << 1) | 1
	previous <<= nbits

	return CAddr(previous | value)
}

// CAddrBuilder constructs a multi-part CAddr by addressing successively
// nested CSpaces, outermost part first (SPEC_FULL.md §4 Supplemented
// Features).
type CAddrBuilder struct {
	parts [][2]uint64 // (value, nbits), in the order Part was called
}

// NewCAddrBuilder starts a new builder.
func NewCAddrBuilder() *CAddrBuilder {
	return &CAddrBuilder{}
}

// Part adds the next, more deeply nested part to the address.
func (b *CAddrBuilder) Part(value uint64, nbits uint) *CAddrBuilder {
	mask := partMask(nbits)
	if value > mask {
		panic(fmt.Sprintf("capability: CAddr part value %d does not fit in %d bits", value, nbits))
	}

	b.parts = append(b.parts, [2]uint64{value, uint64(nbits)})

	return b
}

// Finish assembles the parts added so far into a CAddr. The first-added
// (outermost) part becomes the address's least-significant bits -- the
// part TakeBits consumes first, and so the one resolved against the
// root CSpace -- with each part added after it folded in as a
// successively more significant, continuation-bit-separated part.
func (b *CAddrBuilder) Finish() CAddr {
	if len(b.parts) == 0 {
		panic("capability: CAddrBuilder.Finish requires at least one part")
	}

	n := len(b.parts)
	addr := NewCAddr(b.parts[n-1][0], uint(b.parts[n-1][1]))

	for i := n - 2; i >= 0; i-- {
		addr = addr.addPart(b.parts[i][0], uint(b.parts[i][1]))
	}

	return addr
}
