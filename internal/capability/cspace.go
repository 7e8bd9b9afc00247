package capability

import (
	"fmt"

	"github.com/lunatix-kernel/lunatix/internal/dtree"
)

// CSlot is one entry in a CSpace's slot array: an occurrence -- a tree
// node -- of a capability, or Uninit if empty.
type CSlot struct {
	Cap  Capability
	Node dtree.NodeID
}

// IsUninit reports whether the slot holds no capability.
func (s *CSlot) IsUninit() bool { return s.Cap == nil }

// cspaceState is the shared, aliasable identity of a CSpace: copies of a
// CSpace capability point at the same slot array.
type cspaceState struct {
	memory *memoryState
	slots  []CSlot
	nbits  uint
	offset int // bookkeeping offset into the owning Memory's allocator, for Destroy.
}

// CSpace is an array of capability slots sized as a power of two,
// addressed by a multi-part CAddr, per spec.md §3.1/§3.4.
type CSpace struct {
	state *cspaceState
}

func (c *CSpace) Kind() Kind { return KindCSpace }

func (c *CSpace) CorrespondsTo(other dtree.Payload) bool {
	o, ok := other.(*CSpace)
	return ok && o.state == c.state
}

// NBits returns the number of bits needed to index this CSpace's slots.
func (c *CSpace) NBits() uint { return c.state.nbits }

// Slot returns a pointer to the slot at index i, bounds-checked.
func (c *CSpace) Slot(i uint64) (*CSlot, error) {
	if i >= uint64(len(c.state.slots)) {
		return nil, fmt.Errorf("%w: slot index %d out of range", ErrInvalidCAddr, i)
	}

	return &c.state.slots[i], nil
}

// Resolve walks addr through a chain of CSpaces starting at root,
// descending into a nested CSpace capability whenever a continuation bit
// says to, per spec.md §3.4. It returns the final slot addressed.
func Resolve(root *CSpace, addr CAddr) (*CSlot, error) {
	cspace := root

	for {
		value, rest, more := addr.TakeBits(cspace.NBits())

		slot, err := cspace.Slot(value)
		if err != nil {
			return nil, err
		}

		if !more {
			return slot, nil
		}

		if slot.IsUninit() {
			return nil, fmt.Errorf("%w: intermediate slot is Uninit", ErrInvalidCAddr)
		}

		next, ok := slot.Cap.(*CSpace)
		if !ok {
			return nil, fmt.Errorf("%w: intermediate slot is not a CSpace", ErrInvalidCAddr)
		}

		cspace = next
		addr = rest
	}
}
