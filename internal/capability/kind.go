// Package capability implements the capability taxonomy: the tagged
// payload types for every kind the kernel knows about, CAddr/CSpace
// addressing, and the init/copy/destroy operations each kind supports.
//
// A capability here is a dtree.Payload wrapped with a Kind tag, stored one
// per occurrence (tree node) in the kernel's single derivation tree. The
// Go type system gives us the "tagged enum" the source's Rust Capability
// enum encodes explicitly (SPEC_FULL.md Open Question Decision 2): each
// kind is its own Go type implementing the Capability interface, and a
// type switch recovers the concrete kind where needed, in the same
// small-interface, type-switch style used elsewhere in this kernel.
package capability

import "github.com/lunatix-kernel/lunatix/internal/dtree"

// Kind tags a capability's type.
type Kind int

const (
	Uninit Kind = iota
	KindMemory
	KindCSpace
	KindVSpace
	KindPage
	KindTask
	KindEndpoint
	KindNotification
	KindIrqControl
	KindIrq
	KindDevmem
	KindAsidControl
)

func (k Kind) String() string {
	switch k {
	case Uninit:
		return "Uninit"
	case KindMemory:
		return "Memory"
	case KindCSpace:
		return "CSpace"
	case KindVSpace:
		return "VSpace"
	case KindPage:
		return "Page"
	case KindTask:
		return "Task"
	case KindEndpoint:
		return "Endpoint"
	case KindNotification:
		return "Notification"
	case KindIrqControl:
		return "IrqControl"
	case KindIrq:
		return "Irq"
	case KindDevmem:
		return "Devmem"
	case KindAsidControl:
		return "AsidControl"
	default:
		return "invalid"
	}
}

// Capability is a typed, kernel-private object granting authority over
// exactly one resource. Every concrete kind implements both Kind (its tag)
// and CorrespondsTo (dtree's notion of "is a copy of"), so capabilities can
// be stored directly as derivation-tree payloads.
type Capability interface {
	dtree.Payload
	Kind() Kind
}
