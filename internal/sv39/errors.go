package sv39

import "errors"

var (
	// ErrNotAligned is returned when a virtual or physical address is not
	// aligned to the requested page type's size.
	ErrNotAligned = errors.New("sv39: address not aligned to page size")

	// ErrNoAccess is returned when a mapping requests a leaf with none of
	// Read, Write or Execute set.
	ErrNoAccess = errors.New("sv39: leaf mapping requires at least one of R/W/X")

	// ErrAlreadyMapped is returned when map would overwrite an existing
	// valid leaf entry.
	ErrAlreadyMapped = errors.New("sv39: virtual address already mapped")

	// ErrOutOfMemory is returned when the table store's arena cannot
	// supply a frame for a new intermediate table.
	ErrOutOfMemory = errors.New("sv39: no frames available for page table")

	// ErrIntermediateIsLeaf is an invariant violation: an entry expected to
	// be a pointer to the next table level turned out to be a leaf.
	ErrIntermediateIsLeaf = errors.New("sv39: intermediate page-table entry is unexpectedly a leaf")
)
