package dtree_test

import (
	"testing"

	"github.com/lunatix-kernel/lunatix/internal/dtree"
)

// resource is a minimal Payload: nodes sharing the same *resource pointer
// are copies of one another, matching how a real capability's payload
// (e.g. a shared *MemoryState) defines correspondence.
type resource struct {
	id int
}

func (r *resource) CorrespondsTo(other dtree.Payload) bool {
	o, ok := other.(*resource)
	return ok && o == r
}

func newTestTree() (*dtree.Tree, *resource) {
	root := &resource{id: 0}
	return dtree.NewTree(root, 8), root
}

func TestInsertCopySpliceAndDepth(t *testing.T) {
	tree, _ := newTestTree()
	root := tree.Root()

	m := &resource{id: 1}
	memID := tree.InsertDerivation(root, m)

	mCopy := &resource{id: 1}
	_ = mCopy // distinct payload identity is not a copy, even with an equal id; not inserted.

	copyID := tree.InsertCopy(memID, m)

	if tree.Depth(copyID) != tree.Depth(memID) {
		t.Errorf("copy depth = %d, want %d", tree.Depth(copyID), tree.Depth(memID))
	}

	if tree.Next(memID) != copyID {
		t.Errorf("expected copy spliced immediately after source")
	}

	if !tree.IsLastCopy(copyID) {
		t.Error("the spliced-in copy should be the last copy")
	}

	if tree.IsLastCopy(memID) {
		t.Error("memID now has a copy after it and should not report itself as last")
	}
}

func TestInsertDerivationAdvancesPastCopies(t *testing.T) {
	tree, _ := newTestTree()
	root := tree.Root()

	m := &resource{id: 1}
	memID := tree.InsertDerivation(root, m)
	copyID := tree.InsertCopy(memID, m)

	page := &resource{id: 2}
	pageID := tree.InsertDerivation(memID, page)

	if tree.Prev(pageID) != copyID {
		t.Errorf("derivation should splice after the last copy, not the source directly")
	}

	if tree.Depth(pageID) != tree.Depth(memID)+1 {
		t.Errorf("derivation depth = %d, want %d", tree.Depth(pageID), tree.Depth(memID)+1)
	}

	if !tree.HasDerivations(memID) {
		t.Error("expected HasDerivations(memID) to be true")
	}
}

// TestRevocation reproduces spec.md scenario S3: Memory M; derive Page P;
// copy P to P'; destroy M. Afterward the tree contains only the root.
func TestRevocation(t *testing.T) {
	tree, _ := newTestTree()
	root := tree.Root()

	m := &resource{id: 1}
	memID := tree.InsertDerivation(root, m)

	p := &resource{id: 2}
	pageID := tree.InsertDerivation(memID, p)
	pageCopyID := tree.InsertCopy(pageID, p)
	_ = pageCopyID

	destroyed := tree.Destroy(memID)

	if len(destroyed) != 3 {
		t.Fatalf("expected 3 payloads destroyed (M, P, P'), got %d", len(destroyed))
	}

	if tree.Next(root) != dtree.NoNode {
		t.Error("expected the root to have no remaining children")
	}
}

func TestDestroyNonLastCopyLeavesSiblingIntact(t *testing.T) {
	tree, _ := newTestTree()
	root := tree.Root()

	p := &resource{id: 1}
	pageID := tree.InsertDerivation(root, p)
	copyID := tree.InsertCopy(pageID, p)

	destroyed := tree.Destroy(pageID)

	if len(destroyed) != 1 {
		t.Fatalf("destroying a non-last copy should not cascade, got %d payloads", len(destroyed))
	}

	if tree.Next(root) != copyID {
		t.Error("the surviving copy should still be linked into the tree")
	}

	if !tree.IsLastCopy(copyID) {
		t.Error("the surviving copy is now alone and should be its own last copy")
	}
}

func TestDestroyPanicsOnReferencedNode(t *testing.T) {
	tree, _ := newTestTree()
	root := tree.Root()

	p := &resource{id: 1}
	pageID := tree.InsertDerivation(root, p)

	h, ok := tree.Cursors.GetFreeCursor()
	if !ok {
		t.Fatal("expected a free cursor")
	}

	if err := tree.Cursors.SelectNode(h, pageID); err != nil {
		t.Fatalf("SelectNode: %v", err)
	}

	if !tree.Cursors.GetExclusive(h) {
		t.Fatal("expected to acquire an exclusive reference")
	}

	defer func() {
		if recover() == nil {
			t.Error("expected Destroy of a referenced node to panic")
		}
	}()

	tree.Destroy(pageID)
}

func TestCursorSharedExclusiveExclusion(t *testing.T) {
	tree, _ := newTestTree()
	root := tree.Root()

	p := &resource{id: 1}
	pageID := tree.InsertDerivation(root, p)

	h1, _ := tree.Cursors.GetFreeCursor()
	if err := tree.Cursors.SelectNode(h1, pageID); err != nil {
		t.Fatalf("SelectNode h1: %v", err)
	}

	h2, _ := tree.Cursors.GetFreeCursor()
	if err := tree.Cursors.SelectNode(h2, pageID); err != nil {
		t.Fatalf("SelectNode h2: %v", err)
	}

	if !tree.Cursors.GetShared(h1) {
		t.Fatal("first shared acquisition should succeed")
	}

	if !tree.Cursors.GetShared(h2) {
		t.Fatal("second shared acquisition should succeed: shared references coexist")
	}

	tree.Cursors.Release(h1)
	tree.Cursors.Release(h2)

	if !tree.Cursors.GetExclusive(h1) {
		t.Fatal("exclusive acquisition should succeed once no shared refs remain")
	}

	if tree.Cursors.GetExclusive(h2) {
		t.Error("a second exclusive acquisition must fail while the first is held")
	}
}

func TestCursorFreeVerifiesNoReference(t *testing.T) {
	tree, _ := newTestTree()
	root := tree.Root()

	p := &resource{id: 1}
	pageID := tree.InsertDerivation(root, p)

	h, _ := tree.Cursors.GetFreeCursor()
	if err := tree.Cursors.SelectNode(h, pageID); err != nil {
		t.Fatalf("SelectNode: %v", err)
	}

	if !tree.Cursors.GetShared(h) {
		t.Fatal("expected shared acquisition to succeed")
	}

	defer func() {
		if recover() == nil {
			t.Error("expected FreeCursor on a held reference to panic")
		}
	}()

	tree.Cursors.FreeCursor(h)
}
