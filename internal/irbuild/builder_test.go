package irbuild

import (
	"testing"

	lltypes "github.com/llir/llvm/ir/types"
)

func TestEntryAllocaPlacesOneSlotPerLocal(t *testing.T) {
	b := NewBuilder()
	_, entry := b.StartFunction("f", lltypes.Void)

	b.EntryAlloca("x", lltypes.I32)
	loopBlock := b.NewBlock("loop")
	b.SetBlock(loopBlock)
	// A declaration lexically inside a loop body still allocates in entry.
	b.EntryAlloca("y", lltypes.I32)

	if len(entry.Insts) != 2 {
		t.Fatalf("entry block has %d instructions, want 2 allocas", len(entry.Insts))
	}
	if b.Block() != loopBlock {
		t.Error("EntryAlloca must not disturb the caller's current insertion point")
	}
}

func TestSaveRestoreInsertionPoint(t *testing.T) {
	b := NewBuilder()
	_, entry := b.StartFunction("f", lltypes.Void)
	other := b.NewBlock("other")

	saved := b.Save()
	b.SetBlock(other)
	b.Restore(saved)

	if b.Block() != entry {
		t.Error("Restore should return the insertion point to the saved block")
	}
}
