package memory

import (
	"testing"

	lltypes "github.com/llir/llvm/ir/types"

	"eaglec/internal/irbuild"
	etypes "eaglec/internal/types"
)

func TestAssignCountedIncrementsBeforeDecrementingOld(t *testing.T) {
	reg := etypes.NewRegistry()
	b := irbuild.NewBuilder()
	rt := DeclareRuntime(b)
	headerType := irbuild.CountedHeaderType(reg, lltypes.I32)
	_, entry := b.StartFunction("f", lltypes.Void)
	b.SetBlock(entry)

	slot := b.EntryAlloca("slot", lltypes.NewPointer(headerType))
	newHeader := b.EntryAlloca("newh", headerType)
	newHeaderVal := b.Block().NewLoad(lltypes.NewPointer(headerType), newHeader)

	before := len(b.Block().Insts)
	AssignCounted(b, rt, headerType, slot, newHeaderVal, false)
	// load old, incr call, store, decr call: 4 instructions when not consumed.
	if got, want := len(b.Block().Insts), before+4; got != want {
		t.Fatalf("AssignCounted (unconsumed) emitted %d instructions, want %d", got-before, want-before)
	}
}

func TestAssignCountedConsumedSkipsIncrement(t *testing.T) {
	reg := etypes.NewRegistry()
	b := irbuild.NewBuilder()
	rt := DeclareRuntime(b)
	headerType := irbuild.CountedHeaderType(reg, lltypes.I32)
	_, entry := b.StartFunction("f", lltypes.Void)
	b.SetBlock(entry)

	slot := b.EntryAlloca("slot", lltypes.NewPointer(headerType))
	newHeader := b.EntryAlloca("newh", headerType)
	newHeaderVal := b.Block().NewLoad(lltypes.NewPointer(headerType), newHeader)

	before := len(b.Block().Insts)
	AssignCounted(b, rt, headerType, slot, newHeaderVal, true)
	// load old, store, refcount gep, decr call: 4 instructions when the rhs
	// is consumed.
	if got, want := len(b.Block().Insts), before+4; got != want {
		t.Fatalf("AssignCounted (consumed) emitted %d instructions, want %d", got-before, want-before)
	}
}

func TestAssignWeakUnregistersThenRegisters(t *testing.T) {
	b := irbuild.NewBuilder()
	rt := DeclareRuntime(b)
	_, entry := b.StartFunction("f", lltypes.Void)
	b.SetBlock(entry)

	slot := b.EntryAlloca("slot", lltypes.NewPointer(lltypes.I8))
	newHeader := b.Block().NewLoad(lltypes.NewPointer(lltypes.I8), slot)

	before := len(b.Block().Insts)
	AssignWeak(b, rt, slot, newHeader)
	if got := len(b.Block().Insts); got <= before {
		t.Fatal("AssignWeak emitted no instructions")
	}
}

func TestAssignPlainIsABareStore(t *testing.T) {
	b := irbuild.NewBuilder()
	_, entry := b.StartFunction("f", lltypes.Void)
	b.SetBlock(entry)

	slot := b.EntryAlloca("slot", lltypes.I32)
	rhs := b.Block().NewLoad(lltypes.I32, slot)

	before := len(b.Block().Insts)
	AssignPlain(b, slot, rhs)
	if got, want := len(b.Block().Insts), before+1; got != want {
		t.Fatalf("AssignPlain emitted %d instructions, want exactly 1", got-before)
	}
}

func TestAssignStructDestroysThenCopies(t *testing.T) {
	reg := etypes.NewRegistry()
	boxType := defineBox(reg)
	b := irbuild.NewBuilder()
	rt := DeclareRuntime(b)
	tr := NewTriadRegistry()
	irType := irbuild.LowerType(reg, boxType).(*lltypes.StructType)
	def, _ := reg.StructDefOf("Box")
	triad := GenerateTriad(b, reg, rt, tr, "Box", irType, def.FieldNames, def.FieldTypes, 0)

	_, entry := b.StartFunction("g", lltypes.Void)
	b.SetBlock(entry)
	slot := b.EntryAlloca("slot", irType)
	rhs := b.EntryAlloca("rhs", irType)

	before := len(b.Block().Insts)
	AssignStruct(b, triad, slot, rhs)
	if got, want := len(b.Block().Insts), before+3; got != want {
		t.Fatalf("AssignStruct emitted %d instructions, want 3 (bitcast, destroy call, copy call)", got-before)
	}
}
