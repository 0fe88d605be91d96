package memory

import (
	"testing"

	lltypes "github.com/llir/llvm/ir/types"

	"eaglec/internal/irbuild"
	etypes "eaglec/internal/types"
)

func TestRefcountAndPayloadPtrIndices(t *testing.T) {
	reg := etypes.NewRegistry()
	b := irbuild.NewBuilder()
	headerType := irbuild.CountedHeaderType(reg, lltypes.Double)
	_, entry := b.StartFunction("f", lltypes.Void)
	b.SetBlock(entry)
	headerPtr := b.EntryAlloca("h", lltypes.NewPointer(headerType))
	headerVal := b.Block().NewLoad(lltypes.NewPointer(headerType), headerPtr)

	rc := RefcountPtr(b, headerType, headerVal)
	if rc.Type().String() != lltypes.NewPointer(lltypes.I64).String() {
		t.Errorf("refcount ptr type = %s, want *i64", rc.Type())
	}

	pl := PayloadPtr(b, headerType, headerVal)
	if pl.Type().String() != lltypes.NewPointer(lltypes.Double).String() {
		t.Errorf("payload ptr type = %s, want *double", pl.Type())
	}
}

func TestFieldPtrPayloadIndexMatchesHeaderPayloadIndex(t *testing.T) {
	reg := etypes.NewRegistry()
	b := irbuild.NewBuilder()
	headerType := irbuild.CountedHeaderType(reg, lltypes.I32)
	if FieldPayload != irbuild.HeaderPayloadIndex {
		t.Fatalf("FieldPayload = %d, want %d (irbuild.HeaderPayloadIndex)", FieldPayload, irbuild.HeaderPayloadIndex)
	}
	if len(headerType.Fields) != 6 {
		t.Fatalf("header type has %d fields, want 6", len(headerType.Fields))
	}
}

func TestEmitIncrDecrCheckAppendCalls(t *testing.T) {
	reg := etypes.NewRegistry()
	b := irbuild.NewBuilder()
	rt := DeclareRuntime(b)
	_, entry := b.StartFunction("f", lltypes.Void)
	b.SetBlock(entry)
	headerType := irbuild.CountedHeaderType(reg, lltypes.I32)
	headerPtr := b.EntryAlloca("h", lltypes.NewPointer(headerType))
	headerVal := b.Block().NewLoad(lltypes.NewPointer(headerType), headerPtr)
	rc := RefcountPtr(b, headerType, headerVal)

	before := len(b.Block().Insts)
	EmitIncr(b, rt, rc)
	EmitDecr(b, rt, rc)
	EmitCheckPtr(b, rt, rc)
	if got, want := len(b.Block().Insts), before+3; got != want {
		t.Fatalf("block has %d instructions after 3 emits, want %d", got, want)
	}
}

func TestEmitWeakRegisterUnregister(t *testing.T) {
	reg := etypes.NewRegistry()
	_ = reg
	b := irbuild.NewBuilder()
	rt := DeclareRuntime(b)
	_, entry := b.StartFunction("f", lltypes.Void)
	b.SetBlock(entry)

	slot := b.EntryAlloca("slot", lltypes.NewPointer(lltypes.I8))
	header := b.Block().NewLoad(lltypes.NewPointer(lltypes.I8), slot)

	before := len(b.Block().Insts)
	EmitWeakRegister(b, rt, slot, header)
	EmitWeakUnregister(b, rt, slot)
	if got, want := len(b.Block().Insts), before+2; got != want {
		t.Fatalf("block has %d instructions after register+unregister, want %d", got, want)
	}
}
