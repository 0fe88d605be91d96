package memory

import (
	"testing"

	"github.com/llir/llvm/ir"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"eaglec/internal/irbuild"
	etypes "eaglec/internal/types"
)

func TestNewAllocationZeroInitializesWithoutInit(t *testing.T) {
	reg := etypes.NewRegistry()
	b := irbuild.NewBuilder()
	rt := DeclareRuntime(b)
	headerType := irbuild.CountedHeaderType(reg, lltypes.I32)
	_, entry := b.StartFunction("f", lltypes.Void)
	b.SetBlock(entry)

	before := len(b.Block().Insts)
	header := NewAllocation(b, rt, headerType, nil, nil)

	if header.Type().String() != lltypes.NewPointer(headerType).String() {
		t.Errorf("NewAllocation returned %s, want *headerType", header.Type())
	}
	if got := len(b.Block().Insts); got <= before {
		t.Fatalf("NewAllocation emitted no instructions")
	}
}

func TestNewAllocationRunsInitOverPayload(t *testing.T) {
	reg := etypes.NewRegistry()
	b := irbuild.NewBuilder()
	rt := DeclareRuntime(b)
	headerType := irbuild.CountedHeaderType(reg, lltypes.I32)
	_, entry := b.StartFunction("f", lltypes.Void)
	b.SetBlock(entry)

	called := false
	NewAllocation(b, rt, headerType, nil, func(payloadPtr value.Value) {
		called = true
		if payloadPtr.Type().String() != lltypes.NewPointer(lltypes.I32).String() {
			t.Errorf("init payload ptr type = %s, want *i32", payloadPtr.Type())
		}
	})
	if !called {
		t.Error("init callback was not invoked")
	}
}

func TestNewAllocationStoresDestructorPointer(t *testing.T) {
	reg := etypes.NewRegistry()
	b := irbuild.NewBuilder()
	rt := DeclareRuntime(b)
	headerType := irbuild.CountedHeaderType(reg, lltypes.I32)
	_, entry := b.StartFunction("f", lltypes.Void)
	b.SetBlock(entry)

	dtor := ir.NewFunc("__egl_x_Thing", lltypes.Void, ir.NewParam("", lltypes.NewPointer(lltypes.I8)), ir.NewParam("", lltypes.I1))

	before := len(b.Block().Insts)
	NewAllocation(b, rt, headerType, dtor, nil)
	if got := len(b.Block().Insts); got <= before {
		t.Fatalf("NewAllocation with a destructor emitted no instructions")
	}
}

func TestSizeOfEmitsGEPAndPtrToInt(t *testing.T) {
	reg := etypes.NewRegistry()
	b := irbuild.NewBuilder()
	headerType := irbuild.CountedHeaderType(reg, lltypes.I32)
	_, entry := b.StartFunction("f", lltypes.Void)
	b.SetBlock(entry)

	before := len(b.Block().Insts)
	size := sizeOf(b, headerType)
	if size.Type().String() != lltypes.I64.String() {
		t.Errorf("sizeOf returned %s, want i64", size.Type())
	}
	if got, want := len(b.Block().Insts), before+2; got != want {
		t.Fatalf("sizeOf emitted %d instructions, want 2 (gep, ptrtoint)", got-before)
	}
}
