package irbuild

import (
	"testing"

	lltypes "github.com/llir/llvm/ir/types"

	etypes "eaglec/internal/types"
)

func TestCountedHeaderTypeCachedByPayload(t *testing.T) {
	reg := etypes.NewRegistry()
	h1 := CountedHeaderType(reg, lltypes.I32)
	h2 := CountedHeaderType(reg, lltypes.I32)
	if h1 != h2 {
		t.Error("CountedHeaderType should return the identical struct type for the same payload")
	}
	if len(h1.Fields) != 6 {
		t.Fatalf("header struct has %d fields, want 6", len(h1.Fields))
	}
	if h1.Fields[HeaderPayloadIndex] != lltypes.I32 {
		t.Errorf("payload field at index %d = %v, want i32", HeaderPayloadIndex, h1.Fields[HeaderPayloadIndex])
	}
}

func TestLowerTypeCountedPointerWrapsHeader(t *testing.T) {
	reg := etypes.NewRegistry()
	s := reg.DefineStruct("Node", []string{"v"}, []*etypes.Type{reg.Basic(etypes.KInt32)})
	counted := reg.NewPointer(s, true, false, false)

	llt := LowerType(reg, counted)
	ptr, ok := llt.(*lltypes.PointerType)
	if !ok {
		t.Fatalf("counted pointer should lower to a pointer type, got %T", llt)
	}
	if _, ok := ptr.ElemType.(*lltypes.StructType); !ok {
		t.Errorf("counted pointer should point at the header struct, got %T", ptr.ElemType)
	}
}

func TestLowerTypeUnsizedArrayIsPointer(t *testing.T) {
	reg := etypes.NewRegistry()
	arr := reg.NewArray(reg.Basic(etypes.KInt32), etypes.ArrayUnknownCount)
	llt := LowerType(reg, arr)
	if _, ok := llt.(*lltypes.PointerType); !ok {
		t.Errorf("an array of unknown count should lower to a pointer, got %T", llt)
	}
}

func TestLowerTypeSizedArrayIsArrayType(t *testing.T) {
	reg := etypes.NewRegistry()
	arr := reg.NewArray(reg.Basic(etypes.KInt32), 4)
	llt := LowerType(reg, arr)
	at, ok := llt.(*lltypes.ArrayType)
	if !ok {
		t.Fatalf("a statically sized array should lower to an array type, got %T", llt)
	}
	if at.Len != 4 {
		t.Errorf("array type length = %d, want 4", at.Len)
	}
}

func TestLowerTypeClassShiftsFieldsForVtable(t *testing.T) {
	reg := etypes.NewRegistry()
	c := reg.DefineClass("Widget", []string{"w"}, []*etypes.Type{reg.Basic(etypes.KInt32)}, nil)
	llt := LowerType(reg, c)
	st, ok := llt.(*lltypes.StructType)
	if !ok {
		t.Fatalf("a class should lower to a struct type, got %T", llt)
	}
	if len(st.Fields) != 2 {
		t.Fatalf("class struct has %d fields, want 2 (vtable + w)", len(st.Fields))
	}
	if _, ok := st.Fields[0].(*lltypes.PointerType); !ok {
		t.Errorf("class field 0 should be the hidden vtable pointer, got %T", st.Fields[0])
	}
}
