package types

import "testing"

func TestParseTypeNameIdempotentInterning(t *testing.T) {
	r := NewRegistry()
	r.DefineStruct("Foo", []string{"x"}, []*Type{r.Basic(KInt32)})

	a := r.ParseTypeName("Foo")
	b := r.ParseTypeName("Foo")
	if a != b {
		t.Fatalf("ParseTypeName(Foo) returned distinct instances: %p != %p", a, b)
	}
}

func TestParseTypeNameReservedWords(t *testing.T) {
	r := NewRegistry()
	cases := map[string]Kind{
		"bool":   KInt1,
		"int":    KInt32,
		"long":   KInt64,
		"double": KDouble,
		"byte":   KUInt8,
		"void":   KVoid,
		"any":    KAny,
		"auto":   KAuto,
	}
	for name, want := range cases {
		got := r.ParseTypeName(name)
		if got == nil || got.Kind != want {
			t.Errorf("ParseTypeName(%q) = %v, want kind %v", name, got, want)
		}
	}
}

func TestParseTypeNameUnknown(t *testing.T) {
	r := NewRegistry()
	if r.ParseTypeName("DoesNotExist") != nil {
		t.Error("expected nil for an unregistered name")
	}
}

func TestAreSameReflexive(t *testing.T) {
	r := NewRegistry()
	p := r.NewPointer(r.Basic(KInt32), true, false, false)
	if !r.AreSame(p, p) {
		t.Error("AreSame(t, t) should be true")
	}
}

func TestAreSameCountedVsUncounted(t *testing.T) {
	r := NewRegistry()
	payload := r.Basic(KInt32)
	counted := r.NewPointer(payload, true, false, false)
	uncounted := r.NewPointer(payload, false, false, false)
	if r.AreSame(counted, uncounted) {
		t.Error("counted and uncounted pointers to the same pointee must compare unequal")
	}
}

func TestAreSameArrays(t *testing.T) {
	r := NewRegistry()
	a := r.NewArray(r.Basic(KInt32), 4)
	b := r.NewArray(r.Basic(KInt32), 4)
	c := r.NewArray(r.Basic(KInt32), 5)
	if !r.AreSame(a, b) {
		t.Error("arrays with equal element type and count should be same")
	}
	if r.AreSame(a, c) {
		t.Error("arrays with differing static count should not be same")
	}
}

func TestAreSameFunctions(t *testing.T) {
	r := NewRegistry()
	f1 := r.NewFunction(r.Basic(KInt32), []*Type{r.Basic(KInt32), r.Basic(KDouble)}, false, ClosureNone, false)
	f2 := r.NewFunction(r.Basic(KInt32), []*Type{r.Basic(KInt32), r.Basic(KDouble)}, false, ClosureNone, false)
	f3 := r.NewFunction(r.Basic(KInt32), []*Type{r.Basic(KInt32)}, false, ClosureNone, false)
	if !r.AreSame(f1, f2) {
		t.Error("functions with equal return/arity/params/closure/generator should be same")
	}
	if r.AreSame(f1, f3) {
		t.Error("functions with differing arity should not be same")
	}
}

func TestPromotionWidening(t *testing.T) {
	r := NewRegistry()
	got := r.Promotion(r.Basic(KInt32), r.Basic(KDouble))
	if got.Kind != KDouble {
		t.Errorf("Promotion(int32, double) = %v, want double", got.Kind)
	}
}

func TestPromotionNoneOnVoid(t *testing.T) {
	r := NewRegistry()
	got := r.Promotion(r.Basic(KInt32), r.Basic(KVoid))
	if got.Kind != KNone {
		t.Errorf("Promotion(int32, void) = %v, want None", got.Kind)
	}
}

func TestNeedsDestructorDirectCountedField(t *testing.T) {
	r := NewRegistry()
	counted := r.NewPointer(r.Basic(KInt32), true, false, false)
	s := r.DefineStruct("Node", []string{"next"}, []*Type{counted})
	if !r.NeedsDestructor(s) {
		t.Error("a struct with a counted field needs a destructor")
	}
}

func TestNeedsDestructorTransitiveNestedStruct(t *testing.T) {
	r := NewRegistry()
	counted := r.NewPointer(r.Basic(KInt32), true, false, false)
	inner := r.DefineStruct("Inner", []string{"ptr"}, []*Type{counted})
	outer := r.DefineStruct("Outer", []string{"inner"}, []*Type{inner})
	if !r.NeedsDestructor(outer) {
		t.Error("a struct containing a destructor-needing struct field needs a destructor")
	}
}

func TestNeedsDestructorArrayOfCounted(t *testing.T) {
	r := NewRegistry()
	counted := r.NewPointer(r.Basic(KInt32), true, false, false)
	arr := r.NewArray(counted, 8)
	if !r.NeedsDestructor(arr) {
		t.Error("an array containing counted pointers needs a destructor")
	}
}

func TestNeedsDestructorPlainStruct(t *testing.T) {
	r := NewRegistry()
	s := r.DefineStruct("Point", []string{"x", "y"}, []*Type{r.Basic(KInt32), r.Basic(KInt32)})
	if r.NeedsDestructor(s) {
		t.Error("a struct of plain numerics does not need a destructor")
	}
}

func TestStructMemberIndex(t *testing.T) {
	r := NewRegistry()
	s := r.DefineStruct("Point", []string{"x", "y"}, []*Type{r.Basic(KInt32), r.Basic(KInt32)})

	idx, ft := r.StructMemberIndex(s, "y")
	if idx != 1 || ft.Kind != KInt32 {
		t.Errorf("StructMemberIndex(Point, y) = (%d, %v), want (1, int32)", idx, ft)
	}

	if idx, _ := r.StructMemberIndex(s, "z"); idx != -1 {
		t.Errorf("StructMemberIndex for a missing member = %d, want -1", idx)
	}

	unlaid := &Type{Kind: KStruct, Name: "NeverLaidOut"}
	if idx, _ := r.StructMemberIndex(unlaid, "x"); idx != -2 {
		t.Errorf("StructMemberIndex for an unlaid-out type = %d, want -2", idx)
	}
}

func TestStructMemberIndexClassShiftsForVtable(t *testing.T) {
	r := NewRegistry()
	c := r.DefineClass("Widget", []string{"width", "height"}, []*Type{r.Basic(KInt32), r.Basic(KInt32)}, nil)

	idx, _ := r.StructMemberIndex(c, "width")
	if idx != 1 {
		t.Errorf("StructMemberIndex(Widget, width) = %d, want 1 (shifted for hidden vtable slot)", idx)
	}
	idx, _ = r.StructMemberIndex(c, "height")
	if idx != 2 {
		t.Errorf("StructMemberIndex(Widget, height) = %d, want 2", idx)
	}
}

func TestInterfaceOffsetAndCount(t *testing.T) {
	r := NewRegistry()
	iface := r.DefineInterface("Shape", []string{"area", "perimeter"}, []string{"Shape"})

	if off := r.InterfaceOffset(iface, "perimeter"); off != 1 {
		t.Errorf("InterfaceOffset(Shape, perimeter) = %d, want 1", off)
	}
	if n := r.InterfaceCount(iface); n != 2 {
		t.Errorf("InterfaceCount(Shape) = %d, want 2", n)
	}
}

func TestClassImplementsInterface(t *testing.T) {
	r := NewRegistry()
	r.DefineInterface("Shape", []string{"area"}, []string{"Shape"})
	impl := r.DefineClass("Circle", []string{"radius"}, []*Type{r.Basic(KDouble)}, []string{"Shape"})
	other := r.DefineClass("Blob", []string{"mass"}, []*Type{r.Basic(KDouble)}, nil)

	shape := r.ParseTypeName("Shape")
	if !r.ClassImplementsInterface(impl, shape) {
		t.Error("Circle should implement Shape")
	}
	if r.ClassImplementsInterface(other, shape) {
		t.Error("Blob should not implement Shape")
	}
}

func TestGetCountedHeaderTypeCachesByStringifiedIRType(t *testing.T) {
	r := NewRegistry()
	builds := 0
	build := func(p IRType) IRType {
		builds++
		return stubIRType(p.String() + "_header")
	}

	p := stubIRType("i32")
	h1 := r.GetCountedHeaderType(p, build)
	h2 := r.GetCountedHeaderType(stubIRType("i32"), build)

	if h1 != h2 {
		t.Errorf("header types for the same payload representation should be identical: %v != %v", h1, h2)
	}
	if builds != 1 {
		t.Errorf("build was called %d times, want 1 (cache should absorb the second request)", builds)
	}
}

type stubIRType string

func (s stubIRType) String() string { return string(s) }
