package memory

import (
	"testing"

	"github.com/llir/llvm/ir"

	"eaglec/internal/irbuild"
)

// allRuntimeFuncs lists every function DeclareRuntime declares, for tests
// that need to sweep all of them uniformly.
func allRuntimeFuncs(rt *RuntimeFuncs) []*ir.Func {
	return []*ir.Func{
		rt.IncrPtr, rt.DecrPtr, rt.CheckPtr,
		rt.ArrayFillNil, rt.ArrayDecrPtrs, rt.CountedDestructor,
		rt.WeakRegister, rt.WeakUnregister, rt.Malloc,
	}
}

// TestDeclareRuntimeNamesSixABISymbols asserts the six runtime ABI
// external collaborators are declared under their exact symbol names, the
// consistency check a generated-C-runtime project would run against its
// own header and source, adapted here since this core never emits or
// links against the runtime itself.
func TestDeclareRuntimeNamesSixABISymbols(t *testing.T) {
	b := irbuild.NewBuilder()
	rt := DeclareRuntime(b)

	cases := []struct {
		name string
		fn   *ir.Func
	}{
		{"__egl_incr_ptr", rt.IncrPtr},
		{"__egl_decr_ptr", rt.DecrPtr},
		{"__egl_check_ptr", rt.CheckPtr},
		{"__egl_array_fill_nil", rt.ArrayFillNil},
		{"__egl_array_decr_ptrs", rt.ArrayDecrPtrs},
		{"__egl_counted_destructor", rt.CountedDestructor},
	}
	for _, c := range cases {
		if c.fn.Name() != c.name {
			t.Errorf("declared name = %q, want %q", c.fn.Name(), c.name)
		}
	}
}

// TestDeclareRuntimeFuncsHaveNoBody asserts every declared runtime function
// is a pure external declaration: DeclareExternalFunc never attaches a
// block, since the six ABI symbols (and malloc) are defined by the linked
// runtime, not by this core.
func TestDeclareRuntimeFuncsHaveNoBody(t *testing.T) {
	b := irbuild.NewBuilder()
	rt := DeclareRuntime(b)

	for _, fn := range allRuntimeFuncs(rt) {
		if len(fn.Blocks) != 0 {
			t.Errorf("%s: expected an external declaration with no body, got %d blocks", fn.Name(), len(fn.Blocks))
		}
	}
}

// TestDeclareRuntimeIsIndependentPerBuilder asserts a second DeclareRuntime
// call against a fresh builder produces independent function values, so
// Compiler.Reset (a fresh New()) never aliases declarations across
// unrelated compilations.
func TestDeclareRuntimeIsIndependentPerBuilder(t *testing.T) {
	b1 := irbuild.NewBuilder()
	b2 := irbuild.NewBuilder()
	rt1 := DeclareRuntime(b1)
	rt2 := DeclareRuntime(b2)

	if rt1.IncrPtr == rt2.IncrPtr {
		t.Error("expected distinct builders to produce distinct *ir.Func values")
	}
}
