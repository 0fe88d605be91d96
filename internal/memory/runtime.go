// Package memory implements the ARC discipline: the per-statement
// transient tables, the assignment policy table, allocation lowering,
// and the generated struct constructor/copy-constructor/destructor
// triad. It is the memory-management inserter component.
package memory

import (
	"github.com/llir/llvm/ir"
	lltypes "github.com/llir/llvm/ir/types"

	"eaglec/internal/irbuild"
)

// RuntimeFuncs holds the declared-but-undefined runtime ABI symbols, plus
// the two weak-pointer registration calls the assignment policy implies
// (remove the old weak registration, register the new value with the
// runtime) beyond the six named ABI entries. They are declared as a
// *ir.Func with a signature and no body, like any external GC/builtin
// function.
type RuntimeFuncs struct {
	IncrPtr           *ir.Func // void(*i64)
	DecrPtr           *ir.Func // void(*i64)
	CheckPtr          *ir.Func // void(*i64)
	ArrayFillNil      *ir.Func // void(*i8, i64)
	ArrayDecrPtrs     *ir.Func // void(**i8, i64)
	CountedDestructor *ir.Func // void(*i8, i1)
	WeakRegister      *ir.Func // void(**i8 slot, *i8 header)
	WeakUnregister    *ir.Func // void(**i8 slot)

	// Malloc is libc's allocator. `new T` lowers straight to a malloc call
	// rather than a named egl runtime symbol, so the generator calls out to
	// the C allocator directly.
	Malloc *ir.Func // *i8(i64)
}

// DeclareRuntime declares the runtime ABI on the module under
// construction. Called once per compilation.
func DeclareRuntime(b *irbuild.Builder) *RuntimeFuncs {
	i8ptr := lltypes.NewPointer(lltypes.I8)
	i8ptrptr := lltypes.NewPointer(i8ptr)
	i64ptr := lltypes.NewPointer(lltypes.I64)

	return &RuntimeFuncs{
		IncrPtr:           b.DeclareExternalFunc("__egl_incr_ptr", lltypes.Void, ir.NewParam("", i64ptr)),
		DecrPtr:           b.DeclareExternalFunc("__egl_decr_ptr", lltypes.Void, ir.NewParam("", i64ptr)),
		CheckPtr:          b.DeclareExternalFunc("__egl_check_ptr", lltypes.Void, ir.NewParam("", i64ptr)),
		ArrayFillNil:      b.DeclareExternalFunc("__egl_array_fill_nil", lltypes.Void, ir.NewParam("", i8ptr), ir.NewParam("", lltypes.I64)),
		ArrayDecrPtrs:     b.DeclareExternalFunc("__egl_array_decr_ptrs", lltypes.Void, ir.NewParam("", i8ptrptr), ir.NewParam("", lltypes.I64)),
		CountedDestructor: b.DeclareExternalFunc("__egl_counted_destructor", lltypes.Void, ir.NewParam("", i8ptr), ir.NewParam("", lltypes.I1)),
		WeakRegister:      b.DeclareExternalFunc("__egl_weak_register", lltypes.Void, ir.NewParam("", i8ptrptr), ir.NewParam("", i8ptr)),
		WeakUnregister:    b.DeclareExternalFunc("__egl_weak_unregister", lltypes.Void, ir.NewParam("", i8ptrptr)),
		Malloc:            b.DeclareExternalFunc("malloc", i8ptr, ir.NewParam("", lltypes.I64)),
	}
}
