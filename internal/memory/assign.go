package memory

import (
	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"eaglec/internal/irbuild"
)

// AssignCounted lowers `dst = rhs` where dst's type is a counted pointer.
// The new value is incremented before the old one is released so
// self-assignment (x = x) and aliased
// assignment (x = y where y already equals x) both leave the refcount
// correct; consumed controls whether the increment runs at all, since a
// transient or loaded-transient handing off its reference already holds
// the count the destination needs.
func AssignCounted(b *irbuild.Builder, rt *RuntimeFuncs, headerType *lltypes.StructType, slotPtr, newHeader value.Value, consumed bool) {
	old := b.Block().NewLoad(lltypes.NewPointer(headerType), slotPtr)
	if !consumed {
		EmitIncr(b, rt, RefcountPtr(b, headerType, newHeader))
	}
	b.Block().NewStore(newHeader, slotPtr)
	EmitDecr(b, rt, RefcountPtr(b, headerType, old))
}

// AssignWeak lowers `dst = rhs` where dst's type is a weak pointer: the
// old registration is dropped, the new pointer is stored, and the slot
// is re-registered against whatever header it now points at.
func AssignWeak(b *irbuild.Builder, rt *RuntimeFuncs, slotPtr, newHeader value.Value) {
	i8ptr := lltypes.NewPointer(lltypes.I8)
	i8ptrptr := lltypes.NewPointer(i8ptr)
	slotAsI8 := b.Block().NewBitCast(slotPtr, i8ptrptr)

	EmitWeakUnregister(b, rt, slotAsI8)
	b.Block().NewStore(newHeader, slotPtr)
	EmitWeakRegister(b, rt, slotAsI8, b.Block().NewBitCast(newHeader, i8ptr))
}

// AssignStruct lowers `dst = rhs` where dst's type is a destructor-needing
// struct or class held by value: the slot's current contents are destroyed
// in place (via-header false: the slot is a raw struct address, not a
// counted header), then the new value is copy-constructed into the now-
// vacated slot.
func AssignStruct(b *irbuild.Builder, triad *Triad, slotPtr, rhsPtr value.Value) {
	i8ptr := lltypes.NewPointer(lltypes.I8)
	b.Block().NewCall(triad.Destroy, b.Block().NewBitCast(slotPtr, i8ptr), constant.NewInt(lltypes.I1, 0))
	b.Block().NewCall(triad.Copy, slotPtr, rhsPtr)
}

// AssignPlain lowers `dst = rhs` for a type with no ownership
// implications (plain numerics, uncounted raw pointers, enums): a bare
// store, no pre/post hooks.
func AssignPlain(b *irbuild.Builder, slotPtr, rhs value.Value) {
	b.Block().NewStore(rhs, slotPtr)
}

// DerefAssignCounted is AssignCounted's variant for `*p = rhs`: identical
// policy, the only difference being that slotPtr was produced by
// dereferencing a pointer expression rather than naming a local or field
// directly. Kept as a separate entry point so callers in codegen don't
// need to re-derive the distinction; the memory-management policy is the
// same either way.
func DerefAssignCounted(b *irbuild.Builder, rt *RuntimeFuncs, headerType *lltypes.StructType, slotPtr, newHeader value.Value, consumed bool) {
	AssignCounted(b, rt, headerType, slotPtr, newHeader, consumed)
}

// IndexedAssignCounted is AssignCounted's variant for `a[i] = rhs`: same
// policy against an element pointer produced by array indexing.
func IndexedAssignCounted(b *irbuild.Builder, rt *RuntimeFuncs, headerType *lltypes.StructType, elemPtr, newHeader value.Value, consumed bool) {
	AssignCounted(b, rt, headerType, elemPtr, newHeader, consumed)
}

// Compound assignment (+=, -=, etc.) bypasses all of the above entirely:
// it is a plain load-modify-store against the existing slot, never
// invoking the assignment policy table, since the object identity at
// the slot does not change.
