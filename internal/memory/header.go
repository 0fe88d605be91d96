package memory

import (
	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"eaglec/internal/irbuild"
)

// Header field indices, the bit-exact header layout:
// {i64 refcount, i16 weak_count, i16 flags, *i8 weak_list,
//  *fn(*i8,i1) destructor, T payload}.
const (
	FieldRefcount = iota
	FieldWeakCount
	FieldFlags
	FieldWeakList
	FieldDestructor
	FieldPayload // == irbuild.HeaderPayloadIndex
)

// FieldPtr GEPs into a counted header for the given field index. Struct
// field access always uses the two-index GEP form: a leading zero to
// dereference the pointer itself, then the field index.
func FieldPtr(b *irbuild.Builder, headerType *lltypes.StructType, headerPtr value.Value, field int) value.Value {
	return b.Block().NewGetElementPtr(headerType, headerPtr,
		constant.NewInt(lltypes.I32, 0),
		constant.NewInt(lltypes.I32, int64(field)))
}

// RefcountPtr returns the address of a counted header's refcount field,
// the *i64 every runtime ABI call operates on.
func RefcountPtr(b *irbuild.Builder, headerType *lltypes.StructType, headerPtr value.Value) value.Value {
	return FieldPtr(b, headerType, headerPtr, FieldRefcount)
}

// PayloadPtr returns the address of a counted header's payload field
// (element index 5): what user dereference of a counted pointer yields.
func PayloadPtr(b *irbuild.Builder, headerType *lltypes.StructType, headerPtr value.Value) value.Value {
	return FieldPtr(b, headerType, headerPtr, FieldPayload)
}

// EmitIncr emits a call to __egl_incr_ptr on a header's refcount field.
func EmitIncr(b *irbuild.Builder, rt *RuntimeFuncs, refcountPtr value.Value) {
	b.Block().NewCall(rt.IncrPtr, refcountPtr)
}

// EmitDecr emits a call to __egl_decr_ptr. Decrementing a null counted
// pointer is a runtime no-op; the generator never needs to guard the
// call with a null check.
func EmitDecr(b *irbuild.Builder, rt *RuntimeFuncs, refcountPtr value.Value) {
	b.Block().NewCall(rt.DecrPtr, refcountPtr)
}

// EmitCheckPtr emits a call to __egl_check_ptr, the decrement-if-
// unretained variant used to balance a just-allocated transient at
// statement end.
func EmitCheckPtr(b *irbuild.Builder, rt *RuntimeFuncs, refcountPtr value.Value) {
	b.Block().NewCall(rt.CheckPtr, refcountPtr)
}

// EmitWeakRegister registers slotPtr (the address of the weak local or
// field) with header's weak list, so a future free of header clears
// slotPtr. slotPtr and header are both bitcast to *i8/**i8 by the caller
// before this is invoked; memory stays representation-agnostic about the
// pointee type.
func EmitWeakRegister(b *irbuild.Builder, rt *RuntimeFuncs, slotPtr, header value.Value) {
	b.Block().NewCall(rt.WeakRegister, slotPtr, header)
}

// EmitWeakUnregister removes slotPtr's weak registration from whatever
// header it currently points at.
func EmitWeakUnregister(b *irbuild.Builder, rt *RuntimeFuncs, slotPtr value.Value) {
	b.Block().NewCall(rt.WeakUnregister, slotPtr)
}
