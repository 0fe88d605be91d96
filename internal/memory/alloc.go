package memory

import (
	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"eaglec/internal/ast"
	"eaglec/internal/irbuild"
)

// Init, when non-nil, runs against the freshly allocated payload's address
// to store an explicit initializer; when nil the payload is zero-filled.
type Init func(payloadPtr value.Value)

// NewAllocation lowers `new T`, matching ac_compile_malloc_counted /
// ac_compile_new_decl: size the header via a GEP-based sizeof (no target
// data layout is available at this layer), call libc malloc, bitcast to the
// header pointer type, zero the bookkeeping fields, select and store the
// destructor pointer, then populate the payload.
//
// destructorFn is nil for payload types that don't need a destructor
// (NeedsDestructor false): the destructor slot is stored as a null function
// pointer and no cleanup call is ever made against it.
func NewAllocation(b *irbuild.Builder, rt *RuntimeFuncs, headerType *lltypes.StructType, destructorFn value.Value, init Init) value.Value {
	size := sizeOf(b, headerType)
	raw := b.Block().NewCall(rt.Malloc, size)
	headerPtr := b.Block().NewBitCast(raw, lltypes.NewPointer(headerType))

	b.Block().NewStore(constant.NewInt(lltypes.I64, 0), FieldPtr(b, headerType, headerPtr, FieldRefcount))
	b.Block().NewStore(constant.NewInt(lltypes.I16, 0), FieldPtr(b, headerType, headerPtr, FieldWeakCount))
	b.Block().NewStore(constant.NewInt(lltypes.I16, 0), FieldPtr(b, headerType, headerPtr, FieldFlags))
	weakListPtrType := headerType.Fields[FieldWeakList]
	b.Block().NewStore(constant.NewNull(weakListPtrType.(*lltypes.PointerType)), FieldPtr(b, headerType, headerPtr, FieldWeakList))

	destructorSlot := FieldPtr(b, headerType, headerPtr, FieldDestructor)
	destructorPtrType := headerType.Fields[FieldDestructor].(*lltypes.PointerType)
	if destructorFn != nil {
		b.Block().NewStore(b.Block().NewBitCast(destructorFn, destructorPtrType), destructorSlot)
	} else {
		b.Block().NewStore(constant.NewNull(destructorPtrType), destructorSlot)
	}

	payloadPtr := PayloadPtr(b, headerType, headerPtr)
	if init != nil {
		init(payloadPtr)
	} else {
		payloadType := headerType.Fields[FieldPayload]
		b.Block().NewStore(constant.NewZeroInitializer(payloadType), payloadPtr)
	}

	return headerPtr
}

// RecordTransient records a fresh allocation's header value as the
// transient owned by the `new` expression's AST node, per
// ac_compile_new_decl's hst_put call immediately following construction.
func RecordTransient(t *Transients, n ast.Node, header value.Value) {
	t.AddTransient(n, header)
}

// sizeOf computes a struct type's byte size with the classic GEP-on-null
// trick: index one element past a null pointer of the type and convert the
// resulting address to an integer. This avoids depending on a target data
// layout, which this layer (unlike the linker / IR backend it hands off
// to) never has access to.
func sizeOf(b *irbuild.Builder, t lltypes.Type) value.Value {
	nullPtr := constant.NewNull(lltypes.NewPointer(t))
	sizePtr := b.Block().NewGetElementPtr(t, nullPtr, constant.NewInt(lltypes.I32, 1))
	return b.Block().NewPtrToInt(sizePtr, lltypes.I64)
}
