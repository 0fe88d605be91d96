package memory

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"eaglec/internal/irbuild"
	etypes "eaglec/internal/types"
)

// Triad names the three generated functions a destructor-needing struct
// or class gets: __egl_i_<Name> (initializer), __egl_c_<Name>
// (copy-constructor), __egl_x_<Name> (destructor).
type Triad struct {
	Init    *ir.Func // void(*T)
	Copy    *ir.Func // void(*T dst, *T src)
	Destroy *ir.Func // void(*i8, i1 via_header)
}

// field bundles what the triad generators need to know about one declared
// field: its name (for instruction labeling only), its Eagle type, and its
// position in irType's field list (fieldOffset applied by the caller for a
// class's hidden vtable slot).
type field struct {
	name  string
	typ   *etypes.Type
	index int
}

// TriadRegistry tracks the generated struct codegen triads by type name, so
// a field whose type itself needs a destructor can dispatch to its own
// already-generated (or not-yet-generated) Init/Copy/Destroy rather than
// bit-copying or leaking it. Kept separate from etypes.Registry so the type
// registry never needs to know about the concrete IR backend's *ir.Func.
type TriadRegistry struct {
	triads map[string]*Triad
}

// NewTriadRegistry creates an empty registry.
func NewTriadRegistry() *TriadRegistry {
	return &TriadRegistry{triads: make(map[string]*Triad)}
}

// Get looks up a previously generated triad by type name.
func (tr *TriadRegistry) Get(name string) (*Triad, bool) {
	t, ok := tr.triads[name]
	return t, ok
}

// Put registers a generated triad, keyed by type name.
func (tr *TriadRegistry) Put(name string, t *Triad) {
	tr.triads[name] = t
}

// GenerateTriad builds __egl_i_/__egl_c_/__egl_x_<name> for a struct or
// class whose NeedsDestructor is true, and registers the result on tr so
// later-generated types whose fields embed this one can call into it.
// fieldOffset is 0 for a struct and 1 for a class (StructMemberIndex's
// vtable shift). Types must be generated in dependency order (a field's
// struct/class type before the type that embeds it) since generateInit and
// generateCopy look up nested triads from tr as they run.
func GenerateTriad(b *irbuild.Builder, reg *etypes.Registry, rt *RuntimeFuncs, tr *TriadRegistry, name string, irType *lltypes.StructType, fieldNames []string, fieldTypes []*etypes.Type, fieldOffset int) *Triad {
	fields := make([]field, len(fieldNames))
	for i := range fieldNames {
		fields[i] = field{name: fieldNames[i], typ: fieldTypes[i], index: i + fieldOffset}
	}
	triad := &Triad{
		Init:    generateInit(b, reg, tr, name, irType, fields),
		Copy:    generateCopy(b, reg, rt, tr, name, irType, fields),
		Destroy: generateDestroy(b, reg, rt, tr, name, irType, fields),
	}
	tr.Put(name, triad)
	return triad
}

func structFieldPtr(b *irbuild.Builder, irType *lltypes.StructType, structPtr value.Value, idx int) value.Value {
	return b.Block().NewGetElementPtr(irType, structPtr,
		constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, int64(idx)))
}

// generateInit emits __egl_i_<name>: zero the whole struct, then for every
// field that is itself a destructor-needing struct/class, run its own
// initializer over the embedded slot — the same "construct the payload in
// declaration order" discipline ac_call_constructor follows for nested
// aggregates.
func generateInit(b *irbuild.Builder, reg *etypes.Registry, tr *TriadRegistry, name string, irType *lltypes.StructType, fields []field) *ir.Func {
	p := b.Save()
	defer b.Restore(p)

	self := ir.NewParam("self", lltypes.NewPointer(irType))
	fn, entry := b.StartFunction("__egl_i_"+name, lltypes.Void, self)
	b.SetBlock(entry)

	b.Block().NewStore(constant.NewZeroInitializer(irType), self)

	for _, f := range fields {
		if f.typ.Kind == etypes.KStruct || f.typ.Kind == etypes.KClass {
			if !reg.NeedsDestructor(f.typ) {
				continue
			}
			nested, ok := tr.Get(f.typ.Name)
			if !ok {
				continue
			}
			fp := structFieldPtr(b, irType, self, f.index)
			b.Block().NewCall(nested.Init, fp)
		}
	}
	b.Block().NewRet(nil)
	return fn
}

// generateCopy emits __egl_c_<name>(dst, src): field-by-field copy, with
// counted pointer fields incremented and nested destructor-needing fields
// copy-constructed rather than bit-copied.
func generateCopy(b *irbuild.Builder, reg *etypes.Registry, rt *RuntimeFuncs, tr *TriadRegistry, name string, irType *lltypes.StructType, fields []field) *ir.Func {
	p := b.Save()
	defer b.Restore(p)

	dst := ir.NewParam("dst", lltypes.NewPointer(irType))
	src := ir.NewParam("src", lltypes.NewPointer(irType))
	fn, entry := b.StartFunction("__egl_c_"+name, lltypes.Void, dst, src)
	b.SetBlock(entry)

	for _, f := range fields {
		dstPtr := structFieldPtr(b, irType, dst, f.index)
		srcPtr := structFieldPtr(b, irType, src, f.index)

		switch {
		case f.typ.Kind == etypes.KPointer && (f.typ.Counted || f.typ.Weak):
			payload := irbuild.LowerType(reg, f.typ.Pointee)
			headerType := irbuild.CountedHeaderType(reg, payload)
			v := b.Block().NewLoad(lltypes.NewPointer(headerType), srcPtr)
			b.Block().NewStore(v, dstPtr)
			if f.typ.Counted {
				EmitIncr(b, rt, RefcountPtr(b, headerType, v))
			} else {
				EmitWeakRegister(b, rt, b.Block().NewBitCast(dstPtr, lltypes.NewPointer(lltypes.NewPointer(lltypes.I8))), b.Block().NewBitCast(v, lltypes.NewPointer(lltypes.I8)))
			}

		case (f.typ.Kind == etypes.KStruct || f.typ.Kind == etypes.KClass) && reg.NeedsDestructor(f.typ):
			nested, ok := tr.Get(f.typ.Name)
			if ok {
				b.Block().NewCall(nested.Copy, dstPtr, srcPtr)
			} else {
				ft := irbuild.LowerType(reg, f.typ)
				b.Block().NewStore(b.Block().NewLoad(ft, srcPtr), dstPtr)
			}

		case f.typ.Kind == etypes.KArray && f.typ.Count != etypes.ArrayUnknownCount && arrayElemIsCounted(f.typ.Elem):
			copyCountedArray(b, reg, rt, f.typ, dstPtr, srcPtr)

		default:
			ft := irbuild.LowerType(reg, f.typ)
			b.Block().NewStore(b.Block().NewLoad(ft, srcPtr), dstPtr)
		}
	}
	b.Block().NewRet(nil)
	return fn
}

// generateDestroy emits __egl_x_<name>(ptr, viaHeader): when viaHeader is
// true, ptr addresses a counted header and the struct lives at its
// payload field; when false, ptr IS the raw struct address (an embedded
// field or stack value going out of scope). Fields are released in
// reverse declaration order.
func generateDestroy(b *irbuild.Builder, reg *etypes.Registry, rt *RuntimeFuncs, tr *TriadRegistry, name string, irType *lltypes.StructType, fields []field) *ir.Func {
	p := b.Save()
	defer b.Restore(p)

	raw := ir.NewParam("raw", lltypes.NewPointer(lltypes.I8))
	viaHeader := ir.NewParam("via_header", lltypes.I1)
	fn, entry := b.StartFunction("__egl_x_"+name, lltypes.Void, raw, viaHeader)
	b.SetBlock(entry)

	headerType := CountedHeaderTypeOf(reg, irType)
	headerBlock := fn.NewBlock("via_header")
	rawBlock := fn.NewBlock("via_raw")
	mergeBlock := fn.NewBlock("merge")

	entry.NewCondBr(viaHeader, headerBlock, rawBlock)

	b.SetBlock(headerBlock)
	headerPtr := headerBlock.NewBitCast(raw, lltypes.NewPointer(headerType))
	fromHeader := PayloadPtr(b, headerType, headerPtr)
	headerBlock.NewBr(mergeBlock)

	b.SetBlock(rawBlock)
	fromRaw := rawBlock.NewBitCast(raw, lltypes.NewPointer(irType))
	rawBlock.NewBr(mergeBlock)

	b.SetBlock(mergeBlock)
	structPtr := mergeBlock.NewPhi(ir.NewIncoming(fromHeader, headerBlock), ir.NewIncoming(fromRaw, rawBlock))

	for i := len(fields) - 1; i >= 0; i-- {
		f := fields[i]
		fp := structFieldPtr(b, irType, structPtr, f.index)

		switch {
		case f.typ.Kind == etypes.KPointer && f.typ.Counted:
			payload := irbuild.LowerType(reg, f.typ.Pointee)
			fieldHeaderType := irbuild.CountedHeaderType(reg, payload)
			v := b.Block().NewLoad(lltypes.NewPointer(fieldHeaderType), fp)
			EmitDecr(b, rt, RefcountPtr(b, fieldHeaderType, v))

		case f.typ.Kind == etypes.KPointer && f.typ.Weak:
			EmitWeakUnregister(b, rt, b.Block().NewBitCast(fp, lltypes.NewPointer(lltypes.NewPointer(lltypes.I8))))

		case (f.typ.Kind == etypes.KStruct || f.typ.Kind == etypes.KClass) && reg.NeedsDestructor(f.typ):
			nested, ok := tr.Get(f.typ.Name)
			if ok {
				b.Block().NewCall(nested.Destroy, b.Block().NewBitCast(fp, lltypes.NewPointer(lltypes.I8)), constant.NewInt(lltypes.I1, 0))
			}

		case f.typ.Kind == etypes.KArray && arrayElemIsCounted(f.typ.Elem):
			count := int64(f.typ.Count)
			elemPtr := b.Block().NewBitCast(fp, lltypes.NewPointer(lltypes.NewPointer(lltypes.NewPointer(lltypes.I8))))
			b.Block().NewCall(rt.ArrayDecrPtrs, elemPtr, constant.NewInt(lltypes.I64, count))
		}
	}
	b.Block().NewRet(nil)
	return fn
}

func arrayElemIsCounted(elem *etypes.Type) bool {
	return elem != nil && elem.Kind == etypes.KPointer && (elem.Counted || elem.Weak)
}

// copyCountedArray increments every element of a fixed-size array of
// counted pointers while copying it, since there is no bulk
// __egl_array_incr_ptrs runtime symbol to call out to (unlike the decr
// side, which is named explicitly in the runtime ABI).
func copyCountedArray(b *irbuild.Builder, reg *etypes.Registry, rt *RuntimeFuncs, arr *etypes.Type, dstPtr, srcPtr value.Value) {
	arrType := irbuild.LowerType(reg, arr)
	b.Block().NewStore(b.Block().NewLoad(arrType, srcPtr), dstPtr)

	payload := irbuild.LowerType(reg, arr.Elem.Pointee)
	headerType := irbuild.CountedHeaderType(reg, payload)
	headerPtrType := lltypes.NewPointer(headerType)

	fn := b.CurrentFunc()
	loop := fn.NewBlock(fmt.Sprintf("arraycopy.loop.%d", len(fn.Blocks)))
	done := fn.NewBlock(fmt.Sprintf("arraycopy.done.%d", len(fn.Blocks)))

	idxSlot := b.EntryAlloca(fmt.Sprintf("arraycopy.idx.%d", len(fn.Blocks)), lltypes.I64)
	b.Block().NewStore(constant.NewInt(lltypes.I64, 0), idxSlot)
	b.Block().NewBr(loop)

	b.SetBlock(loop)
	idx := loop.NewLoad(lltypes.I64, idxSlot)
	cond := loop.NewICmp(enum.IPredSLT, idx, constant.NewInt(lltypes.I64, int64(arr.Count)))
	body := fn.NewBlock(fmt.Sprintf("arraycopy.body.%d", len(fn.Blocks)))
	loop.NewCondBr(cond, body, done)

	b.SetBlock(body)
	elemPtr := body.NewGetElementPtr(arrType, dstPtr, constant.NewInt(lltypes.I32, 0), idx)
	v := body.NewLoad(headerPtrType, elemPtr)
	EmitIncr(b, rt, RefcountPtr(b, headerType, v))
	next := body.NewAdd(idx, constant.NewInt(lltypes.I64, 1))
	body.NewStore(next, idxSlot)
	body.NewBr(loop)

	b.SetBlock(done)
}

// CountedHeaderTypeOf reconstructs the counted header type that would wrap
// irType as a payload, used by generateDestroy to interpret its
// via-header argument without re-deriving it from the Eagle type.
func CountedHeaderTypeOf(reg *etypes.Registry, irType lltypes.Type) *lltypes.StructType {
	return irbuild.CountedHeaderType(reg, irType)
}
