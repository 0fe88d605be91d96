package irbuild

import (
	lltypes "github.com/llir/llvm/ir/types"

	etypes "eaglec/internal/types"
)

// LowerType maps an Eagle type to its low-level IR representation.
func LowerType(reg *etypes.Registry, t *etypes.Type) lltypes.Type {
	switch t.Kind {
	case etypes.KInt1:
		return lltypes.I1
	case etypes.KInt8, etypes.KUInt8:
		return lltypes.I8
	case etypes.KInt16, etypes.KUInt16:
		return lltypes.I16
	case etypes.KInt32, etypes.KUInt32:
		return lltypes.I32
	case etypes.KInt64, etypes.KUInt64:
		return lltypes.I64
	case etypes.KFloat:
		return lltypes.Float
	case etypes.KDouble:
		return lltypes.Double
	case etypes.KVoid:
		return lltypes.Void
	case etypes.KAny, etypes.KNil:
		return lltypes.I8
	case etypes.KCString:
		return lltypes.NewPointer(lltypes.I8)
	case etypes.KPointer:
		payload := LowerType(reg, t.Pointee)
		if t.Counted || t.Weak {
			header := CountedHeaderType(reg, payload)
			return lltypes.NewPointer(header)
		}
		return lltypes.NewPointer(payload)
	case etypes.KArray:
		elem := LowerType(reg, t.Elem)
		if t.Count == etypes.ArrayUnknownCount {
			return lltypes.NewPointer(elem)
		}
		return lltypes.NewArray(uint64(t.Count), elem)
	case etypes.KFunction:
		ret := LowerType(reg, t.Ret)
		params := make([]lltypes.Type, len(t.Params))
		for i, p := range t.Params {
			params[i] = LowerType(reg, p)
		}
		if t.Closure == etypes.ClosureClosed {
			// {code: *i8, env: *i8}
			return lltypes.NewStruct(lltypes.NewPointer(lltypes.I8), lltypes.NewPointer(lltypes.I8))
		}
		fn := lltypes.NewFunc(ret, params...)
		fn.Variadic = t.Variadic
		return lltypes.NewPointer(fn)
	case etypes.KGenerator:
		// A generator's low-level shape is the runtime's concern (outside
		// this core's scope); a generator handle is represented as a
		// plain opaque *i8 here.
		return lltypes.NewPointer(lltypes.I8)
	case etypes.KStruct:
		return structIRType(reg, t.Name)
	case etypes.KClass:
		return classIRType(reg, t.Name)
	case etypes.KInterface:
		// Represented abstractly as a 1-byte value in the type registry;
		// the concrete call-site descriptor is built by the codegen
		// layer, not carried on the type itself.
		return lltypes.I8
	case etypes.KEnum:
		return lltypes.I64
	default:
		return lltypes.I8
	}
}

func structIRType(reg *etypes.Registry, name string) lltypes.Type {
	d, ok := reg.StructDefOf(name)
	if !ok {
		return lltypes.I8
	}
	fields := make([]lltypes.Type, len(d.FieldTypes))
	for i, ft := range d.FieldTypes {
		fields[i] = LowerType(reg, ft)
	}
	return lltypes.NewStruct(fields...)
}

func classIRType(reg *etypes.Registry, name string) lltypes.Type {
	d, ok := reg.ClassDefOf(name)
	if !ok {
		return lltypes.I8
	}
	// A class receives a hidden leading member holding a dispatch-table
	// reference.
	fields := make([]lltypes.Type, 0, len(d.FieldTypes)+1)
	fields = append(fields, lltypes.NewPointer(lltypes.I8))
	for _, ft := range d.FieldTypes {
		fields = append(fields, LowerType(reg, ft))
	}
	return lltypes.NewStruct(fields...)
}

// destructorFuncType is the signature shared by every counted header's
// destructor pointer: void(*i8 payload_or_header, i1 via_header).
func destructorFuncType() *lltypes.FuncType {
	return lltypes.NewFunc(lltypes.Void, lltypes.NewPointer(lltypes.I8), lltypes.I1)
}

// CountedHeaderType returns the interned header struct for a given payload
// type: {i64 refcount, i16 weak_count, i16 flags, *i8 weak_list,
// *fn(*i8,i1) destructor, T payload}. Caching is delegated to the type
// registry, keyed by the payload's stringified IR type.
func CountedHeaderType(reg *etypes.Registry, payload lltypes.Type) *lltypes.StructType {
	cached := reg.GetCountedHeaderType(irTypeAdapter{payload}, func(p etypes.IRType) etypes.IRType {
		built := lltypes.NewStruct(
			lltypes.I64,
			lltypes.I16,
			lltypes.I16,
			lltypes.NewPointer(lltypes.I8),
			lltypes.NewPointer(destructorFuncType()),
			payload,
		)
		return irTypeAdapter{built}
	})
	return cached.(irTypeAdapter).t.(*lltypes.StructType)
}

// irTypeAdapter lets an llir/llvm types.Type satisfy the registry's narrow
// etypes.IRType interface (String() string) without the types package
// importing llir/llvm.
type irTypeAdapter struct{ t lltypes.Type }

func (a irTypeAdapter) String() string { return a.t.String() }

// HeaderPayloadIndex is the fixed element index of the payload field within
// the counted header: the payload is always element index 5.
const HeaderPayloadIndex = 5
