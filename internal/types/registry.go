package types

import "sort"

// StructDef is the ordered member layout of a struct type.
type StructDef struct {
	Name        string
	FieldNames  []string
	FieldTypes  []*Type
	needsDtor   *bool // memoized needs_destructor result
}

// ClassDef extends StructDef with an implemented-interface set and a
// method table. The hidden vtable slot at member index 0 is NOT stored
// here; struct_member_index shifts by +1 to account for it.
type ClassDef struct {
	Name        string
	FieldNames  []string
	FieldTypes  []*Type
	Interfaces  []string
	MethodOrder []string
	Methods     map[string]*Type // method name -> function type
	needsDtor   *bool
}

// InterfaceDef stores methods in declaration order; a method's index in
// MethodOrder is its vtable slot.
type InterfaceDef struct {
	Name        string
	MethodOrder []string
	Composed    []string // composed interface names
}

// EnumDef maps item names to 64-bit values, preserving declaration order.
type EnumDef struct {
	Name      string
	ItemOrder []string
	Items     map[string]int64
}

// IRType is the narrow interface the registry needs from the external IR
// backend to cache counted-header types without importing it directly.
type IRType interface {
	String() string
}

// reservedWords maps Eagle's reserved type-name tokens to base kinds.
var reservedWords = map[string]Kind{
	"bool":   KInt1,
	"byte":   KUInt8,
	"sbyte":  KInt8,
	"short":  KInt16,
	"ushort": KUInt16,
	"int":    KInt32,
	"uint":   KUInt32,
	"long":   KInt64,
	"ulong":  KUInt64,
	"double": KDouble,
	"void":   KVoid,
	"any":    KAny,
	"auto":   KAuto,
}

// Registry interns named types, stores their layouts and methods, and
// answers the structural queries the code generator needs. It is created
// once per compilation and torn down with Reset: process-wide shared
// state that must be reset between compilations.
type Registry struct {
	basics map[Kind]*Type // interned base-type singletons

	structs    map[string]*StructDef
	classes    map[string]*ClassDef
	interfaces map[string]*InterfaceDef
	enums      map[string]*EnumDef
	typedefs   map[string]*Type

	named map[string]*Type // interned Type wrapper per named kind

	headerCache map[string]IRType // get_counted_header_type memoization

	pool []*Type // aggregate-type allocations, disposed at Reset
}

// NewRegistry creates an empty Registry with interned base-type singletons.
func NewRegistry() *Registry {
	r := &Registry{
		basics:      make(map[Kind]*Type),
		structs:     make(map[string]*StructDef),
		classes:     make(map[string]*ClassDef),
		interfaces:  make(map[string]*InterfaceDef),
		enums:       make(map[string]*EnumDef),
		typedefs:    make(map[string]*Type),
		named:       make(map[string]*Type),
		headerCache: make(map[string]IRType),
	}
	for _, k := range []Kind{
		KNone, KAny, KAuto, KNil, KInt1, KInt8, KInt16, KInt32, KInt64,
		KUInt8, KUInt16, KUInt32, KUInt64, KFloat, KDouble, KCString, KVoid,
	} {
		r.basics[k] = &Type{Kind: k}
	}
	return r
}

// Reset clears every map and drains the pool, so the registry can be
// reused across compilations.
func (r *Registry) Reset() {
	for k := range r.structs {
		delete(r.structs, k)
	}
	for k := range r.classes {
		delete(r.classes, k)
	}
	for k := range r.interfaces {
		delete(r.interfaces, k)
	}
	for k := range r.enums {
		delete(r.enums, k)
	}
	for k := range r.typedefs {
		delete(r.typedefs, k)
	}
	for k := range r.named {
		delete(r.named, k)
	}
	for k := range r.headerCache {
		delete(r.headerCache, k)
	}
	r.pool = r.pool[:0]
}

// alloc tracks a fresh aggregate-type allocation in the memory pool.
func (r *Registry) alloc(t *Type) *Type {
	r.pool = append(r.pool, t)
	return t
}

// Basic returns the interned singleton for a base kind.
func (r *Registry) Basic(k Kind) *Type {
	if t, ok := r.basics[k]; ok {
		return t
	}
	t := &Type{Kind: k}
	r.basics[k] = t
	return t
}

// NewPointer constructs a fresh pointer type; pointer types are not
// interned by shape (two calls return distinct allocations, per
// are_same's structural-not-identity comparison).
func (r *Registry) NewPointer(to *Type, counted, weak, closed bool) *Type {
	return r.alloc(&Type{Kind: KPointer, Pointee: to, Counted: counted, Weak: weak, Closed: closed})
}

// NewArray constructs a fresh array type. count is ArrayUnknownCount for an
// unsized array.
func (r *Registry) NewArray(of *Type, count int) *Type {
	return r.alloc(&Type{Kind: KArray, Elem: of, Count: count})
}

// NewFunction constructs a fresh function type.
func (r *Registry) NewFunction(ret *Type, params []*Type, variadic bool, closure ClosureKind, generator bool) *Type {
	return r.alloc(&Type{Kind: KFunction, Ret: ret, Params: params, Variadic: variadic, Closure: closure, Generator: generator})
}

// NewGenerator constructs a fresh generator type.
func (r *Registry) NewGenerator(yields *Type) *Type {
	return r.alloc(&Type{Kind: KGenerator, Yields: yields})
}

// DefineStruct registers a struct layout and returns its interned Type.
// A second DefineStruct with the same name overwrites the layout but the
// Type instance returned by ParseTypeName stays identical (interning is by name).
func (r *Registry) DefineStruct(name string, fieldNames []string, fieldTypes []*Type) *Type {
	r.structs[name] = &StructDef{Name: name, FieldNames: fieldNames, FieldTypes: fieldTypes}
	return r.internNamed(KStruct, name)
}

// DefineClass registers a class layout, its implemented interfaces, and its
// method table.
func (r *Registry) DefineClass(name string, fieldNames []string, fieldTypes []*Type, interfaces []string) *Type {
	r.classes[name] = &ClassDef{
		Name:       name,
		FieldNames: fieldNames,
		FieldTypes: fieldTypes,
		Interfaces: interfaces,
		Methods:    make(map[string]*Type),
	}
	return r.internNamed(KClass, name)
}

// AddMethod registers a method on a previously defined class.
func (r *Registry) AddMethod(className, methodName string, fnType *Type) {
	c, ok := r.classes[className]
	if !ok {
		return
	}
	if _, exists := c.Methods[methodName]; !exists {
		c.MethodOrder = append(c.MethodOrder, methodName)
	}
	c.Methods[methodName] = fnType
}

// DefineInterface registers an interface's ordered method list.
func (r *Registry) DefineInterface(name string, methods []string, composed []string) *Type {
	r.interfaces[name] = &InterfaceDef{Name: name, MethodOrder: methods, Composed: composed}
	return r.internNamed(KInterface, name)
}

// DefineEnum registers an enum's item-to-value mapping.
func (r *Registry) DefineEnum(name string, itemOrder []string, items map[string]int64) *Type {
	r.enums[name] = &EnumDef{Name: name, ItemOrder: itemOrder, Items: items}
	return r.internNamed(KEnum, name)
}

// DefineTypedef registers name as an alias for target.
func (r *Registry) DefineTypedef(name string, target *Type) {
	r.typedefs[name] = target
}

// internNamed returns the interned Type for (kind, name), creating it on
// first request. A second request for the same name returns the identical
// *Type.
func (r *Registry) internNamed(kind Kind, name string) *Type {
	if t, ok := r.named[name]; ok {
		return t
	}
	t := &Type{Kind: kind, Name: name}
	r.named[name] = t
	return t
}

// ParseTypeName parses a reserved-word or named-type token into a Type.
func (r *Registry) ParseTypeName(text string) *Type {
	if k, ok := reservedWords[text]; ok {
		return r.Basic(k)
	}
	if target, ok := r.typedefs[text]; ok {
		return target
	}
	if _, ok := r.structs[text]; ok {
		return r.internNamed(KStruct, text)
	}
	if _, ok := r.classes[text]; ok {
		return r.internNamed(KClass, text)
	}
	if _, ok := r.interfaces[text]; ok {
		return r.internNamed(KInterface, text)
	}
	if _, ok := r.enums[text]; ok {
		return r.internNamed(KEnum, text)
	}
	return nil
}

// AreSame reports structural equality between two types.
func (r *Registry) AreSame(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KPointer:
		return a.Counted == b.Counted && a.Weak == b.Weak && r.AreSame(a.Pointee, b.Pointee)
	case KArray:
		return a.Count == b.Count && r.AreSame(a.Elem, b.Elem)
	case KFunction:
		if !r.AreSame(a.Ret, b.Ret) || len(a.Params) != len(b.Params) {
			return false
		}
		for i := range a.Params {
			if !r.AreSame(a.Params[i], b.Params[i]) {
				return false
			}
		}
		return a.Variadic == b.Variadic && a.Closure == b.Closure && a.Generator == b.Generator
	case KGenerator:
		return r.AreSame(a.Yields, b.Yields)
	case KStruct, KClass, KInterface, KEnum:
		return a.Name == b.Name
	default:
		return true
	}
}

// Promotion resolves the common type for a binary numeric operation: numeric widening, with any None
// or Void operand yielding None (a compile error downstream).
func (r *Registry) Promotion(a, b *Type) *Type {
	if a.Kind == KNone || a.Kind == KVoid || b.Kind == KNone || b.Kind == KVoid {
		return r.Basic(KNone)
	}
	ra, rb := numericRank(a.Kind), numericRank(b.Kind)
	if ra < 0 || rb < 0 {
		return r.Basic(KNone)
	}
	if ra >= rb {
		return a
	}
	return b
}

// NeedsDestructor reports whether a value of type t requires running a destructor when it goes out of scope.
func (r *Registry) NeedsDestructor(t *Type) bool {
	switch t.Kind {
	case KStruct:
		return r.structNeedsDestructor(t.Name)
	case KClass:
		return r.classNeedsDestructor(t.Name)
	case KArray:
		return r.arrayHasCounted(t.Elem)
	default:
		return false
	}
}

func (r *Registry) arrayHasCounted(elem *Type) bool {
	if elem == nil {
		return false
	}
	if elem.Kind == KPointer && (elem.Counted || elem.Weak) {
		return true
	}
	if elem.Kind == KStruct || elem.Kind == KClass {
		return r.NeedsDestructor(elem)
	}
	if elem.Kind == KArray {
		return r.arrayHasCounted(elem.Elem)
	}
	return false
}

func (r *Registry) structNeedsDestructor(name string) bool {
	d, ok := r.structs[name]
	if !ok {
		return false
	}
	if d.needsDtor != nil {
		return *d.needsDtor
	}
	result := false
	for _, ft := range d.FieldTypes {
		if fieldOwnsMemory(ft, r) {
			result = true
			break
		}
	}
	d.needsDtor = &result
	return result
}

func (r *Registry) classNeedsDestructor(name string) bool {
	d, ok := r.classes[name]
	if !ok {
		return false
	}
	if d.needsDtor != nil {
		return *d.needsDtor
	}
	result := false
	for _, ft := range d.FieldTypes {
		if fieldOwnsMemory(ft, r) {
			result = true
			break
		}
	}
	d.needsDtor = &result
	return result
}

func fieldOwnsMemory(ft *Type, r *Registry) bool {
	if ft.Kind == KPointer && (ft.Counted || ft.Weak) {
		return true
	}
	if ft.Kind == KStruct || ft.Kind == KClass {
		return r.NeedsDestructor(ft)
	}
	if ft.Kind == KArray {
		return r.arrayHasCounted(ft.Elem)
	}
	return false
}

// StructMemberIndex resolves a field name to its member index. Returns -1 if
// the member does not exist, -2 if the named type has not been laid out.
func (r *Registry) StructMemberIndex(t *Type, name string) (int, *Type) {
	switch t.Kind {
	case KStruct:
		d, ok := r.structs[t.Name]
		if !ok {
			return -2, nil
		}
		for i, fn := range d.FieldNames {
			if fn == name {
				return i, d.FieldTypes[i]
			}
		}
		return -1, nil
	case KClass:
		d, ok := r.classes[t.Name]
		if !ok {
			return -2, nil
		}
		for i, fn := range d.FieldNames {
			if fn == name {
				return i + 1, d.FieldTypes[i] // +1: hidden vtable slot at 0
			}
		}
		return -1, nil
	default:
		return -2, nil
	}
}

// InterfaceOffset resolves a method name to its vtable slot index.
func (r *Registry) InterfaceOffset(iface *Type, method string) int {
	d, ok := r.interfaces[iface.Name]
	if !ok {
		return -1
	}
	for i, m := range d.MethodOrder {
		if m == method {
			return i
		}
	}
	return -1
}

// InterfaceCount reports the number of methods an interface declares.
func (r *Registry) InterfaceCount(iface *Type) int {
	d, ok := r.interfaces[iface.Name]
	if !ok {
		return 0
	}
	return len(d.MethodOrder)
}

// ClassImplementsInterface reports whether a class satisfies an interface:
// true iff every name composed into the interface is listed in the class's
// interface set.
func (r *Registry) ClassImplementsInterface(class, iface *Type) bool {
	cd, ok := r.classes[class.Name]
	if !ok {
		return false
	}
	id, ok := r.interfaces[iface.Name]
	if !ok {
		return false
	}
	have := make(map[string]bool, len(cd.Interfaces))
	for _, n := range cd.Interfaces {
		have[n] = true
	}
	for _, n := range id.Composed {
		if !have[n] {
			return false
		}
	}
	return true
}

// LookupMethod returns a class's method type and declaration-order index
// (its vtable slot within the class's own method table), used when a
// struct-member-get resolves to a method rather than a field.
func (r *Registry) LookupMethod(class *Type, name string) (*Type, int, bool) {
	d, ok := r.classes[class.Name]
	if !ok {
		return nil, -1, false
	}
	fn, ok := d.Methods[name]
	if !ok {
		return nil, -1, false
	}
	for i, m := range d.MethodOrder {
		if m == name {
			return fn, i, true
		}
	}
	return fn, -1, true
}

// EnumValue looks up an enum item's 64-bit value.
func (r *Registry) EnumValue(enum *Type, item string) (int64, bool) {
	d, ok := r.enums[enum.Name]
	if !ok {
		return 0, false
	}
	v, ok := d.Items[item]
	return v, ok
}

// GetCountedHeaderType returns the counted-header IR type for a pointee type: it
// caches by the stringified low-level IR type of the payload so repeated
// requests for the same payload representation return the identical header
// type instead of re-declaring it. build is invoked only on a cache miss.
func (r *Registry) GetCountedHeaderType(payload IRType, build func(IRType) IRType) IRType {
	key := payload.String()
	if t, ok := r.headerCache[key]; ok {
		return t
	}
	t := build(payload)
	r.headerCache[key] = t
	return t
}

// StructDefOf exposes a struct's layout for callers outside this package
// (code generator field iteration, constructor/destructor generation).
func (r *Registry) StructDefOf(name string) (*StructDef, bool) {
	d, ok := r.structs[name]
	return d, ok
}

// ClassDefOf exposes a class's layout for the same purpose.
func (r *Registry) ClassDefOf(name string) (*ClassDef, bool) {
	d, ok := r.classes[name]
	return d, ok
}

// TypeNames lists every user-defined struct, class, interface, and enum
// name on the registry, sorted, for a driver's introspection command.
func (r *Registry) TypeNames() []string {
	names := make([]string, 0, len(r.structs)+len(r.classes)+len(r.interfaces)+len(r.enums))
	for n := range r.structs {
		names = append(names, n)
	}
	for n := range r.classes {
		names = append(names, n)
	}
	for n := range r.interfaces {
		names = append(names, n)
	}
	for n := range r.enums {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
