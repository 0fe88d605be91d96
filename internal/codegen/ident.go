package codegen

import (
	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"eaglec/internal/ast"
	"eaglec/internal/compileerr"
	"eaglec/internal/irbuild"
	"eaglec/internal/memory"
	etypes "eaglec/internal/types"
)

// lowerIdent resolves an identifier via the scope stack: a function-typed
// entry returns the callable value directly (no load); array and
// struct/class locals return the slot address (ac_compile_identifier's
// non-load rule, carried exactly); everything else loads the slot.
//
// Closed-over variables are not special-cased: an identifier resolves only
// through its scope entry, and no capture-record (element 5) dereference
// is emitted for it here or in a closure's entry block.
func (c *CompilerContext) lowerIdent(n *ast.IdentNode) (value.Value, error) {
	e := c.Scopes.Get(n.Name)
	if e == nil {
		return nil, compileerr.New(compileerr.UndeclaredIdentifier, n.Line(), "undeclared identifier %q", n.Name)
	}
	n.SetResultType(e.Type)

	if e.Type.Kind == etypes.KFunction {
		return e.Slot.(value.Value), nil
	}
	slot := e.Slot.(value.Value)
	if e.Type.Kind == etypes.KArray || e.Type.Kind == etypes.KStruct || e.Type.Kind == etypes.KClass {
		return slot, nil
	}
	loaded := irbuild.LowerType(c.Reg, e.Type)
	return c.B.Block().NewLoad(loaded, slot), nil
}

// slotOf returns the addressable storage location of an l-value expression
// (identifier, index, or member), used by `&x` and by the assignment
// lowerer. It does not load.
func (c *CompilerContext) slotOf(n ast.Node) (value.Value, *etypes.Type, error) {
	switch v := n.(type) {
	case *ast.IdentNode:
		e := c.Scopes.Get(v.Name)
		if e == nil {
			return nil, nil, compileerr.New(compileerr.UndeclaredIdentifier, v.Line(), "undeclared identifier %q", v.Name)
		}
		v.SetResultType(e.Type)
		return e.Slot.(value.Value), e.Type, nil

	case *ast.BinaryNode:
		if v.Op == ast.OpIndex {
			return c.indexSlot(v)
		}
		return nil, nil, compileerr.New(compileerr.NonAssignableLHS, v.Line(), "expression is not assignable")

	case *ast.MemberNode:
		return c.memberSlot(v)

	default:
		return nil, nil, compileerr.New(compileerr.NonAssignableLHS, n.Line(), "expression is not assignable")
	}
}

// lowerVarDecl allocates a local in the function entry block. An `auto`
// declaration defers allocation until its initializer fixes a type; at
// that point the scope entry (already `put` with a nil slot at
// declaration point, per the scope manager's "duplicate only over a
// null slot" rule) is rewritten in place.
func (c *CompilerContext) lowerVarDecl(n *ast.VarDeclNode) error {
	if n.DeclaredType != nil && n.DeclaredType.Kind != etypes.KAuto {
		return c.declareAndInit(n, n.DeclaredType)
	}

	// auto: defer allocation. Put a placeholder entry now so a later
	// identifier reference inside the same scope resolves, then rewrite it
	// once the initializer's type is known.
	c.Scopes.Put(n.Name, nil, nil)
	if n.Init == nil {
		return compileerr.New(compileerr.TypeMismatch, n.Line(), "auto declaration %q requires an initializer", n.Name)
	}
	rhs, err := c.LowerExpr(n.Init)
	if err != nil {
		return err
	}
	resolved := n.Init.ResultType()
	return c.finishVarDecl(n, resolved, rhs)
}

func (c *CompilerContext) declareAndInit(n *ast.VarDeclNode, declared *etypes.Type) error {
	slot := c.allocLocal(n.Name, declared)
	c.registerVarDeclCallbacks(n.Name, declared, slot)

	if n.Init == nil {
		c.zeroInitSlot(declared, slot)
		return nil
	}
	rhs, err := c.LowerExpr(n.Init)
	if err != nil {
		return err
	}
	return c.storeInitialValue(n, declared, slot, rhs)
}

// finishVarDecl completes an auto declaration: allocates storage for the
// now-known type, rewrites the scope entry, runs the same registration as
// a normal declaration, and stores the initializer's already-computed
// value.
func (c *CompilerContext) finishVarDecl(n *ast.VarDeclNode, resolved *etypes.Type, rhs value.Value) error {
	if resolved == nil || resolved.Kind == etypes.KNone || resolved.Kind == etypes.KVoid {
		return compileerr.New(compileerr.TypeMismatch, n.Line(), "cannot infer a type for %q", n.Name)
	}
	slot := c.allocLocal(n.Name, resolved) // its Put fills in the nil-slot entry
	c.registerVarDeclCallbacks(n.Name, resolved, slot)
	return c.storeInitialValue(n, resolved, slot, rhs)
}

func (c *CompilerContext) allocLocal(name string, t *etypes.Type) value.Value {
	llt := localStorageType(c.Reg, t)
	alloca := c.B.EntryAlloca(name, llt)
	c.Scopes.Put(name, value.Value(alloca), t)
	return alloca
}

// localStorageType is irbuild.LowerType with one override: an
// interface-typed local is allocated as the two-word vtable/data
// descriptor call.go's dispatch expects, not the abstract one-byte
// placeholder LowerType uses for an interface value appearing inside
// another aggregate's layout.
func localStorageType(reg *etypes.Registry, t *etypes.Type) lltypes.Type {
	if t.Kind == etypes.KInterface {
		return interfaceDescriptorType()
	}
	return irbuild.LowerType(reg, t)
}

// zeroInitSlot initializes an uninitialized counted/weak/struct local:
// counted and weak locals are nulled; structs with destructors are
// constructed via their generated initializer.
func (c *CompilerContext) zeroInitSlot(t *etypes.Type, slot value.Value) {
	switch {
	case t.Kind == etypes.KPointer && (t.Counted || t.Weak):
		llt := irbuild.LowerType(c.Reg, t)
		c.B.Block().NewStore(constant.NewNull(llt.(*lltypes.PointerType)), slot)

	case (t.Kind == etypes.KStruct || t.Kind == etypes.KClass) && c.Reg.NeedsDestructor(t):
		if triad, ok := c.Triads.Get(t.Name); ok {
			c.B.Block().NewCall(triad.Init, slot)
		}

	case t.Kind == etypes.KArray && c.arrayOwnsMemory(t):
		c.fillArrayNil(t, slot)
	}
}

func (c *CompilerContext) arrayOwnsMemory(t *etypes.Type) bool {
	return c.Reg.NeedsDestructor(t)
}

func (c *CompilerContext) fillArrayNil(t *etypes.Type, slot value.Value) {
	if t.Count == etypes.ArrayUnknownCount {
		return
	}
	i8ptr := c.B.Block().NewBitCast(slot, lltypes.NewPointer(lltypes.I8))
	c.B.Block().NewCall(c.RT.ArrayFillNil, i8ptr, constant.NewInt(lltypes.I64, int64(t.Count)))
}

// registerVarDeclCallbacks attaches the scope-exit cleanup a local's type
// requires: counted/weak locals get a decrement/unregister callback;
// destructor-needing structs get a destructor callback; arrays owning
// counted elements get a whole-array decrement callback.
func (c *CompilerContext) registerVarDeclCallbacks(name string, t *etypes.Type, slot value.Value) {
	switch {
	case t.Kind == etypes.KPointer && t.Counted:
		c.Scopes.AddCallback(name, func(ctx any) {
			cc := ctx.(*CompilerContext)
			llt := irbuild.LowerType(cc.Reg, t)
			v := cc.B.Block().NewLoad(llt, slot)
			headerType := llt.(*lltypes.PointerType).ElemType.(*lltypes.StructType)
			memory.EmitDecr(cc.B, cc.RT, memory.RefcountPtr(cc.B, headerType, v))
		}, c)

	case t.Kind == etypes.KPointer && t.Weak:
		c.Scopes.AddCallback(name, func(ctx any) {
			cc := ctx.(*CompilerContext)
			i8ptrptr := lltypes.NewPointer(lltypes.NewPointer(lltypes.I8))
			memory.EmitWeakUnregister(cc.B, cc.RT, cc.B.Block().NewBitCast(slot, i8ptrptr))
		}, c)

	case (t.Kind == etypes.KStruct || t.Kind == etypes.KClass) && c.Reg.NeedsDestructor(t):
		c.Scopes.AddCallback(name, func(ctx any) {
			cc := ctx.(*CompilerContext)
			if triad, ok := cc.Triads.Get(t.Name); ok {
				i8ptr := cc.B.Block().NewBitCast(slot, lltypes.NewPointer(lltypes.I8))
				cc.B.Block().NewCall(triad.Destroy, i8ptr, constant.NewInt(lltypes.I1, 0))
			}
		}, c)

	case t.Kind == etypes.KArray && c.arrayOwnsMemory(t) && t.Count != etypes.ArrayUnknownCount:
		c.Scopes.AddCallback(name, func(ctx any) {
			cc := ctx.(*CompilerContext)
			llt := irbuild.LowerType(cc.Reg, t)
			i8ptrptr := lltypes.NewPointer(lltypes.NewPointer(lltypes.I8))
			elemPtr := cc.B.Block().NewBitCast(slot, i8ptrptr)
			_ = llt
			cc.B.Block().NewCall(cc.RT.ArrayDecrPtrs, elemPtr, constant.NewInt(lltypes.I64, int64(t.Count)))
		}, c)
	}
}

func (c *CompilerContext) storeInitialValue(n *ast.VarDeclNode, t *etypes.Type, slot, rhs value.Value) error {
	switch {
	case t.Kind == etypes.KPointer && t.Counted:
		_, consumed := c.consumeIfTransient(n.Init, rhs)
		llt := irbuild.LowerType(c.Reg, t)
		headerType := llt.(*lltypes.PointerType).ElemType.(*lltypes.StructType)
		if !consumed {
			memory.EmitIncr(c.B, c.RT, memory.RefcountPtr(c.B, headerType, rhs))
		}
		c.B.Block().NewStore(rhs, slot)

	case t.Kind == etypes.KPointer && t.Weak:
		memory.AssignWeak(c.B, c.RT, slot, rhs)

	case (t.Kind == etypes.KStruct || t.Kind == etypes.KClass) && c.Reg.NeedsDestructor(t):
		_, consumed := c.consumeIfTransient(n.Init, rhs)
		if triad, ok := c.Triads.Get(t.Name); ok && !consumed {
			c.B.Block().NewCall(triad.Copy, slot, rhs)
		} else {
			c.B.Block().NewStore(c.B.Block().NewLoad(irbuild.LowerType(c.Reg, t), rhs), slot)
		}

	case t.Kind == etypes.KInterface && n.Init.ResultType().Kind == etypes.KClass:
		c.storeInterfaceDescriptor(slot, irbuild.LowerType(c.Reg, n.Init.ResultType()), rhs)

	default:
		c.B.Block().NewStore(rhs, slot)
	}
	return nil
}

// consumeIfTransient removes rhsNode's transient/loaded-transient entry
// if it produced one, signaling the caller to skip the balancing
// increment the assignment policy would otherwise apply.
func (c *CompilerContext) consumeIfTransient(rhsNode ast.Node, rhs value.Value) (value.Value, bool) {
	if c.Transients == nil {
		return rhs, false
	}
	if _, ok := c.Transients.ConsumeTransient(rhsNode); ok {
		return rhs, true
	}
	if _, ok := c.Transients.ConsumeLoadedTransient(rhsNode); ok {
		return rhs, true
	}
	return rhs, false
}
