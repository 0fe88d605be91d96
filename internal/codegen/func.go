package codegen

import (
	"github.com/llir/llvm/ir"
	lltypes "github.com/llir/llvm/ir/types"

	"eaglec/internal/ast"
	"eaglec/internal/irbuild"
	etypes "eaglec/internal/types"
)

// funcSymbolName picks a function's emitted symbol: a method gets the
// __egl_m_<class>_<name> scheme call.go's dispatch looks up, a plain
// function or closure body keeps its declared name.
func funcSymbolName(n *ast.FuncDeclNode) string {
	if n.IsMethod {
		return methodFuncName(n.ClassName, n.Name)
	}
	return n.Name
}

// lowerFuncDecl emits one function, method, or closure body: a method
// receives its receiver as a leading bitcast *i8 parameter; a closed-over
// (non-open) function receives its environment the same way. Parameters
// are copied into entry-block allocas so the rest of the lowerer can
// treat them like any other local (addressable, scope-managed,
// ARC-tracked).
func (c *CompilerContext) lowerFuncDecl(n *ast.FuncDeclNode) error {
	name := funcSymbolName(n)
	ret := irbuild.LowerType(c.Reg, n.ReturnType)

	var irParams []*ir.Param
	leadingName := ""
	switch {
	case n.IsMethod:
		leadingName = "self"
	case n.Closure == etypes.ClosureClosed:
		leadingName = "env"
	}
	if leadingName != "" {
		irParams = append(irParams, ir.NewParam(leadingName, lltypes.NewPointer(lltypes.I8)))
	}
	for _, p := range n.Params {
		irParams = append(irParams, ir.NewParam(p.Name, irbuild.LowerType(c.Reg, p.Type)))
	}

	point := c.B.Save()
	priorReturn := c.currentReturnType
	priorDepth := c.funcScopeDepth
	priorTransients := c.Transients
	c.currentReturnType = n.ReturnType
	defer func() {
		c.currentReturnType = priorReturn
		c.funcScopeDepth = priorDepth
		c.Transients = priorTransients
	}()

	_, entry := c.B.StartFunction(name, ret, irParams...)
	c.B.SetBlock(entry)
	c.EnterFunction()

	offset := 0
	if leadingName != "" {
		offset = 1
		c.bindLeadingParam(leadingName, n, irParams[0])
	}
	for i, p := range n.Params {
		c.bindParam(p, irParams[offset+i])
	}

	bodyErr := c.lowerStatements(n.Body)
	if bodyErr == nil && !c.terminated() {
		c.Scopes.RunCallbacksThrough(c.FuncScopeDepth())
		if n.ReturnType.Kind == etypes.KVoid {
			c.B.Block().NewRet(nil)
		}
	}
	c.ExitFunction()
	c.B.Restore(point)
	return bodyErr
}

// bindLeadingParam gives a method's receiver (or a closure's environment)
// a named scope entry as a *class (or raw *i8, for an environment record)
// local, so member.go's receiverSlot can resolve a receiver by name like
// any other identifier. An environment is bound as `env` only; nothing in
// this package reads captured fields out of it.
func (c *CompilerContext) bindLeadingParam(name string, n *ast.FuncDeclNode, param *ir.Param) {
	var t *etypes.Type
	if n.IsMethod {
		t = c.Reg.NewPointer(c.Reg.ParseTypeName(n.ClassName), false, false, false)
	} else {
		t = c.Reg.NewPointer(c.Reg.Basic(etypes.KAny), false, false, false)
	}
	slot := c.B.EntryAlloca(name, param.Type())
	c.B.Block().NewStore(param, slot)
	c.Scopes.Put(name, slot, t)
}

// bindParam copies an incoming parameter value into an addressable local,
// the same entry-block-alloca discipline every other local declaration
// uses, so a parameter can be reassigned or have its address taken.
func (c *CompilerContext) bindParam(p ast.Param, param *ir.Param) {
	slot := c.allocLocal(p.Name, p.Type)
	c.B.Block().NewStore(param, slot)
	c.registerVarDeclCallbacks(p.Name, p.Type, slot)
}

// lowerStructDecl lowers a struct or class declaration's method bodies.
// The type itself (layout, interfaces, vtable slots) is registered on
// etypes.Registry by internal/compiler's registerStructDecl pass, which
// runs before any body is lowered; by the time the dispatcher reaches a StructDeclNode here, only
// the method bodies remain to be emitted.
func (c *CompilerContext) lowerStructDecl(n *ast.StructDeclNode) error {
	for _, m := range n.Methods {
		if err := c.lowerFuncDecl(m); err != nil {
			return err
		}
	}
	return nil
}
