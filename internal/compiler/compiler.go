// Package compiler orchestrates the Eagle core's components — type
// registry, scope manager, AST dispatcher, memory-management inserter —
// into the single CompileProgram entry point a driver calls with an
// already-parsed AST.
package compiler

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"

	"eaglec/internal/ast"
	"eaglec/internal/codegen"
	"eaglec/internal/irbuild"
	etypes "eaglec/internal/types"
)

// Compiler holds the state one compilation needs: the IR builder and the
// code generator's shared context. A Compiler is built once per
// compilation unit and torn down with Reset.
type Compiler struct {
	Builder *irbuild.Builder
	Ctx     *codegen.CompilerContext
	reg     *etypes.Registry
}

// New creates a Compiler around a fresh module and an empty type registry.
func New() *Compiler {
	reg := etypes.NewRegistry()
	b := irbuild.NewBuilder()
	return &Compiler{
		Builder: b,
		Ctx:     codegen.NewCompilerContext(b, reg),
		reg:     reg,
	}
}

// Reset tears down a Compiler's type registry so the same process can
// compile a second, unrelated program (Registry.Reset() between
// compilations).
func (c *Compiler) Reset() {
	c.reg.Reset()
}

// Reg exposes the type registry a compilation populated, for a caller that
// needs to inspect it after Compile returns (a driver's introspection
// command; a test asserting on registered layouts).
func (c *Compiler) Reg() *etypes.Registry { return c.reg }

// CompileProgram lowers a complete top-level AST to an LLVM module with a
// fresh Compiler, discarding it afterward. Equivalent to New().Compile(top)
// for a caller with no need to inspect the populated registry afterward.
func CompileProgram(top []ast.Node) (*ir.Module, error) {
	return New().Compile(top)
}

// Compile lowers a complete top-level AST to an LLVM module: register
// every struct/class layout first (method bodies reference sibling
// types), constant-fold every global variable's initializer next, then
// lower every function and method body last.
func (c *Compiler) Compile(top []ast.Node) (*ir.Module, error) {
	for _, n := range top {
		if sd, ok := n.(*ast.StructDeclNode); ok {
			c.registerStructDecl(sd)
		}
	}

	for _, n := range top {
		if vd, ok := n.(*ast.VarDeclNode); ok {
			if err := c.lowerGlobal(vd); err != nil {
				return nil, err
			}
		}
	}

	for _, n := range top {
		switch v := n.(type) {
		case *ast.FuncDeclNode:
			if err := c.Ctx.LowerStmt(v); err != nil {
				return nil, err
			}
		case *ast.StructDeclNode:
			if err := c.Ctx.LowerStmt(v); err != nil {
				return nil, err
			}
		}
	}

	return c.Builder.Module, nil
}

// registerStructDecl lays a struct or class type out on the registry from
// its AST declaration, so member access, allocation, and triad generation
// can resolve it by name during codegen. Enum, interface, and typedef
// declarations carry no AST node of their own: the frontend that builds
// this tree registers those directly against the same Registry before
// handing the program to CompileProgram.
func (c *Compiler) registerStructDecl(n *ast.StructDeclNode) {
	names := make([]string, len(n.Fields))
	types := make([]*etypes.Type, len(n.Fields))
	for i, f := range n.Fields {
		names[i] = f.Name
		types[i] = f.Type
	}

	if !n.IsClass {
		c.reg.DefineStruct(n.Name, names, types)
		return
	}

	c.reg.DefineClass(n.Name, names, types, n.Interfaces)
	for _, m := range n.Methods {
		paramTypes := make([]*etypes.Type, len(m.Params))
		for i, p := range m.Params {
			paramTypes[i] = p.Type
		}
		fnType := c.reg.NewFunction(m.ReturnType, paramTypes, false, etypes.ClosureNone, false)
		c.reg.AddMethod(n.Name, m.Name, fnType)
		m.IsMethod = true
		m.ClassName = n.Name
	}
}

// lowerGlobal constant-folds a top-level variable's initializer and
// defines it as an LLVM global: global initializers run through the
// constant lowerer, never the instruction-emitting one.
func (c *Compiler) lowerGlobal(n *ast.VarDeclNode) error {
	var init constant.Constant
	if n.Init == nil {
		llt := irbuild.LowerType(c.reg, n.DeclaredType)
		init = constant.NewZeroInitializer(llt)
	} else {
		val, err := c.Ctx.LowerConstExpr(n.Init)
		if err != nil {
			return err
		}
		init = val
	}
	c.Builder.Module.NewGlobalDef(n.Name, init)
	return nil
}
