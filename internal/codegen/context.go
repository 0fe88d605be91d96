// Package codegen implements the AST Dispatcher and Expression Lowerer:
// the walk that turns an eaglec/internal/ast tree into IR values via
// irbuild, annotates every node with its resultant type, and threads the
// ARC discipline of internal/memory through stores, returns, and scope
// exits.
package codegen

import (
	"github.com/llir/llvm/ir"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"eaglec/internal/compileerr"
	"eaglec/internal/irbuild"
	"eaglec/internal/memory"
	"eaglec/internal/scope"
	etypes "eaglec/internal/types"
)

// loopFrame records the blocks break/continue need to target and the scope
// depth a loop body's exit must run callbacks through. continueTarget is
// the loop's update block (continue re-runs the update step, then the
// test), not the test block itself.
type loopFrame struct {
	continueTarget, mergeBlock *ir.Block
	bodyScopeDepth             int
}

// CompilerContext bundles the process-wide shared state (type registry,
// scope stack, IR builder position, module) plus the per-statement
// transient tables, explicitly rather than as package globals. One
// CompilerContext is created per compilation and discarded; Reset tears
// down the pieces that need it for reuse.
type CompilerContext struct {
	Reg    *etypes.Registry
	Scopes *scope.Stack
	B      *irbuild.Builder
	RT     *memory.RuntimeFuncs
	Triads *memory.TriadRegistry

	// Transients is the current statement's pair of keyed tables;
	// BeginStatement replaces it and EndStatement flushes it. nil while lowering a global initializer's
	// constant expression, which never touches the ARC machinery.
	Transients *memory.Transients

	// funcScopeDepth is the scope.Stack depth at the current function's
	// entry, the target return's scope-exit callback sweep runs through.
	funcScopeDepth int

	loops []loopFrame

	// currentReturnType is the declared return type of the function
	// currently being lowered, threaded to lowerReturn by LowerStmt. Saved
	// and restored around a nested lowerFuncDecl call (a closure literal
	// defined inside another function's body).
	currentReturnType *etypes.Type

	// constMode disables reference-counting injection and allocation: a
	// constant initializer never touches the reference-counting machinery.
	// Set for the duration of a global initializer's lowering.
	constMode bool
}

// NewCompilerContext creates a context around a fresh module: declares the
// runtime ABI, opens the outermost (global) scope, and prepares an empty
// triad registry.
func NewCompilerContext(b *irbuild.Builder, reg *etypes.Registry) *CompilerContext {
	return &CompilerContext{
		Reg:    reg,
		Scopes: scope.NewStack(),
		B:      b,
		RT:     memory.DeclareRuntime(b),
		Triads: memory.NewTriadRegistry(),
	}
}

// EnterFunction pushes a fresh scope for a function body and records its
// depth as the target of a `return`'s callback sweep.
func (c *CompilerContext) EnterFunction() {
	c.Scopes.Push()
	c.funcScopeDepth = c.Scopes.Depth()
}

// ExitFunction pops the function-body scope. Callers must have already run
// callbacks through funcScopeDepth (via a `return` or natural fall-off).
func (c *CompilerContext) ExitFunction() {
	c.Scopes.Pop()
}

// FuncScopeDepth is the scope depth `return`'s callback sweep targets.
func (c *CompilerContext) FuncScopeDepth() int { return c.funcScopeDepth }

// BeginStatement opens a fresh pair of transient tables for the statement
// about to be lowered.
func (c *CompilerContext) BeginStatement() {
	c.Transients = memory.NewTransients()
}

// EndStatement flushes the current statement's transient tables: one
// __egl_check_ptr per remaining transient, one __egl_decr_ptr per
// remaining loaded-transient. A no-op in constMode since constant
// initializers never populate the tables.
func (c *CompilerContext) EndStatement() {
	if c.constMode || c.Transients == nil {
		return
	}
	c.Transients.Flush(
		func(v value.Value) {
			memory.EmitCheckPtr(c.B, c.RT, memory.RefcountPtr(c.B, headerTypeOf(v), v))
		},
		func(v value.Value) {
			memory.EmitDecr(c.B, c.RT, memory.RefcountPtr(c.B, headerTypeOf(v), v))
		},
	)
}

// headerTypeOf recovers a counted header's struct type from a header
// pointer value's own IR type, so the transient tables can store bare
// header values without separately tracking each one's header type.
func headerTypeOf(v value.Value) *lltypes.StructType {
	return v.Type().(*lltypes.PointerType).ElemType.(*lltypes.StructType)
}

// PushLoop records a loop's continue-target/merge blocks and the scope
// depth its body opens at, so a nested break/continue can find them.
func (c *CompilerContext) PushLoop(continueTarget, merge *ir.Block, bodyScopeDepth int) {
	c.loops = append(c.loops, loopFrame{continueTarget: continueTarget, mergeBlock: merge, bodyScopeDepth: bodyScopeDepth})
}

// PopLoop discards the innermost loop frame.
func (c *CompilerContext) PopLoop() {
	c.loops = c.loops[:len(c.loops)-1]
}

// currentLoop returns the innermost loop frame, or an error if break/
// continue appears outside any loop.
func (c *CompilerContext) currentLoop(line int) (*loopFrame, error) {
	if len(c.loops) == 0 {
		return nil, compileerr.New(compileerr.InternalCompilerError, line, "break/continue outside a loop")
	}
	return &c.loops[len(c.loops)-1], nil
}

// InConstMode reports whether the context is currently lowering a global
// initializer's constant expression.
func (c *CompilerContext) InConstMode() bool { return c.constMode }
