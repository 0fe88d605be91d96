// Package irbuild wraps the external SSA/basic-block IR backend consumed
// only via its interface. The concrete backend is github.com/llir/llvm: a
// pure-Go LLVM IR construction library whose module/block/instruction
// surface provides a standard SSA/basic-block IR builder with the usual
// integer/float/pointer/struct/function primitives.
//
// Builder also owns a single-insertion-point discipline: every component
// that must emit code somewhere other than its current block
// (entry-block allocation, most notably) saves the current point,
// relocates, emits, and restores.
package irbuild

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

// Point captures an insertion point so it can be restored after a
// component emits code elsewhere. Violating the save/relocate/emit/restore
// discipline corrupts subsequent emission. It captures the
// whole function context, not just the current block, so it is also safe
// to use around a nested StartFunction call — generating one function's
// body (e.g. a struct's destructor) in the middle of another's.
type Point struct {
	fn           *ir.Func
	entry        *ir.Block
	block        *ir.Block
	entryAllocas int
}

// Builder is the code generator's single handle onto the module under
// construction. It tracks the function currently being generated, that
// function's entry block (the fixed target of every local's allocation),
// and the block new instructions are currently appended to.
type Builder struct {
	Module *ir.Module

	fn    *ir.Func
	entry *ir.Block
	block *ir.Block

	// entryAllocas counts the allocas already placed at the front of the
	// entry block, so repeated EntryAlloca calls keep appending after the
	// previous ones instead of each claiming position zero.
	entryAllocas int
}

// NewBuilder creates a Builder around a fresh module.
func NewBuilder() *Builder {
	return &Builder{Module: ir.NewModule()}
}

// Save captures the current insertion point and function context.
func (b *Builder) Save() Point {
	return Point{fn: b.fn, entry: b.entry, block: b.block, entryAllocas: b.entryAllocas}
}

// Restore returns the insertion point and function context to a previously
// saved position.
func (b *Builder) Restore(p Point) {
	b.fn = p.fn
	b.entry = p.entry
	b.block = p.block
	b.entryAllocas = p.entryAllocas
}

// Block returns the block new instructions are currently appended to.
func (b *Builder) Block() *ir.Block { return b.block }

// SetBlock repositions the insertion point without saving the prior one;
// callers that need to come back use Save/Restore instead.
func (b *Builder) SetBlock(blk *ir.Block) { b.block = blk }

// StartFunction begins a new function: declares it on the module, opens its
// entry block, and positions the insertion point there. Returns the
// function and its entry block so the caller (the code generator) can stash
// them on the scope it pushes for the function body.
func (b *Builder) StartFunction(name string, ret types.Type, params ...*ir.Param) (*ir.Func, *ir.Block) {
	fn := b.Module.NewFunc(name, ret, params...)
	entry := fn.NewBlock("entry")
	b.fn = fn
	b.entry = entry
	b.block = entry
	b.entryAllocas = 0
	return fn, entry
}

// DeclareExternalFunc declares a function with no body, used for external
// runtime ABI symbols and for other modules' entry points.
func (b *Builder) DeclareExternalFunc(name string, ret types.Type, params ...*ir.Param) *ir.Func {
	return b.Module.NewFunc(name, ret, params...)
}

// NewBlock opens a new basic block in the function currently being
// generated, without changing the insertion point.
func (b *Builder) NewBlock(name string) *ir.Block {
	return b.fn.NewBlock(name)
}

// EntryAlloca allocates storage in the function's entry block, at the
// position right after any previously entry-allocated slots, regardless of
// where in the source the declaration textually appears. This
// guarantees one allocation per logical slot even when the declaration is
// lexically inside a loop.
//
// Because llir/llvm blocks are independent instruction lists rather than a
// single builder cursor, relocating here never disturbs the caller's
// current insertion point (b.block); EntryAlloca does not need to
// Save/Restore around itself. Components that DO share the cursor (e.g.
// emitting into a block other than the current one) must use Save/Restore.
func (b *Builder) EntryAlloca(name string, t types.Type) *ir.InstAlloca {
	alloca := b.entry.NewAlloca(t) // appends to the end of entry.Insts
	alloca.SetName(name)

	insts := b.entry.Insts
	last := len(insts) - 1
	moved := insts[last]
	copy(insts[b.entryAllocas+1:last+1], insts[b.entryAllocas:last])
	insts[b.entryAllocas] = moved
	b.entryAllocas++

	return alloca
}

// EntryBlock returns the entry block of the function currently being
// generated.
func (b *Builder) EntryBlock() *ir.Block { return b.entry }

// CurrentFunc returns the function currently being generated.
func (b *Builder) CurrentFunc() *ir.Func { return b.fn }
