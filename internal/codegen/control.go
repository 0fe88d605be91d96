package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"eaglec/internal/ast"
	"eaglec/internal/compileerr"
	"eaglec/internal/irbuild"
	"eaglec/internal/memory"
	etypes "eaglec/internal/types"
)

// testZero lowers a condition expression's already-computed value to i1:
// bool is used directly, integers compare not-equal-zero, doubles/floats
// compare one (ordered, not-equal) zero, and pointers compare
// not-equal-null.
func (c *CompilerContext) testZero(t *etypes.Type, v value.Value, line int) (value.Value, error) {
	blk := c.B.Block()
	switch {
	case t.Kind == etypes.KInt1:
		return v, nil
	case isIntegerKind(t.Kind):
		return blk.NewICmp(enum.IPredNE, v, constant.NewInt(irbuild.LowerType(c.Reg, t).(*lltypes.IntType), 0)), nil
	case isFloatKind(t.Kind):
		zero := constant.NewFloat(irbuild.LowerType(c.Reg, t).(*lltypes.FloatType), 0)
		return blk.NewFCmp(enum.FPredONE, v, zero), nil
	case t.Kind == etypes.KPointer:
		return blk.NewICmp(enum.IPredNE, v, constant.NewNull(irbuild.LowerType(c.Reg, t).(*lltypes.PointerType))), nil
	default:
		return nil, compileerr.New(compileerr.TypeMismatch, line, "cannot use %s as a condition", t.Kind)
	}
}

// lowerStatements lowers a body, wrapping every top-level statement in the
// BeginStatement/EndStatement transient-flush boundary.
func (c *CompilerContext) lowerStatements(body []ast.Node) error {
	for _, stmt := range body {
		c.BeginStatement()
		if err := c.LowerStmt(stmt); err != nil {
			return err
		}
		c.EndStatement()
	}
	return nil
}

// terminated reports whether the current block already ends in a
// terminator (a `return` or `break`/`continue` branch already emitted),
// so callers know to omit a fall-through branch to a merge block.
func (c *CompilerContext) terminated() bool {
	return c.B.Block().Term != nil
}

func brIfOpen(blk *ir.Block, target *ir.Block) {
	if blk.Term == nil {
		blk.NewBr(target)
	}
}

// scopedBlock runs body inside a fresh scope, firing that scope's
// block-exit callbacks before returning to the caller's scope. If body
// already terminated the block (a return, break, or continue), that
// statement already swept this scope's callbacks on its way out, so
// running them again here would double-release any counted/destructor-
// needing local the arm declared.
func (c *CompilerContext) scopedBlock(body []ast.Node) error {
	c.Scopes.Push()
	depth := c.Scopes.Depth()
	err := c.lowerStatements(body)
	if !c.terminated() {
		c.Scopes.RunCallbacksThrough(depth)
	}
	c.Scopes.Pop()
	return err
}

// lowerIf implements an if/else-if/else chain: a shared merge block, with
// an arm's branch to it omitted when the arm's last statement already
// terminated the block (a `return`, `break`, or `continue`).
func (c *CompilerContext) lowerIf(n *ast.IfNode) error {
	fn := c.B.CurrentFunc()
	merge := fn.NewBlock("if.merge")
	if err := c.lowerIfArm(n, merge); err != nil {
		return err
	}
	c.B.SetBlock(merge)
	return nil
}

// lowerIfArm lowers one link of the if/else-if chain, recursing into Next
// for an else-if continuation.
func (c *CompilerContext) lowerIfArm(n *ast.IfNode, merge *ir.Block) error {
	test, err := c.LowerExpr(n.Test)
	if err != nil {
		return err
	}
	cond, err := c.testZero(n.Test.ResultType(), test, n.Line())
	if err != nil {
		return err
	}

	fn := c.B.CurrentFunc()
	thenBlock := fn.NewBlock("if.then")
	elseBlock := fn.NewBlock("if.else")
	c.B.Block().NewCondBr(cond, thenBlock, elseBlock)

	c.B.SetBlock(thenBlock)
	if err := c.scopedBlock(n.Then); err != nil {
		return err
	}
	brIfOpen(c.B.Block(), merge)

	c.B.SetBlock(elseBlock)
	switch {
	case n.Next != nil:
		if err := c.lowerIfArm(n.Next, merge); err != nil {
			return err
		}
	case len(n.Else) > 0:
		if err := c.scopedBlock(n.Else); err != nil {
			return err
		}
		brIfOpen(c.B.Block(), merge)
	default:
		brIfOpen(c.B.Block(), merge)
	}
	return nil
}

// lowerLoop implements while/for: setup runs once, test gates the body,
// update (if present) runs after each iteration before re-testing.
// break/continue target merge/update respectively, via the loop-frame
// stack PushLoop establishes.
func (c *CompilerContext) lowerLoop(n *ast.LoopNode) error {
	if n.Setup != nil {
		c.BeginStatement()
		if err := c.LowerStmt(n.Setup); err != nil {
			return err
		}
		c.EndStatement()
	}

	fn := c.B.CurrentFunc()
	testBlock := fn.NewBlock("loop.test")
	bodyBlock := fn.NewBlock("loop.body")
	updateBlock := fn.NewBlock("loop.update")
	mergeBlock := fn.NewBlock("loop.merge")

	brIfOpen(c.B.Block(), testBlock)

	c.B.SetBlock(testBlock)
	test, err := c.LowerExpr(n.Test)
	if err != nil {
		return err
	}
	cond, err := c.testZero(n.Test.ResultType(), test, n.Line())
	if err != nil {
		return err
	}
	c.B.Block().NewCondBr(cond, bodyBlock, mergeBlock)

	c.B.SetBlock(bodyBlock)
	c.Scopes.Push()
	bodyDepth := c.Scopes.Depth()
	c.PushLoop(updateBlock, mergeBlock, bodyDepth)

	err = c.lowerStatements(n.Body)

	if !c.terminated() {
		c.Scopes.RunCallbacksThrough(bodyDepth)
	}
	c.Scopes.Pop()
	c.PopLoop()
	if err != nil {
		return err
	}
	brIfOpen(c.B.Block(), updateBlock)

	c.B.SetBlock(updateBlock)
	if n.Update != nil {
		c.BeginStatement()
		if err := c.LowerStmt(n.Update); err != nil {
			return err
		}
		c.EndStatement()
	}
	brIfOpen(c.B.Block(), testBlock)

	c.B.SetBlock(mergeBlock)
	return nil
}

// lowerBreak/lowerContinue: run the loop body's scope-exit callbacks,
// then branch to the loop's merge/update block respectively. continue
// targets the update block rather than the test block, so the loop's
// post-body step still runs before the condition is re-checked.
func (c *CompilerContext) lowerBreak(n *ast.BreakNode) error {
	loop, err := c.currentLoop(n.Line())
	if err != nil {
		return err
	}
	c.Scopes.RunCallbacksThrough(loop.bodyScopeDepth)
	c.B.Block().NewBr(loop.mergeBlock)
	return nil
}

func (c *CompilerContext) lowerContinue(n *ast.ContinueNode) error {
	loop, err := c.currentLoop(n.Line())
	if err != nil {
		return err
	}
	c.Scopes.RunCallbacksThrough(loop.bodyScopeDepth)
	c.B.Block().NewBr(loop.continueTarget)
	return nil
}

// lowerReturn implements `return`: coerce the value to the function's
// declared return type, run the function-scope callback sweep, then
// emit the terminator. A returned
// counted/destructor-needing value that is a transient or loaded-
// transient is handed off without an extra increment, matching the
// assignment/call-argument consumption rule.
func (c *CompilerContext) lowerReturn(n *ast.ReturnNode, declaredReturn *etypes.Type) error {
	if n.Value == nil {
		c.Scopes.RunCallbacksThrough(c.FuncScopeDepth())
		c.B.Block().NewRet(nil)
		return nil
	}

	v, err := c.LowerExpr(n.Value)
	if err != nil {
		return err
	}
	srcType := n.Value.ResultType()
	coerced := v
	if srcType.IsNumeric() && declaredReturn.IsNumeric() {
		coerced = c.numericCast(srcType, declaredReturn, v)
	}

	switch {
	case declaredReturn.Kind == etypes.KPointer && declaredReturn.Counted:
		_, consumed := c.consumeIfTransient(n.Value, coerced)
		if !consumed {
			payload := irbuild.LowerType(c.Reg, declaredReturn.Pointee)
			headerType := irbuild.CountedHeaderType(c.Reg, payload)
			memory.EmitIncr(c.B, c.RT, memory.RefcountPtr(c.B, headerType, coerced))
		}
	case (declaredReturn.Kind == etypes.KStruct || declaredReturn.Kind == etypes.KClass) && c.Reg.NeedsDestructor(declaredReturn):
		if triad, ok := c.Triads.Get(declaredReturn.Name); ok {
			if _, consumed := c.consumeIfTransient(n.Value, coerced); !consumed {
				tmp := c.B.EntryAlloca("ret.tmp", irbuild.LowerType(c.Reg, declaredReturn))
				c.B.Block().NewCall(triad.Copy, tmp, coerced)
				coerced = c.B.Block().NewLoad(irbuild.LowerType(c.Reg, declaredReturn), tmp)
			} else {
				coerced = c.B.Block().NewLoad(irbuild.LowerType(c.Reg, declaredReturn), coerced)
			}
		}
	}

	c.Scopes.RunCallbacksThrough(c.FuncScopeDepth())
	c.B.Block().NewRet(coerced)
	return nil
}
