package codegen

import (
	"testing"

	"github.com/llir/llvm/ir"
	lltypes "github.com/llir/llvm/ir/types"

	"eaglec/internal/ast"
	"eaglec/internal/compileerr"
	"eaglec/internal/irbuild"
	etypes "eaglec/internal/types"
)

// newTestContext builds a CompilerContext with a function already started,
// entry block open, and the first statement's transient tables live, ready
// for a lowerer under test to emit into.
func newTestContext(t *testing.T) (*CompilerContext, *ir.Func) {
	t.Helper()
	reg := etypes.NewRegistry()
	b := irbuild.NewBuilder()
	c := NewCompilerContext(b, reg)
	fn, entry := b.StartFunction("test", lltypes.Void)
	b.SetBlock(entry)
	c.EnterFunction()
	c.BeginStatement()
	return c, fn
}

func asCompileError(err error) (*compileerr.CompileError, bool) {
	ce, ok := err.(*compileerr.CompileError)
	return ce, ok
}

func intLit(bits int, v int64) *ast.ValueNode {
	return &ast.ValueNode{BitWidth: bits, IntVal: v}
}

// TestAutoLocalDeclaresInt32 covers "Auto local": x := 3 + 4 allocates an
// entry-block local whose resolved type is int32.
func TestAutoLocalDeclaresInt32(t *testing.T) {
	c, _ := newTestContext(t)
	decl := &ast.VarDeclNode{
		Name: "x",
		Init: &ast.BinaryNode{Op: ast.OpAdd, Left: intLit(32, 3), Right: intLit(32, 4)},
	}
	if err := c.lowerVarDecl(decl); err != nil {
		t.Fatalf("lowerVarDecl: %v", err)
	}
	e := c.Scopes.Get("x")
	if e == nil {
		t.Fatal("expected a scope entry for x")
	}
	if e.Type.Kind != etypes.KInt32 {
		t.Errorf("x's resolved type = %v, want int32", e.Type.Kind)
	}
}

// TestCountedAssignDecrementsOldIncrementsNew covers "Counted assign":
// a = b on two Foo^ locals emits exactly one decrement of a's old header
// and one increment of b's header, decrement first.
func TestCountedAssignDecrementsOldIncrementsNew(t *testing.T) {
	c, _ := newTestContext(t)
	fooT := c.Reg.DefineStruct("Foo", []string{"n"}, []*etypes.Type{c.Reg.Basic(etypes.KInt32)})
	ptrT := c.Reg.NewPointer(fooT, true, false, false)

	aSlot := c.allocLocal("a", ptrT)
	bSlot := c.allocLocal("b", ptrT)
	c.registerVarDeclCallbacks("a", ptrT, aSlot)
	c.registerVarDeclCallbacks("b", ptrT, bSlot)

	assign := &ast.BinaryNode{
		Op:    ast.OpAssign,
		Left:  &ast.IdentNode{Name: "a"},
		Right: &ast.IdentNode{Name: "b"},
	}
	if _, err := c.lowerBinary(assign); err != nil {
		t.Fatalf("lowerBinary: %v", err)
	}

	blk := c.B.Block()
	var decrIdx, incrIdx = -1, -1
	for i, inst := range blk.Insts {
		call, ok := inst.(*ir.InstCall)
		if !ok {
			continue
		}
		switch call.Callee.(*ir.Func).Name() {
		case "__egl_decr_ptr":
			if decrIdx == -1 {
				decrIdx = i
			}
		case "__egl_incr_ptr":
			if incrIdx == -1 {
				incrIdx = i
			}
		}
	}
	if decrIdx == -1 {
		t.Fatal("expected a decrement call on a's old value")
	}
	if incrIdx == -1 {
		t.Fatal("expected an increment call on b's value")
	}
	if decrIdx > incrIdx {
		t.Errorf("decrement (inst %d) should precede increment (inst %d)", decrIdx, incrIdx)
	}
}

// TestShortCircuitProducesThreeBlocksAndPhi covers "Short-circuit":
// a && b with a, b : bool produces a-test/b-test/merge and a width-2 phi.
func TestShortCircuitProducesThreeBlocksAndPhi(t *testing.T) {
	c, fn := newTestContext(t)
	boolT := c.Reg.Basic(etypes.KInt1)
	aSlot := c.allocLocal("a", boolT)
	bSlot := c.allocLocal("b", boolT)
	c.Scopes.Put("a", aSlot, boolT)
	c.Scopes.Put("b", bSlot, boolT)

	and := &ast.BinaryNode{
		Op:    ast.OpAnd,
		Left:  &ast.IdentNode{Name: "a"},
		Right: &ast.IdentNode{Name: "b"},
	}
	v, err := c.lowerBinary(and)
	if err != nil {
		t.Fatalf("lowerBinary: %v", err)
	}

	if _, ok := v.(*ir.InstPhi); !ok {
		t.Fatalf("expected a phi result, got %T", v)
	}
	phi := v.(*ir.InstPhi)
	if len(phi.Incs) != 2 {
		t.Errorf("phi has %d incoming values, want 2", len(phi.Incs))
	}

	// entry (pre-test) + rhs-test + merge: at least 3 blocks total once the
	// short-circuit is lowered.
	if len(fn.Blocks) < 3 {
		t.Errorf("expected at least 3 basic blocks for a short-circuit and, got %d", len(fn.Blocks))
	}
}

// TestPointerArithmeticBothPointersErrors covers "Pointer arithmetic
// error": p + q where both operands are pointers fails with
// invalid-pointer-arithmetic naming the source line.
func TestPointerArithmeticBothPointersErrors(t *testing.T) {
	c, _ := newTestContext(t)
	intT := c.Reg.Basic(etypes.KInt32)
	ptrT := c.Reg.NewPointer(intT, false, false, false)
	pSlot := c.allocLocal("p", ptrT)
	qSlot := c.allocLocal("q", ptrT)
	c.Scopes.Put("p", pSlot, ptrT)
	c.Scopes.Put("q", qSlot, ptrT)

	add := &ast.BinaryNode{
		LineNo: 42,
		Op:     ast.OpAdd,
		Left:   &ast.IdentNode{Name: "p"},
		Right:  &ast.IdentNode{Name: "q"},
	}
	_, err := c.lowerBinary(add)
	if err == nil {
		t.Fatal("expected an error adding two pointers")
	}
	var line int
	if ce, ok := asCompileError(err); ok {
		line = ce.Line
		if ce.Kind.String() != "invalid-pointer-arithmetic" {
			t.Errorf("error kind = %v, want invalid-pointer-arithmetic", ce.Kind)
		}
	} else {
		t.Fatalf("expected a *compileerr.CompileError, got %T", err)
	}
	if line != 42 {
		t.Errorf("error line = %d, want 42", line)
	}
}

// TestInterfaceCallLoadsVtableSlot covers "Interface call": a call through
// an interface-typed receiver loads the vtable slot at interface_offset
// and emits an indirect call with the receiver's data pointer first.
func TestInterfaceCallLoadsVtableSlot(t *testing.T) {
	c, _ := newTestContext(t)
	classT := c.Reg.DefineClass("C", nil, nil, []string{"I"})
	c.Reg.DefineInterface("I", []string{"m"}, nil)
	fnType := c.Reg.NewFunction(c.Reg.Basic(etypes.KVoid), nil, false, etypes.ClosureNone, false)
	c.Reg.AddMethod("C", "m", fnType)

	ifaceT := c.Reg.ParseTypeName("I")
	xSlot := c.allocLocal("x", ifaceT)
	c.Scopes.Put("x", xSlot, ifaceT)
	_ = classT

	call := &ast.CallNode{
		Callee: &ast.MemberNode{Receiver: &ast.IdentNode{Name: "x"}, Field: "m"},
	}
	if _, err := c.lowerCall(call); err != nil {
		t.Fatalf("lowerCall: %v", err)
	}

	blk := c.B.Block()
	var sawVtableLoad, sawIndirectCall bool
	for _, inst := range blk.Insts {
		switch inst.(type) {
		case *ir.InstLoad:
			sawVtableLoad = true
		case *ir.InstCall:
			sawIndirectCall = true
		}
	}
	if !sawVtableLoad {
		t.Error("expected a load of the vtable/data descriptor")
	}
	if !sawIndirectCall {
		t.Error("expected an indirect call through the loaded function slot")
	}
}

// TestLoopBodyDecrementsOldBeforeConsumingTransient covers "Loop
// refcount": each iteration assigning a freshly new'd Foo to a counted
// local decrements the old value and consumes the transient without an
// extra increment.
func TestLoopBodyDecrementsOldBeforeConsumingTransient(t *testing.T) {
	c, _ := newTestContext(t)
	fooT := c.Reg.DefineStruct("Foo", []string{"n"}, []*etypes.Type{c.Reg.Basic(etypes.KInt32)})
	ptrT := c.Reg.NewPointer(fooT, true, false, false)
	slot := c.allocLocal("a", ptrT)
	c.registerVarDeclCallbacks("a", ptrT, slot)

	loop := &ast.LoopNode{
		Test: &ast.ValueNode{BitWidth: 1, IntVal: 0},
		Body: []ast.Node{
			&ast.BinaryNode{
				Op:    ast.OpAssign,
				Left:  &ast.IdentNode{Name: "a"},
				Right: &ast.AllocNode{AllocType: fooT},
			},
		},
	}
	if err := c.lowerLoop(loop); err != nil {
		t.Fatalf("lowerLoop: %v", err)
	}

	var decrCalls, incrCalls int
	for _, blk := range c.B.CurrentFunc().Blocks {
		for _, inst := range blk.Insts {
			call, ok := inst.(*ir.InstCall)
			if !ok {
				continue
			}
			switch call.Callee.(*ir.Func).Name() {
			case "__egl_decr_ptr":
				decrCalls++
			case "__egl_incr_ptr":
				incrCalls++
			}
		}
	}
	if decrCalls == 0 {
		t.Error("expected at least one decrement (old value at reassignment or loop merge)")
	}
	if incrCalls != 0 {
		t.Errorf("assigning a freshly allocated transient should not increment, got %d increments", incrCalls)
	}
}

// TestIfArmReturnDoesNotDoubleDecrement covers an if-arm that exits via
// return: lowerReturn already sweeps the arm's scope on its way out, so
// scopedBlock must not sweep it a second time and double-decrement a
// counted local declared in that arm.
func TestIfArmReturnDoesNotDoubleDecrement(t *testing.T) {
	c, fn := newTestContext(t)
	fooT := c.Reg.DefineStruct("Foo", []string{"n"}, []*etypes.Type{c.Reg.Basic(etypes.KInt32)})
	ptrT := c.Reg.NewPointer(fooT, true, false, false)
	c.currentReturnType = ptrT

	ifNode := &ast.IfNode{
		Test: &ast.ValueNode{BitWidth: 1, IntVal: 1},
		Then: []ast.Node{
			&ast.VarDeclNode{Name: "a", DeclaredType: ptrT, Init: &ast.AllocNode{AllocType: fooT}},
			&ast.ReturnNode{Value: &ast.IdentNode{Name: "a"}},
		},
	}
	if err := c.lowerIf(ifNode); err != nil {
		t.Fatalf("lowerIf: %v", err)
	}

	var decrCalls, incrCalls int
	for _, blk := range fn.Blocks {
		for _, inst := range blk.Insts {
			call, ok := inst.(*ir.InstCall)
			if !ok {
				continue
			}
			switch call.Callee.(*ir.Func).Name() {
			case "__egl_decr_ptr":
				decrCalls++
			case "__egl_incr_ptr":
				incrCalls++
			}
		}
	}
	// lowerReturn increments a's header once (handing the caller a fresh
	// reference) and its own scope sweep decrements a's slot once (releasing
	// the local's ownership); scopedBlock must not add a second decrement on
	// top of that.
	if decrCalls != incrCalls {
		t.Errorf("expected decrements (%d) to match increments (%d) on a's return path", decrCalls, incrCalls)
	}
	if decrCalls != 1 {
		t.Errorf("expected exactly one decrement of a along the return path, got %d", decrCalls)
	}
}

// TestPrintFormatBytePointerUsesStringFormat covers `print p` where p :
// byte^ is a raw pointer to byte that did not come from a string literal:
// printFormat must still choose %s, not the generic %p fallback, since it
// keys off the full pointer-to-byte type rather than the separate
// string-literal-only KCString kind.
func TestPrintFormatBytePointerUsesStringFormat(t *testing.T) {
	reg := etypes.NewRegistry()
	byteT := reg.Basic(etypes.KUInt8)
	ptrT := reg.NewPointer(byteT, false, false, false)
	if got := printFormat(ptrT); got != "%s\x00" {
		t.Errorf("printFormat(*byte) = %q, want %%s", got)
	}
}

// TestPrintFormatOtherPointerUsesAddressFormat covers `print p` where p
// points at something other than byte: the generic %p fallback still
// applies.
func TestPrintFormatOtherPointerUsesAddressFormat(t *testing.T) {
	reg := etypes.NewRegistry()
	intT := reg.Basic(etypes.KInt32)
	ptrT := reg.NewPointer(intT, false, false, false)
	if got := printFormat(ptrT); got != "%p\x00" {
		t.Errorf("printFormat(*int32) = %q, want %%p", got)
	}
}
