package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"eaglec/internal/ast"
	"eaglec/internal/irbuild"
	etypes "eaglec/internal/types"
)

var stringLiteralCounter int

// lowerValue lowers a ValueNode literal: integers and doubles produce the
// constant of their declared width, nil produces a null *any, and string
// literals produce a private global byte array and return a pointer to
// its first byte.
func (c *CompilerContext) lowerValue(n *ast.ValueNode) (value.Value, error) {
	switch {
	case n.IsNil:
		t := c.Reg.Basic(etypes.KAny)
		n.SetResultType(c.Reg.NewPointer(t, false, false, false))
		return constant.NewNull(lltypes.NewPointer(lltypes.I8)), nil

	case n.IsString:
		n.SetResultType(c.Reg.Basic(etypes.KCString))
		return c.internStringLiteral(n.StrVal), nil

	case n.IsFloat:
		n.SetResultType(c.Reg.Basic(etypes.KDouble))
		return constant.NewFloat(lltypes.Double, n.FloatVal), nil

	default:
		k := intKindForWidth(n.BitWidth)
		n.SetResultType(c.Reg.Basic(k))
		return constant.NewInt(irbuild.LowerType(c.Reg, c.Reg.Basic(k)).(*lltypes.IntType), n.IntVal), nil
	}
}

func intKindForWidth(bits int) etypes.Kind {
	switch bits {
	case 1:
		return etypes.KInt1
	case 8:
		return etypes.KInt8
	case 16:
		return etypes.KInt16
	case 64:
		return etypes.KInt64
	default:
		return etypes.KInt32
	}
}

// internStringLiteral creates a private global holding the literal bytes
// (NUL-terminated) and returns a pointer to its first element.
func (c *CompilerContext) internStringLiteral(s string) value.Value {
	data := constant.NewCharArrayFromString(s + "\x00")
	name := fmt.Sprintf(".str.%d", stringLiteralCounter)
	stringLiteralCounter++
	g := c.B.Module.NewGlobalDef(name, data)
	g.Immutable = true

	zero := constant.NewInt(lltypes.I32, 0)
	return constant.NewGetElementPtr(g.ContentType, g, zero, zero)
}
