package memory

import (
	"github.com/llir/llvm/ir/value"

	"eaglec/internal/ast"
)

// Transients is the pair of per-statement keyed tables: "transients"
// (fresh `new` allocations, balanced with __egl_check_ptr) and
// "loaded-transients" (counted-or-destructor-owning call results,
// balanced with __egl_decr_ptr). Modeled as a small struct scoped to
// statement dispatch rather than as fields hung off a global compiler
// context.
type Transients struct {
	transients       map[ast.Node]value.Value
	loadedTransients map[ast.Node]value.Value
}

// NewTransients creates an empty pair of tables.
func NewTransients() *Transients {
	return &Transients{
		transients:       make(map[ast.Node]value.Value),
		loadedTransients: make(map[ast.Node]value.Value),
	}
}

// AddTransient records a fresh `new` allocation keyed by its AST node.
func (t *Transients) AddTransient(n ast.Node, v value.Value) {
	t.transients[n] = v
}

// AddLoadedTransient records a call result that owns a counted or
// destructor-needing value.
func (t *Transients) AddLoadedTransient(n ast.Node, v value.Value) {
	t.loadedTransients[n] = v
}

// ConsumeTransient removes and returns a transient if n produced one. The
// bool return tells the caller whether to skip the balancing increment
// the assignment/call-argument policy table would otherwise apply.
func (t *Transients) ConsumeTransient(n ast.Node) (value.Value, bool) {
	v, ok := t.transients[n]
	if ok {
		delete(t.transients, n)
	}
	return v, ok
}

// ConsumeLoadedTransient is ConsumeTransient's counterpart for the
// loaded-transients table.
func (t *Transients) ConsumeLoadedTransient(n ast.Node) (value.Value, bool) {
	v, ok := t.loadedTransients[n]
	if ok {
		delete(t.loadedTransients, n)
	}
	return v, ok
}

// Empty reports whether both tables are empty, which must hold at every
// statement boundary.
func (t *Transients) Empty() bool {
	return len(t.transients) == 0 && len(t.loadedTransients) == 0
}

// FlushFunc is the pair of emission callbacks Flush drives: one call to
// __egl_check_ptr per remaining transient, one call to __egl_decr_ptr per
// remaining loaded-transient.
type FlushFunc func(v value.Value)

// Flush walks both tables, invoking checkPtr for every transient and
// decrPtr for every loaded-transient, then clears both. This runs at
// every statement boundary: after each top-level statement, and between
// the tested paths of a short-circuit && / || chain.
func (t *Transients) Flush(checkPtr, decrPtr FlushFunc) {
	for _, v := range t.transients {
		checkPtr(v)
	}
	for _, v := range t.loadedTransients {
		decrPtr(v)
	}
	t.transients = make(map[ast.Node]value.Value)
	t.loadedTransients = make(map[ast.Node]value.Value)
}
