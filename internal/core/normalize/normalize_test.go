package normalize_test

import (
	"testing"

	"github.com/emersion/rustre/internal/core/normalize"
	"github.com/emersion/rustre/internal/ir"
	"github.com/emersion/rustre/lustre/ast"
)

func prog(nodes ...*ast.Node) *ast.Program { return &ast.Program{Nodes: nodes} }

func eq(pattern []string, rhs ast.Expr) *ast.Equation {
	return &ast.Equation{Pattern: pattern, Rhs: rhs}
}

func v(name string) *ast.VarExpr { return &ast.VarExpr{Name: name} }

func litInt(i int64) *ast.LitExpr { return &ast.LitExpr{Type: ast.Int, Int: i} }

// nodeByName finds a normalized node for assertions by name.
func nodeByName(p *ir.NProgram, name string) *ir.NNode { return p.ByName(name) }

func TestCounterNormalizesToDelayPlusAtomic(t *testing.T) {
	// nat() returns (o:int); let o = 0 fby (o + 1); tel
	nat := &ast.Node{
		Name:    "nat",
		Outputs: []ast.Param{{Name: "o", Type: ast.Int}},
		Equs: []*ast.Equation{
			eq([]string{"o"}, &ast.FbyExpr{X: litInt(0), Y: &ast.BinaryExpr{Op: ast.OpAdd, X: v("o"), Y: litInt(1)}}),
		},
	}
	out, err := normalize.Program(prog(nat))
	if err != nil {
		t.Fatalf("Program: %v", err)
	}
	n := nodeByName(out, "nat")
	if len(n.Equs) != 2 {
		t.Fatalf("got %d equations, want 2 (one delay, one lifted atomic)", len(n.Equs))
	}

	var sawDelay, sawAtomic bool
	for _, e := range n.Equs {
		switch e.Rhs.(type) {
		case *ir.Delay:
			sawDelay = true
			if e.LHS[0] != "o" {
				t.Errorf("delay equation LHS = %v, want [o]", e.LHS)
			}
		case *ir.Atomic:
			sawAtomic = true
		}
	}
	if !sawDelay || !sawAtomic {
		t.Errorf("expected one delay and one atomic equation, got %+v", n.Equs)
	}
}

func TestTupleLiteralSplitsIntoScalarEquations(t *testing.T) {
	// pair(a,b) returns (s,co:bool); let (s,co) = (a, b); tel (toy tuple split)
	n := &ast.Node{
		Name:    "pair",
		Inputs:  []ast.Param{{Name: "a", Type: ast.Bool}, {Name: "b", Type: ast.Bool}},
		Outputs: []ast.Param{{Name: "s", Type: ast.Bool}, {Name: "co", Type: ast.Bool}},
		Equs: []*ast.Equation{
			eq([]string{"s", "co"}, &ast.TupleExpr{Elems: []ast.Expr{v("a"), v("b")}}),
		},
	}
	out, err := normalize.Program(prog(n))
	if err != nil {
		t.Fatalf("Program: %v", err)
	}
	got := nodeByName(out, "pair")
	if len(got.Equs) != 2 {
		t.Fatalf("got %d equations, want 2 (one per tuple element)", len(got.Equs))
	}
}

func TestCallLiftedOutOfNestedPosition(t *testing.T) {
	half := &ast.Node{
		Name:    "half",
		Inputs:  []ast.Param{{Name: "x", Type: ast.Int}},
		Outputs: []ast.Param{{Name: "y", Type: ast.Int}},
		Equs:    []*ast.Equation{eq([]string{"y"}, v("x"))},
	}
	caller := &ast.Node{
		Name:    "caller",
		Inputs:  []ast.Param{{Name: "a", Type: ast.Int}},
		Outputs: []ast.Param{{Name: "o", Type: ast.Int}},
		Equs: []*ast.Equation{
			eq([]string{"o"}, &ast.BinaryExpr{
				Op: ast.OpAdd,
				X:  &ast.CallExpr{Callee: "half", Args: []ast.Expr{v("a")}},
				Y:  litInt(1),
			}),
		},
	}
	out, err := normalize.Program(prog(half, caller))
	if err != nil {
		t.Fatalf("Program: %v", err)
	}
	n := nodeByName(out, "caller")

	var sawCall bool
	for _, e := range n.Equs {
		if c, ok := e.Rhs.(*ir.Call); ok {
			sawCall = true
			if c.Callee != "half" {
				t.Errorf("lifted call callee = %q, want half", c.Callee)
			}
		}
	}
	if !sawCall {
		t.Error("expected the nested call to be lifted to its own equation")
	}
	if len(n.Locals) == 0 {
		t.Error("expected a fresh temporary local for the lifted call's result")
	}
}

func TestArityErrorOnCallArgumentCount(t *testing.T) {
	half := &ast.Node{
		Name:    "half",
		Inputs:  []ast.Param{{Name: "x", Type: ast.Int}},
		Outputs: []ast.Param{{Name: "y", Type: ast.Int}},
		Equs:    []*ast.Equation{eq([]string{"y"}, v("x"))},
	}
	caller := &ast.Node{
		Name:    "caller",
		Outputs: []ast.Param{{Name: "o", Type: ast.Int}},
		Equs: []*ast.Equation{
			eq([]string{"o"}, &ast.CallExpr{Callee: "half", Args: []ast.Expr{litInt(1), litInt(2)}}),
		},
	}
	if _, err := normalize.Program(prog(half, caller)); err == nil {
		t.Error("Program: want arity error for mismatched call argument count")
	}
}

func TestArityErrorOnPatternWidth(t *testing.T) {
	n := &ast.Node{
		Name:    "bad",
		Outputs: []ast.Param{{Name: "o", Type: ast.Int}},
		Equs: []*ast.Equation{
			eq([]string{"o"}, &ast.TupleExpr{Elems: []ast.Expr{litInt(1), litInt(2)}}),
		},
	}
	if _, err := normalize.Program(prog(n)); err == nil {
		t.Error("Program: want arity error for pattern width vs tuple width mismatch")
	}
}

func TestSSAViolationOnDoubleDefinition(t *testing.T) {
	n := &ast.Node{
		Name:    "dup",
		Outputs: []ast.Param{{Name: "o", Type: ast.Int}},
		Equs: []*ast.Equation{
			eq([]string{"o"}, litInt(1)),
			eq([]string{"o"}, litInt(2)),
		},
	}
	if _, err := normalize.Program(prog(n)); err == nil {
		t.Error("Program: want SSA error for o defined twice")
	}
}

func TestUndefinedOutputIsAnError(t *testing.T) {
	n := &ast.Node{
		Name:    "incomplete",
		Outputs: []ast.Param{{Name: "o", Type: ast.Int}},
	}
	if _, err := normalize.Program(prog(n)); err == nil {
		t.Error("Program: want error for an output never defined")
	}
}

func TestFbyOperandTypeMismatch(t *testing.T) {
	n := &ast.Node{
		Name:    "bad",
		Outputs: []ast.Param{{Name: "o", Type: ast.Int}},
		Equs: []*ast.Equation{
			eq([]string{"o"}, &ast.FbyExpr{X: litInt(0), Y: &ast.LitExpr{Type: ast.Float, Float: 1}}),
		},
	}
	if _, err := normalize.Program(prog(n)); err == nil {
		t.Error("Program: want type error for fby operands of different base type")
	}
}

func TestTupleInNestedPositionIsAnError(t *testing.T) {
	n := &ast.Node{
		Name:    "bad",
		Outputs: []ast.Param{{Name: "o", Type: ast.Int}},
		Equs: []*ast.Equation{
			eq([]string{"o"}, &ast.BinaryExpr{
				Op: ast.OpAdd,
				X:  &ast.TupleExpr{Elems: []ast.Expr{litInt(1), litInt(2)}},
				Y:  litInt(1),
			}),
		},
	}
	if _, err := normalize.Program(prog(n)); err == nil {
		t.Error("Program: want error for a tuple nested inside a larger expression")
	}
}

func TestUndeclaredVariableIsAnError(t *testing.T) {
	n := &ast.Node{
		Name:    "bad",
		Outputs: []ast.Param{{Name: "o", Type: ast.Int}},
		Equs:    []*ast.Equation{eq([]string{"o"}, v("nope"))},
	}
	if _, err := normalize.Program(prog(n)); err == nil {
		t.Error("Program: want name error for reference to undeclared variable")
	}
}

func TestUndeclaredNodeCallIsAnError(t *testing.T) {
	n := &ast.Node{
		Name:    "bad",
		Outputs: []ast.Param{{Name: "o", Type: ast.Int}},
		Equs: []*ast.Equation{
			eq([]string{"o"}, &ast.CallExpr{Callee: "nope", Args: nil}),
		},
	}
	if _, err := normalize.Program(prog(n)); err == nil {
		t.Error("Program: want name error for call to undeclared node")
	}
}

func TestDuplicateNodeNameIsAnError(t *testing.T) {
	a := &ast.Node{Name: "dup", Outputs: []ast.Param{{Name: "o", Type: ast.Int}}, Equs: []*ast.Equation{eq([]string{"o"}, litInt(1))}}
	b := &ast.Node{Name: "dup", Outputs: []ast.Param{{Name: "o", Type: ast.Int}}, Equs: []*ast.Equation{eq([]string{"o"}, litInt(2))}}
	if _, err := normalize.Program(prog(a, b)); err == nil {
		t.Error("Program: want error for a node name declared twice")
	}
}
