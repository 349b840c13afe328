package ir_test

import (
	"testing"

	"github.com/emersion/rustre/internal/ir"
	"github.com/emersion/rustre/lustre/ast"
)

func node() *ir.NNode {
	return &ir.NNode{
		Name:    "average",
		Inputs:  []ast.Param{{Name: "a", Type: ast.Int}, {Name: "b", Type: ast.Int}},
		Outputs: []ast.Param{{Name: "o", Type: ast.Int}},
		Locals:  []ast.Param{{Name: "$t0", Type: ast.Float}},
	}
}

func TestTypeOf(t *testing.T) {
	n := node()
	cases := []struct {
		name   string
		want   ast.Type
		wantOK bool
	}{
		{"a", ast.Int, true},
		{"o", ast.Int, true},
		{"$t0", ast.Float, true},
		{"nope", 0, false},
	}
	for _, c := range cases {
		got, ok := n.TypeOf(c.name)
		if ok != c.wantOK {
			t.Errorf("TypeOf(%q) ok = %v, want %v", c.name, ok, c.wantOK)
			continue
		}
		if ok && got != c.want {
			t.Errorf("TypeOf(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestByName(t *testing.T) {
	prog := &ir.NProgram{Nodes: []*ir.NNode{node()}}
	if prog.ByName("average") == nil {
		t.Error("ByName(\"average\") = nil")
	}
	if prog.ByName("missing") != nil {
		t.Error("ByName(\"missing\") should be nil")
	}
}

func TestExprType(t *testing.T) {
	n := node()

	lit := &ast.LitExpr{Type: ast.Int, Int: 3}
	if got, err := ir.ExprType(n, lit); err != nil || got != ast.Int {
		t.Errorf("ExprType(lit) = %v, %v", got, err)
	}

	v := &ast.VarExpr{Name: "a"}
	if got, err := ir.ExprType(n, v); err != nil || got != ast.Int {
		t.Errorf("ExprType(var a) = %v, %v", got, err)
	}

	if _, err := ir.ExprType(n, &ast.VarExpr{Name: "undeclared"}); err == nil {
		t.Error("ExprType(undeclared var): want error")
	}

	bin := &ast.BinaryExpr{Op: ast.OpAdd, X: &ast.VarExpr{Name: "a"}, Y: &ast.VarExpr{Name: "b"}}
	if got, err := ir.ExprType(n, bin); err != nil || got != ast.Int {
		t.Errorf("ExprType(a+b) = %v, %v", got, err)
	}

	mismatched := &ast.BinaryExpr{
		Op: ast.OpAddF,
		X:  &ast.VarExpr{Name: "a"}, // declared int
		Y:  &ast.LitExpr{Type: ast.Float, Float: 1.0},
	}
	if _, err := ir.ExprType(n, mismatched); err == nil {
		t.Error("ExprType(int +. float): want error")
	}

	ifExpr := &ast.IfExpr{
		Cond: &ast.LitExpr{Type: ast.Bool, Bool: true},
		Then: &ast.VarExpr{Name: "a"},
		Else: &ast.LitExpr{Type: ast.Float, Float: 0},
	}
	if _, err := ir.ExprType(n, ifExpr); err == nil {
		t.Error("ExprType(if with mismatched branches): want error")
	}
}
