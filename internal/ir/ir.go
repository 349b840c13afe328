// Package ir declares the normalized and scheduled forms of a node: the
// output of the normalizer and, once reordered, of the scheduler. Both
// stages share this representation; scheduling only permutes NEquations,
// it never changes their shape.
package ir

import (
	"fmt"

	"github.com/emersion/rustre/lustre/ast"
	"github.com/emersion/rustre/lustre/token"
)

// Rhs is implemented by the three RHS shapes a normalized equation may
// take: Atomic, Delay, Call.
type Rhs interface {
	rhsNode()
}

func (*Atomic) rhsNode() {}
func (*Delay) rhsNode()  {}
func (*Call) rhsNode()   {}

// Atomic is an expression tree whose leaves are literals or variables and
// whose internal nodes are unary/binary operators or if; it contains no
// node calls, no fby, and no nested tuples.
type Atomic struct {
	Expr ast.Expr
}

// Leaf is either a literal or a bare variable reference — the only shapes
// legal as an operand of Delay.
type Leaf = ast.Expr

// Delay is a normalized `fby`: both operands are Leaf, of identical type.
type Delay struct {
	Init, Next Leaf
	Type       ast.Type
}

// Call is a normalized node application; every argument is atomic.
type Call struct {
	Callee string
	Args   []ast.Expr
}

// NEquation is one equation of a normalized (and, later, scheduled) node.
// LHS is always a tuple pattern of one-or-more distinct names; its arity
// must equal the arity of Rhs's shape.
type NEquation struct {
	LHS []string
	Rhs Rhs
	Pos token.Position

	// SourceIndex is the equation's position in the original (pre-schedule)
	// equation list. The normalizer assigns it in emission order; the
	// scheduler uses it only as a tie-break and never changes it.
	SourceIndex int
}

// NNode is a normalized node: same external interface as its ast.Node
// (name, inputs, outputs), with Equs flattened to NEquations and Locals
// extended with every fresh temporary the normalizer introduced.
type NNode struct {
	Name    string
	Inputs  []ast.Param
	Outputs []ast.Param
	Locals  []ast.Param // includes fresh temporaries
	Equs    []*NEquation
	Pos     token.Position
}

// TypeOf resolves the declared type of any name visible within the node
// (input, output, local, or temporary). ok is false for an undeclared
// name, which the normalizer treats as a name error.
func (n *NNode) TypeOf(name string) (ast.Type, bool) {
	for _, p := range n.Inputs {
		if p.Name == name {
			return p.Type, true
		}
	}
	for _, p := range n.Outputs {
		if p.Name == name {
			return p.Type, true
		}
	}
	for _, p := range n.Locals {
		if p.Name == name {
			return p.Type, true
		}
	}
	return 0, false
}

// NProgram is the normalizer's (and, after scheduling, the scheduler's)
// output: one NNode per source node, external interfaces unchanged.
type NProgram struct {
	Nodes []*NNode
}

// ByName looks up a node by name within the program; used to resolve call
// arity against a callee's declared output shape.
func (p *NProgram) ByName(name string) *NNode {
	for _, n := range p.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// ExprType determines the base type of an already-lowered expression tree
// from the declared types of its leaves, visible within n. It is shared by
// the normalizer (to type fresh temporaries and check fby/operator type
// consistency) and the code emitter (to type Go variable declarations and
// the return type of emitted conditional closures) so that the two passes
// never disagree about an expression's type.
func ExprType(n *NNode, e ast.Expr) (ast.Type, error) {
	switch x := e.(type) {
	case *ast.LitExpr:
		return x.Type, nil

	case *ast.VarExpr:
		t, ok := n.TypeOf(x.Name)
		if !ok {
			return 0, fmt.Errorf("reference to undeclared variable %q", x.Name)
		}
		return t, nil

	case *ast.UnaryExpr:
		xt, err := ExprType(n, x.X)
		if err != nil {
			return 0, err
		}
		switch x.Op {
		case ast.OpNeg:
			if xt != ast.Int && xt != ast.Float {
				return 0, fmt.Errorf("negation applied to non-numeric operand")
			}
			return xt, nil
		case ast.OpNot:
			if xt != ast.Bool {
				return 0, fmt.Errorf("not applied to non-bool operand")
			}
			return ast.Bool, nil
		case ast.OpIntOfFloat:
			if xt != ast.Float {
				return 0, fmt.Errorf("int_of_float applied to non-float operand")
			}
			return ast.Int, nil
		case ast.OpFloatOfInt:
			if xt != ast.Int {
				return 0, fmt.Errorf("float_of_int applied to non-int operand")
			}
			return ast.Float, nil
		case ast.OpSin, ast.OpCos:
			if xt != ast.Float {
				return 0, fmt.Errorf("sin/cos applied to non-float operand")
			}
			return ast.Float, nil
		default:
			return 0, fmt.Errorf("unknown unary operator")
		}

	case *ast.BinaryExpr:
		xt, err := ExprType(n, x.X)
		if err != nil {
			return 0, err
		}
		yt, err := ExprType(n, x.Y)
		if err != nil {
			return 0, err
		}
		switch x.Op {
		case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv:
			if xt != ast.Int || yt != ast.Int {
				return 0, fmt.Errorf("integer operator applied to non-int operand")
			}
			return ast.Int, nil
		case ast.OpAddF, ast.OpSubF, ast.OpMulF, ast.OpDivF:
			if xt != ast.Float || yt != ast.Float {
				return 0, fmt.Errorf("float operator applied to non-float operand")
			}
			return ast.Float, nil
		case ast.OpEq, ast.OpNeq, ast.OpLt, ast.OpLeq, ast.OpGt, ast.OpGeq:
			if xt != yt {
				return 0, fmt.Errorf("comparison operands have different types: %s vs %s", xt, yt)
			}
			return ast.Bool, nil
		case ast.OpAnd, ast.OpOr:
			if xt != ast.Bool || yt != ast.Bool {
				return 0, fmt.Errorf("boolean operator applied to non-bool operand")
			}
			return ast.Bool, nil
		default:
			return 0, fmt.Errorf("unknown binary operator")
		}

	case *ast.IfExpr:
		tt, err := ExprType(n, x.Then)
		if err != nil {
			return 0, err
		}
		et, err := ExprType(n, x.Else)
		if err != nil {
			return 0, err
		}
		if tt != et {
			return 0, fmt.Errorf("if branches have different types: %s vs %s", tt, et)
		}
		return tt, nil

	default:
		return 0, fmt.Errorf("cannot determine type of %T", e)
	}
}
