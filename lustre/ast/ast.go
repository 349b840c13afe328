// Package ast declares the raw abstract syntax tree produced by the
// surface-grammar parser: an ordered list of node declarations over
// expressions that may nest arbitrarily, including fby, node calls, and
// tuple-returning forms inside larger expressions.
//
// Parsing itself is an external collaborator; this package only fixes the
// shape the parser must deliver and that the normalizer consumes.
package ast

import "github.com/emersion/rustre/lustre/token"

// Type is a base scalar type. A Shape (a non-empty sequence of Types) names
// the arity and element types of a flow; a Shape of length 1 is a scalar
// flow, longer Shapes name tuple flows.
type Type int

const (
	Int Type = iota
	Float
	Bool
	Unit
)

func (t Type) String() string {
	switch t {
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Unit:
		return "unit"
	default:
		return "?"
	}
}

// Param is a declared (name, type) pair: a node input, output, or local.
type Param struct {
	Name string
	Type Type
	Pos  token.Position
}

// Program is an ordered list of node declarations. Node names are unique
// within a Program.
type Program struct {
	Nodes []*Node
}

// Node is a named function from input flows to output flows, with internal
// state carried across ticks by its delay and call equations.
type Node struct {
	Name    string
	Inputs  []Param
	Outputs []Param
	Locals  []Param
	Equs    []*Equation
	Pos     token.Position
}

// InputShape and OutputShape return the ordered base types of a node's
// input and output parameter lists, used to check call arity and result
// arity against a callee's declared interface.
func (n *Node) InputShape() []Type  { return shapeOf(n.Inputs) }
func (n *Node) OutputShape() []Type { return shapeOf(n.Outputs) }

func shapeOf(ps []Param) []Type {
	s := make([]Type, len(ps))
	for i, p := range ps {
		s[i] = p.Type
	}
	return s
}

// Equation binds a Pattern (one name, or a tuple of names) to the value of
// an Expr, holding at every tick.
type Equation struct {
	Pattern []string // LHS names, in order; len==1 for a scalar binding
	Rhs     Expr
	Pos     token.Position
}

// Expr is implemented by every raw expression node.
type Expr interface {
	exprNode()
	Pos() token.Position
}

func (*LitExpr) exprNode()    {}
func (*VarExpr) exprNode()    {}
func (*UnaryExpr) exprNode()  {}
func (*BinaryExpr) exprNode() {}
func (*IfExpr) exprNode()     {}
func (*TupleExpr) exprNode()  {}
func (*CallExpr) exprNode()   {}
func (*FbyExpr) exprNode()    {}

// LitExpr is a literal constant of one base type.
type LitExpr struct {
	Type Type
	// exactly one of the following is meaningful, selected by Type
	Int   int64
	Float float64
	Bool  bool
	P     token.Position
}

func (e *LitExpr) Pos() token.Position { return e.P }

// VarExpr references a variable: an input, output, local, or (after
// normalization) a fresh temporary of the enclosing node.
type VarExpr struct {
	Name string
	P    token.Position
}

func (e *VarExpr) Pos() token.Position { return e.P }

// UnaryExpr applies one of the unary operators (Op{Neg,Not,
// IntOfFloat,FloatOfInt,Sin,Cos}) to X.
type UnaryExpr struct {
	Op Op
	X  Expr
	P  token.Position
}

func (e *UnaryExpr) Pos() token.Position { return e.P }

// Op enumerates unary and binary operators uniformly; which set is legal at
// a given node depends on arity, checked by the normalizer and emitter.
type Op int

const (
	OpNeg Op = iota
	OpNot
	OpIntOfFloat
	OpFloatOfInt
	OpSin
	OpCos

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpAddF
	OpSubF
	OpMulF
	OpDivF
	OpEq
	OpNeq
	OpLt
	OpLeq
	OpGt
	OpGeq
	OpAnd
	OpOr
)

type BinaryExpr struct {
	Op    Op
	X, Y  Expr
	P     token.Position
}

func (e *BinaryExpr) Pos() token.Position { return e.P }

// IfExpr is the point-wise conditional `if c then e1 else e2`.
type IfExpr struct {
	Cond, Then, Else Expr
	P                token.Position
}

func (e *IfExpr) Pos() token.Position { return e.P }

// TupleExpr constructs a tuple `(e1,...,en)`. Only legal as the entire RHS
// of an equation whose LHS pattern has matching arity; a tuple nested
// inside a larger expression is a Tuple-in-expression error.
type TupleExpr struct {
	Elems []Expr
	P     token.Position
}

func (e *TupleExpr) Pos() token.Position { return e.P }

// CallExpr applies a named node to arguments.
type CallExpr struct {
	Callee string
	Args   []Expr
	P      token.Position
}

func (e *CallExpr) Pos() token.Position { return e.P }

// FbyExpr is the delay operator: `X fby Y` equals X at tick 0 and the
// previous tick's Y thereafter.
type FbyExpr struct {
	X, Y Expr
	P    token.Position
}

func (e *FbyExpr) Pos() token.Position { return e.P }
