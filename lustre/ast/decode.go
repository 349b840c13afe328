package ast

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/emersion/rustre/lustre/token"
)

// Decode reads a raw AST as produced by an external surface-grammar
// parser (concrete syntax is out of scope for this package) from r. The
// wire format is a flat JSON tree: every Expr carries a discriminating
// "kind" field, since encoding/json cannot unmarshal into an interface on
// its own.
//
// This is the only place the raw AST touches a serialization format; the
// rest of the compiler only ever sees *Program.
func Decode(r io.Reader) (*Program, error) {
	var w wireProgram
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decoding program: %w", err)
	}
	return w.toProgram()
}

type wireProgram struct {
	Nodes []wireNode `json:"nodes"`
}

type wireParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type wireNode struct {
	Name    string      `json:"name"`
	Inputs  []wireParam `json:"inputs"`
	Outputs []wireParam `json:"outputs"`
	Locals  []wireParam `json:"locals"`
	Equs    []wireEqn   `json:"equations"`
}

type wireEqn struct {
	Pattern []string        `json:"pattern"`
	Rhs     json.RawMessage `json:"rhs"`
}

type wireExprHead struct {
	Kind string `json:"kind"`
}

func (w *wireProgram) toProgram() (*Program, error) {
	p := &Program{Nodes: make([]*Node, len(w.Nodes))}
	for i, wn := range w.Nodes {
		n, err := wn.toNode()
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		p.Nodes[i] = n
	}
	return p, nil
}

func (w *wireNode) toNode() (*Node, error) {
	n := &Node{Name: w.Name}
	var err error
	if n.Inputs, err = toParams(w.Inputs); err != nil {
		return nil, err
	}
	if n.Outputs, err = toParams(w.Outputs); err != nil {
		return nil, err
	}
	if n.Locals, err = toParams(w.Locals); err != nil {
		return nil, err
	}
	n.Equs = make([]*Equation, len(w.Equs))
	for i, we := range w.Equs {
		rhs, err := decodeExpr(we.Rhs)
		if err != nil {
			return nil, fmt.Errorf("node %q, equation %d: %w", w.Name, i, err)
		}
		n.Equs[i] = &Equation{Pattern: we.Pattern, Rhs: rhs}
	}
	return n, nil
}

func toParams(ws []wireParam) ([]Param, error) {
	ps := make([]Param, len(ws))
	for i, wp := range ws {
		t, err := typeOf(wp.Type)
		if err != nil {
			return nil, err
		}
		ps[i] = Param{Name: wp.Name, Type: t}
	}
	return ps, nil
}

func typeOf(s string) (Type, error) {
	switch s {
	case "int":
		return Int, nil
	case "float":
		return Float, nil
	case "bool":
		return Bool, nil
	case "unit":
		return Unit, nil
	default:
		return 0, fmt.Errorf("unknown type %q", s)
	}
}

var unaryOps = map[string]Op{
	"neg": OpNeg, "not": OpNot,
	"int_of_float": OpIntOfFloat, "float_of_int": OpFloatOfInt,
	"sin": OpSin, "cos": OpCos,
}

var binaryOps = map[string]Op{
	"add": OpAdd, "sub": OpSub, "mul": OpMul, "div": OpDiv,
	"addf": OpAddF, "subf": OpSubF, "mulf": OpMulF, "divf": OpDivF,
	"eq": OpEq, "neq": OpNeq, "lt": OpLt, "leq": OpLeq,
	"gt": OpGt, "geq": OpGeq, "and": OpAnd, "or": OpOr,
}

func decodeExpr(raw json.RawMessage) (Expr, error) {
	var head wireExprHead
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Kind {
	case "lit":
		var w struct {
			Type  string  `json:"type"`
			Int   int64   `json:"int"`
			Float float64 `json:"float"`
			Bool  bool    `json:"bool"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		t, err := typeOf(w.Type)
		if err != nil {
			return nil, err
		}
		return &LitExpr{Type: t, Int: w.Int, Float: w.Float, Bool: w.Bool, P: token.NoPos}, nil

	case "var":
		var w struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &VarExpr{Name: w.Name, P: token.NoPos}, nil

	case "unary":
		var w struct {
			Op string          `json:"op"`
			X  json.RawMessage `json:"x"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		op, ok := unaryOps[w.Op]
		if !ok {
			return nil, fmt.Errorf("unknown unary operator %q", w.Op)
		}
		x, err := decodeExpr(w.X)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: op, X: x, P: token.NoPos}, nil

	case "binary":
		var w struct {
			Op string          `json:"op"`
			X  json.RawMessage `json:"x"`
			Y  json.RawMessage `json:"y"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		op, ok := binaryOps[w.Op]
		if !ok {
			return nil, fmt.Errorf("unknown binary operator %q", w.Op)
		}
		x, err := decodeExpr(w.X)
		if err != nil {
			return nil, err
		}
		y, err := decodeExpr(w.Y)
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: op, X: x, Y: y, P: token.NoPos}, nil

	case "if":
		var w struct {
			Cond json.RawMessage `json:"cond"`
			Then json.RawMessage `json:"then"`
			Else json.RawMessage `json:"else"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		cond, err := decodeExpr(w.Cond)
		if err != nil {
			return nil, err
		}
		then, err := decodeExpr(w.Then)
		if err != nil {
			return nil, err
		}
		els, err := decodeExpr(w.Else)
		if err != nil {
			return nil, err
		}
		return &IfExpr{Cond: cond, Then: then, Else: els, P: token.NoPos}, nil

	case "tuple":
		var w struct {
			Elems []json.RawMessage `json:"elems"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		elems := make([]Expr, len(w.Elems))
		for i, re := range w.Elems {
			e, err := decodeExpr(re)
			if err != nil {
				return nil, err
			}
			elems[i] = e
		}
		return &TupleExpr{Elems: elems, P: token.NoPos}, nil

	case "call":
		var w struct {
			Callee string            `json:"callee"`
			Args   []json.RawMessage `json:"args"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		args := make([]Expr, len(w.Args))
		for i, ra := range w.Args {
			a, err := decodeExpr(ra)
			if err != nil {
				return nil, err
			}
			args[i] = a
		}
		return &CallExpr{Callee: w.Callee, Args: args, P: token.NoPos}, nil

	case "fby":
		var w struct {
			X json.RawMessage `json:"x"`
			Y json.RawMessage `json:"y"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		x, err := decodeExpr(w.X)
		if err != nil {
			return nil, err
		}
		y, err := decodeExpr(w.Y)
		if err != nil {
			return nil, err
		}
		return &FbyExpr{X: x, Y: y, P: token.NoPos}, nil

	default:
		return nil, fmt.Errorf("unknown expression kind %q", head.Kind)
	}
}
