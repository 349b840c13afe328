// Package interp is a reference interpreter for the semantic-preservation
// oracle law emitted code is measured against: it evaluates a normalized
// and scheduled node's equations (ir.NNode, whose expressions are ast.Expr
// trees) directly, tick by tick, without ever generating target code. It exists only to give tests a
// second, independent way to compute a node's output trace.
package interp

import (
	"fmt"
	"math"

	"github.com/emersion/rustre/internal/ir"
	"github.com/emersion/rustre/lustre/ast"
)

// Value is a dynamically-typed scalar matching one of the source
// language's base types.
type Value struct {
	Type  ast.Type
	Int   int64
	Float float64
	Bool  bool
}

func Int(i int64) Value     { return Value{Type: ast.Int, Int: i} }
func Float(f float64) Value { return Value{Type: ast.Float, Float: f} }
func Bool(b bool) Value     { return Value{Type: ast.Bool, Bool: b} }

// State holds one node's delay registers and its callees' states across
// ticks, mirroring the *State record the code emitter generates.
type State struct {
	regs map[string]Value
	init map[string]bool
	subs map[string]*State
}

// NewState builds n's initial state: every delay register uninitialized,
// every callee's sub-state built recursively.
func NewState(n *ir.NNode, prog *ir.NProgram) *State {
	st := &State{regs: map[string]Value{}, init: map[string]bool{}, subs: map[string]*State{}}
	for _, eq := range n.Equs {
		if c, ok := eq.Rhs.(*ir.Call); ok {
			callee := prog.ByName(c.Callee)
			st.subs[eq.LHS[0]] = NewState(callee, prog)
		}
	}
	return st
}

// Step evaluates one tick of n given its inputs (keyed by input name) and
// advances st, returning the tick's outputs keyed by output name.
func Step(n *ir.NNode, prog *ir.NProgram, in map[string]Value, st *State) (map[string]Value, error) {
	env := make(map[string]Value, len(in)+len(n.Equs))
	for k, v := range in {
		env[k] = v
	}

	type commit struct {
		name string
		next ast.Expr
	}
	var commits []commit

	for _, eq := range n.Equs {
		switch r := eq.Rhs.(type) {
		case *ir.Atomic:
			v, err := eval(r.Expr, env)
			if err != nil {
				return nil, err
			}
			env[eq.LHS[0]] = v

		case *ir.Delay:
			// Only the register read (this tick's value) happens here, at
			// the equation's scheduled position. A delay's operands carry
			// no same-tick dependency edge, so Next may name a variable
			// this node defines later in the schedule; its evaluation is
			// deferred to the commit phase below, after every equation in
			// the node has run, exactly mirroring codegen's emission of
			// the register write into a trailing commit block.
			name := eq.LHS[0]
			var v Value
			if st.init[name] {
				v = st.regs[name]
			} else {
				iv, err := eval(r.Init, env)
				if err != nil {
					return nil, err
				}
				v = iv
			}
			env[name] = v
			commits = append(commits, commit{name: name, next: r.Next})

		case *ir.Call:
			callee := prog.ByName(r.Callee)
			if callee == nil {
				return nil, fmt.Errorf("call to undeclared node %q", r.Callee)
			}
			args := make(map[string]Value, len(r.Args))
			for i, a := range r.Args {
				v, err := eval(a, env)
				if err != nil {
					return nil, err
				}
				args[callee.Inputs[i].Name] = v
			}
			sub := st.subs[eq.LHS[0]]
			outs, err := Step(callee, prog, args, sub)
			if err != nil {
				return nil, err
			}
			for i, outName := range eq.LHS {
				env[outName] = outs[callee.Outputs[i].Name]
			}

		default:
			return nil, fmt.Errorf("unknown equation shape %T", eq.Rhs)
		}
	}

	// commit phase: every register read above used the previous tick's
	// value; only now do registers advance to this tick's, evaluating Next
	// against the fully-populated env so it can see every equation's result
	// regardless of the delay equation's own position in the schedule.
	for _, c := range commits {
		nv, err := eval(c.next, env)
		if err != nil {
			return nil, err
		}
		st.regs[c.name] = nv
		st.init[c.name] = true
	}

	result := make(map[string]Value, len(n.Outputs))
	for _, p := range n.Outputs {
		result[p.Name] = env[p.Name]
	}
	return result, nil
}

func eval(e ast.Expr, env map[string]Value) (Value, error) {
	switch x := e.(type) {
	case *ast.LitExpr:
		switch x.Type {
		case ast.Int:
			return Int(x.Int), nil
		case ast.Float:
			return Float(x.Float), nil
		case ast.Bool:
			return Bool(x.Bool), nil
		default:
			return Value{}, fmt.Errorf("literal of unsupported type")
		}

	case *ast.VarExpr:
		v, ok := env[x.Name]
		if !ok {
			return Value{}, fmt.Errorf("reference to unbound variable %q", x.Name)
		}
		return v, nil

	case *ast.UnaryExpr:
		xv, err := eval(x.X, env)
		if err != nil {
			return Value{}, err
		}
		switch x.Op {
		case ast.OpNeg:
			if xv.Type == ast.Float {
				return Float(-xv.Float), nil
			}
			return Int(-xv.Int), nil
		case ast.OpNot:
			return Bool(!xv.Bool), nil
		case ast.OpIntOfFloat:
			return Int(int64(xv.Float)), nil
		case ast.OpFloatOfInt:
			return Float(float64(xv.Int)), nil
		case ast.OpSin:
			return Float(math.Sin(xv.Float)), nil
		case ast.OpCos:
			return Float(math.Cos(xv.Float)), nil
		default:
			return Value{}, fmt.Errorf("unknown unary operator")
		}

	case *ast.BinaryExpr:
		xv, err := eval(x.X, env)
		if err != nil {
			return Value{}, err
		}
		yv, err := eval(x.Y, env)
		if err != nil {
			return Value{}, err
		}
		switch x.Op {
		case ast.OpAdd:
			return Int(xv.Int + yv.Int), nil
		case ast.OpSub:
			return Int(xv.Int - yv.Int), nil
		case ast.OpMul:
			return Int(xv.Int * yv.Int), nil
		case ast.OpDiv:
			return Int(xv.Int / yv.Int), nil
		case ast.OpAddF:
			return Float(xv.Float + yv.Float), nil
		case ast.OpSubF:
			return Float(xv.Float - yv.Float), nil
		case ast.OpMulF:
			return Float(xv.Float * yv.Float), nil
		case ast.OpDivF:
			return Float(xv.Float / yv.Float), nil
		case ast.OpEq:
			return Bool(equalValue(xv, yv)), nil
		case ast.OpNeq:
			return Bool(!equalValue(xv, yv)), nil
		case ast.OpLt:
			return Bool(lessValue(xv, yv)), nil
		case ast.OpLeq:
			return Bool(lessValue(xv, yv) || equalValue(xv, yv)), nil
		case ast.OpGt:
			return Bool(lessValue(yv, xv)), nil
		case ast.OpGeq:
			return Bool(lessValue(yv, xv) || equalValue(xv, yv)), nil
		case ast.OpAnd:
			return Bool(xv.Bool && yv.Bool), nil
		case ast.OpOr:
			return Bool(xv.Bool || yv.Bool), nil
		default:
			return Value{}, fmt.Errorf("unknown binary operator")
		}

	case *ast.IfExpr:
		cv, err := eval(x.Cond, env)
		if err != nil {
			return Value{}, err
		}
		if cv.Bool {
			return eval(x.Then, env)
		}
		return eval(x.Else, env)

	default:
		return Value{}, fmt.Errorf("unsupported expression form %T in atomic position", e)
	}
}

func equalValue(a, b Value) bool {
	switch a.Type {
	case ast.Int:
		return a.Int == b.Int
	case ast.Float:
		return a.Float == b.Float
	case ast.Bool:
		return a.Bool == b.Bool
	default:
		return true
	}
}

func lessValue(a, b Value) bool {
	if a.Type == ast.Float {
		return a.Float < b.Float
	}
	return a.Int < b.Int
}
