// Package normalize lowers a raw node, whose expressions may nest fby, node
// calls, and tuple-returning forms arbitrarily, into a node whose equations
// each bind a pattern to exactly one of the three canonical RHS shapes
// (atomic, delay, call).
//
// The lowering is a single recursive walk per node: every sub-expression is
// lowered in place and, when a delay or a node call is encountered away
// from equation top level, it is lifted to a fresh auxiliary equation and
// replaced in situ by a reference to the fresh name(s) it defines.
package normalize

import (
	"fmt"

	"github.com/emersion/rustre/internal/ir"
	"github.com/emersion/rustre/lustre/ast"
	"github.com/emersion/rustre/lustre/errors"
	"github.com/emersion/rustre/lustre/token"
)

// freshPrefix can never collide with a source identifier: '$' is not a
// legal identifier character in the source grammar.
const freshPrefix = "$t"

// Program normalizes every node of prog. Node names must be unique; the
// first error encountered, in any node, aborts the whole compilation.
func Program(prog *ast.Program) (*ir.NProgram, error) {
	byName := make(map[string]*ast.Node, len(prog.Nodes))
	for _, n := range prog.Nodes {
		if _, dup := byName[n.Name]; dup {
			return nil, errors.Newf(errors.Normalize, n.Name, n.Pos, "node %q declared more than once", n.Name)
		}
		byName[n.Name] = n
	}

	out := &ir.NProgram{}
	for _, n := range prog.Nodes {
		nn, err := normalizeNode(n, byName)
		if err != nil {
			return nil, err
		}
		out.Nodes = append(out.Nodes, nn)
	}
	return out, nil
}

type ctx struct {
	node   *ir.NNode
	byName map[string]*ast.Node
	fresh  int
}

func (c *ctx) errf(pos token.Position, format string, args ...interface{}) error {
	return errors.Newf(errors.Normalize, c.node.Name, pos, format, args...)
}

func normalizeNode(n *ast.Node, byName map[string]*ast.Node) (*ir.NNode, error) {
	nn := &ir.NNode{
		Name:    n.Name,
		Inputs:  n.Inputs,
		Outputs: n.Outputs,
		Locals:  append([]ast.Param(nil), n.Locals...),
		Pos:     n.Pos,
	}
	c := &ctx{node: nn, byName: byName}

	defined := make(map[string]bool, len(n.Outputs)+len(n.Locals))
	for _, eq := range n.Equs {
		if err := c.lowerTop(eq.Pattern, eq.Rhs, eq.Pos, defined); err != nil {
			return nil, err
		}
	}

	for _, p := range n.Outputs {
		if !defined[p.Name] {
			return nil, c.errf(p.Pos, "output %q is never defined", p.Name)
		}
	}
	for _, p := range n.Locals {
		if !defined[p.Name] {
			return nil, c.errf(p.Pos, "local %q is never defined", p.Name)
		}
	}
	return nn, nil
}

// markDefined enforces the SSA invariant: every output and local is
// defined by exactly one equation.
func (c *ctx) markDefined(name string, pos token.Position, defined map[string]bool) error {
	if defined[name] {
		return c.errf(pos, "%q is defined by more than one equation", name)
	}
	defined[name] = true
	return nil
}

func (c *ctx) push(lhs []string, rhs ir.Rhs, pos token.Position) {
	c.node.Equs = append(c.node.Equs, &ir.NEquation{
		LHS: lhs, Rhs: rhs, Pos: pos, SourceIndex: len(c.node.Equs),
	})
}

func (c *ctx) newTemp(t ast.Type) string {
	name := fmt.Sprintf("%s%d", freshPrefix, c.fresh)
	c.fresh++
	c.node.Locals = append(c.node.Locals, ast.Param{Name: name, Type: t})
	return name
}

// lowerTop handles one source-level equation, including the tuple-literal
// splitting rule: a pattern of width N bound to an N-tuple literal is
// rewritten into N separate single-name equations.
func (c *ctx) lowerTop(pattern []string, rhs ast.Expr, pos token.Position, defined map[string]bool) error {
	if tup, ok := rhs.(*ast.TupleExpr); ok {
		if len(tup.Elems) != len(pattern) {
			return c.errf(pos, "pattern of width %d does not match tuple of width %d", len(pattern), len(tup.Elems))
		}
		for i, el := range tup.Elems {
			if err := c.lowerTop([]string{pattern[i]}, el, el.Pos(), defined); err != nil {
				return err
			}
		}
		return nil
	}

	switch x := rhs.(type) {
	case *ast.CallExpr:
		return c.lowerCallTop(pattern, x, pos, defined)
	case *ast.FbyExpr:
		if len(pattern) != 1 {
			return c.errf(pos, "pattern of width %d does not match scalar fby", len(pattern))
		}
		return c.lowerFbyTop(pattern[0], x, pos, defined)
	default:
		if len(pattern) != 1 {
			return c.errf(pos, "pattern of width %d does not match scalar expression", len(pattern))
		}
		atomic, err := c.atomic(rhs)
		if err != nil {
			return err
		}
		if err := c.markDefined(pattern[0], pos, defined); err != nil {
			return err
		}
		c.push(pattern, &ir.Atomic{Expr: atomic}, pos)
		return nil
	}
}

func (c *ctx) lowerCallTop(pattern []string, call *ast.CallExpr, pos token.Position, defined map[string]bool) error {
	callee, ok := c.byName[call.Callee]
	if !ok {
		return c.errf(pos, "call to undeclared node %q", call.Callee)
	}
	if len(call.Args) != len(callee.Inputs) {
		return c.errf(pos, "node %q expects %d argument(s), got %d", call.Callee, len(callee.Inputs), len(call.Args))
	}
	if len(pattern) != len(callee.Outputs) {
		return c.errf(pos, "pattern of width %d does not match %q's %d output(s)", len(pattern), call.Callee, len(callee.Outputs))
	}
	args := make([]ast.Expr, len(call.Args))
	for i, a := range call.Args {
		aa, err := c.atomic(a)
		if err != nil {
			return err
		}
		args[i] = aa
	}
	for _, name := range pattern {
		if err := c.markDefined(name, pos, defined); err != nil {
			return err
		}
	}
	c.push(pattern, &ir.Call{Callee: call.Callee, Args: args}, pos)
	return nil
}

func (c *ctx) lowerFbyTop(name string, fby *ast.FbyExpr, pos token.Position, defined map[string]bool) error {
	l0, t0, err := c.leaf(fby.X)
	if err != nil {
		return err
	}
	l1, t1, err := c.leaf(fby.Y)
	if err != nil {
		return err
	}
	if t0 != t1 {
		return c.errf(pos, "fby operands have different types: %s vs %s", t0, t1)
	}
	if err := c.markDefined(name, pos, defined); err != nil {
		return err
	}
	c.push([]string{name}, &ir.Delay{Init: l0, Next: l1, Type: t0}, pos)
	return nil
}

// liftCall lowers a node call appearing away from equation top level: its
// arguments are normalized, fresh names matching the callee's output
// shape are allocated, and the call is lifted to a named auxiliary
// equation. Returns the fresh name(s) standing in for the call's result.
func (c *ctx) liftCall(call *ast.CallExpr) ([]string, error) {
	callee, ok := c.byName[call.Callee]
	if !ok {
		return nil, c.errf(call.P, "call to undeclared node %q", call.Callee)
	}
	if len(call.Args) != len(callee.Inputs) {
		return nil, c.errf(call.P, "node %q expects %d argument(s), got %d", call.Callee, len(callee.Inputs), len(call.Args))
	}
	args := make([]ast.Expr, len(call.Args))
	for i, a := range call.Args {
		aa, err := c.atomic(a)
		if err != nil {
			return nil, err
		}
		args[i] = aa
	}
	fresh := make([]string, len(callee.Outputs))
	for i, o := range callee.Outputs {
		fresh[i] = c.newTemp(o.Type)
	}
	c.push(fresh, &ir.Call{Callee: call.Callee, Args: args}, call.P)
	return fresh, nil
}

// liftFby lowers an fby appearing away from equation top level, exactly
// as lowerFbyTop does for the top-level case, but returning the fresh
// name it allocates instead of consuming a caller-supplied one.
func (c *ctx) liftFby(fby *ast.FbyExpr) (string, error) {
	l0, t0, err := c.leaf(fby.X)
	if err != nil {
		return "", err
	}
	l1, t1, err := c.leaf(fby.Y)
	if err != nil {
		return "", err
	}
	if t0 != t1 {
		return "", c.errf(fby.P, "fby operands have different types: %s vs %s", t0, t1)
	}
	name := c.newTemp(t0)
	c.push([]string{name}, &ir.Delay{Init: l0, Next: l1, Type: t0}, fby.P)
	return name, nil
}

// atomic recursively lowers e into an expression tree containing no node
// calls, no fby, and no nested tuples, lifting any it finds to fresh
// auxiliary equations.
func (c *ctx) atomic(e ast.Expr) (ast.Expr, error) {
	switch x := e.(type) {
	case *ast.LitExpr:
		return x, nil

	case *ast.VarExpr:
		if _, ok := c.node.TypeOf(x.Name); !ok {
			return nil, c.errf(x.P, "reference to undeclared variable %q", x.Name)
		}
		return x, nil

	case *ast.UnaryExpr:
		xx, err := c.atomic(x.X)
		if err != nil {
			return nil, err
		}
		u := &ast.UnaryExpr{Op: x.Op, X: xx, P: x.P}
		if _, err := c.exprType(u); err != nil {
			return nil, err
		}
		return u, nil

	case *ast.BinaryExpr:
		xx, err := c.atomic(x.X)
		if err != nil {
			return nil, err
		}
		yy, err := c.atomic(x.Y)
		if err != nil {
			return nil, err
		}
		b := &ast.BinaryExpr{Op: x.Op, X: xx, Y: yy, P: x.P}
		if _, err := c.exprType(b); err != nil {
			return nil, err
		}
		return b, nil

	case *ast.IfExpr:
		cc, err := c.atomic(x.Cond)
		if err != nil {
			return nil, err
		}
		tt, err := c.atomic(x.Then)
		if err != nil {
			return nil, err
		}
		ee, err := c.atomic(x.Else)
		if err != nil {
			return nil, err
		}
		return &ast.IfExpr{Cond: cc, Then: tt, Else: ee, P: x.P}, nil

	case *ast.TupleExpr:
		return nil, c.errf(x.P, "tuple expression not allowed here; tuples may only appear as a whole equation's right-hand side")

	case *ast.CallExpr:
		refs, err := c.liftCall(x)
		if err != nil {
			return nil, err
		}
		if len(refs) != 1 {
			return nil, c.errf(x.P, "node %q returns %d values, but a single value is required here", x.Callee, len(refs))
		}
		return &ast.VarExpr{Name: refs[0], P: x.P}, nil

	case *ast.FbyExpr:
		name, err := c.liftFby(x)
		if err != nil {
			return nil, err
		}
		return &ast.VarExpr{Name: name, P: x.P}, nil

	default:
		return nil, c.errf(e.Pos(), "unsupported expression form %T", e)
	}
}

// leaf lowers e to an atomic expression and, if that expression is not
// already a bare literal or variable, lifts it to a fresh auxiliary
// equation so that the result is always a var_or_literal — the shape
// required of both operands of a normalized fby.
func (c *ctx) leaf(e ast.Expr) (ast.Expr, ast.Type, error) {
	a, err := c.atomic(e)
	if err != nil {
		return nil, 0, err
	}
	switch a.(type) {
	case *ast.LitExpr, *ast.VarExpr:
		t, err := c.exprType(a)
		return a, t, err
	default:
		t, err := c.exprType(a)
		if err != nil {
			return nil, 0, err
		}
		name := c.newTemp(t)
		c.push([]string{name}, &ir.Atomic{Expr: a}, e.Pos())
		return &ast.VarExpr{Name: name, P: e.Pos()}, t, nil
	}
}

// exprType determines the base type of an atomic expression tree from its
// declared leaves, delegating to ir.ExprType (shared with the code
// emitter) and re-wrapping its error as a positioned diagnostic of this
// pass. This is not type inference over the program — types of
// inputs/outputs/locals are always declared — it only propagates those
// declared types through an already-lowered expression.
func (c *ctx) exprType(e ast.Expr) (ast.Type, error) {
	t, err := ir.ExprType(c.node, e)
	if err != nil {
		return 0, c.errf(e.Pos(), "%v", err)
	}
	return t, nil
}
