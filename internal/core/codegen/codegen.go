// Package codegen emits, for every node of a scheduled, normalized
// program, a persistent state record and a step function whose control
// flow is straight-line Go, plus one outer driver for the designated
// entry node.
//
// The target language is Go. Emission walks the scheduled equation list
// once per node, building Go source text directly rather than an
// intermediate expression tree.
package codegen

import (
	"fmt"
	"go/format"
	"strconv"
	"strings"
	"unicode"

	"github.com/emersion/rustre/internal/ir"
	"github.com/emersion/rustre/lustre/ast"
	"github.com/emersion/rustre/lustre/errors"
	"github.com/emersion/rustre/lustre/token"
)

// runtimeImportPath is where the sin/cos primitives live; see
// internal/codegen/runtime.
const runtimeImportPath = "github.com/emersion/rustre/internal/codegen/runtime"

// Emit walks prog (scheduled and normalized) and returns gofmt'd Go source
// implementing every node, with entry wrapped in an outer driver.
func Emit(prog *ir.NProgram, entry string) ([]byte, error) {
	entryNode := prog.ByName(entry)
	if entryNode == nil {
		return nil, errors.Newf(errors.Codegen, entry, token.NoPos, "entry node %q not found", entry)
	}

	e := &emitter{prog: prog}
	var body strings.Builder
	for _, n := range prog.Nodes {
		s, err := e.emitNode(n)
		if err != nil {
			return nil, err
		}
		body.WriteString(s)
	}
	body.WriteString(e.emitDriver(entryNode))

	var file strings.Builder
	file.WriteString("// Code generated by lustrec. DO NOT EDIT.\n\n")
	file.WriteString("package generated\n\n")
	if e.usesRuntime {
		fmt.Fprintf(&file, "import %q\n\n", runtimeImportPath)
	}
	file.WriteString(body.String())

	out, err := format.Source([]byte(file.String()))
	if err != nil {
		return nil, errors.Wrapf(err, errors.Codegen, entry, token.NoPos, "formatting generated code: %v", err)
	}
	return out, nil
}

type emitter struct {
	prog        *ir.NProgram
	usesRuntime bool
}

// goName capitalizes a source node name into an exported Go identifier
// (e.g. "nat" -> "Nat"), used to build each node's *State/*Inputs/
// *Outputs type names and its Step/New functions.
func goName(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

var goKeywords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true, "for": true,
	"func": true, "go": true, "goto": true, "if": true, "import": true,
	"interface": true, "map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true, "var": true,
}

// mangle renders a normalized-IR name (a source identifier or a fresh
// "$t<n>" temporary) as a valid Go identifier. Temporaries become
// "_tmp<n>"; a source identifier that itself starts with "_tmp" gets the
// same "_" suffix as a Go keyword, so temporaries never collide with a
// mangled source name.
func mangle(name string) string {
	if strings.HasPrefix(name, "$t") {
		return "_tmp" + name[2:]
	}
	if goKeywords[name] || strings.HasPrefix(name, "_tmp") {
		return name + "_"
	}
	return name
}

func goType(t ast.Type) string {
	switch t {
	case ast.Int:
		return "int64"
	case ast.Float:
		return "float64"
	case ast.Bool:
		return "bool"
	case ast.Unit:
		return "struct{}"
	default:
		return "any"
	}
}

func binOp(op ast.Op) (string, bool) {
	switch op {
	case ast.OpAdd, ast.OpAddF:
		return "+", true
	case ast.OpSub, ast.OpSubF:
		return "-", true
	case ast.OpMul, ast.OpMulF:
		return "*", true
	case ast.OpDiv, ast.OpDivF:
		return "/", true
	case ast.OpEq:
		return "==", true
	case ast.OpNeq:
		return "!=", true
	case ast.OpLt:
		return "<", true
	case ast.OpLeq:
		return "<=", true
	case ast.OpGt:
		return ">", true
	case ast.OpGeq:
		return ">=", true
	case ast.OpAnd:
		return "&&", true
	case ast.OpOr:
		return "||", true
	default:
		return "", false
	}
}

// renderExpr translates an atomic expression tree (leaves are literals
// or variables, internal nodes are unary/binary operators or if) into a
// single Go expression. Every numeric literal is explicitly converted so
// Go's untyped-constant defaulting (int, not int64) never silently
// produces the wrong width.
func (e *emitter) renderExpr(n *ir.NNode, x ast.Expr) (string, error) {
	switch v := x.(type) {
	case *ast.LitExpr:
		switch v.Type {
		case ast.Int:
			return fmt.Sprintf("int64(%d)", v.Int), nil
		case ast.Float:
			return fmt.Sprintf("float64(%s)", strconv.FormatFloat(v.Float, 'g', -1, 64)), nil
		case ast.Bool:
			return strconv.FormatBool(v.Bool), nil
		case ast.Unit:
			return "struct{}{}", nil
		default:
			return "", errors.Newf(errors.Codegen, n.Name, v.P, "literal of unknown type")
		}

	case *ast.VarExpr:
		return mangle(v.Name), nil

	case *ast.UnaryExpr:
		xs, err := e.renderExpr(n, v.X)
		if err != nil {
			return "", err
		}
		switch v.Op {
		case ast.OpNeg:
			return fmt.Sprintf("(-%s)", xs), nil
		case ast.OpNot:
			return fmt.Sprintf("(!%s)", xs), nil
		case ast.OpIntOfFloat:
			return fmt.Sprintf("int64(%s)", xs), nil
		case ast.OpFloatOfInt:
			return fmt.Sprintf("float64(%s)", xs), nil
		case ast.OpSin:
			e.usesRuntime = true
			return fmt.Sprintf("runtime.Sin(%s)", xs), nil
		case ast.OpCos:
			e.usesRuntime = true
			return fmt.Sprintf("runtime.Cos(%s)", xs), nil
		default:
			return "", errors.Newf(errors.Codegen, n.Name, v.P, "unknown unary operator")
		}

	case *ast.BinaryExpr:
		xs, err := e.renderExpr(n, v.X)
		if err != nil {
			return "", err
		}
		ys, err := e.renderExpr(n, v.Y)
		if err != nil {
			return "", err
		}
		op, ok := binOp(v.Op)
		if !ok {
			return "", errors.Newf(errors.Codegen, n.Name, v.P, "unknown binary operator")
		}
		return fmt.Sprintf("(%s %s %s)", xs, op, ys), nil

	case *ast.IfExpr:
		t, err := ir.ExprType(n, x)
		if err != nil {
			return "", errors.Newf(errors.Codegen, n.Name, v.P, "%v", err)
		}
		cs, err := e.renderExpr(n, v.Cond)
		if err != nil {
			return "", err
		}
		ts, err := e.renderExpr(n, v.Then)
		if err != nil {
			return "", err
		}
		es, err := e.renderExpr(n, v.Else)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("func() %s { if %s { return %s }; return %s }()", goType(t), cs, ts, es), nil

	default:
		return "", errors.Newf(errors.Codegen, n.Name, x.Pos(), "unsupported expression form %T in target position", x)
	}
}

// emitNode emits one node's *State/*Inputs/*Outputs types, constructor,
// and step function.
func (e *emitter) emitNode(n *ir.NNode) (string, error) {
	typeName := goName(n.Name)
	var sb strings.Builder

	// --- state record: one register per delay, one sub-state per call.
	fmt.Fprintf(&sb, "// %sState holds %s's delay registers and callee states across ticks.\n", typeName, n.Name)
	fmt.Fprintf(&sb, "type %sState struct {\n", typeName)
	for _, eq := range n.Equs {
		switch r := eq.Rhs.(type) {
		case *ir.Delay:
			name := mangle(eq.LHS[0])
			fmt.Fprintf(&sb, "\treg_%s  %s\n\tinit_%s bool\n", name, goType(r.Type), name)
		case *ir.Call:
			callee := e.prog.ByName(r.Callee)
			if callee == nil {
				return "", errors.Newf(errors.Codegen, n.Name, eq.Pos, "call to undeclared node %q", r.Callee)
			}
			fmt.Fprintf(&sb, "\tsub_%s %sState\n", mangle(eq.LHS[0]), goName(r.Callee))
		}
	}
	sb.WriteString("}\n\n")

	// --- inputs / outputs
	fmt.Fprintf(&sb, "type %sInputs struct {\n", typeName)
	for _, p := range n.Inputs {
		fmt.Fprintf(&sb, "\t%s %s\n", mangle(p.Name), goType(p.Type))
	}
	sb.WriteString("}\n\n")

	fmt.Fprintf(&sb, "type %sOutputs struct {\n", typeName)
	for _, p := range n.Outputs {
		fmt.Fprintf(&sb, "\t%s %s\n", mangle(p.Name), goType(p.Type))
	}
	sb.WriteString("}\n\n")

	// --- constructor
	fmt.Fprintf(&sb, "// New%sState returns %s's initial state: every delay register\n", typeName, n.Name)
	fmt.Fprintf(&sb, "// starts uninitialized, so its first read falls back to the fby's\n")
	fmt.Fprintf(&sb, "// first operand.\n")
	fmt.Fprintf(&sb, "func New%sState() *%sState {\n\treturn &%sState{\n", typeName, typeName, typeName)
	for _, eq := range n.Equs {
		if r, ok := eq.Rhs.(*ir.Call); ok {
			fmt.Fprintf(&sb, "\t\tsub_%s: *New%sState(),\n", mangle(eq.LHS[0]), goName(r.Callee))
		}
	}
	sb.WriteString("\t}\n}\n\n")

	// --- step function
	fmt.Fprintf(&sb, "// Step%s advances %s by exactly one tick.\n", typeName, n.Name)
	fmt.Fprintf(&sb, "func Step%s(in %sInputs, state *%sState) %sOutputs {\n", typeName, typeName, typeName, typeName)
	for _, p := range n.Inputs {
		fmt.Fprintf(&sb, "\t%s := in.%s\n", mangle(p.Name), mangle(p.Name))
	}

	var commit strings.Builder
	for _, eq := range n.Equs {
		if err := e.emitEquation(&sb, &commit, n, eq); err != nil {
			return "", err
		}
	}

	sb.WriteString("\n\t// commit phase: every register read above used the previous\n")
	sb.WriteString("\t// tick's value; only now do registers advance to this tick's.\n")
	sb.WriteString(commit.String())

	fmt.Fprintf(&sb, "\n\treturn %sOutputs{\n", typeName)
	for _, p := range n.Outputs {
		fmt.Fprintf(&sb, "\t\t%s: %s,\n", mangle(p.Name), mangle(p.Name))
	}
	sb.WriteString("\t}\n}\n\n")

	return sb.String(), nil
}

func (e *emitter) emitEquation(sb, commit *strings.Builder, n *ir.NNode, eq *ir.NEquation) error {
	switch r := eq.Rhs.(type) {
	case *ir.Atomic:
		name := mangle(eq.LHS[0])
		expr, err := e.renderExpr(n, r.Expr)
		if err != nil {
			return err
		}
		fmt.Fprintf(sb, "\t%s := %s\n", name, expr)

	case *ir.Delay:
		name := mangle(eq.LHS[0])
		regField := "reg_" + name
		initField := "init_" + name
		initExpr, err := e.renderExpr(n, r.Init)
		if err != nil {
			return err
		}
		nextExpr, err := e.renderExpr(n, r.Next)
		if err != nil {
			return err
		}
		fmt.Fprintf(sb, "\tvar %s %s\n\tif state.%s {\n\t\t%s = state.%s\n\t} else {\n\t\t%s = %s\n\t}\n",
			name, goType(r.Type), initField, name, regField, name, initExpr)
		fmt.Fprintf(commit, "\tstate.%s = %s\n\tstate.%s = true\n", regField, nextExpr, initField)

	case *ir.Call:
		callee := e.prog.ByName(r.Callee)
		if callee == nil {
			return errors.Newf(errors.Codegen, n.Name, eq.Pos, "call to undeclared node %q", r.Callee)
		}
		calleeType := goName(r.Callee)
		callVar := "_call_" + mangle(eq.LHS[0])
		subField := "sub_" + mangle(eq.LHS[0])

		args := make([]string, len(r.Args))
		for i, a := range r.Args {
			as, err := e.renderExpr(n, a)
			if err != nil {
				return err
			}
			args[i] = fmt.Sprintf("%s: %s", mangle(callee.Inputs[i].Name), as)
		}
		fmt.Fprintf(sb, "\t%s := Step%s(%sInputs{%s}, &state.%s)\n",
			callVar, calleeType, calleeType, strings.Join(args, ", "), subField)
		for i, outName := range eq.LHS {
			fmt.Fprintf(sb, "\t%s := %s.%s\n", mangle(outName), callVar, mangle(callee.Outputs[i].Name))
		}

	default:
		return errors.Newf(errors.Codegen, n.Name, eq.Pos, "unknown equation shape %T", eq.Rhs)
	}
	return nil
}

// emitDriver wraps the entry node in an outer driver: a caller-supplied
// next/done pair stands in for the tick source and loop condition, both
// left to the surrounding runtime.
func (e *emitter) emitDriver(entry *ir.NNode) string {
	typeName := goName(entry.Name)
	return fmt.Sprintf(`// Run drives %s, advancing it one tick per call to next, until next
// reports no more input. done receives each tick's outputs in order.
func Run(next func() (%sInputs, bool), done func(%sOutputs)) {
	state := New%sState()
	for {
		in, ok := next()
		if !ok {
			return
		}
		done(Step%s(in, state))
	}
}
`, entry.Name, typeName, typeName, typeName, typeName)
}
