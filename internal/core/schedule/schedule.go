// Package schedule reorders each normalized node's equations so that
// every same-tick use of a name follows its defining equation, or rejects
// the node with a cyclic-dependency report.
//
// The dependency graph, its topological order, and its cycle detection
// are delegated to github.com/katalvlaran/lvlath, whose dfs package
// already implements exactly this DFS-with-three-color-marking algorithm
// (see dfs.TopologicalSort / dfs.DetectCycles) over its core.Graph type.
// The scheduler's own job is building that graph from the dependency
// extraction rules below and translating lvlath's vertex IDs back to
// equation LHS names for diagnostics.
package schedule

import (
	"fmt"
	"strings"

	stderrors "errors"

	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dfs"

	"github.com/emersion/rustre/internal/ir"
	"github.com/emersion/rustre/lustre/ast"
	lusterrors "github.com/emersion/rustre/lustre/errors"
)

// Program schedules every node of prog independently; node order in the
// program is otherwise untouched.
func Program(prog *ir.NProgram) (*ir.NProgram, error) {
	out := &ir.NProgram{Nodes: make([]*ir.NNode, len(prog.Nodes))}
	for i, n := range prog.Nodes {
		sn, err := Node(n)
		if err != nil {
			return nil, err
		}
		out.Nodes[i] = sn
	}
	return out, nil
}

// Node reorders n's equations into a valid schedule, or returns a
// cyclic-dependency error naming the equations involved.
func Node(n *ir.NNode) (*ir.NNode, error) {
	g := core.NewGraph(core.WithDirected(true), core.WithLoops())

	ids := make([]string, len(n.Equs))
	idxOf := make(map[string]int, len(n.Equs))
	defEq := make(map[string]int, len(n.Equs)) // name -> defining equation index

	for i, eq := range n.Equs {
		ids[i] = vertexID(eq.SourceIndex, eq.LHS)
		idxOf[ids[i]] = i
		if err := g.AddVertex(ids[i]); err != nil {
			return nil, lusterrors.Wrapf(err, lusterrors.Schedule, n.Name, eq.Pos, "building dependency graph: %v", err)
		}
		for _, name := range eq.LHS {
			defEq[name] = i
		}
	}

	for i, eq := range n.Equs {
		for _, name := range sameTickDeps(eq.Rhs) {
			j, ok := defEq[name]
			if !ok {
				continue // input, or otherwise already defined at tick start
			}
			if _, err := g.AddEdge(ids[j], ids[i], 0); err != nil {
				return nil, lusterrors.Wrapf(err, lusterrors.Schedule, n.Name, eq.Pos, "building dependency graph: %v", err)
			}
		}
	}

	order, err := dfs.TopologicalSort(g)
	if err != nil {
		if stderrors.Is(err, dfs.ErrCycleDetected) {
			return nil, cycleError(n, g)
		}
		return nil, lusterrors.Wrapf(err, lusterrors.Schedule, n.Name, n.Pos, "scheduling failed: %v", err)
	}

	scheduled := &ir.NNode{
		Name:    n.Name,
		Inputs:  n.Inputs,
		Outputs: n.Outputs,
		Locals:  n.Locals,
		Pos:     n.Pos,
		Equs:    make([]*ir.NEquation, len(order)),
	}
	for k, id := range order {
		scheduled.Equs[k] = n.Equs[idxOf[id]]
	}
	return scheduled, nil
}

// sourceIndexCeiling bounds the source indices vertexID can invert; no node
// comes close to this many equations.
const sourceIndexCeiling = 1 << 20

// vertexID embeds the equation's original source index, inverted, as a
// zero-padded prefix.
//
// dfs.TopologicalSort (see lvlath/dfs/topological.go) seeds its DFS from
// core.Graph.Vertices(), which is sorted ascending, and produces its result
// by reversing DFS postorder. For two vertices with no edge between them,
// whichever sorts first is visited (and so postorder-pushed) first, and
// reversal then places it LAST. Ascending vertex IDs therefore yield
// descending output order for ties — the opposite of the mandated "ties
// broken by original source order". Encoding the complement (ceiling - sourceIndex)
// inverts the sort so the smaller original source index sorts later,
// is visited later, is postorder-pushed later, and after the final
// reversal lands earlier — restoring the mandated order.
func vertexID(sourceIndex int, lhs []string) string {
	return fmt.Sprintf("%07d:%s", sourceIndexCeiling-sourceIndex, strings.Join(lhs, ","))
}

// sameTickDeps returns the names a same-tick read of rhs depends on: atomic
// and call equations contribute every variable they read; delay equations
// contribute none, since both of fby's operands are decoupled from
// current-tick ordering.
func sameTickDeps(rhs ir.Rhs) []string {
	switch r := rhs.(type) {
	case *ir.Atomic:
		return collectVars(r.Expr, nil)
	case *ir.Call:
		var names []string
		for _, a := range r.Args {
			names = collectVars(a, names)
		}
		return names
	case *ir.Delay:
		return nil
	default:
		return nil
	}
}

func collectVars(e ast.Expr, into []string) []string {
	switch x := e.(type) {
	case *ast.VarExpr:
		return append(into, x.Name)
	case *ast.LitExpr:
		return into
	case *ast.UnaryExpr:
		return collectVars(x.X, into)
	case *ast.BinaryExpr:
		into = collectVars(x.X, into)
		return collectVars(x.Y, into)
	case *ast.IfExpr:
		into = collectVars(x.Cond, into)
		into = collectVars(x.Then, into)
		return collectVars(x.Else, into)
	default:
		return into
	}
}

// cycleError translates lvlath's cycle report (a list of vertex IDs) back
// into the LHS names of the equations involved, so the driver's single
// diagnostic line names the offending equations rather than opaque
// vertex IDs.
func cycleError(n *ir.NNode, g *core.Graph) error {
	_, cycles, derr := dfs.DetectCycles(g)
	if derr != nil || len(cycles) == 0 {
		return lusterrors.Newf(lusterrors.Schedule, n.Name, n.Pos, "cyclic dependency among node %q's equations", n.Name)
	}
	byID := make(map[string]int, len(n.Equs))
	for i, eq := range n.Equs {
		byID[vertexID(eq.SourceIndex, eq.LHS)] = i
	}
	names := make([]string, 0, len(cycles[0]))
	seen := make(map[string]bool)
	for _, id := range cycles[0] {
		i, ok := byID[id]
		if !ok {
			continue
		}
		for _, nm := range n.Equs[i].LHS {
			if !seen[nm] {
				seen[nm] = true
				names = append(names, nm)
			}
		}
	}
	return lusterrors.Newf(lusterrors.Schedule, n.Name, n.Pos, "cyclic dependency among equations defining %s", strings.Join(names, ", "))
}
