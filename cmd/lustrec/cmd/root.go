// Package cmd wires lustrec's cobra command tree. Structure follows
// cmd/cue/cmd's pattern of a single New() constructor and a Main()
// wrapper that maps errors to an exit code, trimmed to this tool's one
// command and two flags.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/emersion/rustre/internal/core/codegen"
	"github.com/emersion/rustre/internal/core/normalize"
	"github.com/emersion/rustre/internal/core/schedule"
	"github.com/emersion/rustre/internal/ir"
	"github.com/emersion/rustre/lustre/ast"
	"github.com/emersion/rustre/lustre/errors"
)

// Command wraps the root cobra.Command the way cmd/cue's Command wraps
// its own, so tests can redirect stdin/stdout without touching os.Stdin.
type Command struct {
	*cobra.Command
}

func (c *Command) SetInput(r io.Reader) { c.Command.SetIn(r) }
func (c *Command) SetOutput(w io.Writer) { c.Command.SetOut(w) }

// New builds the lustrec root command: read a raw AST from stdin, run
// normalize -> schedule -> codegen, write the emitted Go source to
// stdout.
func New(args []string) *Command {
	var entry, out string

	cc := &cobra.Command{
		Use:   "lustrec",
		Short: "lustrec compiles a synchronous dataflow program to Go",

		SilenceErrors: true,
		SilenceUsage:  true,

		RunE: func(cc *cobra.Command, _ []string) error {
			return run(cc, entry, out)
		},
	}
	cc.Flags().StringVar(&entry, "entry", "", "entry node name (default: last node in the program)")
	cc.Flags().StringVar(&out, "out", "", "output file (default: stdout)")
	cc.SetArgs(args)

	return &Command{Command: cc}
}

func run(cc *cobra.Command, entry, out string) error {
	prog, err := ast.Decode(cc.InOrStdin())
	if err != nil {
		return fmt.Errorf("reading program: %w", err)
	}

	normalized, err := normalize.Program(prog)
	if err != nil {
		return err
	}
	scheduled, err := schedule.Program(normalized)
	if err != nil {
		return err
	}

	if entry == "" {
		entry = defaultEntry(scheduled)
	}
	code, err := codegen.Emit(scheduled, entry)
	if err != nil {
		return err
	}

	w := cc.OutOrStdout()
	if out != "" {
		f, ferr := os.Create(out)
		if ferr != nil {
			return fmt.Errorf("opening %s: %w", out, ferr)
		}
		defer f.Close()
		w = f
	}
	_, err = w.Write(code)
	return err
}

// defaultEntry is the program's last node, used when --entry is not
// given.
func defaultEntry(prog *ir.NProgram) string {
	if len(prog.Nodes) == 0 {
		return ""
	}
	return prog.Nodes[len(prog.Nodes)-1].Name
}

// Main runs lustrec and returns the process exit code: 0 on success,
// nonzero with a single diagnostic line on stderr otherwise.
func Main() int {
	cmd := New(os.Args[1:])
	if err := cmd.Execute(); err != nil {
		printError(err)
		return 1
	}
	return 0
}

// printError writes a single diagnostic line naming the pass, node, and
// offending construct.
func printError(err error) {
	if e, ok := err.(*errors.Error); ok {
		fmt.Fprintln(os.Stderr, e.Error())
		return
	}
	fmt.Fprintln(os.Stderr, err)
}
