package cmd_test

import (
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/emersion/rustre/cmd/lustrec/cmd"
)

// TestMain lets the test binary also act as the lustrec binary: testscript
// re-execs it with TESTSCRIPT_COMMAND=lustrec before any *_test.go runs, so
// "exec lustrec" inside a script runs cmd.Main in a real child process
// rather than a fake.
func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"lustrec": cmd.Main,
	}))
}

// TestScript drives cmd/lustrec end to end via its documented contract:
// a raw AST on stdin, emitted Go on stdout, exit 0 on success, or a
// nonzero exit with a single diagnostic line on stderr.
func TestScript(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata/script",
	})
}
