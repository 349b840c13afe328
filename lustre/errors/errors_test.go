package errors_test

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/emersion/rustre/lustre/errors"
	"github.com/emersion/rustre/lustre/token"
)

func TestErrorFormatting(t *testing.T) {
	pos := token.Position{Filename: "prog.lus", Line: 3, Column: 5}

	withNodeAndPos := errors.Newf(errors.Schedule, "bad", pos, "cyclic dependency among equations defining %s", "b")
	if got := withNodeAndPos.Error(); !strings.Contains(got, "schedule") ||
		!strings.Contains(got, `"bad"`) || !strings.Contains(got, "b") || !strings.Contains(got, "3:5") {
		t.Errorf("Error() = %q, missing expected fragments", got)
	}

	withNodeOnly := errors.Newf(errors.Normalize, "n", token.NoPos, "output %q is never defined", "o")
	if got := withNodeOnly.Error(); strings.Contains(got, "::") || !strings.Contains(got, "normalize") {
		t.Errorf("Error() = %q", got)
	}

	bare := errors.Newf(errors.Codegen, "", token.NoPos, "entry node %q not found", "missing")
	if got := bare.Error(); !strings.HasPrefix(got, "codegen: ") {
		t.Errorf("Error() = %q, want codegen: prefix", got)
	}
}

func TestWrapfUnwrap(t *testing.T) {
	cause := stderrors.New("underlying failure")
	wrapped := errors.Wrapf(cause, errors.Codegen, "n", token.NoPos, "formatting generated code: %v", cause)

	if !stderrors.Is(wrapped, cause) {
		t.Error("errors.Is(wrapped, cause) = false, want true")
	}
	if stderrors.Unwrap(wrapped) != cause {
		t.Error("Unwrap did not return the wrapped cause")
	}
}
