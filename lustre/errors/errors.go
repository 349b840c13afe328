// Copyright 2018 The CUE Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errors defines the diagnostic type shared by the normalizer,
// scheduler, and code emitter passes.
//
// The compiler has no recovery policy: the first error encountered in any
// pass aborts the whole compilation. An Error therefore always identifies
// exactly one offending construct rather than accumulating a report.
package errors

import (
	"fmt"

	"github.com/emersion/rustre/lustre/token"
)

// Pass names a compiler phase, used to prefix diagnostics so a reader can
// tell at a glance which stage rejected the program.
type Pass string

const (
	Normalize Pass = "normalize"
	Schedule  Pass = "schedule"
	Codegen   Pass = "codegen"
)

// Error is a single fatal diagnostic: the pass that raised it, the node in
// which it occurred, a human-readable description of the offending
// construct, and the source position, if any.
type Error struct {
	Pass    Pass
	Node    string // enclosing node name, "" if none
	Pos     token.Position
	message string
	args    []interface{}
	wrapped error
}

// Newf builds an Error for pass p, attributed to node n, at position pos.
func Newf(p Pass, n string, pos token.Position, format string, args ...interface{}) *Error {
	return &Error{Pass: p, Node: n, Pos: pos, message: format, args: args}
}

// Wrapf behaves like Newf but records an underlying cause, retrievable via
// errors.Unwrap.
func Wrapf(err error, p Pass, n string, pos token.Position, format string, args ...interface{}) *Error {
	return &Error{Pass: p, Node: n, Pos: pos, message: format, args: args, wrapped: err}
}

func (e *Error) Unwrap() error { return e.wrapped }

// Error renders a single-line diagnostic of the form:
//
//	pass: node "n": message (pos)
//
// matching the driver's contract of printing exactly one line per failure.
func (e *Error) Error() string {
	msg := fmt.Sprintf(e.message, e.args...)
	switch {
	case e.Node != "" && e.Pos.IsValid():
		return fmt.Sprintf("%s: node %q: %s (%s)", e.Pass, e.Node, msg, e.Pos)
	case e.Node != "":
		return fmt.Sprintf("%s: node %q: %s", e.Pass, e.Node, msg)
	default:
		return fmt.Sprintf("%s: %s", e.Pass, msg)
	}
}
