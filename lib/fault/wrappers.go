// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fault

import (
	"fmt"
	"strings"
)

// BatchError aggregates the failures of a batched operation. Each
// cause corresponds to one failed item; Rows optionally names the
// routing hint each cause applied to. A batch may mix kinds: one item
// denied, another unreachable.
type BatchError struct {
	Causes []error
	Rows   []string
}

func (e *BatchError) Error() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "failed %d action", len(e.Causes))
	if len(e.Causes) != 1 {
		builder.WriteString("s")
	}
	for i, cause := range e.Causes {
		builder.WriteString("; ")
		if i < len(e.Rows) && e.Rows[i] != "" {
			builder.WriteString(e.Rows[i])
			builder.WriteString(": ")
		}
		builder.WriteString(cause.Error())
	}
	return builder.String()
}

func (e *BatchError) Unwrap() []error { return e.Causes }

// Add appends a cause. A nil cause is ignored.
func (e *BatchError) Add(row string, cause error) {
	if cause == nil {
		return
	}
	e.Causes = append(e.Causes, cause)
	e.Rows = append(e.Rows, row)
}

// ErrorOrNil returns e if it holds at least one cause, nil otherwise.
func (e *BatchError) ErrorOrNil() error {
	if e == nil || len(e.Causes) == 0 {
		return nil
	}
	return e
}

// InvocationError wraps a failure raised by a function invoked
// indirectly (through a handler table, a privileged-action runner, or
// a dispatcher) so the caller can tell the wrapper layer apart from
// the failure it carries.
type InvocationError struct {
	Target string
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoking %s: %v", e.Target, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
