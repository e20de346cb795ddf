package core

import (
	"fmt"
	"strings"
)

// baseError carries the stage name and message shared by pipeline errors.
type baseError struct {
	Stage   string
	Message string
	Cause   error
}

func (e *baseError) format(extra ...string) string {
	var b strings.Builder
	if e.Stage != "" {
		b.WriteString(e.Stage)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	var ctx []string
	for _, x := range extra {
		if x != "" {
			ctx = append(ctx, x)
		}
	}
	if len(ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ctx, ", "))
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func kv(key, value string) string {
	if value == "" {
		return ""
	}
	return key + " " + value
}

// SourceFormatError reports input data that does not have the expected shape.
type SourceFormatError struct {
	baseError
	Source string
	Column string
	Key    string
}

// NewSourceFormatError creates a SourceFormatError.
func NewSourceFormatError(stage, source, column, key, format string, args ...any) *SourceFormatError {
	return &SourceFormatError{
		baseError: baseError{Stage: stage, Message: fmt.Sprintf(format, args...)},
		Source:    source,
		Column:    column,
		Key:       key,
	}
}

// WithCause attaches an underlying error.
func (e *SourceFormatError) WithCause(err error) *SourceFormatError {
	e.Cause = err
	return e
}

func (e *SourceFormatError) Error() string {
	return e.format(kv("source", e.Source), kv("column", quote(e.Column)), kv("key", e.Key))
}

func (e *SourceFormatError) Unwrap() error { return e.Cause }

// JoinIntegrityError reports a join whose key is not unique.
type JoinIntegrityError struct {
	baseError
	Table string
	Key   string
}

// NewJoinIntegrityError creates a JoinIntegrityError.
func NewJoinIntegrityError(stage, table, key, format string, args ...any) *JoinIntegrityError {
	return &JoinIntegrityError{
		baseError: baseError{Stage: stage, Message: fmt.Sprintf(format, args...)},
		Table:     table,
		Key:       key,
	}
}

func (e *JoinIntegrityError) Error() string {
	return e.format(kv("table", e.Table), kv("key", e.Key))
}

// RenderingConstraintError reports a label layout that has no finite
// axis bound. The layout it accompanies is the best bound found.
type RenderingConstraintError struct {
	baseError
	Label      string
	Iterations int
}

// NewRenderingConstraintError creates a RenderingConstraintError.
func NewRenderingConstraintError(stage, label string, iterations int, format string, args ...any) *RenderingConstraintError {
	return &RenderingConstraintError{
		baseError:  baseError{Stage: stage, Message: fmt.Sprintf(format, args...)},
		Label:      label,
		Iterations: iterations,
	}
}

func (e *RenderingConstraintError) Error() string {
	iter := ""
	if e.Iterations > 0 {
		iter = fmt.Sprintf("after %d iterations", e.Iterations)
	}
	return e.format(kv("label", quote(e.Label)), iter)
}

func quote(s string) string {
	if s == "" {
		return ""
	}
	return fmt.Sprintf("%q", s)
}
