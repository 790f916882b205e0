// Package simerr defines the failure taxonomy shared by the model
// introspector and the simulation executor. Lower layers return plain wrapped
// errors; the boundary components classify them into one of four kinds.
package simerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModelLoad indicates a missing, unreadable or malformed model file,
	// or a model with no usable executable binding.
	ErrModelLoad = errors.New("model load error")

	// ErrParameterBinding indicates a start value rejected by the model.
	ErrParameterBinding = errors.New("parameter binding error")

	// ErrIntegration indicates the solver or model failed mid-run.
	ErrIntegration = errors.New("integration error")

	// ErrEmptyResult indicates a run that completed without producing samples.
	ErrEmptyResult = errors.New("empty result")
)

// Kind names a failure class.
type Kind int

const (
	KindUnknown Kind = iota
	KindModelLoad
	KindParameterBinding
	KindIntegration
	KindEmptyResult
)

func (k Kind) String() string {
	switch k {
	case KindModelLoad:
		return "ModelLoadError"
	case KindParameterBinding:
		return "ParameterBindingError"
	case KindIntegration:
		return "IntegrationError"
	case KindEmptyResult:
		return "EmptyResultError"
	}
	return "UnknownError"
}

func (k Kind) sentinel() error {
	switch k {
	case KindModelLoad:
		return ErrModelLoad
	case KindParameterBinding:
		return ErrParameterBinding
	case KindIntegration:
		return ErrIntegration
	case KindEmptyResult:
		return ErrEmptyResult
	}
	return nil
}

// Error carries a failure kind plus the context it happened in.
type Error struct {
	Kind     Kind
	Op       string
	Path     string
	Variable string

	// Step and Time locate integration failures; Step is -1 when unknown.
	Step int
	Time float64

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (%s)", e.Path)
	}
	if e.Variable != "" {
		fmt.Fprintf(&b, ": variable %q", e.Variable)
	}
	if e.Kind == KindIntegration && e.Step >= 0 {
		fmt.Fprintf(&b, ": step %d (t=%.6g)", e.Step, e.Time)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match the kind sentinels.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func newError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Step: -1, Err: err}
}

func ModelLoad(op, path string, err error) *Error {
	return newError(KindModelLoad, op, path, err)
}

func ParameterBinding(op, path, variable string, err error) *Error {
	e := newError(KindParameterBinding, op, path, err)
	e.Variable = variable
	return e
}

func Integration(op, path string, err error) *Error {
	return newError(KindIntegration, op, path, err)
}

func EmptyResult(op, path string, err error) *Error {
	return newError(KindEmptyResult, op, path, err)
}

// KindOf reports the failure kind carried by err.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrModelLoad):
		return KindModelLoad
	case errors.Is(err, ErrParameterBinding):
		return KindParameterBinding
	case errors.Is(err, ErrIntegration):
		return KindIntegration
	case errors.Is(err, ErrEmptyResult):
		return KindEmptyResult
	}
	return KindUnknown
}
