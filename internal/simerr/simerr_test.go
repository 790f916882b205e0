package simerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     Kind
	}{
		{"model load", ModelLoad("introspect", "m.fmu", cause), ErrModelLoad, KindModelLoad},
		{"binding", ParameterBinding("run", "m.fmu", "mass", cause), ErrParameterBinding, KindParameterBinding},
		{"integration", Integration("run", "m.fmu", cause), ErrIntegration, KindIntegration},
		{"empty", EmptyResult("run", "m.fmu", cause), ErrEmptyResult, KindEmptyResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.sentinel)
			}
			if !errors.Is(wrapped, cause) {
				t.Error("cause not reachable through Unwrap")
			}
			if got := KindOf(wrapped); got != tt.kind {
				t.Errorf("KindOf = %v, want %v", got, tt.kind)
			}
		})
	}

	if KindOf(cause) != KindUnknown {
		t.Error("plain error should be unknown kind")
	}
}

func TestErrorMessage(t *testing.T) {
	err := ParameterBinding("run", "model.fmu", "mass", errors.New("not a number"))
	msg := err.Error()
	for _, want := range []string{"ParameterBindingError", "model.fmu", `"mass"`, "not a number"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}

	ie := Integration("run", "", errors.New("diverged"))
	ie.Step, ie.Time = 12, 0.5
	if !strings.Contains(ie.Error(), "step 12") {
		t.Errorf("integration message lacks step: %q", ie.Error())
	}
}
