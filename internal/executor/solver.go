package executor

import (
	"fmt"
	"strings"
)

// Solver selects the integration strategy of a run.
type Solver int

const (
	// AdaptiveImplicit is variable-step variable-order BDF with local error
	// control.
	AdaptiveImplicit Solver = iota

	// FixedStepEuler is explicit Euler without error control.
	FixedStepEuler
)

func (s Solver) String() string {
	switch s {
	case AdaptiveImplicit:
		return "AdaptiveImplicit"
	case FixedStepEuler:
		return "FixedStepEuler"
	}
	return fmt.Sprintf("Solver(%d)", int(s))
}

// ParseSolver accepts the strategy names and the common solver names they
// stand for. An empty name selects AdaptiveImplicit.
func ParseSolver(name string) (Solver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "adaptiveimplicit", "adaptive", "cvode", "bdf":
		return AdaptiveImplicit, nil
	case "fixedstepeuler", "euler":
		return FixedStepEuler, nil
	}
	return 0, fmt.Errorf("unknown solver %q (want AdaptiveImplicit/CVode or FixedStepEuler/Euler)", name)
}

func (s Solver) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Solver) UnmarshalText(text []byte) error {
	parsed, err := ParseSolver(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
