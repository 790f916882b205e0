package executor

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/san-kum/fmusim/internal/fmu"
)

// DefaultStopTime replaces unset or non-positive stop times.
const DefaultStopTime = 10.0

// Request is the input of one run. It is built fresh per call and never
// mutated by the executor.
type Request struct {
	StartValues map[string]any
	StopTime    float64

	// StepSize > 0 fixes the output interval (and the Euler step); anything
	// else leaves output density to the solver.
	StepSize float64
	Solver   Solver
}

// Resolved is a request with defaults applied and start values coerced.
type Resolved struct {
	StartValues map[string]fmu.Value
	StopTime    float64
	StepSize    float64
	Solver      Solver
}

func (r Request) Resolve() Resolved {
	res := Resolved{
		StartValues: make(map[string]fmu.Value, len(r.StartValues)),
		StopTime:    r.StopTime,
		StepSize:    r.StepSize,
		Solver:      r.Solver,
	}
	if !(res.StopTime > 0) || math.IsInf(res.StopTime, 1) {
		res.StopTime = DefaultStopTime
	}
	if !(res.StepSize > 0) || math.IsInf(res.StepSize, 1) {
		res.StepSize = 0
	}
	for k, v := range r.StartValues {
		res.StartValues[k] = CoerceStartValue(v)
	}
	return res
}

// Adaptive reports whether output density is left to the solver.
func (r Resolved) Adaptive() bool { return r.StepSize <= 0 }

// Names returns the override names in sorted order.
func (r Resolved) Names() []string {
	names := make([]string, 0, len(r.StartValues))
	for k := range r.StartValues {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// CoerceStartValue turns a caller-supplied value into a model value: anything
// numerically parseable becomes a Real, everything else is kept as given.
func CoerceStartValue(v any) fmu.Value {
	switch x := v.(type) {
	case fmu.Value:
		return x
	case float64:
		return fmu.RealValue(x)
	case float32:
		return fmu.RealValue(float64(x))
	case int:
		return fmu.RealValue(float64(x))
	case int32:
		return fmu.RealValue(float64(x))
	case int64:
		return fmu.RealValue(float64(x))
	case uint:
		return fmu.RealValue(float64(x))
	case uint32:
		return fmu.RealValue(float64(x))
	case uint64:
		return fmu.RealValue(float64(x))
	case json.Number:
		return coerceString(x.String())
	case bool:
		return fmu.BooleanValue(x)
	case string:
		return coerceString(x)
	case nil:
		return fmu.StringValue("")
	}
	return fmu.StringValue(fmt.Sprint(v))
}

func coerceString(s string) fmu.Value {
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return fmu.RealValue(f)
	}
	return fmu.StringValue(s)
}
