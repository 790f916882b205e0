// Package fmu reads and writes the model description of a Functional Mock-up
// Unit. Only the metadata needed to introspect and bind a model is modelled:
// identity, default experiment, capability flags and the scalar variables.
package fmu

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the FMU path does not exist.
	ErrNotFound = errors.New("fmu: file not found")

	// ErrInvalidArchive indicates the container could not be opened or lacks
	// a modelDescription.xml.
	ErrInvalidArchive = errors.New("fmu: invalid archive")

	// ErrInvalidDescription indicates the model description is malformed or
	// fails validation.
	ErrInvalidDescription = errors.New("fmu: invalid model description")
)

// DescriptionFile is the name of the model description inside an FMU.
const DescriptionFile = "modelDescription.xml"

// SupportedVersion is the FMI standard version this package understands.
const SupportedVersion = "2.0"

type Causality string

const (
	CausalityParameter           Causality = "parameter"
	CausalityCalculatedParameter Causality = "calculatedParameter"
	CausalityInput               Causality = "input"
	CausalityOutput              Causality = "output"
	CausalityLocal               Causality = "local"
	CausalityIndependent         Causality = "independent"
)

func (c Causality) valid() bool {
	switch c {
	case CausalityParameter, CausalityCalculatedParameter, CausalityInput,
		CausalityOutput, CausalityLocal, CausalityIndependent:
		return true
	}
	return false
}

type Variability string

const (
	VariabilityConstant   Variability = "constant"
	VariabilityFixed      Variability = "fixed"
	VariabilityTunable    Variability = "tunable"
	VariabilityDiscrete   Variability = "discrete"
	VariabilityContinuous Variability = "continuous"
)

func (v Variability) valid() bool {
	switch v {
	case VariabilityConstant, VariabilityFixed, VariabilityTunable,
		VariabilityDiscrete, VariabilityContinuous:
		return true
	}
	return false
}

// ScalarVariable is one declared quantity of the model.
type ScalarVariable struct {
	Name           string
	ValueReference uint32
	Causality      Causality
	Variability    Variability
	Initial        string
	Type           Kind
	DeclaredType   string
	Unit           string
	Description    string

	// Start is nil when the description declares no start value.
	Start *Value
}

func (v *ScalarVariable) HasStart() bool { return v.Start != nil }

// Settable reports whether a start value may be applied to the variable
// before initialization.
func (v *ScalarVariable) Settable() bool {
	if v.Variability == VariabilityConstant || v.Start == nil {
		return false
	}
	switch v.Causality {
	case CausalityParameter, CausalityInput, CausalityLocal:
		return true
	}
	return false
}

// DefaultExperiment holds the experiment hints of the model. Zero fields are
// unset.
type DefaultExperiment struct {
	StartTime float64
	StopTime  float64
	Tolerance float64
	StepSize  float64
}

type ModelDescription struct {
	FMIVersion     string
	ModelName      string
	GUID           string
	Description    string
	GenerationTool string

	// ModelIdentifier names the executable binding, taken from the
	// ModelExchange element when present and CoSimulation otherwise.
	ModelIdentifier string
	ModelExchange   bool
	CoSimulation    bool

	CanBeInstantiatedOnlyOncePerProcess bool

	DefaultExperiment DefaultExperiment
	Variables         []ScalarVariable

	index map[string]int
}

// Variable looks a variable up by name.
func (md *ModelDescription) Variable(name string) (*ScalarVariable, bool) {
	if md.index == nil {
		md.reindex()
	}
	i, ok := md.index[name]
	if !ok {
		return nil, false
	}
	return &md.Variables[i], true
}

func (md *ModelDescription) reindex() {
	md.index = make(map[string]int, len(md.Variables))
	for i, v := range md.Variables {
		md.index[v.Name] = i
	}
}

// AddVariable appends v to the description. Value references of zero are
// replaced by the next free one.
func (md *ModelDescription) AddVariable(v ScalarVariable) error {
	if md.index == nil {
		md.reindex()
	}
	if _, dup := md.index[v.Name]; dup {
		return fmt.Errorf("%w: duplicate variable name %q", ErrInvalidDescription, v.Name)
	}
	if v.ValueReference == 0 {
		v.ValueReference = uint32(len(md.Variables) + 1)
	}
	md.Variables = append(md.Variables, v)
	md.index[v.Name] = len(md.Variables) - 1
	return nil
}
