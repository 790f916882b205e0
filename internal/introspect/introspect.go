// Package introspect lists the variables of a model that a user may configure
// before a run. It only reads the model description and never instantiates
// the model.
package introspect

import (
	"github.com/san-kum/fmusim/internal/fmu"
	"github.com/san-kum/fmusim/internal/simerr"
)

// Variable is the form-ready view of a configurable model variable.
type Variable struct {
	Name        string        `json:"name"`
	Causality   fmu.Causality `json:"causality"`
	Type        fmu.Kind      `json:"type"`
	Start       *fmu.Value    `json:"start"`
	Description string        `json:"description"`
}

type Result struct {
	ModelName string     `json:"modelName"`
	Variables []Variable `json:"variables"`
}

// ListConfigurableVariables reads the model at path and returns its
// parameters and the locals that carry a start value, in declaration order.
// Any failure to read or validate the model is a ModelLoadError.
func ListConfigurableVariables(path string) (*Result, error) {
	md, err := fmu.ReadModelDescription(path)
	if err != nil {
		return nil, simerr.ModelLoad("listConfigurableVariables", path, err)
	}
	return Configurable(md), nil
}

func Configurable(md *fmu.ModelDescription) *Result {
	res := &Result{
		ModelName: md.ModelName,
		Variables: make([]Variable, 0, len(md.Variables)),
	}
	for i := range md.Variables {
		v := &md.Variables[i]
		if !IsConfigurable(v) {
			continue
		}
		var start *fmu.Value
		if v.Start != nil {
			s := *v.Start
			start = &s
		}
		res.Variables = append(res.Variables, Variable{
			Name:        v.Name,
			Causality:   v.Causality,
			Type:        v.Type,
			Start:       start,
			Description: v.Description,
		})
	}
	return res
}

// IsConfigurable reports whether v belongs in a configuration form: every
// parameter, and locals only when they declare a start value.
func IsConfigurable(v *fmu.ScalarVariable) bool {
	switch v.Causality {
	case fmu.CausalityParameter:
		return true
	case fmu.CausalityLocal:
		return v.HasStart()
	}
	return false
}
