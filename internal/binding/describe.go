package binding

import (
	"github.com/google/uuid"
	"github.com/san-kum/fmusim/internal/fmu"
)

// Builder assembles the FMI 2.0 description of a built-in model.
type Builder struct {
	md *fmu.ModelDescription
}

// NewDescription starts a Model Exchange description. The GUID is derived from
// the identifier so repeated exports of the same model agree.
func NewDescription(identifier, description string) *Builder {
	return &Builder{md: &fmu.ModelDescription{
		FMIVersion:      fmu.SupportedVersion,
		ModelName:       identifier,
		GUID:            "{" + uuid.NewSHA1(uuid.NameSpaceOID, []byte("fmusim/"+identifier)).String() + "}",
		Description:     description,
		GenerationTool:  "fmusim",
		ModelIdentifier: identifier,
		ModelExchange:   true,
	}}
}

func (b *Builder) Experiment(stop, step float64) *Builder {
	b.md.DefaultExperiment = fmu.DefaultExperiment{StopTime: stop, StepSize: step}
	return b
}

func (b *Builder) SingleInstance() *Builder {
	b.md.CanBeInstantiatedOnlyOncePerProcess = true
	return b
}

func (b *Builder) Parameter(name string, start float64, unit, desc string) *Builder {
	return b.real(name, fmu.CausalityParameter, fmu.VariabilityFixed, &start, unit, desc)
}

// State declares a continuous local with a start value.
func (b *Builder) State(name string, start float64, unit, desc string) *Builder {
	return b.real(name, fmu.CausalityLocal, fmu.VariabilityContinuous, &start, unit, desc)
}

// Local declares a computed continuous local.
func (b *Builder) Local(name, unit, desc string) *Builder {
	return b.real(name, fmu.CausalityLocal, fmu.VariabilityContinuous, nil, unit, desc)
}

func (b *Builder) Output(name, unit, desc string) *Builder {
	return b.real(name, fmu.CausalityOutput, fmu.VariabilityContinuous, nil, unit, desc)
}

func (b *Builder) real(name string, c fmu.Causality, v fmu.Variability, start *float64, unit, desc string) *Builder {
	sv := fmu.ScalarVariable{
		Name:        name,
		Causality:   c,
		Variability: v,
		Type:        fmu.KindReal,
		Unit:        unit,
		Description: desc,
	}
	if start != nil {
		s := fmu.RealValue(*start)
		sv.Start = &s
		if c == fmu.CausalityLocal {
			sv.Initial = "exact"
		}
	}
	if err := b.md.AddVariable(sv); err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) Build() *fmu.ModelDescription { return b.md }
