package fmu

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

type xmlModelDescription struct {
	XMLName                  xml.Name              `xml:"fmiModelDescription"`
	FMIVersion               string                `xml:"fmiVersion,attr"`
	ModelName                string                `xml:"modelName,attr"`
	GUID                     string                `xml:"guid,attr"`
	Description              string                `xml:"description,attr,omitempty"`
	GenerationTool           string                `xml:"generationTool,attr,omitempty"`
	VariableNamingConvention string                `xml:"variableNamingConvention,attr,omitempty"`
	ModelExchange            *xmlComponent         `xml:"ModelExchange"`
	CoSimulation             *xmlComponent         `xml:"CoSimulation"`
	DefaultExperiment        *xmlDefaultExperiment `xml:"DefaultExperiment"`
	ModelVariables           []xmlScalarVariable   `xml:"ModelVariables>ScalarVariable"`
}

type xmlComponent struct {
	ModelIdentifier                     string `xml:"modelIdentifier,attr"`
	CanBeInstantiatedOnlyOncePerProcess bool   `xml:"canBeInstantiatedOnlyOncePerProcess,attr,omitempty"`
}

type xmlDefaultExperiment struct {
	StartTime string `xml:"startTime,attr,omitempty"`
	StopTime  string `xml:"stopTime,attr,omitempty"`
	Tolerance string `xml:"tolerance,attr,omitempty"`
	StepSize  string `xml:"stepSize,attr,omitempty"`
}

type xmlScalarVariable struct {
	Name           string    `xml:"name,attr"`
	ValueReference uint32    `xml:"valueReference,attr"`
	Description    string    `xml:"description,attr,omitempty"`
	Causality      string    `xml:"causality,attr,omitempty"`
	Variability    string    `xml:"variability,attr,omitempty"`
	Initial        string    `xml:"initial,attr,omitempty"`
	Real           *xmlTyped `xml:"Real"`
	Integer        *xmlTyped `xml:"Integer"`
	Boolean        *xmlTyped `xml:"Boolean"`
	String         *xmlTyped `xml:"String"`
	Enumeration    *xmlTyped `xml:"Enumeration"`
}

type xmlTyped struct {
	DeclaredType string  `xml:"declaredType,attr,omitempty"`
	Unit         string  `xml:"unit,attr,omitempty"`
	Start        *string `xml:"start,attr,omitempty"`
}

func (sv *xmlScalarVariable) typed() (Kind, *xmlTyped, error) {
	var (
		kind  Kind
		found *xmlTyped
		count int
	)
	for k, t := range map[Kind]*xmlTyped{
		KindReal:        sv.Real,
		KindInteger:     sv.Integer,
		KindBoolean:     sv.Boolean,
		KindString:      sv.String,
		KindEnumeration: sv.Enumeration,
	} {
		if t != nil {
			kind, found = k, t
			count++
		}
	}
	if count != 1 {
		return 0, nil, fmt.Errorf("variable %q must declare exactly one type element, found %d", sv.Name, count)
	}
	return kind, found, nil
}

// ParseModelDescription decodes and validates modelDescription.xml content.
func ParseModelDescription(data []byte) (*ModelDescription, error) {
	var raw xmlModelDescription
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescription, err)
	}
	md, err := fromXML(&raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescription, err)
	}
	return md, nil
}

func fromXML(raw *xmlModelDescription) (*ModelDescription, error) {
	if raw.FMIVersion != SupportedVersion {
		return nil, fmt.Errorf("unsupported fmiVersion %q (want %s)", raw.FMIVersion, SupportedVersion)
	}
	if strings.TrimSpace(raw.ModelName) == "" {
		return nil, fmt.Errorf("modelName is empty")
	}
	if strings.TrimSpace(raw.GUID) == "" {
		return nil, fmt.Errorf("guid is empty")
	}

	md := &ModelDescription{
		FMIVersion:     raw.FMIVersion,
		ModelName:      raw.ModelName,
		GUID:           raw.GUID,
		Description:    raw.Description,
		GenerationTool: raw.GenerationTool,
	}

	switch {
	case raw.ModelExchange != nil:
		md.ModelIdentifier = raw.ModelExchange.ModelIdentifier
		md.CanBeInstantiatedOnlyOncePerProcess = raw.ModelExchange.CanBeInstantiatedOnlyOncePerProcess
	case raw.CoSimulation != nil:
		md.ModelIdentifier = raw.CoSimulation.ModelIdentifier
		md.CanBeInstantiatedOnlyOncePerProcess = raw.CoSimulation.CanBeInstantiatedOnlyOncePerProcess
	default:
		return nil, fmt.Errorf("neither ModelExchange nor CoSimulation is declared")
	}
	md.ModelExchange = raw.ModelExchange != nil
	md.CoSimulation = raw.CoSimulation != nil
	if raw.CoSimulation != nil && raw.CoSimulation.CanBeInstantiatedOnlyOncePerProcess {
		md.CanBeInstantiatedOnlyOncePerProcess = true
	}
	if md.ModelIdentifier == "" {
		return nil, fmt.Errorf("modelIdentifier is empty")
	}

	if de := raw.DefaultExperiment; de != nil {
		var err error
		if md.DefaultExperiment.StartTime, err = parseOptionalFloat("startTime", de.StartTime); err != nil {
			return nil, err
		}
		if md.DefaultExperiment.StopTime, err = parseOptionalFloat("stopTime", de.StopTime); err != nil {
			return nil, err
		}
		if md.DefaultExperiment.Tolerance, err = parseOptionalFloat("tolerance", de.Tolerance); err != nil {
			return nil, err
		}
		if md.DefaultExperiment.StepSize, err = parseOptionalFloat("stepSize", de.StepSize); err != nil {
			return nil, err
		}
	}

	md.Variables = make([]ScalarVariable, 0, len(raw.ModelVariables))
	seen := make(map[string]struct{}, len(raw.ModelVariables))
	for i := range raw.ModelVariables {
		sv := &raw.ModelVariables[i]
		if strings.TrimSpace(sv.Name) == "" {
			return nil, fmt.Errorf("variable #%d has no name", i+1)
		}
		if _, dup := seen[sv.Name]; dup {
			return nil, fmt.Errorf("duplicate variable name %q", sv.Name)
		}
		seen[sv.Name] = struct{}{}

		v, err := variableFromXML(sv)
		if err != nil {
			return nil, err
		}
		md.Variables = append(md.Variables, v)
	}
	md.reindex()
	return md, nil
}

func variableFromXML(sv *xmlScalarVariable) (ScalarVariable, error) {
	kind, typed, err := sv.typed()
	if err != nil {
		return ScalarVariable{}, err
	}

	causality := Causality(sv.Causality)
	if causality == "" {
		causality = CausalityLocal
	}
	if !causality.valid() {
		return ScalarVariable{}, fmt.Errorf("variable %q has unknown causality %q", sv.Name, sv.Causality)
	}
	variability := Variability(sv.Variability)
	if variability == "" {
		variability = VariabilityContinuous
		if kind != KindReal {
			variability = VariabilityDiscrete
		}
	}
	if !variability.valid() {
		return ScalarVariable{}, fmt.Errorf("variable %q has unknown variability %q", sv.Name, sv.Variability)
	}

	v := ScalarVariable{
		Name:           sv.Name,
		ValueReference: sv.ValueReference,
		Causality:      causality,
		Variability:    variability,
		Initial:        sv.Initial,
		Type:           kind,
		DeclaredType:   typed.DeclaredType,
		Unit:           typed.Unit,
		Description:    sv.Description,
	}
	if typed.Start != nil {
		start, err := ParseValue(kind, *typed.Start)
		if err != nil {
			return ScalarVariable{}, fmt.Errorf("variable %q: %v", sv.Name, err)
		}
		v.Start = &start
	}
	return v, nil
}

func parseOptionalFloat(attr, s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("DefaultExperiment %s: invalid number %q", attr, s)
	}
	return f, nil
}

func toXML(md *ModelDescription) *xmlModelDescription {
	raw := &xmlModelDescription{
		FMIVersion:               md.FMIVersion,
		ModelName:                md.ModelName,
		GUID:                     md.GUID,
		Description:              md.Description,
		GenerationTool:           md.GenerationTool,
		VariableNamingConvention: "structured",
	}
	if raw.FMIVersion == "" {
		raw.FMIVersion = SupportedVersion
	}
	comp := &xmlComponent{
		ModelIdentifier:                     md.ModelIdentifier,
		CanBeInstantiatedOnlyOncePerProcess: md.CanBeInstantiatedOnlyOncePerProcess,
	}
	if md.ModelExchange || !md.CoSimulation {
		raw.ModelExchange = comp
	}
	if md.CoSimulation {
		raw.CoSimulation = comp
	}

	de := md.DefaultExperiment
	if de != (DefaultExperiment{}) {
		raw.DefaultExperiment = &xmlDefaultExperiment{
			StartTime: formatOptionalFloat(de.StartTime),
			StopTime:  formatOptionalFloat(de.StopTime),
			Tolerance: formatOptionalFloat(de.Tolerance),
			StepSize:  formatOptionalFloat(de.StepSize),
		}
	}

	raw.ModelVariables = make([]xmlScalarVariable, len(md.Variables))
	for i, v := range md.Variables {
		sv := xmlScalarVariable{
			Name:           v.Name,
			ValueReference: v.ValueReference,
			Description:    v.Description,
			Causality:      string(v.Causality),
			Variability:    string(v.Variability),
			Initial:        v.Initial,
		}
		typed := &xmlTyped{DeclaredType: v.DeclaredType, Unit: v.Unit}
		if v.Start != nil {
			s := v.Start.String()
			typed.Start = &s
		}
		switch v.Type {
		case KindReal:
			sv.Real = typed
		case KindInteger:
			sv.Integer = typed
		case KindBoolean:
			sv.Boolean = typed
		case KindString:
			sv.String = typed
		case KindEnumeration:
			sv.Enumeration = typed
		}
		raw.ModelVariables[i] = sv
	}
	return raw
}

func formatOptionalFloat(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
