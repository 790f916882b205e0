package binding

import (
	"errors"
	"strings"
	"testing"

	"github.com/san-kum/fmusim/internal/fmu"
	"github.com/san-kum/fmusim/internal/sim"
)

func testDescription() *fmu.ModelDescription {
	md := NewDescription("Toy", "test model").
		Parameter("k", 2, "1/s", "rate").
		State("x", 1, "", "state").
		Local("aux", "", "no start").
		Output("y", "", "output").
		Build()
	count := fmu.IntegerValue(3)
	if err := md.AddVariable(fmu.ScalarVariable{
		Name:        "n",
		Causality:   fmu.CausalityParameter,
		Variability: fmu.VariabilityFixed,
		Type:        fmu.KindInteger,
		Start:       &count,
	}); err != nil {
		panic(err)
	}
	return md
}

type toy struct{ *Base }

func (toy) StateDim() int { return 1 }
func (t toy) Derivative(x sim.State, _ float64) (sim.State, error) {
	return sim.State{-t.Float("k") * x[0]}, nil
}
func (t toy) Initialize(float64) (sim.State, error) {
	if err := t.Enter(); err != nil {
		return nil, err
	}
	return sim.State{t.Float("x")}, nil
}
func (toy) Real(string, float64, sim.State) (float64, error) { return 0, nil }
func (toy) Terminate() error                                 { return nil }

func TestBaseSet(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		value   fmu.Value
		wantErr error
		want    any
	}{
		{"numeric string", "k", fmu.StringValue("3.5"), nil, 3.5},
		{"integer widened", "k", fmu.IntegerValue(4), nil, 4.0},
		{"state start", "x", fmu.RealValue(-2), nil, -2.0},
		{"integral real narrowed", "n", fmu.RealValue(7), nil, int64(7)},
		{"fractional to integer", "n", fmu.RealValue(7.5), ErrTypeMismatch, nil},
		{"text to real", "k", fmu.StringValue("fast"), ErrTypeMismatch, nil},
		{"unknown", "nope", fmu.RealValue(1), ErrUnknownVariable, nil},
		{"local without start", "aux", fmu.RealValue(1), ErrNotSettable, nil},
		{"output", "y", fmu.RealValue(1), ErrNotSettable, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBase(testDescription())
			err := b.Set(tt.target, tt.value)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			v, _ := b.Value(tt.target)
			if got := v.Interface(); got != tt.want {
				t.Errorf("value = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestBaseLifecycle(t *testing.T) {
	b := NewBase(testDescription())
	if b.Float("k") != 2 {
		t.Errorf("start value not loaded: %v", b.Float("k"))
	}
	if err := b.Enter(); err != nil {
		t.Fatal(err)
	}
	if err := b.Set("k", fmu.RealValue(1)); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("set after initialize: err = %v", err)
	}
	if err := b.Enter(); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("double initialize: err = %v", err)
	}
}

func TestBaseChecks(t *testing.T) {
	b := NewBase(testDescription())
	if err := b.Positive("k"); err != nil {
		t.Error(err)
	}
	if err := b.Set("k", fmu.RealValue(0)); err != nil {
		t.Fatal(err)
	}
	if err := b.Positive("k"); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("err = %v, want ErrInvalidParameter", err)
	}
	if err := b.NonNegative("k"); err != nil {
		t.Error(err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	m := Model{
		Identifier: "Toy",
		Describe:   testDescription,
		New: func(md *fmu.ModelDescription) (Instance, error) {
			return toy{NewBase(md)}, nil
		},
	}
	if err := r.Register(m); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(m); err == nil {
		t.Error("duplicate registration accepted")
	}
	if err := r.Register(Model{Identifier: "Broken"}); err == nil {
		t.Error("incomplete registration accepted")
	}

	md, err := r.Describe("Toy")
	if err != nil {
		t.Fatal(err)
	}
	inst, err := r.Instantiate(md)
	if err != nil {
		t.Fatal(err)
	}
	x0, err := inst.Initialize(0)
	if err != nil || x0[0] != 1 {
		t.Errorf("x0 = %v, err = %v", x0, err)
	}

	md.ModelIdentifier = "Other"
	if _, err := r.Instantiate(md); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("err = %v, want ErrUnknownModel", err)
	}
	if got := r.ListModels(); len(got) != 1 || got[0] != "Toy" {
		t.Errorf("ListModels = %v", got)
	}
}

func TestDescriptionBuilder(t *testing.T) {
	a := NewDescription("Toy", "").Build()
	b := NewDescription("Toy", "").Build()
	c := NewDescription("Other", "").Build()
	if a.GUID != b.GUID {
		t.Error("GUID should be stable for an identifier")
	}
	if a.GUID == c.GUID {
		t.Error("GUIDs of different models collide")
	}
	if !strings.HasPrefix(a.GUID, "{") {
		t.Errorf("GUID = %s", a.GUID)
	}

	md := testDescription()
	x, ok := md.Variable("x")
	if !ok || !x.Settable() || x.Causality != fmu.CausalityLocal {
		t.Errorf("state variable = %+v", x)
	}
	aux, _ := md.Variable("aux")
	if aux.HasStart() {
		t.Error("local should have no start")
	}

	defer func() {
		if recover() == nil {
			t.Error("duplicate variable should panic")
		}
	}()
	NewDescription("Dup", "").Parameter("p", 1, "", "").Parameter("p", 2, "", "")
}
