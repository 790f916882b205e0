package bridge_test

import (
	"context"
	"encoding/json"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/san-kum/fmusim/internal/bridge"
	"github.com/san-kum/fmusim/internal/executor"
	"github.com/san-kum/fmusim/internal/fmu"
	"github.com/san-kum/fmusim/internal/models"
	"github.com/san-kum/fmusim/internal/observability"
)

func ptr(f float64) *float64 { return &f }

var _ = Describe("Bridge", func() {
	var (
		b    *bridge.Bridge
		path string
		dir  string
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		path = filepath.Join(dir, "SpringDamperSystem.fmu")
		Expect(fmu.WriteArchive(path, models.DescribeSpringDamper())).To(Succeed())
		b = bridge.New(executor.New())
	})

	Describe("ListConfigurableVariables", func() {
		It("lists parameters and started locals", func() {
			env := b.ListConfigurableVariables(path)
			Expect(env.Success).To(BeTrue())
			Expect(env.Error).To(BeEmpty())
			Expect(env.ModelName).To(Equal("SpringDamperSystem"))

			names := make([]string, 0, len(env.Variables))
			for _, v := range env.Variables {
				names = append(names, v.Name)
			}
			Expect(names).To(ContainElements("mass", "c", "body1.r_0[1]", "body1.v_0[3]"))
			Expect(names).NotTo(ContainElements("spring.f", "spring.s", "energy"))
		})

		It("returns a failure envelope for a missing file", func() {
			env := b.ListConfigurableVariables(filepath.Join(dir, "missing.fmu"))
			Expect(env.Success).To(BeFalse())
			Expect(env.Error).To(ContainSubstring("ModelLoadError"))
			Expect(env.ModelName).To(BeEmpty())
			Expect(env.Variables).To(BeNil())
		})

		It("keeps an empty variables list for a model with nothing configurable", func() {
			md := &fmu.ModelDescription{
				FMIVersion:      fmu.SupportedVersion,
				ModelName:       "OnlyOutputs",
				GUID:            "{only-outputs}",
				ModelIdentifier: "OnlyOutputs",
				ModelExchange:   true,
			}
			Expect(md.AddVariable(fmu.ScalarVariable{
				Name:        "y",
				Causality:   fmu.CausalityOutput,
				Variability: fmu.VariabilityContinuous,
				Type:        fmu.KindReal,
			})).To(Succeed())
			outputsOnly := filepath.Join(dir, "OnlyOutputs.fmu")
			Expect(fmu.WriteArchive(outputsOnly, md)).To(Succeed())

			env := b.ListConfigurableVariables(outputsOnly)
			Expect(env.Success).To(BeTrue())
			Expect(env.Variables).NotTo(BeNil())
			Expect(env.Variables).To(BeEmpty())

			data, err := json.Marshal(env)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"variables":[]`))
			Expect(string(data)).To(ContainSubstring(`"modelName":"OnlyOutputs"`))
			Expect(string(data)).NotTo(ContainSubstring(`"error"`))

			data, err = json.Marshal(b.ListConfigurableVariables(filepath.Join(dir, "missing.fmu")))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).NotTo(ContainSubstring(`"variables"`))
			Expect(string(data)).To(ContainSubstring(`"success":false`))
		})

		It("counts outcomes", func() {
			collector, err := observability.NewRunCollector(prometheus.NewRegistry())
			Expect(err).NotTo(HaveOccurred())
			b = bridge.New(executor.New(), bridge.WithCollector(collector))

			b.ListConfigurableVariables(path)
			b.ListConfigurableVariables(filepath.Join(dir, "missing.fmu"))

			Expect(testutil.ToFloat64(collector.Introspection.WithLabelValues("success"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(collector.Introspection.WithLabelValues("ModelLoadError"))).To(Equal(1.0))
		})
	})

	Describe("Simulate", func() {
		ctx := context.Background()

		It("returns parallel columns for a successful run", func() {
			env := b.Simulate(ctx, path, map[string]any{"mass": "2.5"}, ptr(10), nil, "CVode")
			Expect(env.Success).To(BeTrue())
			Expect(env.NumSteps).To(BeNumerically(">", 0))
			Expect(env.Time).To(HaveLen(env.NumSteps))
			Expect(env.X).To(HaveLen(env.NumSteps))
			Expect(env.Y).To(HaveLen(env.NumSteps))
			Expect(env.Z).To(HaveLen(env.NumSteps))
			Expect(env.Time[0]).To(BeNumerically("~", 0, 1e-9))
			Expect(env.Time[env.NumSteps-1]).To(BeNumerically("~", 10, 1e-9))
		})

		It("uses the default stop time when none is given", func() {
			env := b.Simulate(ctx, path, nil, nil, ptr(1), "Euler")
			Expect(env.Success).To(BeTrue())
			Expect(env.NumSteps).To(Equal(11))
			Expect(env.Time[10]).To(BeNumerically("~", executor.DefaultStopTime, 1e-9))
		})

		DescribeTable("failure envelopes",
			func(p func() string, overrides map[string]any, solver, kind string) {
				env := b.Simulate(ctx, p(), overrides, ptr(1), nil, solver)
				Expect(env.Success).To(BeFalse())
				Expect(env.ErrorKind).To(Equal(kind))
				Expect(env.Error).NotTo(BeEmpty())
				Expect(env.NumSteps).To(BeZero())
				Expect(env.Time).To(BeNil())
			},
			Entry("missing model", func() string { return filepath.Join(dir, "nope.fmu") }, nil, "", "ModelLoadError"),
			Entry("unknown variable", func() string { return path }, map[string]any{"mass2": 1}, "", "ParameterBindingError"),
			Entry("rejected value", func() string { return path }, map[string]any{"mass": "abc"}, "", "ParameterBindingError"),
			Entry("unknown solver", func() string { return path }, nil, "rk4", "ParameterBindingError"),
		)

		It("encodes only the populated fields", func() {
			data, err := json.Marshal(b.Simulate(ctx, path, nil, ptr(1), ptr(0.5), "FixedStepEuler"))
			Expect(err).NotTo(HaveOccurred())

			var decoded map[string]any
			Expect(json.Unmarshal(data, &decoded)).To(Succeed())
			Expect(decoded).To(HaveKeyWithValue("success", true))
			Expect(decoded).To(HaveKeyWithValue("numSteps", 3.0))
			Expect(decoded).To(HaveKey("time"))
			Expect(decoded).NotTo(HaveKey("error"))

			data, err = json.Marshal(b.Simulate(ctx, filepath.Join(dir, "nope.fmu"), nil, nil, nil, ""))
			Expect(err).NotTo(HaveOccurred())
			decoded = nil
			Expect(json.Unmarshal(data, &decoded)).To(Succeed())
			Expect(decoded).To(HaveKeyWithValue("success", false))
			Expect(decoded).To(HaveKeyWithValue("errorKind", "ModelLoadError"))
			Expect(decoded).NotTo(HaveKey("time"))
			Expect(decoded).NotTo(HaveKey("numSteps"))
		})
	})
})
