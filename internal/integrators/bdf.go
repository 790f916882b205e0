package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/fmusim/internal/sim"
	"gonum.org/v1/gonum/mat"
)

// Variable-order (1..5) backward differentiation formulas in Nordsieck-free
// backward-difference form, with modified Newton iterations on a finite
// difference Jacobian. Suitable for stiff systems.
const (
	bdfMaxOrder   = 5
	newtonMaxIter = 4
	bdfMinFactor  = 0.2
	bdfMaxFactor  = 10.0
)

var (
	bdfGamma      [bdfMaxOrder + 1]float64
	bdfErrorConst [bdfMaxOrder + 1]float64
)

func init() {
	for k := 1; k <= bdfMaxOrder; k++ {
		bdfGamma[k] = bdfGamma[k-1] + 1/float64(k)
	}
	for k := 0; k <= bdfMaxOrder; k++ {
		bdfErrorConst[k] = 1 / float64(k+1)
	}
}

// BDFOptions tunes the adaptive implicit stepper. Zero fields take defaults.
type BDFOptions struct {
	RelTol    float64
	AbsTol    float64
	MaxStep   float64
	FirstStep float64
}

func DefaultBDFOptions() BDFOptions {
	return BDFOptions{RelTol: 1e-4, AbsTol: 1e-6}
}

type BDF struct {
	rtol, atol float64
	maxStep    float64
	firstStep  float64

	dyn       sim.Dynamics
	n         int
	t         float64
	y         sim.State
	f0        sim.State
	hAbs      float64
	order     int
	nEqual    int
	d         [bdfMaxOrder + 3][]float64
	jac       *mat.Dense
	lu        mat.LU
	luValid   bool
	newtonTol float64
	started   bool
	stats     Stats

	dense struct {
		t, h  float64
		order int
		d     [][]float64
	}
}

func NewBDF(opts BDFOptions) *BDF {
	def := DefaultBDFOptions()
	if opts.RelTol <= 0 {
		opts.RelTol = def.RelTol
	}
	if opts.AbsTol <= 0 {
		opts.AbsTol = def.AbsTol
	}
	// Tolerances below ~100 ulp make the error test unreachable.
	opts.RelTol = math.Max(opts.RelTol, 100*epsilon)
	return &BDF{
		rtol:      opts.RelTol,
		atol:      opts.AbsTol,
		maxStep:   opts.MaxStep,
		firstStep: opts.FirstStep,
	}
}

const epsilon = 2.220446049250313e-16

func (b *BDF) Name() string { return "BDF" }
func (b *BDF) Stats() Stats { return b.stats }

func (b *BDF) Reset(dyn sim.Dynamics, t0 float64, x0 sim.State) error {
	if b.maxStep < 0 || math.IsNaN(b.maxStep) {
		return fmt.Errorf("bdf: max step must be non-negative, got %g", b.maxStep)
	}
	b.dyn = dyn
	b.n = len(x0)
	b.t = t0
	b.y = x0.Clone()
	b.order = 1
	b.nEqual = 0
	b.hAbs = 0
	b.luValid = false
	b.started = false
	b.stats = Stats{Order: 1, MaxOrder: 1}
	b.newtonTol = math.Max(10*epsilon/b.rtol, math.Min(0.03, math.Sqrt(b.rtol)))
	for i := range b.d {
		b.d[i] = make([]float64, b.n)
	}
	b.dense.d = nil

	if b.n == 0 {
		return nil
	}

	f0, err := b.eval(t0, b.y)
	if err != nil {
		return err
	}
	if !f0.IsValid() {
		return fmt.Errorf("%w: derivative at t=%g is not finite", sim.ErrInvalidState, t0)
	}
	b.f0 = f0
	if b.jac, err = b.jacobian(t0, b.y, f0); err != nil {
		return err
	}
	if b.jac == nil {
		return fmt.Errorf("%w: jacobian at t=%g is not finite", sim.ErrInvalidState, t0)
	}
	return nil
}

func (b *BDF) eval(t float64, y sim.State) (sim.State, error) {
	b.stats.Evaluations++
	return b.dyn.Derivative(y, t)
}

// jacobian approximates df/dy column by column with forward differences. It
// returns a nil matrix when a perturbed evaluation is not finite.
func (b *BDF) jacobian(t float64, y, f sim.State) (*mat.Dense, error) {
	b.stats.Jacobians++
	jac := mat.NewDense(b.n, b.n, nil)
	yp := y.Clone()
	for j := 0; j < b.n; j++ {
		delta := math.Sqrt(epsilon) * math.Max(math.Abs(y[j]), 1)
		yp[j] = y[j] + delta
		delta = yp[j] - y[j]
		fp, err := b.eval(t, yp)
		if err != nil {
			return nil, err
		}
		if !fp.IsValid() {
			return nil, nil
		}
		for i := 0; i < b.n; i++ {
			jac.Set(i, j, (fp[i]-f[i])/delta)
		}
		yp[j] = y[j]
	}
	return jac, nil
}

// start picks the first step size once the integration bound is known.
func (b *BDF) start(tBound float64) error {
	h := b.firstStep
	if h <= 0 {
		var err error
		h, err = b.initialStep(tBound)
		if err != nil {
			return err
		}
	}
	if b.maxStep > 0 {
		h = math.Min(h, b.maxStep)
	}
	if !(h > 0) {
		h = tBound - b.t
	}
	b.hAbs = h
	for i := 0; i < b.n; i++ {
		b.d[0][i] = b.y[i]
		b.d[1][i] = b.f0[i] * h
	}
	b.started = true
	return nil
}

func (b *BDF) initialStep(tBound float64) (float64, error) {
	interval := math.Abs(tBound - b.t)
	if interval == 0 {
		return 0, nil
	}
	scale := make([]float64, b.n)
	for i := range scale {
		scale[i] = b.atol + math.Abs(b.y[i])*b.rtol
	}
	d0 := rmsScaled(b.y, scale)
	d1 := rmsScaled(b.f0, scale)
	h0 := 0.01 * d0 / d1
	if d0 < 1e-5 || d1 < 1e-5 {
		h0 = 1e-6
	}
	h0 = math.Min(h0, interval)

	y1 := make(sim.State, b.n)
	for i := range y1 {
		y1[i] = b.y[i] + h0*b.f0[i]
	}
	f1, err := b.eval(b.t+h0, y1)
	if err != nil {
		return 0, err
	}
	diff := make([]float64, b.n)
	for i := range diff {
		diff[i] = f1[i] - b.f0[i]
	}
	d2 := rmsScaled(diff, scale) / h0

	var h1 float64
	if d1 <= 1e-15 && d2 <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Sqrt(0.01 / math.Max(d1, d2))
	}
	return math.Min(math.Min(100*h0, h1), interval), nil
}

func (b *BDF) Advance(tBound float64) (sim.Step, error) {
	if b.n == 0 {
		b.dense.t, b.dense.h = tBound, tBound-b.t
		b.t = tBound
		b.stats.Steps++
		return sim.Step{T: b.t, X: sim.State{}}, nil
	}
	if !b.started {
		if err := b.start(tBound); err != nil {
			return sim.Step{}, err
		}
	}

	t := b.t
	minStep := 10 * math.Abs(math.Nextafter(t, math.Inf(1))-t)

	if b.maxStep > 0 && b.hAbs > b.maxStep {
		b.rescale(b.maxStep / b.hAbs)
	} else if b.hAbs < minStep {
		b.rescale(minStep / b.hAbs)
	}

	var (
		tNew   float64
		yNew   sim.State
		dNew   []float64
		scale  = make([]float64, b.n)
		errN   float64
		safety float64
	)
	for accepted := false; !accepted; {
		if b.hAbs < minStep {
			return sim.Step{}, fmt.Errorf("%w: h=%g at t=%g", sim.ErrStepTooSmall, b.hAbs, t)
		}

		tNew = t + b.hAbs
		if tNew > tBound {
			tNew = tBound
			b.rescale((tNew - t) / b.hAbs)
		}
		h := tNew - t
		b.hAbs = h

		yPredict := make(sim.State, b.n)
		psi := make([]float64, b.n)
		for i := 0; i < b.n; i++ {
			for k := 0; k <= b.order; k++ {
				yPredict[i] += b.d[k][i]
			}
			for k := 1; k <= b.order; k++ {
				psi[i] += b.d[k][i] * bdfGamma[k]
			}
			psi[i] /= bdfGamma[b.order]
			scale[i] = b.atol + b.rtol*math.Abs(yPredict[i])
		}
		c := h / bdfGamma[b.order]

		var (
			converged bool
			iters     int
			freshJac  bool
		)
		for {
			if !b.luValid {
				b.factorize(c)
			}
			var err error
			converged, iters, yNew, dNew, err = b.newton(tNew, yPredict, c, psi, scale)
			if err != nil {
				return sim.Step{}, err
			}
			if converged || freshJac {
				break
			}
			f, err := b.eval(tNew, yPredict)
			if err != nil {
				return sim.Step{}, err
			}
			if !f.IsValid() {
				break
			}
			jac, err := b.jacobian(tNew, yPredict, f)
			if err != nil {
				return sim.Step{}, err
			}
			if jac == nil {
				break
			}
			b.jac = jac
			b.luValid = false
			freshJac = true
		}

		if !converged {
			b.rescale(0.5)
			b.stats.Rejected++
			continue
		}

		safety = 0.9 * float64(2*newtonMaxIter+1) / float64(2*newtonMaxIter+iters)
		errVec := make([]float64, b.n)
		for i := 0; i < b.n; i++ {
			scale[i] = b.atol + b.rtol*math.Abs(yNew[i])
			errVec[i] = bdfErrorConst[b.order] * dNew[i]
		}
		errN = rmsScaled(errVec, scale)

		if errN > 1 {
			factor := math.Max(bdfMinFactor, safety*math.Pow(errN, -1/float64(b.order+1)))
			b.rescale(factor)
			b.stats.Rejected++
			continue
		}
		accepted = true
	}

	b.nEqual++
	b.t = tNew
	b.y = yNew

	k := b.order
	for i := 0; i < b.n; i++ {
		b.d[k+2][i] = dNew[i] - b.d[k+1][i]
		b.d[k+1][i] = dNew[i]
	}
	for j := k; j >= 0; j-- {
		for i := 0; i < b.n; i++ {
			b.d[j][i] += b.d[j+1][i]
		}
	}
	b.snapshot()

	b.stats.Steps++
	b.stats.LastStep = b.hAbs
	b.selectOrder(scale, errN, safety)
	return sim.Step{T: b.t, X: b.y.Clone()}, nil
}

func (b *BDF) factorize(c float64) {
	m := mat.NewDense(b.n, b.n, nil)
	m.Scale(-c, b.jac)
	for i := 0; i < b.n; i++ {
		m.Set(i, i, 1+m.At(i, i))
	}
	b.lu.Factorize(m)
	b.luValid = true
	b.stats.Factorized++
}

// newton solves the corrector equation for d = y - yPredict. A non-nil error
// means the model itself failed; divergence is reported as !converged.
func (b *BDF) newton(t float64, yPredict sim.State, c float64, psi, scale []float64) (bool, int, sim.State, []float64, error) {
	y := yPredict.Clone()
	d := make([]float64, b.n)
	rhs := mat.NewVecDense(b.n, nil)
	var dy mat.VecDense

	dyNormOld := -1.0
	converged := false
	iters := 0
	for k := 0; k < newtonMaxIter; k++ {
		iters = k + 1
		f, err := b.eval(t, y)
		if err != nil {
			return false, iters, nil, nil, err
		}
		if !f.IsValid() {
			break
		}
		for i := 0; i < b.n; i++ {
			rhs.SetVec(i, c*f[i]-psi[i]-d[i])
		}
		// Singular or badly conditioned: let the caller shrink the step.
		if err := b.lu.SolveVecTo(&dy, false, rhs); err != nil {
			break
		}

		dyNorm := 0.0
		for i := 0; i < b.n; i++ {
			v := dy.AtVec(i) / scale[i]
			dyNorm += v * v
		}
		dyNorm = math.Sqrt(dyNorm / float64(b.n))

		rate := 0.0
		if dyNormOld >= 0 {
			rate = dyNorm / dyNormOld
			if rate >= 1 || math.Pow(rate, float64(newtonMaxIter-k))/(1-rate)*dyNorm > b.newtonTol {
				break
			}
		}

		for i := 0; i < b.n; i++ {
			y[i] += dy.AtVec(i)
			d[i] += dy.AtVec(i)
		}

		if dyNorm == 0 || (dyNormOld >= 0 && rate/(1-rate)*dyNorm < b.newtonTol) {
			converged = true
			break
		}
		dyNormOld = dyNorm
	}
	return converged, iters, y, d, nil
}

// selectOrder runs after enough equal steps and moves the order by at most one
// in the direction that allows the largest next step.
func (b *BDF) selectOrder(scale []float64, errN, safety float64) {
	if b.nEqual < b.order+1 {
		return
	}
	k := b.order
	errM, errP := math.Inf(1), math.Inf(1)
	tmp := make([]float64, b.n)
	if k > 1 {
		for i := range tmp {
			tmp[i] = bdfErrorConst[k-1] * b.d[k][i]
		}
		errM = rmsScaled(tmp, scale)
	}
	if k < bdfMaxOrder {
		for i := range tmp {
			tmp[i] = bdfErrorConst[k+1] * b.d[k+2][i]
		}
		errP = rmsScaled(tmp, scale)
	}

	norms := [3]float64{errM, errN, errP}
	best, bestFactor := 0, math.Inf(-1)
	for i, e := range norms {
		f := math.Pow(e, -1/float64(k+i))
		if f > bestFactor {
			best, bestFactor = i, f
		}
	}

	b.order = k + best - 1
	if b.order > b.stats.MaxOrder {
		b.stats.MaxOrder = b.order
	}
	b.stats.Order = b.order
	b.rescale(math.Min(bdfMaxFactor, safety*bestFactor))
}

// rescale changes the step by factor, rewriting the difference array for the
// new spacing.
func (b *BDF) rescale(factor float64) {
	b.hAbs *= factor
	b.nEqual = 0
	b.luValid = false

	k := b.order
	r := bdfR(k, factor)
	u := bdfR(k, 1)
	ru := make([][]float64, k+1)
	for i := 0; i <= k; i++ {
		ru[i] = make([]float64, k+1)
		for j := 0; j <= k; j++ {
			for m := 0; m <= k; m++ {
				ru[i][j] += r[i][m] * u[m][j]
			}
		}
	}

	next := make([][]float64, k+1)
	for j := 0; j <= k; j++ {
		next[j] = make([]float64, b.n)
		for m := 0; m <= k; m++ {
			w := ru[m][j]
			if w == 0 {
				continue
			}
			for i := 0; i < b.n; i++ {
				next[j][i] += w * b.d[m][i]
			}
		}
	}
	for j := 0; j <= k; j++ {
		copy(b.d[j], next[j])
	}
}

// bdfR is the transformation between difference arrays of step h and
// factor*h for the given order.
func bdfR(order int, factor float64) [][]float64 {
	m := make([][]float64, order+1)
	for i := range m {
		m[i] = make([]float64, order+1)
	}
	for j := 0; j <= order; j++ {
		m[0][j] = 1
	}
	for i := 1; i <= order; i++ {
		for j := 1; j <= order; j++ {
			m[i][j] = (float64(i) - 1 - factor*float64(j)) / float64(i)
		}
	}
	for i := 1; i <= order; i++ {
		for j := 0; j <= order; j++ {
			m[i][j] *= m[i-1][j]
		}
	}
	return m
}

func (b *BDF) snapshot() {
	k := b.order
	if cap(b.dense.d) < k+1 {
		b.dense.d = make([][]float64, bdfMaxOrder+1)
		for i := range b.dense.d {
			b.dense.d[i] = make([]float64, b.n)
		}
	}
	b.dense.d = b.dense.d[:k+1]
	for j := 0; j <= k; j++ {
		if len(b.dense.d[j]) != b.n {
			b.dense.d[j] = make([]float64, b.n)
		}
		copy(b.dense.d[j], b.d[j])
	}
	b.dense.t = b.t
	b.dense.h = b.hAbs
	b.dense.order = k
}

// Interpolate evaluates the backward-difference polynomial of the last step,
// which passes through the last order+1 solution points.
func (b *BDF) Interpolate(t float64) sim.State {
	out := make(sim.State, b.n)
	if b.dense.d == nil {
		copy(out, b.y)
		return out
	}
	copy(out, b.dense.d[0])
	p := 1.0
	for j := 0; j < b.dense.order; j++ {
		shift := b.dense.t - b.dense.h*float64(j)
		p *= (t - shift) / (b.dense.h * float64(j+1))
		for i := range out {
			out[i] += b.dense.d[j+1][i] * p
		}
	}
	return out
}

func rmsScaled(v, scale []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for i := range v {
		x := v[i] / scale[i]
		sum += x * x
	}
	return math.Sqrt(sum / float64(len(v)))
}
