package analysis

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/fmusim/internal/executor"
)

type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

func ParseAxis(s string) (Axis, error) {
	switch s {
	case "x", "X":
		return AxisX, nil
	case "y", "Y":
		return AxisY, nil
	case "z", "Z":
		return AxisZ, nil
	}
	return 0, fmt.Errorf("unknown axis %q (want x, y or z)", s)
}

var ErrTooShort = errors.New("trajectory too short for analysis")

// Resample linearly interpolates (times, values) onto n evenly spaced
// points spanning the same interval. times must be increasing.
func Resample(times, values []float64, n int) ([]float64, float64, error) {
	if len(times) != len(values) {
		return nil, 0, fmt.Errorf("resample: %d times for %d values", len(times), len(values))
	}
	if len(times) < 2 || n < 2 {
		return nil, 0, ErrTooShort
	}
	t0, t1 := times[0], times[len(times)-1]
	if !(t1 > t0) {
		return nil, 0, ErrTooShort
	}

	dt := (t1 - t0) / float64(n-1)
	out := make([]float64, n)
	j := 0
	for i := range out {
		t := t0 + float64(i)*dt
		for j < len(times)-2 && times[j+1] < t {
			j++
		}
		span := times[j+1] - times[j]
		if span <= 0 {
			out[i] = values[j+1]
			continue
		}
		a := (t - times[j]) / span
		out[i] = values[j] + a*(values[j+1]-values[j])
	}
	return out, dt, nil
}

type Spectrum struct {
	Axis        Axis
	SampleRate  float64
	Frequencies []float64
	Power       []float64

	// Dominant is the frequency of the strongest non-zero bin.
	Dominant float64
}

// Analyze resamples one channel onto at least n points (rounded up to a
// power of two), removes its mean and computes the power spectrum.
func Analyze(traj *executor.Trajectory, axis Axis, n int) (*Spectrum, error) {
	if axis < AxisX || axis > AxisZ {
		return nil, fmt.Errorf("analyze: %v", axis)
	}
	n = nextPow2(max(n, 8))
	values, dt, err := Resample(traj.Times(), traj.Channel(int(axis)), n)
	if err != nil {
		return nil, err
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	for i := range values {
		values[i] -= mean
	}

	power := PowerSpectrum(values)
	sp := &Spectrum{
		Axis:        axis,
		SampleRate:  1 / dt,
		Frequencies: make([]float64, len(power)),
		Power:       power,
	}
	df := sp.SampleRate / float64(n)
	best := 0
	for i := range power {
		sp.Frequencies[i] = float64(i) * df
		if i > 0 && power[i] > power[best] {
			best = i
		}
	}
	if best > 0 {
		sp.Dominant = sp.Frequencies[best]
	}
	return sp, nil
}

type Peak struct {
	Frequency float64
	Power     float64
}

// Peaks returns the k strongest local maxima of the spectrum, strongest first.
func (s *Spectrum) Peaks(k int) []Peak {
	var peaks []Peak
	for i := 1; i < len(s.Power)-1; i++ {
		if s.Power[i] > s.Power[i-1] && s.Power[i] >= s.Power[i+1] {
			peaks = append(peaks, Peak{Frequency: s.Frequencies[i], Power: s.Power[i]})
		}
	}
	sort.Slice(peaks, func(a, b int) bool { return peaks[a].Power > peaks[b].Power })
	if len(peaks) > k {
		peaks = peaks[:k]
	}
	return peaks
}
