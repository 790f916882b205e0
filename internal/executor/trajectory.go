package executor

// Sample is the position of body1 at one output time.
type Sample struct {
	Time float64 `json:"time"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
}

// Trajectory is the result of a successful run, ordered by strictly
// increasing time.
type Trajectory struct {
	Model   string   `json:"model"`
	Solver  Solver   `json:"solver"`
	Steps   int      `json:"steps"`
	Samples []Sample `json:"samples"`
}

func (t *Trajectory) Len() int { return len(t.Samples) }

// Columns splits the samples into parallel slices.
func (t *Trajectory) Columns() (time, x, y, z []float64) {
	n := len(t.Samples)
	time = make([]float64, n)
	x = make([]float64, n)
	y = make([]float64, n)
	z = make([]float64, n)
	for i, s := range t.Samples {
		time[i], x[i], y[i], z[i] = s.Time, s.X, s.Y, s.Z
	}
	return time, x, y, z
}

// Channel returns one coordinate series: 0 for x, 1 for y, 2 for z.
func (t *Trajectory) Channel(axis int) []float64 {
	out := make([]float64, len(t.Samples))
	for i, s := range t.Samples {
		switch axis {
		case 0:
			out[i] = s.X
		case 1:
			out[i] = s.Y
		default:
			out[i] = s.Z
		}
	}
	return out
}

func (t *Trajectory) Times() []float64 {
	out := make([]float64, len(t.Samples))
	for i, s := range t.Samples {
		out[i] = s.Time
	}
	return out
}
