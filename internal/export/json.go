package export

import (
	"encoding/json"
	"io"

	"github.com/san-kum/fmusim/internal/executor"
)

// Document is the JSON form of a run: its inputs, the column arrays and any
// computed metrics.
type Document struct {
	Model       string             `json:"model"`
	Solver      executor.Solver    `json:"solver"`
	StopTime    float64            `json:"stopTime"`
	StepSize    float64            `json:"stepSize"`
	StartValues map[string]any     `json:"startValues,omitempty"`
	NumSteps    int                `json:"numSteps"`
	Time        []float64          `json:"time"`
	X           []float64          `json:"x"`
	Y           []float64          `json:"y"`
	Z           []float64          `json:"z"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

func NewDocument(traj *executor.Trajectory, req executor.Request, metrics map[string]float64) Document {
	res := req.Resolve()
	t, x, y, z := traj.Columns()
	return Document{
		Model:       traj.Model,
		Solver:      traj.Solver,
		StopTime:    res.StopTime,
		StepSize:    res.StepSize,
		StartValues: req.StartValues,
		NumSteps:    traj.Len(),
		Time:        t,
		X:           x,
		Y:           y,
		Z:           z,
		Metrics:     metrics,
	}
}

// Trajectory rebuilds the samples held by d.
func (d Document) Trajectory() *executor.Trajectory {
	traj := &executor.Trajectory{
		Model:   d.Model,
		Solver:  d.Solver,
		Samples: make([]executor.Sample, len(d.Time)),
	}
	for i := range d.Time {
		traj.Samples[i] = executor.Sample{Time: d.Time[i], X: d.X[i], Y: d.Y[i], Z: d.Z[i]}
	}
	return traj
}

func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func ReadJSON(r io.Reader) (Document, error) {
	var doc Document
	err := json.NewDecoder(r).Decode(&doc)
	return doc, err
}
