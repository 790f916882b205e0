// Package export writes trajectories and variable listings in formats meant
// for people and other tools: CSV, JSON, terminal plots, PNG and SVG.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/fmusim/internal/executor"
)

var csvHeader = []string{"time", "x", "y", "z"}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// WriteCSV writes one row per sample under a time,x,y,z header. Values use
// the shortest representation that round-trips.
func WriteCSV(w io.Writer, traj *executor.Trajectory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range traj.Samples {
		row := []string{formatFloat(s.Time), formatFloat(s.X), formatFloat(s.Y), formatFloat(s.Z)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses what WriteCSV wrote.
func ReadCSV(r io.Reader) ([]executor.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv: missing header")
	}
	for i, h := range csvHeader {
		if records[0][i] != h {
			return nil, fmt.Errorf("csv: column %d is %q, want %q", i, records[0][i], h)
		}
	}

	samples := make([]executor.Sample, 0, len(records)-1)
	for line, rec := range records[1:] {
		var v [4]float64
		for i, field := range rec {
			if v[i], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("csv: line %d: %w", line+2, err)
			}
		}
		samples = append(samples, executor.Sample{Time: v[0], X: v[1], Y: v[2], Z: v[3]})
	}
	return samples, nil
}
