// Package storage keeps finished runs on disk, one directory per run holding
// metadata.json and trajectory.csv.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/fmusim/internal/executor"
	"github.com/san-kum/fmusim/internal/export"
)

const (
	metadataFile   = "metadata.json"
	trajectoryFile = "trajectory.csv"
)

var ErrNotFound = errors.New("run not found")

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID          string             `json:"id"`
	Model       string             `json:"model"`
	FMU         string             `json:"fmu"`
	Timestamp   time.Time          `json:"timestamp"`
	Solver      executor.Solver    `json:"solver"`
	StopTime    float64            `json:"stopTime"`
	StepSize    float64            `json:"stepSize"`
	StartValues map[string]any     `json:"startValues,omitempty"`
	NumSteps    int                `json:"numSteps"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

// Save writes a run and returns its id. The id is the model name, a unix
// timestamp and a short random suffix, so concurrent saves never collide.
func (s *Store) Save(fmuPath string, req executor.Request, traj *executor.Trajectory, metrics map[string]float64) (string, error) {
	now := s.now()
	runID := fmt.Sprintf("%s_%d_%s", traj.Model, now.Unix(), strings.SplitN(uuid.NewString(), "-", 2)[0])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	res := req.Resolve()
	meta := RunMetadata{
		ID:          runID,
		Model:       traj.Model,
		FMU:         fmuPath,
		Timestamp:   now,
		Solver:      traj.Solver,
		StopTime:    res.StopTime,
		StepSize:    res.StepSize,
		StartValues: req.StartValues,
		NumSteps:    traj.Len(),
		Metrics:     metrics,
	}

	if err := writeFile(filepath.Join(runDir, metadataFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		return "", err
	}
	if err := writeFile(filepath.Join(runDir, trajectoryFile), func(w io.Writer) error {
		return export.WriteCSV(w, traj)
	}); err != nil {
		return "", err
	}
	return runID, nil
}

// writeFile creates path, fills it with write and reports the first failure,
// including the one from Close.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// List returns every readable run, newest first. Directories without valid
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadTrajectory reads a saved run back as a trajectory.
func (s *Store) LoadTrajectory(runID string) (*RunMetadata, *executor.Trajectory, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(s.baseDir, runID, trajectoryFile))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	samples, err := export.ReadCSV(f)
	if err != nil {
		return nil, nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return meta, &executor.Trajectory{
		Model:   meta.Model,
		Solver:  meta.Solver,
		Samples: samples,
	}, nil
}

func (s *Store) Delete(runID string) error {
	if _, err := s.Load(runID); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(s.baseDir, runID))
}
