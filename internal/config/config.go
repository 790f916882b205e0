// Package config loads YAML run files for the command line tool.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/fmusim/internal/executor"
	"github.com/san-kum/fmusim/internal/logging"
)

const (
	DefaultStopTime = executor.DefaultStopTime
	DefaultSolver   = "CVode"
	DefaultDataDir  = "runs"
	DefaultLevel    = "info"
	DefaultFormat   = "console"
)

type Config struct {
	FMU         string          `yaml:"fmu"`
	StopTime    float64         `yaml:"stop_time"`
	StepSize    float64         `yaml:"step_size"`
	Solver      string          `yaml:"solver"`
	StartValues map[string]any  `yaml:"start_values,omitempty"`
	Tolerance   ToleranceConfig `yaml:"tolerance,omitempty"`
	Log         LogConfig       `yaml:"log"`
	Tracing     bool            `yaml:"tracing,omitempty"`
	DataDir     string          `yaml:"data_dir"`
}

// ToleranceConfig overrides the adaptive solver tolerances. Zero values keep
// the model's suggested tolerance.
type ToleranceConfig struct {
	Relative float64 `yaml:"relative,omitempty"`
	Absolute float64 `yaml:"absolute,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func DefaultConfig() *Config {
	return &Config{
		StopTime: DefaultStopTime,
		Solver:   DefaultSolver,
		Log: LogConfig{
			Level:  DefaultLevel,
			Format: DefaultFormat,
		},
		DataDir: DefaultDataDir,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if _, err := executor.ParseSolver(c.Solver); err != nil {
		return err
	}
	if c.StepSize < 0 {
		return fmt.Errorf("step_size must not be negative, got %g", c.StepSize)
	}
	if c.Tolerance.Relative < 0 || c.Tolerance.Absolute < 0 {
		return fmt.Errorf("tolerances must not be negative")
	}
	return nil
}

// Request converts the run settings into an executor request.
func (c *Config) Request() (executor.Request, error) {
	solver, err := executor.ParseSolver(c.Solver)
	if err != nil {
		return executor.Request{}, err
	}
	sv := make(map[string]any, len(c.StartValues))
	for k, v := range c.StartValues {
		sv[k] = v
	}
	return executor.Request{
		StartValues: sv,
		StopTime:    c.StopTime,
		StepSize:    c.StepSize,
		Solver:      solver,
	}, nil
}

// ExecutorOptions returns the options implied by the tolerance section.
func (c *Config) ExecutorOptions() []executor.Option {
	if c.Tolerance.Relative <= 0 {
		return nil
	}
	atol := c.Tolerance.Absolute
	if atol <= 0 {
		atol = c.Tolerance.Relative * 1e-2
	}
	return []executor.Option{executor.WithTolerances(c.Tolerance.Relative, atol)}
}

func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format}
}

// ApplyPreset layers p over c: preset start values win over existing ones of
// the same name, and non-zero run settings replace c's.
func (c *Config) ApplyPreset(p *Config) {
	if p == nil {
		return
	}
	if c.StartValues == nil {
		c.StartValues = make(map[string]any, len(p.StartValues))
	}
	for k, v := range p.StartValues {
		c.StartValues[k] = v
	}
	if p.StopTime > 0 {
		c.StopTime = p.StopTime
	}
	if p.StepSize > 0 {
		c.StepSize = p.StepSize
	}
	if p.Solver != "" {
		c.Solver = p.Solver
	}
}
