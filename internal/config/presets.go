package config

import "sort"

// Presets are named start-value sets per built-in model identifier.
var Presets = map[string]map[string]*Config{
	"SpringDamperSystem": {
		"heavy": {
			StopTime:    20.0,
			StartValues: map[string]any{"mass": 5.0, "d": 2.0},
		},
		"stiff": {
			StopTime: 5.0, StepSize: 0.005,
			StartValues: map[string]any{"c": 2000.0, "d": 5.0},
		},
		"loose": {
			StopTime:    30.0,
			StartValues: map[string]any{"c": 2.0, "d": 0.1, "s_unstretched": 1.0},
		},
	},
	"Pendulum": {
		"small": {
			StopTime:    20.0,
			StartValues: map[string]any{"phi": 0.2, "d": 0.0},
		},
		"large": {
			StopTime:    20.0,
			StartValues: map[string]any{"phi": 2.5},
		},
		"spinning": {
			StopTime:    30.0,
			StartValues: map[string]any{"phi": 0.1, "w": 8.0},
		},
	},
	"DoublePendulum": {
		"gentle": {
			StopTime: 30.0, StepSize: 0.01,
			StartValues: map[string]any{"phi1": 0.3, "phi2": 0.3},
		},
		"symmetric": {
			StopTime: 30.0, StepSize: 0.005,
			StartValues: map[string]any{"phi1": 1.5, "phi2": 1.5},
		},
		"chaos": {
			StopTime: 60.0, StepSize: 0.005,
			StartValues: map[string]any{"phi1": 3.0, "phi2": 3.0},
		},
	},
}

func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg
}

// ListPresets returns the preset names of a model, sorted.
func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PresetModels returns the model identifiers that have presets, sorted.
func PresetModels() []string {
	models := make([]string, 0, len(Presets))
	for m := range Presets {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}
