// Package config loads the YAML configuration shared by the trainer and the web UI.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"waterguard/ml"
	"waterguard/water"
)

type Config struct {
	HTTP struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"http"`
	Log      LogConfig `yaml:"log"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Model struct {
		Path      string `yaml:"path"`
		Watch     bool   `yaml:"watch"`
		CacheSize int    `yaml:"cache_size"`
	} `yaml:"model"`
	Trainer    TrainerConfig         `yaml:"trainer"`
	Thresholds water.Thresholds      `yaml:"thresholds"`
	Inputs     map[string]InputRange `yaml:"inputs"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type TrainerConfig struct {
	Dataset         string   `yaml:"dataset"`
	Features        []string `yaml:"features"`
	LabelColumn     string   `yaml:"label_column"`
	TestRatio       float64  `yaml:"test_ratio"`
	Seed            int64    `yaml:"seed"`
	Trees           int      `yaml:"trees"`
	MaxDepth        int      `yaml:"max_depth"`
	MinSamplesSplit int      `yaml:"min_samples_split"`
}

// InputRange bounds one numeric form field.
type InputRange struct {
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Default float64 `yaml:"default"`
	Step    float64 `yaml:"step"`
}

// Clamp limits v to [Min, Max].
func (r InputRange) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

func (r InputRange) validate(name string) error {
	if r.Min > r.Max {
		return fmt.Errorf("inputs.%s: min %v exceeds max %v", name, r.Min, r.Max)
	}
	if r.Default < r.Min || r.Default > r.Max {
		return fmt.Errorf("inputs.%s: default %v outside [%v, %v]", name, r.Default, r.Min, r.Max)
	}
	if r.Step < 0 {
		return fmt.Errorf("inputs.%s: step must not be negative", name)
	}
	return nil
}

// DefaultInputs returns the form ranges for every known feature.
func DefaultInputs() map[string]InputRange {
	return map[string]InputRange{
		ml.FeaturePH:            {Min: 0, Max: 14, Default: 7.0, Step: 0.1},
		ml.FeatureFecalColiform: {Min: 0, Max: 2000, Default: 100, Step: 1},
		ml.FeatureDO:            {Min: 0, Max: 20, Default: 7, Step: 0.1},
		ml.FeatureBOD:           {Min: 0, Max: 30, Default: 2, Step: 0.1},
		ml.FeatureTurbidity:     {Min: 0, Max: 100, Default: 3, Step: 0.1},
		ml.FeatureTemp:          {Min: 0, Max: 45, Default: 25, Step: 0.5},
	}
}

// Default is the two-feature setup: pH and fecal coliform, seed 42, 25% held out,
// 300 trees.
func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Port = 8080
	cfg.HTTP.Timeout = 30 * time.Second
	cfg.HTTP.AllowedOrigins = []string{"*"}
	cfg.Log = LogConfig{
		Level:      "info",
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
	cfg.Model.Path = "water_quality_model.json"
	cfg.Model.CacheSize = 1024

	trainer := ml.DefaultTrainerConfig()
	cfg.Trainer = TrainerConfig{
		Dataset:         "region10_water_quality_2021.csv",
		Features:        append([]string(nil), trainer.Features...),
		LabelColumn:     trainer.LabelColumn,
		TestRatio:       trainer.TestRatio,
		Seed:            trainer.Seed,
		Trees:           trainer.NTrees,
		MaxDepth:        trainer.MaxDepth,
		MinSamplesSplit: trainer.MinSamplesSplit,
	}
	cfg.Thresholds = water.DefaultThresholds()
	cfg.Inputs = DefaultInputs()
	return cfg
}

// Load reads path over the defaults. When the file does not exist the defaults are returned
// together with an error wrapping os.ErrNotExist so callers can decide whether that is fatal.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
		return nil, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	schema, err := ml.ParseSchema(c.Trainer.Features)
	if err != nil {
		return fmt.Errorf("trainer.features: %w", err)
	}
	if c.Trainer.TestRatio <= 0 || c.Trainer.TestRatio >= 1 {
		return fmt.Errorf("trainer.test_ratio must be in (0,1), got %v", c.Trainer.TestRatio)
	}
	if c.Trainer.Trees < 1 {
		return fmt.Errorf("trainer.trees must be at least 1, got %d", c.Trainer.Trees)
	}
	if c.Trainer.MaxDepth < 0 {
		return fmt.Errorf("trainer.max_depth must not be negative, got %d", c.Trainer.MaxDepth)
	}
	if c.Model.Path == "" {
		return errors.New("model.path is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port out of range: %d", c.HTTP.Port)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	for _, name := range schema {
		r, ok := c.Inputs[name]
		if !ok {
			return fmt.Errorf("inputs.%s: missing range for trained feature", name)
		}
		if err := r.validate(name); err != nil {
			return err
		}
	}
	return nil
}

// Schema returns the configured feature schema. It assumes Validate has passed.
func (c *Config) Schema() ml.Schema {
	schema, _ := ml.ParseSchema(c.Trainer.Features)
	return schema
}

func (c *Config) TrainerConfig() ml.TrainerConfig {
	return ml.TrainerConfig{
		Features:        c.Schema(),
		LabelColumn:     c.Trainer.LabelColumn,
		TestRatio:       c.Trainer.TestRatio,
		Seed:            c.Trainer.Seed,
		NTrees:          c.Trainer.Trees,
		MaxDepth:        c.Trainer.MaxDepth,
		MinSamplesSplit: c.Trainer.MinSamplesSplit,
	}
}
