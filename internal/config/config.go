package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/san-kum/quadsim/internal/quadtree"
	"gopkg.in/yaml.v3"
)

const (
	DefaultGenerator  = "random"
	DefaultBodies     = 1000
	DefaultDomainSize = 700.0
	DefaultSteps      = 500
	DefaultTPS        = 100.0
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	DefaultDataDir    = "./data"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	// Scenario is a scenario file; when set it replaces the generator.
	Scenario    string     `yaml:"scenario,omitempty"`
	Generator   string     `yaml:"generator"`
	Bodies      int        `yaml:"bodies"`
	Seed        int64      `yaml:"seed"`
	DomainSize  float64    `yaml:"domain_size"`
	Steps       int        `yaml:"steps"`
	Workers     int        `yaml:"workers"`
	SampleEvery int        `yaml:"sample_every"`
	TPS         float64    `yaml:"tps"`
	Tree        TreeConfig `yaml:"tree"`
	LogLevel    string     `yaml:"log_level"`
	LogFormat   string     `yaml:"log_format"`
	DataDir     string     `yaml:"data_dir"`
}

type TreeConfig struct {
	ThresholdRatio float64 `yaml:"threshold_ratio"`
	MinSize        float64 `yaml:"min_size"`
	G              float64 `yaml:"g"`
}

func DefaultConfig() *Config {
	return &Config{
		Generator:   DefaultGenerator,
		Bodies:      DefaultBodies,
		Seed:        1,
		DomainSize:  DefaultDomainSize,
		Steps:       DefaultSteps,
		SampleEvery: 10,
		TPS:         DefaultTPS,
		Tree: TreeConfig{
			ThresholdRatio: quadtree.DefaultThresholdRatio,
			MinSize:        quadtree.DefaultMinSize,
			G:              quadtree.DefaultG,
		},
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		DataDir:   DefaultDataDir,
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
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

// ApplyEnv overrides fields from QUADSIM_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("QUADSIM_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("QUADSIM_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("QUADSIM_DATA"); v != "" {
		c.DataDir = v
	}
}

func (c *Config) TreeParams() quadtree.Params {
	return quadtree.Params{
		ThresholdRatio: c.Tree.ThresholdRatio,
		MinSize:        c.Tree.MinSize,
		G:              c.Tree.G,
	}
}

func (c *Config) Validate() error {
	var problems []string
	if c.Scenario == "" && c.Generator == "" {
		problems = append(problems, "either scenario or generator must be set")
	}
	if c.Bodies < 0 {
		problems = append(problems, fmt.Sprintf("bodies must be >= 0, got %d", c.Bodies))
	}
	if !(c.DomainSize > 0) {
		problems = append(problems, fmt.Sprintf("domain_size must be positive, got %v", c.DomainSize))
	}
	if c.Steps < 0 {
		problems = append(problems, fmt.Sprintf("steps must be >= 0, got %d", c.Steps))
	}
	if c.Workers < 0 {
		problems = append(problems, fmt.Sprintf("workers must be >= 0, got %d", c.Workers))
	}
	if c.SampleEvery < 0 {
		problems = append(problems, fmt.Sprintf("sample_every must be >= 0, got %d", c.SampleEvery))
	}
	if err := c.TreeParams().Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
