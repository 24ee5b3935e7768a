// Package config loads the YAML file describing scheduled sync triggers:
// which job-creating endpoints to call, on what cron schedule and under what
// host-load conditions.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/syncmon/syncmon/app/conditions"
)

// Trigger describes one scheduled job creation
type Trigger struct {
	Spec       string             `yaml:"spec" json:"spec"`                               // cron expression
	Kind       string             `yaml:"kind" json:"kind"`                               // connector tag, e.g. "slack-channels"
	Endpoint   string             `yaml:"endpoint" json:"endpoint"`                       // job-creating path on the backend
	Notify     bool               `yaml:"notify,omitempty" json:"notify,omitempty"`       // notify on completion of created jobs
	Conditions *conditions.Config `yaml:"conditions,omitempty" json:"conditions,omitempty"` // host-load gating, optional
}

// Config is the top-level YAML file shape
type Config struct {
	Triggers []Trigger `yaml:"triggers" json:"triggers"`
}

// Load reads and verifies the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint gosec // path is operator-provided
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := Verify(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Verify validates the config structurally: every trigger needs a parsable
// cron spec, a kind and an endpoint
func Verify(cfg *Config) error {
	if len(cfg.Triggers) == 0 {
		return fmt.Errorf("at least one trigger is required")
	}

	for i, tr := range cfg.Triggers {
		if tr.Kind == "" {
			return fmt.Errorf("trigger %d: kind is required", i+1)
		}
		if tr.Endpoint == "" {
			return fmt.Errorf("trigger %d: endpoint is required", i+1)
		}
		if tr.Spec == "" {
			return fmt.Errorf("trigger %d: spec is required", i+1)
		}
		if _, err := cron.ParseStandard(tr.Spec); err != nil {
			return fmt.Errorf("trigger %d: invalid spec %q: %w", i+1, tr.Spec, err)
		}
		if tr.Conditions != nil {
			if err := verifyConditions(tr.Conditions, i+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func verifyConditions(c *conditions.Config, num int) error {
	checkPercent := func(name string, v *int) error {
		if v != nil && (*v < 0 || *v > 100) {
			return fmt.Errorf("trigger %d: %s must be 0-100, got %d", num, name, *v)
		}
		return nil
	}
	if err := checkPercent("cpu_below", c.CPUBelow); err != nil {
		return err
	}
	if err := checkPercent("memory_below", c.MemoryBelow); err != nil {
		return err
	}
	if err := checkPercent("disk_free_above", c.DiskFreeAbove); err != nil {
		return err
	}
	if c.LoadAvgBelow != nil && *c.LoadAvgBelow <= 0 {
		return fmt.Errorf("trigger %d: loadavg_below must be positive", num)
	}
	return nil
}
