// Package config loads the service configuration from YAML.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Device struct {
		ID    string `yaml:"id"`
		Slots int    `yaml:"slots"`
	} `yaml:"device"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	API struct {
		Port int `yaml:"port"`
	} `yaml:"api"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Trigger struct {
		RatePerMinute int `yaml:"rate_per_minute"`
		Burst         int `yaml:"burst"`
	} `yaml:"trigger"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Device.ID == "" {
		cfg.Device.ID = "my_device_1"
	}
	if cfg.Device.Slots <= 0 {
		cfg.Device.Slots = 6
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}

	return &cfg, nil
}

// TriggerRatePerMinute returns the manual trigger command rate, defaulted.
func (c *Config) TriggerRatePerMinute() int {
	if c.Trigger.RatePerMinute <= 0 {
		return 12
	}
	return c.Trigger.RatePerMinute
}

// TriggerBurst returns the trigger burst size, defaulted.
func (c *Config) TriggerBurst() int {
	if c.Trigger.Burst <= 0 {
		return 3
	}
	return c.Trigger.Burst
}
