package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Catalog struct {
		TTL string `yaml:"ttl"`
	} `yaml:"catalog"`
	Notify struct {
		URL    string `yaml:"url"`
		Secret string `yaml:"secret"`
	} `yaml:"notify"`
	RateLimit struct {
		SweepInterval string      `yaml:"sweep_interval"`
		Register      LimitParams `yaml:"register"`
		Answer        LimitParams `yaml:"answer"`
		Participant   LimitParams `yaml:"participant"`
	} `yaml:"ratelimit"`
	CORS struct {
		Origins []string `yaml:"origins"`
	} `yaml:"cors"`
}

// LimitParams is one endpoint class quota: Max requests per Window.
type LimitParams struct {
	Window string `yaml:"window"`
	Max    int    `yaml:"max"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or
// malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
