package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"dezolver/internal/common/cache"
	"dezolver/internal/common/db"
	"dezolver/internal/common/storage"
	"dezolver/internal/grading/model"
	"dezolver/internal/grading/sandbox"
	"dezolver/pkg/utils/logger"
)

// Config is the grader's full configuration tree.
type Config struct {
	Server    ServerConfig        `yaml:"server"`
	Log       logger.Config       `yaml:"log"`
	MySQL     db.MySQLConfig      `yaml:"mysql"`
	Redis     cache.RedisConfig   `yaml:"redis"`
	MinIO     storage.MinIOConfig `yaml:"minio"`
	Grading   GradingConfig       `yaml:"grading"`
	RateLimit RateLimitConfig     `yaml:"rateLimit"`
	Sandbox   SandboxConfig       `yaml:"sandbox"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"` // gin mode: debug, release, test
}

// GradingConfig bounds the queue and the worker pool.
type GradingConfig struct {
	QueueCapacity  int           `yaml:"queueCapacity"`
	Workers        int           `yaml:"workers"`
	LeaseTTL       time.Duration `yaml:"leaseTTL"`
	RunMargin      time.Duration `yaml:"runMargin"`
	SweepInterval  time.Duration `yaml:"sweepInterval"`
	MaxSourceBytes int           `yaml:"maxSourceBytes"`
	StatusTTL      time.Duration `yaml:"statusTTL"`
}

// RateLimitConfig is the per-user fixed-window admission cap.
type RateLimitConfig struct {
	Limit  int64         `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// SandboxConfig selects and parameterizes the execution adapter.
type SandboxConfig struct {
	WorkRoot  string                                 `yaml:"workRoot"`
	Languages map[model.Language]sandbox.CommandSpec `yaml:"languages"`
}

// LoadConfig reads and validates the YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Grading.QueueCapacity <= 0 {
		c.Grading.QueueCapacity = 256
	}
	if c.Grading.Workers <= 0 {
		c.Grading.Workers = 4
	}
	if c.Grading.LeaseTTL <= 0 {
		c.Grading.LeaseTTL = 30 * time.Second
	}
	if c.Grading.RunMargin <= 0 {
		c.Grading.RunMargin = 2 * time.Second
	}
	if c.Grading.SweepInterval <= 0 {
		c.Grading.SweepInterval = 10 * time.Second
	}
	if c.Grading.MaxSourceBytes <= 0 {
		c.Grading.MaxSourceBytes = 64 * 1024
	}
	if c.Grading.StatusTTL <= 0 {
		c.Grading.StatusTTL = 24 * time.Hour
	}
	if c.RateLimit.Limit <= 0 {
		c.RateLimit.Limit = 10
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.Sandbox.WorkRoot == "" {
		c.Sandbox.WorkRoot = os.TempDir()
	}
}

func (c *Config) validate() error {
	if len(c.Sandbox.Languages) == 0 {
		return fmt.Errorf("config: sandbox.languages must define at least one language")
	}
	for lang := range c.Sandbox.Languages {
		if _, ok := model.ParseLanguage(string(lang)); !ok {
			return fmt.Errorf("config: sandbox.languages has unknown language %q", lang)
		}
	}
	return nil
}
