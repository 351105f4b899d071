package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
	"sheetdrip/internal/domain"
	"sheetdrip/internal/scheduler"
)

// Config is the service configuration file.
type Config struct {
	Server    ServerConfig           `yaml:"server"`
	Storage   StorageConfig          `yaml:"storage"`
	Logging   LoggingConfig          `yaml:"logging"`
	Delivery  DeliveryConfig         `yaml:"delivery"`
	Automator domain.AutomatorConfig `yaml:"automator"` // seeds the persisted config on first boot
	AutoStart AutoStartConfig        `yaml:"autostart"`
	Events    EventsConfig           `yaml:"events"`
}

type ServerConfig struct {
	Addr  string `yaml:"addr" validate:"required"`
	Debug bool   `yaml:"debug"` // mounts /debug/pprof
}

type StorageConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite bolt"`
	Path   string `yaml:"path" validate:"required"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

type DeliveryConfig struct {
	Driver       string        `yaml:"driver" validate:"oneof=webhook shell"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxPerMinute int           `yaml:"max_per_minute" validate:"min=0"`
	Command      string        `yaml:"command" validate:"required_if=Driver shell"`
	Args         []string      `yaml:"args"`
}

type AutoStartConfig struct {
	Cron string `yaml:"cron"`
}

type EventsConfig struct {
	Capacity int `yaml:"capacity" validate:"min=0"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// Load reads, defaults and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "sheetdrip.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Delivery.Driver == "" {
		c.Delivery.Driver = "webhook"
	}
	if c.Delivery.Timeout <= 0 {
		c.Delivery.Timeout = 30 * time.Second
	}
	def := domain.DefaultAutomatorConfig()
	if c.Automator.BatchSize == 0 {
		c.Automator.BatchSize = def.BatchSize
	}
	if c.Automator.IntervalMinutes == 0 {
		c.Automator.IntervalMinutes = def.IntervalMinutes
	}
	if c.Automator.SheetName == "" {
		c.Automator.SheetName = def.SheetName
	}
	if c.Events.Capacity == 0 {
		c.Events.Capacity = 50
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.AutoStart.Cron != "" {
		if err := scheduler.ValidateCronExpression(c.AutoStart.Cron); err != nil {
			return fmt.Errorf("autostart.cron: %w", err)
		}
	}
	return nil
}

// ValidateAutomator checks a runtime AutomatorConfig update.
func ValidateAutomator(cfg domain.AutomatorConfig) error {
	return validator.New().Struct(cfg)
}
