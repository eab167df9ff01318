package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type CameraConfig struct {
	SnapshotURL  string        `mapstructure:"snapshot_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type DetectorConfig struct {
	Endpoint            string        `mapstructure:"endpoint"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	WatchLabels         []string      `mapstructure:"watch_labels"`
}

type EngineConfig struct {
	Cooldown  time.Duration `mapstructure:"cooldown"`
	IdleGrace time.Duration `mapstructure:"idle_grace"`
}

type SMTPConfig struct {
	Host       string   `mapstructure:"host"`
	Port       int      `mapstructure:"port"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	UseTLS     bool     `mapstructure:"use_tls"`
	Sender     string   `mapstructure:"sender"`
	Recipients []string `mapstructure:"recipients"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type DispatchConfig struct {
	MaxRetries     uint          `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

type HTTPConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthSecret string `mapstructure:"auth_secret"`
}

type Config struct {
	Camera   CameraConfig   `mapstructure:"camera"`
	Detector DetectorConfig `mapstructure:"detector"`
	Engine   EngineConfig   `mapstructure:"engine"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Database DatabaseConfig `mapstructure:"database"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Timezone string         `mapstructure:"timezone"`
}

// Location resolves the configured timezone for alert timestamps.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Load reads the YAML config file and applies SENTRY_-prefixed environment
// overrides (e.g. SENTRY_SMTP_PASSWORD beats smtp.password from the file).
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("camera.timeout", 10*time.Second)
	v.SetDefault("camera.poll_interval", time.Second)
	v.SetDefault("detector.timeout", 30*time.Second)
	v.SetDefault("detector.confidence_threshold", 0.5)
	v.SetDefault("detector.watch_labels", []string{"person"})
	v.SetDefault("engine.cooldown", time.Minute)
	v.SetDefault("engine.idle_grace", 5*time.Second)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.use_tls", true)
	v.SetDefault("dispatch.max_retries", 3)
	v.SetDefault("dispatch.initial_backoff", time.Second)
	v.SetDefault("dispatch.max_backoff", 30*time.Second)
	v.SetDefault("timezone", "UTC")

	v.SetConfigFile(path)
	v.SetEnvPrefix("SENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var problems []string

	if c.Camera.SnapshotURL == "" {
		problems = append(problems, "camera.snapshot_url is required")
	}
	if c.Camera.PollInterval <= 0 {
		problems = append(problems, "camera.poll_interval must be positive")
	}
	if c.Detector.Endpoint == "" {
		problems = append(problems, "detector.endpoint is required")
	}
	if c.Detector.ConfidenceThreshold < 0 || c.Detector.ConfidenceThreshold > 1 {
		problems = append(problems, "detector.confidence_threshold must be in [0,1]")
	}
	if len(c.Detector.WatchLabels) == 0 {
		problems = append(problems, "detector.watch_labels must not be empty")
	}
	if c.Database.DSN == "" {
		problems = append(problems, "database.dsn is required")
	}
	if c.SMTP.Host == "" {
		problems = append(problems, "smtp.host is required")
	}
	if c.SMTP.Sender == "" {
		problems = append(problems, "smtp.sender is required")
	}
	if len(c.SMTP.Recipients) == 0 {
		problems = append(problems, "smtp.recipients must not be empty")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("timezone %q is not a valid IANA zone", c.Timezone))
	}

	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}
