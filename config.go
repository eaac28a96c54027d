package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Secure   string `yaml:"secure"`
	Auth     string `yaml:"auth"`
}

type Config struct {
	Source               string        `yaml:"source"`
	Domain               string        `yaml:"domain"`
	Template             string        `yaml:"template"`
	ReportDir            string        `yaml:"report_dir"`
	BatchSize            int           `yaml:"batch_size"`
	BatchInterval        time.Duration `yaml:"batch_interval"`
	MaxAttempts          int           `yaml:"max_attempts"`
	RetryDelay           time.Duration `yaml:"retry_delay"`
	PauseAfterFinalBatch bool          `yaml:"pause_after_final_batch"`
	Subject              string        `yaml:"subject"`
	FromName             string        `yaml:"from_name"`
	FromAddress          string        `yaml:"from_address"`
	RedactAddresses      bool          `yaml:"redact_addresses"`
	SMTP                 SMTPConfig    `yaml:"smtp"`
}

func DefaultConfig() Config {
	return Config{
		Source:          "db/emails.txt",
		Domain:          "gmail.com",
		Template:        "cuerpo-email-marketing.html",
		ReportDir:       "log",
		BatchSize:       1000,
		BatchInterval:   2 * time.Second,
		MaxAttempts:     3,
		RetryDelay:      time.Second,
		Subject:         "Asunto",
		FromName:        "Nombre",
		RedactAddresses: true,
		SMTP: SMTPConfig{
			Auth: AuthLogin,
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults, loads envFile
// into the environment and lets SMTP_* variables override the relay block.
// A missing config or env file is only an error when its require flag is set.
func LoadConfig(path, envFile string, requireConfig, requireEnv bool) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !requireConfig:
	default:
		return Config{}, fmt.Errorf("config file not found: %w", err)
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && (requireEnv || !errors.Is(err, os.ErrNotExist)) {
			return Config{}, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	if err := cfg.SMTP.applyEnv(); err != nil {
		return Config{}, err
	}
	if cfg.FromAddress == "" {
		cfg.FromAddress = cfg.SMTP.Username
	}
	return cfg, nil
}

// applyEnv overrides fields whose SMTP_* variable is set and non-empty.
func (c *SMTPConfig) applyEnv() error {
	overrides := map[string]*string{
		"SMTP_HOST":     &c.Host,
		"SMTP_USERNAME": &c.Username,
		"SMTP_PASSWORD": &c.Password,
		"SMTP_SECURE":   &c.Secure,
		"SMTP_AUTH":     &c.Auth,
	}
	for key, field := range overrides {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SMTP_PORT must be an integer, got %q", v)
		}
		c.Port = port
	}
	return nil
}

// ValidateSource checks the settings needed to read and batch addresses.
func (c Config) ValidateSource() error {
	var errs []error
	if c.Source == "" {
		errs = append(errs, errors.New("source is required"))
	}
	if c.Domain == "" {
		errs = append(errs, errors.New("domain is required"))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch_size must be at least 1, got %d", c.BatchSize))
	}
	return errors.Join(errs...)
}

// Validate checks everything a send run needs before it starts.
func (c Config) Validate() error {
	errs := []error{c.ValidateSource()}
	if c.Template == "" {
		errs = append(errs, errors.New("template is required"))
	}
	if c.FromAddress == "" {
		errs = append(errs, errors.New("from_address is required when smtp username is empty"))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if c.BatchInterval < 0 || c.RetryDelay < 0 {
		errs = append(errs, errors.New("batch_interval and retry_delay cannot be negative"))
	}
	if err := c.SMTP.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c SMTPConfig) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("smtp host is required"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("smtp port must be between 1 and 65535, got %d", c.Port))
	}
	if auth := strings.ToLower(c.Auth); auth != AuthLogin && auth != AuthPlain {
		errs = append(errs, fmt.Errorf("unsupported smtp auth: %s", c.Auth))
	}
	return errors.Join(errs...)
}
