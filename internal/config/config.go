package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabasePath   string   `yaml:"database_path"`
	Port           string   `yaml:"port"`
	Environment    string   `yaml:"environment"`
	LogLevel       string   `yaml:"log_level"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	CronSecret     string   `yaml:"cron_secret"`
	Timezone       string   `yaml:"timezone"`

	MailgunDomain      string `yaml:"mailgun_domain"`
	MailgunAPIKey      string `yaml:"mailgun_api_key"`
	MailgunSenderEmail string `yaml:"mailgun_sender_email"`
	MailgunSenderName  string `yaml:"mailgun_sender_name"`

	NotionBaseURL string `yaml:"notion_base_url"`
	NotionVersion string `yaml:"notion_version"`
}

// Load reads configuration from the environment (and a .env file when one
// exists). If CONFIG_FILE points at a YAML file, values set there win over
// the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath:       getEnv("DATABASE_PATH", "stockbutler.db"),
		Port:               getEnv("PORT", "8080"),
		Environment:        getEnv("ENVIRONMENT", "production"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "")),
		CronSecret:         getEnv("CRON_SECRET", ""),
		Timezone:           getEnv("TIMEZONE", "Local"),
		MailgunDomain:      getEnv("MAILGUN_DOMAIN", ""),
		MailgunAPIKey:      getEnv("MAILGUN_API_KEY", ""),
		MailgunSenderEmail: getEnv("MAILGUN_SENDER_EMAIL", ""),
		MailgunSenderName:  getEnv("MAILGUN_SENDER_NAME", "存货小管家"),
		NotionBaseURL:      getEnv("NOTION_BASE_URL", "https://api.notion.com/v1"),
		NotionVersion:      getEnv("NOTION_VERSION", "2022-06-28"),
	}

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

func (c *Config) MailgunConfigured() bool {
	return c.MailgunDomain != "" && c.MailgunAPIKey != ""
}

// Location resolves the time zone used for calendar-date arithmetic.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
