package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds settings shared by the parse, dashboard, email and serve commands
type Config struct {
	// Parse settings
	ReportOutput string `mapstructure:"report_output"`
	SummaryPath  string `mapstructure:"summary_path"`
	TraceLimit   int    `mapstructure:"trace_limit"`
	TopReasons   int    `mapstructure:"top_reasons"`

	// History settings; empty HistoryDir disables the run store
	HistoryDir    string `mapstructure:"history_dir"`
	RetentionDays int    `mapstructure:"retention_days"`

	// Dashboard settings
	ProjectName    string `mapstructure:"project_name"`
	DashboardTitle string `mapstructure:"dashboard_title"`
	ChartJSURL     string `mapstructure:"chartjs_url"`

	// Server settings
	ServerHost string `mapstructure:"server_host"`
	ServerPort int    `mapstructure:"server_port"`

	LogLevel string `mapstructure:"log_level"`

	SMTP SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig holds mail delivery settings
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	To       string `mapstructure:"to"`
	Subject  string `mapstructure:"subject"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		ReportOutput:   "report_summary.json",
		SummaryPath:    "summary.md",
		TraceLimit:     5000,
		TopReasons:     10,
		RetentionDays:  90,
		ProjectName:    getProjectName(),
		DashboardTitle: "QA Dashboard",
		ChartJSURL:     "https://cdn.jsdelivr.net/npm/chart.js",
		ServerHost:     "localhost",
		ServerPort:     8080,
		LogLevel:       "info",
		SMTP: SMTPConfig{
			Port:    587,
			Subject: "QA Automated Summary",
		},
	}
}

// envBindings maps config keys to the environment variables that override them
var envBindings = map[string]string{
	"smtp.host":      "SMTP_HOST",
	"smtp.port":      "SMTP_PORT",
	"smtp.user":      "SMTP_USER",
	"smtp.password":  "SMTP_PASS",
	"smtp.to":        "SUMMARY_TO",
	"smtp.subject":   "SUMMARY_SUBJECT",
	"history_dir":    "CUCUMBER_INSIGHTS_HISTORY_DIR",
	"log_level":      "CUCUMBER_INSIGHTS_LOG_LEVEL",
	"chartjs_url":    "CUCUMBER_INSIGHTS_CHARTJS_URL",
	"project_name":   "CUCUMBER_INSIGHTS_PROJECT",
	"summary_path":   "CUCUMBER_INSIGHTS_SUMMARY",
	"report_output":  "CUCUMBER_INSIGHTS_OUTPUT",
	"retention_days": "CUCUMBER_INSIGHTS_RETENTION_DAYS",
}

// Load builds a config from defaults, an optional file and the environment
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file (YAML, JSON, or TOML)
func (c *Config) LoadFromFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return err
	}

	return v.Unmarshal(c)
}

// LoadFromEnv overrides settings from environment variables
func (c *Config) LoadFromEnv() error {
	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = strings.TrimSpace(v.GetString(key))
		}
	}

	setString("smtp.host", &c.SMTP.Host)
	setString("smtp.user", &c.SMTP.User)
	setString("smtp.password", &c.SMTP.Password)
	setString("smtp.to", &c.SMTP.To)
	setString("smtp.subject", &c.SMTP.Subject)
	setString("history_dir", &c.HistoryDir)
	setString("log_level", &c.LogLevel)
	setString("chartjs_url", &c.ChartJSURL)
	setString("project_name", &c.ProjectName)
	setString("summary_path", &c.SummaryPath)
	setString("report_output", &c.ReportOutput)

	if v.IsSet("smtp.port") {
		port, err := parsePositive(v.GetString("smtp.port"))
		if err != nil {
			return fmt.Errorf("invalid SMTP_PORT: %w", err)
		}
		c.SMTP.Port = port
	}

	if v.IsSet("retention_days") {
		days, err := parsePositive(v.GetString("retention_days"))
		if err != nil {
			return fmt.Errorf("invalid CUCUMBER_INSIGHTS_RETENTION_DAYS: %w", err)
		}
		c.RetentionDays = days
	}

	return nil
}

// Validate checks values that would otherwise fail later in a confusing way
func (c *Config) Validate() error {
	if c.TraceLimit <= 0 {
		return fmt.Errorf("trace_limit must be positive, got %d", c.TraceLimit)
	}
	if c.TopReasons <= 0 {
		return fmt.Errorf("top_reasons must be positive, got %d", c.TopReasons)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative, got %d", c.RetentionDays)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("server_port out of range: %d", c.ServerPort)
	}
	return nil
}

func parsePositive(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}

// getProjectName tries to get project name from current directory
func getProjectName() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "Cucumber Project"
	}
	return filepath.Base(cwd)
}
