package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/tracertea/certidao/internal/captcha"
	"github.com/tracertea/certidao/internal/issuer"
	"github.com/tracertea/certidao/internal/report"
)

// Config holds all configuration for the certidao application.
type Config struct {
	Input        string `yaml:"input" json:"input" env:"CERTIDAO_INPUT"`
	OutputDir    string `yaml:"output_dir" json:"output_dir" env:"CERTIDAO_OUTPUT_DIR" env-default:"./certidao_output"`
	ReportFormat string `yaml:"report_format" json:"report_format" env:"CERTIDAO_REPORT_FORMAT" env-default:"xlsx"`
	LogFile      string `yaml:"log_file" json:"log_file" env:"CERTIDAO_LOG_FILE" env-default:"certidao.log"`
	LogLevel     string `yaml:"log_level" json:"log_level" env:"CERTIDAO_LOG_LEVEL" env-default:"info"`
	Resume       bool   `yaml:"resume" json:"resume" env:"CERTIDAO_RESUME"`

	// APIKey is the captcha service key handed to the issuer for every CNPJ.
	APIKey string `yaml:"api_key" json:"api_key" env:"CAPTCHA_API_KEY"`

	Browser BrowserConfig `yaml:"browser" json:"browser" env-prefix:"CERTIDAO_BROWSER_"`
	Captcha CaptchaConfig `yaml:"captcha" json:"captcha" env-prefix:"CAPTCHA_"`
	Form    FormConfig    `yaml:"form" json:"form" env-prefix:"CERTIDAO_FORM_"`
	Upload  UploadConfig  `yaml:"upload" json:"upload" env-prefix:"CERTIDAO_S3_"`
}

type BrowserConfig struct {
	// Visible runs the browser with a window instead of headless.
	Visible       bool          `yaml:"visible" json:"visible" env:"VISIBLE"`
	ActionTimeout time.Duration `yaml:"action_timeout" json:"action_timeout" env:"ACTION_TIMEOUT" env-default:"60s"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent" env:"USER_AGENT"`
	ExecPath      string        `yaml:"exec_path" json:"exec_path" env:"EXEC_PATH"`
}

type CaptchaConfig struct {
	BaseURL      string        `yaml:"base_url" json:"base_url" env:"BASE_URL" env-default:"https://2captcha.com"`
	Method       string        `yaml:"method" json:"method" env:"METHOD" env-default:"hcaptcha"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" env:"POLL_INTERVAL" env-default:"5s"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT" env-default:"3m"`
}

// FormConfig overrides the issuance form settings; empty fields keep the
// built-in defaults.
type FormConfig struct {
	URL               string   `yaml:"url" json:"url" env:"URL"`
	CNPJInputSelector string   `yaml:"cnpj_selector" json:"cnpj_selector" env:"CNPJ_SELECTOR"`
	SubmitSelector    string   `yaml:"submit_selector" json:"submit_selector" env:"SUBMIT_SELECTOR"`
	ResultSelector    string   `yaml:"result_selector" json:"result_selector" env:"RESULT_SELECTOR"`
	SuccessMarkers    []string `yaml:"success_markers" json:"success_markers" env:"SUCCESS_MARKERS"`
	FailureMarkers    []string `yaml:"failure_markers" json:"failure_markers" env:"FAILURE_MARKERS"`
}

type UploadConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled" env:"UPLOAD"`
	Bucket      string `yaml:"bucket" json:"bucket" env:"BUCKET"`
	Prefix      string `yaml:"prefix" json:"prefix" env:"PREFIX" env-default:"certidoes"`
	Region      string `yaml:"region" json:"region" env:"REGION"`
	Concurrency int    `yaml:"concurrency" json:"concurrency" env:"CONCURRENCY" env-default:"4"`
}

// Load reads .env files, then the optional config file, then environment
// variables. Later sources win; command line flags are applied by the
// caller.
func Load(configFile string, dotenvFiles ...string) (*Config, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
		slog.Debug("No .env file found, using system environment variables")
	}

	cfg := &Config{}
	if configFile != "" {
		if err := cleanenv.ReadConfig(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configFile, err)
		}
		return cfg, nil
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Input) == "" {
		return fmt.Errorf("input file is required")
	}

	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("output directory is required")
	}

	if !validFormat(c.ReportFormat) {
		return fmt.Errorf("report_format must be one of: %s", strings.Join(report.Formats, ", "))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}

	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("captcha API key is required (set CAPTCHA_API_KEY)")
	}

	if c.Browser.ActionTimeout <= 0 {
		return fmt.Errorf("browser action_timeout must be greater than 0")
	}

	if c.Upload.Enabled && strings.TrimSpace(c.Upload.Bucket) == "" {
		return fmt.Errorf("upload is enabled but no bucket is configured")
	}

	return nil
}

func validFormat(format string) bool {
	for _, f := range report.Formats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

// IssuerConfig merges the form overrides into the default issuer settings.
func (c *Config) IssuerConfig(artifactDir string) issuer.Config {
	ic := issuer.DefaultConfig()
	ic.ArtifactDir = artifactDir
	if c.Form.URL != "" {
		ic.URL = c.Form.URL
	}
	if c.Form.CNPJInputSelector != "" {
		ic.CNPJInputSelector = c.Form.CNPJInputSelector
	}
	if c.Form.SubmitSelector != "" {
		ic.SubmitSelector = c.Form.SubmitSelector
	}
	if c.Form.ResultSelector != "" {
		ic.ResultSelector = c.Form.ResultSelector
	}
	if len(c.Form.SuccessMarkers) > 0 {
		ic.SuccessMarkers = c.Form.SuccessMarkers
	}
	if len(c.Form.FailureMarkers) > 0 {
		ic.FailureMarkers = c.Form.FailureMarkers
	}
	return ic
}

// CaptchaClientConfig returns the captcha client settings.
func (c *Config) CaptchaClientConfig() captcha.Config {
	return captcha.Config{
		BaseURL:      c.Captcha.BaseURL,
		Method:       c.Captcha.Method,
		PollInterval: c.Captcha.PollInterval,
		Timeout:      c.Captcha.Timeout,
	}
}

// MaskedAPIKey returns the API key with all but the last four characters
// hidden.
func (c *Config) MaskedAPIKey() string {
	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
