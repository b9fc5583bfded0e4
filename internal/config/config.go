package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

const (
	settingsFile     = "config/setting.ini"
	defaultEnv       = "dev"
	envConfigPattern = "config/%s/moti.ini"
)

// Config describes runtime options for the proxy.
type Config struct {
	Environment string `env:"MOTI_ENV"`

	Port int    `env:"PORT"`
	Host string `env:"HOST"`

	Provider       string  `env:"PROVIDER"`
	Model          string  `env:"MODEL"`
	Temperature    float64 `env:"TEMPERATURE"`
	OllamaEndpoint string  `env:"OLLAMA_ENDPOINT"`
	OpenAIAPIKey   string  `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string  `env:"OPENAI_BASE_URL"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
	MaxBodyBytes   int64         `env:"MAX_BODY_BYTES"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","`

	// RateLimitRPS is the per-client /chat budget; zero disables limiting.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST"`

	HistorySize     int    `env:"HISTORY_SIZE"`
	RecordAnnotated bool   `env:"RECORD_ANNOTATED"`
	PersonaFile     string `env:"PERSONA_FILE"`

	LogLevel   string `env:"LOG_LEVEL"`
	LogFile    string `env:"LOG_FILE"`
	LedgerPath string `env:"LEDGER_PATH"`
}

// Defaults returns the compiled-in configuration.
func Defaults() *Config {
	return &Config{
		Environment:     defaultEnv,
		Port:            8080,
		Host:            "0.0.0.0",
		Provider:        "ollama",
		Model:           "llama3.1:8b",
		Temperature:     0.2,
		OllamaEndpoint:  "http://127.0.0.1:11434",
		OpenAIBaseURL:   "https://api.openai.com/v1",
		RequestTimeout:  60 * time.Second,
		MaxBodyBytes:    1 << 20,
		AllowedOrigins:  []string{"*"},
		RateLimitBurst:  10,
		HistorySize:     12,
		RecordAnnotated: true,
		LogLevel:        "info",
	}
}

// Load builds the configuration rooted at root: .env, defaults,
// config/setting.ini, config/<env>/moti.ini, then process environment.
func Load(root string) (*Config, error) {
	if root == "" {
		root = "."
	}
	if err := loadEnvFile(root); err != nil {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Defaults()

	settings, err := ini.LooseLoad(filepath.Join(root, settingsFile))
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", settingsFile, err)
	}
	base := settings.Section(ini.DefaultSection)
	cfg.Environment = firstNonEmpty(os.Getenv("MOTI_ENV"), base.Key("environment").String(), defaultEnv)
	if err := applySection(cfg, base); err != nil {
		return nil, err
	}

	envPath := filepath.Join(root, fmt.Sprintf(envConfigPattern, cfg.Environment))
	envFile, err := ini.LooseLoad(envPath)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", envPath, err)
	}
	if err := applySection(cfg, envFile.Section(ini.DefaultSection)); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applySection copies the keys present in sec onto cfg.
func applySection(cfg *Config, sec *ini.Section) error {
	str := func(key string, dst *string) {
		if sec.HasKey(key) {
			*dst = strings.TrimSpace(sec.Key(key).String())
		}
	}
	str("host", &cfg.Host)
	str("provider", &cfg.Provider)
	str("model", &cfg.Model)
	str("ollama_endpoint", &cfg.OllamaEndpoint)
	str("openai_api_key", &cfg.OpenAIAPIKey)
	str("openai_base_url", &cfg.OpenAIBaseURL)
	str("persona_file", &cfg.PersonaFile)
	str("log_level", &cfg.LogLevel)
	str("log_file", &cfg.LogFile)
	str("ledger_path", &cfg.LedgerPath)

	if sec.HasKey("allowed_origins") {
		cfg.AllowedOrigins = parseCSV(sec.Key("allowed_origins").String())
	}
	if sec.HasKey("port") {
		v, err := sec.Key("port").Int()
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", sec.Key("port").String(), err)
		}
		cfg.Port = v
	}
	if sec.HasKey("history_size") {
		v, err := sec.Key("history_size").Int()
		if err != nil {
			return fmt.Errorf("invalid history_size %q: %w", sec.Key("history_size").String(), err)
		}
		cfg.HistorySize = v
	}
	if sec.HasKey("max_body_bytes") {
		v, err := sec.Key("max_body_bytes").Int64()
		if err != nil {
			return fmt.Errorf("invalid max_body_bytes %q: %w", sec.Key("max_body_bytes").String(), err)
		}
		cfg.MaxBodyBytes = v
	}
	if sec.HasKey("rate_limit_rps") {
		v, err := sec.Key("rate_limit_rps").Float64()
		if err != nil {
			return fmt.Errorf("invalid rate_limit_rps %q: %w", sec.Key("rate_limit_rps").String(), err)
		}
		cfg.RateLimitRPS = v
	}
	if sec.HasKey("rate_limit_burst") {
		v, err := sec.Key("rate_limit_burst").Int()
		if err != nil {
			return fmt.Errorf("invalid rate_limit_burst %q: %w", sec.Key("rate_limit_burst").String(), err)
		}
		cfg.RateLimitBurst = v
	}
	if sec.HasKey("temperature") {
		v, err := sec.Key("temperature").Float64()
		if err != nil {
			return fmt.Errorf("invalid temperature %q: %w", sec.Key("temperature").String(), err)
		}
		cfg.Temperature = v
	}
	if sec.HasKey("request_timeout") {
		v, err := sec.Key("request_timeout").Duration()
		if err != nil {
			return fmt.Errorf("invalid request_timeout %q: %w", sec.Key("request_timeout").String(), err)
		}
		cfg.RequestTimeout = v
	}
	if sec.HasKey("record_annotated") {
		v, err := sec.Key("record_annotated").Bool()
		if err != nil {
			return fmt.Errorf("invalid record_annotated %q: %w", sec.Key("record_annotated").String(), err)
		}
		cfg.RecordAnnotated = v
	}
	return nil
}

func (c *Config) normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.OllamaEndpoint = strings.TrimSuffix(strings.TrimSpace(c.OllamaEndpoint), "/")
	c.OpenAIBaseURL = strings.TrimSuffix(strings.TrimSpace(c.OpenAIBaseURL), "/")
	origins := c.AllowedOrigins[:0]
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.AllowedOrigins = origins
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.Provider == "":
		return errors.New("provider must not be empty")
	case c.Model == "":
		return errors.New("model must not be empty")
	case c.HistorySize < 1:
		return fmt.Errorf("invalid history_size %d", c.HistorySize)
	case c.MaxBodyBytes < 1:
		return fmt.Errorf("invalid max_body_bytes %d", c.MaxBodyBytes)
	case c.Temperature < 0:
		return fmt.Errorf("invalid temperature %v", c.Temperature)
	case c.RateLimitRPS < 0:
		return fmt.Errorf("invalid rate_limit_rps %v", c.RateLimitRPS)
	case c.RateLimitRPS > 0 && c.RateLimitBurst < 1:
		return fmt.Errorf("invalid rate_limit_burst %d", c.RateLimitBurst)
	case c.RequestTimeout < 0:
		return fmt.Errorf("invalid request_timeout %v", c.RequestTimeout)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// loadEnvFile loads the nearest .env at or above root. Variables already set
// in the process environment win.
// loadEnvFile loads the nearest .env at or above root. A missing file is fine;
// a malformed one is not.
func loadEnvFile(root string) error {
	dir, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	for {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return godotenv.Load(path)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func parseCSV(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
