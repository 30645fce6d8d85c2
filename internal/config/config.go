package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Sampling    SamplingConfig    `yaml:"sampling"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Scrubber    ScrubberConfig    `yaml:"scrubber"`
	Export      ExportConfig      `yaml:"export"`
	Log         LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

// RedisConfig for optional async task queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SamplingConfig controls which accepted events are routed to expert review.
type SamplingConfig struct {
	Rate          float64 `yaml:"rate"`            // random-fraction probability, [0,1]
	Salt          string  `yaml:"salt"`            // mixed into the id hash; changing it reshuffles selection
	MaxAutoRating int     `yaml:"max_auto_rating"` // ratings at or below this are always selected
}

// AggregationConfig holds the reward blending parameters.
type AggregationConfig struct {
	BaseWeight      float64 `yaml:"base_weight"`      // weight of the explicit rating when a human label exists
	LabelWeight     float64 `yaml:"label_weight"`     // weight of the human label score
	PairBonusStep   float64 `yaml:"pair_bonus_step"`  // reward delta per preference-pair win/loss
	ConfidenceDecay float64 `yaml:"confidence_decay"` // k in confidence = 1 - exp(-k * labelCount)
	ConflictPolicy  string  `yaml:"conflict_policy"`  // how disagreeing labels blend: latest, mean
	SweepInterval   int     `yaml:"sweep_interval"`   // minutes between recompute sweeps
}

// ScrubberConfig extends the built-in detectors and policy rules.
type ScrubberConfig struct {
	ExtraPatterns  []string `yaml:"extra_patterns"`  // additional PII regexes
	ExtraKeywords  []string `yaml:"extra_keywords"`  // additional policy keywords (code:keyword)
	RedactionToken string   `yaml:"redaction_token"` // replacement for redacted spans
}

type ExportConfig struct {
	PageSize int `yaml:"page_size"`
}

type LogConfig struct {
	Level         string `yaml:"level"`
	RetentionDays int    `yaml:"retention_days"`
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		fileCfg := *DefaultConfig()
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, err
		}
		cfg = &fileCfg
	}

	cfg.overrideFromEnv()
	cfg.normalize()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "feedback.db",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Sampling: SamplingConfig{
			Rate:          0.05,
			Salt:          "postul-feedback-v1",
			MaxAutoRating: 2,
		},
		Aggregation: AggregationConfig{
			BaseWeight:      0.3,
			LabelWeight:     0.7,
			PairBonusStep:   0.05,
			ConfidenceDecay: 0.5,
			ConflictPolicy:  "latest",
			SweepInterval:   10,
		},
		Scrubber: ScrubberConfig{
			RedactionToken: "[REDACTED]",
		},
		Export: ExportConfig{
			PageSize: 200,
		},
		Log: LogConfig{
			Level:         "info",
			RetentionDays: 30,
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if rate := os.Getenv("SAMPLING_RATE"); rate != "" {
		if v, err := strconv.ParseFloat(rate, 64); err == nil {
			c.Sampling.Rate = v
		}
	}
	if salt := os.Getenv("SAMPLING_SALT"); salt != "" {
		c.Sampling.Salt = salt
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// normalize clamps values that would otherwise break pipeline invariants.
func (c *Config) normalize() {
	if c.Sampling.Rate < 0 {
		c.Sampling.Rate = 0
	}
	if c.Sampling.Rate > 1 {
		c.Sampling.Rate = 1
	}
	if c.Aggregation.ConfidenceDecay <= 0 {
		c.Aggregation.ConfidenceDecay = 0.5
	}
	if c.Aggregation.ConflictPolicy != "mean" {
		c.Aggregation.ConflictPolicy = "latest"
	}
	if c.Aggregation.SweepInterval <= 0 {
		c.Aggregation.SweepInterval = 10
	}
	if c.Export.PageSize <= 0 {
		c.Export.PageSize = 200
	}
	if c.Scrubber.RedactionToken == "" {
		c.Scrubber.RedactionToken = "[REDACTED]"
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
