package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	xutil "MarketSignal/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		SlowThreshold   time.Duration `yaml:"slow_threshold"`
		RateLimit       struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Logging struct {
		Level     string `yaml:"level"`
		Format    string `yaml:"format"`
		Output    string `yaml:"output"`
		Collector struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic"`
			Interval       time.Duration `yaml:"interval"`
			CountThreshold int           `yaml:"count_threshold"`
		} `yaml:"collector"`
	} `yaml:"logging"`
	Signal struct {
		PriceThreshold     float64            `yaml:"price_threshold"`
		SentimentThreshold float64            `yaml:"sentiment_threshold"`
		Indices            []string           `yaml:"indices"`
		PriceChange        map[string]float64 `yaml:"price_change"`
		DefaultChange      float64            `yaml:"default_change"`
	} `yaml:"signal"`
	Headlines struct {
		Source    string        `yaml:"source"` // html | rss
		URL       string        `yaml:"url"`
		Selector  string        `yaml:"selector"`
		MinLength int           `yaml:"min_length"`
		Limit     int           `yaml:"limit"`
		CacheTTL  time.Duration `yaml:"cache_ttl"`
		Refresh   string        `yaml:"refresh"` // cron spec
		UserAgent string        `yaml:"user_agent"`
	} `yaml:"headlines"`
	Classifier struct {
		URL      string        `yaml:"url"`
		Timeout  time.Duration `yaml:"timeout"`
		Attempts int           `yaml:"attempts"`
		Workers  int           `yaml:"workers"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"classifier"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Journal struct {
		Backend string `yaml:"backend"` // none | kafka | clickhouse
	} `yaml:"journal"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
}

// Defaults returns a config that runs the dashboard standalone.
func Defaults() *Config {
	c := &Config{Environment: "development"}
	c.Server.Port = 8080
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 30 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Server.SlowThreshold = 2 * time.Second
	c.Server.RateLimit.RPS = 2
	c.Server.RateLimit.Burst = 5
	c.Logging.Level = "info"
	c.Logging.Format = "console"
	c.Logging.Output = "stdout"
	c.Signal.PriceThreshold = 0.5
	c.Signal.SentimentThreshold = 0.2
	c.Signal.Indices = []string{"S&P 500", "Nasdaq", "Dow Jones", "Nikkei", "Hang Seng", "Shanghai"}
	c.Signal.PriceChange = map[string]float64{
		"S&P 500":   0.8,
		"Nasdaq":    -0.5,
		"Dow Jones": 1.1,
		"Nikkei":    0.3,
		"Hang Seng": -1.2,
		"Shanghai":  0.4,
	}
	c.Signal.DefaultChange = 0.2
	c.Headlines.Source = "html"
	c.Headlines.URL = "https://www.reuters.com/markets/"
	c.Headlines.Selector = "h3"
	c.Headlines.MinLength = 40
	c.Headlines.Limit = 5
	c.Headlines.CacheTTL = time.Hour
	c.Headlines.Refresh = "@every 1h"
	c.Classifier.Timeout = 5 * time.Second
	c.Classifier.Attempts = 3
	c.Classifier.Workers = 4
	c.Classifier.CacheTTL = 24 * time.Hour
	c.Redis.Host = "localhost"
	c.Redis.Port = 6379
	c.Redis.Prefix = "marketsignal"
	c.Journal.Backend = "none"
	c.Kafka.Topic = "marketsignal.signals"
	c.Kafka.RequiredAcks = -1
	c.Kafka.Compression = "gzip"
	c.ClickHouse.Database = "marketsignal"
	return c
}

// Load reads and parses a YAML configuration file over Defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes over Defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML, overrides it with environment variables
// and validates the merged result.
func LoadWithEnv(path string) (*Config, error) {
	return loadWithEnv(path, os.Getenv)
}

func loadWithEnv(path string, getenv func(string) string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func decode(b []byte) (*Config, error) {
	c := Defaults()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from the environment lookup.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("HTTP_PORT"); v != "" {
		c.Server.Port = xutil.ParseIntDefault(v, c.Server.Port)
	}
	if v := getenv("CLASSIFIER_URL"); v != "" {
		c.Classifier.URL = v
	}
	if v := getenv("HEADLINES_URL"); v != "" {
		c.Headlines.URL = v
	}
	if v := getenv("JOURNAL_BACKEND"); v != "" {
		c.Journal.Backend = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Enabled = true
		c.Redis.Host = host
		if ok {
			c.Redis.Port = xutil.ParseIntDefault(port, c.Redis.Port)
		}
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Classifier.URL == "" {
		return fmt.Errorf("classifier.url is required")
	}
	if c.Headlines.URL == "" {
		return fmt.Errorf("headlines.url is required")
	}
	if c.Headlines.Source != "html" && c.Headlines.Source != "rss" {
		return fmt.Errorf("headlines.source must be 'html' or 'rss', got '%s'", c.Headlines.Source)
	}
	if c.Signal.PriceThreshold < 0 || c.Signal.SentimentThreshold < 0 || c.Signal.SentimentThreshold > 1 {
		return fmt.Errorf("signal thresholds out of range: price=%v sentiment=%v", c.Signal.PriceThreshold, c.Signal.SentimentThreshold)
	}
	switch c.Journal.Backend {
	case "", "none":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return fmt.Errorf("journal.backend=kafka requires kafka.brokers and kafka.topic")
		}
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("journal.backend=clickhouse requires clickhouse.host")
		}
	default:
		return fmt.Errorf("journal.backend must be 'none', 'kafka' or 'clickhouse', got '%s'", c.Journal.Backend)
	}
	if c.Kafka.Consumer.Enabled && (len(c.Kafka.Brokers) == 0 || c.ClickHouse.Host == "") {
		return fmt.Errorf("kafka.consumer requires kafka.brokers and clickhouse.host")
	}
	if c.Logging.Collector.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("logging.collector requires kafka.brokers")
	}
	return nil
}
