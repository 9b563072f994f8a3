package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		SlowRequest     time.Duration `yaml:"slow_request"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Database struct {
		Driver           string        `yaml:"driver"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		Path             string        `yaml:"path"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		Tables           Tables        `yaml:"tables"`
	} `yaml:"database"`
	Artifacts struct {
		Backend   string        `yaml:"backend"`
		BaseURL   string        `yaml:"base_url"`
		Bucket    string        `yaml:"bucket"`
		APIKey    string        `yaml:"api_key"`
		Timeout   time.Duration `yaml:"timeout"`
		KeyPrefix string        `yaml:"key_prefix"`
		Breaker   struct {
			MaxRequests  uint32        `yaml:"max_requests"`
			Interval     time.Duration `yaml:"interval"`
			Timeout      time.Duration `yaml:"timeout"`
			MinRequests  uint32        `yaml:"min_requests"`
			FailureRatio float64       `yaml:"failure_ratio"`
		} `yaml:"breaker"`
	} `yaml:"artifacts"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Topics       struct {
			LifecycleEvents string `yaml:"lifecycle_events"`
			Transactions    string `yaml:"transactions"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string `yaml:"group_id"`
			Workers    int    `yaml:"workers"`
			BufferSize int    `yaml:"buffer_size"`
			DLQTopic   string `yaml:"dlq_topic"`
			MinBytes   int    `yaml:"min_bytes"`
			MaxBytes   int    `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Queue struct {
		Enabled   bool   `yaml:"enabled"`
		Workers   int    `yaml:"workers"`
		KeyPrefix string `yaml:"key_prefix"`
	} `yaml:"queue"`
	Training  Training  `yaml:"training"`
	Lifecycle Lifecycle `yaml:"lifecycle"`
	Serving   struct {
		HistoryCacheTTL time.Duration `yaml:"history_cache_ttl"`
	} `yaml:"serving"`
}

// Tables names the relational store tables read by the training source.
type Tables struct {
	Expenses        string `yaml:"expenses"`
	Incomes         string `yaml:"incomes"`
	Accounts        string `yaml:"accounts"`
	Reminders       string `yaml:"reminders"`
	LabeledFeatures string `yaml:"labeled_features"`
}

// Training holds the reviewed priors and estimator hyper-parameters.
type Training struct {
	IncomeWeight       float64 `yaml:"income_weight"`
	SavingsWeight      float64 `yaml:"savings_weight"`
	GridPoints         int     `yaml:"grid_points"`
	IncomeMin          float64 `yaml:"income_min"`
	IncomeMax          float64 `yaml:"income_max"`
	SavingsMin         float64 `yaml:"savings_min"`
	SavingsMax         float64 `yaml:"savings_max"`
	MultiplierStep     float64 `yaml:"multiplier_step"`
	MinPersonalRecords int     `yaml:"min_personal_records"`
	PopulationFallback bool    `yaml:"population_fallback"`
	MinLabeledExamples int     `yaml:"min_labeled_examples"`
	Boosting           struct {
		Rounds       int     `yaml:"rounds"`
		LearningRate float64 `yaml:"learning_rate"`
		MaxDepth     int     `yaml:"max_depth"`
	} `yaml:"boosting"`
	Forest struct {
		Trees           int   `yaml:"trees"`
		MaxDepth        int   `yaml:"max_depth"`
		MinSamplesSplit int   `yaml:"min_samples_split"`
		MinSamplesLeaf  int   `yaml:"min_samples_leaf"`
		Seed            int64 `yaml:"seed"`
	} `yaml:"forest"`
}

// Lifecycle controls reload and retrain behaviour.
type Lifecycle struct {
	RetrainTimeout  time.Duration `yaml:"retrain_timeout"`
	ReloadTimeout   time.Duration `yaml:"reload_timeout"`
	PreloadDecision bool          `yaml:"preload_decision"`
	LazyLoad        bool          `yaml:"lazy_load"`
	LazyLoadBackoff time.Duration `yaml:"lazy_load_backoff"`
	RetrainRate     struct {
		Capacity     float64 `yaml:"capacity"`
		RefillPerSec float64 `yaml:"refill_per_sec"`
	} `yaml:"retrain_rate"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("ARTIFACTS_BASE_URL"); v != "" {
		c.Artifacts.BaseURL = v
	}
	if v := os.Getenv("ARTIFACTS_API_KEY"); v != "" {
		c.Artifacts.APIKey = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("INCOME_WEIGHT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("INCOME_WEIGHT: %w", err)
		}
		c.Training.IncomeWeight = f
	}
	if v := os.Getenv("SAVINGS_WEIGHT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SAVINGS_WEIGHT: %w", err)
		}
		c.Training.SavingsWeight = f
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Database.Driver {
	case "clickhouse":
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for clickhouse")
		}
	case "sqlite3":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite3")
		}
	default:
		return fmt.Errorf("database.driver must be 'clickhouse' or 'sqlite3', got '%s'", c.Database.Driver)
	}
	switch c.Artifacts.Backend {
	case "http":
		if c.Artifacts.BaseURL == "" || c.Artifacts.Bucket == "" {
			return fmt.Errorf("artifacts.base_url and artifacts.bucket are required for http backend")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for redis artifact backend")
		}
	default:
		return fmt.Errorf("artifacts.backend must be 'http' or 'redis', got '%s'", c.Artifacts.Backend)
	}
	if c.Queue.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("queue.enabled requires redis.addr")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	t := c.Training
	if t.IncomeWeight <= 0 || t.IncomeWeight > 1 {
		return fmt.Errorf("training.income_weight must be in (0,1], got %v", t.IncomeWeight)
	}
	if t.SavingsWeight <= 0 || t.SavingsWeight > 1 {
		return fmt.Errorf("training.savings_weight must be in (0,1], got %v", t.SavingsWeight)
	}
	if t.GridPoints < 2 {
		return fmt.Errorf("training.grid_points must be at least 2")
	}
	if t.IncomeMax <= t.IncomeMin || t.SavingsMax <= t.SavingsMin {
		return fmt.Errorf("training income/savings ranges must be increasing")
	}
	if t.MinPersonalRecords < 1 {
		return fmt.Errorf("training.min_personal_records must be positive")
	}
	if c.Lifecycle.RetrainTimeout <= 0 {
		return fmt.Errorf("lifecycle.retrain_timeout must be positive")
	}
	return nil
}

// Default returns a config populated with the service defaults; YAML values override it.
func Default() *Config {
	c := &Config{}
	c.Server.Port = 8080
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 200 * time.Second
	c.Server.ShutdownTimeout = 15 * time.Second
	c.Server.SlowRequest = 2 * time.Second
	c.Log.Level = "info"
	c.Log.Format = "json"
	c.Log.Output = "stdout"
	c.Database.Port = 9000
	c.Database.Database = "finscore"
	c.Database.DialTimeout = 5 * time.Second
	c.Database.ReadTimeout = 30 * time.Second
	c.Database.Tables = Tables{
		Expenses:        "expenses",
		Incomes:         "incomes",
		Accounts:        "accounts",
		Reminders:       "reminders",
		LabeledFeatures: "expense_ml_features",
	}
	c.Artifacts.Bucket = "MLmodels"
	c.Artifacts.Timeout = 30 * time.Second
	c.Artifacts.KeyPrefix = "finscore:artifacts"
	c.Artifacts.Breaker.MaxRequests = 3
	c.Artifacts.Breaker.Interval = time.Minute
	c.Artifacts.Breaker.Timeout = 30 * time.Second
	c.Artifacts.Breaker.MinRequests = 5
	c.Artifacts.Breaker.FailureRatio = 0.6
	c.Kafka.RequiredAcks = -1
	c.Kafka.Compression = "gzip"
	c.Kafka.Topics.LifecycleEvents = "finscore.model-lifecycle"
	c.Kafka.Topics.Transactions = "finscore.transactions"
	c.Kafka.Consumer.GroupID = "finscore-retrain"
	c.Kafka.Consumer.Workers = 2
	c.Kafka.Consumer.BufferSize = 64
	c.Queue.Workers = 1
	c.Queue.KeyPrefix = "finscore:queue"

	c.Training.IncomeWeight = 0.20
	c.Training.SavingsWeight = 0.02
	c.Training.GridPoints = 12
	c.Training.IncomeMin = 300
	c.Training.IncomeMax = 20000
	c.Training.SavingsMin = 0
	c.Training.SavingsMax = 500000
	c.Training.MultiplierStep = 0.05
	c.Training.MinPersonalRecords = 2
	c.Training.PopulationFallback = true
	c.Training.MinLabeledExamples = 15
	c.Training.Boosting.Rounds = 100
	c.Training.Boosting.LearningRate = 0.1
	c.Training.Boosting.MaxDepth = 4
	c.Training.Forest.Trees = 200
	c.Training.Forest.MaxDepth = 8
	c.Training.Forest.MinSamplesSplit = 4
	c.Training.Forest.MinSamplesLeaf = 2
	c.Training.Forest.Seed = 42

	c.Lifecycle.RetrainTimeout = 180 * time.Second
	c.Lifecycle.ReloadTimeout = 30 * time.Second
	c.Lifecycle.PreloadDecision = true
	c.Lifecycle.LazyLoad = true
	c.Lifecycle.LazyLoadBackoff = time.Minute
	c.Lifecycle.RetrainRate.Capacity = 2
	c.Lifecycle.RetrainRate.RefillPerSec = 1.0 / 30

	c.Serving.HistoryCacheTTL = 30 * time.Second
	return c
}
