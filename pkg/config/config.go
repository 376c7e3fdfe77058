package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Service     string `yaml:"service" default:"llm-agents" validate:"required"`

	Log struct {
		Level     string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format    string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled   bool          `yaml:"enabled"`
			Topic     string        `yaml:"topic" default:"finfusion.logs"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"log"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`

	Kafka struct {
		Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]" validate:"min=1,dive,required"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		MaxAttempts  int      `yaml:"max_attempts" default:"3"`
		Topics       struct {
			MarketData string `yaml:"market_data" default:"market_data.normalized" validate:"required"`
			Sentiment  string `yaml:"sentiment" default:"sentiment.analyzed" validate:"required"`
			OnChain    string `yaml:"onchain" default:"onchain.events" validate:"required"`
			Decisions  string `yaml:"decisions" default:"trading.decisions" validate:"required"`
		} `yaml:"topics"`
		Consumer struct {
			GroupID     string        `yaml:"group_id" default:"llm-agents-group" validate:"required"`
			StartOffset string        `yaml:"start_offset" default:"latest" validate:"oneof=earliest latest"`
			Workers     int           `yaml:"workers" default:"4" validate:"min=1"`
			BufferSize  int           `yaml:"buffer_size" default:"256"`
			RetryMax    int           `yaml:"retry_max" default:"3"`
			BackoffMin  time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax  time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic    string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`

	Redis struct {
		Host       string        `yaml:"host" default:"localhost" validate:"required"`
		Port       int           `yaml:"port" default:"6379" validate:"min=1,max=65535"`
		Password   string        `yaml:"password"`
		DB         int           `yaml:"db"`
		PoolSize   int           `yaml:"pool_size" default:"10"`
		Prefix     string        `yaml:"prefix" default:"finfusion"`
		SignalTTL  time.Duration `yaml:"signal_ttl" default:"5m"`
		InsightTTL time.Duration `yaml:"insight_ttl" default:"24h"`
		OutboxKey  string        `yaml:"outbox_key" default:"decisions:outbox"`
		L1Size     int           `yaml:"l1_size" default:"1000"`
	} `yaml:"redis"`

	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"finfusion"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		AsyncInsert  bool          `yaml:"async_insert" default:"true"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"clickhouse"`

	Stream struct {
		Enabled        bool          `yaml:"enabled"`
		URL            string        `yaml:"url"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		RatePerSecond  float64       `yaml:"rate_per_second" default:"10"`
		Burst          int           `yaml:"burst" default:"20"`
	} `yaml:"stream"`

	Sentiment struct {
		Mode   string `yaml:"mode" default:"heuristic" validate:"oneof=heuristic remote static"`
		Remote struct {
			URL     string        `yaml:"url"`
			Timeout time.Duration `yaml:"timeout" default:"2s"`
		} `yaml:"remote"`
		Static struct {
			Score      float64 `yaml:"score"`
			FearGreed  float64 `yaml:"fear_greed" default:"50"`
			Confidence float64 `yaml:"confidence" default:"0.7"`
		} `yaml:"static"`
	} `yaml:"sentiment"`

	Trading struct {
		MaxPositionSize    float64            `yaml:"max_position_size" default:"10000" validate:"gt=0"`
		PositionLimits     map[string]float64 `yaml:"position_limits" default:"{\"BTC/USD\":50000,\"ETH/USD\":25000,\"SOL/USD\":10000}"`
		FactWeight         float64            `yaml:"fact_weight" default:"0.6" validate:"gte=0,lte=1"`
		SubjectivityWeight float64            `yaml:"subjectivity_weight" default:"0.4" validate:"gte=0,lte=1"`
		SharpeThreshold    float64            `yaml:"sharpe_threshold" default:"1.2"`
		MaxDrawdown        float64            `yaml:"max_drawdown" default:"0.15" validate:"gte=0,lte=1"`
		RiskTolerance      float64            `yaml:"risk_tolerance" default:"0.02"`
		Kelly              struct {
			WinProbability float64 `yaml:"win_probability" default:"0.5" validate:"gte=0,lte=1"`
			AverageWin     float64 `yaml:"average_win" default:"0.05" validate:"gt=0"`
			AverageLoss    float64 `yaml:"average_loss" default:"0.03"`
		} `yaml:"kelly"`
	} `yaml:"trading"`

	Processing struct {
		DecisionCycle      time.Duration `yaml:"decision_cycle" default:"100ms" validate:"gt=0"`
		ReflectionInterval time.Duration `yaml:"reflection_interval" default:"5m" validate:"gt=0"`
		HealthInterval     time.Duration `yaml:"health_interval" default:"30s" validate:"gt=0"`
		Freshness          time.Duration `yaml:"freshness" default:"60s" validate:"gt=0"`
		MaxTickAge         time.Duration `yaml:"max_tick_age" default:"1h" validate:"gt=0"`
		MaxClockSkew       time.Duration `yaml:"max_clock_skew" default:"60s" validate:"gt=0"`
		ReflectionBatch    int           `yaml:"reflection_batch" default:"10" validate:"min=1"`
		DecisionHistory    int           `yaml:"decision_history" default:"1000" validate:"min=1"`
		PriceHistory       int           `yaml:"price_history" default:"200" validate:"min=50"`
		SentimentHistory   int           `yaml:"sentiment_history" default:"100" validate:"min=5"`
		IOTimeout          time.Duration `yaml:"io_timeout" default:"2s"`
	} `yaml:"processing"`
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file. Missing keys keep
// their defaults. An empty path yields the defaults alone.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
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
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *float64) {
		if v, ok := lookup(name); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = f
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	duration := func(name string, unit time.Duration, dst *time.Duration) {
		var n int
		integer(name, &n)
		if n > 0 {
			*dst = time.Duration(n) * unit
		}
	}

	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	str("REDIS_HOST", &c.Redis.Host)
	integer("REDIS_PORT", &c.Redis.Port)
	str("LOG_LEVEL", &c.Log.Level)
	str("SENTIMENT_MODE", &c.Sentiment.Mode)
	str("SENTIMENT_SERVICE_URL", &c.Sentiment.Remote.URL)
	num("MAX_POSITION_SIZE", &c.Trading.MaxPositionSize)
	num("FACT_AGENT_WEIGHT", &c.Trading.FactWeight)
	num("SUBJECTIVITY_AGENT_WEIGHT", &c.Trading.SubjectivityWeight)
	num("SHARPE_THRESHOLD", &c.Trading.SharpeThreshold)
	num("MAX_DRAWDOWN", &c.Trading.MaxDrawdown)
	duration("DECISION_CYCLE_MS", time.Millisecond, &c.Processing.DecisionCycle)
	duration("REFLECTION_INTERVAL_MINUTES", time.Minute, &c.Processing.ReflectionInterval)
	duration("HEALTH_CHECK_INTERVAL_SECONDS", time.Second, &c.Processing.HealthInterval)

	return errors.Join(errs...)
}

var validate = validator.New()

// Validate checks field constraints and the cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if sum := c.Trading.FactWeight + c.Trading.SubjectivityWeight; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("trading.fact_weight + trading.subjectivity_weight must equal 1, got %.4f", sum)
	}
	if c.Trading.SharpeThreshold < 0.5 {
		return fmt.Errorf("trading.sharpe_threshold must be >= 0.5, got %.2f", c.Trading.SharpeThreshold)
	}
	if c.Sentiment.Mode == "remote" && c.Sentiment.Remote.URL == "" {
		return fmt.Errorf("sentiment.remote.url is required when sentiment.mode is remote")
	}
	if c.Stream.Enabled && c.Stream.URL == "" {
		return fmt.Errorf("stream.url is required when stream is enabled")
	}
	return nil
}

// PositionLimit returns the cap for symbol, falling back to MaxPositionSize.
func (c *Config) PositionLimit(symbol string) float64 {
	if v, ok := c.Trading.PositionLimits[symbol]; ok && v > 0 {
		return v
	}
	return c.Trading.MaxPositionSize
}

// RedisAddr returns host:port.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
