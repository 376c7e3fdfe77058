package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, []string{"localhost:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "llm-agents-group", c.Kafka.Consumer.GroupID)
	assert.Equal(t, "market_data.normalized", c.Kafka.Topics.MarketData)
	assert.Equal(t, "trading.decisions", c.Kafka.Topics.Decisions)
	assert.Equal(t, 10000.0, c.Trading.MaxPositionSize)
	assert.Equal(t, 0.6, c.Trading.FactWeight)
	assert.Equal(t, 0.4, c.Trading.SubjectivityWeight)
	assert.Equal(t, 1.2, c.Trading.SharpeThreshold)
	assert.Equal(t, 100*time.Millisecond, c.Processing.DecisionCycle)
	assert.Equal(t, 5*time.Minute, c.Processing.ReflectionInterval)
	assert.Equal(t, 30*time.Second, c.Processing.HealthInterval)
	assert.Equal(t, 5*time.Minute, c.Redis.SignalTTL)
	assert.Equal(t, 24*time.Hour, c.Redis.InsightTTL)
}

func TestPositionLimit(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 50000.0, c.PositionLimit("BTC/USD"))
	assert.Equal(t, 25000.0, c.PositionLimit("ETH/USD"))
	assert.Equal(t, 10000.0, c.PositionLimit("SOL/USD"))
	assert.Equal(t, 10000.0, c.PositionLimit("DOGE/USD"))
}

func TestLoadYAMLKeepsUnsetDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
environment: test
trading:
  sharpe_threshold: 1.5
processing:
  decision_cycle: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, 1.5, c.Trading.SharpeThreshold)
	assert.Equal(t, 250*time.Millisecond, c.Processing.DecisionCycle)
	assert.Equal(t, 0.6, c.Trading.FactWeight)
}

func TestApplyEnv(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	env := map[string]string{
		"KAFKA_BROKERS":                 "k1:9092,k2:9092",
		"REDIS_HOST":                    "cache",
		"REDIS_PORT":                    "6380",
		"MAX_POSITION_SIZE":             "20000",
		"FACT_AGENT_WEIGHT":             "0.7",
		"SUBJECTIVITY_AGENT_WEIGHT":     "0.3",
		"DECISION_CYCLE_MS":             "500",
		"REFLECTION_INTERVAL_MINUTES":   "10",
		"HEALTH_CHECK_INTERVAL_SECONDS": "15",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	require.NoError(t, c.applyEnv(lookup))
	require.NoError(t, c.Validate())

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "cache:6380", c.RedisAddr())
	assert.Equal(t, 20000.0, c.Trading.MaxPositionSize)
	assert.Equal(t, 0.7, c.Trading.FactWeight)
	assert.Equal(t, 500*time.Millisecond, c.Processing.DecisionCycle)
	assert.Equal(t, 10*time.Minute, c.Processing.ReflectionInterval)
	assert.Equal(t, 15*time.Second, c.Processing.HealthInterval)
}

func TestApplyEnvRejectsGarbage(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	err = c.applyEnv(func(k string) (string, bool) {
		if k == "SHARPE_THRESHOLD" {
			return "high", true
		}
		return "", false
	})
	assert.ErrorContains(t, err, "SHARPE_THRESHOLD")
}

func TestValidateCrossField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "weights must sum to one",
			mutate: func(c *Config) { c.Trading.FactWeight = 0.8 },
			errMsg: "must equal 1",
		},
		{
			name:   "sharpe threshold floor",
			mutate: func(c *Config) { c.Trading.SharpeThreshold = 0.2 },
			errMsg: "sharpe_threshold",
		},
		{
			name:   "remote sentiment needs url",
			mutate: func(c *Config) { c.Sentiment.Mode = "remote" },
			errMsg: "sentiment.remote.url",
		},
		{
			name:   "unknown sentiment mode",
			mutate: func(c *Config) { c.Sentiment.Mode = "oracle" },
			errMsg: "Mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Default()
			require.NoError(t, err)
			tt.mutate(c)
			assert.ErrorContains(t, c.Validate(), tt.errMsg)
		})
	}
}
