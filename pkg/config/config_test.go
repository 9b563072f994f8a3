package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
environment: test
database:
  driver: sqlite3
  path: ./finscore.db
artifacts:
  backend: http
  base_url: http://storage.local
  bucket: models
lifecycle:
  retrain_timeout: 90s
training:
  income_weight: 0.25
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, 90*time.Second, c.Lifecycle.RetrainTimeout)
	assert.Equal(t, 0.25, c.Training.IncomeWeight)
	assert.Equal(t, 0.02, c.Training.SavingsWeight)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "expense_ml_features", c.Database.Tables.LabeledFeatures)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("INCOME_WEIGHT", "0.3")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ARTIFACTS_API_KEY", "secret")

	c, err := LoadWithEnv(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, 0.3, c.Training.IncomeWeight)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "secret", c.Artifacts.APIKey)
}

func TestLoadWithEnvRejectsBadWeight(t *testing.T) {
	t.Setenv("SAVINGS_WEIGHT", "lots")
	_, err := LoadWithEnv(writeConfig(t, minimalYAML))
	require.Error(t, err)

	t.Setenv("SAVINGS_WEIGHT", "1.5")
	_, err = LoadWithEnv(writeConfig(t, minimalYAML))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.Environment = "test"
		c.Database.Driver = "clickhouse"
		c.Database.Host = "localhost"
		c.Artifacts.Backend = "redis"
		c.Redis.Addr = "localhost:6379"
		return c
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"no environment":        func(c *Config) { c.Environment = "" },
		"unknown driver":        func(c *Config) { c.Database.Driver = "postgres" },
		"clickhouse no host":    func(c *Config) { c.Database.Host = "" },
		"unknown backend":       func(c *Config) { c.Artifacts.Backend = "s3" },
		"redis backend no addr": func(c *Config) { c.Redis.Addr = "" },
		"kafka no brokers":      func(c *Config) { c.Kafka.Enabled = true },
		"zero weight":           func(c *Config) { c.Training.IncomeWeight = 0 },
		"one grid point":        func(c *Config) { c.Training.GridPoints = 1 },
		"inverted range":        func(c *Config) { c.Training.IncomeMax = c.Training.IncomeMin },
		"no retrain timeout":    func(c *Config) { c.Lifecycle.RetrainTimeout = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
