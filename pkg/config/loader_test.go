package config_test

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/paygate/pkg/config"
)

type defaultsConfig struct {
	Name    string `env:"PAYGATE_TEST_NAME_DEFAULT" envDefault:"paygate"`
	Workers int    `env:"PAYGATE_TEST_WORKERS_DEFAULT" envDefault:"4"`
	Debug   bool   `env:"PAYGATE_TEST_DEBUG_DEFAULT" envDefault:"true"`
}

type successConfig struct {
	Name    string `env:"PAYGATE_TEST_NAME" envDefault:"paygate"`
	Workers int    `env:"PAYGATE_TEST_WORKERS" envDefault:"4"`
}

type cachedConfig struct {
	Value string `env:"PAYGATE_TEST_CACHED"`
}

type requiredConfig struct {
	Value string `env:"PAYGATE_TEST_REQUIRED,required"`
}

type limitsConfig struct {
	Limits map[string]int64 `env:"PAYGATE_TEST_LIMITS" envKeyValSeparator:"="`
}

type fileConfig struct {
	Value  string   `env:"PAYGATE_TEST_FILE_VALUE"`
	List   []string `env:"PAYGATE_TEST_FILE_LIST"`
	Quoted string   `env:"PAYGATE_TEST_FILE_QUOTED"`
}

var errBackend = errors.New("backend must be memory or redis")

type validatedConfig struct {
	Backend string `env:"PAYGATE_TEST_BACKEND" envDefault:"memory"`
}

func (c *validatedConfig) Validate() error {
	if c.Backend != "memory" && c.Backend != "redis" {
		return errBackend
	}
	return nil
}

func TestLoad_Success(t *testing.T) {
	t.Setenv("PAYGATE_TEST_NAME", "billing")
	t.Setenv("PAYGATE_TEST_WORKERS", "16")

	var cfg successConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "billing", cfg.Name)
	assert.Equal(t, 16, cfg.Workers)
}

func TestLoad_DefaultValues(t *testing.T) {
	os.Unsetenv("PAYGATE_TEST_NAME_DEFAULT")
	os.Unsetenv("PAYGATE_TEST_WORKERS_DEFAULT")
	os.Unsetenv("PAYGATE_TEST_DEBUG_DEFAULT")

	var cfg defaultsConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, defaultsConfig{Name: "paygate", Workers: 4, Debug: true}, cfg)
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("PAYGATE_TEST_REQUIRED")

	var cfg requiredConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)

	t.Setenv("PAYGATE_TEST_REQUIRED", "now-set")
	require.NoError(t, config.Load(&cfg), "a failed load can be retried")
	assert.Equal(t, "now-set", cfg.Value)
}

func TestLoad_CachesPerType(t *testing.T) {
	t.Setenv("PAYGATE_TEST_CACHED", "first")

	var first cachedConfig
	require.NoError(t, config.Load(&first))

	t.Setenv("PAYGATE_TEST_CACHED", "second")

	var second cachedConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, "first", second.Value)
}

func TestLoad_MapValues(t *testing.T) {
	t.Setenv("PAYGATE_TEST_LIMITS", "solver=5,summarizer=3")

	var cfg limitsConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, map[string]int64{"solver": 5, "summarizer": 3}, cfg.Limits)
}

func TestLoad_Validator(t *testing.T) {
	t.Setenv("PAYGATE_TEST_BACKEND", "etcd")

	var cfg validatedConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.ErrorIs(t, err, errBackend)

	t.Setenv("PAYGATE_TEST_BACKEND", "redis")
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "redis", cfg.Backend)
}

func TestLoad_NilPointer(t *testing.T) {
	var cfg *successConfig
	assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
}

func TestMustLoad_Panics(t *testing.T) {
	os.Unsetenv("PAYGATE_TEST_REQUIRED_PANIC")

	type panicConfig struct {
		Value string `env:"PAYGATE_TEST_REQUIRED_PANIC,required"`
	}
	var cfg panicConfig
	assert.Panics(t, func() { config.MustLoad(&cfg) })
}

func TestLoadEnv(t *testing.T) {
	os.Unsetenv("PAYGATE_TEST_FILE_VALUE")
	os.Unsetenv("PAYGATE_TEST_FILE_LIST")
	os.Unsetenv("PAYGATE_TEST_FILE_QUOTED")
	t.Cleanup(func() {
		os.Unsetenv("PAYGATE_TEST_FILE_VALUE")
		os.Unsetenv("PAYGATE_TEST_FILE_LIST")
		os.Unsetenv("PAYGATE_TEST_FILE_QUOTED")
	})
	config.ResetCache()

	require.NoError(t, config.LoadEnv("testdata/.env.test"))

	var cfg fileConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "from_file", cfg.Value)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.List)
	assert.Equal(t, "quoted value", cfg.Quoted)

	assert.ErrorIs(t, config.LoadEnv("testdata/missing.env"), config.ErrLoadingEnvFile)
}
