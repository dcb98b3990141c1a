package config

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEnv(values map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadEnv_RuntimeEnv(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		var rt RuntimeEnv
		require.NoError(t, loadEnvWith(&rt, fakeEnv(nil)))

		assert.Equal(t, "us-east-1", rt.AWSRegion)
		assert.Empty(t, rt.ConfigPath)
		assert.Zero(t, rt.Port)
	})

	t.Run("From Environment", func(t *testing.T) {
		var rt RuntimeEnv
		err := loadEnvWith(&rt, fakeEnv(map[string]string{
			"CONFIG_FILE_PATH": "s3://bucket/endpoints.yaml",
			"SERVER_SOFTWARE":  "Development/2.0.0",
			"PORT":             "8081",
		}))
		require.NoError(t, err)

		assert.Equal(t, "s3://bucket/endpoints.yaml", rt.ConfigPath)
		assert.Equal(t, "Development/2.0.0", rt.ServerSoftware)
		assert.Equal(t, 8081, rt.Port)
	})

	t.Run("Real Process Environment", func(t *testing.T) {
		t.Setenv("SERVER_SOFTWARE", "Google App Engine/1.9")
		var rt RuntimeEnv
		require.NoError(t, LoadEnv(&rt))
		assert.Equal(t, "Google App Engine/1.9", rt.ServerSoftware)
	})
}

func TestLoadEnv_Types(t *testing.T) {
	type Nested struct {
		Ratio float64 `env:"RATIO" envDefault:"0.5"`
	}
	type Target struct {
		Debug   bool          `env:"DEBUG"`
		Wait    time.Duration `env:"WAIT" envDefault:"2s"`
		Origins []string      `env:"ORIGINS"`
		Small   uint8         `env:"SMALL"`
		Nested  Nested
		Ptr     *Nested
		ignored string `env:"IGNORED"`
	}

	var target Target
	err := loadEnvWith(&target, fakeEnv(map[string]string{
		"DEBUG":   "TRUE",
		"ORIGINS": "http://a.com, ,http://b.com",
		"SMALL":   "7",
		"RATIO":   "1.25",
		"IGNORED": "x",
	}))
	require.NoError(t, err)

	assert.True(t, target.Debug)
	assert.Equal(t, 2*time.Second, target.Wait)
	assert.Equal(t, []string{"http://a.com", "http://b.com"}, target.Origins)
	assert.Equal(t, uint8(7), target.Small)
	assert.Equal(t, 1.25, target.Nested.Ratio)
	require.NotNil(t, target.Ptr)
	assert.Equal(t, 1.25, target.Ptr.Ratio)
	assert.Empty(t, target.ignored)
}

func TestLoadEnv_Errors(t *testing.T) {
	t.Run("Invalid Target", func(t *testing.T) {
		var rt RuntimeEnv
		err := loadEnvWith(rt, fakeEnv(nil))
		var target *InvalidEnvTargetError
		assert.True(t, errors.As(err, &target))

		err = loadEnvWith(nil, fakeEnv(nil))
		assert.True(t, errors.As(err, &target))
	})

	t.Run("Conversion Failure", func(t *testing.T) {
		var rt RuntimeEnv
		err := loadEnvWith(&rt, fakeEnv(map[string]string{"PORT": "abc"}))

		var fieldErr *EnvFieldError
		require.True(t, errors.As(err, &fieldErr))
		assert.Equal(t, "Port", fieldErr.FieldName)
		assert.Equal(t, "PORT", fieldErr.EnvVar)

		var numErr *strconv.NumError
		assert.True(t, errors.As(err, &numErr))
	})

	t.Run("Unsupported Type", func(t *testing.T) {
		type Target struct {
			Tags map[string]string `env:"TAGS"`
		}
		var target Target
		err := loadEnvWith(&target, fakeEnv(map[string]string{"TAGS": "a=b"}))

		var unsupported *UnsupportedEnvTypeError
		assert.True(t, errors.As(err, &unsupported))
	})
}

func TestEnvironment(t *testing.T) {
	assert.False(t, Production.IsDevelopment())
	assert.True(t, Development("2.0.0").IsDevelopment())
	assert.False(t, Environment{ServerSoftware: "Google App Engine/1.9"}.IsDevelopment())

	rt := RuntimeEnv{ServerSoftware: "Development/1.0"}
	assert.True(t, ResolveEnvironment(EnvironmentConf{}, rt).IsDevelopment())
	assert.False(t, ResolveEnvironment(EnvironmentConf{ServerSoftware: "Prod/1"}, rt).IsDevelopment())
}
