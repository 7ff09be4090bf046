package config_test

import (
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"slotbook/config"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "memory", cfg.FetchCacheBackend)
	assert.Equal(t, 30*time.Second, cfg.FetchCacheTTL)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.ExclusiveSlots)
	assert.Equal(t, config.DefaultDays, cfg.Days)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "mongo")
	t.Setenv("FETCH_TIMEOUT", "3s")
	t.Setenv("EXCLUSIVE_SLOTS", "true")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := config.Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "mongo", cfg.StoreBackend)
	assert.Equal(t, 3*time.Second, cfg.FetchTimeout)
	assert.True(t, cfg.ExclusiveSlots)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestLoadDaysFromYAML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
DAYS:
  - label: Day one
    date: "2025-08-01"
    start: "09:00"
    end: "12:00"
`)))

	cfg, err := config.Load(v)
	require.NoError(t, err)
	require.Len(t, cfg.Days, 1)
	assert.Equal(t, "Day one", cfg.Days[0].Label)
	assert.Equal(t, "2025-08-01", cfg.Days[0].Date)
	assert.Equal(t, "12:00", cfg.Days[0].End)
}

func TestValidate(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		v := viper.New()
		v.Set("STORE_BACKEND", "cassandra")
		_, err := config.Load(v)
		assert.ErrorContains(t, err, "STORE_BACKEND")
	})

	t.Run("bad time zone", func(t *testing.T) {
		v := viper.New()
		v.Set("TIME_ZONE", "Mars/Olympus")
		_, err := config.Load(v)
		assert.ErrorContains(t, err, "TIME_ZONE")
	})
}
