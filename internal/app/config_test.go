package app

import (
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoaderConfig() aconfig.Config {
	return aconfig.Config{
		EnvPrefix: "SHOP",
		SkipFlags: true,
		SkipFiles: true,
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SHOP_DATABASE_URL", "postgres://localhost/shop")

	cfg, err := loadConfig(testLoaderConfig())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, "postgres://localhost/shop", cfg.DatabaseURL)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, 2*time.Second, cfg.HealthCheckTimeout)
	assert.Equal(t, 20.0, cfg.RateLimit.Rate)
	assert.Equal(t, 40, cfg.RateLimit.Burst)
	assert.Equal(t, 3*time.Second, cfg.Graceful.ReadinessDelay)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfigPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9090")

	cfg, err := loadConfig(testLoaderConfig())
	require.NoError(t, err)
	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SHOP_DATABASE_URL", "postgres://localhost/shop")
	t.Setenv("SHOP_ADDR", "127.0.0.1:7000")
	t.Setenv("SHOP_AUTO_MIGRATE", "false")
	t.Setenv("SHOP_RATE_LIMIT_BURST", "5")
	t.Setenv("PORT", "9090")

	cfg, err := loadConfig(testLoaderConfig())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr, "explicit address wins over PORT")
	assert.False(t, cfg.AutoMigrate)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
}

func TestLoadConfigRequiresDatabase(t *testing.T) {
	t.Setenv("SHOP_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "")
	_, err := loadConfig(testLoaderConfig())
	assert.ErrorContains(t, err, "database URL is required")
}
