package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Server.Port)
	assert.Equal(t, "http://localhost:3001", cfg.Server.PublicURL)
	assert.Equal(t, "./renders", cfg.Render.Dir)
	assert.Equal(t, 24*time.Hour, cfg.Render.Retention)
	assert.Equal(t, time.Duration(0), cfg.Render.Timeout)
	assert.Equal(t, 60, cfg.Render.RatePerHour)
	assert.Equal(t, "npx", cfg.Engine.Binary)
	assert.Empty(t, cfg.Engine.ServeURL)
	assert.Empty(t, cfg.Redis.Addr, "Redis is opt-in")
}
