package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, "chat:delivery", cfg.RedisChannel)
	assert.Equal(t, 32, cfg.RegistryShards)
	assert.Equal(t, 5*time.Second, cfg.DeliveryTimeout)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("WS_SEND_BUFFER", "16")
	t.Setenv("DELIVERY_TIMEOUT", "250ms")
	t.Setenv("DEBUG_ROUTES", "true")
	t.Setenv("REGISTRY_SHARDS", "not-a-number")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.True(t, cfg.UsesMemoryStore())
	assert.Equal(t, 16, cfg.WSSendBuffer)
	assert.Equal(t, 250*time.Millisecond, cfg.DeliveryTimeout)
	assert.True(t, cfg.DebugRoutes)
	assert.Equal(t, 32, cfg.RegistryShards)
}
