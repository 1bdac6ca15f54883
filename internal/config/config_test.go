package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDurationsFallBackWhenUnset(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL())
	assert.Equal(t, time.Minute, cfg.SocketMessageWindow())

	cfg = &Config{JWTTTLHours: 2, SocketMessageWindowSeconds: 10}
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL())
	assert.Equal(t, 10*time.Second, cfg.SocketMessageWindow())
}
