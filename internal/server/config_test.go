package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	req := require.New(t)

	cfg := NewConfig()

	req.Equal(":8080", cfg.Addr)
	req.Equal("./static", cfg.PublicDir)
	req.Equal([]string{"*"}, cfg.AllowedOrigins)
	req.Equal(int64(512), cfg.MaxMessageSize)
	req.Equal("#000000", cfg.DefaultColor)
	req.Equal(256, cfg.SendBuffer)
	req.Equal(5, cfg.RateLimit.Burst)
	req.Equal(time.Second, cfg.RateLimit.RefillInterval)
}

func TestSetConfig_SanitizesZeroValues(t *testing.T) {
	req := require.New(t)
	t.Cleanup(func() { SetConfig(nil) })

	SetConfig(&Config{MaxMessageSize: -1, SendBuffer: 0})

	cfg := currentConfig()
	req.Equal(int64(512), cfg.MaxMessageSize)
	req.Equal(256, cfg.SendBuffer)
	req.Equal(":8080", cfg.Addr)
	req.Equal("#000000", cfg.DefaultColor)
}

func TestSetConfig_NilResetsToDefaults(t *testing.T) {
	req := require.New(t)

	SetConfig(&Config{Addr: ":9999", DefaultColor: "#123456"})
	SetConfig(nil)

	cfg := currentConfig()
	req.Equal(":8080", cfg.Addr)
	req.Equal("#000000", cfg.DefaultColor)
}

func TestNewConfigFromEnv_ReadsVariables(t *testing.T) {
	req := require.New(t)
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("DEFAULT_COLOR", "#ff0000")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("ALLOWED_ORIGINS", "http://one.example,http://two.example")

	cfg, err := NewConfigFromEnv()

	req.NoError(err)
	req.Equal(":9090", cfg.Addr)
	req.Equal("#ff0000", cfg.DefaultColor)
	req.Equal(int64(1024), cfg.MaxMessageSize)
	req.Equal(10, cfg.RateLimit.Burst)
	req.Equal([]string{"http://one.example", "http://two.example"}, cfg.AllowedOrigins)
}

func TestNewConfigFromEnv_RejectsBadColor(t *testing.T) {
	req := require.New(t)
	t.Setenv("DEFAULT_COLOR", "red")

	_, err := NewConfigFromEnv()

	req.Error(err)
	req.Contains(err.Error(), "invalid configuration")
}

func TestNewConfigFromEnv_RejectsBadNumber(t *testing.T) {
	req := require.New(t)
	t.Setenv("MAX_MESSAGE_SIZE", "not-a-number")

	_, err := NewConfigFromEnv()

	req.Error(err)
}

func TestNewConfigFromEnv_RejectsBadLogLevel(t *testing.T) {
	req := require.New(t)
	t.Setenv("LOG_LEVEL", "LOUD")

	_, err := NewConfigFromEnv()

	req.Error(err)
}
