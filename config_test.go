package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{port: 8080, resetDelay: 2 * time.Second}, false},
		{"cert without key", Config{port: 8080, tlsCert: "cert.pem"}, true},
		{"key without cert", Config{port: 8080, tlsKey: "key.pem"}, true},
		{"cert and key", Config{port: 8443, tlsCert: "cert.pem", tlsKey: "key.pem"}, false},
		{"port zero", Config{port: 0}, true},
		{"port too high", Config{port: 65536}, true},
		{"negative reset delay", Config{port: 8080, resetDelay: -time.Second}, true},
		{"negative session timeout", Config{port: 8080, sessionTimeout: -time.Minute}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigScheme(t *testing.T) {
	assert.Equal(t, "http", (&Config{}).scheme())
	assert.Equal(t, "https", (&Config{tlsCert: "c", tlsKey: "k"}).scheme())
}

func TestNewCmdDefaults(t *testing.T) {
	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, "0.0.0.0", cfg.bind)
	assert.Equal(t, 8080, cfg.port)
	assert.Equal(t, 2*time.Second, cfg.resetDelay)
	assert.Equal(t, time.Hour, cfg.sessionTimeout)
	assert.Empty(t, cfg.db)
}

func TestNewCmdReadsEnvironment(t *testing.T) {
	t.Setenv("LIARSGUN_PORT", "9090")
	t.Setenv("LIARSGUN_RESET_DELAY", "5s")
	t.Setenv("LIARSGUN_DB", "/tmp/liarsgun.db")

	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, 5*time.Second, cfg.resetDelay)
	assert.Equal(t, "/tmp/liarsgun.db", cfg.db)
}

func TestNewCmdNormalizesFlags(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)

	require.NoError(t, cmd.ParseFlags([]string{"--reset_delay=750ms", "--session-timeout=5m", "-v"}))

	assert.Equal(t, 750*time.Millisecond, cfg.resetDelay)
	assert.Equal(t, 5*time.Minute, cfg.sessionTimeout)
	assert.True(t, cfg.verbose)
}
