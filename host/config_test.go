package host

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(""))
	assert.NoError(t, err)
	assert.Equal(t, "/dev/serial0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.Equal(t, "/dev/ttyAMA0", cfg.GPS.Port)
	assert.False(t, cfg.GPS.Enabled)
	assert.Equal(t, ":5000", cfg.Web.Listen)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(`
[serial]
port = "/dev/ttyUSB0"
baud = 57600

[gps]
enabled = true

[web]
listen = ":8080"
`))
	assert.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 57600, cfg.Serial.Baud)
	// unset fields keep their defaults
	assert.Equal(t, "/dev/ttyAMA0", cfg.GPS.Port)
	assert.True(t, cfg.GPS.Enabled)
	assert.Equal(t, ":8080", cfg.Web.Listen)
}

func TestLoadConfigMalformed(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader("not toml ["))
	assert.Error(t, err)

	_, err = LoadConfig("does-not-exist.toml")
	assert.Error(t, err)
}
