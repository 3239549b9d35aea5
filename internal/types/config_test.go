package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
devices:
  - name: backyard
`))
	require.NoError(t, err)
	require.Len(t, cfg.Devices, 1)

	d := cfg.Devices[0]
	assert.Equal(t, "wh23xx", d.Type)
	assert.Equal(t, uint16(0x10c4), d.VendorID)
	assert.Equal(t, uint16(0x8468), d.ProductID)
	assert.Equal(t, DefaultTimeout, d.Timeout)
	assert.Equal(t, 5, d.MaxTries)
	assert.Equal(t, 10*time.Second, d.RetryWait)
	assert.Equal(t, 5, d.ResetAttempts)
	assert.Equal(t, 2*time.Second, d.ResetWait)
	assert.Equal(t, "revised", d.UVScaling)
}

func TestParseConfigOverrides(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
log:
  debug: true
devices:
  - name: roof
    vendor-id: 0x1234
    product-id: 0x5678
    timeout: 500ms
    poll-interval: 1m
    max-tries: 3
    retry-wait: 2s
    uv-scaling: legacy
    strict-checksum: true
`))
	require.NoError(t, err)
	assert.True(t, cfg.Log.Debug)

	d, err := cfg.Device("roof")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), d.VendorID)
	assert.Equal(t, uint16(0x5678), d.ProductID)
	assert.Equal(t, 500*time.Millisecond, d.Timeout)
	assert.Equal(t, time.Minute, d.PollInterval)
	assert.Equal(t, 3, d.MaxTries)
	assert.Equal(t, "legacy", d.UVScaling)
	assert.True(t, d.StrictChecksum)
}

func TestParseConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing name",
			yaml: "devices:\n  - model: x\n",
		},
		{
			name: "bad type",
			yaml: "devices:\n  - name: a\n    type: davis\n",
		},
		{
			name: "bad uv scaling",
			yaml: "devices:\n  - name: a\n    uv-scaling: half\n",
		},
		{
			name: "negative max tries",
			yaml: "devices:\n  - name: a\n    max-tries: -1\n",
		},
		{
			name: "bad timezone",
			yaml: "devices:\n  - name: a\n    timezone: Mars/Olympus\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestConfigDevice(t *testing.T) {
	cfg := Config{Devices: []DeviceConfig{{Name: "a"}, {Name: "b"}}}

	d, err := cfg.Device("")
	require.NoError(t, err)
	assert.Equal(t, "a", d.Name)

	d, err = cfg.Device("b")
	require.NoError(t, err)
	assert.Equal(t, "b", d.Name)

	_, err = cfg.Device("c")
	assert.Error(t, err)

	_, err = (&Config{}).Device("")
	assert.Error(t, err)
}
