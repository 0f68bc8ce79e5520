package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seagrayinc/u3stream/pkg/u3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "u3stream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	assert.Len(t, cfg.Stream.Channels, 5)
	assert.Equal(t, 25, cfg.Stream.SamplesPerPacket)
	assert.Equal(t, 5, cfg.Stream.ReadMultiplier)
	assert.Equal(t, 50.0, cfg.Acquisition.PollRateHz)
	assert.Equal(t, 20*time.Millisecond, cfg.Acquisition.PollInterval())
	assert.Equal(t, time.Second, cfg.Acquisition.WarnInterval)
	assert.Equal(t, "nominal", cfg.Calibration.Source)

	sc := cfg.Stream.U3StreamConfig()
	assert.Equal(t, u3.SingleEnded(4), sc.Channels[4])
	assert.Equal(t, uint16(4000), sc.ScanInterval)
	assert.Equal(t, byte(0x01), sc.ScanConfig.Byte())
	assert.InDelta(t, 1000.0, sc.ScanRate(), 1e-9)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
stream:
  channels:
    - {positive: 0, negative: 1}
    - {positive: 2, negative: 31}
  samplesPerPacket: 24
  readMultiplier: 1
calibration:
  source: file
  file: cal.yaml
logging:
  format: text
`)
	t.Setenv("U3STREAM_ACQUISITION_POLLRATEHZ", "10")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	assert.Equal(t, []ChannelConfig{{Positive: 0, Negative: 1}, {Positive: 2, Negative: 31}}, cfg.Stream.Channels)
	assert.Equal(t, 24, cfg.Stream.SamplesPerPacket)
	assert.Equal(t, 10.0, cfg.Acquisition.PollRateHz)
	assert.Equal(t, "cal.yaml", cfg.Calibration.File)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"negative device index", func(c *Config) { c.Device.Index = -1 }, "device.index"},
		{"scan interval zero", func(c *Config) { c.Stream.ScanInterval = 0 }, "stream.scanInterval"},
		{"scan interval too large", func(c *Config) { c.Stream.ScanInterval = 70000 }, "stream.scanInterval"},
		{"resolution", func(c *Config) { c.Stream.Resolution = 4 }, "stream.resolution"},
		{"multiplier requires 25", func(c *Config) { c.Stream.SamplesPerPacket = 20 }, "requires stream.samplesPerPacket"},
		{"unaligned channels", func(c *Config) {
			c.Stream.ReadMultiplier = 1
			c.Stream.SamplesPerPacket = 24
		}, "stream:"},
		{"no channels", func(c *Config) { c.Stream.Channels = nil }, "stream:"},
		{"poll rate", func(c *Config) { c.Acquisition.PollRateHz = 0 }, "acquisition.pollRateHz"},
		{"calibration source", func(c *Config) { c.Calibration.Source = "eeprom" }, "calibration.source"},
		{"calibration file", func(c *Config) { c.Calibration.Source = "file" }, "calibration.file"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)

			err = Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
