package u3_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seagrayinc/u3stream/pkg/u3"
)

func fiveChannelConfig() u3.StreamConfig {
	return u3.StreamConfig{
		Channels: []u3.Channel{
			u3.SingleEnded(0), u3.SingleEnded(1), u3.SingleEnded(2), u3.SingleEnded(3), u3.SingleEnded(4),
		},
		SamplesPerPacket: 25,
		ScanConfig:       u3.ScanConfig{Resolution: u3.Resolution119Bit},
		ScanInterval:     4000,
	}
}

func TestEncodeStreamStartStop(t *testing.T) {
	assert.Equal(t, []byte{0xA8, 0xA8}, u3.EncodeStreamStart())
	assert.Equal(t, []byte{0xB0, 0xB0}, u3.EncodeStreamStop())
}

func TestEncodeConfigIO(t *testing.T) {
	frame := u3.EncodeConfigIO(u3.DefaultConfigIO())
	require.Len(t, frame, 12)

	assert.Equal(t, byte(0xF8), frame[1])
	assert.Equal(t, byte(0x03), frame[2])
	assert.Equal(t, byte(0x0B), frame[3])
	assert.Equal(t, byte(13), frame[6], "write mask")
	assert.Equal(t, byte(0), frame[7])
	assert.Equal(t, byte(64), frame[8], "timer counter config")
	assert.Equal(t, byte(0), frame[9], "DAC1 enable")
	assert.Equal(t, byte(255), frame[10], "FIO analog")
	assert.Equal(t, byte(255), frame[11], "EIO analog")

	// checksum16 = 13+64+255+255 = 587 = 0x024B
	assert.Equal(t, byte(0x4B), frame[4])
	assert.Equal(t, byte(0x02), frame[5])
	assert.Equal(t, u3.ExtendedChecksum8(frame), frame[0])
}

func TestEncodeStreamConfig(t *testing.T) {
	frame, err := u3.EncodeStreamConfig(fiveChannelConfig())
	require.NoError(t, err)
	require.Len(t, frame, 12+5*2)

	assert.Equal(t, byte(0xF8), frame[1])
	assert.Equal(t, byte(3+5), frame[2])
	assert.Equal(t, byte(0x11), frame[3])
	assert.Equal(t, byte(5), frame[6])
	assert.Equal(t, byte(25), frame[7])
	assert.Equal(t, byte(0), frame[8])
	assert.Equal(t, byte(0x01), frame[9])
	assert.Equal(t, byte(4000&0xFF), frame[10])
	assert.Equal(t, byte(4000>>8), frame[11])
	for i := 0; i < 5; i++ {
		assert.Equal(t, byte(i), frame[12+i*2], "positive channel %d", i)
		assert.Equal(t, byte(31), frame[13+i*2], "negative channel %d", i)
	}

	sum := u3.ExtendedChecksum16(frame)
	assert.Equal(t, byte(sum&0xFF), frame[4])
	assert.Equal(t, byte(sum>>8), frame[5])
	assert.Equal(t, u3.ExtendedChecksum8(frame), frame[0])
}

func TestStreamConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*u3.StreamConfig)
	}{
		{"no channels", func(c *u3.StreamConfig) { c.Channels = nil }},
		{"samples not multiple of channels", func(c *u3.StreamConfig) { c.SamplesPerPacket = 24 }},
		{"too many samples", func(c *u3.StreamConfig) { c.SamplesPerPacket = 30 }},
		{"zero samples", func(c *u3.StreamConfig) { c.SamplesPerPacket = 0 }},
		{"zero scan interval", func(c *u3.StreamConfig) { c.ScanInterval = 0 }},
		{"bad negative channel", func(c *u3.StreamConfig) { c.Channels[0].Negative = 20 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fiveChannelConfig()
			tt.mutate(&cfg)

			_, err := u3.EncodeStreamConfig(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, u3.ErrInvalidStreamConfig))
		})
	}
}

func TestScanConfig(t *testing.T) {
	assert.Equal(t, byte(0x01), u3.ScanConfig{Resolution: u3.Resolution119Bit}.Byte())
	assert.Equal(t, byte(0x0F), u3.ScanConfig{Resolution: u3.Resolution101Bit, Clock48MHz: true, DivideBy256: true}.Byte())

	cfg := fiveChannelConfig()
	assert.InDelta(t, 1000.0, cfg.ScanRate(), 1e-9)
}
