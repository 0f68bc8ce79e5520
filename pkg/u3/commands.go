package u3

import (
	"encoding/binary"
	"fmt"
)

// ConfigIO write mask bits.
const (
	WriteMaskTimerCounterConfig byte = 1 << 0
	WriteMaskDAC1Enable         byte = 1 << 1
	WriteMaskFIOAnalog          byte = 1 << 2
	WriteMaskEIOAnalog          byte = 1 << 3
)

// ConfigIO is the set of values applied by the ConfigIO command.
type ConfigIO struct {
	WriteMask          byte
	TimerCounterConfig byte
	DAC1Enable         byte
	FIOAnalog          byte
	EIOAnalog          byte
}

// DefaultConfigIO disables all timers and counters (pin offset 4) and marks
// every FIO and EIO line as analog input.
func DefaultConfigIO() ConfigIO {
	return ConfigIO{
		WriteMask:          WriteMaskTimerCounterConfig | WriteMaskFIOAnalog | WriteMaskEIOAnalog,
		TimerCounterConfig: 64,
		DAC1Enable:         0,
		FIOAnalog:          0xFF,
		EIOAnalog:          0xFF,
	}
}

// EncodeConfigIO builds the 12 byte ConfigIO command.
//
//	[cs8][0xF8][0x03][0x0B][cs16 L][cs16 H][mask][0][tc config][dac1][fio][eio]
func EncodeConfigIO(c ConfigIO) []byte {
	frame := make([]byte, 12)
	frame[1] = CommandExtended
	frame[2] = 0x03
	frame[3] = ExtendedCommandConfigIO
	frame[6] = c.WriteMask
	frame[7] = 0
	frame[8] = c.TimerCounterConfig
	frame[9] = c.DAC1Enable
	frame[10] = c.FIOAnalog
	frame[11] = c.EIOAnalog
	SetExtendedChecksum(frame)
	return frame
}

// Resolution selects the effective resolution of streamed conversions.
type Resolution byte

const (
	Resolution12Bit  Resolution = 0x00 // 12.8-bit effective
	Resolution119Bit Resolution = 0x01 // 11.9-bit effective
	Resolution110Bit Resolution = 0x02 // 11.0-bit effective
	Resolution101Bit Resolution = 0x03 // 10.3-bit effective
)

// ScanConfig is the StreamConfig scan configuration byte.
type ScanConfig struct {
	Resolution  Resolution
	Clock48MHz  bool // false selects the 4 MHz internal stream clock
	DivideBy256 bool
}

// Byte encodes the scan configuration.
func (s ScanConfig) Byte() byte {
	b := byte(s.Resolution) & 0x03
	if s.DivideBy256 {
		b |= 1 << 2
	}
	if s.Clock48MHz {
		b |= 1 << 3
	}
	return b
}

// ClockHz returns the effective stream clock after the optional divider.
func (s ScanConfig) ClockHz() float64 {
	hz := 4e6
	if s.Clock48MHz {
		hz = 48e6
	}
	if s.DivideBy256 {
		hz /= 256
	}
	return hz
}

// Channel is one entry of the stream scan list.
type Channel struct {
	Positive uint8
	Negative uint8
}

// SingleEnded returns a scan list entry for AIN<positive> referenced to GND.
func SingleEnded(positive uint8) Channel {
	return Channel{Positive: positive, Negative: NegativeChannelSingleEnded}
}

// StreamConfig describes a stream session.
type StreamConfig struct {
	Channels         []Channel
	SamplesPerPacket int
	ScanConfig       ScanConfig
	ScanInterval     uint16 // in stream clock ticks
}

// ScanRate returns the configured scans per second.
func (c StreamConfig) ScanRate() float64 {
	if c.ScanInterval == 0 {
		return 0
	}
	return c.ScanConfig.ClockHz() / float64(c.ScanInterval)
}

// Validate checks the invariants the device and the assembler rely on. Scan
// boundaries only line up with packet boundaries when SamplesPerPacket is a
// multiple of the channel count.
func (c StreamConfig) Validate() error {
	n := len(c.Channels)
	if n == 0 {
		return fmt.Errorf("%w: at least one channel required", ErrInvalidStreamConfig)
	}
	if c.SamplesPerPacket < 1 || c.SamplesPerPacket > MaxSamplesPerPacket {
		return fmt.Errorf("%w: samples per packet %d outside 1-%d",
			ErrInvalidStreamConfig, c.SamplesPerPacket, MaxSamplesPerPacket)
	}
	if c.SamplesPerPacket%n != 0 {
		return fmt.Errorf("%w: samples per packet %d is not a multiple of channel count %d",
			ErrInvalidStreamConfig, c.SamplesPerPacket, n)
	}
	if c.ScanInterval == 0 {
		return fmt.Errorf("%w: scan interval must be > 0", ErrInvalidStreamConfig)
	}
	for i, ch := range c.Channels {
		if ch.Negative != NegativeChannelSingleEnded &&
			ch.Negative != NegativeChannelSpecialRange &&
			ch.Negative != NegativeChannelVref &&
			ch.Negative > 15 {
			return fmt.Errorf("%w: channel %d has invalid negative input %d",
				ErrInvalidStreamConfig, i, ch.Negative)
		}
	}
	return nil
}

// EncodeStreamConfig builds the variable length StreamConfig command.
//
//	[cs8][0xF8][3+n][0x11][cs16 L][cs16 H][n][spp][0][scan cfg][interval L][interval H]([P][N])*n
func EncodeStreamConfig(c StreamConfig) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	n := len(c.Channels)
	frame := make([]byte, 12+n*2)
	frame[1] = CommandExtended
	frame[2] = byte(3 + n)
	frame[3] = ExtendedCommandStreamConfig
	frame[6] = byte(n)
	frame[7] = byte(c.SamplesPerPacket)
	frame[8] = 0
	frame[9] = c.ScanConfig.Byte()
	binary.LittleEndian.PutUint16(frame[10:12], c.ScanInterval)

	for i, ch := range c.Channels {
		frame[12+i*2] = ch.Positive
		frame[13+i*2] = ch.Negative
	}

	SetExtendedChecksum(frame)
	return frame, nil
}

// EncodeStreamStart builds the 2 byte StreamStart command.
func EncodeStreamStart() []byte {
	frame := []byte{0, CommandStreamStart}
	SetNormalChecksum(frame)
	return frame
}

// EncodeStreamStop builds the 2 byte StreamStop command.
func EncodeStreamStop() []byte {
	frame := []byte{0, CommandStreamStop}
	SetNormalChecksum(frame)
	return frame
}
