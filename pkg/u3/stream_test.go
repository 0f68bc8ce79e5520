package u3_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seagrayinc/u3stream/pkg/u3"
	"github.com/seagrayinc/u3stream/pkg/u3/u3test"
)

func TestAssembleSinglePacket(t *testing.T) {
	a, err := u3.NewAssembler(fiveChannelConfig(), 1)
	require.NoError(t, err)
	require.Equal(t, 64, a.PacketSize())
	require.Equal(t, 64, a.ReadSize())

	buf := u3test.StreamPacket(u3test.Packet{Samples: u3test.RampSamples(25, 1000)})
	read, err := a.Assemble(buf)
	require.NoError(t, err)

	require.Len(t, read.Samples, 25)
	assert.Equal(t, 1, read.Packets)
	assert.Equal(t, u3.StatusOK, read.Status.Kind)
	assert.Empty(t, read.Events)
	for i, s := range read.Samples {
		assert.Equal(t, i%5, s.Channel, "sample %d", i)
		assert.Equal(t, uint16(1000+i), s.Code, "sample %d", i)
	}
	assert.Equal(t, 5, a.ScansPerRead())
}

func TestAssembleMultipliedRead(t *testing.T) {
	a, err := u3.NewAssembler(fiveChannelConfig(), 5)
	require.NoError(t, err)

	var packets []u3test.Packet
	for m := 0; m < 5; m++ {
		packets = append(packets, u3test.Packet{Counter: byte(m), Samples: u3test.RampSamples(25, uint16(m*25))})
	}
	read, err := a.Assemble(u3test.StreamRead(packets...))
	require.NoError(t, err)

	require.Len(t, read.Samples, 125)
	assert.Equal(t, 5, read.Packets)
	assert.Zero(t, read.CounterGaps)
	for i, s := range read.Samples {
		assert.Equal(t, uint16(i), s.Code)
		assert.Equal(t, i%5, s.Channel)
	}
}

func TestAssembleRejectsWrongLength(t *testing.T) {
	a, err := u3.NewAssembler(fiveChannelConfig(), 2)
	require.NoError(t, err)

	_, err = a.Assemble(u3test.StreamPacket(u3test.Packet{Samples: u3test.RampSamples(25, 0)}))
	assert.ErrorIs(t, err, u3.ErrShortRead)
}

func TestAssembleAbortsOnBadPacket(t *testing.T) {
	a, err := u3.NewAssembler(fiveChannelConfig(), 3)
	require.NoError(t, err)

	buf := u3test.StreamRead(
		u3test.Packet{Samples: u3test.RampSamples(25, 0)},
		u3test.Packet{Counter: 1, Samples: u3test.RampSamples(25, 0)},
		u3test.Packet{Counter: 2, Samples: u3test.RampSamples(25, 0)},
	)
	buf[64+20] ^= 0x01

	read, err := a.Assemble(buf)
	assert.Nil(t, read)
	assert.ErrorIs(t, err, u3.ErrChecksumMismatch)
	assert.Contains(t, err.Error(), "packet 1")
}

func TestAssembleWrongEcho(t *testing.T) {
	a, err := u3.NewAssembler(fiveChannelConfig(), 1)
	require.NoError(t, err)

	buf := u3test.StreamPacket(u3test.Packet{Samples: u3test.RampSamples(25, 0)})
	buf[3] = 0xC1
	u3.SetExtendedChecksum(buf)

	_, err = a.Assemble(buf)
	assert.ErrorIs(t, err, u3.ErrUnexpectedResponse)
}

func TestAssembleDeviceError(t *testing.T) {
	a, err := u3.NewAssembler(fiveChannelConfig(), 1)
	require.NoError(t, err)

	buf := u3test.StreamPacket(u3test.Packet{Status: u3.ErrorCodeStreamScanOverlap, Samples: u3test.RampSamples(25, 0)})
	_, err = a.Assemble(buf)

	var devErr *u3.DeviceError
	require.True(t, errors.As(err, &devErr))
	assert.Equal(t, u3.ErrorCodeStreamScanOverlap, devErr.Code)
}

func TestAssembleOverflowThenRecovery(t *testing.T) {
	a, err := u3.NewAssembler(fiveChannelConfig(), 5)
	require.NoError(t, err)

	buf := u3test.StreamRead(
		u3test.Packet{Counter: 0, Samples: u3test.RampSamples(25, 0)},
		u3test.Packet{Counter: 1, Status: 59, Samples: u3test.RampSamples(25, 0)},
		u3test.Packet{Counter: 2, Status: 59, Samples: u3test.RampSamples(25, 0)},
		u3test.Packet{Counter: 3, Status: 60, DroppedScans: 0x0102, Samples: u3test.RampSamples(25, 0)},
		u3test.Packet{Counter: 4, Samples: u3test.RampSamples(25, 0)},
	)

	read, err := a.Assemble(buf)
	require.NoError(t, err)
	require.Len(t, read.Events, 3)

	assert.Equal(t, u3.StatusBufferOverflow, read.Events[0].Status.Kind)
	assert.True(t, read.Events[0].EnteredRecovery)
	assert.Equal(t, 1, read.Events[0].Packet)
	assert.False(t, read.Events[1].EnteredRecovery)

	assert.Equal(t, u3.StatusAutoRecoveryReport, read.Events[2].Status.Kind)
	assert.Equal(t, uint16(258), read.Events[2].Status.DroppedScans)
	assert.False(t, a.Recovering())

	assert.Equal(t, u3.StatusOK, read.Status.Kind)
	assert.Len(t, read.Samples, 125)
}

func TestAssembleRecoverySpansReads(t *testing.T) {
	a, err := u3.NewAssembler(fiveChannelConfig(), 1)
	require.NoError(t, err)

	read, err := a.Assemble(u3test.StreamPacket(u3test.Packet{Status: 59, Samples: u3test.RampSamples(25, 0)}))
	require.NoError(t, err)
	assert.True(t, a.Recovering())
	assert.Equal(t, u3.StatusBufferOverflow, read.Status.Kind)

	read, err = a.Assemble(u3test.StreamPacket(u3test.Packet{Counter: 1, Status: 59, Samples: u3test.RampSamples(25, 0)}))
	require.NoError(t, err)
	require.Len(t, read.Events, 1)
	assert.False(t, read.Events[0].EnteredRecovery)

	read, err = a.Assemble(u3test.StreamPacket(u3test.Packet{Counter: 2, Status: 60, DroppedScans: 7, Samples: u3test.RampSamples(25, 0)}))
	require.NoError(t, err)
	assert.False(t, a.Recovering())
	assert.Equal(t, uint16(7), read.Status.DroppedScans)
}

func TestAssembleAbortedReadKeepsState(t *testing.T) {
	a, err := u3.NewAssembler(fiveChannelConfig(), 2)
	require.NoError(t, err)

	bad := u3test.StreamRead(
		u3test.Packet{Counter: 0, Status: 59, Samples: u3test.RampSamples(25, 0)},
		u3test.Packet{Counter: 1, Samples: u3test.RampSamples(25, 0)},
	)
	bad[u3.StreamPacketSize(25)+20] ^= 0x01

	_, err = a.Assemble(bad)
	require.ErrorIs(t, err, u3.ErrChecksumMismatch)
	assert.False(t, a.Recovering())

	read, err := a.Assemble(u3test.StreamRead(
		u3test.Packet{Counter: 2, Status: 59, Samples: u3test.RampSamples(25, 0)},
		u3test.Packet{Counter: 3, Status: 59, Samples: u3test.RampSamples(25, 0)},
	))
	require.NoError(t, err)
	require.Len(t, read.Events, 2)
	assert.True(t, read.Events[0].EnteredRecovery)
	assert.False(t, read.Events[1].EnteredRecovery)
	assert.Equal(t, 0, read.CounterGaps)
	assert.True(t, a.Recovering())
}

func TestAssembleCounterGap(t *testing.T) {
	a, err := u3.NewAssembler(fiveChannelConfig(), 5)
	require.NoError(t, err)

	buf := u3test.StreamRead(
		u3test.Packet{Counter: 254, Samples: u3test.RampSamples(25, 0)},
		u3test.Packet{Counter: 255, Samples: u3test.RampSamples(25, 0)},
		u3test.Packet{Counter: 0, Samples: u3test.RampSamples(25, 0)},
		u3test.Packet{Counter: 5, Samples: u3test.RampSamples(25, 0)},
		u3test.Packet{Counter: 6, Backlog: 9, Samples: u3test.RampSamples(25, 0)},
	)
	read, err := a.Assemble(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, read.CounterGaps)
	assert.Equal(t, byte(9), read.Backlog)
}

func TestNewAssemblerValidation(t *testing.T) {
	cfg := fiveChannelConfig()
	cfg.SamplesPerPacket = 10

	_, err := u3.NewAssembler(cfg, 5)
	assert.ErrorIs(t, err, u3.ErrInvalidStreamConfig)

	_, err = u3.NewAssembler(cfg, 1)
	assert.NoError(t, err)

	_, err = u3.NewAssembler(fiveChannelConfig(), 0)
	assert.ErrorIs(t, err, u3.ErrInvalidStreamConfig)
}

func TestPacketAccessors(t *testing.T) {
	buf := u3test.StreamPacket(u3test.Packet{Counter: 17, Backlog: 3, Samples: []uint16{0x1234, 0xABCD}})
	p, err := u3.NewPacket(buf, 2)
	require.NoError(t, err)

	assert.Equal(t, byte(17), p.PacketCounter())
	assert.Equal(t, byte(3), p.Backlog())
	assert.Equal(t, u3.CommandStreamData, p.Command())
	assert.Equal(t, byte(6), p.WordCount())
	assert.Equal(t, u3.ExtendedCommandStreamData, p.ExtendedCommand())
	assert.Equal(t, u3.ExtendedChecksum16(buf), p.Checksum16())
	assert.Equal(t, u3.ExtendedChecksum8(buf), p.Checksum8())
	assert.Equal(t, uint32(0), p.ScanCounter())
	s, err := p.Sample(1)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xABCD), s)

	_, err = p.Sample(2)
	assert.Error(t, err)

	_, err = u3.NewPacket(buf[:10], 2)
	assert.ErrorIs(t, err, u3.ErrShortRead)
}
