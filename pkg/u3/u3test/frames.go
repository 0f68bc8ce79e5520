// Package u3test builds synthetic U3 responses for tests and simulations.
package u3test

import (
	"encoding/binary"

	"github.com/seagrayinc/u3stream/pkg/u3"
)

// ConfigIOResponse echoes req the way a U3-LV applies it.
func ConfigIOResponse(req u3.ConfigIO, errorCode byte) []byte {
	b := make([]byte, u3.ConfigIOResponseSize)
	b[1] = u3.CommandExtended
	b[2] = 0x03
	b[3] = u3.ExtendedCommandConfigIO
	b[6] = errorCode
	b[8] = req.TimerCounterConfig
	b[9] = req.DAC1Enable
	b[10] = req.FIOAnalog
	b[11] = req.EIOAnalog
	u3.SetExtendedChecksum(b)
	return b
}

// StreamConfigResponse returns an 8 byte StreamConfig response.
func StreamConfigResponse(errorCode byte) []byte {
	b := make([]byte, u3.StreamConfigResponseSize)
	b[1] = u3.CommandExtended
	b[2] = 0x01
	b[3] = u3.ExtendedCommandStreamConfig
	b[6] = errorCode
	u3.SetExtendedChecksum(b)
	return b
}

// StreamStartResponse returns a 4 byte StreamStart response.
func StreamStartResponse(errorCode byte) []byte {
	b := []byte{0, u3.CommandStreamStartAck, errorCode, 0x00}
	u3.SetNormalChecksum(b)
	return b
}

// StreamStopResponse returns a 4 byte StreamStop response.
func StreamStopResponse(errorCode byte) []byte {
	b := []byte{0, u3.CommandStreamStopAck, errorCode, 0x00}
	u3.SetNormalChecksum(b)
	return b
}

// Packet describes one synthetic StreamData packet.
type Packet struct {
	Counter      byte
	Status       byte
	DroppedScans uint16 // written to bytes 6-7 when Status is the recovery report
	Backlog      byte
	Samples      []uint16
}

// StreamPacket encodes p as a StreamData packet of len(p.Samples) samples.
func StreamPacket(p Packet) []byte {
	spp := len(p.Samples)
	b := make([]byte, u3.StreamPacketSize(spp))
	b[1] = u3.CommandStreamData
	b[2] = byte(4 + spp)
	b[3] = u3.ExtendedCommandStreamData
	if p.Status == u3.StreamStatusCodeRecoveryReport {
		binary.LittleEndian.PutUint16(b[6:8], p.DroppedScans)
	}
	b[10] = p.Counter
	b[11] = p.Status
	for i, s := range p.Samples {
		binary.LittleEndian.PutUint16(b[12+i*2:], s)
	}
	b[12+spp*2] = p.Backlog
	u3.SetExtendedChecksum(b)
	return b
}

// StreamRead concatenates packets into one multiplied read buffer.
func StreamRead(packets ...Packet) []byte {
	var out []byte
	for _, p := range packets {
		out = append(out, StreamPacket(p)...)
	}
	return out
}

// RampSamples returns n codes where sample i carries base+i.
func RampSamples(n int, base uint16) []uint16 {
	s := make([]uint16, n)
	for i := range s {
		s[i] = base + uint16(i)
	}
	return s
}
