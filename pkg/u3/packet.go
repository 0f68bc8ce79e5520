package u3

import (
	"encoding/binary"
	"fmt"
)

// StreamData status byte values that do not abort a read.
const (
	StreamStatusCodeOverflow       byte = ErrorCodeStreamAutoRecoverActive
	StreamStatusCodeRecoveryReport byte = ErrorCodeStreamAutoRecoverReport
)

// Offsets inside a StreamData packet.
const (
	packetOffsetScanCounter   = 6
	packetOffsetPacketCounter = 10
	packetOffsetErrorCode     = 11
	packetOffsetSamples       = 12
)

// StatusKind classifies the status byte of a StreamData packet.
type StatusKind int

const (
	StatusOK StatusKind = iota
	StatusBufferOverflow
	StatusAutoRecoveryReport
	StatusDeviceError
)

func (k StatusKind) String() string {
	switch k {
	case StatusOK:
		return "ok"
	case StatusBufferOverflow:
		return "buffer overflow"
	case StatusAutoRecoveryReport:
		return "auto-recovery report"
	case StatusDeviceError:
		return "device error"
	default:
		return fmt.Sprintf("status(%d)", int(k))
	}
}

// StreamStatus is the classified status of one StreamData packet.
type StreamStatus struct {
	Kind         StatusKind
	DroppedScans uint16 // only for StatusAutoRecoveryReport
	Code         byte   // raw status byte
}

func (s StreamStatus) String() string {
	switch s.Kind {
	case StatusAutoRecoveryReport:
		return fmt.Sprintf("%s: %d scans dropped", s.Kind, s.DroppedScans)
	case StatusDeviceError:
		return fmt.Sprintf("%s %d (%s)", s.Kind, s.Code, ErrorCodeName(s.Code))
	default:
		return s.Kind.String()
	}
}

// Packet is a read-only view over one StreamData response.
//
//	[cs8][0xF9][4+spp][0xC0][cs16 L][cs16 H][timestamp(4)][packet#][errorcode][samples(2*spp)][backlog][reserved]
type Packet struct {
	b   []byte
	spp int
}

// NewPacket wraps b as a StreamData packet with samplesPerPacket samples.
func NewPacket(b []byte, samplesPerPacket int) (Packet, error) {
	size := StreamPacketSize(samplesPerPacket)
	if len(b) != size {
		return Packet{}, &ShortTransferError{Op: nameStreamData, Dir: DirectionRead, Expected: size, Actual: len(b)}
	}
	return Packet{b: b, spp: samplesPerPacket}, nil
}

func (p Packet) Bytes() []byte         { return p.b }
func (p Packet) SamplesPerPacket() int { return p.spp }
func (p Packet) Checksum8() byte       { return p.b[0] }
func (p Packet) Command() byte         { return p.b[1] }
func (p Packet) WordCount() byte       { return p.b[2] }
func (p Packet) ExtendedCommand() byte { return p.b[3] }
func (p Packet) Checksum16() uint16    { return binary.LittleEndian.Uint16(p.b[4:6]) }
func (p Packet) PacketCounter() byte   { return p.b[packetOffsetPacketCounter] }
func (p Packet) ErrorCode() byte       { return p.b[packetOffsetErrorCode] }
func (p Packet) Backlog() byte         { return p.b[packetOffsetSamples+p.spp*2] }

// ScanCounter is the device timestamp carried by packets with status 0.
func (p Packet) ScanCounter() uint32 { return binary.LittleEndian.Uint32(p.b[packetOffsetScanCounter:]) }

// DroppedScans is the number of scans lost during auto-recovery. Only
// meaningful on a recovery report packet.
func (p Packet) DroppedScans() uint16 { return binary.LittleEndian.Uint16(p.b[packetOffsetScanCounter:]) }

// Sample returns the raw little-endian code of sample i.
func (p Packet) Sample(i int) (uint16, error) {
	if i < 0 || i >= p.spp {
		return 0, fmt.Errorf("sample index %d out of range 0-%d", i, p.spp-1)
	}
	off := packetOffsetSamples + i*2
	return binary.LittleEndian.Uint16(p.b[off : off+2]), nil
}

// Validate checks checksums and echoed command bytes.
func (p Packet) Validate() error {
	if err := verifyExtendedChecksums(nameStreamData, p.b); err != nil {
		return err
	}
	return verifyEcho(nameStreamData, p.b,
		echo{1, CommandStreamData}, echo{2, byte(4 + p.spp)}, echo{3, ExtendedCommandStreamData})
}

// Status classifies the status byte.
func (p Packet) Status() StreamStatus {
	code := p.ErrorCode()
	switch code {
	case 0:
		return StreamStatus{Kind: StatusOK}
	case StreamStatusCodeOverflow:
		return StreamStatus{Kind: StatusBufferOverflow, Code: code}
	case StreamStatusCodeRecoveryReport:
		return StreamStatus{Kind: StatusAutoRecoveryReport, Code: code, DroppedScans: p.DroppedScans()}
	default:
		return StreamStatus{Kind: StatusDeviceError, Code: code}
	}
}
