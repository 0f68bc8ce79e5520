package u3

import (
	"fmt"
	"log/slog"
)

// Sample is one raw conversion attributed to a position in the scan list.
type Sample struct {
	Channel int
	Code    uint16
}

// PacketEvent records a packet whose status was not StatusOK.
type PacketEvent struct {
	Packet int // index of the packet within the read
	Status StreamStatus
	// EnteredRecovery is set on the overflow packet that started an
	// auto-recovery episode.
	EnteredRecovery bool
}

// StreamRead is the result of assembling one multiplied stream read.
type StreamRead struct {
	Samples []Sample
	Status  StreamStatus // status of the last packet
	Events  []PacketEvent
	Packets int
	Backlog byte // backlog reported by the last packet
	// CounterGaps counts packets whose packet counter did not follow the
	// previous one.
	CounterGaps int
}

// Assembler splits multiplied StreamData reads into packets, validates them and
// extracts samples in scan list order.
type Assembler struct {
	channels         int
	samplesPerPacket int
	readMultiplier   int

	recovering  bool
	haveCounter bool
	lastCounter byte
}

// NewAssembler returns an assembler for reads of readMultiplier packets. When
// more than one packet is read at a time SamplesPerPacket must be 25 so every
// packet fills a 64 byte USB transfer.
func NewAssembler(cfg StreamConfig, readMultiplier int) (*Assembler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if readMultiplier < 1 {
		return nil, fmt.Errorf("%w: read multiplier must be >= 1", ErrInvalidStreamConfig)
	}
	if readMultiplier > 1 && cfg.SamplesPerPacket != MaxSamplesPerPacket {
		return nil, fmt.Errorf("%w: reading %d packets at once requires %d samples per packet",
			ErrInvalidStreamConfig, readMultiplier, MaxSamplesPerPacket)
	}
	return &Assembler{
		channels:         len(cfg.Channels),
		samplesPerPacket: cfg.SamplesPerPacket,
		readMultiplier:   readMultiplier,
	}, nil
}

func (a *Assembler) PacketSize() int { return StreamPacketSize(a.samplesPerPacket) }

// ReadSize is the number of bytes one multiplied read must return.
func (a *Assembler) ReadSize() int { return a.PacketSize() * a.readMultiplier }

// ScansPerRead is the number of complete scans a full read carries.
func (a *Assembler) ScansPerRead() int {
	return a.samplesPerPacket * a.readMultiplier / a.channels
}

// Recovering reports whether the device is draining buffered samples after an
// overflow.
func (a *Assembler) Recovering() bool { return a.recovering }

// Assemble processes buf, which must hold exactly ReadSize bytes. The first
// invalid packet or device error aborts the whole read, since sample alignment
// can no longer be trusted.
func (a *Assembler) Assemble(buf []byte) (*StreamRead, error) {
	if len(buf) != a.ReadSize() {
		return nil, &ShortTransferError{Op: nameStreamData, Dir: DirectionRead, Expected: a.ReadSize(), Actual: len(buf)}
	}

	size := a.PacketSize()
	out := &StreamRead{
		Samples: make([]Sample, 0, a.samplesPerPacket*a.readMultiplier),
	}

	// Recovery and counter state is committed only when the whole read is good.
	recovering, haveCounter, lastCounter := a.recovering, a.haveCounter, a.lastCounter

	channel := 0
	for m := 0; m < a.readMultiplier; m++ {
		p, err := NewPacket(buf[m*size:(m+1)*size], a.samplesPerPacket)
		if err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("packet %d: %w", m, err)
		}

		status := p.Status()
		switch status.Kind {
		case StatusBufferOverflow:
			ev := PacketEvent{Packet: m, Status: status}
			if !recovering {
				recovering = true
				ev.EnteredRecovery = true
				slog.Debug("stream buffer overflow, auto-recovery on", slog.Int("packet", m))
			}
			out.Events = append(out.Events, ev)
		case StatusAutoRecoveryReport:
			recovering = false
			slog.Debug("auto-recovery report", slog.Int("packet", m), slog.Int("dropped_scans", int(status.DroppedScans)))
			out.Events = append(out.Events, PacketEvent{Packet: m, Status: status})
		case StatusDeviceError:
			return nil, fmt.Errorf("packet %d: %w", m, &DeviceError{Command: nameStreamData, Code: status.Code})
		}

		counter := p.PacketCounter()
		if haveCounter && counter != lastCounter+1 {
			out.CounterGaps++
		}
		haveCounter = true
		lastCounter = counter

		for k := 0; k < a.samplesPerPacket; k++ {
			code, err := p.Sample(k)
			if err != nil {
				return nil, err
			}
			out.Samples = append(out.Samples, Sample{Channel: channel, Code: code})
			channel++
			if channel >= a.channels {
				channel = 0
			}
		}

		out.Status = status
		out.Backlog = p.Backlog()
		out.Packets++
	}

	a.recovering, a.haveCounter, a.lastCounter = recovering, haveCounter, lastCounter
	return out, nil
}

// Reset forgets recovery and packet counter state, e.g. after a stream restart.
func (a *Assembler) Reset() {
	a.recovering = false
	a.haveCounter = false
	a.lastCounter = 0
}
