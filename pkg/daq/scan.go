package daq

import "github.com/seagrayinc/u3stream/pkg/u3"

// ScanBuffer holds the calibrated scans produced by one poll cycle, indexed
// [scan][channel]. Only completed scans are kept: a trailing partial scan is
// dropped when the cycle ends.
type ScanBuffer struct {
	Channels int
	// Status is the status of the last packet of the read.
	Status u3.StreamStatus
	// Events lists every overflow and auto-recovery report seen in the read.
	Events []u3.PacketEvent
	// Backlog is the device buffer backlog reported by the last packet.
	Backlog byte

	scans   [][]float64
	partial []float64
}

func newScanBuffer(channels, capacity int) *ScanBuffer {
	return &ScanBuffer{
		Channels: channels,
		scans:    make([][]float64, 0, capacity),
		partial:  make([]float64, 0, channels),
	}
}

// add appends one calibrated value for the next channel in scan order.
func (b *ScanBuffer) add(v float64) {
	b.partial = append(b.partial, v)
	if len(b.partial) == b.Channels {
		b.scans = append(b.scans, b.partial)
		b.partial = make([]float64, 0, b.Channels)
	}
}

// Len returns the number of completed scans.
func (b *ScanBuffer) Len() int { return len(b.scans) }

// Scan returns the i-th completed scan.
func (b *ScanBuffer) Scan(i int) []float64 { return b.scans[i] }

// Scans returns every completed scan.
func (b *ScanBuffer) Scans() [][]float64 { return b.scans }

// Latest returns the last completed scan, the authoritative output of a cycle.
func (b *ScanBuffer) Latest() ([]float64, bool) {
	if len(b.scans) == 0 {
		return nil, false
	}
	return b.scans[len(b.scans)-1], true
}

// Overflowed reports whether any packet of the cycle signalled a device buffer
// overflow.
func (b *ScanBuffer) Overflowed() bool {
	for _, ev := range b.Events {
		if ev.Status.Kind == u3.StatusBufferOverflow {
			return true
		}
	}
	return false
}

// DroppedScans sums the scans reported lost by auto-recovery reports.
func (b *ScanBuffer) DroppedScans() int {
	var n int
	for _, ev := range b.Events {
		if ev.Status.Kind == u3.StatusAutoRecoveryReport {
			n += int(ev.Status.DroppedScans)
		}
	}
	return n
}
