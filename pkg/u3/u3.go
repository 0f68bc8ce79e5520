// Package u3 implements the low-level command/response and StreamData protocol of
// the LabJack U3 family as described in the U3 User's Guide, section 5.2
// (Low-level Function Reference).
package u3

const (
	LabJackVID uint16 = 0x0CD5
	U3PID      uint16 = 0x0003

	// Extended command frames carry a 6 byte header:
	// [checksum8][0xF8][word count][extended command][checksum16 low][checksum16 high]
	ExtendedHeaderSize = 6

	CommandExtended byte = 0xF8

	ExtendedCommandConfigIO     byte = 0x0B
	ExtendedCommandStreamConfig byte = 0x11

	CommandStreamStart    byte = 0xA8
	CommandStreamStartAck byte = 0xA9
	CommandStreamStop     byte = 0xB0
	CommandStreamStopAck  byte = 0xB1

	// StreamData responses echo 0xF9 / 0xC0 instead of 0xF8 / extended number.
	CommandStreamData         byte = 0xF9
	ExtendedCommandStreamData byte = 0xC0

	// Negative channel values understood by the U3 analog inputs.
	NegativeChannelSingleEnded  uint8 = 31
	NegativeChannelSpecialRange uint8 = 32
	NegativeChannelVref         uint8 = 30

	MaxSamplesPerPacket = 25

	// Response sizes of the fixed-size control commands.
	ConfigIOResponseSize     = 12
	StreamConfigResponseSize = 8
	StreamStartResponseSize  = 4
	StreamStopResponseSize   = 4
)

// StreamPacketSize is the size in bytes of one StreamData response carrying
// samplesPerPacket samples.
func StreamPacketSize(samplesPerPacket int) int {
	return 14 + samplesPerPacket*2
}
