package u3

import (
	"encoding/hex"
	"strings"
)

// fold8 reduces a byte sum to 8 bits by adding the quotient and remainder of a
// division by 256, twice.
func fold8(sum int) byte {
	q := sum / 256
	sum = (sum - 256*q) + q
	q = sum / 256
	return byte((sum - 256*q) + q)
}

// NormalChecksum8 computes the checksum of a normal command frame over bytes
// 1..n-1. For the 2 byte stream start/stop frames it equals the command byte.
func NormalChecksum8(frame []byte) byte {
	var sum int
	for i := 1; i < len(frame); i++ {
		sum += int(frame[i])
	}
	return fold8(sum)
}

// ExtendedChecksum8 computes the header checksum of an extended frame over
// bytes 1..5. The payload is covered by ExtendedChecksum16.
func ExtendedChecksum8(frame []byte) byte {
	var sum int
	for i := 1; i < ExtendedHeaderSize && i < len(frame); i++ {
		sum += int(frame[i])
	}
	return fold8(sum)
}

// ExtendedChecksum16 sums every byte after the extended header.
func ExtendedChecksum16(frame []byte) uint16 {
	var sum uint16
	for i := ExtendedHeaderSize; i < len(frame); i++ {
		sum += uint16(frame[i])
	}
	return sum
}

// SetExtendedChecksum writes checksum16 into bytes 4 and 5 and then the header
// checksum8 into byte 0. The order matters: checksum8 covers bytes 4 and 5.
func SetExtendedChecksum(frame []byte) {
	sum := ExtendedChecksum16(frame)
	frame[4] = byte(sum & 0xFF)
	frame[5] = byte(sum >> 8)
	frame[0] = ExtendedChecksum8(frame)
}

// SetNormalChecksum writes the normal checksum8 into byte 0.
func SetNormalChecksum(frame []byte) {
	frame[0] = NormalChecksum8(frame)
}

// FormatFrame renders a frame as dash separated hex, e.g. "a8-a8".
func FormatFrame(b []byte) string {
	hexDigits := hex.EncodeToString(b)
	var builder strings.Builder
	for i, r := range hexDigits {
		if i > 0 && i%2 == 0 {
			builder.WriteString("-")
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
