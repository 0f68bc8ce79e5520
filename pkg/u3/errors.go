package u3

import (
	"errors"
	"fmt"
)

var (
	ErrChecksumMismatch    = errors.New("checksum mismatch")
	ErrUnexpectedResponse  = errors.New("unexpected response shape")
	ErrDevice              = errors.New("device reported error")
	ErrConfigNotApplied    = errors.New("configuration not applied")
	ErrShortRead           = errors.New("short read")
	ErrShortWrite          = errors.New("short write")
	ErrInvalidStreamConfig = errors.New("invalid stream configuration")
	ErrInvalidChannel      = errors.New("invalid channel")
)

// Device error codes from the U3 User's Guide, section 5.2.
const (
	ErrorCodeStreamIsActive          byte = 48
	ErrorCodeStreamTableInvalid      byte = 49
	ErrorCodeStreamConfigInvalid     byte = 50
	ErrorCodeStreamNotRunning        byte = 52
	ErrorCodeStreamInvalidTrigger    byte = 53
	ErrorCodeStreamADC0Overflow      byte = 54
	ErrorCodeStreamScanOverlap       byte = 55
	ErrorCodeStreamSampleNumInvalid  byte = 56
	ErrorCodeStreamBipolarGain       byte = 57
	ErrorCodeStreamScanRateInvalid   byte = 58
	ErrorCodeStreamAutoRecoverActive byte = 59
	ErrorCodeStreamAutoRecoverReport byte = 60
	ErrorCodeStreamAutoRecoverOvf    byte = 63
)

var errorCodeNames = map[byte]string{
	1:                                "scratch write failed",
	2:                                "scratch erase failed",
	3:                                "data buffer overflow",
	4:                                "ADC0 buffer overflow",
	5:                                "function invalid",
	6:                                "SWDT id invalid",
	7:                                "XBR config error",
	ErrorCodeStreamIsActive:          "stream is active",
	ErrorCodeStreamTableInvalid:      "stream table invalid",
	ErrorCodeStreamConfigInvalid:     "stream config invalid",
	ErrorCodeStreamNotRunning:        "stream not running",
	ErrorCodeStreamInvalidTrigger:    "stream invalid trigger",
	ErrorCodeStreamADC0Overflow:      "stream ADC0 buffer overflow",
	ErrorCodeStreamScanOverlap:       "stream scan overlap",
	ErrorCodeStreamSampleNumInvalid:  "stream sample number invalid",
	ErrorCodeStreamBipolarGain:       "stream bipolar gain invalid",
	ErrorCodeStreamScanRateInvalid:   "stream scan rate invalid",
	ErrorCodeStreamAutoRecoverActive: "stream auto-recovery active",
	ErrorCodeStreamAutoRecoverReport: "stream auto-recovery report",
	ErrorCodeStreamAutoRecoverOvf:    "stream auto-recovery overflow",
	64:                               "timer invalid mode",
	96:                               "invalid pin",
	97:                               "pin configured for analog",
	98:                               "pin configured for digital",
	102:                              "timer/counter pin offset must be 4-8",
}

// ErrorCodeName returns a human readable name for a device error code.
func ErrorCodeName(code byte) string {
	if name, ok := errorCodeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("unknown error code %d", code)
}

// ChecksumKind identifies which checksum of a frame failed verification.
type ChecksumKind int

const (
	Checksum8 ChecksumKind = iota
	Checksum16Low
	Checksum16High
)

func (k ChecksumKind) String() string {
	switch k {
	case Checksum8:
		return "checksum8"
	case Checksum16Low:
		return "checksum16(LSB)"
	case Checksum16High:
		return "checksum16(MSB)"
	default:
		return fmt.Sprintf("checksum(%d)", int(k))
	}
}

// ChecksumMismatchError indicates a response whose checksum does not match the
// value computed over the received bytes.
type ChecksumMismatchError struct {
	Command  string
	Which    ChecksumKind
	Expected byte
	Actual   byte
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("%s: read buffer has bad %s: computed 0x%02X, got 0x%02X",
		e.Command, e.Which, e.Expected, e.Actual)
}

func (e *ChecksumMismatchError) Is(target error) bool { return target == ErrChecksumMismatch }

// UnexpectedResponseError indicates a response whose echoed command bytes do not
// match the command that was sent.
type UnexpectedResponseError struct {
	Command  string
	Offset   int
	Expected byte
	Actual   byte
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("%s: read buffer has wrong command byte at offset %d: expected 0x%02X, got 0x%02X",
		e.Command, e.Offset, e.Expected, e.Actual)
}

func (e *UnexpectedResponseError) Is(target error) bool { return target == ErrUnexpectedResponse }

// DeviceError carries a nonzero error code reported by the device.
type DeviceError struct {
	Command string
	Code    byte
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: device error %d (%s)", e.Command, e.Code, ErrorCodeName(e.Code))
}

func (e *DeviceError) Is(target error) bool { return target == ErrDevice }

// ConfigNotAppliedError indicates that ConfigIO echoed a value different from
// the one requested.
type ConfigNotAppliedError struct {
	Field     string
	Requested byte
	Actual    byte
}

func (e *ConfigNotAppliedError) Error() string {
	return fmt.Sprintf("ConfigIO: %s did not get set correctly: requested %d, got %d",
		e.Field, e.Requested, e.Actual)
}

func (e *ConfigNotAppliedError) Is(target error) bool { return target == ErrConfigNotApplied }

// Direction of a transfer.
type Direction int

const (
	DirectionRead Direction = iota
	DirectionWrite
)

// ShortTransferError indicates that the transport moved fewer bytes than the
// frame requires. No partial frame is ever retried.
type ShortTransferError struct {
	Op       string
	Dir      Direction
	Expected int
	Actual   int
}

func (e *ShortTransferError) Error() string {
	verb := "read"
	if e.Dir == DirectionWrite {
		verb = "write"
	}
	if e.Actual == 0 {
		return fmt.Sprintf("%s: %s failed", e.Op, verb)
	}
	return fmt.Sprintf("%s: did not %s all of the buffer: expected %d bytes, got %d",
		e.Op, verb, e.Expected, e.Actual)
}

func (e *ShortTransferError) Is(target error) bool {
	switch e.Dir {
	case DirectionWrite:
		return target == ErrShortWrite
	default:
		return target == ErrShortRead
	}
}

// IsProtocolError reports whether err originates from frame validation or the
// device, as opposed to the transport or the caller.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrUnexpectedResponse) ||
		errors.Is(err, ErrDevice) ||
		errors.Is(err, ErrConfigNotApplied)
}
