package u3

const (
	nameConfigIO     = "ConfigIO"
	nameStreamConfig = "StreamConfig"
	nameStreamStart  = "StreamStart"
	nameStreamStop   = "StreamStop"
	nameStreamData   = "StreamData"
)

// alternateFIOAnalog is what U3-HV hardware echoes for FIOAnalog, since FIO0-3
// are always analog there.
const alternateFIOAnalog byte = 0x0F

type echo struct {
	offset int
	value  byte
}

func checkLength(op string, resp []byte, size int) error {
	if len(resp) < size {
		return &ShortTransferError{Op: op, Dir: DirectionRead, Expected: size, Actual: len(resp)}
	}
	return nil
}

// verifyExtendedChecksums checks checksum16 high, checksum16 low and then the
// header checksum8, in that order.
func verifyExtendedChecksums(op string, resp []byte) error {
	sum := ExtendedChecksum16(resp)
	if hi := byte(sum >> 8); hi != resp[5] {
		return &ChecksumMismatchError{Command: op, Which: Checksum16High, Expected: hi, Actual: resp[5]}
	}
	if lo := byte(sum & 0xFF); lo != resp[4] {
		return &ChecksumMismatchError{Command: op, Which: Checksum16Low, Expected: lo, Actual: resp[4]}
	}
	if cs := ExtendedChecksum8(resp); cs != resp[0] {
		return &ChecksumMismatchError{Command: op, Which: Checksum8, Expected: cs, Actual: resp[0]}
	}
	return nil
}

func verifyNormalChecksum(op string, resp []byte) error {
	if cs := NormalChecksum8(resp); cs != resp[0] {
		return &ChecksumMismatchError{Command: op, Which: Checksum8, Expected: cs, Actual: resp[0]}
	}
	return nil
}

func verifyEcho(op string, resp []byte, want ...echo) error {
	for _, e := range want {
		if resp[e.offset] != e.value {
			return &UnexpectedResponseError{Command: op, Offset: e.offset, Expected: e.value, Actual: resp[e.offset]}
		}
	}
	return nil
}

func verifyErrorCode(op string, code byte) error {
	if code != 0 {
		return &DeviceError{Command: op, Code: code}
	}
	return nil
}

// ConfigIOResult carries the values the device reported after ConfigIO.
type ConfigIOResult struct {
	TimerCounterConfig byte
	DAC1Enabled        bool
	FIOAnalog          byte
	EIOAnalog          byte
}

// ValidateConfigIO verifies a 12 byte ConfigIO response against the request.
func ValidateConfigIO(req ConfigIO, resp []byte) (ConfigIOResult, error) {
	if err := checkLength(nameConfigIO, resp, ConfigIOResponseSize); err != nil {
		return ConfigIOResult{}, err
	}
	resp = resp[:ConfigIOResponseSize]

	if err := verifyExtendedChecksums(nameConfigIO, resp); err != nil {
		return ConfigIOResult{}, err
	}
	if err := verifyEcho(nameConfigIO, resp,
		echo{1, CommandExtended}, echo{2, 0x03}, echo{3, ExtendedCommandConfigIO}); err != nil {
		return ConfigIOResult{}, err
	}
	if err := verifyErrorCode(nameConfigIO, resp[6]); err != nil {
		return ConfigIOResult{}, err
	}

	if req.WriteMask&WriteMaskTimerCounterConfig != 0 && resp[8] != req.TimerCounterConfig {
		return ConfigIOResult{}, &ConfigNotAppliedError{Field: "TimerCounterConfig", Requested: req.TimerCounterConfig, Actual: resp[8]}
	}
	if req.WriteMask&WriteMaskFIOAnalog != 0 && resp[10] != req.FIOAnalog &&
		!(req.FIOAnalog == 0xFF && resp[10] == alternateFIOAnalog) {
		return ConfigIOResult{}, &ConfigNotAppliedError{Field: "FIOAnalog", Requested: req.FIOAnalog, Actual: resp[10]}
	}
	if req.WriteMask&WriteMaskEIOAnalog != 0 && resp[11] != req.EIOAnalog {
		return ConfigIOResult{}, &ConfigNotAppliedError{Field: "EIOAnalog", Requested: req.EIOAnalog, Actual: resp[11]}
	}

	return ConfigIOResult{
		TimerCounterConfig: resp[8],
		DAC1Enabled:        resp[9] != 0,
		FIOAnalog:          resp[10],
		EIOAnalog:          resp[11],
	}, nil
}

// ValidateStreamConfig verifies an 8 byte StreamConfig response.
func ValidateStreamConfig(resp []byte) error {
	if err := checkLength(nameStreamConfig, resp, StreamConfigResponseSize); err != nil {
		return err
	}
	resp = resp[:StreamConfigResponseSize]

	if err := verifyExtendedChecksums(nameStreamConfig, resp); err != nil {
		return err
	}
	if err := verifyEcho(nameStreamConfig, resp,
		echo{1, CommandExtended}, echo{2, 0x01}, echo{3, ExtendedCommandStreamConfig}, echo{7, 0x00}); err != nil {
		return err
	}
	return verifyErrorCode(nameStreamConfig, resp[6])
}

// ValidateStreamStart verifies a 4 byte StreamStart response.
func ValidateStreamStart(resp []byte) error {
	return validateNormal(nameStreamStart, CommandStreamStartAck, resp)
}

// ValidateStreamStop verifies a 4 byte StreamStop response.
func ValidateStreamStop(resp []byte) error {
	return validateNormal(nameStreamStop, CommandStreamStopAck, resp)
}

func validateNormal(op string, ack byte, resp []byte) error {
	if err := checkLength(op, resp, StreamStartResponseSize); err != nil {
		return err
	}
	resp = resp[:StreamStartResponseSize]

	if err := verifyNormalChecksum(op, resp); err != nil {
		return err
	}
	if err := verifyEcho(op, resp, echo{1, ack}, echo{3, 0x00}); err != nil {
		return err
	}
	return verifyErrorCode(op, resp[2])
}
