package config

import (
	"fmt"
	"strings"

	"github.com/seagrayinc/u3stream/pkg/u3"
)

// Validate checks configuration correctness without mutating it.
func Validate(cfg *Config) error {
	if cfg.Device.Index < 0 {
		return fmt.Errorf("device.index must be >= 0, got %d", cfg.Device.Index)
	}

	s := cfg.Stream
	if s.ScanInterval < 1 || s.ScanInterval > 0xFFFF {
		return fmt.Errorf("stream.scanInterval must be 1-65535, got %d", s.ScanInterval)
	}
	if s.Resolution < 0 || s.Resolution > int(u3.Resolution101Bit) {
		return fmt.Errorf("stream.resolution must be 0-3, got %d", s.Resolution)
	}
	if s.ReadMultiplier < 1 {
		return fmt.Errorf("stream.readMultiplier must be >= 1, got %d", s.ReadMultiplier)
	}
	if s.ReadMultiplier > 1 && s.SamplesPerPacket != u3.MaxSamplesPerPacket {
		return fmt.Errorf("stream.readMultiplier %d requires stream.samplesPerPacket %d",
			s.ReadMultiplier, u3.MaxSamplesPerPacket)
	}
	if err := s.U3StreamConfig().Validate(); err != nil {
		return fmt.Errorf("stream: %w", err)
	}

	if cfg.Acquisition.PollRateHz <= 0 {
		return fmt.Errorf("acquisition.pollRateHz must be > 0, got %g", cfg.Acquisition.PollRateHz)
	}

	switch strings.ToLower(cfg.Calibration.Source) {
	case "nominal":
		if cfg.Calibration.HardwareVersion <= 0 {
			return fmt.Errorf("calibration.hardwareVersion must be > 0 for nominal calibration")
		}
	case "file":
		if cfg.Calibration.File == "" {
			return fmt.Errorf("calibration.file is required when calibration.source is file")
		}
	default:
		return fmt.Errorf("calibration.source must be nominal or file, got %q", cfg.Calibration.Source)
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enable {
		if cfg.Metrics.Addr == "" {
			return fmt.Errorf("metrics.addr is required when metrics are enabled")
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return fmt.Errorf("metrics.path must start with /, got %q", cfg.Metrics.Path)
		}
	}

	return nil
}
