package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/seagrayinc/u3stream/pkg/u3"
)

// DeviceConfig selects the U3 to open.
type DeviceConfig struct {
	Index int `mapstructure:"index"`
}

// ChannelConfig is one scan list entry. Negative 31 is single-ended.
type ChannelConfig struct {
	Positive uint8 `mapstructure:"positive"`
	Negative uint8 `mapstructure:"negative"`
}

// StreamConfig mirrors the StreamConfig command plus the read multiplier.
type StreamConfig struct {
	Channels         []ChannelConfig `mapstructure:"channels"`
	SamplesPerPacket int             `mapstructure:"samplesPerPacket"`
	ScanInterval     int             `mapstructure:"scanInterval"`
	Resolution       int             `mapstructure:"resolution"`
	Clock48MHz       bool            `mapstructure:"clock48MHz"`
	DivideBy256      bool            `mapstructure:"divideBy256"`
	ReadMultiplier   int             `mapstructure:"readMultiplier"`
}

// AcquisitionConfig controls the poll loop.
type AcquisitionConfig struct {
	PollRateHz   float64       `mapstructure:"pollRateHz"`
	WarnInterval time.Duration `mapstructure:"warnInterval"`
}

// CalibrationConfig selects where calibration constants come from.
type CalibrationConfig struct {
	// Source is "nominal" or "file".
	Source          string  `mapstructure:"source"`
	File            string  `mapstructure:"file"`
	HardwareVersion float64 `mapstructure:"hardwareVersion"`
	HighVoltage     bool    `mapstructure:"highVoltage"`
}

// LumberjackConfig configures the rolling log file.
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig configures level, format and outputs.
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Addr   string `mapstructure:"addr"`
	Path   string `mapstructure:"path"`
}

// Config is the top level configuration.
type Config struct {
	Device      DeviceConfig      `mapstructure:"device"`
	Stream      StreamConfig      `mapstructure:"stream"`
	Acquisition AcquisitionConfig `mapstructure:"acquisition"`
	Calibration CalibrationConfig `mapstructure:"calibration"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// Load reads configuration from a YAML/TOML/JSON file and U3STREAM_ prefixed
// environment variables. With an empty path, u3stream.yaml is looked up in the
// working directory and ./configs; a missing file there is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("u3stream")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix("U3STREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("device.index", 0)

	channels := make([]map[string]any, 0, 5)
	for i := 0; i < 5; i++ {
		channels = append(channels, map[string]any{"positive": i, "negative": int(u3.NegativeChannelSingleEnded)})
	}
	v.SetDefault("stream.channels", channels)
	v.SetDefault("stream.samplesPerPacket", u3.MaxSamplesPerPacket)
	v.SetDefault("stream.scanInterval", 4000)
	v.SetDefault("stream.resolution", int(u3.Resolution119Bit))
	v.SetDefault("stream.clock48MHz", false)
	v.SetDefault("stream.divideBy256", false)
	v.SetDefault("stream.readMultiplier", 5)

	v.SetDefault("acquisition.pollRateHz", 50.0)
	v.SetDefault("acquisition.warnInterval", "1s")

	v.SetDefault("calibration.source", "nominal")
	v.SetDefault("calibration.file", "")
	v.SetDefault("calibration.hardwareVersion", u3.HardwareVersion130)
	v.SetDefault("calibration.highVoltage", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 100)
	v.SetDefault("logging.file.maxBackups", 7)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.addr", ":9100")
	v.SetDefault("metrics.path", "/metrics")
}

// U3StreamConfig converts the stream section into the command structure.
func (c StreamConfig) U3StreamConfig() u3.StreamConfig {
	channels := make([]u3.Channel, 0, len(c.Channels))
	for _, ch := range c.Channels {
		channels = append(channels, u3.Channel{Positive: ch.Positive, Negative: ch.Negative})
	}
	return u3.StreamConfig{
		Channels:         channels,
		SamplesPerPacket: c.SamplesPerPacket,
		ScanConfig: u3.ScanConfig{
			Resolution:  u3.Resolution(c.Resolution),
			Clock48MHz:  c.Clock48MHz,
			DivideBy256: c.DivideBy256,
		},
		ScanInterval: uint16(c.ScanInterval),
	}
}

// PollInterval is the ticker interval derived from PollRateHz.
func (a AcquisitionConfig) PollInterval() time.Duration {
	return time.Duration(float64(time.Second) / a.PollRateHz)
}
