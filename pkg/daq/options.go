package daq

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/seagrayinc/u3stream/pkg/u3"
)

// Config holds the session configuration.
type Config struct {
	// ReadMultiplier is the number of StreamData packets fetched per poll.
	// Values above 1 require 25 samples per packet.
	ReadMultiplier int

	// ConfigIO is applied before every StreamConfig.
	ConfigIO u3.ConfigIO

	Logger  *slog.Logger
	Metrics *Metrics

	// WarnInterval limits how often overflow warnings are logged.
	WarnInterval time.Duration
}

func defaultConfig() Config {
	return Config{
		ReadMultiplier: 5,
		ConfigIO:       u3.DefaultConfigIO(),
		WarnInterval:   time.Second,
	}
}

// Option is a functional option for configuring the Session.
type Option func(*Config)

// WithReadMultiplier sets how many packets one poll reads.
func WithReadMultiplier(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.ReadMultiplier = n
		}
	}
}

// WithConfigIO overrides the ConfigIO values applied by Configure.
func WithConfigIO(cfg u3.ConfigIO) Option {
	return func(c *Config) {
		c.ConfigIO = cfg
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithWarnInterval sets the minimum interval between overflow warnings.
func WithWarnInterval(d time.Duration) Option {
	return func(c *Config) {
		c.WarnInterval = d
	}
}

func (c Config) warnLimiter() *rate.Sometimes {
	if c.WarnInterval <= 0 {
		return &rate.Sometimes{Every: 1}
	}
	return &rate.Sometimes{First: 1, Interval: c.WarnInterval}
}
