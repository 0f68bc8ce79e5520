// Package daq drives a U3 stream session: configuration, start/stop and the
// per-cycle stream read that turns StreamData packets into calibrated scans.
package daq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/seagrayinc/u3stream/pkg/u3"
)

// ErrInvalidState is returned when an operation is not allowed in the current
// session state.
var ErrInvalidState = errors.New("invalid session state")

// Transport moves frames to and from an open device. Control commands use
// Write/Read, stream data uses StreamRead. Returning fewer bytes than requested
// is a failure of that operation.
type Transport interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	StreamRead(p []byte) (int, error)
}

// CalibrationProvider supplies the calibration constants of a device once at
// session start.
type CalibrationProvider interface {
	Calibration(ctx context.Context) (u3.CalibrationInfo, error)
}

// NominalProvider supplies the published nominal constants.
type NominalProvider struct {
	HardwareVersion float64
	HighVoltage     bool
}

func (p NominalProvider) Calibration(context.Context) (u3.CalibrationInfo, error) {
	return u3.NominalCalibration(p.HardwareVersion, p.HighVoltage), nil
}

// State of a Session.
type State int

const (
	StateClosed State = iota
	StateConfigured
	StateStreaming
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConfigured:
		return "configured"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Session is the acquisition state machine for one device. It is not safe for
// concurrent use; give every device its own Session.
type Session struct {
	transport   Transport
	calibration u3.CalibrationInfo
	config      Config
	logger      *slog.Logger
	metrics     *Metrics
	warn        *rate.Sometimes
	id          uuid.UUID

	state       State
	stream      u3.StreamConfig
	assembler   *u3.Assembler
	converter   u3.Converter
	dac1Enabled bool
	buf         []byte
}

// New creates a closed Session over t.
//
// Example:
//
//	s := daq.New(dev, cal, daq.WithReadMultiplier(5), daq.WithLogger(logger))
//	if err := s.Configure(ctx, cfg); err != nil { ... }
//	if err := s.Start(ctx); err != nil { ... }
//	scans, err := s.PollOnce(ctx)
func New(t Transport, calibration u3.CalibrationInfo, opts ...Option) *Session {
	if t == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	id := uuid.New()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		transport:   t,
		calibration: calibration,
		config:      cfg,
		logger:      logger.With(slog.String("session", id.String())),
		metrics:     cfg.Metrics,
		warn:        cfg.warnLimiter(),
		id:          id,
	}
	s.setState(StateClosed)
	return s
}

// Open obtains calibration from p and returns a closed Session.
func Open(ctx context.Context, t Transport, p CalibrationProvider, opts ...Option) (*Session, error) {
	cal, err := p.Calibration(ctx)
	if err != nil {
		return nil, fmt.Errorf("get calibration: %w", err)
	}
	return New(t, cal, opts...), nil
}

func (s *Session) ID() uuid.UUID                   { return s.id }
func (s *Session) State() State                    { return s.state }
func (s *Session) StreamConfig() u3.StreamConfig   { return s.stream }
func (s *Session) Calibration() u3.CalibrationInfo { return s.calibration }

// DAC1Enabled reports what the device returned for DAC1Enable in the last
// ConfigIO.
func (s *Session) DAC1Enabled() bool { return s.dac1Enabled }

func (s *Session) setState(st State) {
	if st != s.state {
		s.logger.Debug("session state", slog.String("from", s.state.String()), slog.String("to", st.String()))
	}
	s.state = st
	if s.metrics != nil {
		s.metrics.State.Set(float64(st))
	}
}

// exchange writes cmd and reads a response of exactly size bytes.
func (s *Session) exchange(ctx context.Context, op string, cmd []byte, size int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Debug("sending command", slog.String("command", op), slog.String("bytes", u3.FormatFrame(cmd)))
	n, err := s.transport.Write(cmd)
	if err != nil {
		return nil, fmt.Errorf("%s: write: %w", op, err)
	}
	if n < len(cmd) {
		return nil, &u3.ShortTransferError{Op: op, Dir: u3.DirectionWrite, Expected: len(cmd), Actual: n}
	}

	resp := make([]byte, size)
	n, err = s.transport.Read(resp)
	if err != nil {
		return nil, fmt.Errorf("%s: read: %w", op, err)
	}
	if n < size {
		return nil, &u3.ShortTransferError{Op: op, Dir: u3.DirectionRead, Expected: size, Actual: n}
	}
	s.logger.Debug("received response", slog.String("command", op), slog.String("bytes", u3.FormatFrame(resp)))
	return resp, nil
}

func (s *Session) recordCommand(op string, err error) {
	if s.metrics != nil {
		s.metrics.Commands.WithLabelValues(op, errorResult(err)).Inc()
	}
}

func (s *Session) configIO(ctx context.Context) (u3.ConfigIOResult, error) {
	req := s.config.ConfigIO
	resp, err := s.exchange(ctx, "ConfigIO", u3.EncodeConfigIO(req), u3.ConfigIOResponseSize)
	if err == nil {
		var res u3.ConfigIOResult
		res, err = u3.ValidateConfigIO(req, resp)
		s.recordCommand("ConfigIO", err)
		return res, err
	}
	s.recordCommand("ConfigIO", err)
	return u3.ConfigIOResult{}, err
}

func (s *Session) streamConfig(ctx context.Context, cmd []byte) error {
	resp, err := s.exchange(ctx, "StreamConfig", cmd, u3.StreamConfigResponseSize)
	if err == nil {
		err = u3.ValidateStreamConfig(resp)
	}
	s.recordCommand("StreamConfig", err)
	return err
}

func (s *Session) streamStart(ctx context.Context) error {
	resp, err := s.exchange(ctx, "StreamStart", u3.EncodeStreamStart(), u3.StreamStartResponseSize)
	if err == nil {
		err = u3.ValidateStreamStart(resp)
	}
	s.recordCommand("StreamStart", err)
	return err
}

func (s *Session) streamStop(ctx context.Context) error {
	resp, err := s.exchange(ctx, "StreamStop", u3.EncodeStreamStop(), u3.StreamStopResponseSize)
	if err == nil {
		err = u3.ValidateStreamStop(resp)
	}
	s.recordCommand("StreamStop", err)
	return err
}

// Configure applies ConfigIO, stops any stream left running on the device and
// sends StreamConfig. The session only becomes Configured if every step
// succeeds; on failure the state is unchanged.
func (s *Session) Configure(ctx context.Context, cfg u3.StreamConfig) error {
	if s.state == StateStreaming {
		return fmt.Errorf("%w: stop the stream before reconfiguring", ErrInvalidState)
	}

	assembler, err := u3.NewAssembler(cfg, s.config.ReadMultiplier)
	if err != nil {
		return err
	}
	cmd, err := u3.EncodeStreamConfig(cfg)
	if err != nil {
		return err
	}

	applied, err := s.configIO(ctx)
	if err != nil {
		return err
	}

	// A previous process may have left the device streaming.
	if err := s.streamStop(ctx); err != nil {
		s.logger.Debug("no stream stopped before configure", slog.Any("error", err))
	}

	if err := s.streamConfig(ctx, cmd); err != nil {
		return err
	}

	s.stream = cfg
	s.assembler = assembler
	s.dac1Enabled = applied.DAC1Enabled
	s.converter = u3.NewConverter(s.calibration, applied.DAC1Enabled)
	s.buf = make([]byte, assembler.ReadSize())
	s.setState(StateConfigured)

	s.logger.Info("stream configured",
		slog.Int("channels", len(cfg.Channels)),
		slog.Int("samples_per_packet", cfg.SamplesPerPacket),
		slog.Int("read_multiplier", s.config.ReadMultiplier),
		slog.Float64("scan_rate_hz", cfg.ScanRate()),
		slog.Bool("dac1_enabled", applied.DAC1Enabled),
		slog.Float64("hardware_version", s.calibration.HardwareVersion),
	)
	return nil
}

// Start begins streaming from Configured or Stopped.
func (s *Session) Start(ctx context.Context) error {
	if s.state != StateConfigured && s.state != StateStopped {
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidState, s.state)
	}
	if err := s.streamStart(ctx); err != nil {
		return err
	}
	s.assembler.Reset()
	s.setState(StateStreaming)
	return nil
}

// Stop ends streaming. It is a no-op when the session is not streaming.
func (s *Session) Stop(ctx context.Context) error {
	if s.state != StateStreaming {
		return nil
	}
	if err := s.streamStop(ctx); err != nil {
		return err
	}
	s.setState(StateStopped)
	return nil
}

// Close stops a running stream and marks the session closed. The device handle
// itself is owned by the caller.
func (s *Session) Close(ctx context.Context) error {
	err := s.Stop(ctx)
	s.setState(StateClosed)
	return err
}

// PollOnce performs exactly one multiplied stream read and converts it into
// scans. Any validation or device error aborts the cycle and leaves the
// session streaming; whether to stop or restart is up to the caller.
func (s *Session) PollOnce(ctx context.Context) (*ScanBuffer, error) {
	if s.state != StateStreaming {
		return nil, fmt.Errorf("%w: cannot poll while %s", ErrInvalidState, s.state)
	}

	start := time.Now()
	scans, err := s.pollOnce(ctx)
	if s.metrics != nil {
		s.metrics.PollDuration.Observe(time.Since(start).Seconds())
		s.metrics.Polls.WithLabelValues(errorResult(err)).Inc()
	}
	if err != nil {
		return nil, err
	}
	return scans, nil
}

func (s *Session) pollOnce(ctx context.Context) (*ScanBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n, err := s.transport.StreamRead(s.buf)
	if err != nil {
		return nil, fmt.Errorf("StreamData: read: %w", err)
	}
	if n < len(s.buf) {
		return nil, &u3.ShortTransferError{Op: "StreamData", Dir: u3.DirectionRead, Expected: len(s.buf), Actual: n}
	}

	read, err := s.assembler.Assemble(s.buf)
	if err != nil {
		return nil, err
	}

	scans := newScanBuffer(len(s.stream.Channels), s.assembler.ScansPerRead())
	for _, smp := range read.Samples {
		ch := s.stream.Channels[smp.Channel]
		v, err := s.converter.Volts(ch.Positive, ch.Negative, smp.Code)
		if err != nil {
			return nil, fmt.Errorf("StreamData: channel %d: %w", smp.Channel, err)
		}
		scans.add(v)
	}
	scans.Status = read.Status
	scans.Events = read.Events
	scans.Backlog = read.Backlog

	s.report(read, scans)
	return scans, nil
}

func (s *Session) report(read *u3.StreamRead, scans *ScanBuffer) {
	for _, ev := range read.Events {
		switch ev.Status.Kind {
		case u3.StatusBufferOverflow:
			if ev.EnteredRecovery {
				s.warn.Do(func() {
					s.logger.Warn("U3 data buffer overflow detected, using auto-recovery and reading buffered samples",
						slog.Int("packet", ev.Packet))
				})
			}
		case u3.StatusAutoRecoveryReport:
			s.logger.Info("auto-recovery report, auto-recovery is now off",
				slog.Int("packet", ev.Packet),
				slog.Int("dropped_scans", int(ev.Status.DroppedScans)))
		}
	}
	if read.CounterGaps > 0 {
		s.logger.Debug("packet counter discontinuity", slog.Int("gaps", read.CounterGaps))
	}
	s.logger.Debug("stream read",
		slog.Int("packets", read.Packets),
		slog.Int("scans", scans.Len()),
		slog.Int("backlog", int(read.Backlog)))

	if s.metrics == nil {
		return
	}
	m := s.metrics
	m.Packets.Add(float64(read.Packets))
	m.Scans.Add(float64(scans.Len()))
	m.CounterGaps.Add(float64(read.CounterGaps))
	m.Backlog.Set(float64(read.Backlog))
	for _, ev := range read.Events {
		switch ev.Status.Kind {
		case u3.StatusBufferOverflow:
			m.Overflows.Inc()
		case u3.StatusAutoRecoveryReport:
			m.DroppedScans.Add(float64(ev.Status.DroppedScans))
		}
	}
	if latest, ok := scans.Latest(); ok {
		for i, v := range latest {
			m.ChannelVolts.WithLabelValues(strconv.Itoa(i)).Set(v)
		}
	}
}
