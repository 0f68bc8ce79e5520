package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/seagrayinc/u3stream/internal/calibration"
	"github.com/seagrayinc/u3stream/internal/config"
	"github.com/seagrayinc/u3stream/internal/logging"
	"github.com/seagrayinc/u3stream/internal/usb"
	"github.com/seagrayinc/u3stream/pkg/daq"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	list := flag.Bool("list", false, "list attached U3 devices and exit")
	flag.Parse()

	if *list {
		infos, err := usb.List()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		for i, info := range infos {
			fmt.Printf("%d: %s serial=%s bus=%d address=%d\n", i, info.Product, info.Serial, info.Bus, info.Address)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, closer := logging.New(cfg.Logging)
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("u3stream failed", slog.Any("error", err))
		closer.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	opts := []daq.Option{
		daq.WithLogger(logger),
		daq.WithReadMultiplier(cfg.Stream.ReadMultiplier),
		daq.WithWarnInterval(cfg.Acquisition.WarnInterval),
	}

	if cfg.Metrics.Enable {
		reg := daq.NewRegistry()
		opts = append(opts, daq.WithMetrics(daq.NewMetrics(reg)))

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, daq.Handler(reg))
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("serving metrics", slog.String("addr", cfg.Metrics.Addr), slog.String("path", cfg.Metrics.Path))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	dev, err := usb.Open(cfg.Device.Index)
	if err != nil {
		return err
	}
	defer dev.Close()
	logger.Info("opened U3", slog.String("serial", dev.Info().Serial))

	var provider daq.CalibrationProvider = daq.NominalProvider{
		HardwareVersion: cfg.Calibration.HardwareVersion,
		HighVoltage:     cfg.Calibration.HighVoltage,
	}
	if strings.EqualFold(cfg.Calibration.Source, "file") {
		provider = calibration.FileProvider{Path: cfg.Calibration.File}
	}

	session, err := daq.Open(ctx, dev, provider, opts...)
	if err != nil {
		return err
	}
	defer func() {
		// ctx is already cancelled on shutdown.
		if err := session.Close(context.Background()); err != nil {
			logger.Error("stop stream", slog.Any("error", err))
		}
	}()

	if err := session.Configure(ctx, cfg.Stream.U3StreamConfig()); err != nil {
		return fmt.Errorf("configure stream: %w", err)
	}
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}

	results := make(chan daq.Result)
	go func() {
		for r := range results {
			if r.Err != nil {
				continue
			}
			if latest, ok := r.Scans.Latest(); ok {
				logger.Debug("scan", slog.Any("volts", latest), slog.Int("backlog", int(r.Scans.Backlog)))
			}
		}
	}()

	err = session.Run(ctx, cfg.Acquisition.PollInterval(), results)
	close(results)
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down")
		return nil
	}
	return err
}
