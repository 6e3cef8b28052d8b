// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofax/t31modem/internal/atcmd"
	"github.com/gofax/t31modem/internal/audioio"
	"github.com/gofax/t31modem/internal/config"
	"github.com/gofax/t31modem/internal/dteio"
	"github.com/gofax/t31modem/internal/logging"
	"github.com/gofax/t31modem/internal/maintenance"
	"github.com/gofax/t31modem/internal/metrics"
	"github.com/gofax/t31modem/internal/session"
	"github.com/gofax/t31modem/internal/t38"
	"github.com/gofax/t31modem/internal/telemetry"
	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
)

// NewCommand builds the t31modemd root command.
func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "t31modemd",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE:              runRoot,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	fmt.Printf("t31modemd - %s (%s)\n", cmd.Annotations["version"], cmd.Annotations["commit"])

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logging.Setup(cfg.LogLevel)

	scheduler, err := setupScheduler()
	if err != nil {
		return err
	}

	cleanup, err := telemetry.Setup(&cfg)
	if err != nil {
		return fmt.Errorf("failed to setup tracing: %w", err)
	}
	defer func() {
		if err := cleanup(ctx); err != nil {
			log.Error("failed to shut down tracer", "error", err)
		}
	}()

	m := metrics.New()
	registry := maintenance.NewRegistry()
	if _, err := maintenance.StartSweeper(scheduler, registry, m); err != nil {
		return err
	}
	scheduler.Start()

	stopMetrics := startMetricsServer(&cfg, log)

	rig, err := buildRig(&cfg, log, m)
	if err != nil {
		return fmt.Errorf("failed to build session rig: %w", err)
	}
	registry.Add("call-0", rig.sess)
	m.ActiveSessions.Inc()

	errCh := rig.start()

	return waitForShutdown(scheduler, rig, stopMetrics, errCh)
}

// setupScheduler creates the maintenance job scheduler.
func setupScheduler() (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return scheduler, nil
}

// startMetricsServer starts the Prometheus HTTP endpoint in the
// background when metrics are enabled. The returned function is a no-op
// in every case: it does not stop the server, which runs until the
// process exits.
func startMetricsServer(cfg *config.Config, log *slog.Logger) func() {
	if !cfg.Metrics.Enabled {
		return func() {}
	}
	go func() {
		if err := metrics.CreateMetricsServer(cfg); err != nil {
			log.Error("metrics server exited", "error", err)
		}
	}()
	return func() {}
}

// commandSink logs AT command bytes the session routes to the (out of
// scope) interpreter; a real deployment wires this to an AT parser.
type commandSink struct {
	log *slog.Logger
}

func (c commandSink) Command(b []byte) {
	c.log.Debug("unhandled AT command bytes", "bytes", fmt.Sprintf("%q", b))
}

// logModemControl relays CTS/hangup side effects to the log; a real DCE
// would toggle the corresponding UART control line.
func logModemControl(log *slog.Logger) atcmd.ModemControlHandler {
	return func(ev atcmd.ControlEvent) {
		log.Debug("modem control event", "event", ev.String())
	}
}

// loggingSink wraps an atcmd.Sink, logging each response code on its way
// to the DTE.
type loggingSink struct {
	atcmd.Sink
	log *slog.Logger
}

func (l loggingSink) PutResponseCode(code atcmd.ResponseCode) {
	l.log.Debug("-> DTE response", "code", code.String())
	l.Sink.PutResponseCode(code)
}

// rig bundles one session together with the transports and background
// pumps that drive it, so shutdown can tear them all down in order.
type rig struct {
	sess     *session.Session
	dte      dteio.Transport
	dtePump  *dteio.Pump
	audio    *audioio.Pump
	audioSrc audioio.Source
	audioDst audioio.Sink
	t38      *t38.UDPHandler
	log      *slog.Logger
}

func buildRig(cfg *config.Config, log *slog.Logger, m *metrics.Metrics) (*rig, error) {
	dteTransport, err := openDTE(cfg)
	if err != nil {
		return nil, err
	}

	sink := loggingSink{Sink: dteio.NewSink(dteTransport), log: log}

	sess := session.Init(sink, logModemControl(log), nil, session.Options{
		Logger:            log,
		Metrics:           m,
		TransmitOnIdle:    cfg.Defaults.TransmitOnIdle,
		TEPMode:           cfg.Defaults.TEPMode,
		AdaptiveReceive:   cfg.Defaults.AdaptiveReceive,
		MidReceiveTimeout: cfg.Timeouts.MidReceiveTimeout,
		DTEDataTimeout:    cfg.Timeouts.DTEDataTimeout,
		AnswerTimeout:     cfg.Timeouts.AnswerTimeout,
	})
	sess.SetCommandSink(commandSink{log: log})

	traced := telemetry.NewTracedSession(context.Background(), sess)

	r := &rig{sess: sess, dte: dteTransport, log: log}
	r.dtePump = dteio.NewPump(dteTransport, traced)

	if cfg.T38.Enabled {
		handler, err := t38.DialUDP(cfg.T38.ListenAddr, cfg.T38.PeerAddr)
		if err != nil {
			return nil, err
		}
		sess.EnableT38(handler)
		sess.SetT38Config(cfg.T38.WithoutPacing)
		r.t38 = handler
		return r, nil
	}

	src, dst, err := openAudio(cfg)
	if err != nil {
		return nil, err
	}
	r.audioSrc, r.audioDst = src, dst
	r.audio = audioio.NewPump(traced, src, dst)
	return r, nil
}

func openDTE(cfg *config.Config) (dteio.Transport, error) {
	switch cfg.DTE.Transport {
	case config.DTETransportSerial:
		return dteio.OpenSerial(cfg.DTE.Address, cfg.DTE.BaudRate)
	case config.DTETransportTCP:
		return dteio.OpenTCP(cfg.DTE.Address)
	default:
		return dteio.OpenStdio(), nil
	}
}

func openAudio(cfg *config.Config) (audioio.Source, audioio.Sink, error) {
	switch cfg.Audio.Transport {
	case config.AudioTransportFile:
		src, err := audioio.OpenFileSource(cfg.Audio.Address)
		if err != nil {
			return nil, nil, err
		}
		dst, err := audioio.OpenFileSink(cfg.Audio.Address + ".out")
		if err != nil {
			return nil, nil, err
		}
		return src, dst, nil
	default:
		t, err := audioio.OpenUDP("0.0.0.0:0", cfg.Audio.Address)
		if err != nil {
			return nil, nil, err
		}
		return t, t, nil
	}
}

// start launches every background pump this rig owns and returns a
// channel that receives the first pump error (if any).
func (r *rig) start() <-chan error {
	errCh := make(chan error, 3)
	go func() {
		if err := r.dtePump.Run(); err != nil {
			errCh <- fmt.Errorf("dte pump stopped: %w", err)
		}
	}()
	if r.audio != nil {
		go func() {
			if err := r.audio.Run(); err != nil {
				errCh <- fmt.Errorf("audio pump stopped: %w", err)
			}
		}()
	}
	if r.t38 != nil {
		go func() {
			if err := r.t38.Serve(r.sess); err != nil {
				errCh <- fmt.Errorf("t38 ingress stopped: %w", err)
			}
		}()
		go r.runT38Clock()
	}
	return errCh
}

// runT38Clock ticks the session's T.38 timed-step pump at a steady rate
// when there is no audio pump to drive the session's sample clock.
func (r *rig) runT38Clock() {
	const tick = 20 * time.Millisecond
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	samplesPerTick := int64(tick / (time.Second / 8000))
	for range ticker.C {
		r.sess.T38SendTimeout(samplesPerTick)
	}
}

func (r *rig) shutdown() {
	if r.dtePump != nil {
		r.dtePump.Stop()
	}
	if r.audio != nil {
		r.audio.Stop()
	}
	if r.dte != nil {
		_ = r.dte.Close()
	}
	if r.audioSrc != nil {
		_ = r.audioSrc.Close()
	}
	if r.audioDst != nil {
		_ = r.audioDst.Close()
	}
	if r.t38 != nil {
		_ = r.t38.Close()
	}
	r.sess.Release()
}

// waitForShutdown blocks until SIGINT/SIGTERM/SIGQUIT/SIGHUP arrives or one
// of the rig's background pumps dies on its own, then stops the scheduler
// and, concurrently, the rig's pumps and transports (followed by
// stopMetrics), waiting up to 10s for both. It returns the pump error that
// triggered shutdown, if any.
func waitForShutdown(scheduler gocron.Scheduler, r *rig, stopMetrics func(), errCh <-chan error) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	var pumpErr error
	select {
	case sig := <-sigCh:
		r.log.Error("shutting down due to signal", "signal", sig)
	case pumpErr = <-errCh:
		r.log.Error("shutting down due to pump failure", "error", pumpErr)
	}

	wg := new(sync.WaitGroup)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := scheduler.Shutdown(); err != nil {
			r.log.Error("failed to stop scheduler", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.shutdown()
		stopMetrics()
	}()

	const timeout = 10 * time.Second
	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()
	select {
	case <-done:
		r.log.Info("all components stopped, shutting down gracefully")
	case <-time.After(timeout):
		r.log.Error("shutdown timed out, forcing exit")
	}
	return pumpErr
}
