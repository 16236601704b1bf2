// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/mhistat/internal/api"
	"github.com/Thermoquad/mhistat/internal/capture"
	"github.com/Thermoquad/mhistat/internal/httpserver"
	"github.com/Thermoquad/mhistat/internal/link"
	"github.com/Thermoquad/mhistat/internal/metrics"
	"github.com/Thermoquad/mhistat/internal/mqttbridge"
	"github.com/Thermoquad/mhistat/pkg/mhiac"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the controller daemon with HTTP RPC, metrics and MQTT",
	Long: `Run mhistat as a long-lived controller for one indoor unit.

The link answers every uplink frame with the current downlink frame and
reconnects with exponential backoff when the connection drops.

Served over HTTP (http.addr):
  /healthz                 liveness
  /readyz                  200 while frames arrive within link.frame_timeout
  /metrics                 Prometheus metrics (metrics.enable)
  /rpc/MHI-AC.GetParams    decoded unit state
  /rpc/MHI-AC.SetParams    partial parameter update (mhiac.rpc_enable)

With mqtt.enable the state is also published to <mqtt.topic>/state and
updates are accepted on <mqtt.topic>/set.

SIGINT or SIGTERM shuts everything down.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Named("serve")
	if err := resolvePassword(); err != nil {
		return err
	}

	// 1) Metrics
	var (
		appMetrics     *metrics.AppMetrics
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enable {
		reg := metrics.NewRegistry()
		appMetrics = metrics.NewAppMetrics(reg)
		metricsHandler = metrics.Handler(reg)
	}

	// 2) Driver and optional MQTT bridge
	var (
		l      *link.Link
		bridge *mqttbridge.Bridge
	)
	driverOpts := []mhiac.Option{mhiac.WithConnectivity(func() bool { return l.Connected() })}
	if cfg.MQTT.Enable {
		driverOpts = append(driverOpts, mhiac.WithObserver(func(s mhiac.Status) {
			bridge.Notify(s)
		}))
	}
	driver, err := newDriver(driverOpts...)
	if err != nil {
		return err
	}
	defer driver.Destroy()

	if cfg.MQTT.Enable {
		bridge = mqttbridge.New(driver, cfg.MQTT, logger.Named("mqtt"), appMetrics)
	}

	// 3) Link
	var rec *capture.Writer
	if cfg.Capture.File != "" {
		if rec, err = capture.Create(cfg.Capture.File); err != nil {
			return err
		}
		defer rec.Close()
		log.Info("recording frames", zap.String("file", cfg.Capture.File))
	}
	opts, err := linkOptions(link.WithMetrics(appMetrics), link.WithCapture(rec))
	if err != nil {
		return err
	}
	l = link.New(driver, cfg.Link, opts...)

	// 4) HTTP
	limiter := api.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.Burst)
	rpc := api.NewRPCHandler(driver, cfg.MHIAC.RPCEnable, limiter, appMetrics, logger.Named("rpc"))
	httpSrv := httpserver.New(cfg.HTTP, cfg.Metrics.Path, metricsHandler, l.Connected, rpc.Register)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	fatal := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.Start(); err != nil {
			fatal <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := l.Supervise(ctx, dialer); err != nil && !errors.Is(err, context.Canceled) {
			fatal <- err
		}
	}()

	if bridge != nil {
		// paho keeps retrying in the background when the broker is down
		if err := bridge.Connect(); err != nil {
			log.Warn("mqtt connect failed", zap.Error(err))
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = bridge.Run(ctx)
		}()
	}

	// 5) Wait for a signal or a component failure
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-fatal:
		log.Error("component failed", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := httpSrv.Shutdown(shutdownCtx); serr != nil {
		log.Warn("http shutdown", zap.Error(serr))
	}
	if bridge != nil {
		bridge.Close()
	}
	wg.Wait()
	return err
}
