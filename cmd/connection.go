// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Thermoquad/mhistat/internal/link"
	"github.com/Thermoquad/mhistat/internal/transport"
	"github.com/Thermoquad/mhistat/pkg/mhiac"
)

// OpenConnection opens either a serial or WebSocket connection from the loaded config
func OpenConnection() (transport.Connection, string, error) {
	return transport.Open(cfg.Serial, cfg.WebSocket)
}

// resolvePassword prompts for the WebSocket password once so that
// supervised reconnects reuse it instead of prompting again
func resolvePassword() error {
	if cfg.WebSocket.URL == "" || cfg.WebSocket.Username == "" {
		return nil
	}
	pw, err := transport.GetPassword()
	if err != nil {
		return err
	}
	return os.Setenv(transport.PasswordEnv, pw)
}

// dialer adapts OpenConnection for link supervision
func dialer(ctx context.Context) (transport.Connection, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	return OpenConnection()
}

// newDecoder returns a stream decoder honouring mhiac.expected_header
func newDecoder() (*mhiac.StreamDecoder, error) {
	d := mhiac.NewStreamDecoder()
	h, err := cfg.MHIAC.UplinkHeader()
	if err != nil {
		return nil, err
	}
	if h != nil {
		d.ExpectHeader(*h)
	}
	return d, nil
}

// newDriver builds a driver with the configured downlink header
func newDriver(opts ...mhiac.Option) (*mhiac.Driver, error) {
	if !cfg.MHIAC.Enable {
		return nil, fmt.Errorf("mhiac.enable is false")
	}
	header, err := cfg.MHIAC.DownlinkHeader()
	if err != nil {
		return nil, err
	}
	base := []mhiac.Option{mhiac.WithHeader(header), mhiac.WithLogger(logger.Named("mhiac"))}
	return mhiac.New(append(base, opts...)...), nil
}

// linkOptions returns the link options shared by every command that runs one
func linkOptions(extra ...link.Option) ([]link.Option, error) {
	h, err := cfg.MHIAC.UplinkHeader()
	if err != nil {
		return nil, err
	}
	opts := []link.Option{link.WithLogger(logger.Named("link"))}
	if h != nil {
		opts = append(opts, link.WithExpectedHeader(h))
	}
	return append(opts, extra...), nil
}

func logConnected(info string) {
	logger.Info("connection opened", zap.String("endpoint", info))
}
