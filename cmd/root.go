// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/mhistat/internal/config"
	"github.com/Thermoquad/mhistat/internal/logging"
)

var (
	configPath string

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "mhistat",
	Short: "MHI indoor unit frame analyzer and controller",
	Long: `mhistat - monitor, decode and control Mitsubishi Heavy Industries
air-conditioner indoor units over their 20-byte serial frame link.

Provides raw frame logging, error detection, interactive control, one-shot
status and set commands, capture replay, and a long-running bridge that
exposes the unit over HTTP RPC, Prometheus metrics and MQTT.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings are read from mhistat.yaml (current directory or /etc/mhistat),
then MHISTAT_* environment variables, then flags. For WebSocket
authentication, the password is read from the MHISTAT_PASSWORD environment
variable, or prompted interactively if not set.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath, cmd.Flags())
		if err != nil {
			return err
		}
		l, err := logging.InitLogger(c.Logging)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		cfg, logger = c, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./mhistat.yaml or /etc/mhistat/mhistat.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringP("port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntP("baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().String("username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
