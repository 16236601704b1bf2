// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/mhistat/internal/link"
	"github.com/Thermoquad/mhistat/pkg/mhiac"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for controlling an MHI indoor unit",
	Long: `Control an MHI indoor unit via an interactive terminal UI.

mhistat takes the place of the wired controller: every frame received from
the unit is answered with a downlink frame carrying the settings chosen in
the UI.

Features:
  - Live decoded status (power, mode, setpoint, fan, vanes, room temperature)
  - Parameter editing with arrow keys, typed setpoint and external temperature
  - Statistics tracking and event logging
  - Automatic reconnection on connection loss

Up/down selects a parameter, left/right changes it, enter types a value for
setpoint and external temperature.

Supports both serial and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

// controller owns the driver and the supervised link behind the TUI
type controller struct {
	driver *mhiac.Driver
	link   *link.Link
	cancel context.CancelFunc
	done   chan error
}

func newController(send func(tea.Msg)) (*controller, error) {
	c := &controller{done: make(chan error, 1)}

	var err error
	c.driver, err = newDriver(mhiac.WithConnectivity(func() bool {
		return c.link != nil && c.link.Connected()
	}))
	if err != nil {
		return nil, err
	}

	linkCfg := cfg.Link
	linkCfg.Reply = true
	opts, err := linkOptions(link.WithEventHandler(func(ev link.Event) {
		send(controlEventMsg{ev: ev})
	}))
	if err != nil {
		return nil, err
	}
	c.link = link.New(c.driver, linkCfg, opts...)
	return c, nil
}

func (c *controller) start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go func() {
		c.done <- c.link.Supervise(ctx, dialer)
	}()
}

func (c *controller) stop() {
	if c.cancel != nil {
		c.cancel()
		if err := <-c.done; err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("link stopped", zap.Error(err))
		}
	}
	c.driver.Destroy()
}

func runControl(cmd *cobra.Command, args []string) error {
	if err := resolvePassword(); err != nil {
		return err
	}
	// The TUI owns the terminal; keep log lines out of it
	logger = zap.NewNop()

	// Events only flow once the link starts, after p is assigned
	var p *tea.Program
	c, err := newController(func(msg tea.Msg) { p.Send(msg) })
	if err != nil {
		return err
	}
	p = tea.NewProgram(initialControlModel(c.driver), tea.WithAltScreen())
	c.start()
	defer c.stop()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
