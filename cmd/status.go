// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/mhistat/internal/link"
	"github.com/Thermoquad/mhistat/pkg/mhiac"
)

var (
	statusOutput  string
	statusTimeout int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the indoor unit parameters from one frame",
	Long: `Wait for one checksum-valid frame from the indoor unit and print the
decoded parameters. Nothing is sent to the unit.

Output formats:
  text - aligned key/value listing (default)
  json - the MHI-AC.GetParams JSON object
  yaml - the same fields as YAML

Exit codes:
  0 - Status printed
  1 - Timeout reached without receiving a valid frame
  2 - Connection error`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "text", "Output format (text, json, yaml)")
	statusCmd.Flags().IntVar(&statusTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

// writeParams renders p in the requested format
func writeParams(w io.Writer, p mhiac.Params, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		rows := []struct {
			label string
			value string
		}{
			{"Connected", fmt.Sprintf("%t", p.Connected)},
			{"Power", p.Power.String()},
			{"Mode", p.Mode.String()},
			{"Setpoint", fmt.Sprintf("%.1f°C", p.Setpoint)},
			{"Fan", p.Fan.String()},
			{"Vane vertical", p.VaneVert.String()},
			{"Vane horizontal", p.VaneHoriz.String()},
			{"Operating", fmt.Sprintf("%t", p.Operating)},
			{"Room", fmt.Sprintf("%.2f°C", p.Room)},
			{"Checksum valid", fmt.Sprintf("%t", p.Valid)},
			{"Changed by remote", fmt.Sprintf("%t", p.Stale)},
		}
		for _, r := range rows {
			if _, err := fmt.Fprintf(w, "%-18s %s\n", r.label+":", r.value); err != nil {
				return err
			}
		}
		if len(p.Unsupported) > 0 {
			_, err := fmt.Fprintf(w, "%-18s %s\n", "Not reported:", strings.Join(p.Unsupported, ", "))
			return err
		}
		return nil
	}
	return fmt.Errorf("unknown output format %q", format)
}

func runStatus(cmd *cobra.Command, args []string) error {
	switch statusOutput {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", statusOutput)
	}

	var l *link.Link
	driver, err := newDriver(mhiac.WithConnectivity(func() bool { return l.Connected() }))
	if err != nil {
		return err
	}
	defer driver.Destroy()

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	logConnected(connInfo)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(statusTimeout)*time.Second)
	defer cancel()

	received := false
	opts, err := linkOptions(link.WithEventHandler(func(ev link.Event) {
		if ev.Kind == link.EventFrame && ev.Err == nil {
			received = true
			cancel()
		}
	}))
	if err != nil {
		conn.Close()
		return err
	}

	linkCfg := cfg.Link
	linkCfg.Reply = false
	l = link.New(driver, linkCfg, opts...)
	err = l.Run(ctx, conn)

	if !received {
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", statusTimeout)
		os.Exit(1)
	}

	return writeParams(cmd.OutOrStdout(), driver.GetParams(), statusOutput)
}
