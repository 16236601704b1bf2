// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Thermoquad/mhistat/internal/link"
	"github.com/Thermoquad/mhistat/pkg/mhiac"
)

var (
	setExchanges int
	setTimeout   int
)

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Apply parameter changes over the next frame exchanges",
	Long: `Apply one or more parameter changes to an MHI indoor unit.

The requested fields are encoded into the downlink frame, which is sent in
answer to the next --exchanges uplink frames. The status reported by the
unit after the last exchange is printed.

Enumerations accept either their name or their integer code:
  --power     off, on
  --mode      auto, cool, dry, fan, heat
  --fan       low, medium, high, turbo
  --vane-vert auto, leftest, left, center, right, rightest, leftright, swing
  --vane-horiz 1, 2, 3, 4, swing

Examples:
  mhistat set --port /dev/ttyUSB0 --power on --mode cool --setpoint 22.5
  mhistat set --url ws://bridge.local/mhi --fan turbo

Exit codes:
  0 - Every field accepted and sent
  1 - A field was rejected or no frame arrived before timeout
  2 - Connection error`,
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
	addParamFlags(setCmd.Flags())
	setCmd.Flags().IntVar(&setExchanges, "exchanges", 3, "Number of uplink frames to answer")
	setCmd.Flags().IntVar(&setTimeout, "timeout", 10, "Timeout in seconds")
}

func addParamFlags(flags *pflag.FlagSet) {
	flags.String("power", "", "Power state")
	flags.String("mode", "", "Operating mode")
	flags.Float64("setpoint", 0, "Setpoint in °C (10.0 to 31.0, 0.5 steps)")
	flags.String("fan", "", "Fan speed")
	flags.String("vane-vert", "", "Vertical vane position")
	flags.String("vane-horiz", "", "Horizontal vane position")
	flags.Float64("ext-temp", 0, "External room temperature in °C (-15.25 to 48.25)")
}

// parseUpdate builds a ParamsUpdate from the flags that were given
func parseUpdate(flags *pflag.FlagSet) (mhiac.ParamsUpdate, error) {
	var u mhiac.ParamsUpdate

	if flags.Changed("power") {
		s, _ := flags.GetString("power")
		v, err := mhiac.ParsePower(s)
		if err != nil {
			return u, err
		}
		u.Power = &v
	}
	if flags.Changed("mode") {
		s, _ := flags.GetString("mode")
		v, err := mhiac.ParseMode(s)
		if err != nil {
			return u, err
		}
		u.Mode = &v
	}
	if flags.Changed("setpoint") {
		v, _ := flags.GetFloat64("setpoint")
		u.Setpoint = &v
	}
	if flags.Changed("fan") {
		s, _ := flags.GetString("fan")
		v, err := mhiac.ParseFan(s)
		if err != nil {
			return u, err
		}
		u.Fan = &v
	}
	if flags.Changed("vane-vert") {
		s, _ := flags.GetString("vane-vert")
		v, err := mhiac.ParseVaneVert(s)
		if err != nil {
			return u, err
		}
		u.VaneVert = &v
	}
	if flags.Changed("vane-horiz") {
		s, _ := flags.GetString("vane-horiz")
		v, err := mhiac.ParseVaneHoriz(s)
		if err != nil {
			return u, err
		}
		u.VaneHoriz = &v
	}
	if flags.Changed("ext-temp") {
		v, _ := flags.GetFloat64("ext-temp")
		u.ExtTemp = &v
	}
	if u.Empty() {
		return u, errors.New("no parameter given")
	}
	return u, nil
}

func printSetResult(res mhiac.SetResult) {
	fields := make([]string, 0, len(res.Results))
	for field := range res.Results {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		result := "ok"
		if !res.Results[field] {
			result = "REJECTED"
		}
		fmt.Printf("  %-10s %s\n", field, result)
	}
}

func runSet(cmd *cobra.Command, args []string) error {
	update, err := parseUpdate(cmd.Flags())
	if err != nil {
		return err
	}

	driver, err := newDriver()
	if err != nil {
		return err
	}
	defer driver.Destroy()

	res := driver.SetParams(update)
	fmt.Printf("mhistat - Set\n")
	printSetResult(res)
	if !res.Success {
		os.Exit(1)
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	logConnected(connInfo)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(setTimeout)*time.Second)
	defer cancel()

	// The frame after the last exchange carries the unit's response
	answered := 0
	opts, err := linkOptions(link.WithEventHandler(func(ev link.Event) {
		if ev.Kind != link.EventFrame || ev.Err != nil {
			return
		}
		if answered >= setExchanges {
			cancel()
			return
		}
		answered++
	}))
	if err != nil {
		conn.Close()
		return err
	}

	linkCfg := cfg.Link
	linkCfg.Reply = true
	l := link.New(driver, linkCfg, opts...)
	err = l.Run(ctx, conn)

	switch {
	case answered == 0:
		fmt.Fprintf(os.Stderr, "TIMEOUT: no frame received within %d seconds\n", setTimeout)
		os.Exit(1)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	default:
		fmt.Fprintf(os.Stderr, "Link error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Sent %d frame(s) via %s\n", answered, connInfo)
	if status, ok := driver.Status(); ok {
		fmt.Printf("  Status: %s\n", mhiac.FormatStatus(status))
	}
	return nil
}
