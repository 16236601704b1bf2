// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/mhistat/internal/capture"
	"github.com/Thermoquad/mhistat/pkg/mhiac"
)

var (
	replayValidate      bool
	replayCheckReserved bool
	replayDirection     string
	replayDiff          bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Decode a recorded capture file",
	Long: `Decode the frames stored in a capture file written by raw_log --record
or by the link capture setting.

Uplink (rx) frames are decoded as indoor unit status; downlink (tx) frames
are printed as hex. With --validate, every uplink frame is checked for
anomalies and a statistics summary is printed at the end.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayValidate, "validate", false, "Validate uplink frames and print statistics")
	replayCmd.Flags().BoolVar(&replayCheckReserved, "check-reserved", false, "Flag non-zero reserved bytes when validating")
	replayCmd.Flags().StringVar(&replayDirection, "direction", "all", "Records to show (rx, tx, all)")
	replayCmd.Flags().BoolVar(&replayDiff, "diff", false, "Only print byte changes between consecutive uplink frames")
}

func runReplay(cmd *cobra.Command, args []string) error {
	switch replayDirection {
	case "rx", "tx", "all":
	default:
		return fmt.Errorf("unknown direction %q", replayDirection)
	}

	r, err := capture.Open(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	opts := mhiac.ValidateOptions{CheckReserved: replayCheckReserved}
	if opts.ExpectedHeader, err = cfg.MHIAC.UplinkHeader(); err != nil {
		return err
	}
	return replayRecords(cmd.OutOrStdout(), r, opts)
}

func replayRecords(out io.Writer, r *capture.Reader, opts mhiac.ValidateOptions) error {
	stats := mhiac.NewStatistics()
	var prev *mhiac.Frame
	records := 0

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", records+1, err)
		}
		records++

		if replayDirection != "all" && rec.Direction.String() != replayDirection {
			continue
		}

		frame, err := rec.ParseFrame()
		if err != nil {
			fmt.Fprintf(out, "record %d: %v\n", records, err)
			if replayValidate && rec.Direction == capture.Uplink {
				stats.Update(nil, err, nil)
			}
			continue
		}

		if rec.Direction == capture.Downlink {
			fmt.Fprintf(out, "[%s] tx % X\n", rec.Timestamp().Format("15:04:05.000"), frame.Bytes())
			continue
		}

		printRawFrame(out, prev, frame, replayDiff)
		prev = frame

		if replayValidate {
			errs := mhiac.ValidateFrame(frame, opts)
			stats.Update(frame, nil, errs)
			for _, e := range errs {
				fmt.Fprintf(out, "  %s: %s\n", mhiac.FormatAnomaly(e.Type), e.Message)
			}
		}
	}

	fmt.Fprintf(out, "\n%d record(s) read\n", records)
	if replayValidate {
		fmt.Fprint(out, stats.String())
	}
	return nil
}
