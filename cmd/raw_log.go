// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/mhistat/internal/capture"
	"github.com/Thermoquad/mhistat/internal/transport"
	"github.com/Thermoquad/mhistat/pkg/mhiac"
)

var (
	rawLogRecord string
	rawLogDiff   bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display the raw frame log in human-readable format",
	Long: `Continuously decode and display MHI frames as they arrive.

Each frame is shown with its timestamp, header, data and checksum bytes,
followed by the decoded indoor unit status. With --diff only the data
bytes that changed since the previous frame are printed after the first.

With --record every frame is also appended to a CBOR capture file that
the replay command can read back.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().StringVar(&rawLogRecord, "record", "", "Write a CBOR capture of received frames to this file")
	rawLogCmd.Flags().BoolVar(&rawLogDiff, "diff", false, "Print data byte changes instead of full frames")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()
	logConnected(connInfo)

	var rec *capture.Writer
	path := rawLogRecord
	if path == "" {
		path = cfg.Capture.File
	}
	if path != "" {
		rec, err = capture.Create(path)
		if err != nil {
			return err
		}
		defer rec.Close()
	}

	decoder, err := newDecoder()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "mhistat - Raw Frame Log\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	var prev *mhiac.Frame
	buf := make([]byte, cfg.Link.ReadBuffer)
	for {
		n, err := conn.Read(buf)
		for i := 0; i < n; i++ {
			frame, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				fmt.Fprintf(out, "[ERROR] %v\n", decodeErr)
			}
			if frame == nil {
				continue
			}
			if werr := rec.Write(capture.Uplink, frame.Bytes()); werr != nil {
				logger.Warn("capture failed", zap.Error(werr))
			}
			printRawFrame(out, prev, frame, rawLogDiff)
			prev = frame
		}
		if err != nil {
			if errors.Is(err, transport.ErrConnectionClosed) || errors.Is(err, io.EOF) {
				logger.Info("connection closed")
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
	}
}

func printRawFrame(out io.Writer, prev, frame *mhiac.Frame, diff bool) {
	if !diff || prev == nil {
		fmt.Fprint(out, mhiac.FormatFrame(frame))
		return
	}
	changes := mhiac.FormatDiff(prev, frame)
	if changes == "no change" {
		return
	}
	fmt.Fprintf(out, "[%s] %s\n", frame.Timestamp().Format("15:04:05.000"), changes)
}
