// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/mhistat/pkg/mhiac"
)

var frameTestTimeout int

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test the connection by waiting for a valid MHI frame",
	Long: `Wait for a valid MHI frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for one
complete, checksum-valid 20-byte frame. Bytes received before the stream
is aligned are counted and skipped.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for testing the wiring to an indoor unit or a WebSocket bridge.`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	decoder, err := newDecoder()
	if err != nil {
		return err
	}

	fmt.Printf("mhistat - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)
	fmt.Printf("Waiting for valid MHI frame...\n\n")

	frameChan := make(chan *mhiac.Frame, 1)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, cfg.Link.ReadBuffer)
		for {
			n, err := conn.Read(buf)
			for i := 0; i < n; i++ {
				frame, decodeErr := decoder.DecodeByte(buf[i])
				if frame != nil && decodeErr == nil {
					frameChan <- frame
					return
				}
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()

	select {
	case frame := <-frameChan:
		if skipped := decoder.Skipped(); skipped > 0 {
			fmt.Printf("(skipped %d bytes before sync)\n", skipped)
		}
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Header: % X\n", frame.Header())
		fmt.Printf("  Checksum: 0x%04X\n", frame.Trailer())
		fmt.Printf("  Status: %s\n", mhiac.FormatStatus(mhiac.DecodeStatus(frame)))
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(frameTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", frameTestTimeout)
		os.Exit(1)
	}

	return nil
}
