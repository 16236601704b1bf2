// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/mhistat/internal/transport"
)

var (
	wsProbeDuration int
	wsProbePing     int
)

var wsProbeCmd = &cobra.Command{
	Use:   "ws_probe",
	Short: "Test raw WebSocket connection stability",
	Long: `Test the WebSocket connection to a frame bridge without sending any frames.

This command connects and listens, logging every chunk of data received and
counting complete MHI frames found in it. With --ping, a WebSocket ping is
sent at the given interval to verify the bridge answers. Useful for
debugging connection stability issues.

Exit codes:
  0 - Probe completed normally
  1 - Probe failed
  2 - Connection error`,
	RunE: runWsProbe,
}

func init() {
	rootCmd.AddCommand(wsProbeCmd)
	wsProbeCmd.Flags().IntVar(&wsProbeDuration, "duration", 30, "Probe duration in seconds")
	wsProbeCmd.Flags().IntVar(&wsProbePing, "ping", 0, "Ping interval in seconds (0 disables)")
}

func runWsProbe(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("WebSocket Connection Stability Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %d seconds\n\n", wsProbeDuration)

	ws, isWS := conn.(*transport.WebSocketConnection)
	if wsProbePing > 0 && !isWS {
		fmt.Printf("(--ping ignored: not a WebSocket connection)\n")
	}

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, cfg.Link.ReadBuffer)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()

	var pingC <-chan time.Time
	if wsProbePing > 0 && isWS {
		ticker := time.NewTicker(time.Duration(wsProbePing) * time.Second)
		defer ticker.Stop()
		pingC = ticker.C
	}

	start := time.Now()
	endTime := start.Add(time.Duration(wsProbeDuration) * time.Second)
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	bytesReceived := 0
	chunksReceived := 0
	framesDecoded := 0
	pingFailures := 0

	results := func(result string) {
		fmt.Printf("\n--- Probe Results ---\n")
		fmt.Printf("Duration: %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("Chunks received: %d\n", chunksReceived)
		fmt.Printf("Bytes received: %d\n", bytesReceived)
		fmt.Printf("Frames decoded: %d (skipped %d bytes)\n", framesDecoded, decoder.Skipped())
		if pingC != nil {
			fmt.Printf("Ping failures: %d\n", pingFailures)
		}
		fmt.Printf("Result: %s\n", result)
	}

	fmt.Printf("Listening for data...\n\n")

	for time.Now().Before(endTime) {
		select {
		case data := <-readChan:
			bytesReceived += len(data)
			chunksReceived++
			for _, b := range data {
				if frame, derr := decoder.DecodeByte(b); frame != nil && derr == nil {
					framesDecoded++
				}
			}
			fmt.Printf("[%s] Received %d bytes: %x\n",
				time.Now().Format("15:04:05.000"), len(data), data)

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n",
				time.Now().Format("15:04:05.000"), err)
			results("FAILED (connection error)")
			os.Exit(1)

		case <-pingC:
			if err := ws.Ping(5 * time.Second); err != nil {
				pingFailures++
				fmt.Printf("[%s] Ping failed: %v\n", time.Now().Format("15:04:05.000"), err)
			}

		case <-heartbeat.C:
			remaining := time.Until(endTime).Seconds()
			fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), remaining)
		}
	}

	if pingFailures > 0 {
		results("FAILED (ping)")
		os.Exit(1)
	}
	results("PASSED (connection stable)")
	return nil
}
