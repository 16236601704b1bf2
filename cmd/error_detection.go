// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/mhistat/internal/transport"
	"github.com/Thermoquad/mhistat/pkg/mhiac"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
	checkReserved bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze corrupted frames and anomalies",
	Long: `Track frame errors, corrupted data, and anomalous values with statistics.

This command validates each frame and detects:
  - Checksum mismatches and header mismatches
  - Mode and fan bit patterns with no defined meaning
  - Setpoints outside 10 to 31°C
  - Frames where the unit reports a change made by the remote
  - Non-zero reserved data bytes (with --check-reserved)

By default, only errors are displayed. Use --show-all to display valid frames too.

Frames are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
	errorDetectionCmd.Flags().BoolVar(&checkReserved, "check-reserved", false, "Flag non-zero reserved data bytes")
}

// detectionMsg carries one decoder result to the text or TUI consumer
type detectionMsg struct {
	frame            *mhiac.Frame
	decodeErr        error
	validationErrors []mhiac.ValidationError
}

type syncMsg struct {
	invalidBytes uint64
}

type connClosedMsg struct {
	err error
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	opts := mhiac.ValidateOptions{CheckReserved: checkReserved}
	if opts.ExpectedHeader, err = cfg.MHIAC.UplinkHeader(); err != nil {
		return err
	}

	if useTUI {
		return runTUIMode(conn, connInfo, opts)
	}
	return runTextMode(conn, connInfo, opts)
}

// readDetections decodes conn until it fails and hands every result to send.
// Stream errors before the first aligned frame are only counted.
func readDetections(conn transport.Connection, opts mhiac.ValidateOptions, send func(interface{})) {
	decoder, err := newDecoder()
	if err != nil {
		send(connClosedMsg{err: err})
		return
	}
	synchronized := false
	buf := make([]byte, cfg.Link.ReadBuffer)

	for {
		n, err := conn.Read(buf)
		for i := 0; i < n; i++ {
			frame, decodeErr := decoder.DecodeByte(buf[i])

			if frame == nil {
				if decodeErr != nil && synchronized {
					send(detectionMsg{decodeErr: decodeErr})
				}
				continue
			}

			if !synchronized {
				synchronized = true
				send(syncMsg{invalidBytes: decoder.Skipped()})
			}
			send(detectionMsg{
				frame:            frame,
				validationErrors: mhiac.ValidateFrame(frame, opts),
			})
		}
		if err != nil {
			send(connClosedMsg{err: err})
			return
		}
	}
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> FRAME DROPPED <<<\n\n")
}

// printValidationErrors prints the anomalies found in one frame
func printValidationErrors(frame *mhiac.Frame, errs []mhiac.ValidationError) {
	timestamp := frame.Timestamp().Format("15:04:05.000")

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m hdr=% X\n", timestamp, frame.Header())
	if frame.Verify() == nil {
		fmt.Printf("  Checksum: \033[1;32mOK\033[0m\n")
	}

	for i, err := range errs {
		color := "\033[1;31m"
		if err.Type.Advisory() {
			color = "\033[1;33m"
		}
		fmt.Printf("  Issue %d: %s%s\033[0m\n", i+1, color, err.Message)

		switch err.Type {
		case mhiac.AnomalyChecksum:
			if expected, ok := err.Details["expected"].(uint16); ok {
				if got, ok := err.Details["got"].(uint16); ok {
					fmt.Printf("    Checksum: computed=0x%04X, trailer=0x%04X\n", expected, got)
				}
			}
		case mhiac.AnomalyStaleAuthority:
			if b0, ok := err.Details["byte0"].(byte); ok {
				if b1, ok := err.Details["byte1"].(byte); ok {
					fmt.Printf("    data[0]=%08b data[1]=%08b\n", b0, b1)
				}
			}
		case mhiac.AnomalyReservedBytes:
			if idx, ok := err.Details["index"].(int); ok {
				fmt.Printf("    data[%d]\n", idx)
			}
		}
	}

	fmt.Printf("  %s\n", mhiac.FormatStatus(mhiac.DecodeStatus(frame)))
	fmt.Printf("  >>> FRAME FLAGGED <<<\n\n")
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(conn transport.Connection, connInfo string, opts mhiac.ValidateOptions) error {
	m := initialModel(connInfo, statsInterval, showAll)
	p := tea.NewProgram(m)

	go readDetections(conn, opts, func(msg interface{}) { p.Send(msg) })

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs error detection in plain text mode
func runTextMode(conn transport.Connection, connInfo string, opts mhiac.ValidateOptions) error {
	fmt.Printf("mhistat - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := mhiac.NewStatistics()
	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	msgs := make(chan interface{}, 64)
	go readDetections(conn, opts, func(msg interface{}) { msgs <- msg })

	for {
		select {
		case raw := <-msgs:
			switch msg := raw.(type) {
			case syncMsg:
				if msg.invalidBytes > 0 {
					fmt.Printf("[SYNC] Synchronized after skipping %d bytes\n\n", msg.invalidBytes)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}

			case detectionMsg:
				if msg.frame == nil {
					stats.Update(nil, msg.decodeErr, nil)
					printDecodeError(msg.decodeErr)
					continue
				}
				stats.Update(msg.frame, nil, msg.validationErrors)
				if len(msg.validationErrors) > 0 {
					printValidationErrors(msg.frame, msg.validationErrors)
				} else if showAll {
					fmt.Print(mhiac.FormatFrame(msg.frame))
				}

			case connClosedMsg:
				fmt.Println()
				fmt.Print(stats.String())
				if msg.err == nil || errors.Is(msg.err, io.EOF) || errors.Is(msg.err, transport.ErrConnectionClosed) {
					return nil
				}
				logger.Error("connection failed", zap.Error(msg.err))
				os.Exit(2)
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
