// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mhiac

import (
	"fmt"
	"strings"
)

// FormatFrame formats an uplink frame as a hex dump plus decoded status
func FormatFrame(f *Frame) string {
	timestamp := f.Timestamp().Format("15:04:05.000")
	data := f.Data()

	check := "OK"
	if err := f.Verify(); err != nil {
		check = "BAD (computed " + fmt.Sprintf("0x%04X", f.ComputeChecksum()) + ")"
	}

	result := fmt.Sprintf("[%s] hdr=% X data=% X sum=0x%04X %s\n",
		timestamp, f.Header(), data[:], f.Trailer(), check)
	result += "  " + FormatStatus(DecodeStatus(f)) + "\n"
	return result
}

// FormatStatus returns a one-line summary of a status snapshot
func FormatStatus(s Status) string {
	parts := []string{
		"power=" + s.Power.String(),
		"mode=" + s.Mode.String(),
		fmt.Sprintf("setpoint=%.1f°C", s.Setpoint),
		"fan=" + s.Fan.String(),
		"vane_horiz=" + s.VaneHoriz.String(),
		fmt.Sprintf("room=%.2f°C", s.RoomTemperature),
	}
	if s.VaneVertSupport == Supported {
		parts = append(parts, "vane_vert="+s.VaneVert.String())
	}
	if s.Stale {
		parts = append(parts, "(changed by remote)")
	}
	return strings.Join(parts, " ")
}

// FormatDiff lists the data bytes that differ between two frames
func FormatDiff(a, b *Frame) string {
	var lines []string
	for i := 0; i < DataSize; i++ {
		x, y := a.Byte(i), b.Byte(i)
		if x == y {
			continue
		}
		lines = append(lines, fmt.Sprintf("data[%d]: %08b -> %08b (xor %08b)", i, x, y, x^y))
	}
	if len(lines) == 0 {
		return "no change"
	}
	return strings.Join(lines, "\n")
}

// FormatAnomaly names an anomaly type for display
func FormatAnomaly(a AnomalyType) string {
	return strings.ToUpper(a.String())
}
