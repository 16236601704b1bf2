// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mhiac

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Statistics tracks frame statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames     uint64
	ValidFrames     uint64
	ChecksumErrors  uint64
	StreamErrors    uint64
	Anomalies       uint64
	Advisories      uint64
	StaleReports    uint64
	UnknownModes    uint64
	UndefinedFans   uint64
	HeaderMismatch  uint64
	SetpointRange   uint64
	ReservedNonZero uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records one decoded frame or one stream decode error
func (s *Statistics) Update(frame *Frame, decodeErr error, validationErrors []ValidationError) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		if errors.Is(decodeErr, ErrChecksumMismatch) {
			s.ChecksumErrors++
		} else {
			s.StreamErrors++
		}
		return
	}

	clean := true
	for _, v := range validationErrors {
		switch v.Type {
		case AnomalyChecksum:
			s.ChecksumErrors++
		case AnomalyStaleAuthority:
			s.StaleReports++
		case AnomalyUnknownMode:
			s.UnknownModes++
		case AnomalyUndefinedFan:
			s.UndefinedFans++
		case AnomalyHeaderMismatch:
			s.HeaderMismatch++
		case AnomalySetpointRange:
			s.SetpointRange++
		case AnomalyReservedBytes:
			s.ReservedNonZero++
		}
		if v.Type.Advisory() {
			s.Advisories++
			continue
		}
		if v.Type != AnomalyChecksum {
			s.Anomalies++
		}
		clean = false
	}
	if clean {
		s.ValidFrames++
	}
}

// Errors returns the number of frames counted as errors
func (s *Statistics) Errors() uint64 {
	return s.ChecksumErrors + s.StreamErrors + s.Anomalies
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

func percent(n, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100.0 / float64(total)
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var b strings.Builder
	fmt.Fprintf(&b, "=== Statistics (%.0f seconds) ===\n", time.Since(s.StartTime).Seconds())
	fmt.Fprintf(&b, "Total Frames:    %8d\n", s.TotalFrames)
	fmt.Fprintf(&b, "Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, percent(s.ValidFrames, s.TotalFrames))

	if s.ChecksumErrors > 0 {
		fmt.Fprintf(&b, "Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, percent(s.ChecksumErrors, s.TotalFrames))
	}
	if s.StreamErrors > 0 {
		fmt.Fprintf(&b, "Stream Errors:   %8d (%.1f%%)\n", s.StreamErrors, percent(s.StreamErrors, s.TotalFrames))
	}
	if s.Anomalies > 0 {
		fmt.Fprintf(&b, "Anomalies:       %8d (%.1f%%)\n", s.Anomalies, percent(s.Anomalies, s.TotalFrames))
		if s.UnknownModes > 0 {
			fmt.Fprintf(&b, "  Unknown Mode:     %5d\n", s.UnknownModes)
		}
		if s.UndefinedFans > 0 {
			fmt.Fprintf(&b, "  Undefined Fan:    %5d\n", s.UndefinedFans)
		}
		if s.HeaderMismatch > 0 {
			fmt.Fprintf(&b, "  Header Mismatch:  %5d\n", s.HeaderMismatch)
		}
		if s.SetpointRange > 0 {
			fmt.Fprintf(&b, "  Setpoint Range:   %5d\n", s.SetpointRange)
		}
	}
	if s.Advisories > 0 {
		fmt.Fprintf(&b, "Advisories:      %8d\n", s.Advisories)
		if s.StaleReports > 0 {
			fmt.Fprintf(&b, "  Changed by Remote:%5d\n", s.StaleReports)
		}
		if s.ReservedNonZero > 0 {
			fmt.Fprintf(&b, "  Reserved Bytes:   %5d\n", s.ReservedNonZero)
		}
	}

	fmt.Fprintf(&b, "Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	fmt.Fprintf(&b, "Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	b.WriteString("================================\n")
	return b.String()
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
