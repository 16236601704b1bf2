// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mhiac

import "fmt"

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyChecksum AnomalyType = iota
	AnomalyStaleAuthority
	AnomalyUnknownMode
	AnomalyUndefinedFan
	AnomalyHeaderMismatch
	AnomalySetpointRange
	AnomalyReservedBytes
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyChecksum:
		return "checksum"
	case AnomalyStaleAuthority:
		return "stale_authority"
	case AnomalyUnknownMode:
		return "unknown_mode"
	case AnomalyUndefinedFan:
		return "undefined_fan"
	case AnomalyHeaderMismatch:
		return "header_mismatch"
	case AnomalySetpointRange:
		return "setpoint_range"
	case AnomalyReservedBytes:
		return "reserved_bytes"
	}
	return fmt.Sprintf("anomaly(%d)", int(a))
}

// Advisory reports anomalies that do not make the decoded fields suspect
func (a AnomalyType) Advisory() bool {
	return a == AnomalyStaleAuthority || a == AnomalyReservedBytes
}

// ValidationError represents a frame validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateOptions tunes ValidateFrame
type ValidateOptions struct {
	// ExpectedHeader, if set, flags frames carrying another header
	ExpectedHeader *[HeaderSize]byte
	// CheckReserved flags non-zero bytes in the reserved part of the data region
	CheckReserved bool
}

// ValidateFrame checks an uplink frame and returns every anomaly found.
// An empty slice means the frame is clean.
func ValidateFrame(f *Frame, opts ValidateOptions) []ValidationError {
	errors := []ValidationError{}

	if err := f.Verify(); err != nil {
		cerr := err.(*ChecksumError)
		errors = append(errors, ValidationError{
			Type:    AnomalyChecksum,
			Message: err.Error(),
			Details: map[string]interface{}{"expected": cerr.Expected, "got": cerr.Got},
		})
	}

	if opts.ExpectedHeader != nil && f.Header() != *opts.ExpectedHeader {
		errors = append(errors, ValidationError{
			Type:    AnomalyHeaderMismatch,
			Message: fmt.Sprintf("Unexpected header % X (want % X)", f.Header(), *opts.ExpectedHeader),
			Details: map[string]interface{}{"header": f.Header(), "expected": *opts.ExpectedHeader},
		})
	}

	if _, ok := lookupMode(f); !ok {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownMode,
			Message: fmt.Sprintf("Unknown mode bits 0x%02X (decoded as auto)", f.Field(ByteMode, modeMask)>>bitModeA),
			Details: map[string]interface{}{"bits": f.Field(ByteMode, modeMask) >> bitModeA},
		})
	}

	if _, ok := lookupFan(f); !ok {
		errors = append(errors, ValidationError{
			Type:    AnomalyUndefinedFan,
			Message: "Undefined fan bits 0b11 (decoded as medium)",
			Details: map[string]interface{}{"bits": f.Field(ByteFan, fanMask)},
		})
	}

	if sp := DecodeSetpoint(f); sp < MinSetpoint || sp > MaxSetpoint {
		errors = append(errors, ValidationError{
			Type:    AnomalySetpointRange,
			Message: fmt.Sprintf("Setpoint %.1f°C outside %.0f to %.0f", sp, MinSetpoint, MaxSetpoint),
			Details: map[string]interface{}{"value": sp},
		})
	}

	if StaleAuthority(f) {
		errors = append(errors, ValidationError{
			Type:    AnomalyStaleAuthority,
			Message: "Latest status not visible, changed by remote",
			Details: map[string]interface{}{"byte0": f.Byte(ByteMode), "byte1": f.Byte(ByteFan)},
		})
	}

	if opts.CheckReserved {
		for i := ReservedStart; i < DataSize; i++ {
			if b := f.Byte(i); b != 0 {
				errors = append(errors, ValidationError{
					Type:    AnomalyReservedBytes,
					Message: fmt.Sprintf("Reserved data byte %d is 0x%02X", i, b),
					Details: map[string]interface{}{"index": i, "value": b},
				})
			}
		}
	}

	return errors
}
