// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mhiac

import (
	"errors"
	"fmt"
)

// ErrChecksumMismatch is matched by every *ChecksumError
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ChecksumError records the trailer carried by a frame and the sum
// computed over its header and data.
type ChecksumError struct {
	Expected uint16
	Got      uint16
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%04X, got 0x%04X", e.Expected, e.Got)
}

// Is lets errors.Is match ErrChecksumMismatch
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// Checksum returns the sum of all bytes modulo 2^16.
// This is the protocol's own additive check and not a CRC.
func Checksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}

// ComputeChecksum sums the header and data region of the frame
func (f *Frame) ComputeChecksum() uint16 {
	return Checksum(f.raw[:HeaderSize+DataSize])
}

// Seal writes the computed checksum into the trailer
func (f *Frame) Seal() {
	f.setTrailer(f.ComputeChecksum())
}

// Verify checks the trailer against the computed checksum
func (f *Frame) Verify() error {
	expected := f.ComputeChecksum()
	if got := f.Trailer(); got != expected {
		return &ChecksumError{Expected: expected, Got: got}
	}
	return nil
}
