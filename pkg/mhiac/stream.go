// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mhiac

import (
	"errors"
	"fmt"
)

// ErrHeaderMismatch is returned when a frame does not carry the expected header
var ErrHeaderMismatch = errors.New("unexpected frame header")

// StreamDecoder splits a byte stream into frames.
//
// The protocol has no start byte, so alignment is found by sliding a
// FrameSize window over the stream until the checksum (and the expected
// header, if one is set) matches. Once synchronized every FrameSize bytes
// form a frame; after MaxConsecutiveErrors bad frames in a row it goes
// back to hunting.
type StreamDecoder struct {
	window       []byte
	synced       bool
	errorsInRow  int
	skipped      uint64
	expectHeader *[HeaderSize]byte
}

// NewStreamDecoder creates a decoder in the hunting state
func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{
		window: make([]byte, 0, FrameSize),
	}
}

// ExpectHeader makes the decoder reject frames with any other header
func (s *StreamDecoder) ExpectHeader(h [HeaderSize]byte) {
	s.expectHeader = &h
}

// Reset drops buffered bytes and returns to hunting
func (s *StreamDecoder) Reset() {
	s.window = s.window[:0]
	s.synced = false
	s.errorsInRow = 0
}

// Synced reports whether frame alignment has been found
func (s *StreamDecoder) Synced() bool {
	return s.synced
}

// Skipped returns the number of bytes discarded while hunting
func (s *StreamDecoder) Skipped() uint64 {
	return s.skipped
}

// DecodeByte feeds one byte. It returns a frame once FrameSize aligned
// bytes are collected. A synchronized frame with a bad checksum is
// returned together with a *ChecksumError so the caller can still record
// it as an invalid snapshot.
func (s *StreamDecoder) DecodeByte(b byte) (*Frame, error) {
	s.window = append(s.window, b)
	if len(s.window) < FrameSize {
		return nil, nil
	}

	f, _ := FrameFromBytes(s.window)
	s.window = s.window[:0]

	if !s.synced {
		if s.acceptable(f) && f.Verify() == nil && !idle(f) {
			s.synced = true
			s.errorsInRow = 0
			return f, nil
		}
		// Slide by one byte
		raw := f.Bytes()
		s.window = append(s.window, raw[1:]...)
		s.skipped++
		return nil, nil
	}

	if !s.acceptable(f) {
		s.fail()
		return nil, fmt.Errorf("%w: % X", ErrHeaderMismatch, f.Header())
	}
	if err := f.Verify(); err != nil {
		s.fail()
		return f, err
	}
	s.errorsInRow = 0
	return f, nil
}

func (s *StreamDecoder) fail() {
	s.errorsInRow++
	if s.errorsInRow >= MaxConsecutiveErrors {
		s.synced = false
		s.errorsInRow = 0
	}
}

func (s *StreamDecoder) acceptable(f *Frame) bool {
	return s.expectHeader == nil || f.Header() == *s.expectHeader
}

// idle reports an all-zero frame, which passes the additive checksum
// trivially and is what an undriven line reads as.
func idle(f *Frame) bool {
	for _, b := range f.raw {
		if b != 0 {
			return false
		}
	}
	return true
}
