// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mhiac

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrFrameLength is returned when a raw buffer is not exactly FrameSize bytes
var ErrFrameLength = errors.New("invalid frame length")

// Frame is one fixed-size protocol frame: header, data region and
// checksum trailer. The zero value is an all-zero frame.
type Frame struct {
	raw       [FrameSize]byte
	timestamp time.Time
}

// NewFrame creates a zero frame carrying the given header
func NewFrame(header [HeaderSize]byte) *Frame {
	f := &Frame{timestamp: time.Now()}
	copy(f.raw[:HeaderSize], header[:])
	return f
}

// FrameFromBytes copies a raw buffer into a new frame
func FrameFromBytes(b []byte) (*Frame, error) {
	return FrameFromBytesAt(b, time.Now())
}

// FrameFromBytesAt is FrameFromBytes with an explicit receive time
func FrameFromBytesAt(b []byte, ts time.Time) (*Frame, error) {
	if len(b) != FrameSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrFrameLength, len(b), FrameSize)
	}
	f := &Frame{timestamp: ts}
	copy(f.raw[:], b)
	return f, nil
}

// Bytes returns a copy of the raw frame
func (f *Frame) Bytes() []byte {
	out := make([]byte, FrameSize)
	copy(out, f.raw[:])
	return out
}

// Header returns the three header bytes
func (f *Frame) Header() [HeaderSize]byte {
	var h [HeaderSize]byte
	copy(h[:], f.raw[:HeaderSize])
	return h
}

// SetHeader replaces the header bytes
func (f *Frame) SetHeader(h [HeaderSize]byte) {
	copy(f.raw[:HeaderSize], h[:])
}

// Data returns a copy of the data region
func (f *Frame) Data() [DataSize]byte {
	var d [DataSize]byte
	copy(d[:], f.raw[HeaderSize:HeaderSize+DataSize])
	return d
}

// TrailerOrder is the byte order of the checksum trailer. The indoor unit
// controller stores it low byte first; some gateways on the same bus send
// the high byte first.
var TrailerOrder binary.ByteOrder = binary.LittleEndian

// Trailer returns the checksum carried in the frame trailer
func (f *Frame) Trailer() uint16 {
	return TrailerOrder.Uint16(f.raw[HeaderSize+DataSize:])
}

func (f *Frame) setTrailer(sum uint16) {
	TrailerOrder.PutUint16(f.raw[HeaderSize+DataSize:], sum)
}

// Timestamp returns when the frame was created or received
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// Byte returns data byte i
func (f *Frame) Byte(i int) byte {
	return f.raw[HeaderSize+i]
}

// SetByte overwrites data byte i
func (f *Frame) SetByte(i int, v byte) {
	f.raw[HeaderSize+i] = v
}

// Bit reports whether bit n of data byte i is set
func (f *Frame) Bit(i, n int) bool {
	return f.raw[HeaderSize+i]&(1<<n) != 0
}

// SetBit sets bit n of data byte i
func (f *Frame) SetBit(i, n int) {
	f.raw[HeaderSize+i] |= 1 << n
}

// ClearBit clears bit n of data byte i
func (f *Frame) ClearBit(i, n int) {
	f.raw[HeaderSize+i] &^= 1 << n
}

// Field returns the bits of data byte i selected by mask
func (f *Frame) Field(i int, mask byte) byte {
	return f.raw[HeaderSize+i] & mask
}

// SetField replaces the bits of data byte i selected by mask with value.
// Bits outside mask are left as they were.
func (f *Frame) SetField(i int, mask, value byte) {
	f.raw[HeaderSize+i] = f.raw[HeaderSize+i]&^mask | value&mask
}

// Clone returns an independent copy of the frame
func (f *Frame) Clone() *Frame {
	c := *f
	return &c
}
