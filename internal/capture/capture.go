// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records exchanged frames as a stream of CBOR records
// so a session can be replayed and validated offline.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/mhistat/pkg/mhiac"
)

// Direction of a recorded frame
type Direction uint8

const (
	Uplink   Direction = 0 // indoor unit -> controller
	Downlink Direction = 1 // controller -> indoor unit
)

func (d Direction) String() string {
	switch d {
	case Uplink:
		return "rx"
	case Downlink:
		return "tx"
	default:
		return fmt.Sprintf("dir(%d)", uint8(d))
	}
}

// Record is one captured frame
type Record struct {
	Time      int64     `cbor:"1,keyasint"` // unix nanoseconds
	Direction Direction `cbor:"2,keyasint"`
	Frame     []byte    `cbor:"3,keyasint"`
}

// Timestamp returns Time as a time.Time
func (r Record) Timestamp() time.Time {
	return time.Unix(0, r.Time)
}

// ParseFrame returns the recorded bytes as a frame stamped with the capture time
func (r Record) ParseFrame() (*mhiac.Frame, error) {
	return mhiac.FrameFromBytesAt(r.Frame, r.Timestamp())
}

// Writer appends records to an underlying stream. Safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	enc *cbor.Encoder
	now func() time.Time
}

// NewWriter wraps w
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, enc: cbor.NewEncoder(w), now: time.Now}
}

// Create truncates or creates path and returns a Writer on it
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create capture: %w", err)
	}
	return NewWriter(f), nil
}

// Write records raw in the given direction
func (w *Writer) Write(dir Direction, raw []byte) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	rec := Record{Time: w.now().UnixNano(), Direction: dir, Frame: append([]byte(nil), raw...)}
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("write capture record: %w", err)
	}
	return nil
}

// Close closes the underlying stream if it is closable
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if c, ok := w.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Reader decodes records written by Writer
type Reader struct {
	dec *cbor.Decoder
	c   io.Closer
}

// NewReader wraps r
func NewReader(r io.Reader) *Reader {
	rd := &Reader{dec: cbor.NewDecoder(r)}
	if c, ok := r.(io.Closer); ok {
		rd.c = c
	}
	return rd
}

// Open opens a capture file for reading
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	return NewReader(f), nil
}

// Next returns the next record, or io.EOF at a clean end of stream
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("read capture record: %w", err)
	}
	return rec, nil
}

// Close closes the underlying stream if it is closable
func (r *Reader) Close() error {
	if r.c != nil {
		return r.c.Close()
	}
	return nil
}
