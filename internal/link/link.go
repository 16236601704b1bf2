// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package link runs the frame exchange between a Driver and an indoor unit
// over a byte-stream connection.
package link

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/mhistat/internal/capture"
	"github.com/Thermoquad/mhistat/internal/config"
	"github.com/Thermoquad/mhistat/internal/metrics"
	"github.com/Thermoquad/mhistat/internal/transport"
	"github.com/Thermoquad/mhistat/pkg/mhiac"
)

// EventKind classifies link events
type EventKind int

const (
	EventFrame EventKind = iota
	EventStreamError
	EventSync
	EventConnected
	EventDisconnected
)

// Event is delivered to the handler installed with WithEventHandler.
// Frame and Status are set for EventFrame, Err for EventStreamError and
// EventDisconnected, Skipped for EventSync and Info for EventConnected.
type Event struct {
	Kind    EventKind
	Frame   *mhiac.Frame
	Status  mhiac.Status
	Err     error
	Skipped uint64
	Info    string
}

// Dialer opens a new connection and describes it
type Dialer func(ctx context.Context) (transport.Connection, string, error)

type deadlineWriter interface {
	SetWriteDeadline(t time.Time) error
}

// Link owns the read loop for one driver
type Link struct {
	driver         *mhiac.Driver
	cfg            config.LinkConfig
	logger         *zap.Logger
	metrics        *metrics.AppMetrics
	capture        *capture.Writer
	onEvent        func(Event)
	expectedHeader *[mhiac.HeaderSize]byte

	lastFrame atomic.Int64 // unix nanoseconds of the most recent uplink frame
	now       func() time.Time
}

// Option configures a Link
type Option func(*Link)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *Link) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics records link counters
func WithMetrics(m *metrics.AppMetrics) Option {
	return func(l *Link) { l.metrics = m }
}

// WithCapture records every exchanged frame
func WithCapture(w *capture.Writer) Option {
	return func(l *Link) { l.capture = w }
}

// WithEventHandler receives link events on the read goroutine
func WithEventHandler(fn func(Event)) Option {
	return func(l *Link) { l.onEvent = fn }
}

// WithExpectedHeader rejects uplink frames carrying any other header
func WithExpectedHeader(h *[mhiac.HeaderSize]byte) Option {
	return func(l *Link) { l.expectedHeader = h }
}

// New creates a link for driver
func New(driver *mhiac.Driver, cfg config.LinkConfig, opts ...Option) *Link {
	l := &Link{
		driver: driver,
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.cfg.ReadBuffer <= 0 {
		l.cfg.ReadBuffer = 128
	}
	return l
}

// Connected reports whether an uplink frame arrived within the frame timeout.
// Suitable as the driver connectivity source.
func (l *Link) Connected() bool {
	last := l.lastFrame.Load()
	if last == 0 {
		return false
	}
	if l.cfg.FrameTimeout <= 0 {
		return true
	}
	return l.now().Sub(time.Unix(0, last)) < l.cfg.FrameTimeout
}

// LastFrame returns the time of the most recent uplink frame
func (l *Link) LastFrame() time.Time {
	last := l.lastFrame.Load()
	if last == 0 {
		return time.Time{}
	}
	return time.Unix(0, last)
}

func (l *Link) emit(ev Event) {
	if l.onEvent != nil {
		l.onEvent(ev)
	}
}

// Run reads frames from conn until ctx is cancelled or the connection fails.
// conn is closed on return.
func (l *Link) Run(ctx context.Context, conn transport.Connection) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	decoder := mhiac.NewStreamDecoder()
	if l.expectedHeader != nil {
		decoder.ExpectHeader(*l.expectedHeader)
	}

	buf := make([]byte, l.cfg.ReadBuffer)
	for {
		n, err := conn.Read(buf)
		l.metrics.ObserveBytes(n)
		for i := 0; i < n; i++ {
			if werr := l.handleByte(ctx, conn, decoder, buf[i]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("link read: %w", err)
		}
	}
}

func (l *Link) handleByte(ctx context.Context, conn transport.Connection, decoder *mhiac.StreamDecoder, b byte) error {
	wasSynced := decoder.Synced()
	frame, err := decoder.DecodeByte(b)
	if !wasSynced && decoder.Synced() {
		l.logger.Debug("stream synchronized", zap.Uint64("skipped", decoder.Skipped()))
		l.emit(Event{Kind: EventSync, Skipped: decoder.Skipped()})
	}

	if frame == nil {
		if err != nil {
			l.metrics.ObserveFrame(metrics.ResultStream, false)
			l.logger.Debug("stream error", zap.Error(err))
			l.emit(Event{Kind: EventStreamError, Err: err})
		}
		return nil
	}

	result := metrics.ResultOK
	if errors.Is(err, mhiac.ErrChecksumMismatch) {
		result = metrics.ResultChecksum
	}

	raw := frame.Bytes()
	status, rerr := l.driver.Receive(raw)
	if rerr != nil {
		// driver destroyed
		return rerr
	}
	l.lastFrame.Store(frame.Timestamp().UnixNano())
	l.metrics.ObserveFrame(result, status.Stale)
	l.metrics.SetConnected(true)
	if cerr := l.capture.Write(capture.Uplink, raw); cerr != nil {
		l.logger.Warn("capture failed", zap.Error(cerr))
	}
	l.emit(Event{Kind: EventFrame, Frame: frame, Status: status, Err: err})

	if !l.cfg.Reply {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.reply(ctx, conn)
}

func (l *Link) reply(ctx context.Context, conn transport.Connection) error {
	raw := l.driver.Transmit()
	if raw == nil {
		return mhiac.ErrDriverClosed
	}
	if dw, ok := conn.(deadlineWriter); ok && l.cfg.WriteTimeout > 0 {
		_ = dw.SetWriteDeadline(l.now().Add(l.cfg.WriteTimeout))
	}
	if _, err := conn.Write(raw); err != nil {
		// conn was closed by cancellation
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		return fmt.Errorf("link write: %w", err)
	}
	l.metrics.ObserveSent()
	if err := l.capture.Write(capture.Downlink, raw); err != nil {
		l.logger.Warn("capture failed", zap.Error(err))
	}
	return nil
}

// Supervise dials and runs the link until ctx is cancelled, reconnecting
// with exponential backoff between ReconnectMin and ReconnectMax. A session
// that delivered at least one frame resets the backoff.
func (l *Link) Supervise(ctx context.Context, dial Dialer) error {
	minBackoff, maxBackoff := l.cfg.ReconnectMin, l.cfg.ReconnectMax
	if minBackoff <= 0 {
		minBackoff = time.Second
	}
	if maxBackoff < minBackoff {
		maxBackoff = minBackoff
	}
	backoff := minBackoff

	for {
		conn, info, err := dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Warn("connect failed", zap.Error(err), zap.Duration("retry_in", backoff))
		} else {
			l.logger.Info("link connected", zap.String("endpoint", info))
			l.emit(Event{Kind: EventConnected, Info: info})

			before := l.lastFrame.Load()
			err = l.Run(ctx, conn)
			l.metrics.SetConnected(false)
			l.emit(Event{Kind: EventDisconnected, Err: err})

			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, mhiac.ErrDriverClosed) {
				return err
			}
			if l.lastFrame.Load() != before {
				backoff = minBackoff
			}
			l.logger.Warn("link lost", zap.Error(err), zap.Duration("retry_in", backoff))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
