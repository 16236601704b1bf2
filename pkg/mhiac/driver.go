// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mhiac

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrDriverClosed is returned by Receive on a nil or destroyed driver
var ErrDriverClosed = errors.New("driver not available")

// Option configures a Driver
type Option func(*Driver)

// WithLogger sets the logger used for the stale authority advisory and
// checksum failures.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithHeader sets the header carried by the downlink frame
func WithHeader(header [HeaderSize]byte) Option {
	return func(d *Driver) {
		d.downlink.SetHeader(header)
	}
}

// WithObserver registers a callback run after every received frame.
// It is called without the driver lock held.
func WithObserver(fn func(Status)) Option {
	return func(d *Driver) {
		d.observer = fn
	}
}

// WithConnectivity supplies the connected flag reported by GetParams.
// Without it the flag is always true and listed as unsupported.
func WithConnectivity(fn func() bool) Option {
	return func(d *Driver) {
		d.connected = fn
	}
}

// Driver owns one uplink (status) frame and one downlink (command) frame.
//
// Setters mutate the downlink frame and getters decode the uplink frame.
// Every method is safe for concurrent use and safe on a nil or destroyed
// Driver: setters then return false and getters return their defaults.
type Driver struct {
	mu        sync.Mutex
	uplink    *Frame
	downlink  *Frame
	received  bool
	stale     bool
	destroyed bool

	logger    *zap.Logger
	observer  func(Status)
	connected func() bool
}

// New creates a driver with zeroed frames
func New(opts ...Option) *Driver {
	d := &Driver{
		uplink:   &Frame{},
		downlink: &Frame{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Destroy releases both frames. Later calls fail safely.
func (d *Driver) Destroy() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed = true
	d.uplink = nil
	d.downlink = nil
}

// Alive reports whether the driver exists and has not been destroyed
func (d *Driver) Alive() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.destroyed
}

// encode runs fn on the downlink frame under the lock
func (d *Driver) encode(fn func(*Frame) bool) bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return false
	}
	return fn(d.downlink)
}

// SetPower requests the unit power state
func (d *Driver) SetPower(p Power) bool {
	return d.encode(func(f *Frame) bool { return EncodePower(f, p) })
}

// SetMode requests an operating mode
func (d *Driver) SetMode(m Mode) bool {
	return d.encode(func(f *Frame) bool { return EncodeMode(f, m) })
}

// SetSetpoint requests a setpoint in °C, in 0.5 steps
func (d *Driver) SetSetpoint(setpoint float64) bool {
	return d.encode(func(f *Frame) bool { return EncodeSetpoint(f, setpoint) })
}

// SetExternalTemperature overrides the room temperature seen by the unit
func (d *Driver) SetExternalTemperature(temp float64) bool {
	return d.encode(func(f *Frame) bool { return EncodeExternalTemperature(f, temp) })
}

// SetFan requests a fan speed; turbo uses its own flag
func (d *Driver) SetFan(fan Fan) bool {
	return d.encode(func(f *Frame) bool { return EncodeFan(f, fan) })
}

// SetVaneVert requests a vertical vane position or swing
func (d *Driver) SetVaneVert(v VaneVert) bool {
	return d.encode(func(f *Frame) bool { return EncodeVaneVert(f, v) })
}

// SetVaneHoriz requests a horizontal vane position or swing
func (d *Driver) SetVaneHoriz(v VaneHoriz) bool {
	return d.encode(func(f *Frame) bool { return EncodeVaneHoriz(f, v) })
}

// Receive replaces the uplink frame with raw and returns its decoded
// status. A checksum mismatch is not an error; it clears Status.Valid.
func (d *Driver) Receive(raw []byte) (Status, error) {
	if d == nil {
		return Status{}, ErrDriverClosed
	}
	f, err := FrameFromBytes(raw)
	if err != nil {
		return Status{}, err
	}

	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return Status{}, ErrDriverClosed
	}
	d.uplink = f
	d.received = true
	status := d.annotate(DecodeStatus(f))
	staleChanged := status.Stale != d.stale
	d.stale = status.Stale
	logger, observer := d.logger, d.observer
	d.mu.Unlock()

	if !status.Valid {
		logger.Debug("uplink checksum mismatch",
			zap.Uint16("trailer", f.Trailer()),
			zap.Uint16("computed", f.ComputeChecksum()))
	}
	if staleChanged {
		if status.Stale {
			logger.Warn("latest status not visible, changed by remote")
		} else {
			logger.Debug("status visible again")
		}
	}
	if observer != nil {
		observer(status)
	}
	return status, nil
}

// Transmit returns the downlink frame with a freshly computed trailer.
// It returns nil on a nil or destroyed driver.
func (d *Driver) Transmit() []byte {
	f := d.Downlink()
	if f == nil {
		return nil
	}
	f.Seal()
	return f.Bytes()
}

// Downlink returns a copy of the command frame
func (d *Driver) Downlink() *Frame {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return nil
	}
	return d.downlink.Clone()
}

// Uplink returns a copy of the last received status frame
func (d *Driver) Uplink() *Frame {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return nil
	}
	return d.uplink.Clone()
}

// Status decodes the uplink frame. ok is false on a nil or destroyed driver.
func (d *Driver) Status() (status Status, ok bool) {
	f := d.Uplink()
	if f == nil {
		return Status{}, false
	}
	return d.annotate(DecodeStatus(f)), true
}

// annotate fills in the support flags that depend on driver options
func (d *Driver) annotate(s Status) Status {
	if d.connected != nil {
		s.ConnectedSupport = Supported
	}
	return s
}

// Getters. On a nil or destroyed driver they return off, auto, low,
// position 1 and 0.0.

// Power returns the reported power state
func (d *Driver) Power() Power {
	if s, ok := d.Status(); ok {
		return s.Power
	}
	return PowerOff
}

// Mode returns the reported operating mode
func (d *Driver) Mode() Mode {
	if s, ok := d.Status(); ok {
		return s.Mode
	}
	return ModeAuto
}

// Setpoint returns the reported setpoint in °C
func (d *Driver) Setpoint() float64 {
	if s, ok := d.Status(); ok {
		return s.Setpoint
	}
	return 0.0
}

// Fan returns the reported fan speed
func (d *Driver) Fan() Fan {
	if s, ok := d.Status(); ok {
		return s.Fan
	}
	return FanLow
}

// VaneVert returns the vertical vane position, which the uplink does not report
func (d *Driver) VaneVert() (VaneVert, Support) {
	if s, ok := d.Status(); ok {
		return s.VaneVert, s.VaneVertSupport
	}
	return VaneVertAuto, Unsupported
}

// VaneHoriz returns the reported horizontal vane position
func (d *Driver) VaneHoriz() VaneHoriz {
	if s, ok := d.Status(); ok {
		return s.VaneHoriz
	}
	return VaneHoriz1
}

// Operating reports whether the compressor cycle is running
func (d *Driver) Operating() bool {
	if s, ok := d.Status(); ok {
		return s.Operating
	}
	return false
}

// RoomTemperature returns the reported room temperature in °C
func (d *Driver) RoomTemperature() float64 {
	if s, ok := d.Status(); ok {
		return s.RoomTemperature
	}
	return 0.0
}

// Connected is true unless a connectivity source says otherwise
func (d *Driver) Connected() bool {
	if !d.Alive() {
		return false
	}
	if d.connected != nil {
		return d.connected()
	}
	return true
}

// ISee reports the i-see sensor flag, which the frame does not carry
func (d *Driver) ISee() (bool, Support) {
	return false, Unsupported
}
