// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mhiac

import (
	"math"
	"testing"
)

func frameWith(bytes map[int]byte) *Frame {
	f := &Frame{}
	for i, b := range bytes {
		f.SetByte(i, b)
	}
	return f
}

func TestDecodePower(t *testing.T) {
	tests := []struct {
		name  string
		byte0 byte
		want  Power
	}{
		{"off", 0x00, PowerOff},
		{"on", 0x01, PowerOn},
		{"marker only", 0x02, PowerOff},
		{"on with other bits", 0xFF, PowerOn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := frameWith(map[int]byte{ByteMode: tt.byte0})
			if got := DecodePower(f); got != tt.want {
				t.Errorf("DecodePower() = %v, want %v", got, tt.want)
			}
			if got := DecodeOperating(f); got != (tt.want == PowerOn) {
				t.Errorf("DecodeOperating() = %v, want %v", got, tt.want == PowerOn)
			}
		})
	}
}

func TestDecodeMode(t *testing.T) {
	tests := []struct {
		name  string
		byte0 byte
		want  Mode
	}{
		{"auto 000", 0x00, ModeAuto},
		{"cool bit3", 0x08, ModeCool},
		{"dry bit2", 0x04, ModeDry},
		{"fan bits2,3", 0x0C, ModeFan},
		{"heat bit4", 0x10, ModeHeat},
		{"undefined bits2,4", 0x14, ModeAuto},
		{"undefined bits3,4", 0x18, ModeAuto},
		{"undefined bits2,3,4", 0x1C, ModeAuto},
		{"cool with other bits", 0xE3 | 0x08, ModeCool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := frameWith(map[int]byte{ByteMode: tt.byte0})
			if got := DecodeMode(f); got != tt.want {
				t.Errorf("DecodeMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeFan(t *testing.T) {
	tests := []struct {
		name  string
		byte1 byte
		byte6 byte
		want  Fan
	}{
		{"low", 0x00, 0x00, FanLow},
		{"medium", 0x01, 0x00, FanMedium},
		{"high", 0x02, 0x00, FanHigh},
		{"undefined combination", 0x03, 0x00, FanMedium},
		{"encode turbo bit is not decoded", 0x02, 1 << TurboEncodeBit, FanHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := frameWith(map[int]byte{ByteFan: tt.byte1, ByteFanExtra: tt.byte6})
			if got := DecodeFan(f); got != tt.want {
				t.Errorf("DecodeFan() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeFanTurboOverridesSpeedBits(t *testing.T) {
	for bits := byte(0); bits < 4; bits++ {
		f := frameWith(map[int]byte{ByteFan: bits, ByteFanExtra: 1 << TurboDecodeBit})
		if got := DecodeFan(f); got != FanTurbo {
			t.Errorf("byte1 bits=%02b with turbo: DecodeFan() = %v, want turbo", bits, got)
		}
	}
}

func TestDecodeVaneHoriz(t *testing.T) {
	tests := []struct {
		name  string
		byte0 byte
		byte1 byte
		want  VaneHoriz
	}{
		{"pos1", 0x80, 0x00, VaneHoriz1},
		{"pos2", 0x80, 0x10, VaneHoriz2},
		{"pos3", 0x80, 0x20, VaneHoriz3},
		{"pos4", 0x80, 0x30, VaneHoriz4},
		{"swing wins", 0x40, 0x10, VaneHorizSwing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := frameWith(map[int]byte{ByteMode: tt.byte0, ByteFan: tt.byte1})
			if got := DecodeVaneHoriz(f); got != tt.want {
				t.Errorf("DecodeVaneHoriz() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeVaneVertIsUnsupported(t *testing.T) {
	f := frameWith(map[int]byte{ByteMode: 0xFF, ByteFan: 0xFF})
	v, support := DecodeVaneVert(f)
	if v != VaneVertAuto || support != Unsupported {
		t.Errorf("DecodeVaneVert() = %v, %v, want auto, unsupported", v, support)
	}
}

func TestStaleAuthority(t *testing.T) {
	tests := []struct {
		byte0, byte1 byte
		want         bool
	}{
		{0x00, 0x00, true},
		{0x7F, 0x7F, true},
		{0x80, 0x00, false},
		{0x00, 0x80, false},
		{0x80, 0x80, false},
	}

	for _, tt := range tests {
		f := frameWith(map[int]byte{ByteMode: tt.byte0, ByteFan: tt.byte1})
		if got := StaleAuthority(f); got != tt.want {
			t.Errorf("StaleAuthority(%02X, %02X) = %v, want %v", tt.byte0, tt.byte1, got, tt.want)
		}
	}
}

func TestDecodeRoomTemperature(t *testing.T) {
	tests := []struct {
		byte3 byte
		want  float64
	}{
		{0xB9, -1.0}, // marker masked: (0x39 - 61) / 4
		{0x3D, 0.0},
		{0x00, -15.25},
		{0x7F, 16.5},
		{0xFF, 16.5},
	}

	for _, tt := range tests {
		f := frameWith(map[int]byte{ByteTemp: tt.byte3})
		if got := DecodeRoomTemperature(f); got != tt.want {
			t.Errorf("byte3=0x%02X: DecodeRoomTemperature() = %v, want %v", tt.byte3, got, tt.want)
		}
	}
}

func TestSetpointRoundTrip(t *testing.T) {
	for tenths := 100; tenths <= 310; tenths++ {
		s := float64(tenths) / 10
		f := &Frame{}
		if !EncodeSetpoint(f, s) {
			t.Fatalf("EncodeSetpoint(%v) = false", s)
		}
		want := math.Round(s*2) / 2
		if got := DecodeSetpoint(f); got != want {
			t.Errorf("DecodeSetpoint(EncodeSetpoint(%v)) = %v, want %v", s, got, want)
		}
	}
}

func TestDecodeSetpointMasksMarkers(t *testing.T) {
	tests := []struct {
		value byte
		want  float64
	}{
		{0x30, 24.0},
		{0xB0, 24.0},
		{0x70, 24.0},
		{0xF0, 24.0},
		{0x2D | 0x80, 22.5},
	}
	for _, tt := range tests {
		if got := DecodeSetpoint(frameWith(map[int]byte{ByteSetpoint: tt.value})); got != tt.want {
			t.Errorf("DecodeSetpoint(0x%02X) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestTemperatureRoundTrip(t *testing.T) {
	for step := -305; step <= 965; step++ {
		temp := float64(step) / 20
		got := TemperatureFromByte(TemperatureByte(temp))
		if math.Abs(got-temp) > 0.25 {
			t.Errorf("TemperatureFromByte(TemperatureByte(%v)) = %v, off by more than 0.25", temp, got)
		}
	}
}

func TestDecodeStatus(t *testing.T) {
	f := NewFrame([HeaderSize]byte{0x6D, 0x80, 0x04})
	f.SetByte(ByteMode, 0x80|0x10|0x01) // reported, heat, on
	f.SetByte(ByteFan, 0x80|0x20|0x02)  // marker, pos3, high
	f.SetByte(ByteSetpoint, 44)
	f.SetByte(ByteTemp, 61+40)
	f.Seal()

	s := DecodeStatus(f)
	if s.Power != PowerOn || s.Mode != ModeHeat || s.Fan != FanHigh || s.VaneHoriz != VaneHoriz3 {
		t.Errorf("DecodeStatus() = %+v", s)
	}
	if s.Setpoint != 22.0 {
		t.Errorf("Setpoint = %v, want 22", s.Setpoint)
	}
	if s.RoomTemperature != 10.0 {
		t.Errorf("RoomTemperature = %v, want 10", s.RoomTemperature)
	}
	if !s.Valid || s.Stale {
		t.Errorf("Valid = %v, Stale = %v, want true, false", s.Valid, s.Stale)
	}
	if s.ISeeSupport != Unsupported || s.ConnectedSupport != Unsupported || s.VaneVertSupport != Unsupported {
		t.Errorf("support flags = %v %v %v", s.ISeeSupport, s.ConnectedSupport, s.VaneVertSupport)
	}

	f.SetByte(ByteSetpoint, 45)
	if DecodeStatus(f).Valid {
		t.Error("Valid = true after data changed without resealing")
	}
}
