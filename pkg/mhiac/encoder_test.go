// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mhiac

import (
	"math"
	"math/rand"
	"testing"
)

// randomFrame fills every byte of a frame from rng
func randomFrame(rng *rand.Rand) *Frame {
	raw := make([]byte, FrameSize)
	rng.Read(raw)
	f, _ := FrameFromBytes(raw)
	return f
}

// ============================================================================
// Scenarios
// ============================================================================

func TestEncodePowerOnCoolSetpoint24(t *testing.T) {
	f := &Frame{}
	if !EncodePower(f, PowerOn) || !EncodeMode(f, ModeCool) || !EncodeSetpoint(f, 24.0) {
		t.Fatal("setter returned false")
	}

	if got := f.Byte(ByteMode); got != 0b00101011 {
		t.Errorf("data[0] = %08b, want %08b", got, 0b00101011)
	}
	if got := f.Byte(ByteSetpoint); got != 0xB0 {
		t.Errorf("data[2] = 0x%02X, want 0xB0", got)
	}
}

func TestEncodeMode(t *testing.T) {
	tests := []struct {
		mode Mode
		want byte // bits 2,3,4 of byte 0
	}{
		{ModeAuto, 0b000 << 2},
		{ModeCool, 0b010 << 2},
		{ModeDry, 0b001 << 2},
		{ModeFan, 0b011 << 2},
		{ModeHeat, 0b100 << 2},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			f := &Frame{}
			f.SetByte(ByteMode, 0x1C) // all mode bits set beforehand
			if !EncodeMode(f, tt.mode) {
				t.Fatal("EncodeMode() = false")
			}
			if got := f.Field(ByteMode, modeMask); got != tt.want {
				t.Errorf("mode bits = %08b, want %08b", got, tt.want)
			}
			if !f.Bit(ByteMode, bitModeChanged) {
				t.Error("mode marker (bit 5) not set")
			}
		})
	}
}

func TestEncodeFan(t *testing.T) {
	tests := []struct {
		fan       Fan
		wantByte1 byte // bits 0,1,3
		wantTurbo bool
	}{
		{FanLow, 0b1000, false},
		{FanMedium, 0b1001, false},
		{FanHigh, 0b1010, false},
		{FanTurbo, 0b0000, true},
	}

	for _, tt := range tests {
		t.Run(tt.fan.String(), func(t *testing.T) {
			f := &Frame{}
			if !EncodeFan(f, tt.fan) {
				t.Fatal("EncodeFan() = false")
			}
			if got := f.Byte(ByteFan) & 0x0B; got != tt.wantByte1 {
				t.Errorf("data[1] fan bits = %04b, want %04b", got, tt.wantByte1)
			}
			if got := f.Bit(ByteFanExtra, TurboEncodeBit); got != tt.wantTurbo {
				t.Errorf("turbo bit = %v, want %v", got, tt.wantTurbo)
			}
		})
	}
}

func TestEncodeFanTurboKeepsSpeedBits(t *testing.T) {
	f := &Frame{}
	EncodeFan(f, FanHigh)
	before := f.Byte(ByteFan)
	EncodeFan(f, FanTurbo)
	if f.Byte(ByteFan) != before {
		t.Errorf("turbo changed data[1]: %08b -> %08b", before, f.Byte(ByteFan))
	}
}

func TestEncodeVaneHoriz(t *testing.T) {
	tests := []struct {
		vane VaneHoriz
		want byte // bits 4,5,7 of byte 1
	}{
		{VaneHoriz1, 0b1000_0000},
		{VaneHoriz2, 0b1001_0000},
		{VaneHoriz3, 0b1010_0000},
		{VaneHoriz4, 0b1011_0000},
	}

	for _, tt := range tests {
		t.Run(tt.vane.String(), func(t *testing.T) {
			f := &Frame{}
			if !EncodeVaneHoriz(f, tt.vane) {
				t.Fatal("EncodeVaneHoriz() = false")
			}
			if got := f.Byte(ByteFan); got != tt.want {
				t.Errorf("data[1] = %08b, want %08b", got, tt.want)
			}
		})
	}
}

func TestEncodeVaneVertPositionsCollapse(t *testing.T) {
	positions := []VaneVert{
		VaneVertAuto, VaneVertLeftest, VaneVertLeft, VaneVertCenter,
		VaneVertRight, VaneVertRightest, VaneVertLeftRight,
	}
	for _, v := range positions {
		f := &Frame{}
		if !EncodeVaneVert(f, v) {
			t.Fatalf("EncodeVaneVert(%s) = false", v)
		}
		if f.Byte(ByteFan) != 1<<VaneVertSetBit || f.Byte(ByteMode) != 0 {
			t.Errorf("EncodeVaneVert(%s): data[0]=%08b data[1]=%08b", v, f.Byte(ByteMode), f.Byte(ByteFan))
		}
	}
}

func TestSwingIsSharedBetweenAxes(t *testing.T) {
	vert := &Frame{}
	horiz := &Frame{}
	EncodeVaneVert(vert, VaneVertSwing)
	EncodeVaneHoriz(horiz, VaneHorizSwing)

	if string(vert.Bytes()) != string(horiz.Bytes()) {
		t.Errorf("vertical swing %X != horizontal swing %X", vert.Bytes(), horiz.Bytes())
	}
	if vert.Byte(ByteMode) != SwingBits {
		t.Errorf("data[0] = %08b, want %08b", vert.Byte(ByteMode), SwingBits)
	}
}

// ============================================================================
// Range checks
// ============================================================================

func TestEncodeSetpointBounds(t *testing.T) {
	tests := []struct {
		setpoint float64
		ok       bool
	}{
		{9.9, false},
		{10.0, true},
		{24.0, true},
		{31.0, true},
		{31.1, false},
		{math.NaN(), false},
		{math.Inf(1), false},
	}

	for _, tt := range tests {
		f := &Frame{}
		f.SetByte(ByteSetpoint, 0x5A)
		if got := EncodeSetpoint(f, tt.setpoint); got != tt.ok {
			t.Errorf("EncodeSetpoint(%v) = %v, want %v", tt.setpoint, got, tt.ok)
		}
		if !tt.ok && f.Byte(ByteSetpoint) != 0x5A {
			t.Errorf("EncodeSetpoint(%v) mutated rejected frame: 0x%02X", tt.setpoint, f.Byte(ByteSetpoint))
		}
	}
}

func TestEncodeExternalTemperatureBounds(t *testing.T) {
	tests := []struct {
		temp float64
		ok   bool
		want byte
	}{
		{-15.5, false, 0},
		{-15.25, true, 0},
		{0, true, 61},
		{21.5, true, 147},
		{48.25, true, 254},
		{48.5, false, 0},
	}

	for _, tt := range tests {
		f := &Frame{}
		if got := EncodeExternalTemperature(f, tt.temp); got != tt.ok {
			t.Errorf("EncodeExternalTemperature(%v) = %v, want %v", tt.temp, got, tt.ok)
		}
		if got := f.Byte(ByteTemp); got != tt.want {
			t.Errorf("EncodeExternalTemperature(%v): data[3] = %d, want %d", tt.temp, got, tt.want)
		}
	}
}

func TestEncodeRejectsUnknownEnums(t *testing.T) {
	f := &Frame{}
	if EncodePower(f, Power(2)) {
		t.Error("EncodePower(2) = true")
	}
	if EncodeMode(f, Mode(4)) {
		t.Error("EncodeMode(4) = true")
	}
	if EncodeFan(f, Fan(1)) {
		t.Error("EncodeFan(1) = true")
	}
	if EncodeVaneVert(f, VaneVert(6)) {
		t.Error("EncodeVaneVert(6) = true")
	}
	if EncodeVaneHoriz(f, VaneHoriz(5)) {
		t.Error("EncodeVaneHoriz(5) = true")
	}
	if got := f.Bytes(); string(got) != string(make([]byte, FrameSize)) {
		t.Errorf("rejected setters mutated frame: % X", got)
	}
}

// ============================================================================
// Bitmask diff: each setter touches only its own field
// ============================================================================

type fieldMask map[int]byte // data byte index -> bits the setter may change

func TestSettersTouchOnlyTheirBits(t *testing.T) {
	tests := []struct {
		name    string
		apply   func(*Frame) bool
		allowed fieldMask
	}{
		{"power on", func(f *Frame) bool { return EncodePower(f, PowerOn) }, fieldMask{0: 0x03}},
		{"power off", func(f *Frame) bool { return EncodePower(f, PowerOff) }, fieldMask{0: 0x03}},
		{"mode auto", func(f *Frame) bool { return EncodeMode(f, ModeAuto) }, fieldMask{0: 0x3C}},
		{"mode cool", func(f *Frame) bool { return EncodeMode(f, ModeCool) }, fieldMask{0: 0x3C}},
		{"mode dry", func(f *Frame) bool { return EncodeMode(f, ModeDry) }, fieldMask{0: 0x3C}},
		{"mode fan", func(f *Frame) bool { return EncodeMode(f, ModeFan) }, fieldMask{0: 0x3C}},
		{"mode heat", func(f *Frame) bool { return EncodeMode(f, ModeHeat) }, fieldMask{0: 0x3C}},
		{"setpoint", func(f *Frame) bool { return EncodeSetpoint(f, 21.5) }, fieldMask{2: 0xFF}},
		{"external temp", func(f *Frame) bool { return EncodeExternalTemperature(f, 19.25) }, fieldMask{3: 0xFF}},
		{"fan low", func(f *Frame) bool { return EncodeFan(f, FanLow) }, fieldMask{1: 0x0B}},
		{"fan medium", func(f *Frame) bool { return EncodeFan(f, FanMedium) }, fieldMask{1: 0x0B}},
		{"fan high", func(f *Frame) bool { return EncodeFan(f, FanHigh) }, fieldMask{1: 0x0B}},
		{"fan turbo", func(f *Frame) bool { return EncodeFan(f, FanTurbo) }, fieldMask{6: 0x10}},
		{"vane vert center", func(f *Frame) bool { return EncodeVaneVert(f, VaneVertCenter) }, fieldMask{1: 0x80}},
		{"vane vert swing", func(f *Frame) bool { return EncodeVaneVert(f, VaneVertSwing) }, fieldMask{0: 0xC0}},
		{"vane horiz 3", func(f *Frame) bool { return EncodeVaneHoriz(f, VaneHoriz3) }, fieldMask{1: 0xB0}},
		{"vane horiz swing", func(f *Frame) bool { return EncodeVaneHoriz(f, VaneHorizSwing) }, fieldMask{0: 0xC0}},
	}

	rng := rand.New(rand.NewSource(1))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for round := 0; round < 200; round++ {
				before := randomFrame(rng)
				after := before.Clone()
				if !tt.apply(after) {
					t.Fatal("setter returned false")
				}

				b, a := before.Bytes(), after.Bytes()
				for i := 0; i < FrameSize; i++ {
					diff := b[i] ^ a[i]
					var allowed byte
					if i >= HeaderSize && i < HeaderSize+DataSize {
						allowed = tt.allowed[i-HeaderSize]
					}
					if diff&^allowed != 0 {
						t.Fatalf("raw[%d] changed outside field: %08b -> %08b (allowed %08b)", i, b[i], a[i], allowed)
					}
				}
			}
		})
	}
}
