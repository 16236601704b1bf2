// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mhiac

import "time"

// Status is a decoded snapshot of one uplink frame
type Status struct {
	Power           Power
	Mode            Mode
	Setpoint        float64
	Fan             Fan
	VaneVert        VaneVert
	VaneHoriz       VaneHoriz
	Operating       bool
	RoomTemperature float64

	// Fields with no signal in the frame
	VaneVertSupport  Support
	ISeeSupport      Support
	ConnectedSupport Support

	// Valid is false when the trailer did not match the checksum; the
	// decoded fields may then be stale or corrupt.
	Valid bool
	// Stale is set when the last change may have come from a physical
	// remote rather than this controller.
	Stale bool

	Header    [HeaderSize]byte
	Timestamp time.Time
}

// DecodePower reads byte 0 bit 0
func DecodePower(f *Frame) Power {
	if f.Bit(ByteMode, bitPower) {
		return PowerOn
	}
	return PowerOff
}

// DecodeMode reads the mode triple of byte 0. Unknown patterns are auto.
func DecodeMode(f *Frame) Mode {
	m, _ := lookupMode(f)
	return m
}

// lookupMode also reports whether the triple was a known pattern
func lookupMode(f *Frame) (Mode, bool) {
	switch f.Field(ByteMode, modeMask) {
	case modeBitsAuto:
		return ModeAuto, true
	case modeBitsCool:
		return ModeCool, true
	case modeBitsDry:
		return ModeDry, true
	case modeBitsFan:
		return ModeFan, true
	case modeBitsHeat:
		return ModeHeat, true
	}
	return ModeAuto, false
}

// DecodeSetpoint reads byte 2 in half degrees
func DecodeSetpoint(f *Frame) float64 {
	return SetpointFromByte(f.Byte(ByteSetpoint))
}

// DecodeFan reads the fan speed. The turbo flag wins over the byte 1
// bits; the undefined fourth byte 1 pattern reads as medium.
func DecodeFan(f *Frame) Fan {
	fan, _ := lookupFan(f)
	return fan
}

func lookupFan(f *Frame) (Fan, bool) {
	if f.Bit(ByteFanExtra, TurboDecodeBit) {
		return FanTurbo, true
	}
	switch f.Field(ByteFan, fanMask) {
	case fanBitsLow:
		return FanLow, true
	case fanBitsMedium:
		return FanMedium, true
	case fanBitsHigh:
		return FanHigh, true
	}
	return FanMedium, false
}

// DecodeVaneVert always returns auto with Unsupported; the uplink frame
// does not report the vertical vane.
func DecodeVaneVert(f *Frame) (VaneVert, Support) {
	return VaneVertAuto, Unsupported
}

// DecodeVaneHoriz reads the horizontal vane. Swing is byte 0 bit 6.
func DecodeVaneHoriz(f *Frame) VaneHoriz {
	if f.Bit(ByteMode, bitSwing) {
		return VaneHorizSwing
	}
	switch f.Field(ByteFan, horizMask) {
	case horizBitsPos1:
		return VaneHoriz1
	case horizBitsPos2:
		return VaneHoriz2
	case horizBitsPos3:
		return VaneHoriz3
	}
	return VaneHoriz4
}

// StaleAuthority reports whether both controller markers are clear
func StaleAuthority(f *Frame) bool {
	return !f.Bit(ByteMode, bitReported) && !f.Bit(ByteFan, bitVaneMarker)
}

// DecodeOperating reads the operating flag, the same bit as power
func DecodeOperating(f *Frame) bool {
	return f.Bit(ByteMode, bitPower)
}

// DecodeRoomTemperature reads byte 3 with the marker bit masked off
func DecodeRoomTemperature(f *Frame) float64 {
	return TemperatureFromByte(f.Byte(ByteTemp) & TempDecodeMask)
}

// DecodeStatus decodes every field of the frame
func DecodeStatus(f *Frame) Status {
	vert, vertSupport := DecodeVaneVert(f)
	return Status{
		Power:            DecodePower(f),
		Mode:             DecodeMode(f),
		Setpoint:         DecodeSetpoint(f),
		Fan:              DecodeFan(f),
		VaneVert:         vert,
		VaneHoriz:        DecodeVaneHoriz(f),
		Operating:        DecodeOperating(f),
		RoomTemperature:  DecodeRoomTemperature(f),
		VaneVertSupport:  vertSupport,
		ISeeSupport:      Unsupported,
		ConnectedSupport: Unsupported,
		Valid:            f.Verify() == nil,
		Stale:            StaleAuthority(f),
		Header:           f.Header(),
		Timestamp:        f.Timestamp(),
	}
}
