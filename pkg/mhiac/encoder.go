// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mhiac

import "math"

// The Encode functions write one field into a downlink frame. Each touches
// only the bits of its own field, together with the field's "changed"
// marker, and returns false without touching the frame when the value is
// not accepted.

// EncodePower sets byte 0 bit 0 and the power marker
func EncodePower(f *Frame, p Power) bool {
	switch p {
	case PowerOff:
		f.ClearBit(ByteMode, bitPower)
	case PowerOn:
		f.SetBit(ByteMode, bitPower)
	default:
		return false
	}
	f.SetBit(ByteMode, bitPowerChanged)
	return true
}

// EncodeMode writes the three mode bits of byte 0 and the mode marker
func EncodeMode(f *Frame, m Mode) bool {
	bits, ok := modeBits(m)
	if !ok {
		return false
	}
	f.SetField(ByteMode, modeMask, bits)
	f.SetBit(ByteMode, bitModeChanged)
	return true
}

func modeBits(m Mode) (byte, bool) {
	switch m {
	case ModeAuto:
		return modeBitsAuto, true
	case ModeCool:
		return modeBitsCool, true
	case ModeDry:
		return modeBitsDry, true
	case ModeFan:
		return modeBitsFan, true
	case ModeHeat:
		return modeBitsHeat, true
	}
	return 0, false
}

// SetpointByte returns the value bits for a setpoint, without the marker
func SetpointByte(setpoint float64) byte {
	return byte(math.Round(setpoint * 2))
}

// SetpointFromByte is the inverse of SetpointByte after decode masking
func SetpointFromByte(b byte) float64 {
	return float64(b&SetpointDecodeMask) / 2
}

// TemperatureByte encodes a temperature as quarter degrees above -15.25°C
func TemperatureByte(temp float64) byte {
	return byte(int(math.Round(temp*4)) + TemperatureOffset)
}

// TemperatureFromByte is the inverse of TemperatureByte. The marker bit is
// not masked here; see DecodeRoomTemperature.
func TemperatureFromByte(b byte) float64 {
	return float64(int(b)-TemperatureOffset) / 4
}

// EncodeSetpoint writes byte 2 for a setpoint between MinSetpoint and
// MaxSetpoint inclusive.
func EncodeSetpoint(f *Frame, setpoint float64) bool {
	if !(setpoint >= MinSetpoint && setpoint <= MaxSetpoint) {
		return false
	}
	f.SetByte(ByteSetpoint, SetpointByte(setpoint)|1<<bitSetpointSet)
	return true
}

// EncodeExternalTemperature writes byte 3 with an externally measured room
// temperature between MinExternalTemp and MaxExternalTemp inclusive.
func EncodeExternalTemperature(f *Frame, temp float64) bool {
	if !(temp >= MinExternalTemp && temp <= MaxExternalTemp) {
		return false
	}
	f.SetByte(ByteTemp, TemperatureByte(temp))
	return true
}

// EncodeFan writes the fan speed. Turbo is a separate byte 6 flag and
// leaves the low/medium/high bits of byte 1 untouched.
func EncodeFan(f *Frame, fan Fan) bool {
	var bits byte
	switch fan {
	case FanLow:
		bits = fanBitsLow
	case FanMedium:
		bits = fanBitsMedium
	case FanHigh:
		bits = fanBitsHigh
	case FanTurbo:
		f.SetBit(ByteFanExtra, TurboEncodeBit)
		return true
	default:
		return false
	}
	f.SetField(ByteFan, fanMask, bits)
	f.SetBit(ByteFan, bitFanChanged)
	return true
}

// EncodeVaneVert writes the vertical vane. Every fixed position sets the
// same VaneVertSetBit; swing sets SwingBits in byte 0.
func EncodeVaneVert(f *Frame, v VaneVert) bool {
	switch v {
	case VaneVertAuto, VaneVertLeftest, VaneVertLeft, VaneVertCenter,
		VaneVertRight, VaneVertRightest, VaneVertLeftRight:
		f.SetBit(ByteFan, VaneVertSetBit)
	case VaneVertSwing:
		f.SetField(ByteMode, SwingBits, SwingBits)
	default:
		return false
	}
	return true
}

// EncodeVaneHoriz writes the horizontal vane. Swing shares SwingBits with
// vertical swing.
func EncodeVaneHoriz(f *Frame, v VaneHoriz) bool {
	var bits byte
	switch v {
	case VaneHoriz1:
		bits = horizBitsPos1
	case VaneHoriz2:
		bits = horizBitsPos2
	case VaneHoriz3:
		bits = horizBitsPos3
	case VaneHoriz4:
		bits = horizBitsPos4
	case VaneHorizSwing:
		f.SetField(ByteMode, SwingBits, SwingBits)
		return true
	default:
		return false
	}
	f.SetField(ByteFan, horizMask, bits)
	f.SetBit(ByteFan, bitVaneMarker)
	return true
}
