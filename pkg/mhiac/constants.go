// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mhiac provides a Go implementation of the MHI air-conditioner
// indoor-unit frame protocol.
//
// The indoor unit exchanges a fixed 20 byte frame with a supervisory
// controller: the uplink frame reports the live state of the unit and the
// downlink frame commands new settings. This package provides the frame
// layout, the additive checksum, the field encoders and decoders, and a
// Driver handle that owns one uplink and one downlink frame.
package mhiac

// Frame layout
const (
	HeaderSize   = 3
	DataSize     = 15
	ChecksumSize = 2
	FrameSize    = HeaderSize + DataSize + ChecksumSize
)

// Data region byte indices. Only bytes 0-6 carry fields; 7-14 are reserved
// and passed through unmodified.
const (
	ByteMode     = 0 // power, mode, swing, controller marker
	ByteFan      = 1 // fan speed, vane positions, markers
	ByteSetpoint = 2
	ByteTemp     = 3
	ByteFanExtra = 6 // turbo flag

	ReservedStart = 7
)

// Byte 0
const (
	bitPower        = 0
	bitPowerChanged = 1
	bitModeA        = 2
	bitModeB        = 3
	bitModeC        = 4
	bitModeChanged  = 5
	bitSwing        = 6
	bitReported     = 7

	modeMask = 1<<bitModeA | 1<<bitModeB | 1<<bitModeC
)

// Mode bit patterns within byte 0 (bits 2,3,4)
const (
	modeBitsAuto = 0
	modeBitsCool = 1 << bitModeB
	modeBitsDry  = 1 << bitModeA
	modeBitsFan  = 1<<bitModeA | 1<<bitModeB
	modeBitsHeat = 1 << bitModeC
)

// Byte 1
const (
	bitFanA        = 0
	bitFanB        = 1
	bitFanChanged  = 3
	bitHorizA      = 4
	bitHorizB      = 5
	bitVaneMarker  = 7
	fanMask        = 1<<bitFanA | 1<<bitFanB
	horizMask      = 1<<bitHorizA | 1<<bitHorizB
	fanBitsLow     = 0
	fanBitsMedium  = 1 << bitFanA
	fanBitsHigh    = 1 << bitFanB
	horizBitsPos1  = 0
	horizBitsPos2  = 1 << bitHorizA
	horizBitsPos3  = 1 << bitHorizB
	horizBitsPos4  = 1<<bitHorizA | 1<<bitHorizB
	bitSetpointSet = 7 // byte 2
	bitTempMarker  = 7 // byte 3
)

// Overlapping protocol bits. These reproduce the observed frames of the
// unit and are unverified on hardware; keep every use behind these names.
const (
	// VaneVertSetBit is the single byte 1 bit written for every fixed
	// vertical vane position. The positions are not distinguishable.
	VaneVertSetBit = bitVaneMarker

	// SwingBits are the byte 0 bits written for swing on either axis.
	SwingBits = 1<<bitSwing | 1<<bitReported

	// TurboEncodeBit is the byte 6 bit set on the downlink for turbo.
	TurboEncodeBit = 4

	// TurboDecodeBit is the byte 6 bit that reports turbo on the uplink.
	TurboDecodeBit = 6

	// SetpointDecodeMask clears byte 2 bit 6 before halving. It also clears
	// the bit 7 "present" marker the encoder sets on every write; masking
	// bit 6 alone would decode 24.0 °C (0xB0) as 88.
	SetpointDecodeMask = ^byte(1<<6 | 1<<bitSetpointSet)

	// TempDecodeMask clears the byte 3 marker bit before the offset is applied.
	TempDecodeMask = ^byte(1 << bitTempMarker)
)

// Setpoint and temperature ranges (°C)
const (
	MinSetpoint       = 10.0
	MaxSetpoint       = 31.0
	MinExternalTemp   = -15.25
	MaxExternalTemp   = 48.25
	TemperatureOffset = 61
)

// MaxConsecutiveErrors is the number of bad frames a synchronized
// StreamDecoder accepts before it starts hunting for alignment again.
const MaxConsecutiveErrors = 3
