// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mhiac

import (
	"fmt"
	"strconv"
	"strings"
)

// Power is the unit power state
type Power int

const (
	PowerOff Power = 0
	PowerOn  Power = 1
)

// Mode is the operating mode
type Mode int

const (
	ModeHeat Mode = 1
	ModeDry  Mode = 2
	ModeCool Mode = 3
	ModeFan  Mode = 7
	ModeAuto Mode = 8
)

// Fan is the indoor fan speed
type Fan int

const (
	FanLow    Fan = 2
	FanMedium Fan = 3
	FanHigh   Fan = 5
	FanTurbo  Fan = 6
)

// VaneVert is the vertical vane position
type VaneVert int

const (
	VaneVertAuto      VaneVert = 0
	VaneVertLeftest   VaneVert = 1
	VaneVertLeft      VaneVert = 2
	VaneVertCenter    VaneVert = 3
	VaneVertRight     VaneVert = 4
	VaneVertRightest  VaneVert = 5
	VaneVertLeftRight VaneVert = 8
	VaneVertSwing     VaneVert = 12
)

// VaneHoriz is the horizontal vane position
type VaneHoriz int

const (
	VaneHoriz1     VaneHoriz = 1
	VaneHoriz2     VaneHoriz = 2
	VaneHoriz3     VaneHoriz = 3
	VaneHoriz4     VaneHoriz = 4
	VaneHorizSwing VaneHoriz = 7
)

var powerNames = map[Power]string{
	PowerOff: "off",
	PowerOn:  "on",
}

var modeNames = map[Mode]string{
	ModeHeat: "heat",
	ModeDry:  "dry",
	ModeCool: "cool",
	ModeFan:  "fan",
	ModeAuto: "auto",
}

var fanNames = map[Fan]string{
	FanLow:    "low",
	FanMedium: "medium",
	FanHigh:   "high",
	FanTurbo:  "turbo",
}

var vaneVertNames = map[VaneVert]string{
	VaneVertAuto:      "auto",
	VaneVertLeftest:   "leftest",
	VaneVertLeft:      "left",
	VaneVertCenter:    "center",
	VaneVertRight:     "right",
	VaneVertRightest:  "rightest",
	VaneVertLeftRight: "leftright",
	VaneVertSwing:     "swing",
}

var vaneHorizNames = map[VaneHoriz]string{
	VaneHoriz1:     "1",
	VaneHoriz2:     "2",
	VaneHoriz3:     "3",
	VaneHoriz4:     "4",
	VaneHorizSwing: "swing",
}

func (p Power) String() string     { return enumString(powerNames, p) }
func (m Mode) String() string      { return enumString(modeNames, m) }
func (f Fan) String() string       { return enumString(fanNames, f) }
func (v VaneVert) String() string  { return enumString(vaneVertNames, v) }
func (v VaneHoriz) String() string { return enumString(vaneHorizNames, v) }

// Valid reports whether the value is a known power state
func (p Power) Valid() bool {
	_, ok := powerNames[p]
	return ok
}

// Valid reports whether the value is a known mode
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// Valid reports whether the value is a known fan speed
func (f Fan) Valid() bool {
	_, ok := fanNames[f]
	return ok
}

// Valid reports whether the value is a known vertical vane position
func (v VaneVert) Valid() bool {
	_, ok := vaneVertNames[v]
	return ok
}

// Valid reports whether the value is a known horizontal vane position
func (v VaneHoriz) Valid() bool {
	_, ok := vaneHorizNames[v]
	return ok
}

// ParsePower parses "on"/"off" or the numeric code
func ParsePower(s string) (Power, error) { return parseEnum(powerNames, "power", s) }

// ParseMode parses a mode name or numeric code
func ParseMode(s string) (Mode, error) { return parseEnum(modeNames, "mode", s) }

// ParseFan parses a fan name or numeric code. "med" is accepted for medium.
func ParseFan(s string) (Fan, error) {
	if strings.EqualFold(strings.TrimSpace(s), "med") {
		return FanMedium, nil
	}
	return parseEnum(fanNames, "fan", s)
}

// ParseVaneVert parses a vertical vane name or numeric code
func ParseVaneVert(s string) (VaneVert, error) { return parseEnum(vaneVertNames, "vane_vert", s) }

// ParseVaneHoriz parses a horizontal vane position (1-4, swing) or numeric code
func ParseVaneHoriz(s string) (VaneHoriz, error) {
	return parseEnum(vaneHorizNames, "vane_horiz", s)
}

func enumString[T ~int](names map[T]string, v T) string {
	if name, ok := names[v]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(v))
}

// parseEnum matches by name first and then by numeric code
func parseEnum[T ~int](names map[T]string, field, s string) (T, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for v, name := range names {
		if name == s {
			return v, nil
		}
	}
	if code, err := strconv.Atoi(s); err == nil {
		if _, ok := names[T(code)]; ok {
			return T(code), nil
		}
	}
	return 0, fmt.Errorf("invalid %s %q", field, s)
}

// Support marks whether a decoded field has a signal in the uplink frame
type Support int

const (
	Supported Support = iota
	Unsupported
)

func (s Support) String() string {
	if s == Unsupported {
		return "unsupported"
	}
	return "supported"
}
