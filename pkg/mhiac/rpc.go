// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mhiac

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Parameter field names used by GetParams, SetParams and their JSON form
const (
	FieldPower     = "power"
	FieldMode      = "mode"
	FieldSetpoint  = "setpoint"
	FieldFan       = "fan"
	FieldVaneVert  = "vane_vert"
	FieldVaneHoriz = "vane_horiz"
	FieldExtTemp   = "ext_temp"
	FieldISee      = "isee"
	FieldConnected = "connected"
)

// Params is the full state snapshot returned by MHI-AC.GetParams.
// Enumerations are encoded as their integer codes.
type Params struct {
	Connected   bool      `json:"connected" yaml:"connected"`
	Power       Power     `json:"power" yaml:"power"`
	Mode        Mode      `json:"mode" yaml:"mode"`
	Setpoint    float64   `json:"setpoint" yaml:"setpoint"`
	Fan         Fan       `json:"fan" yaml:"fan"`
	VaneVert    VaneVert  `json:"vane_vert" yaml:"vane_vert"`
	VaneHoriz   VaneHoriz `json:"vane_horiz" yaml:"vane_horiz"`
	ISee        bool      `json:"isee" yaml:"isee"`
	Operating   bool      `json:"operating" yaml:"operating"`
	Room        float64   `json:"room" yaml:"room"`
	Valid       bool      `json:"valid" yaml:"valid"`
	Stale       bool      `json:"stale" yaml:"stale"`
	Unsupported []string  `json:"unsupported,omitempty" yaml:"unsupported,omitempty"`
}

// ParamsUpdate is a partial set of parameters. Nil fields are left alone.
type ParamsUpdate struct {
	Power     *Power     `json:"power,omitempty"`
	Mode      *Mode      `json:"mode,omitempty"`
	Setpoint  *float64   `json:"setpoint,omitempty"`
	Fan       *Fan       `json:"fan,omitempty"`
	VaneVert  *VaneVert  `json:"vane_vert,omitempty"`
	VaneHoriz *VaneHoriz `json:"vane_horiz,omitempty"`
	ExtTemp   *float64   `json:"ext_temp,omitempty"`
}

// Empty reports whether no field is present
func (u ParamsUpdate) Empty() bool {
	return u.Power == nil && u.Mode == nil && u.Setpoint == nil && u.Fan == nil &&
		u.VaneVert == nil && u.VaneHoriz == nil && u.ExtTemp == nil
}

// SetResult reports the outcome of SetParams
type SetResult struct {
	Success bool            `json:"success"`
	Results map[string]bool `json:"results"`
	Params  Params          `json:"params"`
}

// GetParams returns the decoded uplink state in RPC form
func (d *Driver) GetParams() Params {
	s, ok := d.Status()
	if !ok {
		return Params{
			Mode:        ModeAuto,
			Fan:         FanLow,
			VaneVert:    VaneVertAuto,
			VaneHoriz:   VaneHoriz1,
			Unsupported: []string{FieldVaneVert, FieldISee, FieldConnected},
		}
	}

	d.mu.Lock()
	received := d.received
	d.mu.Unlock()

	p := Params{
		Connected: d.Connected(),
		Power:     s.Power,
		Mode:      s.Mode,
		Setpoint:  s.Setpoint,
		Fan:       s.Fan,
		VaneVert:  s.VaneVert,
		VaneHoriz: s.VaneHoriz,
		Operating: s.Operating,
		Room:      s.RoomTemperature,
		Valid:     received && s.Valid,
		Stale:     received && s.Stale,
	}
	if s.VaneVertSupport == Unsupported {
		p.Unsupported = append(p.Unsupported, FieldVaneVert)
	}
	if s.ISeeSupport == Unsupported {
		p.Unsupported = append(p.Unsupported, FieldISee)
	}
	if d.connected == nil {
		p.Unsupported = append(p.Unsupported, FieldConnected)
	}
	return p
}

// SetParams applies every present field of u to the downlink frame under
// one lock. Each field is attempted; Success is true only if all of them
// were accepted.
func (d *Driver) SetParams(u ParamsUpdate) SetResult {
	res := SetResult{Success: true, Results: map[string]bool{}}

	apply := func(f *Frame) bool {
		set := func(name string, ok bool) {
			res.Results[name] = ok
			if !ok {
				res.Success = false
			}
		}
		if u.Power != nil {
			set(FieldPower, EncodePower(f, *u.Power))
		}
		if u.Mode != nil {
			set(FieldMode, EncodeMode(f, *u.Mode))
		}
		if u.Setpoint != nil {
			set(FieldSetpoint, EncodeSetpoint(f, *u.Setpoint))
		}
		if u.Fan != nil {
			set(FieldFan, EncodeFan(f, *u.Fan))
		}
		if u.VaneVert != nil {
			set(FieldVaneVert, EncodeVaneVert(f, *u.VaneVert))
		}
		if u.VaneHoriz != nil {
			set(FieldVaneHoriz, EncodeVaneHoriz(f, *u.VaneHoriz))
		}
		if u.ExtTemp != nil {
			set(FieldExtTemp, EncodeExternalTemperature(f, *u.ExtTemp))
		}
		return res.Success
	}

	if !d.encode(apply) && len(res.Results) == 0 {
		// Driver absent: fail every requested field
		res.Success = false
		for _, name := range u.fields() {
			res.Results[name] = false
		}
	}
	res.Params = d.GetParams()
	return res
}

func (u ParamsUpdate) fields() []string {
	var names []string
	if u.Power != nil {
		names = append(names, FieldPower)
	}
	if u.Mode != nil {
		names = append(names, FieldMode)
	}
	if u.Setpoint != nil {
		names = append(names, FieldSetpoint)
	}
	if u.Fan != nil {
		names = append(names, FieldFan)
	}
	if u.VaneVert != nil {
		names = append(names, FieldVaneVert)
	}
	if u.VaneHoriz != nil {
		names = append(names, FieldVaneHoriz)
	}
	if u.ExtTemp != nil {
		names = append(names, FieldExtTemp)
	}
	return names
}

// Enumerations unmarshal from either their integer code or their name.
// Unknown integer codes are kept so the setter can reject them.

func (p *Power) UnmarshalJSON(b []byte) error { return unmarshalEnum(b, p, ParsePower) }
func (m *Mode) UnmarshalJSON(b []byte) error  { return unmarshalEnum(b, m, ParseMode) }
func (f *Fan) UnmarshalJSON(b []byte) error   { return unmarshalEnum(b, f, ParseFan) }

func (v *VaneVert) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, v, ParseVaneVert)
}

func (v *VaneHoriz) UnmarshalJSON(b []byte) error {
	return unmarshalEnum(b, v, ParseVaneHoriz)
}

func unmarshalEnum[T ~int](b []byte, dst *T, parse func(string) (T, error)) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := parse(s)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
	code, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("invalid enumeration value %s", b)
	}
	*dst = T(code)
	return nil
}
