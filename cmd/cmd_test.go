// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/mhistat/internal/capture"
	"github.com/Thermoquad/mhistat/internal/config"
	"github.com/Thermoquad/mhistat/internal/link"
	"github.com/Thermoquad/mhistat/pkg/mhiac"
)

var unitHeader = [mhiac.HeaderSize]byte{0x6D, 0x80, 0x04}

func uplink(byte0 byte) []byte {
	f := mhiac.NewFrame(unitHeader)
	f.SetByte(mhiac.ByteMode, byte0)
	f.SetByte(mhiac.ByteSetpoint, 44)
	f.Seal()
	return f.Bytes()
}

func TestCycleWraps(t *testing.T) {
	assert.Equal(t, mhiac.PowerOn, cycle(powerCycle, mhiac.PowerOff, 1))
	assert.Equal(t, mhiac.PowerOff, cycle(powerCycle, mhiac.PowerOn, 1))
	assert.Equal(t, mhiac.ModeHeat, cycle(modeCycle, mhiac.ModeAuto, -1))
	assert.Equal(t, mhiac.FanLow, cycle(fanCycle, mhiac.Fan(99), 1), "unknown value restarts the cycle")
}

func TestParseUpdate(t *testing.T) {
	flags := pflag.NewFlagSet("set", pflag.ContinueOnError)
	addParamFlags(flags)
	require.NoError(t, flags.Parse([]string{"--power", "on", "--mode", "3", "--setpoint", "22.5", "--vane-horiz", "swing"}))

	u, err := parseUpdate(flags)
	require.NoError(t, err)
	require.NotNil(t, u.Power)
	assert.Equal(t, mhiac.PowerOn, *u.Power)
	require.NotNil(t, u.Mode)
	assert.Equal(t, mhiac.ModeCool, *u.Mode)
	require.NotNil(t, u.Setpoint)
	assert.Equal(t, 22.5, *u.Setpoint)
	require.NotNil(t, u.VaneHoriz)
	assert.Equal(t, mhiac.VaneHorizSwing, *u.VaneHoriz)
	assert.Nil(t, u.Fan)
	assert.Nil(t, u.ExtTemp)
}

func TestParseUpdateErrors(t *testing.T) {
	flags := pflag.NewFlagSet("set", pflag.ContinueOnError)
	addParamFlags(flags)
	_, err := parseUpdate(flags)
	assert.EqualError(t, err, "no parameter given")

	flags = pflag.NewFlagSet("set", pflag.ContinueOnError)
	addParamFlags(flags)
	require.NoError(t, flags.Parse([]string{"--fan", "hurricane"}))
	_, err = parseUpdate(flags)
	assert.Error(t, err)
}

func TestWriteParamsFormats(t *testing.T) {
	p := mhiac.Params{Power: mhiac.PowerOn, Mode: mhiac.ModeCool, Setpoint: 22, Fan: mhiac.FanHigh, VaneHoriz: mhiac.VaneHoriz2, Unsupported: []string{mhiac.FieldISee}}

	var buf bytes.Buffer
	require.NoError(t, writeParams(&buf, p, "json"))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 1.0, decoded["power"])
	assert.Equal(t, 22.0, decoded["setpoint"])

	buf.Reset()
	require.NoError(t, writeParams(&buf, p, "yaml"))
	var fromYAML map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, 3, fromYAML["mode"])
	assert.Equal(t, []interface{}{"isee"}, fromYAML["unsupported"])

	buf.Reset()
	require.NoError(t, writeParams(&buf, p, "text"))
	out := buf.String()
	assert.Contains(t, out, "Mode:")
	assert.Contains(t, out, "cool")
	assert.Contains(t, out, "Not reported:      isee")

	assert.Error(t, writeParams(&buf, p, "xml"))
}

func TestReplayRecords(t *testing.T) {
	var rec bytes.Buffer
	w := capture.NewWriter(&rec)
	require.NoError(t, w.Write(capture.Uplink, uplink(0x89)))
	require.NoError(t, w.Write(capture.Downlink, make([]byte, mhiac.FrameSize)))
	bad := uplink(0x89)
	bad[mhiac.FrameSize-1] ^= 0xFF
	require.NoError(t, w.Write(capture.Uplink, bad))
	require.NoError(t, w.Write(capture.Uplink, []byte{0x01, 0x02}))

	replayDirection, replayValidate, replayDiff = "all", true, false
	t.Cleanup(func() { replayValidate = false })

	var out bytes.Buffer
	require.NoError(t, replayRecords(&out, capture.NewReader(&rec), mhiac.ValidateOptions{}))

	text := out.String()
	assert.Contains(t, text, "tx 00 00")
	assert.Contains(t, text, "CHECKSUM")
	assert.Contains(t, text, "record 4:")
	assert.Contains(t, text, "4 record(s) read")
	assert.Contains(t, text, "=== Statistics")
}

func TestReplayDirectionFilter(t *testing.T) {
	var rec bytes.Buffer
	w := capture.NewWriter(&rec)
	require.NoError(t, w.Write(capture.Uplink, uplink(0x89)))
	require.NoError(t, w.Write(capture.Downlink, make([]byte, mhiac.FrameSize)))

	replayDirection = "rx"
	t.Cleanup(func() { replayDirection = "all" })

	var out bytes.Buffer
	require.NoError(t, replayRecords(&out, capture.NewReader(&rec), mhiac.ValidateOptions{}))
	assert.False(t, strings.Contains(out.String(), " tx "))
	assert.Contains(t, out.String(), "hdr=6D 80 04")
}

func newTestControlModel(t *testing.T) (controlModel, *mhiac.Driver) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{}
	t.Cleanup(func() { cfg = prev })

	driver := mhiac.New()
	return initialControlModel(driver), driver
}

func selectField(t *testing.T, m *controlModel, field string) {
	t.Helper()
	for i, item := range m.params.Items() {
		if item.(paramItem).field == field {
			m.params.Select(i)
			return
		}
	}
	t.Fatalf("no list item for %s", field)
}

func TestControlStepQueuesPending(t *testing.T) {
	m, driver := newTestControlModel(t)

	selectField(t, &m, mhiac.FieldPower)
	m.step(1)
	require.NotNil(t, m.pending.Power)
	assert.Equal(t, mhiac.PowerOn, *m.pending.Power)
	assert.Equal(t, "off → on", m.params.SelectedItem().(paramItem).value)

	selectField(t, &m, mhiac.FieldSetpoint)
	m.step(-1)
	require.NotNil(t, m.pending.Setpoint)
	assert.Equal(t, mhiac.MinSetpoint, *m.pending.Setpoint, "clamped to the lower bound")

	f, err := mhiac.FrameFromBytes(driver.Transmit())
	require.NoError(t, err)
	assert.NoError(t, f.Verify())
}

func TestControlFrameSettlesPending(t *testing.T) {
	m, driver := newTestControlModel(t)

	selectField(t, &m, mhiac.FieldPower)
	m.step(1)
	require.NotNil(t, m.pending.Power)

	raw := uplink(0x89)
	status, err := driver.Receive(raw)
	require.NoError(t, err)
	frame, err := mhiac.FrameFromBytes(raw)
	require.NoError(t, err)

	m.handleEvent(link.Event{Kind: link.EventFrame, Frame: frame, Status: status})
	assert.Nil(t, m.pending.Power)
	assert.Equal(t, uint64(1), m.stats.TotalFrames)
	assert.Equal(t, "on", m.params.Items()[0].(paramItem).value)
}

func TestControlEventsLogged(t *testing.T) {
	m, _ := newTestControlModel(t)

	m.handleEvent(link.Event{Kind: link.EventConnected, Info: "Serial: /dev/null @ 115200 baud"})
	assert.True(t, m.connected)
	assert.Equal(t, "Serial: /dev/null @ 115200 baud", m.connInfo)

	m.handleEvent(link.Event{Kind: link.EventSync, Skipped: 7})
	m.handleEvent(link.Event{Kind: link.EventDisconnected})
	assert.False(t, m.connected)

	require.Len(t, m.eventLog, 3)
	assert.Contains(t, m.eventLog[1].message, "skipping 7 bytes")
	assert.True(t, m.eventLog[2].isError)
}

func TestSubmitInputRejectsGarbage(t *testing.T) {
	m, _ := newTestControlModel(t)
	selectField(t, &m, mhiac.FieldExtTemp)

	m.focus = focusInput
	m.input.SetValue("warm")
	m.submitInput()
	assert.Equal(t, focusParams, m.focus)
	assert.Nil(t, m.pending.ExtTemp)
	require.NotEmpty(t, m.eventLog)
	assert.True(t, m.eventLog[len(m.eventLog)-1].isError)

	m.input.SetValue("21.25")
	m.submitInput()
	require.NotNil(t, m.pending.ExtTemp)
	assert.Equal(t, 21.25, *m.pending.ExtTemp)
}
