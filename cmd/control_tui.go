// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Thermoquad/mhistat/internal/link"
	"github.com/Thermoquad/mhistat/pkg/mhiac"
)

// Focus states
type controlFocus int

const (
	focusParams controlFocus = iota
	focusInput
)

// Cycle orders for the enumerated parameters
var (
	powerCycle     = []mhiac.Power{mhiac.PowerOff, mhiac.PowerOn}
	modeCycle      = []mhiac.Mode{mhiac.ModeAuto, mhiac.ModeCool, mhiac.ModeDry, mhiac.ModeFan, mhiac.ModeHeat}
	fanCycle       = []mhiac.Fan{mhiac.FanLow, mhiac.FanMedium, mhiac.FanHigh, mhiac.FanTurbo}
	vaneVertCycle  = []mhiac.VaneVert{mhiac.VaneVertAuto, mhiac.VaneVertLeftest, mhiac.VaneVertLeft, mhiac.VaneVertCenter, mhiac.VaneVertRight, mhiac.VaneVertRightest, mhiac.VaneVertLeftRight, mhiac.VaneVertSwing}
	vaneHorizCycle = []mhiac.VaneHoriz{mhiac.VaneHoriz1, mhiac.VaneHoriz2, mhiac.VaneHoriz3, mhiac.VaneHoriz4, mhiac.VaneHorizSwing}
)

const setpointStep = 0.5

// paramItem is one row of the parameter list
type paramItem struct {
	field string
	title string
	value string
}

func (i paramItem) Title() string       { return i.title }
func (i paramItem) Description() string { return i.value }
func (i paramItem) FilterValue() string { return i.title }

// Control TUI model
type controlModel struct {
	driver *mhiac.Driver

	params list.Model
	input  textinput.Model
	focus  controlFocus

	// Requested values not yet confirmed by the unit
	pending mhiac.ParamsUpdate

	connInfo      string
	connected     bool
	stats         *mhiac.Statistics
	validate      mhiac.ValidateOptions
	lastFrame     *mhiac.Frame
	lastStatus    *mhiac.Status
	eventLog      []errorLogEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
}

// Messages
type controlTickMsg time.Time

type controlEventMsg struct {
	ev link.Event
}

func initialControlModel(driver *mhiac.Driver) controlModel {
	input := textinput.New()
	input.Placeholder = "value"
	input.CharLimit = 8
	input.Width = 12

	delegate := list.NewDefaultDelegate()
	params := list.New(nil, delegate, 40, 20)
	params.Title = "Parameters"
	params.SetShowStatusBar(false)
	params.SetShowHelp(false)
	params.SetFilteringEnabled(false)
	// Left and right change values instead of paging
	params.KeyMap.PrevPage = key.NewBinding(key.WithKeys("pgup"))
	params.KeyMap.NextPage = key.NewBinding(key.WithKeys("pgdown"))

	m := controlModel{
		driver:        driver,
		params:        params,
		input:         input,
		stats:         mhiac.NewStatistics(),
		eventLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
		connInfo:      "connecting...",
	}
	if h, err := cfg.MHIAC.UplinkHeader(); err == nil {
		m.validate.ExpectedHeader = h
	}
	m.refreshItems()
	return m
}

func (m controlModel) Init() tea.Cmd {
	return tea.Batch(controlTickCmd(), textinput.Blink)
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.params.SetSize(msg.Width/2, listHeight(msg.Height))

	case controlTickMsg:
		m.stats.CalculateRates()
		return m, controlTickCmd()

	case controlEventMsg:
		m.handleEvent(msg.ev)
	}
	return m, nil
}

func listHeight(total int) int {
	h := total - 14
	if h < 8 {
		h = 8
	}
	return h
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.focus == focusInput {
		switch msg.String() {
		case "esc":
			m.focus = focusParams
			m.input.Blur()
			m.input.SetValue("")
			return m, nil
		case "enter":
			m.submitInput()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "r":
		m.stats.Reset()
		m.addLogEntry("Statistics reset", false)
		return m, nil
	case "left", "h":
		m.step(-1)
		return m, nil
	case "right", "l", " ":
		m.step(1)
		return m, nil
	case "enter":
		return m.handleEnter()
	}

	var cmd tea.Cmd
	m.params, cmd = m.params.Update(msg)
	return m, cmd
}

func (m controlModel) handleEnter() (tea.Model, tea.Cmd) {
	item, ok := m.params.SelectedItem().(paramItem)
	if !ok {
		return m, nil
	}
	switch item.field {
	case mhiac.FieldSetpoint, mhiac.FieldExtTemp:
		m.focus = focusInput
		m.input.Placeholder = item.title + " °C"
		m.input.SetValue("")
		return m, m.input.Focus()
	}
	m.step(1)
	return m, nil
}

func (m *controlModel) submitInput() {
	item, _ := m.params.SelectedItem().(paramItem)
	raw := strings.TrimSpace(m.input.Value())
	m.focus = focusParams
	m.input.Blur()
	m.input.SetValue("")
	if raw == "" {
		return
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("Invalid number %q", raw), true)
		return
	}
	switch item.field {
	case mhiac.FieldSetpoint:
		m.apply(mhiac.ParamsUpdate{Setpoint: &v})
	case mhiac.FieldExtTemp:
		m.apply(mhiac.ParamsUpdate{ExtTemp: &v})
	}
}

// step moves the selected parameter dir places through its range
func (m *controlModel) step(dir int) {
	item, ok := m.params.SelectedItem().(paramItem)
	if !ok {
		return
	}
	cur := m.current()

	var u mhiac.ParamsUpdate
	switch item.field {
	case mhiac.FieldPower:
		v := cycle(powerCycle, cur.Power, dir)
		u.Power = &v
	case mhiac.FieldMode:
		v := cycle(modeCycle, cur.Mode, dir)
		u.Mode = &v
	case mhiac.FieldSetpoint:
		v := cur.Setpoint + float64(dir)*setpointStep
		if v < mhiac.MinSetpoint {
			v = mhiac.MinSetpoint
		}
		if v > mhiac.MaxSetpoint {
			v = mhiac.MaxSetpoint
		}
		u.Setpoint = &v
	case mhiac.FieldFan:
		v := cycle(fanCycle, cur.Fan, dir)
		u.Fan = &v
	case mhiac.FieldVaneVert:
		v := cycle(vaneVertCycle, cur.VaneVert, dir)
		u.VaneVert = &v
	case mhiac.FieldVaneHoriz:
		v := cycle(vaneHorizCycle, cur.VaneHoriz, dir)
		u.VaneHoriz = &v
	default:
		return
	}
	m.apply(u)
}

// cycle returns the value dir places after cur, wrapping at either end.
// Values outside the cycle start from the first entry.
func cycle[T comparable](values []T, cur T, dir int) T {
	idx := -1
	for i, v := range values {
		if v == cur {
			idx = i
			break
		}
	}
	if idx < 0 {
		return values[0]
	}
	n := len(values)
	return values[((idx+dir)%n+n)%n]
}

// current returns the unit state with pending requests laid over it
func (m *controlModel) current() mhiac.Params {
	p := m.driver.GetParams()
	if m.pending.Power != nil {
		p.Power = *m.pending.Power
	}
	if m.pending.Mode != nil {
		p.Mode = *m.pending.Mode
	}
	if m.pending.Setpoint != nil {
		p.Setpoint = *m.pending.Setpoint
	}
	if m.pending.Fan != nil {
		p.Fan = *m.pending.Fan
	}
	if m.pending.VaneVert != nil {
		p.VaneVert = *m.pending.VaneVert
	}
	if m.pending.VaneHoriz != nil {
		p.VaneHoriz = *m.pending.VaneHoriz
	}
	return p
}

func (m *controlModel) apply(u mhiac.ParamsUpdate) {
	res := m.driver.SetParams(u)

	fields := make([]string, 0, len(res.Results))
	for field := range res.Results {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if !res.Results[field] {
			m.addLogEntry(fmt.Sprintf("Rejected %s", field), true)
			continue
		}
		m.addLogEntry(fmt.Sprintf("Set %s", field), false)
	}

	if res.Results[mhiac.FieldPower] {
		m.pending.Power = u.Power
	}
	if res.Results[mhiac.FieldMode] {
		m.pending.Mode = u.Mode
	}
	if res.Results[mhiac.FieldSetpoint] {
		m.pending.Setpoint = u.Setpoint
	}
	if res.Results[mhiac.FieldFan] {
		m.pending.Fan = u.Fan
	}
	if res.Results[mhiac.FieldVaneVert] {
		m.pending.VaneVert = u.VaneVert
	}
	if res.Results[mhiac.FieldVaneHoriz] {
		m.pending.VaneHoriz = u.VaneHoriz
	}
	if res.Results[mhiac.FieldExtTemp] {
		m.pending.ExtTemp = u.ExtTemp
	}
	m.refreshItems()
}

// settle drops pending requests the unit now reports
func (m *controlModel) settle(s mhiac.Status) {
	if s.Stale || !s.Valid {
		return
	}
	if m.pending.Power != nil && *m.pending.Power == s.Power {
		m.pending.Power = nil
	}
	if m.pending.Mode != nil && *m.pending.Mode == s.Mode {
		m.pending.Mode = nil
	}
	if m.pending.Setpoint != nil && *m.pending.Setpoint == s.Setpoint {
		m.pending.Setpoint = nil
	}
	if m.pending.Fan != nil && *m.pending.Fan == s.Fan {
		m.pending.Fan = nil
	}
	if m.pending.VaneHoriz != nil && *m.pending.VaneHoriz == s.VaneHoriz {
		m.pending.VaneHoriz = nil
	}
}

func (m *controlModel) handleEvent(ev link.Event) {
	switch ev.Kind {
	case link.EventConnected:
		m.connInfo = ev.Info
		m.connected = true
		m.addLogEntry("Connected to "+ev.Info, false)

	case link.EventDisconnected:
		m.connected = false
		if ev.Err != nil {
			m.addLogEntry(fmt.Sprintf("Connection lost: %v, reconnecting", ev.Err), true)
		} else {
			m.addLogEntry("Connection lost, reconnecting", true)
		}

	case link.EventSync:
		if ev.Skipped > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d bytes", ev.Skipped), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case link.EventStreamError:
		m.stats.Update(nil, ev.Err, nil)
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", ev.Err), true)

	case link.EventFrame:
		errs := mhiac.ValidateFrame(ev.Frame, m.validate)
		m.stats.Update(ev.Frame, nil, errs)
		status := ev.Status
		m.lastFrame = ev.Frame
		m.lastStatus = &status
		for _, e := range errs {
			if !e.Type.Advisory() {
				m.addLogEntry(fmt.Sprintf("%s: %s", mhiac.FormatAnomaly(e.Type), e.Message), true)
			}
		}
		m.settle(status)
		m.refreshItems()
	}
}

func (m *controlModel) refreshItems() {
	unit := m.driver.GetParams()
	show := func(reported string, pending fmt.Stringer) string {
		if pending == nil || pending.String() == reported {
			return reported
		}
		return reported + " → " + pending.String()
	}

	var power, mode, fan, vv, vh fmt.Stringer
	if m.pending.Power != nil {
		power = *m.pending.Power
	}
	if m.pending.Mode != nil {
		mode = *m.pending.Mode
	}
	if m.pending.Fan != nil {
		fan = *m.pending.Fan
	}
	if m.pending.VaneVert != nil {
		vv = *m.pending.VaneVert
	}
	if m.pending.VaneHoriz != nil {
		vh = *m.pending.VaneHoriz
	}

	setpoint := fmt.Sprintf("%.1f°C", unit.Setpoint)
	if m.pending.Setpoint != nil && *m.pending.Setpoint != unit.Setpoint {
		setpoint += fmt.Sprintf(" → %.1f°C", *m.pending.Setpoint)
	}
	extTemp := "not sent"
	if m.pending.ExtTemp != nil {
		extTemp = fmt.Sprintf("%.2f°C", *m.pending.ExtTemp)
	}
	vaneVert := show(unit.VaneVert.String(), vv)
	if _, support := m.driver.VaneVert(); support == mhiac.Unsupported {
		vaneVert += " (not reported)"
	}

	items := []list.Item{
		paramItem{field: mhiac.FieldPower, title: "Power", value: show(unit.Power.String(), power)},
		paramItem{field: mhiac.FieldMode, title: "Mode", value: show(unit.Mode.String(), mode)},
		paramItem{field: mhiac.FieldSetpoint, title: "Setpoint", value: setpoint},
		paramItem{field: mhiac.FieldFan, title: "Fan", value: show(unit.Fan.String(), fan)},
		paramItem{field: mhiac.FieldVaneVert, title: "Vane vertical", value: vaneVert},
		paramItem{field: mhiac.FieldVaneHoriz, title: "Vane horizontal", value: show(unit.VaneHoriz.String(), vh)},
		paramItem{field: mhiac.FieldExtTemp, title: "External temperature", value: extTemp},
	}
	m.params.SetItems(items)
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("MHISTAT - CONTROL"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | ↑/↓ select, ←/→ change, enter type value, 'r' reset, 'q' quit", m.connInfo)))
	s.WriteString("\n\n")

	s.WriteString(m.renderLinkState())
	s.WriteString("\n\n")

	s.WriteString(m.params.View())
	s.WriteString("\n")
	if m.focus == focusInput {
		s.WriteString(labelStyle.Render("Value: "))
		s.WriteString(m.input.View())
		s.WriteString(headerStyle.Render("  enter apply, esc cancel"))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	if m.lastStatus != nil {
		s.WriteString(labelStyle.Render("Unit Status:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(renderStatus(*m.lastStatus, m.lastFrame)))
		s.WriteString("\n")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("Downlink: % X", m.driver.Transmit())))
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(renderLog(m.eventLog, m.height-listHeight(m.height)-16, m.width))
	return s.String()
}

func (m controlModel) renderLinkState() string {
	st := m.stats
	var state string
	switch {
	case !m.connected:
		state = warningStyle.Render("⏳ Connecting...")
	case m.driver.Connected():
		state = valueStyle.Render("✓ Unit online")
	default:
		state = warningStyle.Render("⏳ Waiting for frames...")
	}
	return fmt.Sprintf("%s   %s %s   %s %s   %s %s",
		state,
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", st.TotalFrames)),
		labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", st.Errors())),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
	)
}
