// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/mhistat/pkg/mhiac"
)

type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notices
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	stats         *mhiac.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	invalidBytes  uint64
	width         int
	height        int
	quitting      bool
	closed        bool
	lastFrame     *mhiac.Frame
	lastStatus    *mhiac.Status
}

type tickMsg time.Time

// formatElapsed renders a duration as a short human-friendly string
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	parts := []string{}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	if len(parts) == 1 {
		return parts[0]
	}
	last := parts[len(parts)-1]
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + last
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func initialModel(connInfo string, statsInterval int, showAll bool) model {
	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         mhiac.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case syncMsg:
		m.synchronized = true
		m.invalidBytes = msg.invalidBytes
		if msg.invalidBytes > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d bytes", msg.invalidBytes), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case connClosedMsg:
		m.closed = true
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Connection closed: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection closed", true)
		}

	case detectionMsg:
		if msg.frame == nil {
			m.stats.Update(nil, msg.decodeErr, nil)
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), true)
			break
		}

		m.stats.Update(msg.frame, nil, msg.validationErrors)
		status := mhiac.DecodeStatus(msg.frame)
		m.lastFrame = msg.frame
		m.lastStatus = &status

		if len(msg.validationErrors) > 0 {
			for _, err := range msg.validationErrors {
				m.addLogEntry(fmt.Sprintf("%s: %s", mhiac.FormatAnomaly(err.Type), err.Message), !err.Type.Advisory())
			}
		} else if m.showAll {
			m.addLogEntry(mhiac.FormatStatus(status), false)
		}
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	m.errorLog = append(m.errorLog, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// Styles shared by the error detection and control views
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// renderStatus renders a decoded status as a labelled block
func renderStatus(s mhiac.Status, frame *mhiac.Frame) string {
	var b strings.Builder
	power := valueStyle.Render(s.Power.String())
	if s.Power == mhiac.PowerOff {
		power = headerStyle.Render(s.Power.String())
	}
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s\n",
		labelStyle.Render("Power:"), power,
		labelStyle.Render("Mode:"), valueStyle.Render(s.Mode.String()),
		labelStyle.Render("Setpoint:"), valueStyle.Render(fmt.Sprintf("%.1f°C", s.Setpoint)),
	)
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s\n",
		labelStyle.Render("Fan:"), valueStyle.Render(s.Fan.String()),
		labelStyle.Render("Vane H:"), valueStyle.Render(s.VaneHoriz.String()),
		labelStyle.Render("Room:"), valueStyle.Render(fmt.Sprintf("%.2f°C", s.RoomTemperature)),
	)
	if s.Stale {
		b.WriteString(warningStyle.Render("Changed by remote, latest status not visible"))
		b.WriteString("\n")
	}
	if !s.Valid {
		b.WriteString(errorStyle.Render("Checksum mismatch"))
		b.WriteString("\n")
	}
	if frame != nil {
		data := frame.Data()
		b.WriteString(headerStyle.Render(fmt.Sprintf("hdr=% X data=% X sum=0x%04X", frame.Header(), data[:], frame.Trailer())))
	}
	return b.String()
}

func renderLog(entries []errorLogEntry, lines, width int) string {
	if lines < 5 {
		lines = 5
	}
	var b strings.Builder
	start := len(entries) - lines
	if start < 0 {
		start = 0
	}
	if len(entries) == 0 {
		b.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range entries[start:] {
		ts := headerStyle.Render(entry.timestamp.Format("01/02/06 15:04:05.000"))
		if entry.isError {
			fmt.Fprintf(&b, "%s %s\n", ts, errorStyle.Render("✗ "+entry.message))
		} else {
			fmt.Fprintf(&b, "%s %s\n", ts, warningStyle.Render("ℹ "+entry.message))
		}
	}
	return boxStyle.Width(width - 4).Render(b.String())
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("MHISTAT - ERROR DETECTION"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Running %s | 'r' reset, 'q' quit",
		m.connInfo, mode, formatElapsed(time.Since(m.stats.StartTime)))))
	s.WriteString("\n\n")

	switch {
	case m.closed:
		s.WriteString(errorStyle.Render("✗ Connection closed"))
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
	default:
		s.WriteString(valueStyle.Render("✓ Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d bytes)", m.invalidBytes)))
		}
	}
	s.WriteString("\n\n")

	st := m.stats
	errorCount := st.Errors()
	var stats strings.Builder
	fmt.Fprintf(&stats, "%s %s   %s %s   %s %s\n",
		labelStyle.Render("Total:"), valueStyle.Render(fmt.Sprintf("%d", st.TotalFrames)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.ValidFrames, percentOf(st.ValidFrames, st.TotalFrames))),
		labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", errorCount, percentOf(errorCount, st.TotalFrames))),
	)
	if st.ChecksumErrors > 0 || st.StreamErrors > 0 {
		fmt.Fprintf(&stats, "%s %s   %s %s\n",
			labelStyle.Render("Checksum:"), errorStyle.Render(fmt.Sprintf("%d", st.ChecksumErrors)),
			labelStyle.Render("Stream:"), errorStyle.Render(fmt.Sprintf("%d", st.StreamErrors)),
		)
	}
	if st.Anomalies > 0 {
		fmt.Fprintf(&stats, "%s %s (%s: %d, %s: %d, %s: %d, %s: %d)\n",
			labelStyle.Render("Anomalies:"), warningStyle.Render(fmt.Sprintf("%d", st.Anomalies)),
			headerStyle.Render("mode"), st.UnknownModes,
			headerStyle.Render("fan"), st.UndefinedFans,
			headerStyle.Render("header"), st.HeaderMismatch,
			headerStyle.Render("setpoint"), st.SetpointRange,
		)
	}
	if st.Advisories > 0 {
		fmt.Fprintf(&stats, "%s %s (%s: %d, %s: %d)\n",
			labelStyle.Render("Advisories:"), warningStyle.Render(fmt.Sprintf("%d", st.Advisories)),
			headerStyle.Render("remote"), st.StaleReports,
			headerStyle.Render("reserved"), st.ReservedNonZero,
		)
	}
	errRate := valueStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
	if st.ErrorRate > 0 {
		errRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
	}
	fmt.Fprintf(&stats, "%s %s   %s %s",
		labelStyle.Render("Frame Rate:"), valueStyle.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
		labelStyle.Render("Error Rate:"), errRate,
	)
	s.WriteString(boxStyle.Render(stats.String()))
	s.WriteString("\n\n")

	if m.lastStatus != nil {
		s.WriteString(labelStyle.Render("Latest Status:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(renderStatus(*m.lastStatus, m.lastFrame)))
		s.WriteString("\n\n")
	}

	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(renderLog(m.errorLog, m.height-18, m.width))
	return s.String()
}

func percentOf(n, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100.0 / float64(total)
}
