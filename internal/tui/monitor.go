// SPDX-License-Identifier: MIT

// Package tui is the terminal monitor: a live trace, amplitude, mean and RMS
// per channel, connection state and band powers, with keys for the filter
// toggle, a pipeline reset and the display scales.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"eeg/internal/analysis"
	"eeg/internal/pipeline"
)

// Display scale limits.
const (
	MinAmplitudeScale = 5.0    // µV
	MaxAmplitudeScale = 1000.0 // µV
	MinTimeScale      = 1.0    // ms per column
	MaxTimeScale      = 64.0   // ms per column

	defaultWidth = 80
	labelWidth   = 6
	lowBattery   = 20.0 // percent
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8A8A8"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E0A030")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Width(labelWidth).
			Bold(true)
)

// Controls is the part of the engine the monitor drives.
type Controls interface {
	Connected() bool
	Battery() (percent float64, ok bool)
	Reset()
	Pipeline() *pipeline.Pipeline
}

// BandSource provides the latest band powers of a channel.
type BandSource interface {
	Latest(ch int) (analysis.BandPower, bool)
}

type keyMap struct {
	Filter   key.Binding
	Reset    key.Binding
	AmpUp    key.Binding
	AmpDown  key.Binding
	TimeDown key.Binding
	TimeUp   key.Binding
	Quit     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Filter, k.Reset, k.AmpUp, k.AmpDown, k.TimeDown, k.TimeUp, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Filter:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
	Reset:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
	AmpUp:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "µV range")),
	AmpDown:  key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "µV range")),
	TimeDown: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "faster")),
	TimeUp:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "slower")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Options configure a Monitor.
type Options struct {
	Session        string
	Source         string
	AmplitudeScale float64       // ±µV across a trace
	TimeScale      float64       // ms per column
	Refresh        time.Duration // redraw period
}

type tickMsg time.Time

// Monitor is the Bubble Tea model of the live display.
type Monitor struct {
	ctrl  Controls
	trace *Trace
	bands BandSource
	opts  Options
	help  help.Model

	width     int
	connected bool
	battery   float64
	hasBatt   bool
	filter    bool
	snapshot  []pipeline.ChannelSnapshot
}

// NewMonitor draws the state of ctrl. trace supplies the waveforms; bands
// may be nil.
func NewMonitor(ctrl Controls, trace *Trace, bands BandSource, opts Options) Monitor {
	if opts.AmplitudeScale <= 0 {
		opts.AmplitudeScale = 50
	}
	if opts.TimeScale <= 0 {
		opts.TimeScale = 8
	}
	if opts.Refresh <= 0 {
		opts.Refresh = 50 * time.Millisecond
	}
	m := Monitor{
		ctrl:  ctrl,
		trace: trace,
		bands: bands,
		opts:  opts,
		help:  help.New(),
		width: defaultWidth,
	}
	m.refresh()
	return m
}

func (m Monitor) Init() tea.Cmd {
	return m.tick()
}

func (m Monitor) tick() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Monitor) refresh() {
	p := m.ctrl.Pipeline()
	m.connected = m.ctrl.Connected()
	m.battery, m.hasBatt = m.ctrl.Battery()
	m.filter = p.FilterEnabled()
	m.snapshot = p.Snapshot()
}

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tickMsg:
		m.refresh()
		return m, m.tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Filter):
			p := m.ctrl.Pipeline()
			p.SetFilterEnabled(!p.FilterEnabled())
		case key.Matches(msg, keys.Reset):
			m.ctrl.Reset()
		case key.Matches(msg, keys.AmpUp):
			m.opts.AmplitudeScale = min(m.opts.AmplitudeScale*2, MaxAmplitudeScale)
		case key.Matches(msg, keys.AmpDown):
			m.opts.AmplitudeScale = max(m.opts.AmplitudeScale/2, MinAmplitudeScale)
		case key.Matches(msg, keys.TimeDown):
			m.opts.TimeScale = max(m.opts.TimeScale/2, MinTimeScale)
		case key.Matches(msg, keys.TimeUp):
			m.opts.TimeScale = min(m.opts.TimeScale*2, MaxTimeScale)
		}
		m.refresh()
	}
	return m, nil
}

func (m Monitor) View() string {
	var sb strings.Builder
	cfg := m.ctrl.Pipeline().Config()

	status := warnStyle.Render("disconnected")
	if m.connected {
		status = highlightStyle.Render("connected")
	}
	if m.hasBatt {
		batt := fmt.Sprintf("battery %.0f%%", m.battery)
		if m.battery < lowBattery {
			batt = warnStyle.Render(batt)
		}
		status += " " + batt
	}
	filter := "filter off"
	if m.filter {
		filter = fmt.Sprintf("filter %.1f-%.1f Hz", cfg.LowCutoff, cfg.HighCutoff)
	}
	fmt.Fprintf(&sb, "%s %s  %s\n", titleStyle.Render("EEG Monitor"), status,
		infoStyle.Render(fmt.Sprintf("%s · %.0f Hz · %s · session %s",
			m.opts.Source, cfg.SamplingFrequency, filter, m.opts.Session)))
	sb.WriteString("\n")

	columns := max(m.width-labelWidth, 8)
	stride := m.opts.TimeScale * cfg.SamplingFrequency / 1000

	for _, s := range m.snapshot {
		fmt.Fprintf(&sb, "%s%8.2f µV  mean %8.2f  rms %8.2f",
			labelStyle.Render(s.Name), s.Last.Amplitude, s.Last.Mean, s.Last.RMS)
		if s.Dropped > 0 {
			sb.WriteString(warnStyle.Render(fmt.Sprintf("  dropped %d", s.Dropped)))
		}
		sb.WriteString("\n")

		values := m.trace.Columns(s.Electrode, columns, stride)
		fmt.Fprintf(&sb, "%s%s\n", strings.Repeat(" ", labelWidth), sparkline(values, m.opts.AmplitudeScale))

		if line := m.bandLine(s.Electrode); line != "" {
			fmt.Fprintf(&sb, "%s%s\n", strings.Repeat(" ", labelWidth), line)
		}
	}

	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render(fmt.Sprintf("±%.0f µV · %.0f ms/col", m.opts.AmplitudeScale, m.opts.TimeScale)))
	sb.WriteString("\n")
	sb.WriteString(m.help.View(keys))
	return sb.String()
}

func (m Monitor) bandLine(ch int) string {
	if m.bands == nil {
		return ""
	}
	bp, ok := m.bands.Latest(ch)
	if !ok {
		return ""
	}
	dominant := bp.Dominant()
	parts := make([]string, 0, len(analysis.EEGBands))
	for _, b := range analysis.EEGBands {
		rel, ok := bp.Relative[b.Name]
		if !ok {
			continue
		}
		part := fmt.Sprintf("%s %3.0f%%", b.Name, rel*100)
		if b.Name == dominant {
			part = highlightStyle.Render(part)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "  ")
}

// Run shows m until the user quits or ctx is cancelled.
func Run(ctx context.Context, m Monitor) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
