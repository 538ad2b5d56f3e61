// Package ui renders engine loading and conversion progress as a
// Bubble Tea program.
package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/heirakug/video-to-audio-converter/internal/convert"
	"github.com/heirakug/video-to-audio-converter/internal/engine"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	barFillStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	barRestStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
)

type download struct {
	received int64
	total    int64
}

// ConvertModel drives the terminal display for one conversion: engine
// load (with artifact downloads) followed by the extraction stages.
type ConvertModel struct {
	inputName string

	spinner     spinner.Model
	width       int
	engineState engine.State
	downloads   map[string]*download
	status      convert.Status
	percent     int
	warnings    []string

	done       bool
	outputPath string
	err        error
}

// NewConvertModel returns a model for converting the named input.
func NewConvertModel(inputName string) ConvertModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return ConvertModel{
		inputName: inputName,
		spinner:   sp,
		width:     80,
		downloads: make(map[string]*download),
	}
}

// Err returns the conversion error once the program has quit.
func (m ConvertModel) Err() error {
	return m.err
}

// Init starts the spinner.
func (m ConvertModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles loader and orchestrator messages.
func (m ConvertModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.err = fmt.Errorf("canceled")
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case EngineStateMsg:
		m.engineState = msg.State

	case DownloadProgressMsg:
		d, ok := m.downloads[msg.Name]
		if !ok {
			d = &download{}
			m.downloads[msg.Name] = d
		}
		d.received = msg.Received
		d.total = msg.Total

	case ConvertStatusMsg:
		m.status = msg.Status

	case ConvertProgressMsg:
		m.percent = msg.Percent

	case ConvertWarningMsg:
		m.warnings = append(m.warnings, msg.Text)

	case ConvertDoneMsg:
		m.done = true
		m.outputPath = msg.OutputPath
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// View renders the current phase.
func (m ConvertModel) View() string {
	var lines []string
	lines = append(lines, titleStyle.Render("Extracting audio from "+m.inputName))

	switch {
	case m.done && m.err != nil:
		lines = append(lines, errorStyle.Render("✗ "+m.err.Error()))
	case m.done:
		lines = append(lines, successStyle.Render("✓ Saved "+m.outputPath))
	case m.engineState != engine.StateReady:
		lines = append(lines, m.spinner.View()+" Loading engine ("+m.engineState.String()+")")
		lines = append(lines, m.downloadLines()...)
	default:
		lines = append(lines, m.spinner.View()+" "+stageLabel(m.status))
		if m.status == convert.StatusExtracting && m.width > 20 {
			lines = append(lines, renderBar(float64(m.percent)/100, m.width-8)+fmt.Sprintf(" %3d%%", m.percent))
		}
	}

	for _, w := range m.warnings {
		lines = append(lines, warningStyle.Render("! "+w))
	}

	return strings.Join(lines, "\n") + "\n"
}

func (m ConvertModel) downloadLines() []string {
	names := make([]string, 0, len(m.downloads))
	for name := range m.downloads {
		names = append(names, name)
	}
	sort.Strings(names)

	var lines []string
	for _, name := range names {
		d := m.downloads[name]
		line := fmt.Sprintf("  %s: %s", name, humanize.IBytes(uint64(d.received)))
		if d.total > 0 {
			line += " / " + humanize.IBytes(uint64(d.total))
			if m.width > 20 {
				line += " " + renderBar(float64(d.received)/float64(d.total), 20)
			}
		}
		lines = append(lines, subtleStyle.Render(line))
	}
	return lines
}

func stageLabel(s convert.Status) string {
	switch s {
	case convert.StatusUploading:
		return "Preparing input..."
	case convert.StatusProbing:
		return "Inspecting streams..."
	case convert.StatusExtracting:
		return "Extracting audio..."
	case convert.StatusFinalizing:
		return "Writing output..."
	default:
		return "Starting..."
	}
}

func renderBar(fraction float64, width int) string {
	if width < 10 {
		return ""
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(width))
	return barFillStyle.Render(strings.Repeat("█", filled)) +
		barRestStyle.Render(strings.Repeat("░", width-filled))
}
