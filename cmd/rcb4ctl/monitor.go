package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/708yamaguchi/rcb4/pkg/monitor"
)

type MonitorCommand struct {
	connectOpts
	Hz int `long:"hz" default:"20" description:"Sampling frequency"`
}

const (
	chartHeaderHeight = 2 // title + blank line
	chartLegendHeight = 2 // legend row + blank
	chartFooterHeight = 7 // log box height
	maxLogs           = 5 // number of log messages to show
	borderSize        = 2 // chart border
)

// Servo colors cycle with the dense servo index, so the legend stays stable
// across runs as long as the bus population does.
var servoColors = []string{
	"196", // red
	"208", // orange
	"226", // yellow
	"46",  // green
	"51",  // cyan
	"201", // magenta
	"39",  // blue
	"135", // purple
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type monitorModel struct {
	poller     *monitor.Poller
	chart      *streamlinechart.Model
	width      int      // terminal width
	height     int      // terminal height
	logs       []string // last N log messages
	quitting   bool
	servoIDs   []int     // styled data sets, in dense index order
	lastAngles []float64 // track previous angles to detect movement
}

func datasetName(servoID int) string {
	return fmt.Sprintf("servo %d", servoID)
}

func (m *monitorModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// ensureStyles registers a chart data set per servo. The bus population is
// only known after discovery (and can change after a rescan), so styling is
// done on the first snapshot that mentions each servo.
func (m *monitorModel) ensureStyles(servoIDs []int) {
	if len(servoIDs) == len(m.servoIDs) {
		same := true
		for i, id := range servoIDs {
			if m.servoIDs[i] != id {
				same = false
				break
			}
		}
		if same {
			return
		}
	}
	for i, id := range servoIDs {
		color := servoColors[i%len(servoColors)]
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		m.chart.SetDataSetStyles(datasetName(id), runes.ThinLineStyle, style)
	}
	m.servoIDs = append([]int(nil), servoIDs...)
	m.lastAngles = nil
}

// hasMovement checks if any servo angle has changed from the last snapshot
func (m *monitorModel) hasMovement(angles []float64) bool {
	if m.lastAngles == nil || len(m.lastAngles) != len(angles) {
		return true // first reading, consider it movement
	}
	for i, a := range angles {
		if a != m.lastAngles[i] {
			return true
		}
	}
	return false
}

// Messages from the poller
type stateMsg monitor.State
type logMsg string

func waitForState(p *monitor.Poller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-p.States())
	}
}

func waitForLog(p *monitor.Poller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-p.Logs())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *monitorModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - chartHeaderHeight - chartLegendHeight - chartFooterHeight - borderSize
	if height < 10 {
		height = 10
	}
	return width, height
}

func (m *monitorModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialMonitorModel(p *monitor.Poller) monitorModel {
	// ICS pulses span 3500..11500, which the joint transform maps to a bit
	// over +/-133 degrees.
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-135, 135),
	)

	return monitorModel{
		poller: p,
		chart:  &chart,
	}
}

func (m monitorModel) Init() tea.Cmd {
	// Start listening for state and log updates
	return tea.Batch(
		waitForState(m.poller),
		waitForLog(m.poller),
	)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case stateMsg:
		state := monitor.State(msg)
		if state.Angles != nil {
			m.ensureStyles(state.ServoIDs)
			// Only update chart if there's movement (freeze when idle)
			if m.hasMovement(state.Angles) {
				for i, id := range state.ServoIDs {
					m.chart.PushDataSet(datasetName(id), state.Angles[i])
				}
				m.chart.DrawAll()
				m.lastAngles = append([]float64(nil), state.Angles...)
			}
		}
		return m, waitForState(m.poller)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.poller)
	}

	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Monitor stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("RCB-4 Monitor"))
	sb.WriteString(fmt.Sprintf(" - %d Hz", m.poller.Hz()))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(m.renderLegend())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4).
		Foreground(lipgloss.Color("9")) // bright red

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m *monitorModel) renderLegend() string {
	if len(m.servoIDs) == 0 {
		return statusStyle.Render("discovering servos...")
	}
	var items []string
	for i, id := range m.servoIDs {
		color := servoColors[i%len(servoColors)]
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
		item := colorStyle.Render("━━") + " " + datasetName(id)
		items = append(items, item)
	}
	return strings.Join(items, "  ")
}

func (c *MonitorCommand) Execute(args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := c.openBoard(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening controller: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	poller := monitor.New(b, monitor.Config{Hz: c.Hz})

	// Start polling in background
	go func() {
		if err := poller.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Poller error: %v", err)
		}
	}()

	// Run TUI
	p := tea.NewProgram(initialMonitorModel(poller), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}

	return nil
}
