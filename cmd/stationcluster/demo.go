package main

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/1F47E/station-cluster/pkg/cluster"
	"github.com/1F47E/station-cluster/pkg/models"
)

const demoMaxZoom = 18

var (
	demoStations int
	demoDelay    time.Duration
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Interactive zoom sweep in the terminal",
	Long: `Load (or generate) stations, build the quadtree and step through zoom
levels 0 to 18, showing how markers split apart as the map zooms in.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		final, err := tea.NewProgram(newDemoModel()).Run()
		if err != nil {
			return err
		}
		if m, ok := final.(demoModel); ok && m.err != nil {
			return m.err
		}
		return nil
	},
}

func init() {
	demoCmd.Flags().IntVarP(&demoStations, "stations", "n", 50000, "Stations to generate when no snapshot exists")
	demoCmd.Flags().DurationVar(&demoDelay, "delay", 300*time.Millisecond, "Pause between zoom levels")
}

type stage int

const (
	stageLoading stage = iota
	stageBuilding
	stageSweeping
	stageDone
)

type demoModel struct {
	stage    stage
	spinner  spinner.Model
	progress progress.Model

	builder *cluster.Builder
	points  []models.Point
	result  cluster.BuildResult

	buildTime time.Duration
	rows      []sweepRow
	messages  []string
	err       error
	width     int
}

type loadedMsg struct {
	points    []models.Point
	generated bool
}
type builtMsg struct {
	result  cluster.BuildResult
	elapsed time.Duration
}
type zoomMsg sweepRow
type nextZoomMsg struct{}
type errMsg struct{ err error }

func newDemoModel() demoModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return demoModel{
		stage:    stageLoading,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
		builder:  cluster.NewBuilder(cfg.ClusterOptions(logger, nil)),
		width:    80,
	}
}

func (m demoModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, loadDemoStations)
}

func loadDemoStations() tea.Msg {
	points, err := loadStations()
	if err == nil {
		return loadedMsg{points: points}
	}
	if !fromPostGIS && errors.Is(err, fs.ErrNotExist) {
		return loadedMsg{points: generateStations(demoStations, runtime.NumCPU(), time.Now().UnixNano(), 0), generated: true}
	}
	return errMsg{err: err}
}

func (m demoModel) build() tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		result := m.builder.Build(m.points)
		return builtMsg{result: result, elapsed: time.Since(start)}
	}
}

func (m demoModel) extract(zoom float64) tea.Cmd {
	return func() tea.Msg {
		rows := sweep(m.builder, zoom, zoom, 1)
		return zoomMsg(rows[0])
	}
}

func (m demoModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 10
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case errMsg:
		m.err = msg.err
		return m, tea.Quit

	case loadedMsg:
		m.points = msg.points
		if msg.generated {
			m.addMessage(fmt.Sprintf("No snapshot found, generated %d stations", len(msg.points)))
		} else {
			m.addMessage(fmt.Sprintf("Loaded %d stations", len(msg.points)))
		}
		m.stage = stageBuilding
		return m, m.build()

	case builtMsg:
		m.result = msg.result
		m.buildTime = msg.elapsed
		m.addMessage(fmt.Sprintf("Built quadtree: %d nodes, depth %d", msg.result.Stats.Nodes, msg.result.Stats.MaxDepth))
		m.stage = stageSweeping
		return m, m.extract(0)

	case zoomMsg:
		m.rows = append(m.rows, sweepRow(msg))
		cmd := m.progress.SetPercent(float64(len(m.rows)) / float64(demoMaxZoom+1))
		if len(m.rows) > demoMaxZoom {
			m.stage = stageDone
			return m, cmd
		}
		return m, tea.Batch(cmd, tea.Tick(demoDelay, func(time.Time) tea.Msg { return nextZoomMsg{} }))

	case nextZoomMsg:
		return m, m.extract(float64(len(m.rows)))
	}

	return m, nil
}

func (m *demoModel) addMessage(s string) {
	m.messages = append(m.messages, s)
	if len(m.messages) > 5 {
		m.messages = m.messages[1:]
	}
}

func (m demoModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Station Cluster Demo"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
		return b.String()
	}

	switch m.stage {
	case stageLoading:
		b.WriteString(m.spinner.View() + " Loading stations...\n")

	case stageBuilding:
		b.WriteString(m.spinner.View() + fmt.Sprintf(" Building quadtree over %d stations...\n", len(m.points)))

	case stageSweeping:
		b.WriteString(subtitleStyle.Render("Sweeping zoom levels"))
		b.WriteString("\n\n")
		b.WriteString(m.progress.View())
		b.WriteString("\n\n")
		b.WriteString(m.renderRows())

	case stageDone:
		b.WriteString(m.renderRows())
		b.WriteString(m.renderSummary())
	}

	if len(m.messages) > 0 {
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("Recent activity:"))
		b.WriteString("\n")
		for _, msg := range m.messages {
			b.WriteString(dimStyle.Render("• " + msg))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Press 'q' to quit"))

	return b.String()
}

func (m demoModel) renderRows() string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("%-6s %-10s %-8s %-9s %s", "ZOOM", "MIN DIST", "MARKERS", "CLUSTERS", "")))
	b.WriteString("\n")

	maxMarkers := 1
	for _, row := range m.rows {
		if row.Markers > maxMarkers {
			maxMarkers = row.Markers
		}
	}

	barWidth := m.width - 40
	if barWidth < 10 {
		barWidth = 10
	}
	for _, row := range m.rows {
		bar := strings.Repeat("█", 1+row.Markers*(barWidth-1)/maxMarkers)
		b.WriteString(fmt.Sprintf("%-6g %-10g %-8d %-9d %s\n",
			row.Zoom, row.MinDistance, row.Markers, row.Clusters, infoStyle.Render(bar)))
	}
	return b.String()
}

func (m demoModel) renderSummary() string {
	covered := true
	for _, row := range m.rows {
		if row.Covered != m.result.Inserted {
			covered = false
		}
	}

	check := successStyle.Render("every zoom covers every station exactly once")
	if !covered {
		check = errorStyle.Render("coverage mismatch at one or more zoom levels")
	}

	return boxStyle.Render(
		infoStyle.Render("Summary:\n\n") +
			fmt.Sprintf("Stations indexed: %s (%d dropped)\n", statStyle.Render(fmt.Sprintf("%d", m.result.Inserted)), m.result.Dropped) +
			fmt.Sprintf("Build time: %s\n", statStyle.Render(m.buildTime.String())) +
			fmt.Sprintf("Tree: %d nodes, %d leaves, depth %d\n", m.result.Stats.Nodes, m.result.Stats.Leaves, m.result.Stats.MaxDepth) +
			check,
	)
}
