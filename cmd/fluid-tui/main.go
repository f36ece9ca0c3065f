package main

import (
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/fluidnet/pkg/config"
	"github.com/dd0wney/fluidnet/pkg/entity"
	"github.com/dd0wney/fluidnet/pkg/fluid"
	"github.com/dd0wney/fluidnet/pkg/metrics"
	"github.com/dd0wney/fluidnet/pkg/sim"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			MarginLeft(2).
			MarginTop(1)

	statsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(0, 2).
			MarginLeft(2)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00")).
			Bold(true)

	barFullStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AAFF"))
	barEmptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#333333"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

type keyMap struct {
	Pause key.Binding
	Step  key.Binding
	Quit  key.Binding
}

var keys = keyMap{
	Pause: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "pause/resume"),
	),
	Step: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "single step"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Step, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Pause, k.Step, k.Quit}}
}

type tickMsg time.Time

type model struct {
	system *sim.System
	cfg    config.Config
	table  table.Model
	help   help.Model
	paused bool
}

func newModel() model {
	cfg := config.Default()
	system := sim.New(sim.Options{
		Config:  cfg,
		Metrics: metrics.NewRegistry(cfg.MetricsNamespace),
	})
	if err := buildDemoWorld(system); err != nil {
		log.Fatalf("Failed to build demo world: %v", err)
	}

	columns := []table.Column{
		{Title: "Net", Width: 5},
		{Title: "Fluid", Width: 14},
		{Title: "Volume", Width: 16},
		{Title: "Fill", Width: 22},
		{Title: "Members", Width: 8},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#000000")).
		Background(lipgloss.Color("#00FFFF"))
	t.SetStyles(styles)

	return model{system: system, cfg: cfg, table: t, help: help.New()}
}

// buildDemoWorld is a trimmed version of the headless demo's refinery
// layout: a water line and a crude oil line, far enough apart to stay
// separate networks.
func buildDemoWorld(s *sim.System) error {
	cap10 := 10.0
	cap250 := 250.0

	spawn := func(p *entity.Participant) error {
		_, err := s.Spawn(p)
		return err
	}

	if err := spawn(&entity.Participant{
		Position:   entity.Position{X: 0, Y: 0},
		Adjacency:  entity.AllSides(),
		Production: &entity.ProductionSpec{Kind: fluid.Water, RatePerSecond: 20},
	}); err != nil {
		return err
	}
	for x := 1; x <= 4; x++ {
		if err := spawn(&entity.Participant{
			Position:  entity.Position{X: x, Y: 0},
			Adjacency: entity.AllSides(),
			Capacity:  &cap10,
		}); err != nil {
			return err
		}
	}
	if err := spawn(&entity.Participant{
		Position:  entity.Position{X: 5, Y: 0},
		Adjacency: entity.AllSides(),
		Capacity:  &cap250,
	}); err != nil {
		return err
	}
	if err := spawn(&entity.Participant{
		Position:    entity.Position{X: 6, Y: 0},
		Adjacency:   entity.AllSides(),
		Consumption: &entity.ConsumptionSpec{Kind: fluid.Water, RatePerSecond: 12, Efficiency: 1},
	}); err != nil {
		return err
	}

	if err := spawn(&entity.Participant{
		Position:   entity.Position{X: 0, Y: 3},
		Adjacency:  entity.AllSides(),
		Production: &entity.ProductionSpec{Kind: fluid.CrudeOil, RatePerSecond: 8},
	}); err != nil {
		return err
	}
	for x := 1; x <= 6; x++ {
		if err := spawn(&entity.Participant{
			Position:  entity.Position{X: x, Y: 3},
			Adjacency: entity.AllSides(),
			Capacity:  &cap10,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (m model) Init() tea.Cmd {
	return tick(m.cfg.TickInterval())
}

func tick(interval float64) tea.Cmd {
	return tea.Tick(time.Duration(interval*float64(time.Second)), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Pause):
			m.paused = !m.paused
			return m, nil
		case key.Matches(msg, keys.Step):
			if m.paused {
				m.system.Update(m.cfg.TickInterval())
				m.refreshTable()
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case tickMsg:
		if !m.paused {
			m.system.Update(m.cfg.TickInterval())
			m.refreshTable()
		}
		return m, tick(m.cfg.TickInterval())
	}
	return m, nil
}

func (m *model) refreshTable() {
	rows := make([]table.Row, 0, 8)
	for _, id := range m.system.NetworkIDs() {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", id),
			m.system.EstablishedKind(id).String(),
			fmt.Sprintf("%.1f / %.1f L", m.system.TotalFluid(id), m.system.TotalCapacity(id)),
			fillBar(m.system.FillRatio(id), 20),
			fmt.Sprintf("%d", m.system.MemberCount(id)),
		})
	}
	m.table.SetRows(rows)
}

// fillBar renders a fixed-width pressure gauge.
func fillBar(ratio float64, width int) string {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	full := int(ratio * float64(width))
	bar := ""
	for i := 0; i < width; i++ {
		if i < full {
			bar += barFullStyle.Render("█")
		} else {
			bar += barEmptyStyle.Render("░")
		}
	}
	return bar
}

func (m model) View() string {
	title := titleStyle.Render("🌊 fluidnet live network dashboard")

	status := fmt.Sprintf("tick %d   networks %d", m.system.Tick(), len(m.system.NetworkIDs()))
	if m.paused {
		status += "   " + pausedStyle.Render("⏸ PAUSED")
	}

	return title + "\n" +
		statsBoxStyle.Render(status) + "\n\n" +
		m.table.View() + "\n" +
		helpStyle.Render(m.help.View(keys)) + "\n"
}

func main() {
	p := tea.NewProgram(newModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("TUI crashed: %v", err)
	}
}
