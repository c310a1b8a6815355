// Package tui renders a live terminal monitor for a running simulation:
// step counter, particle population, circulation, and a scrolling sparkline
// of the circulation history.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// StepInfo is one progress sample from the step loop.
type StepInfo struct {
	Step      int
	Total     int
	Time      float64
	Particles int
	Circ      float64
	Err       error
	Done      bool
}

// Model is the bubbletea model; feed it StepInfo values over the channel
// returned by Updates.
type Model struct {
	updates chan StepInfo

	last    StepInfo
	history []float64
	err     error
	done    bool
}

func NewModel() *Model {
	return &Model{updates: make(chan StepInfo, 16)}
}

// Updates is the channel the step loop reports into.
func (m *Model) Updates() chan<- StepInfo { return m.updates }

func (m *Model) Init() tea.Cmd { return m.wait() }

func (m *Model) wait() tea.Cmd {
	return func() tea.Msg { return <-m.updates }
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case StepInfo:
		m.last = msg
		m.history = append(m.history, msg.Circ)
		if len(m.history) > 60 {
			m.history = m.history[len(m.history)-60:]
		}
		if msg.Err != nil {
			m.err = msg.Err
			return m, tea.Quit
		}
		if msg.Done {
			m.done = true
			return m, tea.Quit
		}
		return m, m.wait()
	}
	return m, nil
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("vortex2d"))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-12s", label)))
		b.WriteString(valueStyle.Render(value))
		b.WriteByte('\n')
	}
	row("step", fmt.Sprintf("%d / %d", m.last.Step, m.last.Total))
	row("time", fmt.Sprintf("%.4f", m.last.Time))
	row("particles", fmt.Sprintf("%d", m.last.Particles))
	row("circulation", fmt.Sprintf("%+.6f", m.last.Circ))

	b.WriteByte('\n')
	b.WriteString(barStyle.Render(sparkline(m.history, 60)))
	b.WriteByte('\n')

	switch {
	case m.err != nil:
		b.WriteString(fmt.Sprintf("\nerror: %v\n", m.err))
	case m.done:
		b.WriteString(doneStyle.Render("\ndone") + "\n")
	default:
		b.WriteString(labelStyle.Render("\npress q to stop\n"))
	}
	return b.String()
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

func sparkline(vals []float64, width int) string {
	if len(vals) == 0 {
		return strings.Repeat(" ", width)
	}
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	var b strings.Builder
	for _, v := range vals {
		idx := 0
		if span > 0 {
			idx = int((v - lo) / span * float64(len(sparkRunes)-1))
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}
