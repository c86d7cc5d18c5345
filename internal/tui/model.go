package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/vito/progrock"
	"go.trai.ch/strata/internal/ui/style"
)

const (
	statusRunning   = "running"
	statusCompleted = "completed"
	statusCached    = "cached"
	statusFailed    = "failed"
)

// logTail is the number of output lines shown below a running or failed step.
const logTail = 5

// VertexState represents the current state of a build step in the TUI.
type VertexState struct {
	ID     string
	Name   string
	Status string
}

type styles struct {
	running   lipgloss.Style
	completed lipgloss.Style
	cached    lipgloss.Style
	failed    lipgloss.Style
	log       lipgloss.Style
}

// Model is the Bubble Tea model for the TUI, managing vertices and tape updates.
type Model struct {
	tape     TapeSource
	vertices []VertexState
	logs     map[string][]string
	width    int
	height   int
	spinner  spinner.Model
	styles   styles
}

// NewModel creates a new TUI model with the given tape source.
func NewModel(tape TapeSource) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(style.Accent)

	return &Model{
		tape:    tape,
		logs:    make(map[string][]string),
		spinner: s,
		styles: styles{
			running:   lipgloss.NewStyle().Foreground(style.Accent),
			completed: lipgloss.NewStyle().Foreground(style.Green),
			cached:    lipgloss.NewStyle().Foreground(style.Yellow),
			failed:    lipgloss.NewStyle().Foreground(style.Red),
			log:       lipgloss.NewStyle().Foreground(style.Muted),
		},
	}
}

// Run shows the model for tape on w until the tape ends or ctx is done.
func Run(ctx context.Context, tape TapeSource, w io.Writer) error {
	p := tea.NewProgram(NewModel(tape),
		tea.WithContext(ctx),
		tea.WithOutput(w),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// Init initializes the model and starts reading from the tape.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		WaitForTape(m.tape),
		m.spinner.Tick,
	)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case MsgTapeUpdate:
		m.processUpdate(msg.Update)
		return m, WaitForTape(m.tape)
	case MsgTapeEnded:
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) processUpdate(update *progrock.StatusUpdate) {
	if update == nil {
		return
	}
	for _, v := range update.Vertexes {
		m.updateOrAddVertex(v)
	}
	for _, l := range update.Logs {
		m.appendLog(l.Vertex, string(l.Data))
	}
}

func (m *Model) updateOrAddVertex(v *progrock.Vertex) {
	status := statusRunning
	switch {
	case v.Completed != nil && v.Error != nil:
		status = statusFailed
	case v.Completed != nil && v.Cached:
		status = statusCached
	case v.Completed != nil:
		status = statusCompleted
	}

	for i := range m.vertices {
		if m.vertices[i].ID == v.Id {
			m.vertices[i].Status = status
			return
		}
	}
	m.vertices = append(m.vertices, VertexState{ID: v.Id, Name: v.Name, Status: status})
}

func (m *Model) appendLog(id, data string) {
	lines := append(m.logs[id], strings.Split(strings.TrimRight(data, "\n"), "\n")...)
	if len(lines) > logTail {
		lines = lines[len(lines)-logTail:]
	}
	m.logs[id] = lines
}

// View renders the current state of the model as a string.
func (m *Model) View() string {
	var s strings.Builder

	// Keep the most recent steps on screen.
	start := 0
	if m.height > 0 && len(m.vertices) > m.height {
		start = len(m.vertices) - m.height
	}

	for _, v := range m.vertices[start:] {
		var icon string
		var st lipgloss.Style
		switch v.Status {
		case statusRunning:
			icon, st = m.spinner.View(), m.styles.running
		case statusCompleted:
			icon, st = style.Check, m.styles.completed
		case statusCached:
			icon, st = style.Tilde, m.styles.cached
		default:
			icon, st = style.Cross, m.styles.failed
		}

		s.WriteString(fmt.Sprintf("%s %s\n", st.Render(icon), v.Name))

		if v.Status == statusRunning || v.Status == statusFailed {
			for _, line := range m.logs[v.ID] {
				s.WriteString("    " + m.styles.log.Render(line) + "\n")
			}
		}
	}

	return s.String()
}
