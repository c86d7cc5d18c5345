//nolint:testpackage // Test needs access to unexported fields
package tui

import (
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/vito/progrock"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// MockTapeSource replays a fixed list of updates.
type MockTapeSource struct {
	updates []*progrock.StatusUpdate
}

func (m *MockTapeSource) Read() (*progrock.StatusUpdate, error) {
	if len(m.updates) == 0 {
		return nil, io.EOF
	}
	u := m.updates[0]
	m.updates = m.updates[1:]
	return u, nil
}

func TestModel_Update_TapeUpdate_AddsVertex(t *testing.T) {
	m := NewModel(&MockTapeSource{})

	_, cmd := m.Update(MsgTapeUpdate{Update: &progrock.StatusUpdate{
		Vertexes: []*progrock.Vertex{{Id: "1", Name: "FROM python:3.11"}},
	}})

	assert.Len(t, m.vertices, 1)
	assert.Equal(t, "1", m.vertices[0].ID)
	assert.Equal(t, statusRunning, m.vertices[0].Status)
	assert.NotNil(t, cmd)
}

func TestModel_Update_TapeUpdate_Completion(t *testing.T) {
	now := timestamppb.New(time.Now())
	boom := "exit status 1"

	tests := []struct {
		name   string
		vertex *progrock.Vertex
		want   string
	}{
		{"completed", &progrock.Vertex{Id: "1", Completed: now}, statusCompleted},
		{"cached", &progrock.Vertex{Id: "1", Completed: now, Cached: true}, statusCached},
		{"failed", &progrock.Vertex{Id: "1", Completed: now, Error: &boom}, statusFailed},
		{"still running", &progrock.Vertex{Id: "1"}, statusRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel(&MockTapeSource{})
			m.vertices = []VertexState{{ID: "1", Name: "RUN make", Status: statusRunning}}

			m.Update(MsgTapeUpdate{Update: &progrock.StatusUpdate{Vertexes: []*progrock.Vertex{tt.vertex}}})

			assert.Len(t, m.vertices, 1)
			assert.Equal(t, tt.want, m.vertices[0].Status)
		})
	}
}

func TestModel_Update_Logs(t *testing.T) {
	m := NewModel(&MockTapeSource{})

	m.Update(MsgTapeUpdate{Update: &progrock.StatusUpdate{
		Logs: []*progrock.VertexLog{
			{Vertex: "1", Data: []byte("a\nb\nc\n")},
			{Vertex: "1", Data: []byte("d\ne\nf\n")},
		},
	}})

	assert.Equal(t, []string{"b", "c", "d", "e", "f"}, m.logs["1"])
}

func TestModel_Update_Quit(t *testing.T) {
	m := NewModel(&MockTapeSource{})

	_, cmd := m.Update(MsgTapeEnded{})
	assert.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.IsType(t, tea.QuitMsg{}, cmd())

	m.Update(tea.WindowSizeMsg{Width: 80, Height: 3})
	assert.Equal(t, 3, m.height)
}

func TestWaitForTape(t *testing.T) {
	update := &progrock.StatusUpdate{}
	tape := &MockTapeSource{updates: []*progrock.StatusUpdate{update}}

	msg := WaitForTape(tape)()
	assert.Equal(t, MsgTapeUpdate{Update: update}, msg)

	assert.Equal(t, MsgTapeEnded{}, WaitForTape(tape)())
}
