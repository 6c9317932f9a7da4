package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TopologyNode is one rank of a derpctl topology view, mirroring
// cmd/derpd's serialized tree (spec.md §3 "Topology").
type TopologyNode struct {
	Rank     uint32
	Children []TopologyNode
}

// TopologyView is the data payload for the "topology" view type.
type TopologyView struct {
	Self uint32
	Root TopologyNode
}

// PingView is the data payload for the "ping" view type.
type PingView struct {
	Ranks string
}

// WatchModel is a Bubble Tea model for derpctl's read-only views.
type WatchModel struct {
	viewType string
	data     any
	quitting bool
}

// NewWatchModel creates a new watch model.
func NewWatchModel(viewType string, data any) WatchModel {
	return WatchModel{viewType: viewType, data: data}
}

func (m WatchModel) Init() tea.Cmd { return nil }

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && key.Matches(keyMsg, keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "topology":
		content = m.renderTopology()
	case "ping":
		content = m.renderPing()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m WatchModel) renderTopology() string {
	data, ok := m.data.(TopologyView)
	if !ok {
		return "Invalid data type for topology"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Topology"))
	b.WriteString("\n\n")
	renderNode(&b, data.Root, data.Self, 0)
	return BoxStyle.Render(b.String())
}

func renderNode(b *strings.Builder, n TopologyNode, self uint32, depth int) {
	label := fmt.Sprintf("%srank %d", strings.Repeat("  ", depth), n.Rank)
	value := ValueStyle.Render(label)
	if n.Rank == self {
		value = SuccessStyle.Render(label + " (self)")
	}
	b.WriteString(value + "\n")
	for _, c := range n.Children {
		renderNode(b, c, self, depth+1)
	}
}

func (m WatchModel) renderPing() string {
	data, ok := m.data.(PingView)
	if !ok {
		return "Invalid data type for ping"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Ping"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Acknowledged:"),
		SuccessStyle.Render(data.Ranks)))
	return BoxStyle.Render(b.String())
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunWatchTUI runs the watch TUI for viewType.
func RunWatchTUI(viewType string, data any) error {
	model := NewWatchModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderWatchStatic renders watch data without the full TUI program, for
// non-interactive fallback.
func RenderWatchStatic(viewType string, data any) string {
	model := NewWatchModel(viewType, data)
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
