// Package tui provides an interactive ticket browser using Bubble Tea.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/emberfall/tickets/internal/cooldown"
	"github.com/emberfall/tickets/internal/engine"
	"github.com/emberfall/tickets/internal/model"
)

// ViewMode represents the current view state.
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewDetail
)

// InputMode represents what kind of text input is active.
type InputMode int

const (
	InputNone   InputMode = iota
	InputCreate           // Entering new ticket description
	InputUpdate           // Entering replacement description
)

// Status icons
const (
	iconOpen    = "○"
	iconClaimed = "◐"
	iconClosed  = "●"
)

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	engine *engine.Engine
	actor  engine.Actor
	gate   *cooldown.Gate

	tickets  []model.Ticket
	filtered []model.Ticket
	cursor   int
	viewMode ViewMode

	showClosed bool

	// Input state
	inputMode InputMode
	inputText string

	// UI state
	width   int
	height  int
	err     error
	message string // temporary status message
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("57"))

	statusColors = map[model.Status]lipgloss.Color{
		model.StatusOpen:            lipgloss.Color("252"),
		model.StatusClaimed:         lipgloss.Color("214"),
		model.StatusClosedByCreator: lipgloss.Color("42"),
		model.StatusClosedByAdmin:   lipgloss.Color("42"),
	}

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	inputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

func statusIcon(s model.Status) string {
	switch s {
	case model.StatusOpen:
		return iconOpen
	case model.StatusClaimed:
		return iconClaimed
	case model.StatusClosedByCreator, model.StatusClosedByAdmin:
		return iconClosed
	default:
		return "?"
	}
}

// New creates a TUI model acting on behalf of one actor.
func New(eng *engine.Engine, actor engine.Actor, gate *cooldown.Gate) Model {
	return Model{
		engine:   eng,
		actor:    actor,
		gate:     gate,
		viewMode: ViewList,
	}
}

// Messages
type ticketsMsg struct {
	tickets []model.Ticket
	err     error
}

type actionMsg struct {
	message string
	err     error
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// loadTickets loads the tickets the actor may see.
func (m Model) loadTickets() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := opCtx()
		defer cancel()
		tickets, err := m.engine.List(ctx, m.actor)
		return ticketsMsg{tickets: tickets, err: err}
	}
}

// throttled runs an action unless the actor's cooldown is still live,
// arming it on dispatch. Mirrors the chat command path.
func (m Model) throttled(action func(ctx context.Context) (string, error)) tea.Cmd {
	if m.gate != nil && !m.gate.Ready(m.actor.ID) {
		wait := m.gate.Remaining(m.actor.ID).Round(time.Second)
		return func() tea.Msg {
			return actionMsg{err: fmt.Errorf("slow down, try again in %s", wait)}
		}
	}
	if m.gate != nil {
		m.gate.Arm(m.actor.ID)
	}
	return func() tea.Msg {
		ctx, cancel := opCtx()
		defer cancel()
		message, err := action(ctx)
		return actionMsg{message: message, err: err}
	}
}

// applyFilters hides closed tickets unless toggled on.
func (m *Model) applyFilters() {
	m.filtered = nil
	for _, t := range m.tickets {
		if !m.showClosed && t.Status.Closed() {
			continue
		}
		m.filtered = append(m.filtered, t)
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
}

func (m Model) current() (model.Ticket, bool) {
	if len(m.filtered) == 0 || m.cursor >= len(m.filtered) {
		return model.Ticket{}, false
	}
	return m.filtered[m.cursor], true
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.loadTickets()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Clear message on any key
		m.message = ""
		m.err = nil
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ticketsMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.tickets = msg.tickets
		m.applyFilters()
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.message = msg.message
		return m, m.loadTickets()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.inputMode != InputNone {
		return m.handleInputKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		if m.viewMode == ViewDetail {
			m.viewMode = ViewList
			return m, nil
		}
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
		}
		return m, nil

	case "enter":
		if _, ok := m.current(); ok {
			m.viewMode = ViewDetail
		}
		return m, nil

	case "a":
		m.showClosed = !m.showClosed
		m.applyFilters()
		return m, nil

	case "n":
		if m.permitted(engine.PermCreate) {
			m.inputMode = InputCreate
			m.inputText = ""
		}
		return m, nil

	case "u":
		if t, ok := m.current(); ok && m.permitted(engine.PermUpdate) {
			m.inputMode = InputUpdate
			m.inputText = t.Description
		}
		return m, nil

	case "c":
		t, ok := m.current()
		if !ok || !m.permitted(engine.PermClaim) {
			return m, nil
		}
		return m, m.throttled(func(ctx context.Context) (string, error) {
			if _, err := m.engine.Claim(ctx, m.actor, t.ID); err != nil {
				return "", err
			}
			return fmt.Sprintf("claimed ticket #%d", t.ID), nil
		})

	case "x":
		t, ok := m.current()
		if !ok || !m.permitted(engine.PermClose) {
			return m, nil
		}
		return m, m.throttled(func(ctx context.Context) (string, error) {
			closed, err := m.engine.Close(ctx, m.actor, t.ID)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("ticket #%d %s", t.ID, closed.Status.Label("")), nil
		})

	case "r":
		t, ok := m.current()
		if !ok || !m.permitted(engine.PermReopen) {
			return m, nil
		}
		return m, m.throttled(func(ctx context.Context) (string, error) {
			if _, err := m.engine.Reopen(ctx, m.actor, t.ID); err != nil {
				return "", err
			}
			return fmt.Sprintf("reopened ticket #%d", t.ID), nil
		})

	case "t":
		t, ok := m.current()
		if !ok || !m.permitted(engine.PermTeleport) {
			return m, nil
		}
		return m, m.throttled(func(ctx context.Context) (string, error) {
			got, err := m.engine.Teleport(ctx, m.actor, t.ID)
			if err != nil {
				return "", err
			}
			return "teleported to " + got.Location.String(), nil
		})
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.inputMode = InputNone
		m.inputText = ""
		return m, nil

	case "enter":
		mode := m.inputMode
		text := m.inputText
		m.inputMode = InputNone
		m.inputText = ""
		return m.submitInput(mode, text)

	case "backspace":
		if len(m.inputText) > 0 {
			m.inputText = m.inputText[:len(m.inputText)-1]
		}
		return m, nil

	default:
		switch msg.Type {
		case tea.KeyRunes:
			m.inputText += string(msg.Runes)
		case tea.KeySpace:
			m.inputText += " "
		}
		return m, nil
	}
}

func (m Model) submitInput(mode InputMode, text string) (tea.Model, tea.Cmd) {
	switch mode {
	case InputCreate:
		return m, m.throttled(func(ctx context.Context) (string, error) {
			t, err := m.engine.Create(ctx, m.actor, text, model.Location{})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("created ticket #%d", t.ID), nil
		})

	case InputUpdate:
		t, ok := m.current()
		if !ok {
			return m, nil
		}
		return m, m.throttled(func(ctx context.Context) (string, error) {
			if _, err := m.engine.Update(ctx, m.actor, t.ID, text); err != nil {
				return "", err
			}
			return fmt.Sprintf("updated ticket #%d", t.ID), nil
		})
	}
	return m, nil
}

func (m Model) permitted(permission string) bool {
	ctx, cancel := opCtx()
	defer cancel()
	return m.engine.Permitted(ctx, m.actor, permission)
}

// View implements tea.Model.
func (m Model) View() string {
	if m.viewMode == ViewDetail {
		return m.viewDetail()
	}
	return m.viewList()
}

func (m Model) viewList() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("tickets"))
	if m.showClosed {
		b.WriteString(dimStyle.Render("  (including closed)"))
	}
	b.WriteString("\n\n")

	if len(m.filtered) == 0 {
		b.WriteString(dimStyle.Render("no tickets") + "\n")
	}
	for i, t := range m.filtered {
		color, ok := statusColors[t.Status]
		if !ok {
			color = lipgloss.Color("252")
		}
		row := fmt.Sprintf("%s #%-4d %-12s %s",
			statusIcon(t.Status), t.ID, t.OwnerName, truncate(t.Description, 48))
		if i == m.cursor {
			b.WriteString(selectedRowStyle.Render(row))
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(color).Render(row))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.inputMode != InputNone {
		label := "description"
		if m.inputMode == InputUpdate {
			label = "new description"
		}
		b.WriteString(inputStyle.Render(label+": "+m.inputText+"▌") + "\n")
	} else {
		b.WriteString(helpStyle.Render(m.helpLine()) + "\n")
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	}
	if m.message != "" {
		b.WriteString(messageStyle.Render(m.message) + "\n")
	}
	return b.String()
}

func (m Model) viewDetail() string {
	t, ok := m.current()
	if !ok {
		return "no ticket selected\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("ticket #%d", t.ID)) + "\n\n")
	field := func(label, value string) {
		b.WriteString(detailLabelStyle.Render(label+": ") + value + "\n")
	}
	field("owner", fmt.Sprintf("%s (%s)", t.OwnerName, t.OwnerID))
	field("status", t.Status.Label(t.ClaimedBy))
	field("filed", time.UnixMilli(t.CreatedAt).Format("2006-01-02 15:04:05"))
	field("location", t.Location.String())
	b.WriteString("\n" + t.Description + "\n\n")
	b.WriteString(helpStyle.Render("q: back") + "\n")
	return b.String()
}

// helpLine lists only the actions the actor is allowed to take,
// mirroring the permission-gated chat help menu.
func (m Model) helpLine() string {
	parts := []string{"↑/↓: move", "enter: detail", "a: closed"}
	if m.permitted(engine.PermCreate) {
		parts = append(parts, "n: new")
	}
	if m.permitted(engine.PermUpdate) {
		parts = append(parts, "u: update")
	}
	if m.permitted(engine.PermClaim) {
		parts = append(parts, "c: claim")
	}
	if m.permitted(engine.PermClose) {
		parts = append(parts, "x: close")
	}
	if m.permitted(engine.PermReopen) {
		parts = append(parts, "r: reopen")
	}
	if m.permitted(engine.PermTeleport) {
		parts = append(parts, "t: teleport")
	}
	parts = append(parts, "q: quit")
	return strings.Join(parts, "  ")
}

// truncate shortens s to at most n runes. Slicing by runes so a
// multi-byte character is never cut in half.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Run starts the TUI event loop.
func Run(eng *engine.Engine, actor engine.Actor, gate *cooldown.Gate) error {
	p := tea.NewProgram(New(eng, actor, gate), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
