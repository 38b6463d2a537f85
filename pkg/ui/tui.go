package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Model is the Bubble Tea model for the ladder view.
type Model struct {
	spinner spinner.Model

	target    string
	connected bool

	snapshot   Snapshot
	hasData    bool
	updates    uint64
	lastUpdate time.Time

	width    int
	height   int
	err      error
	quitting bool
}

// New creates the ladder model for the given server target.
func New(target string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorPrimary)

	return Model{
		spinner: sp,
		target:  target,
	}
}

// Init starts the waiting spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case ConnectedMsg:
		m.connected = true
		m.target = msg.Target

	case SnapshotMsg:
		m.snapshot = msg.Snapshot
		m.hasData = true
		m.updates++
		m.lastUpdate = time.Now()

	case ErrorMsg:
		m.err = msg.Error
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the ladder.
func (m Model) View() string {
	if m.quitting {
		if m.err != nil {
			return fmt.Sprintf("stream error: %v\n", m.err)
		}
		return "bye\n"
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render("Consolidated Order Book"))
	b.WriteString("\n\n")

	status := MutedStyle.Render("connecting to " + m.target + " " + m.spinner.View())
	if m.connected {
		status = MutedStyle.Render("streaming from " + m.target)
	}
	b.WriteString(status)
	b.WriteString("\n\n")

	if !m.hasData {
		b.WriteString(MutedStyle.Render("waiting for first snapshot " + m.spinner.View()))
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render("q: quit"))
		return b.String()
	}

	spreadStyle := SpreadPositive
	if m.snapshot.Spread < 0 {
		spreadStyle = SpreadNegative
	}
	b.WriteString(HeaderStyle.Render("Spread: "))
	b.WriteString(spreadStyle.Render(fmt.Sprintf("%.8f", m.snapshot.Spread)))
	if m.snapshot.Spread < 0 {
		b.WriteString(" " + lipgloss.NewStyle().Foreground(ColorWarning).Render("(crossed)"))
	}
	b.WriteString("\n\n")

	b.WriteString(BoxStyle.Render(m.renderLadder()))
	b.WriteString("\n")

	b.WriteString(MutedStyle.Render(fmt.Sprintf("updates: %d   last: %s",
		m.updates, m.lastUpdate.Format("15:04:05.000"))))
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("q: quit"))

	return b.String()
}

// renderLadder builds the two-sided depth table.
func (m Model) renderLadder() string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%-5s %-10s %-16s %-14s | %-14s %-16s %-10s",
		"Depth", "BidVenue", "BidVolume", "BidPrice", "AskPrice", "AskVolume", "AskVenue")))
	b.WriteString("\n")

	rows := len(m.snapshot.Bids)
	if len(m.snapshot.Asks) > rows {
		rows = len(m.snapshot.Asks)
	}

	for i := 0; i < rows; i++ {
		var bidVenue, bidVolume, bidPrice string
		if i < len(m.snapshot.Bids) {
			bid := m.snapshot.Bids[i]
			bidVenue = venueStyle(bid.Exchange).Render(fmt.Sprintf("%-10s", bid.Exchange))
			bidVolume = fmt.Sprintf("%-16.8f", bid.Amount)
			bidPrice = BidStyle.Render(fmt.Sprintf("%-14.8f", bid.Price))
		} else {
			bidVenue = fmt.Sprintf("%-10s", "")
			bidVolume = fmt.Sprintf("%-16s", "")
			bidPrice = fmt.Sprintf("%-14s", "")
		}

		var askPrice, askVolume, askVenue string
		if i < len(m.snapshot.Asks) {
			ask := m.snapshot.Asks[i]
			askPrice = AskStyle.Render(fmt.Sprintf("%-14.8f", ask.Price))
			askVolume = fmt.Sprintf("%-16.8f", ask.Amount)
			askVenue = venueStyle(ask.Exchange).Render(fmt.Sprintf("%-10s", ask.Exchange))
		} else {
			askPrice = fmt.Sprintf("%-14s", "")
			askVolume = fmt.Sprintf("%-16s", "")
			askVenue = fmt.Sprintf("%-10s", "")
		}

		b.WriteString(fmt.Sprintf("%-5s %s %s %s | %s %s %s",
			fmt.Sprintf("[%d]", i+1), bidVenue, bidVolume, bidPrice, askPrice, askVolume, askVenue))
		if i < rows-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}
