package ui

import tea "github.com/charmbracelet/bubbletea"

// Row is one rendered price level.
type Row struct {
	Exchange string
	Price    float64
	Amount   float64
}

// Snapshot is one consolidated book as shown in the ladder.
type Snapshot struct {
	Spread float64
	Bids   []Row
	Asks   []Row
}

// SnapshotMsg delivers a new consolidated snapshot to the TUI.
type SnapshotMsg struct {
	Snapshot Snapshot
}

// ConnectedMsg reports the stream connection state.
type ConnectedMsg struct {
	Target string
}

// ErrorMsg reports a stream error; the TUI shows it and quits.
type ErrorMsg struct {
	Error error
}

// Program is the running Bubble Tea program, set by the client entry
// point so the stream reader can push messages.
var Program *tea.Program

// Send delivers a message to the running program, if any.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
