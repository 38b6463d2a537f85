// Package ui provides the Bubble Tea TUI for the order book demo client.
package ui

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	ColorPrimary  = lipgloss.Color("#7C3AED") // Purple
	ColorBid      = lipgloss.Color("#10B981") // Green
	ColorAsk      = lipgloss.Color("#EF4444") // Red
	ColorWarning  = lipgloss.Color("#F59E0B") // Amber
	ColorMuted    = lipgloss.Color("#6B7280") // Gray
	ColorBorder   = lipgloss.Color("#374151") // Dark gray
	ColorBinance  = lipgloss.Color("#F0B90B") // Binance yellow
	ColorBitstamp = lipgloss.Color("#00C878") // Bitstamp green
)

// Styles
var (
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(ColorPrimary).
			Padding(0, 2)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	BidStyle = lipgloss.NewStyle().
			Foreground(ColorBid)

	AskStyle = lipgloss.NewStyle().
			Foreground(ColorAsk)

	SpreadPositive = lipgloss.NewStyle().
			Foreground(ColorBid).
			Bold(true)

	SpreadNegative = lipgloss.NewStyle().
			Foreground(ColorAsk).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Padding(1, 0, 0, 0)
)

// venueStyle colours an exchange tag.
func venueStyle(exchange string) lipgloss.Style {
	switch exchange {
	case "binance":
		return lipgloss.NewStyle().Foreground(ColorBinance)
	case "bitstamp":
		return lipgloss.NewStyle().Foreground(ColorBitstamp)
	default:
		return MutedStyle
	}
}
