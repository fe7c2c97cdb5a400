package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

// FeedEntryType is the kind of an activity feed entry
type FeedEntryType string

const (
	// EntryRequest is an outgoing backend call
	EntryRequest FeedEntryType = "request"
	// EntryResponse is a successful backend reply
	EntryResponse FeedEntryType = "response"
	// EntryStatus is a local event (camera, capture)
	EntryStatus FeedEntryType = "status"
	// EntryError is a failed operation
	EntryError FeedEntryType = "error"
	// EntryComplete is a finished operation with an artifact (saved report)
	EntryComplete FeedEntryType = "complete"
)

// FeedEntry is one line of the activity feed
type FeedEntry struct {
	Timestamp time.Time
	Type      FeedEntryType

	// Endpoint is the backend path for request/response entries
	Endpoint string

	Title string

	// Detail is shown muted after the title
	Detail string

	Latency time.Duration
}

// ActivityFeed is a scrolling log of what the client sent and received
type ActivityFeed struct {
	Entries  []FeedEntry
	Viewport viewport.Model

	Width  int
	Height int

	// MaxEntries limits the entries kept (0 = unlimited)
	MaxEntries int

	now func() time.Time
}

// NewActivityFeed creates a feed with the given dimensions
func NewActivityFeed(width, height int) *ActivityFeed {
	vp := viewport.New(width, height)

	f := &ActivityFeed{
		Viewport:   vp,
		Width:      width,
		Height:     height,
		MaxEntries: 100,
		now:        time.Now,
	}
	f.Viewport.SetContent(f.Render())
	return f
}

// Add appends an entry and scrolls to it
func (f *ActivityFeed) Add(e FeedEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = f.now()
	}

	f.Entries = append(f.Entries, e)
	if f.MaxEntries > 0 && len(f.Entries) > f.MaxEntries {
		f.Entries = f.Entries[len(f.Entries)-f.MaxEntries:]
	}

	f.Viewport.SetContent(f.Render())
	f.Viewport.GotoBottom()
}

// AddRequest records an outgoing call
func (f *ActivityFeed) AddRequest(endpoint, detail string) {
	f.Add(FeedEntry{Type: EntryRequest, Endpoint: endpoint, Title: "POST " + endpoint, Detail: detail})
}

// AddResponse records a successful reply
func (f *ActivityFeed) AddResponse(endpoint string, latency time.Duration, detail string) {
	f.Add(FeedEntry{Type: EntryResponse, Endpoint: endpoint, Title: "200 " + endpoint, Detail: detail, Latency: latency})
}

// AddStatus records a local event
func (f *ActivityFeed) AddStatus(title string, detail ...string) {
	f.Add(FeedEntry{Type: EntryStatus, Title: title, Detail: strings.Join(detail, ", ")})
}

// AddError records a failure
func (f *ActivityFeed) AddError(title, errMsg string) {
	f.Add(FeedEntry{Type: EntryError, Title: title, Detail: errMsg})
}

// AddComplete records a finished operation
func (f *ActivityFeed) AddComplete(title string, detail ...string) {
	f.Add(FeedEntry{Type: EntryComplete, Title: title, Detail: strings.Join(detail, ", ")})
}

// SetSize updates the feed dimensions
func (f *ActivityFeed) SetSize(width, height int) {
	f.Width = width
	f.Height = height
	f.Viewport.Width = width
	f.Viewport.Height = height
	f.Viewport.SetContent(f.Render())
	f.Viewport.GotoBottom()
}

// View returns the viewport view for Bubble Tea
func (f *ActivityFeed) View() string {
	return f.Viewport.View()
}

// Render renders all entries
func (f *ActivityFeed) Render() string {
	if len(f.Entries) == 0 {
		return MutedStyle.Render("  No activity yet")
	}

	lines := make([]string, 0, len(f.Entries))
	for _, e := range f.Entries {
		lines = append(lines, f.renderEntry(e))
	}
	return strings.Join(lines, "\n")
}

func (f *ActivityFeed) renderEntry(e FeedEntry) string {
	icon, style := entryStyle(e.Type)

	var suffix string
	var parts []string
	if e.Latency > 0 {
		parts = append(parts, fmt.Sprintf("%.1fs", e.Latency.Seconds()))
	}
	if e.Detail != "" {
		parts = append(parts, truncateString(e.Detail, 60))
	}
	if len(parts) > 0 {
		if e.Type == EntryError {
			suffix = " " + lipgloss.NewStyle().Foreground(ColorError).Render("- "+strings.Join(parts, ", "))
		} else {
			suffix = " " + MutedStyle.Render("("+strings.Join(parts, ", ")+")")
		}
	}

	return fmt.Sprintf("%s %s %s%s",
		MutedStyle.Render(e.Timestamp.Format("15:04:05")),
		style.Render(icon),
		style.Render(e.Title),
		suffix,
	)
}

func entryStyle(t FeedEntryType) (string, lipgloss.Style) {
	switch t {
	case EntryRequest:
		return "[>]", lipgloss.NewStyle().Foreground(ColorSecondary)
	case EntryResponse:
		return "[<]", lipgloss.NewStyle().Foreground(ColorSuccess)
	case EntryError:
		return "[!]", lipgloss.NewStyle().Foreground(ColorError)
	case EntryComplete:
		return "[x]", lipgloss.NewStyle().Foreground(ColorSuccess)
	default:
		return "[-]", lipgloss.NewStyle().Foreground(ColorPrimary)
	}
}

func truncateString(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")

	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// RenderFeedBox renders the feed in a titled box
func RenderFeedBox(feed *ActivityFeed, title string, width int) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(width).
		Padding(0, 1)

	return TitleStyle.Render(title) + "\n" + boxStyle.Render(feed.View())
}
