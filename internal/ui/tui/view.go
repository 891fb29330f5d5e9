package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/osa030/sidebox/internal/app/playback"
	"github.com/osa030/sidebox/internal/domain/track"
)

const (
	sidebarWidth = 22
	barWidth     = 40
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#FFFFFF"})
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#999999", Dark: "#666666"})
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#1DB954"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true)
	cursorStyle  = lipgloss.NewStyle().Reverse(true)
	paneStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	focusedStyle = paneStyle.BorderForeground(lipgloss.Color("#1DB954"))
)

// View implements tea.Model.
func (m *Model) View() string {
	sections := []string{
		m.nowPlaying(),
		m.transport(),
	}
	if e := m.state.LastError; e != nil {
		sections = append(sections, errorStyle.Render("! "+e.Message)+dimStyle.Render("  (x to dismiss)"))
	}
	sections = append(sections,
		lipgloss.JoinHorizontal(lipgloss.Top, m.sidebar(), m.queue()),
		m.searchLine(),
		dimStyle.Render(helpLine),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) nowPlaying() string {
	t := m.state.CurrentTrack
	if t == nil {
		return titleStyle.Render("Nothing playing") + "\n" + dimStyle.Render("select a track with enter")
	}
	line := titleStyle.Render(t.Title) + " " + dimStyle.Render("by") + " " + t.Artist
	if t.Album != "" {
		line += dimStyle.Render(" · " + t.Album)
	}
	if m.state.IsFavorite(t.ID) {
		line += accentStyle.Render(" ♥")
	}
	return line + "\n" + m.progressBar()
}

func (m *Model) progressBar() string {
	filled := int(m.progress() / 100 * barWidth)
	filled = max(0, min(barWidth, filled))
	bar := accentStyle.Render(strings.Repeat("━", filled)) + dimStyle.Render(strings.Repeat("─", barWidth-filled))
	return fmt.Sprintf("%s %s %s",
		track.FormatDuration(m.state.Position),
		bar,
		track.FormatDuration(m.state.Duration))
}

func (m *Model) transport() string {
	vol := fmt.Sprintf("vol %3d%%", int(m.state.Volume*100+0.5))
	if m.state.Muted {
		vol = "muted"
	}
	shuffle := "off"
	if m.state.Shuffle {
		shuffle = "on"
	}
	return dimStyle.Render(fmt.Sprintf("[%s]  %s  repeat %s  shuffle %s",
		stateLabel(m.state.PlayState), vol, m.state.Repeat, shuffle))
}

func stateLabel(s playback.State) string {
	switch s {
	case playback.StatePlaying:
		return "▶ playing"
	case playback.StatePaused:
		return "⏸ paused"
	case playback.StateLoading:
		return "… loading"
	case playback.StateErrored:
		return "✖ error"
	default:
		return "■ stopped"
	}
}

func (m *Model) sidebar() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Playlists"))
	for i, p := range m.state.Playlists {
		row := fmt.Sprintf("%-14s %3d", truncate(p.Name, 14), p.Count)
		if p.ID == m.state.ActivePlaylist {
			row = accentStyle.Render(row)
		}
		if m.focus == panePlaylists && i == m.plCursor {
			row = cursorStyle.Render(row)
		}
		b.WriteString("\n" + row)
	}
	style := paneStyle
	if m.focus == panePlaylists {
		style = focusedStyle
	}
	return style.Width(sidebarWidth).Render(b.String())
}

func (m *Model) queue() string {
	width := m.width - sidebarWidth - 6
	if width < 30 {
		width = 60
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Queue (%d)", len(m.state.Queue))))
	if len(m.state.Queue) == 0 {
		b.WriteString("\n" + dimStyle.Render("no tracks match"))
	}
	start, end := m.window(len(m.state.Queue))
	for i := start; i < end; i++ {
		t := &m.state.Queue[i]
		marker := "  "
		if m.state.IsCurrent(t.ID) {
			marker = accentStyle.Render("▶ ")
		}
		fav := " "
		if m.state.IsFavorite(t.ID) {
			fav = accentStyle.Render("♥")
		}
		row := fmt.Sprintf("%s %s  %s", truncate(t.Title+" - "+t.Artist, width-14), fav, track.FormatDuration(t.Duration))
		if m.focus == paneQueue && i == m.cursor {
			row = cursorStyle.Render(row)
		}
		b.WriteString("\n" + marker + row)
	}

	style := paneStyle
	if m.focus == paneQueue {
		style = focusedStyle
	}
	return style.Width(width).Render(b.String())
}

// window returns the visible queue rows around the cursor.
func (m *Model) window(n int) (int, int) {
	rows := m.height - 12
	if rows < 5 {
		rows = 15
	}
	if n <= rows {
		return 0, n
	}
	start := max(0, m.cursor-rows/2)
	if start+rows > n {
		start = n - rows
	}
	return start, start + rows
}

func (m *Model) searchLine() string {
	if m.searching {
		return "/" + m.state.SearchQuery + cursorStyle.Render(" ")
	}
	if m.state.SearchQuery != "" {
		return dimStyle.Render("filter: ") + m.state.SearchQuery
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
