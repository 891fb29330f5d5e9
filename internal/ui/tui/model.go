// Package tui provides the terminal front end of the player.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/osa030/sidebox/internal/app/notification"
	"github.com/osa030/sidebox/internal/app/session"
	"github.com/osa030/sidebox/internal/domain/track"
)

const (
	seekStep   = 5.0  // percent
	volumeStep = 0.05 // of full scale
)

// Controller is the session surface the UI drives.
type Controller interface {
	State() session.State
	Subscribe(stream notification.Stream) string
	Unsubscribe(id string)

	Select(trackID string)
	TogglePlayPause()
	Seek(percentage float64)
	SetVolume(level float64)
	ToggleMute()
	Next()
	Previous()
	Stop()
	DismissError()
	CycleRepeat()
	ToggleShuffle()
	ToggleFavorite(trackID string)
	SetActivePlaylist(id string)
	SetSearchQuery(q string)
}

type pane int

const (
	paneQueue pane = iota
	panePlaylists
)

// notifyMsg is delivered when the session state changed.
type notifyMsg struct{}

// Model is the bubbletea model of the player.
type Model struct {
	ctrl   Controller
	stream *notification.ChannelStream
	subID  string

	state     session.State
	focus     pane
	cursor    int // queue row
	plCursor  int // playlist row
	searching bool

	width  int
	height int
}

// New creates a model subscribed to ctrl's notifications.
func New(ctrl Controller) *Model {
	m := &Model{
		ctrl:   ctrl,
		stream: notification.NewChannelStream(64),
	}
	m.subID = ctrl.Subscribe(m.stream)
	m.refresh()
	return m
}

// Run runs the UI on the terminal until the user quits.
func Run(ctrl Controller) error {
	m := New(ctrl)
	defer m.Close()

	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// Close unsubscribes the model from the session.
func (m *Model) Close() {
	m.ctrl.Unsubscribe(m.subID)
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.waitForNotification()
}

func (m *Model) waitForNotification() tea.Cmd {
	ch := m.stream.C()
	return func() tea.Msg {
		<-ch
		// Coalesce bursts into one redraw.
		for {
			select {
			case <-ch:
			default:
				return notifyMsg{}
			}
		}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case notifyMsg:
		m.refresh()
		return m, m.waitForNotification()

	case tea.KeyMsg:
		if m.searching {
			return m, m.updateSearch(msg)
		}
		return m, m.handleAction(actionFor(msg.String()))
	}
	return m, nil
}

func (m *Model) refresh() {
	m.state = m.ctrl.State()
	m.cursor = clampIndex(m.cursor, len(m.state.Queue))
	m.plCursor = clampIndex(m.plCursor, len(m.state.Playlists))
}

func (m *Model) updateSearch(msg tea.KeyMsg) tea.Cmd {
	q := m.state.SearchQuery
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		return nil
	case tea.KeyEsc:
		m.searching = false
		q = ""
	case tea.KeyBackspace:
		r := []rune(q)
		if len(r) == 0 {
			return nil
		}
		q = string(r[:len(r)-1])
	case tea.KeySpace:
		q += " "
	case tea.KeyRunes:
		q += string(msg.Runes)
	default:
		return nil
	}
	m.ctrl.SetSearchQuery(q)
	m.refresh()
	return nil
}

func (m *Model) handleAction(a action) tea.Cmd {
	switch a {
	case actionQuit:
		return tea.Quit
	case actionUp:
		m.move(-1)
	case actionDown:
		m.move(1)
	case actionSwitchPane:
		if m.focus == paneQueue {
			m.focus = panePlaylists
		} else {
			m.focus = paneQueue
		}
	case actionSelect:
		m.selectRow()
	case actionTogglePlay:
		m.ctrl.TogglePlayPause()
	case actionNext:
		m.ctrl.Next()
	case actionPrevious:
		m.ctrl.Previous()
	case actionStop:
		m.ctrl.Stop()
	case actionShuffle:
		m.ctrl.ToggleShuffle()
	case actionRepeat:
		m.ctrl.CycleRepeat()
	case actionFavorite:
		if t := m.selectedTrack(); t != nil {
			m.ctrl.ToggleFavorite(t.ID)
		}
	case actionMute:
		m.ctrl.ToggleMute()
	case actionVolumeUp:
		m.ctrl.SetVolume(m.state.Volume + volumeStep)
	case actionVolumeDown:
		m.ctrl.SetVolume(m.state.Volume - volumeStep)
	case actionSeekForward:
		m.ctrl.Seek(m.progress() + seekStep)
	case actionSeekBack:
		m.ctrl.Seek(m.progress() - seekStep)
	case actionSearch:
		m.searching = true
	case actionDismiss:
		m.ctrl.DismissError()
	default:
		return nil
	}
	m.refresh()
	return nil
}

func (m *Model) move(delta int) {
	if m.focus == panePlaylists {
		m.plCursor = clampIndex(m.plCursor+delta, len(m.state.Playlists))
		return
	}
	m.cursor = clampIndex(m.cursor+delta, len(m.state.Queue))
}

func (m *Model) selectRow() {
	if m.focus == panePlaylists {
		if m.plCursor < len(m.state.Playlists) {
			m.ctrl.SetActivePlaylist(m.state.Playlists[m.plCursor].ID)
			m.cursor = 0
			m.focus = paneQueue
		}
		return
	}
	if t := m.selectedTrack(); t != nil {
		m.ctrl.Select(t.ID)
	}
}

// selectedTrack returns the queue row under the cursor.
func (m *Model) selectedTrack() *track.Track {
	if m.cursor < 0 || m.cursor >= len(m.state.Queue) {
		return nil
	}
	return &m.state.Queue[m.cursor]
}

// progress returns the playback position as a percentage.
func (m *Model) progress() float64 {
	if m.state.Duration <= 0 {
		return 0
	}
	return float64(m.state.Position) / float64(m.state.Duration) * 100
}

func clampIndex(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
