package tui

type action int

const (
	actionNone action = iota
	actionQuit
	actionUp
	actionDown
	actionSwitchPane
	actionSelect
	actionTogglePlay
	actionNext
	actionPrevious
	actionStop
	actionShuffle
	actionRepeat
	actionFavorite
	actionMute
	actionVolumeUp
	actionVolumeDown
	actionSeekForward
	actionSeekBack
	actionSearch
	actionDismiss
)

var keyActions = map[string]action{
	"q":      actionQuit,
	"ctrl+c": actionQuit,
	"up":     actionUp,
	"k":      actionUp,
	"down":   actionDown,
	"j":      actionDown,
	"tab":    actionSwitchPane,
	"enter":  actionSelect,
	" ":      actionTogglePlay,
	"n":      actionNext,
	"p":      actionPrevious,
	".":      actionStop,
	"s":      actionShuffle,
	"r":      actionRepeat,
	"f":      actionFavorite,
	"m":      actionMute,
	"+":      actionVolumeUp,
	"=":      actionVolumeUp,
	"-":      actionVolumeDown,
	"right":  actionSeekForward,
	"l":      actionSeekForward,
	"left":   actionSeekBack,
	"h":      actionSeekBack,
	"/":      actionSearch,
	"x":      actionDismiss,
}

func actionFor(key string) action {
	return keyActions[key]
}

const helpLine = "space play/pause  n/p next/prev  ←/→ seek  +/- volume  m mute  s shuffle  r repeat  f fav  / search  tab playlists  x dismiss  q quit"
