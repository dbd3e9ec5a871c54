package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/conn"
)

// StatusBar displays the profile, connection state, unread total, and
// transient flash messages.
type StatusBar struct {
	*tview.TextView
	profile string
	state   conn.State
	unread  int
	flash   string
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, state: conn.Unknown}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetConnState updates the connection indicator.
func (sb *StatusBar) SetConnState(s conn.State) {
	sb.state = s
	sb.render()
}

// SetUnread updates the unread badge.
func (sb *StatusBar) SetUnread(n int) {
	sb.unread = n
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	indicator := "[orangered]●[-]"
	switch sb.state {
	case conn.Connected:
		indicator = "[green]●[-]"
	case conn.Connecting, conn.Reconnecting:
		indicator = "[yellow]●[-]"
	}

	unread := ""
	if sb.unread > 0 {
		unread = fmt.Sprintf(" | [orange]%d unread[-]", sb.unread)
	}

	clock := time.Now().Format("15:04")
	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s %s%s | %s",
		sb.profile, indicator, sb.state, unread, clock)
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", tview.Escape(sb.flash))
	}

	_, _ = fmt.Fprint(sb, line)
}
