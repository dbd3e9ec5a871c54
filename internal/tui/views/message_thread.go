package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/model"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/tui/ui"
)

// MessageThread displays one conversation's messages and its composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField

	title    string
	onSend   func(text string)
	onChange func(text string)
	failed   []string
}

// NewMessageThread creates the thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			text := composer.GetText()
			if text != "" {
				mt.onSend(text)
				composer.SetText("")
			}
		}
	})
	composer.SetChangedFunc(func(text string) {
		if mt.onChange != nil {
			mt.onChange(text)
		}
	})

	return mt
}

// SetTitle updates the thread title.
func (mt *MessageThread) SetTitle(title string) {
	mt.title = title
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(sanitizeForTerminal(title))))
}

// SetOnSend sets the callback for submitted composer text.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// SetOnChange sets the callback for composer edits, used to keep drafts.
func (mt *MessageThread) SetOnChange(fn func(text string)) {
	mt.onChange = fn
}

// SetDraft replaces the composer content without firing the change
// callback twice.
func (mt *MessageThread) SetDraft(text string) {
	mt.composer.SetText(text)
}

// Update renders the thread. Messages arrive oldest first.
func (mt *MessageThread) Update(msgs []model.Message, selfID int64) {
	mt.messages.Clear()
	mt.failed = mt.failed[:0]

	for i := range msgs {
		m := &msgs[i]
		sender := m.SenderName
		if m.IsOwn {
			sender = "You"
		} else if sender == "" {
			sender = fmt.Sprintf("user %d", m.SenderID)
		}

		marker := statusMarker(m)
		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-] %s\n%s\n\n",
			tview.Escape(sanitizeForTerminal(sender)),
			formatTime(m.CreatedAt),
			marker,
			tview.Escape(sanitizeForTerminal(m.Content)))
		_, _ = fmt.Fprint(mt.messages, line)

		if m.Status == model.StatusFailed {
			mt.failed = append(mt.failed, m.ID)
		}
	}

	mt.messages.ScrollToEnd()
}

// LastFailed returns the most recent failed message ID, for retry.
func (mt *MessageThread) LastFailed() string {
	if len(mt.failed) == 0 {
		return ""
	}
	return mt.failed[len(mt.failed)-1]
}

// statusMarker renders the delivery state of own messages.
func statusMarker(m *model.Message) string {
	if !m.IsOwn {
		return ""
	}
	switch m.Status {
	case model.StatusPending:
		return "[gray]sending…[-]"
	case model.StatusFailed:
		return "[orangered]failed (r to retry)[-]"
	case model.StatusDelivered:
		return "[::d]✓✓[-:-:-]"
	case model.StatusRead:
		return "[aqua]✓✓[-]"
	default:
		return "[::d]✓[-:-:-]"
	}
}

// Messages returns the text view for focus management.
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input for focus management.
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}
