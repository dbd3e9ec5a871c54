package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/filter"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/model"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/tui/ui"
)

// tabs is the category tab order; number keys 1..4 map onto it.
var tabs = []struct {
	Category filter.Category
	Label    string
}{
	{filter.CategoryAll, "All"},
	{filter.CategoryBookingRole, "Bookings"},
	{filter.CategoryListingRole, "My Listings"},
	{filter.CategorySupport, "Support"},
}

// ConversationList is the main conversation table with category tabs.
type ConversationList struct {
	*tview.Flex
	theme  *ui.Theme
	tabBar *tview.TextView
	table  *tview.Table

	convs  []model.Conversation
	active filter.Category
	selfID int64
	search string
}

// NewConversationList creates the conversation list view.
func NewConversationList(theme *ui.Theme, selfID int64) *ConversationList {
	tabBar := tview.NewTextView().
		SetDynamicColors(true)
	tabBar.SetBackgroundColor(theme.BgColor)

	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Conversations ")
	table.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(tabBar, 1, 0, false).
		AddItem(table, 0, 1, true)

	cl := &ConversationList{
		Flex:   flex,
		theme:  theme,
		tabBar: tabBar,
		table:  table,
		active: filter.CategoryAll,
		selfID: selfID,
	}
	cl.renderTabs()
	return cl
}

// Update refreshes the table with an already-projected conversation list.
func (cl *ConversationList) Update(convs []model.Conversation) {
	cl.convs = convs
	cl.render()
}

// SetCategory highlights the given tab.
func (cl *ConversationList) SetCategory(cat filter.Category) {
	cl.active = cat
	cl.renderTabs()
}

// CategoryByIndex maps a 1-based tab number to its category.
func CategoryByIndex(n int) (filter.Category, bool) {
	if n < 1 || n > len(tabs) {
		return "", false
	}
	return tabs[n-1].Category, true
}

// SetSearchText records the active free-text filter for the title line.
func (cl *ConversationList) SetSearchText(text string) {
	cl.search = text
	cl.render()
}

// SelectedConversation returns the ID of the highlighted row, 0 if none.
func (cl *ConversationList) SelectedConversation() int64 {
	row, _ := cl.table.GetSelection()
	idx := row - 1 // header
	if idx < 0 || idx >= len(cl.convs) {
		return 0
	}
	return cl.convs[idx].ID
}

// ConversationByIndex returns the ID of the Nth visible row (1-based).
func (cl *ConversationList) ConversationByIndex(n int) int64 {
	if n < 1 || n > len(cl.convs) {
		return 0
	}
	return cl.convs[n-1].ID
}

// Table returns the inner table for focus management.
func (cl *ConversationList) Table() *tview.Table {
	return cl.table
}

func (cl *ConversationList) renderTabs() {
	cl.tabBar.Clear()
	var parts []string
	for i, tab := range tabs {
		if tab.Category == cl.active {
			parts = append(parts, fmt.Sprintf("[black:orange] %d %s [-:-]", i+1, tab.Label))
		} else {
			parts = append(parts, fmt.Sprintf("[aqua] %d %s [-]", i+1, tab.Label))
		}
	}
	_, _ = fmt.Fprint(cl.tabBar, " "+strings.Join(parts, " "))
}

func (cl *ConversationList) render() {
	cl.table.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" WITH", 1},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
		{" TYPE", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		cl.table.SetCell(0, col, cell)
	}

	for i := range cl.convs {
		c := &cl.convs[i]
		row := i + 1

		name := displayName(c, cl.selfID)
		nameColor := cl.theme.FgColor
		if c.UnreadCount > 0 {
			name = fmt.Sprintf("(%d) %s", c.UnreadCount, name)
			nameColor = cl.theme.UnreadColor
		}

		preview := ""
		at := c.LastActivityAt
		if c.LastMessage != nil {
			preview = c.LastMessage.Content
		}

		cl.table.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(name))).SetExpansion(1).SetTextColor(nameColor))
		cl.table.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(preview))).SetExpansion(2).SetTextColor(cl.theme.FgColor))
		cl.table.SetCell(row, 2, tview.NewTableCell(formatTime(at)).SetExpansion(0).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
		cl.table.SetCell(row, 3, tview.NewTableCell(typeLabel(c.Type)).SetExpansion(0).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
	}

	if cl.search != "" {
		cl.table.SetTitle(fmt.Sprintf(" Conversations (%d) filter: %s ", len(cl.convs), cl.search))
	} else {
		cl.table.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.convs)))
	}
}

// displayName prefers the conversation title, falling back to the other
// participant.
func displayName(c *model.Conversation, selfID int64) string {
	if c.Title != "" {
		return c.Title
	}
	other := c.OtherParticipant(selfID)
	if other.DisplayName != "" {
		return other.DisplayName
	}
	return fmt.Sprintf("conversation %d", c.ID)
}

func typeLabel(t model.ConversationType) string {
	switch t {
	case model.TypeBooking:
		return "BOOKING"
	case model.TypeInquiry:
		return "INQUIRY"
	case model.TypeListing:
		return "LISTING"
	case model.TypeSupport:
		return "SUPPORT"
	case model.TypeDispute:
		return "DISPUTE"
	default:
		return "DM"
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
