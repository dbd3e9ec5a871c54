package ui

import "github.com/gdamore/tcell/v2"

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor          tcell.Color
	FgColor          tcell.Color
	BorderColor      tcell.Color
	BorderFocusColor tcell.Color
	TableHeaderFg    tcell.Color
	TableHeaderBg    tcell.Color
	TableCursorFg    tcell.Color
	TableCursorBg    tcell.Color
	TabActiveFg      tcell.Color
	TabActiveBg      tcell.Color
	TabInactiveFg    tcell.Color
	MenuKeyColor     tcell.Color
	TitleColor       tcell.Color
	UnreadColor      tcell.Color
	PendingColor     tcell.Color
	FailedColor      tcell.Color
	ConnUpColor      tcell.Color
	ConnDownColor    tcell.Color
	FlashColor       tcell.Color
}

// DefaultTheme returns the dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:          tcell.ColorBlack,
		FgColor:          tcell.ColorCadetBlue,
		BorderColor:      tcell.ColorDodgerBlue,
		BorderFocusColor: tcell.ColorLightSkyBlue,
		TableHeaderFg:    tcell.ColorWhite,
		TableHeaderBg:    tcell.ColorBlack,
		TableCursorFg:    tcell.ColorBlack,
		TableCursorBg:    tcell.ColorAqua,
		TabActiveFg:      tcell.ColorBlack,
		TabActiveBg:      tcell.ColorOrange,
		TabInactiveFg:    tcell.ColorAqua,
		MenuKeyColor:     tcell.ColorDodgerBlue,
		TitleColor:       tcell.ColorFuchsia,
		UnreadColor:      tcell.ColorOrange,
		PendingColor:     tcell.ColorGray,
		FailedColor:      tcell.ColorOrangeRed,
		ConnUpColor:      tcell.ColorGreen,
		ConnDownColor:    tcell.ColorOrangeRed,
		FlashColor:       tcell.ColorNavajoWhite,
	}
}
