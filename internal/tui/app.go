// Package tui is the terminal frontend. It owns the tview application
// loop; all state lives in the view model and the engine's stores, and
// every redraw goes through QueueUpdateDraw off a bus event or a ticker.
package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/bus"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/filter"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/tui/model"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/tui/ui"
	"github.com/Darelldrayton/parking-in-a-pinch-sub002/internal/tui/views"
)

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	vm        *model.ViewModel
	bus       *bus.Bus
	logger    *zap.Logger
	statusBar *views.StatusBar
	convList  *views.ConversationList
	thread    *views.MessageThread
	searchV   *views.SearchView
	ctx       context.Context
	cancel    context.CancelFunc

	filtering bool
}

// NewApp creates the TUI application.
func NewApp(vm *model.ViewModel, b *bus.Bus, profileName string, logger *zap.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		vm:        vm,
		bus:       b,
		logger:    logger,
		statusBar: views.NewStatusBar(),
		convList:  views.NewConversationList(theme, vm.SelfID()),
		thread:    views.NewMessageThread(theme),
		searchV:   views.NewSearchView(theme),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetProfile(profileName)
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupCallbacks() {
	a.convList.Table().SetSelectedFunc(func(row, col int) {
		if id := a.convList.SelectedConversation(); id != 0 {
			a.openConversation(id)
		}
	})

	a.thread.SetOnSend(func(text string) {
		go func() {
			if err := a.vm.Send(a.ctx, text); err != nil {
				a.vm.FlashError(err)
			}
			a.redraw()
		}()
	})
	a.thread.SetOnChange(func(text string) {
		if id := a.vm.ActiveID(); id != 0 {
			a.vm.SaveDraft(id, text)
		}
	})

	a.searchV.SetOnQuery(func(query string) {
		go func() {
			results, err := a.vm.Search(query)
			if err != nil {
				a.vm.FlashError(err)
				a.redraw()
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.searchV.Update(results)
				a.app.SetFocus(a.searchV.Results())
			})
		}()
	})
	a.searchV.Results().SetSelectedFunc(func(row, col int) {
		if id, _ := a.searchV.SelectedResult(); id != 0 {
			a.openConversation(id)
		}
	})
}

func (a *App) setupLayout() {
	a.pages.AddPage("conversations", a.convList, true, true)
	a.pages.AddPage("thread", a.thread, true, false)
	a.pages.AddPage("search", a.searchV, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	currentPage, _ := a.pages.GetFrontPage()

	if event.Key() == tcell.KeyEscape {
		switch currentPage {
		case "thread", "search":
			a.vm.Open(a.ctx, 0)
			a.vm.SetSearchText("")
			a.convList.SetSearchText("")
			a.filtering = false
			a.showConversations()
			return nil
		}
		return event
	}

	// Text inputs consume keys normally.
	if _, ok := a.app.GetFocus().(*tview.InputField); ok {
		return event
	}

	if event.Key() != tcell.KeyRune {
		return event
	}

	switch r := event.Rune(); {
	case r == 'q':
		a.app.Stop()
		return nil
	case r == 's' && currentPage == "conversations":
		a.pages.SwitchToPage("search")
		a.app.SetFocus(a.searchV.Input())
		return nil
	case r == '/' && currentPage == "conversations":
		a.promptFilter()
		return nil
	case r >= '1' && r <= '9' && currentPage == "conversations":
		if cat, ok := views.CategoryByIndex(int(r - '0')); ok {
			a.setCategory(cat)
			return nil
		}
	case r == 'i' && currentPage == "thread":
		a.app.SetFocus(a.thread.Composer())
		return nil
	case r == 'r' && currentPage == "thread":
		if id := a.thread.LastFailed(); id != "" {
			go func() {
				if err := a.vm.Retry(a.ctx, id); err != nil {
					a.vm.FlashError(err)
				}
				a.redraw()
			}()
		}
		return nil
	}

	return event
}

// promptFilter turns the status bar line into a lightweight filter
// input by swapping an InputField over the conversation list.
func (a *App) promptFilter() {
	if a.filtering {
		return
	}
	a.filtering = true

	input := tview.NewInputField().
		SetLabel(" / ").
		SetFieldWidth(0).
		SetText(a.vm.Criterion().SearchText)
	input.SetChangedFunc(func(text string) {
		a.vm.SetSearchText(text)
		a.convList.SetSearchText(text)
		a.convList.Update(a.vm.Conversations())
	})
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEscape {
			a.vm.SetSearchText("")
			a.convList.SetSearchText("")
			a.convList.Update(a.vm.Conversations())
		}
		a.filtering = false
		a.pages.RemovePage("filter")
		a.app.SetFocus(a.convList.Table())
	})

	bar := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(input, 1, 0, true)
	a.pages.AddPage("filter", bar, true, true)
	a.app.SetFocus(input)
}

func (a *App) setCategory(cat filter.Category) {
	a.vm.SetCategory(cat)
	a.convList.SetCategory(cat)
	a.convList.Update(a.vm.Conversations())
}

func (a *App) openConversation(id int64) {
	a.vm.Open(a.ctx, id)

	title := ""
	if c, ok := a.vm.ActiveConversation(); ok {
		title = c.Title
		if title == "" {
			title = c.OtherParticipant(a.vm.SelfID()).DisplayName
		}
	}

	a.thread.SetTitle(title)
	a.thread.SetDraft(a.vm.Draft(id))
	a.thread.Update(a.vm.Messages(), a.vm.SelfID())
	a.pages.SwitchToPage("thread")
	a.app.SetFocus(a.thread.Composer())
}

func (a *App) showConversations() {
	a.convList.Update(a.vm.Conversations())
	a.pages.SwitchToPage("conversations")
	a.app.SetFocus(a.convList.Table())
}

// redraw refreshes whichever page is visible from the view model.
func (a *App) redraw() {
	a.app.QueueUpdateDraw(func() {
		currentPage, _ := a.pages.GetFrontPage()
		switch currentPage {
		case "conversations", "filter":
			a.convList.Update(a.vm.Conversations())
		case "thread":
			a.thread.Update(a.vm.Messages(), a.vm.SelfID())
		}
		a.statusBar.SetConnState(a.vm.ConnState())
		a.statusBar.SetUnread(a.vm.UnreadTotal())
		a.statusBar.SetFlash(a.vm.Flash.Get())
	})
}

// watchBus redraws on engine and connection events.
func (a *App) watchBus() {
	ch, unsub := a.bus.Subscribe("", 256)
	ticker := time.NewTicker(10 * time.Second)

	go func() {
		defer unsub()
		defer ticker.Stop()
		for {
			select {
			case <-ch:
				a.redraw()
			case <-ticker.C:
				// Clock and flash expiry.
				a.redraw()
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

// Run starts the TUI application and blocks until quit.
func (a *App) Run() error {
	a.watchBus()
	a.redraw()
	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
