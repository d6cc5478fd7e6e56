package tui

import (
	"fmt"

	"github.com/sandeepkv93/todoflow/internal/views"
)

func (m Model) paneWidth() int {
	if m.Width <= 0 {
		return 0
	}
	w := (m.Width - 6) / 2
	if w < 30 {
		w = 30
	}
	return w
}

func (m Model) View() string {
	if m.Quitting {
		return ""
	}
	width := m.paneWidth()

	footer := m.helpBar.View(m.keys)
	if m.PaletteOpen {
		footer = views.RenderCommandPalette(true, m.input.View())
	}

	return views.RenderApp(views.AppData{
		Header: fmt.Sprintf("todoflow  %d task(s)  sort:%s", len(m.Tasks), m.Filter.SortBy),
		LeftPane: views.RenderListPanel(views.ListPanelData{
			Title:      "Tasks",
			Tasks:      m.Tasks,
			Cursor:     m.Cursor,
			FilterLine: "filter: " + filterLabel(m.Filter),
			Now:        m.now(),
		}),
		RightPane:    m.detail.View(),
		StatusLine:   m.Status.Text,
		IsError:      m.Status.IsError,
		Notification: views.RenderNotification("info", m.Notification),
		Footer:       footer,
		PaneWidth:    width,
	})
}
