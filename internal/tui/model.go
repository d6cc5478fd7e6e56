// Package tui is the interactive console for browsing and completing tasks.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/sandeepkv93/todoflow/internal/model"
	"github.com/sandeepkv93/todoflow/internal/scheduler"
	"github.com/sandeepkv93/todoflow/internal/storage"
	"github.com/sandeepkv93/todoflow/internal/tasks"
	"github.com/sandeepkv93/todoflow/internal/views"
)

type StatusBar struct {
	Text    string
	IsError bool
}

type Model struct {
	Tasks        []model.Task
	Cursor       int
	Filter       storage.Filter
	Status       StatusBar
	Notification string
	PaletteOpen  bool
	HelpVisible  bool
	Width        int
	Quitting     bool
	LastError    error
	Scheduler    *scheduler.Engine

	svc     *tasks.Service
	ctx     context.Context
	loc     *time.Location
	now     func() time.Time
	keys    keyMap
	input   textinput.Model
	helpBar help.Model
	detail  viewport.Model
}

type Option func(*Model)

// WithScheduler delivers reminder notifications from engine into the view.
func WithScheduler(engine *scheduler.Engine) Option {
	return func(m *Model) { m.Scheduler = engine }
}

func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(m *Model) {
		if loc != nil {
			m.loc = loc
		}
	}
}

func NewModel(ctx context.Context, svc *tasks.Service, opts ...Option) Model {
	input := textinput.New()
	input.Prompt = "/"
	input.Placeholder = "add Pay rent due:2025-02-01 every:monthly"
	input.CharLimit = 256

	m := Model{
		Filter:  storage.Filter{SortBy: storage.SortCreatedAt},
		svc:     svc,
		ctx:     ctx,
		loc:     time.Local,
		now:     time.Now,
		keys:    defaultKeys(),
		input:   input,
		helpBar: help.New(),
		detail:  viewport.New(58, 14),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m Model) selected() *model.Task {
	if m.Cursor < 0 || m.Cursor >= len(m.Tasks) {
		return nil
	}
	t := m.Tasks[m.Cursor]
	return &t
}

func (m *Model) clampCursor() {
	if m.Cursor >= len(m.Tasks) {
		m.Cursor = len(m.Tasks) - 1
	}
	if m.Cursor < 0 {
		m.Cursor = 0
	}
}

// syncDetail re-renders the selected task into the detail viewport.
func (m *Model) syncDetail() {
	if w := m.paneWidth(); w > 0 {
		m.detail.Width = w
	}
	m.detail.SetContent(views.RenderDetailPanel(m.selected(), m.detail.Width))
}

func (m *Model) setError(err error) {
	m.LastError = err
	m.Status = StatusBar{Text: err.Error(), IsError: true}
}

var statusCycle = []model.Status{model.StatusPending, model.StatusInProgress, model.StatusCompleted}

func nextStatus(s model.Status) model.Status {
	for i, candidate := range statusCycle {
		if candidate == s {
			return statusCycle[(i+1)%len(statusCycle)]
		}
	}
	return model.StatusPending
}

// filterCycle starts with the empty status, which shows everything.
var filterCycle = []model.Status{"", model.StatusPending, model.StatusInProgress, model.StatusCompleted}

func nextFilter(s model.Status) model.Status {
	for i, candidate := range filterCycle {
		if candidate == s {
			return filterCycle[(i+1)%len(filterCycle)]
		}
	}
	return ""
}

var sortCycle = []storage.SortField{storage.SortCreatedAt, storage.SortDueDate, storage.SortPriority, storage.SortTitle}

func nextSort(f storage.SortField) storage.SortField {
	for i, candidate := range sortCycle {
		if candidate == f {
			return sortCycle[(i+1)%len(sortCycle)]
		}
	}
	return storage.SortCreatedAt
}
