package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/todoflow/internal/commands"
	"github.com/sandeepkv93/todoflow/internal/completion"
	"github.com/sandeepkv93/todoflow/internal/model"
	"github.com/sandeepkv93/todoflow/internal/scheduler"
	"github.com/sandeepkv93/todoflow/internal/storage"
	"github.com/sandeepkv93/todoflow/internal/tasks"
)

var ErrNoSelection = errors.New("no task selected")

type TasksLoadedMsg struct {
	Tasks []model.Task
	Err   error
}

// ActionDoneMsg reports a finished store mutation; the list reloads after it.
type ActionDoneMsg struct {
	Text string
	Err  error
}

type ReminderMsg struct {
	Event scheduler.ReminderEvent
}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type ClearStatusMsg struct{}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadCmd()}
	if m.Scheduler != nil {
		cmds = append(cmds, waitForReminderCmd(m.Scheduler.C()))
	}
	return tea.Batch(cmds...)
}

func waitForReminderCmd(ch <-chan scheduler.ReminderEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return ReminderMsg{Event: ev}
	}
}

func (m Model) loadCmd() tea.Cmd {
	svc, ctx, filter := m.svc, m.ctx, m.Filter
	return func() tea.Msg {
		list, err := svc.List(ctx, filter)
		return TasksLoadedMsg{Tasks: list, Err: err}
	}
}

func actionCmd(run func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		text, err := run()
		return ActionDoneMsg{Text: text, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = typed.Width
		m.helpBar.Width = typed.Width
		m.syncDetail()
		return m, nil
	case tea.KeyMsg:
		if m.PaletteOpen {
			return m.handlePaletteKey(typed)
		}
		return m.handleKey(typed)
	case TasksLoadedMsg:
		if typed.Err != nil {
			m.setError(typed.Err)
			return m, nil
		}
		m.Tasks = typed.Tasks
		m.clampCursor()
		m.syncDetail()
		return m, nil
	case ActionDoneMsg:
		if typed.Err != nil {
			m.setError(typed.Err)
		} else {
			m.Status = StatusBar{Text: typed.Text}
		}
		return m, m.loadCmd()
	case ReminderMsg:
		m.Notification = fmt.Sprintf("reminder: %s (%s)", typed.Event.Title, typed.Event.TriggerAt.In(m.loc).Format("2006-01-02 15:04"))
		if m.Scheduler != nil {
			return m, waitForReminderCmd(m.Scheduler.C())
		}
		return m, nil
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, nil
	case ClearStatusMsg:
		m.Status = StatusBar{}
		m.Notification = ""
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.Cursor > 0 {
			m.Cursor--
			m.syncDetail()
			m.detail.GotoTop()
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.Cursor < len(m.Tasks)-1 {
			m.Cursor++
			m.syncDetail()
			m.detail.GotoTop()
		}
		return m, nil
	case key.Matches(msg, m.keys.ScrollDown):
		m.detail.SetYOffset(m.detail.YOffset + 1)
		return m, nil
	case key.Matches(msg, m.keys.ScrollUp):
		m.detail.SetYOffset(m.detail.YOffset - 1)
		return m, nil
	case key.Matches(msg, m.keys.Help):
		m.HelpVisible = !m.HelpVisible
		m.helpBar.ShowAll = m.HelpVisible
		return m, nil
	case key.Matches(msg, m.keys.Reload):
		m.Status = StatusBar{Text: "reloaded"}
		return m, m.loadCmd()
	case key.Matches(msg, m.keys.Palette):
		return m.openPalette("")
	case key.Matches(msg, m.keys.Add):
		return m.openPalette("add ")
	case key.Matches(msg, m.keys.Filter):
		m.Filter.Status = nextFilter(m.Filter.Status)
		m.Status = StatusBar{Text: "filter: " + filterLabel(m.Filter)}
		return m, m.loadCmd()
	case key.Matches(msg, m.keys.Sort):
		m.Filter.SortBy = nextSort(m.Filter.SortBy)
		m.Filter.Desc = false
		m.Status = StatusBar{Text: "sort: " + string(m.Filter.SortBy)}
		return m, m.loadCmd()
	case key.Matches(msg, m.keys.Toggle):
		return m.withSelection(m.toggleCmd)
	case key.Matches(msg, m.keys.CycleStatus):
		return m.withSelection(m.cycleStatusCmd)
	case key.Matches(msg, m.keys.Delete):
		return m.withSelection(m.deleteCmd)
	}
	return m, nil
}

func (m Model) withSelection(build func(model.Task) tea.Cmd) (tea.Model, tea.Cmd) {
	sel := m.selected()
	if sel == nil {
		m.setError(ErrNoSelection)
		return m, nil
	}
	return m, build(*sel)
}

func (m Model) openPalette(prefill string) (tea.Model, tea.Cmd) {
	m.PaletteOpen = true
	m.input.SetValue(prefill)
	m.input.CursorEnd()
	m.Status = StatusBar{Text: "command palette active"}
	focus := m.input.Focus()
	return m, focus
}

func (m Model) closePalette() Model {
	m.PaletteOpen = false
	m.input.Blur()
	m.input.SetValue("")
	return m
}

func (m Model) handlePaletteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m = m.closePalette()
		m.Status = StatusBar{Text: "command palette closed"}
		return m, nil
	case tea.KeyEnter:
		line := m.input.Value()
		m = m.closePalette()
		return m.runPalette(line)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) runPalette(line string) (tea.Model, tea.Cmd) {
	parsed, err := commands.Parse(line, m.loc)
	if err != nil {
		m.setError(err)
		return m, nil
	}

	var work tea.Cmd
	res, err := commands.Execute(parsed, commands.Handlers{
		Add: func(a commands.AddArgs) (commands.Result, error) {
			work = m.createCmd(tasks.CreateInput{
				Title:      a.Title,
				Priority:   a.Priority,
				Tags:       a.Tags,
				DueDate:    a.DueDate,
				ReminderAt: a.ReminderAt,
				Recurrence: a.Recurrence,
			})
			return commands.Result{Message: "adding " + a.Title}, nil
		},
		Show: func(a commands.ShowArgs) (commands.Result, error) {
			m.Filter.Status = a.Status
			m.Filter.Priority = a.Priority
			m.Filter.Tag = a.Tag
			work = m.loadCmd()
			return commands.Result{Message: "filter: " + filterLabel(m.Filter)}, nil
		},
		Sort: func(a commands.SortArgs) (commands.Result, error) {
			m.Filter.SortBy = a.Field
			m.Filter.Desc = a.Desc
			work = m.loadCmd()
			return commands.Result{Message: "sort: " + string(a.Field)}, nil
		},
		Search: func(a commands.SearchArgs) (commands.Result, error) {
			m.Filter.Search = a.Keyword
			work = m.loadCmd()
			if a.Keyword == "" {
				return commands.Result{Message: "search cleared"}, nil
			}
			return commands.Result{Message: "search: " + a.Keyword}, nil
		},
		Reschedule: func(a commands.RescheduleArgs) (commands.Result, error) {
			sel := m.selected()
			if sel == nil {
				return commands.Result{}, ErrNoSelection
			}
			in := tasks.UpdateInput{DueDate: a.When, ClearDueDate: a.When == nil}
			work = m.updateCmd(*sel, in, "rescheduled")
			return commands.Result{Message: "rescheduling " + sel.Title}, nil
		},
		Status: func(a commands.StatusArgs) (commands.Result, error) {
			sel := m.selected()
			if sel == nil {
				return commands.Result{}, ErrNoSelection
			}
			work = m.setStatusCmd(*sel, a.Status)
			return commands.Result{Message: "updating " + sel.Title}, nil
		},
	})
	if err != nil {
		m.setError(err)
		return m, nil
	}
	m.Status = StatusBar{Text: res.Message}
	return m, work
}

func (m Model) createCmd(in tasks.CreateInput) tea.Cmd {
	svc, ctx := m.svc, m.ctx
	return actionCmd(func() (string, error) {
		t, err := svc.Create(ctx, in)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("added %q", t.Title), nil
	})
}

func (m Model) updateCmd(t model.Task, in tasks.UpdateInput, verb string) tea.Cmd {
	svc, ctx := m.svc, m.ctx
	return actionCmd(func() (string, error) {
		if _, err := svc.Update(ctx, t.ID, in); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %q", verb, t.Title), nil
	})
}

func (m Model) toggleCmd(t model.Task) tea.Cmd {
	coord, ctx, loc := m.svc.Coordinator(), m.ctx, m.loc
	return actionCmd(func() (string, error) {
		res, err := coord.ToggleCompletion(ctx, t.ID)
		if err != nil {
			return "", err
		}
		return describeResult(res, loc), nil
	})
}

func (m Model) cycleStatusCmd(t model.Task) tea.Cmd {
	return m.setStatusCmd(t, nextStatus(t.Status))
}

func (m Model) setStatusCmd(t model.Task, status model.Status) tea.Cmd {
	coord, ctx, loc := m.svc.Coordinator(), m.ctx, m.loc
	return actionCmd(func() (string, error) {
		res, err := coord.SetStatus(ctx, t.ID, status)
		if err != nil {
			return "", err
		}
		return describeResult(res, loc), nil
	})
}

func (m Model) deleteCmd(t model.Task) tea.Cmd {
	svc, ctx := m.svc, m.ctx
	return actionCmd(func() (string, error) {
		if err := svc.Delete(ctx, t.ID); err != nil {
			return "", err
		}
		return fmt.Sprintf("deleted %q", t.Title), nil
	})
}

func describeResult(res completion.Result, loc *time.Location) string {
	text := fmt.Sprintf("%q is %s", res.Task.Title, res.Task.Status)
	if !res.Changed {
		text += " (unchanged)"
	}
	if res.Clone != nil && res.Clone.DueDate != nil {
		text += fmt.Sprintf("; next due %s", res.Clone.DueDate.In(loc).Format("2006-01-02 15:04"))
	}
	return text
}

func filterLabel(f storage.Filter) string {
	var parts []string
	if f.Status == "" {
		parts = append(parts, "all")
	} else {
		parts = append(parts, string(f.Status))
	}
	if f.Priority != "" {
		parts = append(parts, "priority:"+string(f.Priority))
	}
	if f.Tag != "" {
		parts = append(parts, "tag:"+f.Tag)
	}
	if f.Search != "" {
		parts = append(parts, fmt.Sprintf("search:%q", f.Search))
	}
	return strings.Join(parts, " ")
}
