package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/todoflow/internal/config"
	"github.com/sandeepkv93/todoflow/internal/export"
	"github.com/sandeepkv93/todoflow/internal/model"
	"github.com/sandeepkv93/todoflow/internal/storage"
	"github.com/sandeepkv93/todoflow/internal/tasks"
	"github.com/sandeepkv93/todoflow/internal/tui"
	"github.com/sandeepkv93/todoflow/internal/views"
)

func tuiCmd(cfg func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive console",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logFile, err := os.CreateTemp("", "todoflow-tui-*.log")
			if err != nil {
				return err
			}
			defer logFile.Close()

			st, err := openStack(cmd.Context(), cfg(), stackOptions{logOutput: logFile, reminders: true})
			if err != nil {
				return err
			}
			defer st.Close()

			m := tui.NewModel(cmd.Context(), st.service, tui.WithScheduler(st.engine))
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
}

func addCmd(cfg func() config.Config) *cobra.Command {
	var (
		description string
		priority    string
		tags        string
		due         string
		remind      string
		every       string
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := tasks.CreateInput{
				Title:       strings.Join(args, " "),
				Description: description,
				Tags:        model.ParseTags(tags),
			}
			var err error
			if priority != "" {
				if in.Priority, err = model.ParsePriority(priority); err != nil {
					return err
				}
			}
			if in.DueDate, err = model.ParseDate(due, time.Local); err != nil {
				return err
			}
			if in.ReminderAt, err = model.ParseDate(remind, time.Local); err != nil {
				return err
			}
			if every != "" {
				rule, err := model.ParseRecurrenceRule(every)
				if err != nil {
					return err
				}
				in.Recurrence = &rule
			}

			st, err := openStack(cmd.Context(), cfg(), stackOptions{})
			if err != nil {
				return err
			}
			defer st.Close()

			t, err := st.service.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s\n", t.ID, t.Title)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&description, "description", "d", "", "task description")
	f.StringVarP(&priority, "priority", "p", "", "low, medium or high")
	f.StringVarP(&tags, "tags", "t", "", "comma separated tags")
	f.StringVar(&due, "due", "", "due date (YYYY-MM-DD or YYYY-MM-DD HH:MM)")
	f.StringVar(&remind, "remind", "", "reminder time")
	f.StringVar(&every, "every", "", "recurrence: daily, weekly, monthly or yearly")
	return cmd
}

func listCmd(cfg func() config.Config) *cobra.Command {
	var (
		status   string
		priority string
		tag      string
		search   string
		sortBy   string
		desc     bool
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := storage.Filter{Tag: tag, Search: search, Desc: desc, Limit: limit}
			var err error
			if status != "" {
				if filter.Status, err = model.ParseStatus(status); err != nil {
					return err
				}
			}
			if priority != "" {
				if filter.Priority, err = model.ParsePriority(priority); err != nil {
					return err
				}
			}
			if filter.SortBy, err = storage.ParseSortField(sortBy); err != nil {
				return err
			}

			st, err := openStack(cmd.Context(), cfg(), stackOptions{})
			if err != nil {
				return err
			}
			defer st.Close()

			list, err := st.service.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), list, time.Now())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&status, "status", "s", "", "pending, in_progress or completed")
	f.StringVarP(&priority, "priority", "p", "", "low, medium or high")
	f.StringVarP(&tag, "tag", "t", "", "only tasks with this tag")
	f.StringVarP(&search, "search", "q", "", "keyword in title or description")
	f.StringVar(&sortBy, "sort", "created_at", "created_at, due_date, priority, title or status")
	f.BoolVar(&desc, "desc", false, "reverse sort order")
	f.IntVarP(&limit, "limit", "n", 0, "maximum number of tasks")
	return cmd
}

func printTasks(w io.Writer, list []model.Task, now time.Time) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no tasks")
		return
	}
	for _, t := range list {
		fmt.Fprintf(w, "%s  %s\n", shortID(t.ID), views.TaskRow(t, now))
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func completeCmd(cfg func() config.Config) *cobra.Command {
	var toggle bool
	cmd := &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Mark a task completed, spawning its next occurrence if it repeats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStack(cmd.Context(), cfg(), stackOptions{})
			if err != nil {
				return err
			}
			defer st.Close()

			id, err := resolveID(cmd, st, args[0])
			if err != nil {
				return err
			}
			run := st.coord.Complete
			if toggle {
				run = st.coord.ToggleCompletion
			}
			res, err := run(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s is %s\n", res.Task.Title, res.Task.Status)
			if res.Clone != nil && res.Clone.DueDate != nil {
				fmt.Fprintf(out, "next occurrence %s due %s\n", res.Clone.ID, res.Clone.DueDate.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&toggle, "toggle", false, "reopen the task if it is already completed")
	return cmd
}

// resolveID accepts a full id or an unambiguous prefix of one.
func resolveID(cmd *cobra.Command, st *stack, arg string) (string, error) {
	if _, err := st.store.Get(cmd.Context(), arg); err == nil {
		return arg, nil
	}
	list, err := st.store.List(cmd.Context(), storage.Filter{})
	if err != nil {
		return "", err
	}
	var match string
	for _, t := range list {
		if strings.HasPrefix(t.ID, arg) {
			if match != "" {
				return "", fmt.Errorf("task id prefix %q is ambiguous", arg)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("task %q not found", arg)
	}
	return match, nil
}

func exportCmd(cfg func() config.Config) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Write every task to a JSON or YAML snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f := export.FormatFromPath(path)
			if format != "" {
				parsed, err := export.ParseFormat(format)
				if err != nil {
					return err
				}
				f = parsed
			}

			st, err := openStack(cmd.Context(), cfg(), stackOptions{})
			if err != nil {
				return err
			}
			defer st.Close()

			list, err := st.service.List(cmd.Context(), storage.Filter{})
			if err != nil {
				return err
			}
			if err := export.Write(path, list, f, time.Now()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d task(s) to %s\n", len(list), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "json or yaml (default from file extension)")
	return cmd
}
