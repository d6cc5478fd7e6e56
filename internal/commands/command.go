// Package commands parses the slash commands typed into the console's
// command palette.
package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/todoflow/internal/model"
	"github.com/sandeepkv93/todoflow/internal/storage"
)

type Type string

const (
	TypeAdd        Type = "add"
	TypeShow       Type = "show"
	TypeSort       Type = "sort"
	TypeSearch     Type = "search"
	TypeReschedule Type = "reschedule"
	TypeStatus     Type = "status"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AddArgs is a quick-add: free title words plus optional tokens
// !priority, #tag or tag:x, due:DATE, remind:DATE and every:RULE.
type AddArgs struct {
	Title      string
	Priority   model.Priority
	Tags       []string
	DueDate    *time.Time
	ReminderAt *time.Time
	Recurrence *model.RecurrenceRule
}

// ShowArgs narrows the list. An empty Status shows every status.
type ShowArgs struct {
	Status   model.Status
	Priority model.Priority
	Tag      string
}

type SortArgs struct {
	Field storage.SortField
	Desc  bool
}

type SearchArgs struct {
	Keyword string
}

// RescheduleArgs moves the selected task; a nil When clears its due date.
type RescheduleArgs struct {
	When *time.Time
}

type StatusArgs struct {
	Status model.Status
}

type Command struct {
	Type       Type
	Raw        string
	Add        *AddArgs
	Show       *ShowArgs
	Sort       *SortArgs
	Search     *SearchArgs
	Reschedule *RescheduleArgs
	Status     *StatusArgs
}

// Parse reads one palette line. Dates are interpreted in loc.
func Parse(input string, loc *time.Location) (Command, error) {
	raw := strings.TrimSpace(input)
	if strings.HasPrefix(raw, "/") {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	if loc == nil {
		loc = time.Local
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeAdd:
		return parseAdd(input, args, loc)
	case TypeShow:
		return parseShow(input, args)
	case TypeSort:
		return parseSort(input, args)
	case TypeSearch:
		return Command{Type: TypeSearch, Raw: input, Search: &SearchArgs{Keyword: strings.Join(args, " ")}}, nil
	case TypeReschedule:
		return parseReschedule(input, args, loc)
	case TypeStatus:
		return parseStatus(input, args)
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func invalid(format string, a ...any) error {
	return &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf(format, a...)}
}

func parseAdd(raw string, args []string, loc *time.Location) (Command, error) {
	out := AddArgs{}
	var title []string
	for _, arg := range args {
		lower := strings.ToLower(arg)
		switch {
		case strings.HasPrefix(arg, "!") && len(arg) > 1:
			p, err := model.ParsePriority(arg[1:])
			if err != nil {
				return Command{}, invalid("unknown priority %q", arg[1:])
			}
			out.Priority = p
		case strings.HasPrefix(arg, "#") && len(arg) > 1:
			out.Tags = append(out.Tags, arg[1:])
		case strings.HasPrefix(lower, "tag:"):
			out.Tags = append(out.Tags, arg[len("tag:"):])
		case strings.HasPrefix(lower, "due:"):
			due, err := model.ParseDate(arg[len("due:"):], loc)
			if err != nil {
				return Command{}, invalid("%v", err)
			}
			out.DueDate = due
		case strings.HasPrefix(lower, "remind:"):
			at, err := model.ParseDate(arg[len("remind:"):], loc)
			if err != nil {
				return Command{}, invalid("%v", err)
			}
			out.ReminderAt = at
		case strings.HasPrefix(lower, "every:"):
			rule, err := model.ParseRecurrenceRule(arg[len("every:"):])
			if err != nil {
				return Command{}, invalid("unknown recurrence %q", arg[len("every:"):])
			}
			out.Recurrence = &rule
		default:
			title = append(title, arg)
		}
	}
	out.Title = strings.TrimSpace(strings.Join(title, " "))
	if out.Title == "" {
		return Command{}, invalid("add requires a title")
	}
	out.Tags = model.NormalizeTags(out.Tags)
	return Command{Type: TypeAdd, Raw: raw, Add: &out}, nil
}

func parseShow(raw string, args []string) (Command, error) {
	out := ShowArgs{}
	for _, arg := range args {
		lower := strings.ToLower(arg)
		switch {
		case lower == "all":
			out.Status = ""
		case strings.HasPrefix(lower, "tag:"):
			out.Tag = strings.TrimSpace(arg[len("tag:"):])
		case strings.HasPrefix(lower, "priority:"):
			p, err := model.ParsePriority(arg[len("priority:"):])
			if err != nil {
				return Command{}, invalid("unknown priority %q", arg[len("priority:"):])
			}
			out.Priority = p
		default:
			s, err := model.ParseStatus(arg)
			if err != nil {
				return Command{}, invalid("unknown filter %q", arg)
			}
			out.Status = s
		}
	}
	return Command{Type: TypeShow, Raw: raw, Show: &out}, nil
}

func parseSort(raw string, args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, invalid("sort requires a field")
	}
	field, err := storage.ParseSortField(args[0])
	if err != nil {
		return Command{}, invalid("unknown sort field %q", args[0])
	}
	desc := len(args) > 1 && strings.EqualFold(args[1], "desc")
	return Command{Type: TypeSort, Raw: raw, Sort: &SortArgs{Field: field, Desc: desc}}, nil
}

func parseReschedule(raw string, args []string, loc *time.Location) (Command, error) {
	if len(args) == 0 {
		return Command{}, invalid("reschedule requires a date or none")
	}
	joined := strings.Join(args, " ")
	if strings.EqualFold(joined, "none") {
		return Command{Type: TypeReschedule, Raw: raw, Reschedule: &RescheduleArgs{}}, nil
	}
	when, err := model.ParseDate(joined, loc)
	if err != nil {
		return Command{}, invalid("%v", err)
	}
	return Command{Type: TypeReschedule, Raw: raw, Reschedule: &RescheduleArgs{When: when}}, nil
}

func parseStatus(raw string, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, invalid("status requires one of pending, in_progress, completed")
	}
	s, err := model.ParseStatus(args[0])
	if err != nil {
		return Command{}, invalid("unknown status %q", args[0])
	}
	return Command{Type: TypeStatus, Raw: raw, Status: &StatusArgs{Status: s}}, nil
}
