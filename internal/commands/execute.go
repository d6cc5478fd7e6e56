package commands

import "fmt"

type Result struct {
	Message string
}

type Handlers struct {
	Add        func(AddArgs) (Result, error)
	Show       func(ShowArgs) (Result, error)
	Sort       func(SortArgs) (Result, error)
	Search     func(SearchArgs) (Result, error)
	Reschedule func(RescheduleArgs) (Result, error)
	Status     func(StatusArgs) (Result, error)
}

func missing(name string) error {
	return &CommandError{Code: ErrCodeHandlerMissing, Message: name + " handler not configured"}
}

func Execute(cmd Command, handlers Handlers) (Result, error) {
	switch cmd.Type {
	case TypeAdd:
		if handlers.Add == nil {
			return Result{}, missing("add")
		}
		return handlers.Add(*cmd.Add)
	case TypeShow:
		if handlers.Show == nil {
			return Result{}, missing("show")
		}
		return handlers.Show(*cmd.Show)
	case TypeSort:
		if handlers.Sort == nil {
			return Result{}, missing("sort")
		}
		return handlers.Sort(*cmd.Sort)
	case TypeSearch:
		if handlers.Search == nil {
			return Result{}, missing("search")
		}
		return handlers.Search(*cmd.Search)
	case TypeReschedule:
		if handlers.Reschedule == nil {
			return Result{}, missing("reschedule")
		}
		return handlers.Reschedule(*cmd.Reschedule)
	case TypeStatus:
		if handlers.Status == nil {
			return Result{}, missing("status")
		}
		return handlers.Status(*cmd.Status)
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}
