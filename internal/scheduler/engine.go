// Package scheduler fires task reminders at their trigger time.
package scheduler

import (
	"container/heap"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrInvalidTriggerTime = errors.New("scheduler: invalid trigger time")
	ErrMissingTaskID      = errors.New("scheduler: missing task id")
	ErrEngineStopped      = errors.New("scheduler: engine stopped")
)

type ReminderEvent struct {
	TaskID    string
	Title     string
	TriggerAt time.Time
}

type queueItem struct {
	event ReminderEvent
	index int
}

// reminderHeap is ordered by trigger time and tracks each item's position
// so a task's reminder can be moved or removed in place.
type reminderHeap []*queueItem

func (h reminderHeap) Len() int { return len(h) }

func (h reminderHeap) Less(i, j int) bool {
	return h[i].event.TriggerAt.Before(h[j].event.TriggerAt)
}

func (h reminderHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *reminderHeap) Push(x any) {
	item := x.(*queueItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *reminderHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// Engine holds at most one reminder per task. Due reminders are emitted on
// C without blocking; when the consumer lags they are dropped and counted.
type Engine struct {
	mu      sync.Mutex
	queue   reminderHeap
	byTask  map[string]*queueItem
	out     chan ReminderEvent
	wakeup  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	dropped uint64
	fired   uint64
}

func NewEngine(bufferSize int) *Engine {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Engine{
		queue:  make(reminderHeap, 0),
		byTask: make(map[string]*queueItem),
		out:    make(chan ReminderEvent, bufferSize),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// C is closed once the engine stops.
func (e *Engine) C() <-chan ReminderEvent {
	return e.out
}

func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	go e.loop()
}

func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.stopCh)
	e.mu.Unlock()
	<-e.doneCh
}

// Schedule sets the reminder of ev.TaskID, replacing any pending one.
func (e *Engine) Schedule(ev ReminderEvent) error {
	if ev.TriggerAt.IsZero() {
		return ErrInvalidTriggerTime
	}
	if ev.TaskID == "" {
		return ErrMissingTaskID
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrEngineStopped
	}

	if item, ok := e.byTask[ev.TaskID]; ok {
		item.event = ev
		heap.Fix(&e.queue, item.index)
	} else {
		item := &queueItem{event: ev}
		heap.Push(&e.queue, item)
		e.byTask[ev.TaskID] = item
	}
	e.signalWakeup()
	return nil
}

// Cancel drops the pending reminder of taskID and reports whether one
// existed.
func (e *Engine) Cancel(taskID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	item, ok := e.byTask[taskID]
	if !ok {
		return false
	}
	heap.Remove(&e.queue, item.index)
	delete(e.byTask, taskID)
	e.signalWakeup()
	return true
}

func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

func (e *Engine) Dropped() uint64 {
	return atomic.LoadUint64(&e.dropped)
}

func (e *Engine) Fired() uint64 {
	return atomic.LoadUint64(&e.fired)
}

func (e *Engine) loop() {
	defer close(e.doneCh)
	defer close(e.out)

	var timer *time.Timer
	for {
		next, hasNext := e.peek()
		if !hasNext {
			select {
			case <-e.wakeup:
				continue
			case <-e.stopCh:
				return
			}
		}

		wait := time.Until(next.TriggerAt)
		if wait < 0 {
			wait = 0
		}
		timer = resetTimer(timer, wait)

		select {
		case <-timer.C:
			for _, ev := range e.popDue(time.Now()) {
				select {
				case e.out <- ev:
					atomic.AddUint64(&e.fired, 1)
				default:
					atomic.AddUint64(&e.dropped, 1)
				}
			}
		case <-e.wakeup:
			continue
		case <-e.stopCh:
			stopTimer(timer)
			return
		}
	}
}

func (e *Engine) signalWakeup() {
	select {
	case e.wakeup <- struct{}{}:
	default:
	}
}

func (e *Engine) peek() (ReminderEvent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return ReminderEvent{}, false
	}
	return e.queue[0].event, true
}

func (e *Engine) popDue(now time.Time) []ReminderEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []ReminderEvent
	for len(e.queue) > 0 && !e.queue[0].event.TriggerAt.After(now) {
		item := heap.Pop(&e.queue).(*queueItem)
		delete(e.byTask, item.event.TaskID)
		out = append(out, item.event)
	}
	return out
}

func resetTimer(timer *time.Timer, d time.Duration) *time.Timer {
	if timer == nil {
		return time.NewTimer(d)
	}
	stopTimer(timer)
	timer.Reset(d)
	return timer
}

func stopTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
