// Package checker drives per-question and batch validation and owns the
// in-memory check state of the question collection.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/qchecker/internal/model"
)

var (
	// ErrBatchRunning is returned by CheckAll while another batch is running.
	ErrBatchRunning = errors.New("a batch check is already running")
	// ErrBusy is returned by Reload while checks are in flight, and by
	// CheckAll while a reload is fetching.
	ErrBusy = errors.New("checks are in flight")
)

// Gateway loads questions and persists verdicts.
type Gateway interface {
	FetchAll(ctx context.Context) ([]model.Question, error)
	PersistVerdict(ctx context.Context, id string, isWrong bool) error
}

// Judge decides whether a question is malformed.
type Judge interface {
	Judge(ctx context.Context, q model.Question) (bool, error)
}

// PersistError reports that a verdict was computed but not saved.
type PersistError struct {
	QuestionID string
	Err        error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist verdict for question %s: %v", e.QuestionID, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Progress is the state of the current or last batch run.
type Progress struct {
	RunID   string `json:"run_id,omitempty"`
	Running bool   `json:"running"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
}

// Item is a question with its derived display status.
type Item struct {
	Question model.Question `json:"question"`
	Status   model.Status   `json:"status"`
}

// State is a consistent copy of the checker state.
type State struct {
	Loaded    bool               `json:"loaded"`
	LoadError string             `json:"load_error,omitempty"`
	LastError string             `json:"last_error,omitempty"`
	Items     []Item             `json:"items"`
	InFlight  []string           `json:"in_flight"`
	Progress  Progress           `json:"progress"`
	Counts    model.StatusCounts `json:"counts"`
}

// Busy reports whether any check is running.
func (s State) Busy() bool {
	return len(s.InFlight) > 0 || s.Progress.Running
}

// Option configures a Checker.
type Option func(*Checker)

// WithCheckTimeout bounds each single-question check. Zero means no deadline.
func WithCheckTimeout(d time.Duration) Option {
	return func(c *Checker) { c.timeout = d }
}

// Checker orchestrates checks over the loaded question collection. All state
// is guarded by mu; no lock is held during judge or gateway calls.
type Checker struct {
	gateway Gateway
	judge   Judge
	timeout time.Duration

	mu        sync.Mutex
	loaded    bool
	reloading bool
	loadErr   error
	lastErr   error
	order     []string
	questions map[string]*model.Question
	inFlight  map[string]struct{}
	progress  Progress

	events *broker
}

// New creates a Checker. Call Reload to load the collection.
func New(gateway Gateway, judge Judge, opts ...Option) *Checker {
	c := &Checker{
		gateway:   gateway,
		judge:     judge,
		questions: make(map[string]*model.Question),
		inFlight:  make(map[string]struct{}),
		events:    newBroker(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Reload replaces the collection with a fresh fetch. On failure the
// collection is emptied and the error is kept for display; no partial list
// is shown. No check can start while the fetch is outstanding.
func (c *Checker) Reload(ctx context.Context) error {
	c.mu.Lock()
	if c.reloading || len(c.inFlight) > 0 || c.progress.Running {
		c.mu.Unlock()
		return ErrBusy
	}
	c.reloading = true
	c.mu.Unlock()

	questions, fetchErr := c.gateway.FetchAll(ctx)

	c.mu.Lock()
	c.reloading = false
	c.loaded = true
	c.lastErr = nil
	c.order = nil
	c.questions = make(map[string]*model.Question)
	c.progress = Progress{}
	if fetchErr != nil {
		c.loadErr = fetchErr
	} else {
		c.loadErr = nil
		for _, q := range questions {
			if _, dup := c.questions[q.ID]; dup {
				slog.Warn("duplicate question id, keeping first", "id", q.ID)
				continue
			}
			qc := q.Clone()
			c.order = append(c.order, q.ID)
			c.questions[q.ID] = &qc
		}
	}
	count := len(c.order)
	c.mu.Unlock()

	if fetchErr != nil {
		slog.Error("failed to load questions", "error", fetchErr)
		c.events.publish(Event{Type: EventLoadFailed, Error: fetchErr.Error()})
		return fmt.Errorf("fetch questions: %w", fetchErr)
	}
	slog.Info("loaded questions", "count", count)
	c.events.publish(Event{Type: EventLoaded, Total: count})
	return nil
}

// CheckOne validates a single question and persists the verdict. It returns
// false without doing anything when id is unknown, already being checked, or
// a reload is in progress.
// Failures are never returned: they are recorded on the question as
// IsWrong=true and CheckError=true.
func (c *Checker) CheckOne(ctx context.Context, id string) bool {
	q, ok := c.begin(id)
	if !ok {
		return false
	}
	c.run(ctx, q)
	return true
}

// Go starts CheckOne in a new goroutine. It reports whether the check was
// started; a duplicate or unknown id is rejected synchronously.
func (c *Checker) Go(ctx context.Context, id string) bool {
	q, ok := c.begin(id)
	if !ok {
		return false
	}
	go c.run(ctx, q)
	return true
}

// begin marks id in flight and returns a snapshot of the question.
func (c *Checker) begin(id string) (model.Question, bool) {
	c.mu.Lock()
	if c.reloading {
		c.mu.Unlock()
		return model.Question{}, false
	}
	q, ok := c.questions[id]
	if !ok {
		c.mu.Unlock()
		return model.Question{}, false
	}
	if _, busy := c.inFlight[id]; busy {
		c.mu.Unlock()
		return model.Question{}, false
	}
	c.inFlight[id] = struct{}{}
	snapshot := q.Clone()
	c.mu.Unlock()

	c.events.publish(Event{Type: EventChecking, QuestionID: id, Status: model.StatusChecking})
	return snapshot, true
}

// run judges and persists q, which must already be marked in flight.
func (c *Checker) run(ctx context.Context, q model.Question) {
	var failure error
	defer func() { c.finish(q.ID, failure) }()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	wrong, err := c.judge.Judge(ctx, q)
	if err != nil {
		failure = err
		c.fail(q.ID, err)
		return
	}

	// The local verdict stands even if it can't be saved.
	c.mu.Lock()
	if item, ok := c.questions[q.ID]; ok {
		item.IsWrong = model.Bool(wrong)
		item.CheckError = false
	}
	c.mu.Unlock()

	if err := c.gateway.PersistVerdict(ctx, q.ID, wrong); err != nil {
		failure = &PersistError{QuestionID: q.ID, Err: err}
		c.fail(q.ID, failure)
		return
	}

	slog.Info("question checked", "id", q.ID, "type", q.Type, "wrong", wrong, "elapsed", time.Since(start))
}

// fail records a fail-closed result for id.
func (c *Checker) fail(id string, err error) {
	slog.Error("question check failed", "id", id, "error", err)
	c.mu.Lock()
	if item, ok := c.questions[id]; ok {
		item.IsWrong = model.Bool(true)
		item.CheckError = true
	}
	c.lastErr = err
	c.mu.Unlock()
}

// finish clears the in-flight marker and announces the resulting status.
// failure is this check's own error, if any.
func (c *Checker) finish(id string, failure error) {
	c.mu.Lock()
	delete(c.inFlight, id)
	var status model.Status
	if item, ok := c.questions[id]; ok {
		status = model.DeriveStatus(false, *item)
	}
	c.mu.Unlock()

	var errMsg string
	if failure != nil {
		errMsg = failure.Error()
	}

	typ := EventChecked
	if status == model.StatusError {
		typ = EventFailed
	}
	c.events.publish(Event{Type: typ, QuestionID: id, Status: status, Error: errMsg})
}

// CheckAll validates every loaded question sequentially in list order, one at
// a time. A failed item doesn't stop the batch. An item already being checked
// by a concurrent CheckOne is counted without a second model call. The batch
// stops early when ctx is cancelled.
func (c *Checker) CheckAll(ctx context.Context) error {
	ids, runID, err := c.startBatch()
	if err != nil {
		return err
	}
	return c.runBatch(ctx, ids, runID)
}

// StartAll claims the batch and runs it in a new goroutine. It returns
// ErrBatchRunning if a batch is already running and ErrBusy during a reload.
func (c *Checker) StartAll(ctx context.Context) error {
	ids, runID, err := c.startBatch()
	if err != nil {
		return err
	}
	go func() {
		if err := c.runBatch(ctx, ids, runID); err != nil {
			slog.Warn("batch check stopped", "run_id", runID, "error", err)
		}
	}()
	return nil
}

// startBatch marks a batch as running and returns the ids it covers.
func (c *Checker) startBatch() ([]string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.progress.Running {
		return nil, "", ErrBatchRunning
	}
	if c.reloading {
		return nil, "", ErrBusy
	}
	ids := append([]string(nil), c.order...)
	runID := uuid.NewString()
	c.progress = Progress{RunID: runID, Running: true, Total: len(ids)}
	return ids, runID, nil
}

func (c *Checker) runBatch(ctx context.Context, ids []string, runID string) error {
	log := slog.With("run_id", runID)
	log.Info("batch check started", "total", len(ids))
	c.events.publish(Event{Type: EventProgress, Done: 0, Total: len(ids)})

	var runErr error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if !c.CheckOne(ctx, id) {
			log.Info("question already in flight, counting it", "id", id)
		}

		c.mu.Lock()
		c.progress.Done++
		done := c.progress.Done
		c.mu.Unlock()
		c.events.publish(Event{Type: EventProgress, QuestionID: id, Done: done, Total: len(ids)})
	}

	c.mu.Lock()
	c.progress.Running = false
	done := c.progress.Done
	c.mu.Unlock()

	log.Info("batch check finished", "done", done, "total", len(ids), "error", runErr)
	c.events.publish(Event{Type: EventBatchDone, Done: done, Total: len(ids)})
	return runErr
}

// Snapshot returns a consistent copy of the state.
func (c *Checker) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State{
		Loaded:   c.loaded,
		Items:    make([]Item, 0, len(c.order)),
		InFlight: make([]string, 0, len(c.inFlight)),
		Progress: c.progress,
	}
	if c.loadErr != nil {
		st.LoadError = c.loadErr.Error()
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	for _, id := range c.order {
		q := c.questions[id]
		_, inFlight := c.inFlight[id]
		status := model.DeriveStatus(inFlight, *q)
		st.Counts.Add(status)
		st.Items = append(st.Items, Item{Question: q.Clone(), Status: status})
		if inFlight {
			st.InFlight = append(st.InFlight, id)
		}
	}
	return st
}

// Subscribe returns a channel of state transitions and a function that
// cancels the subscription. Slow subscribers miss events rather than block
// the checker.
func (c *Checker) Subscribe() (<-chan Event, func()) {
	return c.events.subscribe()
}
