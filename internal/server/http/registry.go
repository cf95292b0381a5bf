package httpserver

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scriptoria/litreview/internal/domain"
)

// RunStatus is the lifecycle state of a review run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// IsTerminal reports whether the status will not change again.
func (s RunStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RunState is a snapshot of one run held by the registry.
type RunState struct {
	ID            uuid.UUID            `json:"id"`
	Topic         string               `json:"topic"`
	MinReferences int                  `json:"min_references"`
	Status        RunStatus            `json:"status"`
	Error         string               `json:"error,omitempty"`
	Result        *domain.ReviewResult `json:"result,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	CompletedAt   *time.Time           `json:"completed_at,omitempty"`
}

// ProgressEvent is one entry on a run's event stream.
type ProgressEvent struct {
	EventType string    `json:"event_type"`
	RunID     string    `json:"run_id"`
	Status    RunStatus `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// subscriberBuffer bounds a subscriber's event channel; slow consumers
// lose events rather than blocking the run.
const subscriberBuffer = 64

type run struct {
	state       RunState
	history     []ProgressEvent
	subscribers map[chan ProgressEvent]struct{}
}

// Registry holds the state and progress streams of all runs in memory.
// There is no persistence: a restart forgets every run.
type Registry struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*run
}

// NewRegistry creates an empty run registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[uuid.UUID]*run)}
}

// Create registers a new pending run.
func (reg *Registry) Create(req domain.ReviewRequest) RunState {
	state := RunState{
		ID:            req.ID,
		Topic:         req.Topic,
		MinReferences: req.MinReferences,
		Status:        StatusPending,
		CreatedAt:     req.CreatedAt,
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.runs[req.ID] = &run{
		state:       state,
		subscribers: make(map[chan ProgressEvent]struct{}),
	}
	return state
}

// Get returns a snapshot of the run, if known.
func (reg *Registry) Get(id uuid.UUID) (RunState, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.runs[id]
	if !ok {
		return RunState{}, false
	}
	return r.state, true
}

// MarkRunning transitions the run to running and publishes the transition.
func (reg *Registry) MarkRunning(id uuid.UUID) {
	reg.transition(id, StatusRunning, "run started", nil, "")
}

// MarkCompleted stores the result, transitions to completed, publishes a
// terminal event, and closes all subscriber channels.
func (reg *Registry) MarkCompleted(id uuid.UUID, result *domain.ReviewResult) {
	reg.transition(id, StatusCompleted, "run completed", result, "")
}

// MarkFailed records the failure, publishes a terminal event, and closes
// all subscriber channels.
func (reg *Registry) MarkFailed(id uuid.UUID, runErr error) {
	reg.transition(id, StatusFailed, "run failed", nil, runErr.Error())
}

// Progress routes a pipeline status update onto the run's event stream.
// The signature matches the pipeline's progress sink.
func (reg *Registry) Progress(runID, status string) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return
	}
	reg.Publish(id, status)
}

// Publish appends a progress event to the run's stream.
func (reg *Registry) Publish(id uuid.UUID, message string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.runs[id]
	if !ok || r.state.Status.IsTerminal() {
		return
	}
	r.broadcast(ProgressEvent{
		EventType: "progress",
		RunID:     id.String(),
		Status:    r.state.Status,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// Subscribe returns the run's event history so far plus a channel for
// subsequent events. The channel is closed when the run reaches a terminal
// state. The returned cancel func must be called when the consumer stops
// listening.
func (reg *Registry) Subscribe(id uuid.UUID) (history []ProgressEvent, events <-chan ProgressEvent, cancel func(), ok bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, present := reg.runs[id]
	if !present {
		return nil, nil, nil, false
	}

	history = append([]ProgressEvent(nil), r.history...)

	ch := make(chan ProgressEvent, subscriberBuffer)
	if r.state.Status.IsTerminal() {
		close(ch)
		return history, ch, func() {}, true
	}

	r.subscribers[ch] = struct{}{}
	cancel = func() {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		if _, still := r.subscribers[ch]; still {
			delete(r.subscribers, ch)
			close(ch)
		}
	}
	return history, ch, cancel, true
}

func (reg *Registry) transition(id uuid.UUID, status RunStatus, message string, result *domain.ReviewResult, errMessage string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.runs[id]
	if !ok || r.state.Status.IsTerminal() {
		return
	}

	r.state.Status = status
	if result != nil {
		r.state.Result = result
	}
	if errMessage != "" {
		r.state.Error = errMessage
	}
	if status.IsTerminal() {
		now := time.Now().UTC()
		r.state.CompletedAt = &now
	}

	r.broadcast(ProgressEvent{
		EventType: string(status),
		RunID:     id.String(),
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})

	if status.IsTerminal() {
		for ch := range r.subscribers {
			close(ch)
		}
		r.subscribers = make(map[chan ProgressEvent]struct{})
	}
}

// broadcast appends to history and fans out to subscribers. Caller holds
// the registry lock. A full subscriber channel drops the event.
func (r *run) broadcast(event ProgressEvent) {
	r.history = append(r.history, event)
	for ch := range r.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
