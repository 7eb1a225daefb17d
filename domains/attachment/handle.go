package attachment

import (
	"context"
	"sync"

	"github.com/AzielCF/az-wrap/domains/media"
	"github.com/AzielCF/az-wrap/pkg/liveness"
	"github.com/AzielCF/az-wrap/pkg/rendertree"
	"github.com/google/uuid"
)

// State is the load state of one rendered attachment.
type State string

const (
	StatePlaceholder State = "placeholder"
	StateQueued      State = "queued"
	StateLoading     State = "loading"
	StateReady       State = "ready"
	StateCancelled   State = "cancelled"
	StateAborted     State = "aborted"
)

var transitions = map[State][]State{
	StatePlaceholder: {StateQueued, StateLoading, StateReady, StateAborted},
	StateQueued:      {StateLoading, StateAborted},
	StateLoading:     {StateReady, StateAborted, StateCancelled, StatePlaceholder},
	StateCancelled:   {StatePlaceholder},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Handle tracks one render call. Each load attempt has its own completion channel so a
// cancelled or failed load can be retried on the same handle.
type Handle struct {
	ID       string
	Kind     Kind
	Target   *rendertree.Node
	Token    *liveness.Token
	Decision SchedulingDecision

	mu       sync.Mutex
	state    State
	history  []State
	err      error
	done     chan struct{}
	settled  bool
	children []*Handle
}

func NewHandle(kind Kind, target *rendertree.Node, token *liveness.Token) *Handle {
	return &Handle{
		ID:      uuid.NewString(),
		Kind:    kind,
		Target:  target,
		Token:   token,
		state:   StatePlaceholder,
		history: []State{StatePlaceholder},
		done:    make(chan struct{}),
	}
}

func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// History returns every state the handle went through, oldest first.
func (h *Handle) History() []State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]State(nil), h.history...)
}

// Err returns the error of the last settled attempt.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Done is closed when the current attempt settles.
func (h *Handle) Done() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// Wait blocks until the current attempt settles and returns its error.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.Done():
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Transition moves the handle to a new state. It returns false when the move is not
// allowed from the current state.
func (h *Handle) Transition(to State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.transitionLocked(to, nil)
}

func (h *Handle) transitionLocked(to State, err error) bool {
	if !canTransition(h.state, to) {
		return false
	}
	if h.settled && (to == StateQueued || to == StateLoading) {
		h.done = make(chan struct{})
		h.settled = false
		h.err = nil
	}
	h.state = to
	h.history = append(h.history, to)
	switch to {
	case StateReady, StateAborted, StateCancelled:
		h.settleLocked(err)
	case StatePlaceholder:
		if err != nil {
			h.settleLocked(err)
		}
	}
	return true
}

func (h *Handle) settleLocked(err error) {
	if h.settled {
		return
	}
	h.err = err
	h.settled = true
	close(h.done)
}

// Ready marks the attempt successful.
func (h *Handle) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.transitionLocked(StateReady, nil)
}

// Abort marks a completion that arrived after the token was revoked.
func (h *Handle) Abort() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.transitionLocked(StateAborted, media.ErrStaleCompletion)
}

// Cancel records a user cancel and returns the handle to Placeholder.
func (h *Handle) Cancel() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.transitionLocked(StateCancelled, media.ErrCancelled) {
		return false
	}
	return h.transitionLocked(StatePlaceholder, nil)
}

// Fail reverts a loading attempt to Placeholder with err.
func (h *Handle) Fail(err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		err = media.ErrTransportFailure
	}
	return h.transitionLocked(StatePlaceholder, err)
}

// Settle finishes the attempt with err while staying in the current state. It is used when
// nothing will be loaded, such as a disabled autoload.
func (h *Handle) Settle(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.settleLocked(err)
}

// AddChild links the handle of a nested render, such as album items.
func (h *Handle) AddChild(c *Handle) {
	h.mu.Lock()
	h.children = append(h.children, c)
	h.mu.Unlock()
}

func (h *Handle) Children() []*Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Handle(nil), h.children...)
}
