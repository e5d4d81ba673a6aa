package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/rs/zerolog"
)

// Transition is one recorded lifecycle step
type Transition struct {
	From domain.RunState `json:"from"`
	To   domain.RunState `json:"to"`
	At   time.Time       `json:"at"`
}

// run tracks the lifecycle of a single request
type run struct {
	id      string
	mu      sync.Mutex
	state   domain.RunState
	history []Transition
	log     zerolog.Logger
}

func newRun(id string, log zerolog.Logger) *run {
	return &run{
		id:    id,
		state: domain.RunCreated,
		log:   log.With().Str("run_id", id).Logger(),
	}
}

// advance moves the run to next, rejecting illegal transitions.
func (r *run) advance(next domain.RunState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.state.CanTransition(next) {
		return fmt.Errorf("illegal run transition %s -> %s", r.state, next)
	}
	r.history = append(r.history, Transition{From: r.state, To: next, At: time.Now()})
	r.log.Debug().
		Str("from", string(r.state)).
		Str("to", string(next)).
		Msg("Run state transition")
	r.state = next
	return nil
}

// fail moves the run to FAILED from any non-terminal state.
func (r *run) fail() {
	r.mu.Lock()
	terminal := r.state.Terminal()
	r.mu.Unlock()
	if !terminal {
		_ = r.advance(domain.RunFailed)
	}
}

func (r *run) State() domain.RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *run) transitions() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transition(nil), r.history...)
}
