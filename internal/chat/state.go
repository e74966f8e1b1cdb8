// Package chat implements the multi-turn chat orchestrator.
package chat

import (
	"encoding/json"

	"github.com/ashureev/leadintel/internal/domain"
)

// ErrorReply is appended as the assistant turn when a completion fails.
const ErrorReply = "Sorry, I encountered an error. Please check your API key and try again."

// State is the orchestrator's tagged-union state: Idle or Sending.
type State interface {
	Name() string
	isState()
}

// Idle has no completion outstanding.
type Idle struct{}

// Sending has at least one completion outstanding.
type Sending struct {
	Pending int
}

func (Idle) Name() string    { return "idle" }
func (Sending) Name() string { return "sending" }

func (Idle) isState()    {}
func (Sending) isState() {}

// Snapshot is the observable state of a conversation. Turns is never
// mutated in place, so a snapshot may be shared freely.
type Snapshot struct {
	State     State
	Turns     []domain.Turn
	LastError error
	Pending   int
}

// Busy reports whether a completion is outstanding. Advisory only.
func (s Snapshot) Busy() bool {
	return s.Pending > 0
}

// MarshalJSON renders the snapshot for the API and live feed.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	turns := s.Turns
	if turns == nil {
		turns = []domain.Turn{}
	}
	out := struct {
		State     string        `json:"state"`
		Turns     []domain.Turn `json:"turns"`
		LastError string        `json:"last_error,omitempty"`
		Pending   int           `json:"pending"`
		Busy      bool          `json:"busy"`
	}{
		State:   stateName(s.State),
		Turns:   turns,
		Pending: s.Pending,
		Busy:    s.Busy(),
	}
	if s.LastError != nil {
		out.LastError = s.LastError.Error()
	}
	return json.Marshal(out)
}

func stateName(st State) string {
	if st == nil {
		return Idle{}.Name()
	}
	return st.Name()
}

// Initial returns an empty conversation.
func Initial() Snapshot {
	return Snapshot{State: Idle{}}
}

// Event drives Reduce.
type Event interface {
	isEvent()
}

// UserSent appends the user's turn before the completion is requested.
type UserSent struct{ Turn domain.Turn }

// Replied appends the assistant's reply.
type Replied struct{ Turn domain.Turn }

// Failed appends the fixed error reply and records the cause.
type Failed struct {
	Turn domain.Turn
	Err  error
}

// Rejected records why a send was refused without touching the transcript.
type Rejected struct{ Err error }

// Cleared empties the transcript. Outstanding completions still append
// their reply when they finish.
type Cleared struct{}

func (UserSent) isEvent() {}
func (Replied) isEvent()  {}
func (Failed) isEvent()   {}
func (Rejected) isEvent() {}
func (Cleared) isEvent()  {}

// Reduce applies ev to s without modifying s.
func Reduce(s Snapshot, ev Event) Snapshot {
	switch e := ev.(type) {
	case UserSent:
		s.Turns = appendTurn(s.Turns, e.Turn)
		s.Pending++
	case Replied:
		s.Turns = appendTurn(s.Turns, e.Turn)
		s.Pending = decrement(s.Pending)
		s.LastError = nil
	case Failed:
		s.Turns = appendTurn(s.Turns, e.Turn)
		s.Pending = decrement(s.Pending)
		s.LastError = e.Err
	case Rejected:
		s.LastError = e.Err
	case Cleared:
		s.Turns = []domain.Turn{}
		s.LastError = nil
	}

	if s.Pending > 0 {
		s.State = Sending{Pending: s.Pending}
	} else {
		s.State = Idle{}
	}
	return s
}

func appendTurn(turns []domain.Turn, t domain.Turn) []domain.Turn {
	out := make([]domain.Turn, len(turns), len(turns)+1)
	copy(out, turns)
	return append(out, t)
}

func decrement(n int) int {
	if n > 0 {
		return n - 1
	}
	return 0
}
