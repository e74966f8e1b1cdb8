package inference

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ashureev/leadintel/internal/domain"
)

// State is the orchestrator's tagged-union state. The concrete types are
// Idle, Validating, Requesting, Succeeded and Failed.
type State interface {
	Name() string
	isState()
}

// Idle waits for a submission.
type Idle struct{}

// Validating checks the credential, input and task of a submission.
type Validating struct {
	Task  TaskID
	Input string
}

// Requesting has at least one request outstanding.
type Requesting struct {
	Task  TaskID
	Model string
}

// Succeeded holds the payload of the latest completed request.
type Succeeded struct {
	Task    TaskID
	Payload json.RawMessage
}

// Failed holds the error of the latest failed request.
type Failed struct {
	Task TaskID
	Err  error
}

func (Idle) Name() string       { return "idle" }
func (Validating) Name() string { return "validating" }
func (Requesting) Name() string { return "requesting" }
func (Succeeded) Name() string  { return "succeeded" }
func (Failed) Name() string     { return "failed" }

func (Idle) isState()       {}
func (Validating) isState() {}
func (Requesting) isState() {}
func (Succeeded) isState()  {}
func (Failed) isState()     {}

// Snapshot is the full observable state of an orchestrator.
type Snapshot struct {
	State     State
	Selected  TaskID
	Display   string // single result slot
	LastError error
	InFlight  int
}

// Busy reports whether a request is outstanding. Advisory only.
func (s Snapshot) Busy() bool {
	return s.InFlight > 0
}

// MarshalJSON renders the snapshot for the API and live feed.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := struct {
		State     string `json:"state"`
		Selected  TaskID `json:"selected"`
		Display   string `json:"display"`
		LastError string `json:"last_error,omitempty"`
		InFlight  int    `json:"in_flight"`
		Busy      bool   `json:"busy"`
	}{
		State:    stateName(s.State),
		Selected: s.Selected,
		Display:  s.Display,
		InFlight: s.InFlight,
		Busy:     s.Busy(),
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

// Initial returns the snapshot of a fresh orchestrator.
func Initial() Snapshot {
	return Snapshot{State: Idle{}, Selected: DefaultTask}
}

// Event drives Reduce.
type Event interface {
	isEvent()
}

// Selected changes the task used when a submission names none.
type Selected struct{ Task TaskID }

// Submitted starts validation of a submission.
type Submitted struct {
	Task  TaskID
	Input string
}

// Rejected ends validation without a request (missing credential or input).
// The result slot is left untouched.
type Rejected struct{ Err error }

// Unsupported ends validation of an unknown task without a request.
type Unsupported struct{ Task TaskID }

// Dispatched marks a request as sent.
type Dispatched struct {
	Task  TaskID
	Model string
}

// Completed delivers a successful reply.
type Completed struct {
	Task    TaskID
	Payload json.RawMessage
}

// Errored delivers a failed request.
type Errored struct {
	Task TaskID
	Err  error
}

// Settled returns a finished orchestrator to Idle.
type Settled struct{}

func (Selected) isEvent()    {}
func (Submitted) isEvent()   {}
func (Rejected) isEvent()    {}
func (Unsupported) isEvent() {}
func (Dispatched) isEvent()  {}
func (Completed) isEvent()   {}
func (Errored) isEvent()     {}
func (Settled) isEvent()     {}

// Reduce applies ev to s. It is total: overlapping submissions may deliver
// any event in any state, and the latest Completed or Errored owns the
// result slot.
func Reduce(s Snapshot, ev Event) Snapshot {
	switch e := ev.(type) {
	case Selected:
		s.Selected = e.Task
	case Submitted:
		s.State = Validating(e)
	case Rejected:
		s.LastError = e.Err
		s.State = settledState(s)
	case Unsupported:
		s.LastError = domain.ErrUnsupportedTask
		s.Display = errorDisplay(domain.ErrUnsupportedTask)
		s.State = Failed{Task: e.Task, Err: domain.ErrUnsupportedTask}
	case Dispatched:
		s.InFlight++
		s.State = Requesting(e)
	case Completed:
		s.InFlight = decrement(s.InFlight)
		s.LastError = nil
		s.Display = FormatPayload(e.Payload)
		s.State = Succeeded(e)
	case Errored:
		s.InFlight = decrement(s.InFlight)
		s.LastError = e.Err
		s.Display = errorDisplay(e.Err)
		s.State = Failed(e)
	case Settled:
		s.State = settledState(s)
	}
	return s
}

// settledState is Idle unless another request is still outstanding.
func settledState(s Snapshot) State {
	if s.InFlight > 0 {
		if r, ok := s.State.(Requesting); ok {
			return r
		}
		return Requesting{Task: s.Selected}
	}
	return Idle{}
}

func decrement(n int) int {
	if n > 0 {
		return n - 1
	}
	return 0
}

// FormatPayload renders a provider reply: two-space indented JSON when the
// payload is JSON, the raw text otherwise.
func FormatPayload(payload []byte) string {
	if json.Valid(payload) {
		var buf bytes.Buffer
		if err := json.Indent(&buf, payload, "", "  "); err == nil {
			return buf.String()
		}
	}
	return string(payload)
}

func errorDisplay(err error) string {
	if err == nil || strings.TrimSpace(err.Error()) == "" {
		return "Error: request failed"
	}
	return "Error: " + err.Error()
}
