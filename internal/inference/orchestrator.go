package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ashureev/leadintel/internal/domain"
	"github.com/ashureev/leadintel/internal/telemetry"
)

// Runner issues one inference request.
type Runner interface {
	Run(ctx context.Context, token, model string, payload any) (json.RawMessage, error)
}

// Credentials reads the current bearer token for a provider.
type Credentials interface {
	Get(ctx context.Context, provider domain.Provider) string
}

// Orchestrator owns one result slot. Overlapping submissions are allowed;
// the last one to finish wins the slot.
type Orchestrator struct {
	runner Runner
	creds  Credentials
	logger *slog.Logger

	mu      sync.Mutex
	snap    Snapshot
	subs    map[int]func(Snapshot)
	nextSub int
}

// New creates an orchestrator in the Idle state with DefaultTask selected.
func New(runner Runner, creds Credentials, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		runner: runner,
		creds:  creds,
		logger: logger,
		snap:   Initial(),
		subs:   make(map[int]func(Snapshot)),
	}
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap
}

// Busy reports whether a request is outstanding.
func (o *Orchestrator) Busy() bool {
	return o.Snapshot().Busy()
}

// Select changes the task used by submissions that name none.
func (o *Orchestrator) Select(task TaskID) Snapshot {
	return o.apply(Selected{Task: task})
}

// Subscribe registers fn to receive every new snapshot. The returned func
// removes the subscription.
func (o *Orchestrator) Subscribe(fn func(Snapshot)) func() {
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// Submit validates and runs one task. An empty task uses the selected one.
// Validation failures return without a request and leave the result slot
// untouched, except for an unsupported task which is shown as a failure.
// The credential is read once, before the request is sent.
func (o *Orchestrator) Submit(ctx context.Context, task TaskID, input string) (Snapshot, error) {
	if task == "" {
		task = o.Snapshot().Selected
	}
	o.apply(Submitted{Task: task, Input: input})

	token := o.creds.Get(ctx, domain.ProviderInference)
	if token == "" {
		return o.reject(domain.ErrMissingCredential), domain.ErrMissingCredential
	}
	if strings.TrimSpace(input) == "" {
		return o.reject(domain.ErrEmptyInput), domain.ErrEmptyInput
	}

	t, ok := Lookup(task)
	if !ok {
		telemetry.Submissions.WithLabelValues("inference", "unsupported").Inc()
		o.apply(Unsupported{Task: task})
		return o.apply(Settled{}), fmt.Errorf("%w: %s", domain.ErrUnsupportedTask, task)
	}

	telemetry.Submissions.WithLabelValues("inference", "dispatched").Inc()
	telemetry.InFlight.WithLabelValues("inference").Inc()
	o.apply(Dispatched{Task: t.ID, Model: t.Model})

	payload, err := o.runner.Run(ctx, token, t.Model, t.Payload(input))
	telemetry.InFlight.WithLabelValues("inference").Dec()
	if err != nil {
		o.logger.Warn("inference request failed", "task", t.ID, "model", t.Model, "error", err)
		o.apply(Errored{Task: t.ID, Err: err})
		return o.apply(Settled{}), err
	}

	o.logger.Debug("inference request completed", "task", t.ID, "bytes", len(payload))
	o.apply(Completed{Task: t.ID, Payload: payload})
	return o.apply(Settled{}), nil
}

func (o *Orchestrator) reject(err error) Snapshot {
	telemetry.Submissions.WithLabelValues("inference", "rejected").Inc()
	return o.apply(Rejected{Err: err})
}

func (o *Orchestrator) apply(ev Event) Snapshot {
	o.mu.Lock()
	o.snap = Reduce(o.snap, ev)
	snap := o.snap
	subs := make([]func(Snapshot), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return snap
}
