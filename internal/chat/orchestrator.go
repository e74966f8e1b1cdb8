package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/leadintel/internal/domain"
	"github.com/ashureev/leadintel/internal/telemetry"
)

// Completer returns the assistant reply for a message list.
type Completer interface {
	Complete(ctx context.Context, token string, messages []domain.Message) (string, error)
}

// Credentials reads the current bearer token for a provider.
type Credentials interface {
	Get(ctx context.Context, provider domain.Provider) string
}

// Config holds the fixed parameters of a conversation.
type Config struct {
	SystemPrompt string
	// HistoryLimit caps how many prior turns are replayed; 0 replays all.
	// The transcript itself is never trimmed.
	HistoryLimit int
	Now          func() time.Time
}

// Orchestrator owns one conversation transcript.
type Orchestrator struct {
	id        string
	cfg       Config
	completer Completer
	creds     Credentials
	logger    *slog.Logger

	mu      sync.Mutex
	snap    Snapshot
	subs    map[int]func(Snapshot)
	nextSub int
}

// New creates an empty conversation.
func New(cfg Config, completer Completer, creds Credentials, logger *slog.Logger) *Orchestrator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		id:        uuid.Must(uuid.NewV7()).String(),
		cfg:       cfg,
		completer: completer,
		creds:     creds,
		logger:    logger,
		snap:      Initial(),
		subs:      make(map[int]func(Snapshot)),
	}
}

// ID returns the conversation id.
func (o *Orchestrator) ID() string {
	return o.id
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap
}

// Transcript returns the turns in append order.
func (o *Orchestrator) Transcript() []domain.Turn {
	return o.Snapshot().Turns
}

// Busy reports whether a completion is outstanding.
func (o *Orchestrator) Busy() bool {
	return o.Snapshot().Busy()
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

// SendMessage appends text as a user turn and requests a reply. Empty text
// is ignored without any state change. A missing credential is recorded in
// LastError and leaves the transcript untouched. Every dispatched message
// ends with exactly one assistant turn: the reply, or ErrorReply.
func (o *Orchestrator) SendMessage(ctx context.Context, text string) (Snapshot, error) {
	if strings.TrimSpace(text) == "" {
		return o.Snapshot(), domain.ErrEmptyInput
	}

	token := o.creds.Get(ctx, domain.ProviderChat)
	if token == "" {
		telemetry.Submissions.WithLabelValues("chat", "rejected").Inc()
		return o.apply(Rejected{Err: domain.ErrMissingCredential}), domain.ErrMissingCredential
	}

	sentAt := o.cfg.Now()
	user := domain.Turn{
		ID:        newTurnID(sentAt),
		Role:      domain.RoleUser,
		Content:   text,
		Timestamp: sentAt,
	}
	snap := o.apply(UserSent{Turn: user})
	messages := o.buildMessages(snap.Turns)

	telemetry.Submissions.WithLabelValues("chat", "dispatched").Inc()
	telemetry.InFlight.WithLabelValues("chat").Inc()
	reply, err := o.completer.Complete(ctx, token, messages)
	telemetry.InFlight.WithLabelValues("chat").Dec()

	now := o.cfg.Now()
	if err != nil {
		o.logger.Warn("chat completion failed", "conversation_id", o.id, "error", err)
		return o.apply(Failed{
			Turn: domain.Turn{ID: newTurnID(now), Role: domain.RoleAssistant, Content: ErrorReply, Timestamp: now},
			Err:  err,
		}), err
	}

	return o.apply(Replied{
		Turn: domain.Turn{ID: newTurnID(now), Role: domain.RoleAssistant, Content: reply, Timestamp: now},
	}), nil
}

// ClearChat empties the transcript.
func (o *Orchestrator) ClearChat() Snapshot {
	return o.apply(Cleared{})
}

// buildMessages returns the system instruction followed by turns, the last
// of which is the new user turn. Prior turns are capped by HistoryLimit.
func (o *Orchestrator) buildMessages(turns []domain.Turn) []domain.Message {
	prior := turns[:len(turns)-1]
	if limit := o.cfg.HistoryLimit; limit > 0 && len(prior) > limit {
		prior = prior[len(prior)-limit:]
	}

	messages := make([]domain.Message, 0, len(prior)+2)
	messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: o.cfg.SystemPrompt})
	for _, t := range prior {
		messages = append(messages, t.Message())
	}
	return append(messages, turns[len(turns)-1].Message())
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
