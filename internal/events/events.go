package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/airstudent2/Tournament-200-26/internal/store"

	"github.com/rs/zerolog/log"
)

const (
	SubjectTournamentJoined      = "tournament.joined"
	SubjectWithdrawalRequested   = "withdrawal.requested"
	SubjectWithdrawalDecided     = "withdrawal.decided"
	SubjectCompensationExhausted = "compensation.exhausted"
)

// Envelope is the wire shape of every published event.
type Envelope struct {
	EventID   string          `json:"event_id"`
	Subject   string          `json:"subject"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func NewEnvelope(subject string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:   store.NewID(),
		Subject:   subject,
		Source:    "tourney-server",
		Timestamp: time.Now().UTC(),
		Payload:   b,
	}, nil
}

type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// Emit publishes and only logs failures. Domain flows never fail because an
// event could not be delivered.
func Emit(ctx context.Context, p Publisher, subject string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, subject, payload); err != nil {
		publishFailures.Add(1)
		log.Warn().Err(err).Str("subject", subject).Msg("event publish failed")
	}
}

type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }

// Recorder keeps envelopes in memory. Handy for tests and local runs.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func (r *Recorder) Publish(_ context.Context, subject string, payload any) error {
	env, err := NewEnvelope(subject, payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, env)
	return nil
}

func (r *Recorder) Events(subject string) []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, 0)
	for _, ev := range r.events {
		if subject == "" || ev.Subject == subject {
			out = append(out, ev)
		}
	}
	return out
}
