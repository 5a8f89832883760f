package events

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
)

const (
	UserRegistered = "user_registered"
	UserLoggedIn   = "user_logged_in"
	TokenRevoked   = "token_revoked"
	TokensSwept    = "tokens_swept"
)

type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	TokenID    string    `json:"token_id,omitempty"`
	ExpiryAt   int64     `json:"expiry_at,omitempty"`
	Count      int64     `json:"count,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Key is used for partitioning so events of one user stay ordered.
func (e Event) Key() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.Type
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Multi fans an event out to every publisher and reports all failures.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var result *multierror.Error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (m Multi) Close() error {
	var result *multierror.Error
	for _, p := range m {
		if err := p.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
