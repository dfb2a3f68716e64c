// Package tokenstore persists Flyerless access tokens, one record per API key.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// BootstrapTTL is the expiry given to a freshly created record. It is shorter
// than the refreshed lifetime, and the record carries no token, so the first
// resolution always triggers a real refresh.
const BootstrapTTL = 20 * time.Minute

var (
	// ErrNotFound is returned by Find when no record exists for the API key.
	ErrNotFound = errors.New("token record not found")
	// ErrAlreadyExists is returned by Create when the API key already has a record.
	ErrAlreadyExists = errors.New("token record already exists")
)

// Record is the persisted token state for a single API key. It is internal:
// anything leaving the process goes through Status instead.
type Record struct {
	APIKey      string
	AccessToken string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewRecord builds the bootstrap record for apiKey: an empty token expiring
// ttl after now. A zero ttl means BootstrapTTL.
func NewRecord(apiKey string, now time.Time, ttl time.Duration) *Record {
	if ttl <= 0 {
		ttl = BootstrapTTL
	}
	return &Record{
		APIKey:      apiKey,
		AccessToken: "",
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsTokenValid reports whether the record holds a token whose expiry is
// strictly after now. A bootstrap record is never valid.
func (r *Record) IsTokenValid(now time.Time) bool {
	return r.AccessToken != "" && r.ExpiresAt.After(now)
}

// Status is the externally visible view of a record. It never carries the
// API key, the access token or the expiry.
type Status struct {
	Exists    bool       `json:"exists"`
	HasToken  bool       `json:"has_token"`
	Valid     bool       `json:"valid"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Status returns the external view of r at now.
func (r *Record) Status(now time.Time) Status {
	updated := r.UpdatedAt
	return Status{
		Exists:    true,
		HasToken:  r.AccessToken != "",
		Valid:     r.IsTokenValid(now),
		UpdatedAt: &updated,
	}
}

func (r *Record) clone() *Record {
	c := *r
	return &c
}

// Store persists token records keyed by API key.
type Store interface {
	// Find returns the record for apiKey, or ErrNotFound.
	Find(ctx context.Context, apiKey string) (*Record, error)
	// Create persists and returns the bootstrap record for apiKey.
	Create(ctx context.Context, apiKey string) (*Record, error)
	// Save persists the record's access token and expiry.
	Save(ctx context.Context, rec *Record) error
}

// Lookup returns the external status of apiKey's record.
func Lookup(ctx context.Context, s Store, apiKey string, now time.Time) (Status, error) {
	rec, err := s.Find(ctx, apiKey)
	if errors.Is(err, ErrNotFound) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("failed to look up token record: %w", err)
	}
	return rec.Status(now), nil
}

// Option configures a store.
type Option func(*options)

type options struct {
	now          func() time.Time
	bootstrapTTL time.Duration
}

// WithClock overrides the clock used for bootstrap expiries and audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithBootstrapTTL overrides BootstrapTTL for records created by the store.
func WithBootstrapTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.bootstrapTTL = ttl
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now, bootstrapTTL: BootstrapTTL}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
