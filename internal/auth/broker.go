package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dvcrn/flyerless-proxy/internal/metrics"
	"github.com/dvcrn/flyerless-proxy/internal/tokenstore"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Broker hands out a valid access token for one API key and forwards requests
// to the upstream API with that token attached.
type Broker struct {
	settings   Settings
	store      tokenstore.Store
	client     HTTPClient
	logger     zerolog.Logger
	now        func() time.Time
	refreshTTL time.Duration
	group      singleflight.Group
}

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the logger. The broker adds an api_key_hash field to it.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Broker) {
		b.logger = logger
	}
}

// WithClock overrides the clock used for validity checks and new expiries.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) {
		b.now = now
	}
}

// WithRefreshTTL overrides RefreshTTL.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(b *Broker) {
		if ttl > 0 {
			b.refreshTTL = ttl
		}
	}
}

// NewBroker creates a broker for settings backed by store.
func NewBroker(settings Settings, store tokenstore.Store, client HTTPClient, opts ...Option) *Broker {
	b := &Broker{
		settings:   settings,
		store:      store,
		client:     client,
		logger:     zerolog.Nop(),
		now:        time.Now,
		refreshTTL: RefreshTTL,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With().Str("api_key_hash", keyHash(settings.APIKey)).Logger()
	return b
}

// AccessToken returns the stored token while it is valid and refreshes it
// otherwise. Every refresh failure is reported as *AuthError.
func (b *Broker) AccessToken(ctx context.Context) (string, error) {
	rec, err := b.store.Find(ctx, b.settings.APIKey)
	switch {
	case err == nil && rec.IsTokenValid(b.now()):
		metrics.RecordResolution(metrics.ResolutionCacheHit)
		b.logger.Debug().
			Int64("minutes_until_expiry", int64(rec.ExpiresAt.Sub(b.now())/time.Minute)).
			Msg("✅ Access token is still valid")
		return rec.AccessToken, nil
	case err == nil:
		b.logger.Info().Msg("🔄 Access token expired, refreshing...")
	case errors.Is(err, tokenstore.ErrNotFound):
		rec = nil
		b.logger.Info().Msg("🔄 No access token stored yet, refreshing...")
	default:
		metrics.RecordResolution(metrics.ResolutionFailed)
		b.logger.Error().Err(err).Msg("❌ Failed to look up access token")
		return "", &AuthError{Err: fmt.Errorf("failed to look up token record: %w", err)}
	}

	// Concurrent callers for the same key share one upstream exchange.
	v, err, _ := b.group.Do(b.settings.APIKey, func() (interface{}, error) {
		return b.refresh(ctx, rec)
	})
	if err != nil {
		metrics.RecordResolution(metrics.ResolutionFailed)
		b.logger.Error().Err(err).Msg("❌ Failed to refresh access token")
		return "", &AuthError{Err: err}
	}

	metrics.RecordResolution(metrics.ResolutionRefreshed)
	return v.(string), nil
}

// refresh exchanges the API key for a new token and stores it on rec,
// creating the bootstrap record first when rec is nil.
func (b *Broker) refresh(ctx context.Context, rec *tokenstore.Record) (string, error) {
	if rec == nil {
		created, err := b.store.Create(ctx, b.settings.APIKey)
		if errors.Is(err, tokenstore.ErrAlreadyExists) {
			created, err = b.store.Find(ctx, b.settings.APIKey)
		}
		if err != nil {
			return "", fmt.Errorf("failed to create token record: %w", err)
		}
		rec = created
	}

	start := time.Now()
	token, err := ExchangeToken(ctx, b.client, b.settings.BaseURL, b.settings.APIKey)
	metrics.RecordRefresh(err == nil, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}

	rec.AccessToken = token
	rec.ExpiresAt = CalculateExpiresAt(b.now(), b.refreshTTL)
	if err := b.store.Save(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to save token record: %w", err)
	}

	b.logger.Info().
		Int64("new_expiry_minutes", int64(rec.ExpiresAt.Sub(b.now())/time.Minute)).
		Msg("✅ Access token refreshed successfully")
	return token, nil
}

// Do sends a request to uri, resolved against the base URL, with the access
// token merged into the form body. Caller form fields are preserved; only
// API_token is set. Errors from the HTTP client are returned unchanged.
func (b *Broker) Do(ctx context.Context, method, uri string, opts *RequestOptions) (*http.Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	token, err := b.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	form := make(url.Values, len(opts.Form)+1)
	for k, vs := range opts.Form {
		form[k] = append([]string(nil), vs...)
	}
	form.Set(TokenField, token)

	target, err := ResolveURL(b.settings.BaseURL, uri, opts.Query)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", formMediaType)

	return b.client.Do(req)
}

// Status returns the external view of the stored token.
func (b *Broker) Status(ctx context.Context) (tokenstore.Status, error) {
	return tokenstore.Lookup(ctx, b.store, b.settings.APIKey, b.now())
}

// Settings returns the broker's upstream settings.
func (b *Broker) Settings() Settings {
	return b.settings
}

// keyHash identifies an API key in logs without revealing it.
func keyHash(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:4])
}
