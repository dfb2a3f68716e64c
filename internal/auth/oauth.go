package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// RefreshTTL is how long a freshly exchanged token is considered valid.
	RefreshTTL = 25 * time.Minute

	// DefaultHTTPTimeout bounds every upstream call made by NewHTTPClient.
	DefaultHTTPTimeout = 60 * time.Second
)

// NewHTTPClient creates the HTTP client used for upstream calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &http.Client{
		Timeout: timeout,
	}
}

// CalculateExpiresAt returns the expiry for a token obtained at now.
func CalculateExpiresAt(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		ttl = RefreshTTL
	}
	return now.Add(ttl)
}

// ExchangeToken trades apiKey for an access token at baseURL.
func ExchangeToken(ctx context.Context, client HTTPClient, baseURL, apiKey string) (string, error) {
	form := url.Values{}
	form.Set(APIKeyField, apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", formMediaType)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make refresh request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read refresh response: %w", err)
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode refresh response (status %d): %w", resp.StatusCode, err)
	}
	if tokenResp.Token == nil || *tokenResp.Token == "" {
		return "", fmt.Errorf("refresh response (status %d) did not contain a token", resp.StatusCode)
	}

	return *tokenResp.Token, nil
}

// ResolveURL resolves uri against baseURL. An empty uri is the base URL itself.
func ResolveURL(baseURL, uri string, query url.Values) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	target := base
	if uri != "" {
		ref, err := url.Parse(uri)
		if err != nil {
			return "", fmt.Errorf("invalid request URI: %w", err)
		}
		target = base.ResolveReference(ref)
	}

	if len(query) > 0 {
		q := target.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		target.RawQuery = q.Encode()
	}
	return target.String(), nil
}
