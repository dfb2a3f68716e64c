package auth

import (
	"errors"
	"net/http"
	"net/url"
)

// Form field names understood by the Flyerless API.
const (
	APIKeyField   = "API_KEY"
	TokenField    = "API_token"
	formMediaType = "application/x-www-form-urlencoded"
)

// ErrRefreshFailed matches every *AuthError via errors.Is.
var ErrRefreshFailed = errors.New("token could not be refreshed")

// AuthError reports that an access token could not be obtained. Callers see a
// single message whatever went wrong; the cause is kept for diagnostics.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return ErrRefreshFailed.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	return target == ErrRefreshFailed
}

// HTTPClient is an interface for making HTTP requests
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Settings identifies the upstream credential configuration.
type Settings struct {
	APIKey  string
	BaseURL string
}

// RequestOptions describes an outbound request relative to the base URL.
type RequestOptions struct {
	Form   url.Values
	Query  url.Values
	Header http.Header
}

// TokenResponse represents the Flyerless token exchange response
type TokenResponse struct {
	Token *string `json:"Token"`
}
