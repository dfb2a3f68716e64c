// Package connector exposes upstream APIs to the host through a uniform
// request-forwarding interface, so callers never handle authentication.
package connector

import (
	"context"
	"net/http"

	"github.com/dvcrn/flyerless-proxy/internal/auth"
	"github.com/dvcrn/flyerless-proxy/internal/tokenstore"
	"github.com/rs/zerolog"
)

// Connector is an authenticated gateway to a single upstream API.
type Connector interface {
	// Request sends a request relative to the connector's base URL with
	// credentials attached. Transport errors are returned as-is.
	Request(ctx context.Context, method, uri string, opts *auth.RequestOptions) (*http.Response, error)

	// Test probes connectivity and credentials. It never returns an error;
	// any failure reports false.
	Test(ctx context.Context) bool

	// DescribeConfig returns the settings form the connector expects.
	DescribeConfig() Form
}

// StatusReporter is implemented by connectors that can describe their stored token.
type StatusReporter interface {
	Status(ctx context.Context) (tokenstore.Status, error)
}

// Deps are the collaborators a connector is built with.
type Deps struct {
	Store         tokenstore.Store
	Client        auth.HTTPClient
	Logger        zerolog.Logger
	BrokerOptions []auth.Option
}

// Factory builds a connector from its settings.
type Factory func(settings Settings, deps Deps) (Connector, error)

// Registration describes a connector known to a Registry.
type Registration struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Alias       string  `json:"alias"`
	Service     string  `json:"service"`
	Schema      Form    `json:"schema"`
	Factory     Factory `json:"-"`
}
