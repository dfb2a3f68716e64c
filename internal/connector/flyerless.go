package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dvcrn/flyerless-proxy/internal/auth"
	"github.com/dvcrn/flyerless-proxy/internal/metrics"
	"github.com/dvcrn/flyerless-proxy/internal/tokenstore"
	"github.com/rs/zerolog"
)

const (
	FlyerlessAlias   = "flyerless-club-api"
	FlyerlessService = "flyerless"

	SettingAPIKey  = "api_key"
	SettingBaseURL = "base_url"
)

// FlyerlessRegistration describes the Flyerless connector for a Registry.
func FlyerlessRegistration() Registration {
	return Registration{
		Name:        "Flyerless Api (Required to use Flyerless Club Description Update)",
		Description: "Connect to Flyerless",
		Alias:       FlyerlessAlias,
		Service:     FlyerlessService,
		Schema:      FlyerlessSchema(),
		Factory:     NewFlyerless,
	}
}

// FlyerlessSchema is the settings form for the Flyerless connector.
func FlyerlessSchema() Form {
	apiKey := TextInput(SettingAPIKey)
	apiKey.Required = true
	apiKey.Label = "Api Key"
	apiKey.Hint = "Your Flyerless API Key"
	apiKey.Help = "You should contact Flyerless to get an API key"

	baseURL := TextInput(SettingBaseURL)
	baseURL.Required = true
	baseURL.Label = "Base URL"
	baseURL.Hint = "The URL of the flyerless API"
	baseURL.Help = "This should look something like https://bristol.flyerless.co.uk/API/"

	return Form{Fields: []Field{apiKey, baseURL}}
}

// Flyerless authenticates requests to the Flyerless API with a brokered token.
type Flyerless struct {
	broker *auth.Broker
	logger zerolog.Logger
}

// NewFlyerless builds the connector. It is the Factory of FlyerlessRegistration.
func NewFlyerless(settings Settings, deps Deps) (Connector, error) {
	if err := settings.Validate(FlyerlessSchema()); err != nil {
		return nil, err
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("flyerless connector needs a token store")
	}
	client := deps.Client
	if client == nil {
		client = auth.NewHTTPClient(0)
	}

	logger := deps.Logger.With().Str("connector", FlyerlessAlias).Logger()
	opts := append([]auth.Option{auth.WithLogger(logger)}, deps.BrokerOptions...)
	broker := auth.NewBroker(auth.Settings{
		APIKey:  settings.Get(SettingAPIKey),
		BaseURL: settings.Get(SettingBaseURL),
	}, deps.Store, client, opts...)

	return &Flyerless{broker: broker, logger: logger}, nil
}

func (f *Flyerless) Request(ctx context.Context, method, uri string, opts *auth.RequestOptions) (*http.Response, error) {
	return f.broker.Do(ctx, method, uri, opts)
}

// Test asks the API whether the brokered token is authorised.
func (f *Flyerless) Test(ctx context.Context) bool {
	authorised, err := f.probe(ctx)
	if err != nil {
		f.logger.Debug().Err(err).Msg("Connector test failed")
	}
	metrics.RecordConnectorTest(FlyerlessAlias, authorised)
	return authorised
}

func (f *Flyerless) probe(ctx context.Context) (bool, error) {
	resp, err := f.Request(ctx, http.MethodPost, "", &auth.RequestOptions{
		Form: url.Values{"Request_Type": {"0"}},
	})
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var body struct {
		Authorised interface{} `json:"Authorised"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("failed to decode test response: %w", err)
	}
	authorised, _ := body.Authorised.(string)
	return authorised == "True", nil
}

func (f *Flyerless) DescribeConfig() Form {
	return FlyerlessSchema()
}

func (f *Flyerless) Status(ctx context.Context) (tokenstore.Status, error) {
	return f.broker.Status(ctx)
}
