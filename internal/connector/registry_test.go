package connector

import (
	"encoding/json"
	"testing"

	"github.com/dvcrn/flyerless-proxy/internal/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryHasFlyerless(t *testing.T) {
	reg, ok := DefaultRegistry().Get(FlyerlessAlias)
	require.True(t, ok)

	assert.Equal(t, "Flyerless Api (Required to use Flyerless Club Description Update)", reg.Name)
	assert.Equal(t, "Connect to Flyerless", reg.Description)
	assert.Equal(t, "flyerless", reg.Service)
	assert.NotNil(t, reg.Factory)
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(FlyerlessRegistration()))
	assert.ErrorContains(t, r.Register(FlyerlessRegistration()), "already registered")

	noAlias := FlyerlessRegistration()
	noAlias.Alias = ""
	assert.Error(t, r.Register(noAlias))

	noFactory := FlyerlessRegistration()
	noFactory.Alias = "other"
	noFactory.Factory = nil
	assert.ErrorContains(t, r.Register(noFactory), "no factory")
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	second := FlyerlessRegistration()
	second.Alias = "a-first"
	require.NoError(t, r.Register(FlyerlessRegistration()))
	require.NoError(t, r.Register(second))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a-first", list[0].Alias)
	assert.Equal(t, FlyerlessAlias, list[1].Alias)
}

func TestRegistryNew(t *testing.T) {
	r := DefaultRegistry()
	deps := Deps{Store: tokenstore.NewMemoryStore()}

	_, err := r.New("unknown", Settings{}, deps)
	assert.ErrorContains(t, err, "unknown connector")

	_, err = r.New(FlyerlessAlias, Settings{}, deps)
	assert.ErrorContains(t, err, "api_key, base_url")

	c, err := r.New(FlyerlessAlias, Settings{SettingAPIKey: "abc123", SettingBaseURL: "https://example.com"}, deps)
	require.NoError(t, err)
	assert.IsType(t, &Flyerless{}, c)
}

func TestRegistrationJSONOmitsFactory(t *testing.T) {
	data, err := json.Marshal(FlyerlessRegistration())
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.NotContains(t, out, "Factory")
	assert.Equal(t, FlyerlessAlias, out["alias"])
	assert.Contains(t, out, "schema")
}

func TestFlyerlessSchema(t *testing.T) {
	form := FlyerlessSchema()
	require.Len(t, form.Fields, 2)

	apiKey, baseURL := form.Fields[0], form.Fields[1]
	assert.Equal(t, "api_key", apiKey.Name)
	assert.Equal(t, "text", apiKey.InputType)
	assert.True(t, apiKey.Required)
	assert.Equal(t, "Api Key", apiKey.Label)
	assert.Equal(t, "Your Flyerless API Key", apiKey.Hint)

	assert.Equal(t, "base_url", baseURL.Name)
	assert.True(t, baseURL.Required)
	assert.Equal(t, "Base URL", baseURL.Label)
	assert.Contains(t, baseURL.Help, "https://bristol.flyerless.co.uk/API/")
}

func TestSettingsValidate(t *testing.T) {
	form := FlyerlessSchema()

	assert.NoError(t, Settings{"api_key": "k", "base_url": "u"}.Validate(form))
	assert.ErrorContains(t, Settings{"api_key": "  "}.Validate(form), "api_key, base_url")
	assert.Equal(t, "", Settings{}.Get("api_key"))
}
