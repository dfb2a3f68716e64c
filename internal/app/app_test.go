package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvcrn/flyerless-proxy/internal/config"
	"github.com/dvcrn/flyerless-proxy/internal/tokenstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name  string
		store config.StoreConfig
		want  interface{}
	}{
		{name: "memory", store: config.StoreConfig{Kind: config.StoreMemory}, want: &tokenstore.MemoryStore{}},
		{name: "file", store: config.StoreConfig{Kind: config.StoreFile, TokenFile: filepath.Join(dir, "tokens.json")}, want: &tokenstore.FileStore{}},
		{name: "sqlite", store: config.StoreConfig{Kind: config.StoreSQLite, SQLitePath: filepath.Join(dir, "flyerless.db")}, want: &tokenstore.SQLStore{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, closeStore, err := OpenStore(context.Background(), &config.Config{Store: tt.store})
			require.NoError(t, err)
			defer closeStore()
			assert.IsType(t, tt.want, store)
		})
	}

	_, _, err := OpenStore(context.Background(), &config.Config{Store: config.StoreConfig{Kind: "etcd"}})
	assert.Error(t, err)
}

func TestBootstrapTTLFromConfig(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Kind: config.StoreMemory}, BootstrapTTL: time.Minute}
	store, _, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)

	before := time.Now()
	rec, err := store.Create(context.Background(), "abc123")
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(time.Minute), rec.ExpiresAt, 5*time.Second)
}

func TestEndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.PostForm.Get("API_KEY") == "abc123":
			w.Write([]byte(`{"Token":"access-token456"}`))
		case r.PostForm.Get("Request_Type") == "0" && r.PostForm.Get("API_token") == "access-token456":
			w.Write([]byte(`{"Authorised":"True"}`))
		default:
			w.Write([]byte(`{"Authorised":"False"}`))
		}
	}))
	defer upstream.Close()

	cfg := &config.Config{
		APIKey:      "abc123",
		BaseURL:     upstream.URL,
		AdminAPIKey: "admin",
		RefreshTTL:  time.Hour,
		Store:       config.StoreConfig{Kind: config.StoreMemory},
	}
	store, _, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)

	conn, err := NewConnector(cfg, store, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, conn.Test(context.Background()))

	rec, err := store.Find(context.Background(), "abc123")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), rec.ExpiresAt, 5*time.Second)

	srv := NewServer(conn, cfg, zerolog.Nop())
	req := httptest.NewRequest(http.MethodPost, "/admin/connectors/test", nil)
	req.Header.Set("X-API-Key", "admin")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.JSONEq(t, `{"authorised":true}`, w.Body.String())
}
