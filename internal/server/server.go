package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/dvcrn/flyerless-proxy/internal/auth"
	"github.com/dvcrn/flyerless-proxy/internal/connector"
	"github.com/dvcrn/flyerless-proxy/internal/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const maxFormMemory = 32 << 20

// Inbound headers passed through to the upstream API.
var forwardedRequestHeaders = []string{"Accept", "Accept-Language", "User-Agent"}

// Upstream response headers that belong to a single hop.
var hopHeaders = map[string]bool{
	"Connection":        true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
	"Content-Length":    true,
	"Trailer":           true,
	"Upgrade":           true,
}

type Server struct {
	connector   connector.Connector
	registry    *connector.Registry
	mux         *http.ServeMux
	logger      zerolog.Logger
	adminAPIKey string
}

func New(logger zerolog.Logger, conn connector.Connector, registry *connector.Registry, adminAPIKey string) *Server {
	s := &Server{
		connector:   conn,
		registry:    registry,
		mux:         http.NewServeMux(),
		logger:      logger,
		adminAPIKey: adminAPIKey,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("/admin/connectors", s.adminMiddleware(s.connectorsHandler))
	s.mux.HandleFunc("/admin/connectors/test", s.adminMiddleware(s.connectorTestHandler))
	s.mux.HandleFunc("/admin/token/status", s.adminMiddleware(s.tokenStatusHandler))
	s.mux.HandleFunc("/", s.adminMiddleware(s.forwardHandler))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.loggingMiddleware(s.mux).ServeHTTP(w, r)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Msg("Incoming request")
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Dur("duration", time.Since(start)).
			Msg("Finished request")
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}

// connectorsHandler handles GET /admin/connectors
func (s *Server) connectorsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"connectors": s.registry.List(),
	})
}

// connectorTestHandler handles POST /admin/connectors/test
func (s *Server) connectorTestHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authorised := s.connector.Test(r.Context())
	s.logger.Info().Bool("authorised", authorised).Msg("Connector test finished")

	s.writeJSON(w, http.StatusOK, map[string]bool{"authorised": authorised})
}

// tokenStatusHandler handles GET /admin/token/status
func (s *Server) tokenStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	reporter, ok := s.connector.(connector.StatusReporter)
	if !ok {
		http.Error(w, "Token status not supported by current connector", http.StatusNotImplemented)
		return
	}

	status, err := reporter.Status(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read token status")
		http.Error(w, "Failed to read token status", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, status)
}

// forwardHandler relays any other request to the upstream API through the connector.
func (s *Server) forwardHandler(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		s.logger.Error().Err(err).Msg("Error parsing request form")
		http.Error(w, "Failed to parse request body", http.StatusBadRequest)
		return
	}

	opts := &auth.RequestOptions{
		Form:   r.PostForm,
		Query:  r.URL.Query(),
		Header: make(http.Header),
	}
	for _, h := range forwardedRequestHeaders {
		if v := r.Header.Get(h); v != "" {
			opts.Header.Set(h, v)
		}
	}

	// Paths are relative to the configured base URL.
	uri := strings.TrimPrefix(r.URL.Path, "/")

	resp, err := s.connector.Request(r.Context(), r.Method, uri, opts)
	if err != nil {
		metrics.RecordForward(r.Method, false)
		if errors.Is(err, auth.ErrRefreshFailed) {
			s.logger.Error().Err(errors.Unwrap(err)).Msg("Access token could not be refreshed")
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		s.logger.Error().Err(err).Str("uri", uri).Msg("Upstream request failed")
		http.Error(w, "Upstream request failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	metrics.RecordForward(r.Method, true)

	for k, vs := range resp.Header {
		if hopHeaders[k] {
			continue
		}
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Error().Err(err).Msg("Error streaming upstream response")
	}
}

func parseForm(r *http.Request) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return r.ParseMultipartForm(maxFormMemory)
	}
	return r.ParseForm()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}
