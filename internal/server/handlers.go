package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/flowpaste/flowpaste/internal/intent"
	"github.com/flowpaste/flowpaste/internal/llm"
	"github.com/flowpaste/flowpaste/internal/orchestrator"
	"github.com/flowpaste/flowpaste/internal/privacy"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a bounded JSON body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeLLMError maps a provider error to an HTTP status and writes its kind
// as the error code.
func writeLLMError(w http.ResponseWriter, err error) {
	e := llm.Classify(err)
	writeError(w, statusForKind(e.Kind), string(e.Kind), strings.TrimPrefix(e.Error(), string(e.Kind)+": "))
}

func statusForKind(k llm.ErrorKind) int {
	switch k {
	case llm.InvalidConfig:
		return http.StatusBadRequest
	case llm.ModelNotFound:
		return http.StatusNotFound
	case llm.Timeout:
		return http.StatusGatewayTimeout
	case llm.Cancelled:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"uptime":      time.Since(s.startTime).String(),
		"state":       s.orchestrator.State(),
		"subscribers": s.hub.Len(),
	})
}

type textBody struct {
	Text string `json:"text"`
}

func (s *Server) handlePrivacyScan(w http.ResponseWriter, r *http.Request) {
	var body textBody
	if !decodeJSON(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, s.scanner.Scan(body.Text))
}

func (s *Server) handlePrivacyMask(w http.ResponseWriter, r *http.Request) {
	var body textBody
	if !decodeJSON(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, s.scanner.MaskText(r.Context(), body.Text))
}

type restoreBody struct {
	Text    string          `json:"text"`
	Mapping privacy.Mapping `json:"mapping"`
}

func (s *Server) handlePrivacyRestore(w http.ResponseWriter, r *http.Request) {
	var body restoreBody
	if !decodeJSON(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": privacy.Restore(body.Text, body.Mapping)})
}

// startBody is the POST /v1/requests payload. Unset fields fall back to the
// server configuration.
type startBody struct {
	RequestID        string   `json:"requestId"`
	Prompt           string   `json:"prompt"`
	Provider         string   `json:"provider"`
	BaseURL          string   `json:"baseUrl"`
	Model            string   `json:"model"`
	APIKey           string   `json:"apiKey"`
	MaxTokens        *int     `json:"maxTokens"`
	Temperature      *float64 `json:"temperature"`
	UsePrivacyShield *bool    `json:"usePrivacyShield"`
	TimeoutMS        int64    `json:"timeout_ms"`
}

func (s *Server) requestConfig(body startBody) (llm.Config, error) {
	kind := s.cfg.Provider
	if body.Provider != "" {
		k, err := llm.ParseKind(body.Provider)
		if err != nil {
			return llm.Config{}, llm.NewError(llm.InvalidConfig, err.Error(), err)
		}
		kind = k
	}
	cfg := s.cfg.ProviderConfig(kind)
	if body.BaseURL != "" {
		cfg.BaseURL = body.BaseURL
	}
	if body.Model != "" {
		cfg.Model = body.Model
	}
	if body.APIKey != "" {
		cfg.Credential = body.APIKey
	}
	if body.MaxTokens != nil {
		cfg.MaxTokens = *body.MaxTokens
	}
	if body.Temperature != nil {
		cfg.Temperature = *body.Temperature
	}
	return cfg, nil
}

func (s *Server) handleRequestStart(w http.ResponseWriter, r *http.Request) {
	var body startBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "prompt is required")
		return
	}
	if body.TimeoutMS < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "timeout_ms must not be negative")
		return
	}
	cfg, err := s.requestConfig(body)
	if err != nil {
		writeLLMError(w, err)
		return
	}
	shield := s.cfg.PrivacyShield
	if body.UsePrivacyShield != nil {
		shield = *body.UsePrivacyShield
	}

	h, err := s.orchestrator.Start(r.Context(), orchestrator.StartRequest{
		RequestID:        body.RequestID,
		Prompt:           body.Prompt,
		Config:           cfg,
		UsePrivacyShield: shield,
	})
	if errors.Is(err, orchestrator.ErrClosed) {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
		return
	}
	if err != nil {
		writeLLMError(w, err)
		return
	}

	timeout := s.cfg.RequestTimeout
	if body.TimeoutMS > 0 {
		timeout = time.Duration(body.TimeoutMS) * time.Millisecond
	}
	if timeout > 0 && !h.State.Terminal() {
		s.orchestrator.ExpireAfter(h, timeout)
	}
	writeJSON(w, http.StatusAccepted, h)
}

func (s *Server) handleRequestCurrent(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"state": s.orchestrator.State()}
	if h, ok := s.orchestrator.Current(); ok {
		resp["current"] = h
	}
	if h, ok := s.orchestrator.Last(); ok {
		resp["last"] = h
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRequestCancel is idempotent: unknown or finished ids also yield 204.
func (s *Server) handleRequestCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.orchestrator.Cancel(id) {
		log.Debug().Str("request_id", id).Msg("cancel_ignored")
	}
	w.WriteHeader(http.StatusNoContent)
}

// probeConfig resolves the provider and config for model listing and health
// checks from ?provider= (default local) and ?base_url=.
func (s *Server) probeConfig(r *http.Request) (llm.Provider, llm.Config, error) {
	kind := llm.KindLocal
	if p := r.URL.Query().Get("provider"); p != "" {
		k, err := llm.ParseKind(p)
		if err != nil {
			return nil, llm.Config{}, llm.NewError(llm.InvalidConfig, err.Error(), err)
		}
		kind = k
	}
	provider, err := s.providers.Get(kind)
	if err != nil {
		return nil, llm.Config{}, llm.NewError(llm.InvalidConfig, fmt.Sprintf("provider %q", kind), err)
	}
	cfg := s.cfg.ProviderConfig(kind)
	if u := r.URL.Query().Get("base_url"); u != "" {
		cfg.BaseURL = strings.TrimRight(u, "/")
	}
	return provider, cfg, nil
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	provider, cfg, err := s.probeConfig(r)
	if err != nil {
		writeLLMError(w, err)
		return
	}
	models, err := provider.ListModels(r.Context(), cfg)
	if err != nil {
		writeLLMError(w, err)
		return
	}
	if models == nil {
		models = []llm.ModelInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": models})
}

func (s *Server) handleProviderHealth(w http.ResponseWriter, r *http.Request) {
	provider, cfg, err := s.probeConfig(r)
	if err != nil {
		writeLLMError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"provider": cfg.Kind,
		"baseUrl":  cfg.BaseURL,
		"healthy":  provider.HealthCheck(r.Context(), cfg),
	})
}

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	var body textBody
	if !decodeJSON(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, intent.Detect(body.Text))
}
