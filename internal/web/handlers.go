package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/harunnryd/stackchat/internal/conversation"
	chatErrors "github.com/harunnryd/stackchat/internal/errors"
)

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /{$}", s.handleForm)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("POST /api/models/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/connection", s.handleConnection)
	mux.HandleFunc("GET /api/messages", s.handleMessages)
	mux.HandleFunc("POST /api/messages", s.handleSend)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	mux.HandleFunc("POST /api/reset", s.handleReset)
}

// conversation resolves the caller's conversation from its cookie. A missing or
// unknown cookie gets a newly registered conversation with a server-issued id.
func (s *Server) conversation(w http.ResponseWriter, r *http.Request) *conversation.Conversation {
	if conv, ok := s.lookup(r); ok {
		return conv
	}

	conv := s.registry.GetOrCreate("")
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    conv.ID(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return conv
}

// peek is conversation without registration: callers with no known cookie get
// a throwaway conversation and no cookie.
func (s *Server) peek(r *http.Request) *conversation.Conversation {
	if conv, ok := s.lookup(r); ok {
		return conv
	}
	return conversation.New("", s.registry.Options())
}

func (s *Server) lookup(r *http.Request) (*conversation.Conversation, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}
	return s.registry.Get(c.Value)
}

type sendRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	conv := s.conversation(w, r)

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, chatErrors.InvalidInput("invalid request body"))
		return
	}

	temperature := s.cfg.Chat.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	reply, err := conv.Send(r.Context(), req.Prompt, req.Model, temperature)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conv.ID(),
		"message":         reply,
	})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	conv := s.peek(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conv.ID(),
		"busy":            conv.Busy(),
		"messages":        conv.Messages(),
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	conv := s.peek(r)
	writeJSON(w, http.StatusOK, map[string]any{"models": conv.Models(r.Context())})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	conv := s.peek(r)
	conv.RefreshModels()
	writeJSON(w, http.StatusOK, map[string]any{"models": conv.Models(r.Context())})
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	conv := s.peek(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"connected": conv.TestConnection(r.Context()),
		"mode":      s.cfg.Backend.Mode,
		"base_url":  s.cfg.Backend.BaseURL(),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.peek(r).Clear(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.peek(r).ResetAgent(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"mode":          s.cfg.Backend.Mode,
		"conversations": s.registry.Len(),
		"server":        s.Health(r.Context()),
	})
}

// handleForm serves the page's plain HTML form actions and redirects back to the page.
func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	conv := s.conversation(w, r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	model := r.PostFormValue("model")
	temperature := r.PostFormValue("temperature")
	query := url.Values{}
	if model != "" {
		query.Set("model", model)
	}
	if temperature != "" {
		query.Set("temperature", temperature)
	}
	if r.PostFormValue("details") != "" {
		query.Set("details", "1")
	}

	switch r.PostFormValue("action") {
	case "clear":
		if err := conv.Clear(); err != nil {
			query.Set("notice", chatErrors.UserMessage(err))
		}
	case "reset":
		if err := conv.ResetAgent(); err != nil {
			query.Set("notice", chatErrors.UserMessage(err))
		}
	case "refresh":
		conv.RefreshModels()
	default:
		t, err := strconv.ParseFloat(strings.TrimSpace(temperature), 64)
		if err != nil {
			t = s.cfg.Chat.Temperature
		}
		if _, err := conv.Send(r.Context(), r.PostFormValue("prompt"), model, t); err != nil {
			query.Set("notice", chatErrors.UserMessage(err))
		}
	}

	target := "/"
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{
		"error":    chatErrors.UserMessage(err),
		"category": chatErrors.Category(err),
		"detail":   err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case chatErrors.IsCategory(err, chatErrors.ErrInvalidInput):
		return http.StatusBadRequest
	case chatErrors.IsCategory(err, chatErrors.ErrBusy):
		return http.StatusConflict
	case chatErrors.IsCategory(err, chatErrors.ErrTimeout):
		return http.StatusGatewayTimeout
	case chatErrors.IsCategory(err, chatErrors.ErrConnection),
		chatErrors.IsCategory(err, chatErrors.ErrHTTP),
		chatErrors.IsCategory(err, chatErrors.ErrAgentCreation),
		chatErrors.IsCategory(err, chatErrors.ErrSessionCreation):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
