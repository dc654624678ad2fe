package web

import (
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/harunnryd/stackchat/internal/conversation"
)

type pageData struct {
	Mode          string
	BaseURL       string
	Connected     bool
	Models        []string
	SelectedModel string
	Temperature   float64
	ShowDetails   bool
	Busy          bool
	Notice        string
	Messages      []conversation.Message
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	conv := s.conversation(w, r)
	ctx := r.Context()
	q := r.URL.Query()

	data := pageData{
		Mode:        s.cfg.Backend.Mode,
		BaseURL:     s.cfg.Backend.BaseURL(),
		Connected:   conv.TestConnection(ctx),
		Models:      conv.Models(ctx),
		Temperature: s.cfg.Chat.Temperature,
		ShowDetails: s.cfg.Chat.ShowTurnDetails || q.Get("details") == "1",
		Busy:        conv.Busy(),
		Notice:      q.Get("notice"),
		Messages:    conv.Messages(),
	}

	if t, err := strconv.ParseFloat(q.Get("temperature"), 64); err == nil && t >= 0 && t <= 1 {
		data.Temperature = t
	}

	data.SelectedModel = q.Get("model")
	if !slices.Contains(data.Models, data.SelectedModel) {
		data.SelectedModel = ""
		if len(data.Models) > 0 {
			data.SelectedModel = data.Models[0]
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		slog.Error("Failed to render page", "error", err)
	}
}
