package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/Potency/internal/session"
	"github.com/MikeSquared-Agency/Potency/internal/store"
)

type AdminHandler struct {
	sessions *session.Manager
	models   store.ModelStore
}

func NewAdminHandler(m *session.Manager, ms store.ModelStore) *AdminHandler {
	return &AdminHandler{sessions: m, models: ms}
}

type SessionsReport struct {
	Active   int               `json:"active_sessions"`
	Store    string            `json:"model_store,omitempty"`
	Sessions []session.Summary `json:"sessions"`
}

func (h *AdminHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	list := h.sessions.List()
	report := SessionsReport{Active: len(list), Sessions: list}
	if h.models != nil {
		report.Store = h.models.Location()
	}
	writeJSON(w, http.StatusOK, report)
}
