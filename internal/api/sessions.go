package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Potency/internal/plot"
	"github.com/MikeSquared-Agency/Potency/internal/predictor"
	"github.com/MikeSquared-Agency/Potency/internal/session"
)

type SessionsHandler struct {
	sessions  *session.Manager
	maxUpload int64
	plotOpts  plot.Options
	logger    *slog.Logger
}

func NewSessionsHandler(m *session.Manager, maxUpload int64, plotOpts plot.Options, logger *slog.Logger) *SessionsHandler {
	return &SessionsHandler{sessions: m, maxUpload: maxUpload, plotOpts: plotOpts, logger: logger}
}

func (h *SessionsHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid session id", Kind: "bad_request"})
		return nil, false
	}
	s, ok := h.sessions.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found", Kind: "session_not_found"})
		return nil, false
	}
	return s, true
}

func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": s.ID.String()})
}

func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Summary())
}

func (h *SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.sessions.Delete(s.ID)
	w.WriteHeader(http.StatusNoContent)
}

// Upload accepts either a raw CSV body or a multipart form with a "file"
// field. The strategy query parameter picks the fitting strategy.
func (h *SessionsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var kind predictor.Kind
	if q := r.URL.Query().Get("strategy"); q != "" {
		k, err := predictor.ParseKind(q)
		if err != nil {
			writeError(w, err)
			return
		}
		kind = k
	}

	payload, err := h.readCSV(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.logger.Debug("dataset received", "session_id", s.ID, "size", humanize.Bytes(uint64(len(payload))))

	res, err := s.Upload(r.Context(), bytes.NewReader(payload), kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SessionsHandler) readCSV(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return io.ReadAll(r.Body)
	}

	f, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, &requestError{msg: "multipart upload requires a \"file\" field"}
	}
	defer f.Close()
	return io.ReadAll(f)
}

type predictRequest struct {
	EC50 json.RawMessage `json:"ec50"`
}

// Predict takes {"ec50": "12.5"}. A bare JSON number is accepted as well.
func (h *SessionsHandler) Predict(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Kind: "bad_request"})
		return
	}
	raw := strings.TrimSpace(string(req.EC50))
	var str string
	if err := json.Unmarshal(req.EC50, &str); err == nil {
		raw = str
	}

	p, err := s.Predict(raw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Plot returns the plot data as JSON, or a rendered chart when the format
// query parameter names png or svg.
func (h *SessionsHandler) Plot(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("format"); raw != "" {
		f, err := plot.ParseFormat(raw)
		if err != nil {
			writeError(w, &requestError{msg: err.Error()})
			return
		}
		h.PlotImage(f)(w, r)
		return
	}

	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	p, err := s.Plot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *SessionsHandler) PlotImage(f plot.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.lookup(w, r)
		if !ok {
			return
		}
		p, err := s.Plot()
		if err != nil {
			writeError(w, err)
			return
		}

		var buf bytes.Buffer
		if err := plot.Render(&buf, p, f, h.plotOpts); err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", f.ContentType())
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	}
}

func (h *SessionsHandler) LoadModel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	lm, err := s.LoadPersisted(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"strategy": lm.Kind(),
		"model":    lm,
		"formula":  lm.Formula(),
	})
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }
