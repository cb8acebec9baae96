package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agentic-research/tagnav/internal/session"
	"github.com/agentic-research/tagnav/internal/transport"
)

type createResponse struct {
	ID   string       `json:"id"`
	View session.View `json:"view"`
}

type selectRequest struct {
	Depth int     `json:"depth"`
	Index *int    `json:"index,omitempty"`
	Value *string `json:"value,omitempty"`
}

type stepRequest struct {
	Dir int `json:"dir"`
}

type stepResponse struct {
	Moved bool         `json:"moved"`
	View  session.View `json:"view"`
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.page)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	sess, err := s.newSession(r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.newSession(r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	id := uuid.NewString()
	if evicted := s.sessions.Add(id, &entry{s: sess}); evicted {
		s.logger.Debug("session table full, dropped oldest session")
	}
	writeJSON(w, http.StatusCreated, createResponse{ID: id, View: sess.View()})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	writeJSON(w, http.StatusOK, e.s.View())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Remove(chi.URLParam(r, "id")) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if (req.Index == nil) == (req.Value == nil) {
		http.Error(w, "exactly one of index and value is required", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if req.Index != nil {
		err = e.s.Select(req.Depth, *req.Index)
	} else {
		err = e.s.SelectValue(req.Depth, *req.Value)
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, e.s.View())
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	req := stepRequest{Dir: 1}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	moved, err := e.s.Step(req.Dir)
	if errors.Is(err, session.ErrNoAnimation) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stepResponse{Moved: moved, View: e.s.View()})
}

// handleRef serves one payload reference through the prefetch cache.
func (s *Server) handleRef(w http.ResponseWriter, r *http.Request) {
	if s.prefetch == nil {
		http.Error(w, "refs are not served", http.StatusNotFound)
		return
	}
	ref := chi.URLParam(r, "*")
	if _, ok := s.refs[ref]; !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	data, err := s.prefetch.Get(r.Context(), ref)
	if errors.Is(err, transport.ErrNotFound) || errors.Is(err, transport.ErrOutsideBase) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
