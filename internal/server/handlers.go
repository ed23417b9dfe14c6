package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/tameru/internal/models"
)

type searchRequest struct {
	Key  string `json:"key"`
	Term string `json:"term"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Key == "" || req.Term == "" {
		s.respondError(w, http.StatusBadRequest, "key and term are required")
		return
	}
	s.logger.Debug("search request", zap.String("key", req.Key), zap.String("term", req.Term))
	results, err := s.engine.Search(req.Key, req.Term)
	if err != nil {
		s.respondQueryError(w, err)
		return
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"key":     req.Key,
		"term":    req.Term,
		"results": results,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	summary, err := s.engine.Summary(key)
	if err != nil {
		s.respondQueryError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleHeading(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	name := r.URL.Query().Get("name")
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "name query parameter is required")
		return
	}
	body, ref, err := s.engine.Heading(key, name)
	if err != nil {
		var hnf *models.HeadingNotFoundError
		if errors.As(err, &hnf) {
			s.respondJSON(w, http.StatusNotFound, map[string]interface{}{
				"error":     hnf.Error(),
				"available": hnf.Available,
			})
			return
		}
		s.respondQueryError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"chunk": ref,
		"body":  body,
	})
}

func (s *Server) handleUnit(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	unitID := r.URL.Query().Get("id")
	if unitID == "" {
		s.respondError(w, http.StatusBadRequest, "id query parameter is required")
		return
	}
	bodies, refs, err := s.engine.Unit(key, unitID)
	if err != nil {
		var unf *models.UnitNotFoundError
		if errors.As(err, &unf) {
			s.respondJSON(w, http.StatusNotFound, map[string]interface{}{
				"error":     unf.Error(),
				"available": unf.Available,
			})
			return
		}
		s.respondQueryError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"chunks": refs,
		"bodies": bodies,
	})
}

func (s *Server) handleListCaches(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		s.respondError(w, http.StatusNotImplemented, "registry not enabled")
		return
	}
	entries, err := s.registry.List(r.Context(), 0)
	if err != nil {
		s.logger.Error("registry list failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(entries),
		"entries": entries,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondQueryError maps cache error sentinels to HTTP statuses.
func (s *Server) respondQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrCacheCorrupt):
		s.logger.Error("cache corrupt", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	default:
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
