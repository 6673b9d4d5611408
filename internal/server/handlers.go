package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/psalterlabs/lectio/internal/models"
	"github.com/psalterlabs/lectio/internal/persona"
	"github.com/psalterlabs/lectio/internal/storage"
	"go.uber.org/zap"
)

type ingestRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "id")
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("ingest request", zap.String("source_id", sourceID), zap.Int("length", len(req.Text)))
	if err := s.engine.IngestText(r.Context(), sourceID, req.Text); err != nil {
		s.respondWithError(w, err, "ingestion failed")
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"source_id": sourceID,
		"chunks":    s.engine.Index().ChunkCount(sourceID),
	})
}

type searchRequest struct {
	SourceID  string   `json:"source_id,omitempty"`
	SourceIDs []string `json:"source_ids,omitempty"`
	Query     string   `json:"query"`
	TopK      int      `json:"top_k,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))

	if len(req.SourceIDs) > 0 {
		results, err := s.engine.Index().QueryMulti(r.Context(), req.SourceIDs, req.Query, req.TopK)
		if err != nil {
			s.respondWithError(w, err, "search failed")
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
		return
	}
	if req.SourceID == "" {
		s.respondError(w, http.StatusBadRequest, "source_id or source_ids is required")
		return
	}
	hits, err := s.engine.Index().Query(r.Context(), req.SourceID, req.Query, req.TopK)
	if err != nil {
		s.respondWithError(w, err, "search failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": hits})
}

type generateRequest struct {
	Passage string `json:"passage"`
	Persona string `json:"persona"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := persona.Parse(req.Persona)
	if err != nil {
		s.respondWithError(w, err, "invalid persona")
		return
	}
	if req.Passage == "" {
		s.respondError(w, http.StatusBadRequest, "passage is required")
		return
	}
	s.logger.Debug("generate request", zap.String("passage", req.Passage), zap.String("persona", req.Persona))
	v, err := s.engine.GenerateCommentary(r.Context(), req.Passage, p)
	if err != nil {
		s.logger.Error("generation failed", zap.Error(err))
		s.respondWithError(w, err, "generation failed")
		return
	}
	s.respondJSON(w, http.StatusCreated, v)
}

type askRequest struct {
	Question string `json:"question"`
	Persona  string `json:"persona"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := persona.Parse(req.Persona)
	if err != nil {
		s.respondWithError(w, err, "invalid persona")
		return
	}
	if req.Question == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	answer, err := s.engine.Answer(r.Context(), req.Question, p)
	if err != nil {
		s.logger.Error("answer failed", zap.Error(err))
		s.respondWithError(w, err, "answer failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"answer": answer, "persona": p.String()})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	passage := r.URL.Query().Get("passage")
	personaName := r.URL.Query().Get("persona")
	v, err := s.engine.Store().GetLatest(r.Context(), passage, personaName)
	if err != nil {
		s.respondWithError(w, err, "lookup failed")
		return
	}
	if v == nil {
		s.respondError(w, http.StatusNotFound, "no commentary yet, generate one")
		return
	}
	s.respondJSON(w, http.StatusOK, v)
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	passage := r.URL.Query().Get("passage")
	personaName := r.URL.Query().Get("persona")
	summaries, err := s.engine.Store().ListVersions(r.Context(), passage, personaName)
	if err != nil {
		s.respondWithError(w, err, "lookup failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"versions": summaries})
}

type feedbackRequest struct {
	Passage string `json:"passage"`
	Persona string `json:"persona"`
	Rating  *int   `json:"rating,omitempty"`
	Comment string `json:"comment,omitempty"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := persona.Parse(req.Persona)
	if err != nil {
		s.respondWithError(w, err, "invalid persona")
		return
	}
	s.logger.Debug("feedback request",
		zap.String("passage", req.Passage), zap.String("persona", req.Persona))
	result, newVersion, err := s.engine.SubmitFeedback(r.Context(), req.Passage, p, req.Rating, req.Comment)
	if err != nil {
		s.respondWithError(w, err, "feedback failed")
		return
	}
	resp := map[string]interface{}{
		"quality_score":         result.QualityScore,
		"new_version_generated": result.NewVersionGenerated,
	}
	if newVersion != nil {
		resp["new_version"] = newVersion
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	passage := r.URL.Query().Get("passage")
	reports, err := s.engine.Store().DetectConflicts(r.Context(), passage)
	if err != nil {
		s.respondWithError(w, err, "conflict detection failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"conflicts": reports})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.storage.CountDocuments(ctx)
	if err != nil {
		s.respondWithError(w, err, "status failed")
		return
	}
	chunkCount, err := s.storage.CountChunks(ctx)
	if err != nil {
		s.respondWithError(w, err, "status failed")
		return
	}
	versionCount, err := s.storage.CountVersions(ctx)
	if err != nil {
		s.respondWithError(w, err, "status failed")
		return
	}
	sources := s.engine.Index().Sources()
	sort.Strings(sources)

	resp := map[string]interface{}{
		"documents": docCount,
		"chunks":    chunkCount,
		"versions":  versionCount,
		"sources":   sources,
	}
	if s.status != nil {
		if ollamaStatus, err := s.status.Status(ctx); err == nil {
			resp["ollama"] = ollamaStatus
		}
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"chunk_size":    s.config.Retrieval.ChunkSize,
			"chunk_overlap": s.config.Retrieval.ChunkOverlap,
			"default_top_k": s.config.Retrieval.DefaultTopK,
			"database_path": s.config.Storage.DatabasePath,
		}
		if diskBytes, err := storage.DatabaseSizeBytes(s.config.Storage.DatabasePath); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondWithError maps sentinel errors to HTTP statuses.
func (s *Server) respondWithError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrIngest):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error(fallback, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
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
