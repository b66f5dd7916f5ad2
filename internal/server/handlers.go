package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/retrieval"
	"github.com/hyperjump/shiori/internal/storage"
	"github.com/hyperjump/shiori/internal/vector"
	"go.uber.org/zap"
)

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (*models.RetrieveRequest, bool) {
	var req models.RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if err := req.Validate(s.retriever.DefaultK()); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &req, true
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	s.logger.Debug("retrieve request", zap.String("query", req.Query), zap.Int("k", req.K))
	resp, err := s.retriever.Do(r.Context(), req)
	if err != nil {
		s.respondQueryError(w, "retrieve", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	s.logger.Debug("prompt request", zap.String("query", req.Query), zap.Int("k", req.K))
	results, err := s.retriever.Retrieve(r.Context(), req.Query, req.K)
	if err != nil {
		s.respondQueryError(w, "prompt", err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.PromptResponse{
		Query:  req.Query,
		Prompt: s.assembler.Assemble(results, req.Query),
		Hits:   len(results),
	})
}

// respondQueryError maps query-time failures to status codes.
func (s *Server) respondQueryError(w http.ResponseWriter, op string, err error) {
	var dm *vector.DimensionMismatchError
	switch {
	case errors.Is(err, retrieval.ErrNoIndex):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, embedding.ErrEmptyInput):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &dm):
		s.logger.Error(op+" failed", zap.Int("query_dims", dm.Got), zap.Int("index_dims", dm.Want))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	default:
		s.logger.Error(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if s.rebuilder == nil {
		s.respondError(w, http.StatusNotImplemented, "rebuild not enabled")
		return
	}
	s.logger.Debug("rebuild request")
	stats, err := s.rebuilder.Rebuild(context.WithoutCancel(r.Context()))
	if err != nil {
		s.logger.Error("rebuild failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "indexed",
		"documents":   stats.Documents,
		"chunks":      stats.Chunks,
		"skipped":     stats.Skipped,
		"duration_ms": stats.Duration.Milliseconds(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{}
	stats, err := s.retriever.Stats()
	if err != nil {
		resp["index"] = nil
	} else {
		resp["index"] = stats
	}
	if s.config != nil {
		indexPath := s.config.Storage.IndexPath
		if m, err := vector.ReadManifest(indexPath); err == nil {
			resp["build_id"] = m.BuildID
			resp["built_at"] = m.CreatedAt
		}
		if diskBytes, err := storage.DiskUsageBytes(indexPath); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
		if leftovers, err := storage.LeftoverDirs(indexPath); err == nil && len(leftovers) > 0 {
			resp["leftover_dirs"] = leftovers
		}
		resp["config"] = map[string]interface{}{
			"index_path":         indexPath,
			"source_directory":   s.config.Loader.Directory,
			"embedding_provider": s.config.Embedding.Provider,
			"embedding_model":    s.config.Embedding.Model,
			"chunk_size":         s.config.Chunking.ChunkSize,
			"chunk_overlap":      s.config.Chunking.Overlap(),
			"top_k":              s.config.Retrieval.TopK,
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
