package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/yosgi/GeoCopilot/internal/export"
	"github.com/yosgi/GeoCopilot/internal/ingest"
	"github.com/yosgi/GeoCopilot/internal/models"
	"go.uber.org/zap"
)

// Bounds for the /history ?limit= parameter.
const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

func (s *Server) handleInsertBatch(w http.ResponseWriter, r *http.Request) {
	var records []models.Record
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("insert batch request", zap.Int("records", len(records)))
	result, err := s.ingest.InsertBatch(r.Context(), records)
	if err != nil {
		s.logger.Error("insert failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result.Status == ingest.StatusDuplicate {
		s.respondJSON(w, http.StatusConflict, map[string]interface{}{
			"status":   result.Status,
			"message":  result.Message,
			"inserted": 0,
		})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      result.Status,
		"inserted":    result.Inserted,
		"total_in_db": result.TotalInDB,
		"pool_size":   result.PoolSize,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("query request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))
	records, err := s.query.Search(r.Context(), &req)
	if err != nil {
		if errors.Is(err, models.ErrEmptyQuery) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// The body is the bare record array, most similar first.
	s.respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleQuerySummary(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("summary request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))
	answer, err := s.query.Summarize(r.Context(), &req)
	if err != nil {
		if errors.Is(err, models.ErrEmptyQuery) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("summary failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	vectors := s.index.Size()
	records := s.meta.Len()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"database_status":  "ready",
		"total_equipment":  records,
		"faiss_index_size": vectors,
		"pool_size":        s.pool.Size(),
		"data_consistency": vectors == records,
		"files_exist": map[string]bool{
			"faiss_index":  fileExists(s.config.Storage.IndexPath),
			"metadata_pkl": fileExists(s.config.Storage.MetadataPath),
		},
	})
}

func (s *Server) handleSaveNow(w http.ResponseWriter, r *http.Request) {
	vectors, records, err := s.saver.SaveNow()
	if err != nil {
		s.logger.Error("manual save failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"message":        "All data saved successfully",
		"faiss_vectors":  vectors,
		"metadata_items": records,
	})
}

func (s *Server) handleExportBundle(w http.ResponseWriter, r *http.Request) {
	path, err := s.exporter.WriteBundle()
	if err != nil {
		if errors.Is(err, export.ErrEmptyDatabase) {
			s.respondError(w, http.StatusBadRequest, "No data to export. Database is empty.")
			return
		}
		s.logger.Error("bundle export failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.serveDownload(w, r, path, "application/zip")
}

func (s *Server) handleExportDatabaseJSON(w http.ResponseWriter, r *http.Request) {
	path, err := s.exporter.WriteDatabaseJSON()
	if err != nil {
		if errors.Is(err, export.ErrEmptyDatabase) {
			s.respondError(w, http.StatusBadRequest, "No data to export. Database is empty.")
			return
		}
		s.logger.Error("database export failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.serveDownload(w, r, path, "application/json")
}

func (s *Server) handleExportIndex(w http.ResponseWriter, r *http.Request) {
	path := s.config.Storage.IndexPath
	if !fileExists(path) {
		s.respondError(w, http.StatusNotFound, "FAISS index file not found. Try saving data first.")
		return
	}
	if s.index.Size() == 0 {
		s.respondError(w, http.StatusBadRequest, "FAISS index is empty. No vectors to export.")
		return
	}
	s.serveDownload(w, r, path, "application/octet-stream")
}

// Existing clients match on this route name and message wording even though
// the snapshot is no longer a pickle.
func (s *Server) handleExportMetadata(w http.ResponseWriter, r *http.Request) {
	path := s.config.Storage.MetadataPath
	if !fileExists(path) {
		s.respondError(w, http.StatusNotFound, "Metadata pickle file not found. Try saving data first.")
		return
	}
	if s.meta.Len() == 0 {
		s.respondError(w, http.StatusBadRequest, "Metadata store is empty. No data to export.")
		return
	}
	s.serveDownload(w, r, path, "application/octet-stream")
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, http.StatusNotImplemented, "history not enabled")
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	ctx := r.Context()
	ingests, err := s.history.RecentIngests(ctx, limit)
	if err != nil {
		s.logger.Error("history: list ingests failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	queries, err := s.history.RecentQueries(ctx, limit)
	if err != nil {
		s.logger.Error("history: list queries failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"ingests": ingests,
		"queries": queries,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) serveDownload(w http.ResponseWriter, r *http.Request, path, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
