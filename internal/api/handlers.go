package api

import (
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/yacht-qa-crawler/internal/importer"
	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
	"github.com/JakeFAU/yacht-qa-crawler/internal/registry"
	"github.com/JakeFAU/yacht-qa-crawler/internal/review"
	"github.com/JakeFAU/yacht-qa-crawler/internal/worker"
)

const (
	defaultEntryLimit = 50
	maxEntryLimit     = 500
)

type seedResponse struct {
	Message string `json:"message"`
	registry.SeedResult
}

func (s *Server) seedSources(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Registry.Seed(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, seedResponse{Message: "Sources initialized", SeedResult: res})
}

func (s *Server) runBatch(w http.ResponseWriter, r *http.Request) {
	var req worker.BatchRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.BatchSize < 0 || req.MaxTier < 0 {
		writeError(w, http.StatusBadRequest, "batchSize and maxTier must be >= 0")
		return
	}
	res, err := s.deps.Batch.Run(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) runExtract(w http.ResponseWriter, r *http.Request) {
	var req worker.ExtractRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be >= 0")
		return
	}
	res, err := s.deps.Extract.Run(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) runPublish(w http.ResponseWriter, r *http.Request) {
	var req worker.PublishRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.deps.Publish.Run(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) applyReview(w http.ResponseWriter, r *http.Request) {
	var req review.Request
	if err := decodeJSON(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.CandidateID <= 0 || req.Action == "" {
		writeError(w, http.StatusBadRequest, "candidateId and action are required")
		return
	}
	out, err := s.deps.Review.Apply(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getReview(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("candidateId"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "candidateId must be a positive integer")
		return
	}
	detail, err := s.deps.Review.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type bulkImportRequest struct {
	Entries []importer.Row `json:"entries"`
	DryRun  bool           `json:"dryRun"`
}

func (s *Server) bulkImport(w http.ResponseWriter, r *http.Request) {
	var req bulkImportRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/csv" {
		rows, err := importer.ParseCSV(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Entries = rows
		req.DryRun, _ = strconv.ParseBool(r.URL.Query().Get("dryRun"))
	} else if err := decodeJSON(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.deps.Importer.Import(r.Context(), req.Entries, req.DryRun)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !req.DryRun {
		s.logger.Warn("bulk import bypassed review",
			zap.String("path", "bulk_import"),
			zap.Int("imported", res.Imported),
			zap.Int("skipped", res.Skipped),
		)
	}
	writeJSON(w, http.StatusOK, res)
}

type entriesResponse struct {
	Entries []pipeline.Entry `json:"entries"`
	Count   int              `json:"count"`
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := s.deps.Entries.ListEntries(r.Context(), pipeline.EntryQuery{
		ActiveOnly: true,
		Tag:        r.URL.Query().Get("tag"),
		Limit:      limit,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []pipeline.Entry{}
	}
	writeJSON(w, http.StatusOK, entriesResponse{Entries: entries, Count: len(entries)})
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultEntryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxEntryLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", maxEntryLimit)
	}
	return n, nil
}
