package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/parcelgrid/proforma/internal/store"
	"github.com/parcelgrid/proforma/internal/timeline"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, envelope{Success: true})
}

type calculateRequest struct {
	DryRun bool `json:"dry_run"`
}

type calculateResult struct {
	ResolvedCount int                  `json:"resolved_count"`
	Errors        []timeline.ItemError `json:"errors"`
}

// handleCalculate runs the resolver over a project's item set. A completed
// run answers 200 even when some items failed — those failures are data for
// the grid, not an HTTP error. Non-200 is reserved for malformed requests,
// unknown projects, and resolver faults.
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectID")

	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	records, err := s.store.LoadProjectItems(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("load project items", zap.String("project_id", projectID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load project items")
		return
	}

	report, err := timeline.Calculate(records)
	if err != nil {
		s.logger.Error("calculate timeline", zap.String("project_id", projectID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "timeline calculation failed")
		return
	}

	if !req.DryRun {
		if err := s.store.ApplySchedule(r.Context(), report.RunID, report.Schedules); err != nil {
			s.logger.Error("apply schedule",
				zap.String("project_id", projectID),
				zap.String("run_id", report.RunID),
				zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "failed to persist schedule")
			return
		}
	}

	s.logger.Info("timeline calculated",
		zap.String("project_id", projectID),
		zap.String("run_id", report.RunID),
		zap.Bool("dry_run", req.DryRun),
		zap.Int("resolved_count", report.ResolvedCount),
		zap.Int("error_count", len(report.Errors)))

	s.writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data: calculateResult{
			ResolvedCount: report.ResolvedCount,
			Errors:        report.Errors,
		},
	})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectID")

	items, err := s.store.LoadSchedule(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("load schedule", zap.String("project_id", projectID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}

	s.writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    map[string]any{"items": items},
	})
}
