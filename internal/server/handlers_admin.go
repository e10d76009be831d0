package server

import (
	"errors"
	"net/http"

	"pixelfort/internal/api"
)

func (s *Server) handleAdminReconcile(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.reconcileLimiter, "reconcile", func() {
		s.adminReconcile(w, r)
	})
}

func (s *Server) adminReconcile(w http.ResponseWriter, r *http.Request) {
	var req api.ReconcileRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	if !req.DryRun && r.Header.Get("X-Confirm") != "true" {
		s.writeErrorReq(w, r, http.StatusBadRequest,
			badRequestCode(errors.New("non-dry-run requires X-Confirm: true header"), ErrCodeMissingRequired))
		return
	}

	result, err := s.reconciler.Run(r.Context(), req.DryRun)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusInternalServerError,
			makeAPIError(http.StatusInternalServerError, "internal", ErrCodeReconcileFailed, err))
		return
	}

	s.writeJSON(w, http.StatusOK, api.ReconcileResponse{
		Scanned:        result.Scanned,
		Deleted:        result.Deleted,
		SkippedRecent:  result.SkippedRecent,
		Failed:         result.Failed,
		ReclaimedBytes: result.ReclaimedBytes,
		DryRun:         result.DryRun,
	})
}

func (s *Server) handleAdminRederive(w http.ResponseWriter, r *http.Request) {
	var req api.RederiveRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	if req.Limit < 0 {
		s.writeErrorReq(w, r, http.StatusBadRequest,
			badRequestCode(errors.New("limit must be >= 0"), ErrCodeInvalidArgument))
		return
	}

	result, err := s.photoService.Rederive(r.Context(), req.Limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.RederiveResponse{
		Scanned: result.Scanned,
		Updated: result.Updated,
	})
}
