package server

import (
	"net/http"

	"pixelfort/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	schemaVersion, err := s.store.SchemaVersion()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	userCount, err := s.store.CountUsers(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	photoCount, err := s.store.CountPhotos(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.InfoResponse{
		SchemaVersion: schemaVersion,
		UserCount:     userCount,
		PhotoCount:    photoCount,
	})
}
