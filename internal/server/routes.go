package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)

	// Accounts and sessions.
	mux.HandleFunc("POST /v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /v1/auth/login", s.handleLogin)
	mux.HandleFunc("POST /v1/auth/logout", s.requireUser(s.handleLogout))
	mux.HandleFunc("GET /v1/users/me", s.requireUser(s.handleGetMe))
	mux.HandleFunc("DELETE /v1/users/me", s.requireUser(s.handleDeleteAccount))

	// Photos collection.
	mux.HandleFunc("POST /v1/photos", s.requireUser(s.handleUploadPhoto))
	mux.HandleFunc("GET /v1/photos", s.requireUser(s.handleListPhotos))

	// Single photo.
	mux.HandleFunc("GET /v1/photos/{id}", s.requireUser(s.handleGetPhoto))
	mux.HandleFunc("DELETE /v1/photos/{id}", s.requireUser(s.handleDeletePhoto))
	mux.HandleFunc("GET /v1/photos/{id}/content", s.requireUser(s.handlePhotoContent))
	mux.HandleFunc("GET /v1/photos/{id}/thumbnail", s.requireUser(s.handlePhotoThumbnail))

	// Admin.
	mux.HandleFunc("POST /v1/admin/reconcile", s.requireAdmin(s.handleAdminReconcile))
	mux.HandleFunc("POST /v1/admin/rederive", s.requireAdmin(s.handleAdminRederive))

	return mux
}
