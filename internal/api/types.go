package api

import (
	"time"

	"pixelfort/internal/models"
)

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// RegisterRequest defines the payload for creating an account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest defines the payload for opening a session.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the response from POST /v1/auth/login.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// PhotoResponse is the public view of a catalog record.
type PhotoResponse struct {
	models.Photo
	HasThumbnail bool `json:"has_thumbnail"`
}

// InfoResponse is the response from GET /v1/info.
type InfoResponse struct {
	SchemaVersion int `json:"schema_version"`
	UserCount     int `json:"user_count"`
	PhotoCount    int `json:"photo_count"`
}

// ReconcileRequest defines the payload for admin reconciliation.
type ReconcileRequest struct {
	DryRun bool `json:"dry_run"`
}

// RederiveRequest defines the payload for retrying metadata derivation.
type RederiveRequest struct {
	Limit int `json:"limit"`
}

// RederiveResponse is the response from POST /v1/admin/rederive.
type RederiveResponse struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
}

// ReconcileResponse is the response from POST /v1/admin/reconcile.
type ReconcileResponse struct {
	Scanned        int   `json:"scanned"`
	Deleted        int   `json:"deleted"`
	SkippedRecent  int   `json:"skipped_recent"`
	Failed         int   `json:"failed"`
	ReclaimedBytes int64 `json:"reclaimed_bytes"`
	DryRun         bool  `json:"dry_run"`
}
