package server

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"pixelfort/internal/api"
	"pixelfort/internal/store"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	user, err := s.authService.Register(r.Context(), req.Email, req.Username, req.Password, time.Now().UTC())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	now := time.Now().UTC()
	limiterKey := loginAttemptKey(req.Email, r)
	if !s.loginLimiter.Allow(limiterKey, now) {
		s.writeErrorReq(w, r, http.StatusTooManyRequests, apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     errors.New("too many login attempts; retry later"),
		})
		return
	}

	result, err := s.authService.Login(r.Context(), req.Email, req.Password, now)
	if err != nil {
		if errors.Is(err, errInvalidCredentials) {
			s.loginLimiter.RegisterFailure(limiterKey, now)
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized())
			return
		}
		s.writeStoreError(w, r, err)
		return
	}
	s.loginLimiter.Reset(limiterKey)

	s.writeJSON(w, http.StatusOK, api.LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      toUserResponse(result.User),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if err := s.authService.RevokeSessionToken(r.Context(), token, time.Now().UTC()); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized())
		return
	}
	s.writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized())
		return
	}
	if r.Header.Get("X-Confirm") != "true" {
		s.writeErrorReq(w, r, http.StatusBadRequest,
			badRequestCode(errors.New("account deletion requires X-Confirm: true header"), ErrCodeMissingRequired))
		return
	}

	removed, err := s.photoService.DeleteOwnerPhotos(r.Context(), user.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if _, err := s.store.DeleteUser(r.Context(), user.ID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.log().Info("account deleted", "user_id", user.ID, "photos_removed", removed)
	w.WriteHeader(http.StatusNoContent)
}

func toUserResponse(user *store.User) api.UserResponse {
	if user == nil {
		return api.UserResponse{}
	}
	return api.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	}
}

func loginAttemptKey(email string, r *http.Request) string {
	account := strings.ToLower(strings.TrimSpace(email))
	if account == "" {
		account = "<empty>"
	}
	ip := requestClientIP(r)
	if ip == "" {
		ip = "<unknown>"
	}
	return ip + "|" + account
}

func requestClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
