package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"pixelfort/internal/blobstore"
	"pixelfort/internal/config"
	"pixelfort/internal/derive"
	"pixelfort/internal/reconcile"
	"pixelfort/internal/store"
)

const (
	adminTokenEnvKey  = "PIXELFORT_ADMIN_TOKEN"
	allowRemoteEnvKey = "PIXELFORT_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 60 * time.Second
	writeTimeout      = 120 * time.Second
	idleTimeout       = 60 * time.Second

	uploadConcurrencyLimit    = 4
	reconcileConcurrencyLimit = 1
)

// Server wraps HTTP handlers for the pixelfort API.
type Server struct {
	addr             string
	store            *store.Store
	cfg              *config.Config
	photoService     *PhotoService
	authService      *AuthService
	reconciler       *reconcile.Reconciler
	logger           *slog.Logger
	adminToken       string
	loginLimiter     *loginRateLimiter
	uploadLimiter    chan struct{}
	reconcileLimiter chan struct{}
}

// New creates a new server instance.
func New(addr string, st *store.Store, blobs blobstore.BlobStore, deriver derive.Deriver, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}

	deriveTimeout := time.Duration(cfg.DeriveTimeoutSeconds) * time.Second
	sessionTTL := time.Duration(cfg.SessionTTLHours) * time.Hour

	return &Server{
		addr:             addr,
		store:            st,
		cfg:              cfg,
		photoService:     NewPhotoService(st, blobs, deriver, deriveTimeout, logger),
		authService:      NewAuthService(st, sessionTTL),
		reconciler:       reconcile.New(st, blobs, time.Duration(cfg.Reconcile.GraceMinutes)*time.Minute, logger),
		logger:           logger,
		adminToken:       strings.TrimSpace(os.Getenv(adminTokenEnvKey)),
		loginLimiter:     newLoginRateLimiter(10, time.Minute, 5*time.Minute),
		uploadLimiter:    make(chan struct{}, uploadConcurrencyLimit),
		reconcileLimiter: make(chan struct{}, reconcileConcurrencyLimit),
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.withRequestLogging(s.routes()),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	return server.ListenAndServe()
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}

func (s *Server) withLimiter(w http.ResponseWriter, r *http.Request, limiter chan struct{}, name string, fn func()) {
	if !s.acquireLimiter(limiter, w, r, name) {
		return
	}
	defer s.releaseLimiter(limiter)
	fn()
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
