package server

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	internalauth "pixelfort/internal/auth"
	"pixelfort/internal/store"
)

var errInvalidCredentials = errors.New("invalid credentials")

// AuthService encapsulates account and session operations backed by the store.
type AuthService struct {
	users      store.UserStore
	sessionTTL time.Duration
}

type authLoginResult struct {
	User      *store.User
	Token     string
	ExpiresAt time.Time
}

func NewAuthService(users store.UserStore, sessionTTL time.Duration) *AuthService {
	if users == nil {
		return nil
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AuthService{users: users, sessionTTL: sessionTTL}
}

// Register creates a new account. Email and username collisions surface as
// conflict errors with distinct codes.
func (a *AuthService) Register(ctx context.Context, email, username, password string, now time.Time) (*store.User, error) {
	if a == nil || a.users == nil {
		return nil, fmt.Errorf("user store is required")
	}

	normalizedEmail, err := internalauth.NormalizeEmail(email)
	if err != nil {
		return nil, badRequestCode(err, ErrCodeInvalidEmail)
	}
	normalizedUsername, err := internalauth.NormalizeUsername(username)
	if err != nil {
		return nil, badRequestCode(err, ErrCodeInvalidUsername)
	}
	if err := internalauth.ValidatePassword(password); err != nil {
		return nil, badRequestCode(err, ErrCodeInvalidPassword)
	}

	passwordHash, err := internalauth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := a.users.CreateUser(ctx, normalizedEmail, normalizedUsername, passwordHash, now)
	if err != nil {
		switch {
		case store.IsUniqueConstraint(err, "users.email"):
			return nil, conflictCode(fmt.Errorf("email already registered"), ErrCodeEmailExists)
		case store.IsUniqueConstraint(err, "users.username"):
			return nil, conflictCode(fmt.Errorf("username already taken"), ErrCodeUsernameExists)
		default:
			return nil, err
		}
	}
	return user, nil
}

// Login verifies credentials and opens a session. Lookup failures and bad
// passwords both report errInvalidCredentials.
func (a *AuthService) Login(ctx context.Context, email, password string, now time.Time) (*authLoginResult, error) {
	if a == nil || a.users == nil {
		return nil, fmt.Errorf("user store is required")
	}

	normalizedEmail, err := internalauth.NormalizeEmail(email)
	if err != nil {
		return nil, errInvalidCredentials
	}
	if strings.TrimSpace(password) == "" {
		return nil, errInvalidCredentials
	}

	user, err := a.users.GetUserByEmail(ctx, normalizedEmail)
	if err != nil {
		return nil, err
	}
	if user == nil || !internalauth.VerifyPassword(user.PasswordHash, password) {
		return nil, errInvalidCredentials
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, err
	}
	tokenHash := hashSessionToken(token)
	expiresAt := now.Add(a.sessionTTL)
	if err := a.users.CreateSession(ctx, user.ID, tokenHash, expiresAt, now); err != nil {
		return nil, err
	}

	return &authLoginResult{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func (a *AuthService) AuthenticateSessionToken(ctx context.Context, token string, now time.Time) (*store.User, error) {
	if a == nil || a.users == nil {
		return nil, nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	return a.users.GetUserBySessionTokenHash(ctx, hashSessionToken(token), now)
}

func (a *AuthService) RevokeSessionToken(ctx context.Context, token string, now time.Time) error {
	if a == nil || a.users == nil {
		return nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return a.users.RevokeSessionByTokenHash(ctx, hashSessionToken(token), now)
}

func hashSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
