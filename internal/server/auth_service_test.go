package server

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func newAuthServiceForTest(t *testing.T) *AuthService {
	t.Helper()
	return NewAuthService(newTestStore(t), time.Hour)
}

func TestAuthServiceRegisterAndLogin(t *testing.T) {
	svc := newAuthServiceForTest(t)
	ctx := context.Background()
	now := time.Now().UTC()

	user, err := svc.Register(ctx, "Ana@Example.com", "Ana", "correct-horse-battery", now)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "ana@example.com" || user.Username != "ana" {
		t.Fatalf("expected normalized credentials, got %+v", user)
	}

	result, err := svc.Login(ctx, "ana@example.com", "correct-horse-battery", now)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected session token")
	}
	if !result.ExpiresAt.After(now) {
		t.Fatal("expected future expiry")
	}

	authed, err := svc.AuthenticateSessionToken(ctx, result.Token, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed == nil || authed.ID != user.ID {
		t.Fatalf("expected session to resolve to %s, got %+v", user.ID, authed)
	}
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	svc := newAuthServiceForTest(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := svc.Register(ctx, "ana@example.com", "ana", "correct-horse-battery", now); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, "ana@example.com", "wrong", now); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials for bad password, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "correct-horse-battery", now); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}
}

func TestAuthServiceRegisterConflicts(t *testing.T) {
	svc := newAuthServiceForTest(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := svc.Register(ctx, "ana@example.com", "ana", "correct-horse-battery", now); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := svc.Register(ctx, "ana@example.com", "other", "correct-horse-battery", now)
	if status := httpStatusFromError(err); status != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d (%v)", status, err)
	}
	if code := errorNumericCode(http.StatusConflict, err); code != ErrCodeEmailExists {
		t.Fatalf("expected error code %d, got %d", ErrCodeEmailExists, code)
	}

	_, err = svc.Register(ctx, "other@example.com", "ana", "correct-horse-battery", now)
	if status := httpStatusFromError(err); status != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %d (%v)", status, err)
	}
	if code := errorNumericCode(http.StatusConflict, err); code != ErrCodeUsernameExists {
		t.Fatalf("expected error code %d, got %d", ErrCodeUsernameExists, code)
	}
}

func TestAuthServiceRegisterValidation(t *testing.T) {
	svc := newAuthServiceForTest(t)
	ctx := context.Background()
	now := time.Now().UTC()

	tests := []struct {
		name     string
		email    string
		username string
		password string
	}{
		{name: "bad email", email: "not-an-email", username: "ana", password: "correct-horse-battery"},
		{name: "short username", email: "ana@example.com", username: "a", password: "correct-horse-battery"},
		{name: "short password", email: "ana@example.com", username: "ana", password: "pw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.email, tt.username, tt.password, now)
			if status := httpStatusFromError(err); status != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (%v)", status, err)
			}
		})
	}
}

func TestAuthServiceRevokeSessionToken(t *testing.T) {
	svc := newAuthServiceForTest(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := svc.Register(ctx, "ana@example.com", "ana", "correct-horse-battery", now); err != nil {
		t.Fatalf("register: %v", err)
	}
	result, err := svc.Login(ctx, "ana@example.com", "correct-horse-battery", now)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.RevokeSessionToken(ctx, result.Token, now.Add(time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	authed, err := svc.AuthenticateSessionToken(ctx, result.Token, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed != nil {
		t.Fatal("expected revoked session to be rejected")
	}
}
