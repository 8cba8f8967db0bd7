package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/OseiasSilva021/mini-blog-com-jwt/internal/domain"
)

func TestJWTService_IssueParse(t *testing.T) {
	svc := NewJWTService("secret", 0, NewMemoryRevocationStore())
	user := domain.User{ID: "u1", Email: "ana@example.com", Name: "Ana"}

	session, err := svc.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if session.Token == "" || session.ExpiresIn != 3600 {
		t.Fatalf("expected 1h token, got %+v", session)
	}

	claims, err := svc.Parse(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "ana@example.com" || claims.Name != "Ana" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != time.Hour {
		t.Fatalf("expected exp-iat of 1h, got %v", got)
	}
}

func TestJWTService_RejectsExpired(t *testing.T) {
	svc := NewJWTService("secret", time.Hour, nil)
	issuedAt := time.Now().UTC().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issuedAt }
	session, err := svc.Issue(domain.User{ID: "u1", Email: "ana@example.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	svc.now = func() time.Time { return time.Now().UTC() }
	if _, err := svc.Parse(context.Background(), session.Token); !errors.Is(err, ErrJWTExpired) {
		t.Fatalf("expected ErrJWTExpired, got %v", err)
	}
}

func TestJWTService_RejectsEmptySecret(t *testing.T) {
	svc := NewJWTService("", time.Hour, nil)
	if _, err := svc.Issue(domain.User{ID: "u1"}); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid on empty secret, got %v", err)
	}
	if _, err := svc.Parse(context.Background(), "anything"); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid on empty secret, got %v", err)
	}
}

func TestJWTService_RejectsWrongSecretAndGarbage(t *testing.T) {
	issuer := NewJWTService("secret-a", time.Hour, nil)
	verifier := NewJWTService("secret-b", time.Hour, nil)
	session, err := issuer.Issue(domain.User{ID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Parse(context.Background(), session.Token); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for foreign signature, got %v", err)
	}
	if _, err := verifier.Parse(context.Background(), "not.a.jwt"); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for garbage, got %v", err)
	}
	if _, err := verifier.Parse(context.Background(), "  "); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for blank token, got %v", err)
	}
}

func TestJWTService_RejectsWrongIssuer(t *testing.T) {
	svc := NewJWTService("secret", time.Hour, nil)
	now := time.Now().UTC()
	claims := Claims{
		UserID:    "u1",
		Email:     "ana@example.com",
		TokenType: sessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "other-issuer",
			Subject:   "u1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := svc.Parse(context.Background(), signed); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for wrong issuer, got %v", err)
	}
}

func TestJWTService_RejectsTokenWithoutExpiry(t *testing.T) {
	svc := NewJWTService("secret", time.Hour, nil)
	claims := Claims{
		UserID:    "u1",
		TokenType: sessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:  "mini-blog",
			Subject: "u1",
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := svc.Parse(context.Background(), signed); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for token without exp, got %v", err)
	}
}

func TestJWTService_Revoke(t *testing.T) {
	ctx := context.Background()
	svc := NewJWTService("secret", time.Hour, NewMemoryRevocationStore())
	session, err := svc.Issue(domain.User{ID: "u1", Email: "ana@example.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := svc.Parse(ctx, session.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if err := svc.Revoke(ctx, claims); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.Parse(ctx, session.Token); !errors.Is(err, ErrJWTRevoked) {
		t.Fatalf("expected ErrJWTRevoked after logout, got %v", err)
	}

	other, err := svc.Issue(domain.User{ID: "u1", Email: "ana@example.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Parse(ctx, other.Token); err != nil {
		t.Fatalf("other sessions stay valid, got %v", err)
	}
}

type failingRevocationStore struct{}

func (failingRevocationStore) Revoke(context.Context, string, time.Duration) error {
	return errors.New("store down")
}

func (failingRevocationStore) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("store down")
}

func TestJWTService_FailsClosedWhenStoreUnavailable(t *testing.T) {
	svc := NewJWTService("secret", time.Hour, failingRevocationStore{})
	session, err := svc.Issue(domain.User{ID: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Parse(context.Background(), session.Token); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid when revocation state is unknown, got %v", err)
	}
}
