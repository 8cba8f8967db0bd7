package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/OseiasSilva021/mini-blog-com-jwt/internal/domain"
)

const (
	defaultSessionTTL = time.Hour
	sessionTokenType  = "session"
)

// JWTService emite y valida tokens de sesión firmados.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	store  SessionRevocationStore
	now    func() time.Time
}

type SessionToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int64     `json:"expires_in"`
}

type Claims struct {
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
	ErrJWTRevoked = errors.New("jwt revoked")
)

func NewJWTService(secret string, ttl time.Duration, store SessionRevocationStore) *JWTService {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if store == nil {
		store = NewMemoryRevocationStore()
	}
	return &JWTService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: "mini-blog",
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// Issue firma un token con la identidad del usuario y vigencia fija.
func (s *JWTService) Issue(user domain.User) (SessionToken, error) {
	if len(s.secret) == 0 {
		return SessionToken{}, ErrJWTInvalid
	}
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		TokenType: sessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{
		Token:     signed,
		ExpiresAt: expiresAt,
		ExpiresIn: int64(s.ttl.Seconds()),
	}, nil
}

// Parse valida firma, emisor, vencimiento y revocación. Cualquier fallo rechaza.
func (s *JWTService) Parse(ctx context.Context, tokenString string) (Claims, error) {
	if len(s.secret) == 0 {
		return Claims{}, ErrJWTInvalid
	}
	if strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrJWTInvalid
	}
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != sessionTokenType || !s.isValidClaims(claims) {
		return Claims{}, ErrJWTInvalid
	}
	if claims.ID != "" && s.store != nil {
		revoked, err := s.store.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Claims{}, ErrJWTInvalid
		}
		if revoked {
			return Claims{}, ErrJWTRevoked
		}
	}
	return claims, nil
}

// Revoke invalida el token hasta su vencimiento natural.
func (s *JWTService) Revoke(ctx context.Context, claims Claims) error {
	if claims.ID == "" || s.store == nil {
		return ErrJWTInvalid
	}
	ttl := s.ttl
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	if ttl <= 0 {
		return nil
	}
	return s.store.Revoke(ctx, claims.ID, ttl)
}

func (s *JWTService) parseToken(tokenString string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrJWTExpired
		}
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) isValidClaims(claims Claims) bool {
	if strings.TrimSpace(claims.UserID) == "" {
		return false
	}
	if claims.Subject != claims.UserID {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return strings.TrimSpace(claims.Issuer) == s.issuer
}
