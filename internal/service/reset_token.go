package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"
)

const (
	resetTokenBytes = 32
	defaultResetTTL = time.Hour
)

// ResetTokenManager genera tokens de recuperación de un solo uso.
// Solo el digest SHA-256 del token se persiste.
type ResetTokenManager struct {
	ttl time.Duration
	now func() time.Time
}

func NewResetTokenManager(ttl time.Duration, now func() time.Time) *ResetTokenManager {
	if ttl <= 0 {
		ttl = defaultResetTTL
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ResetTokenManager{ttl: ttl, now: now}
}

// Issue devuelve el token para el usuario, su digest y el vencimiento.
func (m *ResetTokenManager) Issue() (string, string, time.Time, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", time.Time{}, err
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	return token, HashResetToken(token), m.now().Add(m.ttl), nil
}

func (m *ResetTokenManager) TTL() time.Duration {
	return m.ttl
}

func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
