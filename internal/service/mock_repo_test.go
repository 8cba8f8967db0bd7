package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/OseiasSilva021/mini-blog-com-jwt/internal/domain"
	"github.com/OseiasSilva021/mini-blog-com-jwt/internal/email"
	"github.com/OseiasSilva021/mini-blog-com-jwt/internal/repository"
)

type mockUserRepo struct {
	mu           sync.Mutex
	usersByID    map[string]domain.User
	usersByEmail map[string]string
	writes       int
	err          error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByID:    make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.usersByEmail[user.Email]; ok {
		return repository.ErrEmailTaken
	}
	m.writes++
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.User{}, m.err
	}
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.User{}, m.err
	}
	id, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.usersByID[id], nil
}

func (m *mockUserRepo) List(_ context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	users := make([]domain.User, 0, len(m.usersByID))
	for _, u := range m.usersByID {
		users = append(users, u)
	}
	return users, nil
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id string, update repository.ProfileUpdate) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	if update.Email != nil && *update.Email != user.Email {
		if _, taken := m.usersByEmail[*update.Email]; taken {
			return domain.User{}, repository.ErrEmailTaken
		}
		delete(m.usersByEmail, user.Email)
		user.Email = *update.Email
		m.usersByEmail[user.Email] = id
	}
	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.PasswordHash != nil {
		user.PasswordHash = *update.PasswordHash
	}
	user.UpdatedAt = update.UpdatedAt
	m.writes++
	m.usersByID[id] = user
	return user, nil
}

func (m *mockUserRepo) UpdateProfileImage(_ context.Context, id, path string, updatedAt time.Time) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	user.ProfileImagePath = &path
	user.UpdatedAt = updatedAt
	m.writes++
	m.usersByID[id] = user
	return user, nil
}

func (m *mockUserRepo) SetResetToken(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.ResetTokenHash = tokenHash
	user.ResetTokenExpiresAt = &expiresAt
	m.writes++
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) ConsumeResetToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, user := range m.usersByID {
		if user.ResetTokenHash == "" || user.ResetTokenHash != tokenHash {
			continue
		}
		if user.ResetTokenExpiresAt == nil || !user.ResetTokenExpiresAt.After(now) {
			continue
		}
		user.PasswordHash = passwordHash
		user.ResetTokenHash = ""
		user.ResetTokenExpiresAt = nil
		user.UpdatedAt = now
		m.writes++
		m.usersByID[id] = user
		return user, nil
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	delete(m.usersByID, id)
	delete(m.usersByEmail, user.Email)
	m.writes++
	return nil
}

type mockEmailSender struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (m *mockEmailSender) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *mockEmailSender) last() email.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return email.Message{}
	}
	return m.sent[len(m.sent)-1]
}

// tokenFromLink extrae el token del enlace incluido en el cuerpo del correo.
func tokenFromLink(body string) string {
	i := strings.Index(body, "token=")
	if i < 0 {
		return ""
	}
	rest := body[i+len("token="):]
	if j := strings.IndexAny(rest, "&\n "); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

type mockFileStorage struct {
	saved   map[string][]byte
	deleted []string
	err     error
}

func newMockFileStorage() *mockFileStorage {
	return &mockFileStorage{saved: make(map[string][]byte)}
}

func (m *mockFileStorage) Save(_ context.Context, key, _ string, body io.Reader) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	ref := "/uploads/" + key
	m.saved[ref] = data
	return ref, nil
}

func (m *mockFileStorage) Delete(_ context.Context, ref string) error {
	m.deleted = append(m.deleted, ref)
	delete(m.saved, ref)
	return nil
}
