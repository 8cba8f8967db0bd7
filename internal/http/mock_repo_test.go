package http

import (
	"context"
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
	if _, ok := m.usersByEmail[user.Email]; ok {
		return repository.ErrEmailTaken
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.usersByID[id], nil
}

func (m *mockUserRepo) List(_ context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	return nil
}

type mockEmailSender struct {
	last email.Message
	err  error
}

func (m *mockEmailSender) Send(_ context.Context, msg email.Message) error {
	m.last = msg
	return m.err
}

func (m *mockEmailSender) token() string {
	i := strings.Index(m.last.Body, "token=")
	if i < 0 {
		return ""
	}
	rest := m.last.Body[i+len("token="):]
	if j := strings.IndexAny(rest, "&\n "); j >= 0 {
		rest = rest[:j]
	}
	return rest
}
