package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/OseiasSilva021/mini-blog-com-jwt/internal/domain"
	"github.com/OseiasSilva021/mini-blog-com-jwt/internal/email"
	"github.com/OseiasSilva021/mini-blog-com-jwt/internal/repository"
	"github.com/OseiasSilva021/mini-blog-com-jwt/internal/storage"
)

// UserService coordina reglas de negocio para cuentas de usuario.
type UserService struct {
	logger       *zap.Logger
	users        repository.UserRepository
	sessions     *JWTService
	hasher       PasswordHasher
	resetTokens  *ResetTokenManager
	emailSender  email.Sender
	files        storage.FileStorage
	resetLimiter ResetRateLimiter
	resetURLBase string
	validate     *validator.Validate
	now          func() time.Time
}

// UserServiceOption ajusta dependencias opcionales de UserService.
type UserServiceOption func(*UserService)

func WithPasswordHasher(h PasswordHasher) UserServiceOption {
	return func(s *UserService) {
		if h != nil {
			s.hasher = h
		}
	}
}

func WithResetTokenManager(m *ResetTokenManager) UserServiceOption {
	return func(s *UserService) {
		if m != nil {
			s.resetTokens = m
		}
	}
}

func WithResetRateLimiter(l ResetRateLimiter) UserServiceOption {
	return func(s *UserService) {
		s.resetLimiter = l
	}
}

func WithResetURLBase(base string) UserServiceOption {
	return func(s *UserService) {
		if strings.TrimSpace(base) != "" {
			s.resetURLBase = strings.TrimSpace(base)
		}
	}
}

func WithClock(now func() time.Time) UserServiceOption {
	return func(s *UserService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewUserService(
	logger *zap.Logger,
	users repository.UserRepository,
	sessions *JWTService,
	emailSender email.Sender,
	files storage.FileStorage,
	opts ...UserServiceOption,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &UserService{
		logger:       logger,
		users:        users,
		sessions:     sessions,
		hasher:       NewBcryptHasher(0),
		emailSender:  emailSender,
		files:        files,
		resetURLBase: "http://localhost:8080/reset-password",
		validate:     newValidator(),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resetTokens == nil {
		s.resetTokens = NewResetTokenManager(defaultResetTTL, s.now)
	}
	return s
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// ProfilePatch lleva los campos opcionales de una actualización de perfil.
type ProfilePatch struct {
	Name     *string `json:"name" validate:"omitnil,min=3"`
	Email    *string `json:"email" validate:"omitnil,email"`
	Password *string `json:"password" validate:"omitnil,min=6"`
}

func (p ProfilePatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Password == nil
}

type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type resetPasswordInput struct {
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

type resetRequestInput struct {
	Email string `json:"email" validate:"required,email"`
}

func (s *UserService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	if err := s.check(input); err != nil {
		return domain.User{}, err
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return domain.User{}, ErrDuplicateEmail
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, storageError("lookup user by email", err)
	}

	passwordHash, err := s.hashPassword(input.Password)
	if err != nil {
		return domain.User{}, err
	}

	now := s.now()
	user := domain.User{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return domain.User{}, ErrDuplicateEmail
		}
		return domain.User{}, storageError("create user", err)
	}

	return user, nil
}

// Authenticate verifica credenciales y emite un token de sesión.
func (s *UserService) Authenticate(ctx context.Context, emailAddr, password string) (domain.User, SessionToken, error) {
	if s.users == nil || s.sessions == nil {
		return domain.User{}, SessionToken{}, errors.New("user service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.User{}, SessionToken{}, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, SessionToken{}, ErrUserNotFound
		}
		return domain.User{}, SessionToken{}, storageError("lookup user by email", err)
	}
	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil || !ok {
		return domain.User{}, SessionToken{}, ErrInvalidCredentials
	}

	session, err := s.sessions.Issue(user)
	if err != nil {
		return domain.User{}, SessionToken{}, err
	}
	return user, session, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, storageError("get user", err)
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	if s.users == nil {
		return nil, errors.New("user service not configured")
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, storageError("list users", err)
	}
	return users, nil
}

// UpdateProfile valida todos los campos presentes antes de escribir.
// userID debe venir de un token verificado.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.User{}, ErrUserNotFound
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if patch.Email != nil {
		emailAddr := normalizeEmail(*patch.Email)
		patch.Email = &emailAddr
	}
	if err := s.check(patch); err != nil {
		return domain.User{}, err
	}
	if patch.IsEmpty() {
		return s.GetProfile(ctx, userID)
	}

	current, err := s.GetProfile(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if patch.Email != nil && *patch.Email != current.Email {
		existing, err := s.users.GetByEmail(ctx, *patch.Email)
		switch {
		case err == nil && existing.ID != current.ID:
			return domain.User{}, ErrDuplicateEmail
		case err != nil && !errors.Is(err, pgx.ErrNoRows):
			return domain.User{}, storageError("lookup user by email", err)
		}
	}

	update := repository.ProfileUpdate{
		Name:      patch.Name,
		Email:     patch.Email,
		UpdatedAt: s.now(),
	}
	if patch.Password != nil {
		passwordHash, err := s.hashPassword(*patch.Password)
		if err != nil {
			return domain.User{}, err
		}
		update.PasswordHash = &passwordHash
	}

	user, err := s.users.UpdateProfile(ctx, current.ID, update)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return domain.User{}, ErrUserNotFound
		case errors.Is(err, repository.ErrEmailTaken):
			return domain.User{}, ErrDuplicateEmail
		default:
			return domain.User{}, storageError("update user", err)
		}
	}
	return user, nil
}

func (s *UserService) UpdateProfileImage(ctx context.Context, userID string, upload ImageUpload) (domain.User, error) {
	if s.users == nil || s.files == nil {
		return domain.User{}, errors.New("user service not configured")
	}
	if upload.Body == nil || upload.Size == 0 {
		return domain.User{}, &ValidationError{Field: "profileImage", Reason: "is required"}
	}
	contentType := strings.ToLower(strings.TrimSpace(upload.ContentType))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	ext, ok := imageExtensions[contentType]
	if !ok {
		return domain.User{}, &ValidationError{Field: "profileImage", Reason: "must be a jpeg, png, gif or webp image"}
	}

	current, err := s.GetProfile(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}

	key := fmt.Sprintf("profile-images/%s/%s%s", current.ID, uuid.NewString(), ext)
	ref, err := s.files.Save(ctx, key, contentType, upload.Body)
	if err != nil {
		return domain.User{}, storageError("save profile image", err)
	}

	user, err := s.users.UpdateProfileImage(ctx, current.ID, ref, s.now())
	if err != nil {
		s.removeFile(ctx, ref)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, storageError("update profile image", err)
	}
	if current.ProfileImagePath != nil && *current.ProfileImagePath != ref {
		s.removeFile(ctx, *current.ProfileImagePath)
	}
	return user, nil
}

// DeleteUser elimina la cuenta; solo el propio usuario puede hacerlo.
func (s *UserService) DeleteUser(ctx context.Context, callerID, targetID string) error {
	if s.users == nil {
		return errors.New("user service not configured")
	}
	if strings.TrimSpace(callerID) == "" || callerID != targetID {
		return ErrForbidden
	}
	user, err := s.GetProfile(ctx, targetID)
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, targetID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return storageError("delete user", err)
	}
	if user.ProfileImagePath != nil {
		s.removeFile(ctx, *user.ProfileImagePath)
	}
	return nil
}

// RequestPasswordReset guarda un token nuevo y lo envía por correo. Si el
// envío falla el token queda vigente.
func (s *UserService) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	if s.users == nil {
		return errors.New("user service not configured")
	}

	input := resetRequestInput{Email: normalizeEmail(emailAddr)}
	if err := s.check(input); err != nil {
		return err
	}
	if s.resetLimiter != nil && !s.resetLimiter.Allow(ctx, input.Email) {
		return ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return storageError("lookup user by email", err)
	}

	token, tokenHash, expiresAt, err := s.resetTokens.Issue()
	if err != nil {
		return err
	}
	if err := s.users.SetResetToken(ctx, user.ID, tokenHash, expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return storageError("store reset token", err)
	}

	if s.emailSender == nil {
		return ErrDeliveryFailure
	}
	msg, err := s.resetMessage(user, token, expiresAt)
	if err != nil {
		return err
	}
	if err := s.emailSender.Send(ctx, msg); err != nil {
		s.logger.Warn("send password reset failed", zap.Error(err), zap.String("user_id", user.ID))
		return fmt.Errorf("%w: %w", ErrDeliveryFailure, err)
	}
	return nil
}

// ResetPassword canjea el token y reemplaza la contraseña en una sola escritura.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if s.users == nil {
		return errors.New("user service not configured")
	}
	if err := s.check(resetPasswordInput{NewPassword: newPassword}); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidOrExpiredToken
	}

	passwordHash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	user, err := s.users.ConsumeResetToken(ctx, HashResetToken(token), passwordHash, s.now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidOrExpiredToken
		}
		return storageError("consume reset token", err)
	}
	s.logger.Info("password reset completed", zap.String("user_id", user.ID))
	return nil
}

func (s *UserService) resetMessage(user domain.User, token string, expiresAt time.Time) (email.Message, error) {
	link, err := url.Parse(s.resetURLBase)
	if err != nil {
		return email.Message{}, err
	}
	q := link.Query()
	q.Set("token", token)
	link.RawQuery = q.Encode()

	body := fmt.Sprintf(
		"Hi %s,\n\nUse the link below to choose a new password:\n%s\n\nThe link expires at %s UTC. If you did not ask for a reset, ignore this email.\n",
		user.Name,
		link.String(),
		expiresAt.UTC().Format(time.RFC3339),
	)
	return email.Message{
		To:      user.Email,
		Subject: "Password reset",
		Body:    body,
	}, nil
}

// hashPassword traduce cualquier rechazo del hasher sobre la entrada a un error de validación.
func (s *UserService) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", &ValidationError{Field: "password", Reason: "is too long"}
		}
		return "", err
	}
	return hash, nil
}

func (s *UserService) removeFile(ctx context.Context, ref string) {
	if err := s.files.Delete(ctx, ref); err != nil {
		s.logger.Warn("remove stored file failed", zap.Error(err), zap.String("path", ref))
	}
}

func (s *UserService) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{Field: fe.Field(), Reason: describeRule(fe)}
	}
	return &ValidationError{Reason: err.Error()}
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "is invalid"
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
