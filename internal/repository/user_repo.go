package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OseiasSilva021/mini-blog-com-jwt/internal/domain"
)

// ErrEmailTaken se devuelve cuando el índice único de email rechaza la escritura.
var ErrEmailTaken = errors.New("email already taken")

const uniqueViolation = "23505"

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (domain.User, error)
	UpdateProfileImage(ctx context.Context, id, path string, updatedAt time.Time) (domain.User, error)
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (domain.User, error)
	Delete(ctx context.Context, id string) error
}

// ProfileUpdate lleva solo los campos que cambian; nil conserva el valor actual.
type ProfileUpdate struct {
	Name         *string
	Email        *string
	PasswordHash *string
	UpdatedAt    time.Time
}

// DBTX es la parte de pgxpool.Pool que usa el repositorio.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ DBTX = (*pgxpool.Pool)(nil)

// PgUserRepository implementa UserRepository sobre Postgres.
type PgUserRepository struct {
	pool DBTX
}

func NewPgUserRepository(pool DBTX) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, name, email, password_hash, profile_image_path,
		reset_token_hash, reset_token_expires_at, created_at, updated_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return mapWriteError(err)
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	if !validID(id) {
		return domain.User{}, pgx.ErrNoRows
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PgUserRepository) List(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PgUserRepository) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (domain.User, error) {
	if !validID(id) {
		return domain.User{}, pgx.ErrNoRows
	}
	query := `
		UPDATE users
		SET name = COALESCE($2::text, name),
		    email = COALESCE($3::text, email),
		    password_hash = COALESCE($4::text, password_hash),
		    updated_at = $5
		WHERE id = $1
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, query,
		id,
		update.Name,
		update.Email,
		update.PasswordHash,
		update.UpdatedAt,
	))
	return u, mapWriteError(err)
}

func (r *PgUserRepository) UpdateProfileImage(ctx context.Context, id, path string, updatedAt time.Time) (domain.User, error) {
	if !validID(id) {
		return domain.User{}, pgx.ErrNoRows
	}
	query := `
		UPDATE users
		SET profile_image_path = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, query, id, path, updatedAt))
}

func (r *PgUserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	if !validID(id) {
		return pgx.ErrNoRows
	}
	const query = `
		UPDATE users
		SET reset_token_hash = $2, reset_token_expires_at = $3
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, tokenHash, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ConsumeResetToken reemplaza el hash de la contraseña y limpia el token en una
// sola sentencia; un token vencido o ya usado no coincide con ninguna fila.
func (r *PgUserRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (domain.User, error) {
	query := `
		UPDATE users
		SET password_hash = $2,
		    reset_token_hash = NULL,
		    reset_token_expires_at = NULL,
		    updated_at = $3
		WHERE reset_token_hash = $1 AND reset_token_expires_at > $3
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, query, tokenHash, passwordHash, now))
}

func (r *PgUserRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return pgx.ErrNoRows
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u         domain.User
		resetHash *string
	)
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.ProfileImagePath,
		&resetHash,
		&u.ResetTokenExpiresAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	if resetHash != nil {
		u.ResetTokenHash = *resetHash
	}
	return u, nil
}

// validID evita que un id mal formado llegue a Postgres como error de sintaxis.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

// IsUniqueViolation reporta si err proviene de una restricción única de Postgres.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
