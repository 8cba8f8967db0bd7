package domain

import "time"

type User struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	ProfileImagePath    *string    `json:"profile_image_path"`
	ResetTokenHash      string     `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// HasPendingReset indica si hay una solicitud de recuperación vigente en el registro.
func (u User) HasPendingReset() bool {
	return u.ResetTokenHash != "" && u.ResetTokenExpiresAt != nil
}
