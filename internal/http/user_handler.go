package http

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/OseiasSilva021/mini-blog-com-jwt/internal/service"
)

const (
	profileImageField     = "profileImage"
	defaultMaxUploadBytes = 5 << 20
)

// UserHandler mantiene dependencias para endpoints de usuarios.
type UserHandler struct {
	logger         *zap.Logger
	userServ       *service.UserService
	jwtServ        *service.JWTService
	maxUploadBytes int64
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, userServ *service.UserService, jwtServ *service.JWTService, maxUploadBytes int64) *UserHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &UserHandler{
		logger:         logger,
		userServ:       userServ,
		jwtServ:        jwtServ,
		maxUploadBytes: maxUploadBytes,
	}
}

// CreateUser maneja POST /users.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create user request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.userServ.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(c, h.logger, "create user", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login maneja POST /login.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, session, err := h.userServ.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		// Email desconocido y contraseña incorrecta responden igual.
		if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		writeServiceError(c, h.logger, "login", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      session.Token,
		"expires_in": session.ExpiresIn,
		"expires_at": session.ExpiresAt,
		"user":       user,
	})
}

// Logout maneja POST /logout.
func (h *UserHandler) Logout(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	if err := h.jwtServ.Revoke(c.Request.Context(), claims); err != nil {
		h.logger.Error("revoke session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not logout"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListUsers maneja GET /users.
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.userServ.ListUsers(c.Request.Context())
	if err != nil {
		writeServiceError(c, h.logger, "list users", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetProfile maneja GET /users/profile.
func (h *UserHandler) GetProfile(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	user, err := h.userServ.GetProfile(c.Request.Context(), claims.UserID)
	if err != nil {
		writeServiceError(c, h.logger, "get profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfile maneja PUT /users/profile. El id sale siempre del token.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	var patch service.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.logger.Warn("invalid update profile request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.userServ.UpdateProfile(c.Request.Context(), claims.UserID, patch)
	if err != nil {
		writeServiceError(c, h.logger, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfileImage maneja PUT /users/profile-image (multipart, campo profileImage).
func (h *UserHandler) UpdateProfileImage(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	fh, err := c.FormFile(profileImageField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "profileImage file is required"})
		return
	}

	file, err := fh.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer file.Close()

	// El tipo se detecta por contenido; el declarado por el cliente no es confiable.
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		h.logger.Error("read uploaded file failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	head = head[:n]

	user, err := h.userServ.UpdateProfileImage(c.Request.Context(), claims.UserID, service.ImageUpload{
		Filename:    fh.Filename,
		ContentType: http.DetectContentType(head),
		Size:        fh.Size,
		Body:        io.MultiReader(bytes.NewReader(head), file),
	})
	if err != nil {
		writeServiceError(c, h.logger, "update profile image", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// DeleteUser maneja DELETE /users/:id. Solo el dueño de la cuenta puede borrarla.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	if err := h.userServ.DeleteUser(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		writeServiceError(c, h.logger, "delete user", err)
		return
	}
	if err := h.jwtServ.Revoke(c.Request.Context(), claims); err != nil {
		h.logger.Warn("revoke session after delete failed", zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}

// ForgotPassword maneja POST /forgot-password.
func (h *UserHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid forgot password request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := h.userServ.RequestPasswordReset(c.Request.Context(), req.Email)
	// Un email desconocido recibe la misma respuesta para no revelar cuentas.
	if err != nil && !errors.Is(err, service.ErrUserNotFound) {
		writeServiceError(c, h.logger, "forgot password", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "if the account exists, a reset link was sent"})
}

// ResetPassword maneja POST /reset-password.
func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid reset password request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.userServ.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		writeServiceError(c, h.logger, "reset password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password_updated"})
}
