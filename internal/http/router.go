package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck informa si las dependencias críticas responden.
type HealthCheck func(ctx context.Context) error

// RouterOptions agrupa piezas opcionales del router.
type RouterOptions struct {
	// UploadsDir y UploadsPrefix sirven las imágenes cuando el storage es local.
	UploadsDir    string
	UploadsPrefix string
	Health        HealthCheck
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(logger *zap.Logger, userH *UserHandler, jwtMw gin.HandlerFunc, opts RouterOptions) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging y recovery.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	r.GET("/healthz", healthHandler(opts.Health))
	if opts.UploadsDir != "" {
		prefix := opts.UploadsPrefix
		if prefix == "" {
			prefix = "/uploads"
		}
		r.Static(prefix, opts.UploadsDir)
	}

	api := r.Group("", jsonContentTypeMiddleware())
	api.POST("/login", userH.Login)
	api.POST("/forgot-password", userH.ForgotPassword)
	api.POST("/reset-password", userH.ResetPassword)

	users := api.Group("/users")
	users.POST("", userH.CreateUser)
	users.GET("", userH.ListUsers)

	protected := api.Group("", jwtMw)
	protected.POST("/logout", userH.Logout)
	protected.GET("/users/profile", userH.GetProfile)
	protected.PUT("/users/profile", userH.UpdateProfile)
	protected.PUT("/users/profile-image", userH.UpdateProfileImage)
	protected.DELETE("/users/:id", userH.DeleteUser)

	return r
}

func healthHandler(check HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
