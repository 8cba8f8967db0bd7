package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort             string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL          string `env:"DATABASE_URL,required"`
	RunMigrations        bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	JWTSecret            string `env:"JWT_SECRET,required,notEmpty"`
	JWTSessionTTLMinutes int    `env:"JWT_SESSION_TTL_MINUTES" envDefault:"60"`
	ResetTokenTTLMinutes int    `env:"RESET_TOKEN_TTL_MINUTES" envDefault:"60"`
	ResetURLBase         string `env:"RESET_URL_BASE" envDefault:"http://localhost:8080/reset-password"`
	SMTPHost             string `env:"SMTP_HOST"`
	SMTPPort             int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser             string `env:"SMTP_USER"`
	SMTPPass             string `env:"SMTP_PASS"`
	SMTPFrom             string `env:"SMTP_FROM"`
	SMTPFromName         string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS           bool   `env:"SMTP_USE_TLS" envDefault:"false"`
	RedisAddr            string `env:"REDIS_ADDR"`
	RedisPassword        string `env:"REDIS_PASSWORD"`
	RedisDB              int    `env:"REDIS_DB" envDefault:"0"`
	StorageDriver        string `env:"STORAGE_DRIVER" envDefault:"local"`
	UploadDir            string `env:"UPLOAD_DIR" envDefault:"uploads"`
	MaxUploadMB          int64  `env:"MAX_UPLOAD_MB" envDefault:"5"`
	S3Bucket             string `env:"S3_BUCKET"`
	S3Region             string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint           string `env:"S3_ENDPOINT"`
	S3AccessKey          string `env:"S3_ACCESS_KEY"`
	S3SecretKey          string `env:"S3_SECRET_KEY"`
	S3PublicBaseURL      string `env:"S3_PUBLIC_BASE_URL"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SessionTTL devuelve la vigencia de los tokens de sesión.
func (c *Config) SessionTTL() time.Duration {
	if c.JWTSessionTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.JWTSessionTTLMinutes) * time.Minute
}

// ResetTokenTTL devuelve la vigencia de los tokens de recuperación.
func (c *Config) ResetTokenTTL() time.Duration {
	if c.ResetTokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.ResetTokenTTLMinutes) * time.Minute
}

func (c *Config) MaxUploadBytes() int64 {
	if c.MaxUploadMB <= 0 {
		return 5 << 20
	}
	return c.MaxUploadMB << 20
}
