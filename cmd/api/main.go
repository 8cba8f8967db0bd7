package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/OseiasSilva021/mini-blog-com-jwt/internal/config"
	"github.com/OseiasSilva021/mini-blog-com-jwt/internal/db"
	"github.com/OseiasSilva021/mini-blog-com-jwt/internal/email"
	apihttp "github.com/OseiasSilva021/mini-blog-com-jwt/internal/http"
	"github.com/OseiasSilva021/mini-blog-com-jwt/internal/repository"
	"github.com/OseiasSilva021/mini-blog-com-jwt/internal/service"
	"github.com/OseiasSilva021/mini-blog-com-jwt/internal/storage"
)

const (
	resetRateWindow = 10 * time.Minute
	resetRateMax    = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	var (
		resetLimiter = service.NewMemoryRateLimiter(resetRateWindow, resetRateMax)
		revocations  = service.NewMemoryRevocationStore()
		redisClient  *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory limiter and revocations", zap.Error(err))
		} else {
			resetLimiter = service.NewRedisRateLimiter(redisClient, resetRateWindow, resetRateMax, logger)
			revocations = service.NewRedisRevocationStore(redisClient)
		}
		cancel()
		defer redisClient.Close()
	}

	files, routerOpts, err := newFileStorage(ctx, cfg)
	if err != nil {
		logger.Fatal("file storage", zap.Error(err))
	}
	routerOpts.Health = func(ctx context.Context) error {
		return db.Ping(ctx, pool)
	}

	jwtSvc := service.NewJWTService(cfg.JWTSecret, cfg.SessionTTL(), revocations)
	userRepo := repository.NewPgUserRepository(pool)
	userSvc := service.NewUserService(logger, userRepo, jwtSvc, emailSender, files,
		service.WithResetTokenManager(service.NewResetTokenManager(cfg.ResetTokenTTL(), nil)),
		service.WithResetURLBase(cfg.ResetURLBase),
		service.WithResetRateLimiter(resetLimiter),
	)
	userHandler := apihttp.NewUserHandler(logger, userSvc, jwtSvc, cfg.MaxUploadBytes())
	router := apihttp.NewRouter(logger, userHandler, apihttp.JWTAuthMiddleware(jwtSvc), routerOpts)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}

// newFileStorage elige el backend de imágenes según STORAGE_DRIVER.
func newFileStorage(ctx context.Context, cfg *config.Config) (storage.FileStorage, apihttp.RouterOptions, error) {
	switch cfg.StorageDriver {
	case "s3":
		s3Store, err := storage.NewS3Storage(ctx, storage.S3Options{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			return nil, apihttp.RouterOptions{}, err
		}
		return s3Store, apihttp.RouterOptions{}, nil
	case "", "local":
		local, err := storage.NewLocalStorage(cfg.UploadDir, "/uploads")
		if err != nil {
			return nil, apihttp.RouterOptions{}, err
		}
		return local, apihttp.RouterOptions{UploadsDir: local.Dir(), UploadsPrefix: local.URLPrefix()}, nil
	default:
		return nil, apihttp.RouterOptions{}, errors.New("unknown storage driver: " + cfg.StorageDriver)
	}
}
