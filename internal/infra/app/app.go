package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/avelychko/contacthub/internal/core/port"
	"github.com/avelychko/contacthub/internal/infra/config"
	"github.com/avelychko/contacthub/internal/infra/database"
	kafkainfra "github.com/avelychko/contacthub/internal/infra/kafka"
	"github.com/avelychko/contacthub/internal/infra/logger"
	"github.com/avelychko/contacthub/internal/infra/mail"
	redisinfra "github.com/avelychko/contacthub/internal/infra/redis"
	"github.com/avelychko/contacthub/internal/infra/security"
	"github.com/avelychko/contacthub/internal/infra/storage"
	"github.com/avelychko/contacthub/internal/migrations"
	postgresrepo "github.com/avelychko/contacthub/internal/repository/postgres"
	redisrepo "github.com/avelychko/contacthub/internal/repository/redis"
	"github.com/avelychko/contacthub/internal/transport/http/middleware"
	"github.com/avelychko/contacthub/internal/transport/http/routes"
	"github.com/avelychko/contacthub/internal/usecase"
)

// Application owns the wired service graph and the HTTP server lifecycle.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
}

// New loads every backing dependency, runs the migrations, and wires the
// services together. Kafka and SMTP fall back to logging substitutes when
// not configured so a bare development checkout still boots.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if err := migrations.Up(ctx, cfg.Postgres.DSN()); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	tokens, err := security.NewTokenService(security.TokenServiceConfig{
		Secret:          cfg.JWT.Secret,
		Issuer:          cfg.App.Name,
		AccessTTL:       cfg.JWT.AccessTokenTTL,
		RefreshTTL:      cfg.JWT.RefreshTokenTTL,
		VerificationTTL: cfg.JWT.VerificationTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("init token service: %w", err)
	}

	validator := security.NewPasswordValidator(
		security.MinLengthRule(cfg.Password.MinLength),
		security.RequirePasswordStrengthRule(cfg.Password.MinScore),
	)

	repos := postgresrepo.NewRepositories(pool)

	contactCache := redisrepo.NewContactCache(redisClient.Client(), cfg.Redis.ContactCacheTTL)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "contacthub:rate-limit",
		TTL:       rateLimitWindow * 2,
	})

	var producer *kafkainfra.Producer
	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	var notifier port.NotificationSender
	if cfg.Mail.Host != "" {
		notifier = mail.NewSMTPSender(cfg.Mail, log)
	} else {
		log.Info("mail host not configured, logging account emails instead")
		notifier = mail.NewLogSender(log)
	}

	var avatarStorage port.AvatarStorage
	if cfg.Avatar.Bucket != "" {
		avatarStorage, err = storage.NewS3AvatarStorage(ctx, cfg.Avatar, log)
		if err != nil {
			return nil, fmt.Errorf("init avatar storage: %w", err)
		}
	} else {
		log.Warn("avatar bucket not configured, uploads will be refused")
	}

	authService := usecase.NewAuthService(cfg, repos.Users, hasher, tokens, rateLimitStore)
	registrationService := usecase.NewRegistrationService(cfg, repos.Users, hasher, validator, tokens, notifier, eventPublisher)
	passwordResetService := usecase.NewPasswordResetService(cfg, repos.Users, hasher, validator, tokens, notifier, eventPublisher, rateLimitStore)
	contactService := usecase.NewContactService(repos.Contacts, contactCache)
	avatarService := usecase.NewAvatarService(repos.Users, avatarStorage, cfg.Avatar)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Metrics:  metrics,
		Database: pool,
		Cache:    redisClient,
		Services: routes.ServiceSet{
			Auth:          authService,
			Registration:  registrationService,
			PasswordReset: passwordResetService,
			Contacts:      contactService,
			Avatars:       avatarService,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully and releases every backing connection.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting contact API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
