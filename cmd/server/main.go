package main

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/config"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/db"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/goroutine"
	httpHandlers "github.com/Tribhuwansingh2023/campus-X-sub000/internal/http/handlers"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/http/middleware"
	httpRouter "github.com/Tribhuwansingh2023/campus-X-sub000/internal/http/router"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/logger"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/metrics"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/models"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/notifier"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/repository"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/repository/memory"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/service"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/ws"
	"github.com/Tribhuwansingh2023/campus-X-sub000/migrations"
)

// stores набор хранилищ выбранного драйвера.
type stores struct {
	ledger   service.VerificationLedger
	identity service.IdentityStore
	escrow   service.EscrowStore
	db       *sqlx.DB
}

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logOpts := logger.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 30,
	}
	if cfg.Env == "development" {
		logOpts.Level = "debug"
		logOpts.Text = true
	}
	logger.Init(logOpts)

	metrics.Register()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("main: %v", err)
	}
	if st.db != nil {
		defer safeClose(st.db)
	}

	// Инициализируем вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	hasher, err := service.NewCodeHasher(cfg.Verification.HashAlgo, cfg.Verification.Pepper)
	if err != nil {
		log.Fatalf("main: %v", err)
	}

	// Вебсокеты.
	hub := ws.NewHub()
	goroutine.SafeGoWithContext(ctx, "ws-hub", hub.Run)

	// Сервисы.
	verificationService := service.NewVerificationService(
		st.ledger,
		st.identity,
		notifier.New(cfg.SMTP, cfg.SMS),
		service.NewRandomCodeGenerator(cfg.Verification.CodeLength),
		hasher,
		service.VerificationPolicy{
			CodeTTL:     cfg.Verification.CodeTTL,
			MaxAttempts: cfg.Verification.MaxAttempts,
			MaxResends:  cfg.Verification.MaxResends,
		},
	)
	escrowService := service.NewEscrowService(st.escrow, service.NewEscrowStateMachine(cfg.Escrow.DisputeWindow), hub)

	verificationLimiter, redisClient, err := newRateLimiter(ctx, cfg)
	if err != nil {
		log.Fatalf("main: %v", err)
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.L().WithError(err).Warn("Ошибка закрытия redis")
			}
		}()
	}

	// HTTP хэндлеры.
	var devHandler *httpHandlers.DevHandler
	if cfg.Env != "production" {
		devHandler = httpHandlers.NewDevHandler(tokenManager)
	}

	// Роутер.
	engine := httpRouter.SetupRouter(
		cfg,
		httpHandlers.NewHealthHandler(st.db),
		httpHandlers.NewVerificationHandler(verificationService),
		httpHandlers.NewEscrowHandler(escrowService),
		httpHandlers.NewPaymentWebhookHandler(escrowService),
		httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
		devHandler,
		tokenManager,
		verificationLimiter,
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGo("http-shutdown", func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.L().WithError(err).Error("Ошибка остановки http сервера")
		}
	})

	logger.L().WithFields(logrus.Fields{
		"port":    cfg.HTTPPort,
		"env":     cfg.Env,
		"storage": cfg.StorageDriver,
	}).Info("HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// openStores подключает хранилище согласно STORAGE_DRIVER.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		// В памяти нет пользователей, поэтому заводим демонстрационный субъект.
		identity := memory.NewIdentityStore(models.Subject{
			ID:          "account:demo",
			Kind:        models.SubjectKindAccount,
			Channel:     models.ChannelEmail,
			Destination: "demo@campus.local",
		})
		logger.L().Warn("Используется хранилище в памяти, данные не переживут перезапуск")
		return &stores{
			ledger:   memory.NewVerificationLedger(),
			identity: identity,
			escrow:   memory.NewEscrowStore(),
		}, nil
	}

	conn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	var source fs.FS = migrations.FS
	if info, statErr := os.Stat(cfg.MigrationsPath); statErr == nil && info.IsDir() {
		source = os.DirFS(cfg.MigrationsPath)
	}
	if err := db.RunMigrations(ctx, conn, source); err != nil {
		safeClose(conn)
		return nil, err
	}

	return &stores{
		ledger:   repository.NewVerificationRepository(conn),
		identity: repository.NewIdentityRepository(conn),
		escrow:   repository.NewEscrowRepository(conn),
		db:       conn,
	}, nil
}

// newRateLimiter собирает лимитер верификации. С RATE_LIMIT_REDIS_URL счётчики общие для инстансов.
func newRateLimiter(ctx context.Context, cfg *config.Config) (*limiter.Limiter, *redis.Client, error) {
	if cfg.RateLimitRedisURL == "" {
		l, err := middleware.NewLimiter(cfg.RateLimitLimit, cfg.RateLimitPeriod, nil)
		return l, nil, err
	}

	opts, err := redis.ParseURL(cfg.RateLimitRedisURL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	l, err := middleware.NewLimiter(cfg.RateLimitLimit, cfg.RateLimitPeriod, client)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return l, client, nil
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
