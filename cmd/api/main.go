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

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"changas/internal/adapter/api"
	"changas/internal/adapter/api/handler"
	apimiddleware "changas/internal/adapter/api/middleware"
	"changas/internal/adapter/api/router"
	"changas/internal/adapter/repository"
	"changas/internal/adapter/repository/memory"
	domainrepo "changas/internal/domain/repository"
	"changas/internal/domain/service"
	"changas/internal/infrastructure/firebase"
	"changas/internal/infrastructure/metrics"
	"changas/internal/infrastructure/ratelimit"
	"changas/internal/infrastructure/websocket"
	"changas/internal/usecase"
	"changas/pkg/config"
	"changas/pkg/logger"
)

type stores struct {
	uow          domainrepo.UnitOfWork
	offers       domainrepo.OfferRepository
	jobs         domainrepo.JobRepository
	transactions domainrepo.TransactionRepository
	logs         domainrepo.StateLogRepository
	chats        domainrepo.ChatRepository

	verifier  usecase.TokenVerifier
	firestore *firestore.Client
	checks    map[string]handler.HealthCheck
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Init(cfg.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	if st.firestore != nil {
		defer st.firestore.Close()
	}

	wsManager := websocket.NewManager()

	var payments service.PaymentGatewayService
	if cfg.Payments.MercadoPagoAccessToken != "" {
		payments = service.NewMercadoPagoPaymentService(service.MercadoPagoConfig{
			BaseURL:         cfg.Payments.MercadoPagoBaseURL,
			AccessToken:     cfg.Payments.MercadoPagoAccessToken,
			WebhookSecret:   cfg.Payments.MercadoPagoSecret,
			NotificationURL: cfg.Payments.NotificationURL,
			SuccessURL:      cfg.Payments.SuccessURL,
			FailureURL:      cfg.Payments.FailureURL,
			PendingURL:      cfg.Payments.PendingURL,
			Timeout:         cfg.Payments.Timeout,
		})
	} else {
		logger.Warn("MERCADOPAGO_ACCESS_TOKEN not set, checkouts are disabled")
	}

	var notifier usecase.InfractionNotifier
	if cfg.Moderation.WebhookURL != "" {
		notifier = service.NewModerationWebhookService(cfg.Moderation.WebhookURL, cfg.Moderation.WebhookAPIKey, cfg.Moderation.WebhookTimeout)
	} else {
		logger.Warn("MODERATION_WEBHOOK_URL not set, infractions will not be reported")
	}

	escrowUseCase := usecase.NewEscrowUseCase(st.uow, st.transactions, st.logs, payments, wsManager)
	negotiationUseCase := usecase.NewNegotiationUseCase(st.uow, st.offers, st.jobs, st.chats, escrowUseCase, wsManager, usecase.NegotiationConfig{
		OfferTTL:   cfg.Offers.TTL,
		Currency:   cfg.Offers.Currency,
		SweepBatch: cfg.Offers.SweepBatch,
	})

	censor := service.NewMessageCensor(service.NewContactDetector(cfg.Moderation.Keywords()...), cfg.Moderation.Placeholder)
	moderationUseCase := usecase.NewModerationUseCase(censor, st.chats, notifier, wsManager, cfg.Moderation.WebhookTimeout)
	dispatcher := usecase.NewModerationDispatcher(moderationUseCase, usecase.DispatcherConfig{
		Shards:       cfg.Moderation.Shards,
		Buffer:       cfg.Moderation.ShardBuffer,
		MaxAttempts:  cfg.Moderation.MaxAttempts,
		RetryBackoff: cfg.Moderation.RetryBackoff,
	})

	handler.Setup(negotiationUseCase, escrowUseCase)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: corsOrigins(cfg.Origins()),
	}))
	e.Use(metrics.Middleware())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(st.verifier)
	limiter := ratelimit.NewRateLimiter(cfg.RateLimit.MutationsPerMinute, cfg.RateLimit.Burst)

	router.Setup(e, router.Handlers{
		Health:     handler.NewHealthHandler(cfg.StorageDriver, st.checks),
		Payment:    handler.NewPaymentHandler(escrowUseCase),
		Moderation: handler.NewModerationHandler(dispatcher),
		WebSocket:  handler.NewWebSocketHandler(wsManager, authMiddleware, cfg.Origins()),
	}, authMiddleware, limiter, cfg.InternalAPIKey)

	g, gctx := errgroup.WithContext(ctx)

	wsManager.Start(gctx)
	limiter.StartCleanupRoutine(gctx)

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})

	if st.firestore != nil && cfg.Moderation.ListenEnabled {
		listener := repository.NewFirestoreMessageListener(st.firestore, dispatcher, cfg.Moderation.ListenLookback, cfg.Moderation.ListenWindow)
		g.Go(func() error {
			return listener.Run(gctx)
		})
	}

	g.Go(func() error {
		return negotiationUseCase.RunOfferExpiryJob(gctx, cfg.Offers.SweepSchedule)
	})

	g.Go(func() error {
		logger.Info("Starting server on port %s (%s storage)...", cfg.ServerPort, cfg.StorageDriver)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error: %v", err)
	}

	moderationUseCase.Wait()
	logger.Info("Server stopped")
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StorageDriver == "memory" {
		return openMemoryStores(cfg)
	}

	var opts []option.ClientOption
	switch {
	case cfg.FirebaseCredentialsJSON != "":
		logger.Info("Using Firebase service account from environment variable")
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.FirebaseCredentialsJSON)))
	case cfg.FirebaseCredentialsPath != "":
		if _, err := os.Stat(cfg.FirebaseCredentialsPath); err != nil {
			return nil, err
		}
		logger.Info("Using Firebase service account from file: %s", cfg.FirebaseCredentialsPath)
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsPath))
	default:
		logger.Info("Using application default credentials")
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
	if err != nil {
		return nil, err
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		return nil, err
	}

	client, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
	if err != nil {
		return nil, err
	}

	verifier := firebase.NewFirebaseAuthClient(authClient)

	return &stores{
		uow:          repository.NewFirestoreUnitOfWork(client),
		offers:       repository.NewFirestoreOfferRepository(client),
		jobs:         repository.NewFirestoreJobRepository(client),
		transactions: repository.NewFirestoreTransactionRepository(client),
		logs:         repository.NewFirestoreStateLogRepository(client),
		chats:        repository.NewFirestoreChatRepository(client),
		verifier:     verifier,
		firestore:    client,
		checks: map[string]handler.HealthCheck{
			"firestore":     repository.FirestorePing(client),
			"firebase_auth": verifier.Ping,
		},
	}, nil
}

func openMemoryStores(cfg *config.Config) (*stores, error) {
	if cfg.IsProduction() {
		return nil, errors.New("memory storage is not allowed in production")
	}

	store := memory.New()
	logger.Warn("Using in-memory storage, data is lost on restart; dev:<uid> tokens are accepted")

	return &stores{
		uow:          store,
		offers:       store.Offers(),
		jobs:         store.Jobs(),
		transactions: store.Transactions(),
		logs:         store,
		chats:        store.Chats(),
		verifier:     firebase.DevTokenVerifier{},
		checks:       map[string]handler.HealthCheck{},
	}, nil
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
