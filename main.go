package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"craftMaxxingAPI/handlers"
	"craftMaxxingAPI/internal/ai"
	"craftMaxxingAPI/internal/config"
	"craftMaxxingAPI/internal/identity"
	"craftMaxxingAPI/internal/notification"
	"craftMaxxingAPI/internal/repository"
	"craftMaxxingAPI/internal/storage"
	"craftMaxxingAPI/internal/workers"
	"craftMaxxingAPI/middleware"
	"craftMaxxingAPI/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg.LogLevel)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := connectDB(rootCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer func() {
		log.Info().Msg("Closing database connection pool...")
		dbPool.Close()
	}()

	if err := repository.Migrate(rootCtx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	txManager := repository.NewTxManager(dbPool)
	profileRepo := repository.NewProfileRepository(dbPool)
	challengeRepo := repository.NewChallengeRepository(dbPool)
	friendRepo := repository.NewFriendRepository(dbPool)
	notificationRepo := repository.NewNotificationRepository(dbPool)

	dispatcher := services.NewNotificationDispatcher(notificationRepo, cfg.DispatchWorkers)
	hub := notification.NewHub()
	dispatcher.SetLiveSender(hub)

	fcmService, err := notification.NewFCMService(rootCtx, cfg.FCMCredentialsJSON, cfg.FCMCredentialsFile)
	if err != nil {
		log.Warn().Err(err).Msg("Could not initialize FCM, push notifications disabled")
	} else {
		dispatcher.SetPushProvider(fcmService)
		log.Info().Msg("FCM Push Provider initialized successfully")
	}

	challengeService := services.NewChallengeService(txManager, challengeRepo, profileRepo, dispatcher)
	inviteService := services.NewInviteLinkService(txManager, challengeRepo, profileRepo, dispatcher, cfg.InviteLinkTTL, cfg.PublicAppURL)
	profileService := services.NewProfileService(profileRepo, friendRepo, challengeRepo)
	friendService := services.NewFriendService(friendRepo, profileRepo, challengeRepo, dispatcher)
	notificationService := services.NewNotificationService(notificationRepo)

	if cfg.AvatarBucket != "" {
		avatars, err := storage.NewAvatarStore(rootCtx, storage.Options{
			Bucket:    cfg.AvatarBucket,
			Region:    cfg.AWSRegion,
			Endpoint:  cfg.AWSEndpoint,
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Could not initialize avatar storage, uploads disabled")
		} else {
			profileService.SetAvatarUploader(avatars)
		}
	}

	generator := ai.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	planService := services.NewLearningPlanService(generator)
	suggestionService := services.NewSkillSuggestionService(generator, challengeRepo)

	var verifier identity.Verifier
	switch cfg.IdentityProvider {
	case config.IdentityJWT:
		verifier = identity.NewJWTVerifier(cfg.JWTSecret)
	default:
		verifier = identity.NewClerkVerifier(cfg.ClerkSecretKey)
	}
	log.Info().Str("provider", cfg.IdentityProvider).Msg("Identity verifier initialized")

	finalizer := workers.NewChallengeFinalizer(challengeService, cfg.FinalizerInterval)
	finalizer.Start()

	limiter := middleware.NewRateLimiter(rate.Limit(20), 40)
	go limiter.CleanupVisitors(rootCtx)

	middleware.InitPrometheus()

	r := handlers.NewRouter(handlers.RouterDeps{
		Verifier:    verifier,
		RateLimiter: limiter,
		Health:      dbPool.Ping,
		MetricsUser: cfg.MetricsUser,
		MetricsPass: cfg.MetricsPass,

		Challenges:    handlers.NewChallengeHandler(challengeService),
		Invites:       handlers.NewInviteHandler(inviteService),
		Profiles:      handlers.NewProfileHandler(profileService),
		Friends:       handlers.NewFriendHandler(friendService),
		Notifications: handlers.NewNotificationHandler(notificationService, hub),
		AI:            handlers.NewAIHandler(planService, suggestionService),
	})

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
	)

	// WriteTimeout leaves room for learning plan generation
	server := http.Server{
		Addr:         cfg.Addr(),
		Handler:      corsHandler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Error starting server")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	finalizer.Stop()
	dispatcher.Stop()

	log.Info().Msg("Server shutdown complete")
}

func connectDB(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().Msg("Successfully connected to Postgres")
	return pool, nil
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
