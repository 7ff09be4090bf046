package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"slotbook/config"
	"slotbook/cron"
	"slotbook/database"
	bookingRepo "slotbook/database/repository/booking"
	"slotbook/handlers"
	"slotbook/middleware"
	"slotbook/routes"
	"slotbook/services/booking"
	"slotbook/services/schedule"
	"slotbook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	defer func() { _ = logger.Sync() }()

	cfg := config.AppConfig
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		logger.Sugar().Fatalf("main: %v", err)
	}
	base, err := schedule.Build(cfg.Days, loc)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to build schedules: %v", err)
	}

	health := &utils.HealthMonitor{Interval: time.Minute}

	// repository.
	var repo bookingRepo.BookingRepository
	switch cfg.StoreBackend {
	case "firestore":
		if err := utils.FirebaseInit(rootCtx); err != nil {
			logger.Sugar().Fatalf("main: %v", err)
		}
		defer utils.FirestoreClient.Close()
		repo = bookingRepo.NewFirestoreBookingRepo(utils.FirestoreClient, cfg.BookingsCollection, logger)
	case "mongo":
		if err := database.InitDB(rootCtx); err != nil {
			logger.Sugar().Fatalf("main: %v", err)
		}
		defer func() { _ = database.MongoClient.Disconnect(context.Background()) }()
		coll := database.BookingsCollection()
		if err := bookingRepo.EnsureIndexes(rootCtx, coll, cfg.ExclusiveSlots); err != nil {
			logger.Sugar().Fatalf("main: failed to create booking indexes: %v", err)
		}
		health.Mongo = database.MongoClient
		repo = bookingRepo.NewMongoBookingRepo(coll, logger)
	case "postgres":
		if err := database.InitPostgres(rootCtx); err != nil {
			logger.Sugar().Fatalf("main: %v", err)
		}
		defer database.PostgresDB.Close()
		if err := bookingRepo.EnsureSchema(rootCtx, database.PostgresDB, cfg.ExclusiveSlots); err != nil {
			logger.Sugar().Fatalf("main: failed to prepare booking schema: %v", err)
		}
		health.Postgres = database.PostgresDB
		repo = bookingRepo.NewPostgresBookingRepo(database.PostgresDB, cfg.PostgresDSN, logger)
	default:
		logger.Warn("Using in-memory booking store; bookings are lost on restart")
		repo = bookingRepo.NewMemoryBookingRepo()
	}

	// fetch cache.
	var cache booking.FetchCache
	switch cfg.FetchCacheBackend {
	case "redis":
		client, err := utils.GetCacheClient()
		if err != nil {
			logger.Sugar().Fatalf("main: %v", err)
		}
		defer client.Close()
		health.Redis = client
		cache = booking.NewRedisFetchCache(client, cfg.FetchCacheTTL)
	case "none":
		cache = booking.NoFetchCache()
	default:
		cache = booking.NewMemoryFetchCache(cfg.FetchCacheTTL, utils.SystemClock())
	}

	store := booking.NewStore(repo, base,
		booking.WithLogger(logger.Named("store")),
		booking.WithFetchCache(cache),
		booking.WithFetchTimeout(cfg.FetchTimeout),
		booking.WithExclusiveSlots(cfg.ExclusiveSlots),
	)
	health.Store = func() string { return string(store.State().Status) }

	feedWorker := &cron.FeedWorker{Store: store, Logger: logger.Named("feed")}
	go feedWorker.Run(rootCtx)
	go health.Run(rootCtx)

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))

	bookingHandler := handlers.NewBookingHandler(store)
	handlerBundle := handlers.NewHandlerBundle(bookingHandler, handlers.HealthHandler(health), cfg.AdminJWTSecret)
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET is empty; admin endpoints are disabled")
	}

	routes.RegisterRoutes(router, handlerBundle, routes.Options{
		CORSOrigins:       cfg.CORSOrigins,
		MaxRequestsPerMin: cfg.MaxRequestsPerMin,
	})

	// Start the HTTP server.
	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Info("Starting server",
		zap.String("addr", srv.Addr),
		zap.String("backend", cfg.StoreBackend),
		zap.Int("days", len(base)),
		zap.Bool("exclusiveSlots", cfg.ExclusiveSlots))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	// Close the store first so open event streams end before Shutdown waits on them.
	store.Close()
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
