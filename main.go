package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moshimoshi/config"
	"moshimoshi/database"
	reservationRepo "moshimoshi/database/repository/reservation"
	"moshimoshi/handlers"
	"moshimoshi/middleware"
	"moshimoshi/routes"
	"moshimoshi/services/archive"
	"moshimoshi/services/elevenlabs"
	"moshimoshi/services/realtime"
	"moshimoshi/services/reconcile"
	"moshimoshi/services/reservation"
	"moshimoshi/services/storage"
	"moshimoshi/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	mongoClient, err := database.NewMongoClient(config.AppConfig.DatabaseURL)
	if err != nil {
		logger.Sugar().Fatalf("main: %v", err)
	}
	realtimeClient, err := database.NewRedisClient(
		config.AppConfig.RedisAddr, config.AppConfig.RedisPassword, config.AppConfig.RedisRealtimeDB)
	if err != nil {
		logger.Sugar().Fatalf("main: %v", err)
	}
	queueRedisClient, err := database.NewRedisClient(
		config.AppConfig.RedisAddr, config.AppConfig.RedisPassword, config.AppConfig.RedisQueueDB)
	if err != nil {
		logger.Sugar().Fatalf("main: %v", err)
	}

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(cors.Default())
	router.Use(middleware.RateLimitMiddleware())

	// repositories.
	repo := reservationRepo.NewMongoReservationRepo(mongoClient, config.AppConfig.MongoDBName)
	if err := repo.EnsureIndexes(context.Background()); err != nil {
		logger.Sugar().Fatalf("main: %v", err)
	}

	// external collaborators.
	vendorClient := elevenlabs.NewClient(config.AppConfig.ElevenLabsAPIKey, config.AppConfig.ElevenLabsBaseURL)
	publisher := realtime.NewRedisPublisher(realtimeClient)

	storageSvc, err := storage.NewCloudinaryStorage(
		config.AppConfig.CloudinaryCloudName,
		config.AppConfig.CloudinaryAPIKey,
		config.AppConfig.CloudinaryAPISecret,
	)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize cloudinary storage service: %v", err)
	}

	// archive queue: enqueuer on the API side, worker in background.
	queueOpt := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
	queueClient := asynq.NewClient(queueOpt)
	defer queueClient.Close()
	enqueuer := archive.NewEnqueuer(queueClient)

	archiver := &archive.Archiver{
		Vendor:    vendorClient,
		Storage:   storageSvc,
		Repo:      repo,
		Publisher: publisher,
		Logger:    logger,
	}
	archive.StartWorker(queueOpt, archiver, logger)

	// services.
	reconcileSvc := reconcile.NewService(repo, publisher, enqueuer, logger)
	reservationSvc := &reservation.DefaultReservationService{
		Repo:      repo,
		Publisher: publisher,
		Reconcile: reconcileSvc,
		Vendor:    vendorClient,
		Logger:    logger,
	}

	// Assemble the handler bundle.
	watcher := realtime.NewWatcher(realtime.NewRedisSubscriber(realtimeClient))
	handlerBundle := &routes.HandlerBundle{
		Reservation: handlers.NewReservationHandler(reservationSvc, logger),
		Watch:       handlers.NewWatchHandler(reservationSvc, watcher, logger),
		Webhook:     handlers.NewWebhookHandler(reconcileSvc, logger),
		Mock:        handlers.NewMockWebhookHandler(reconcileSvc),
	}

	// Register routes with the assembled handler bundle.
	routes.RegisterRoutes(router, handlerBundle)

	utils.StartHealthMonitor(realtimeClient, queueRedisClient, mongoClient)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}
	if err := mongoClient.Disconnect(ctx); err != nil {
		logger.Sugar().Errorf("main: mongo disconnect: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
