package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"procurement-service/config"
	"procurement-service/internal/api"
	"procurement-service/internal/broker"
	"procurement-service/internal/redisclient"
	"procurement-service/internal/service"
	"procurement-service/internal/store"
	"procurement-service/internal/util"
	"procurement-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting procurement service")

	tp, err := util.InitTracer("procurement-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	poProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicPO)
	defer poProducer.Close()
	stockProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicStock)
	defer stockProducer.Close()
	log.Println("Kafka producers initialized")

	eventPublisher := broker.NewEventPublisher(poProducer, stockProducer)

	catalog := service.NewCatalog(db)
	vendorDirectory := service.NewVendorDirectory(db)
	stockLedger := service.NewStockLedger(db, redisClient, eventPublisher)
	poService := service.NewPOService(
		db,
		catalog,
		vendorDirectory,
		stockLedger,
		redisClient,
		eventPublisher,
		time.Duration(cfg.Business.POLockTTLSeconds)*time.Second,
		time.Duration(cfg.Business.POLockWaitMillis)*time.Millisecond,
		cfg.Business.ReceiveNoteMaxLen,
	)

	ctx := context.Background()
	if err := stockLedger.SyncCache(ctx); err != nil {
		log.Printf("Failed to sync stock cache: %v", err)
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	stockConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicStock, cfg.Kafka.ConsumerGroup)
	reorderWorker := worker.NewReorderWorker(stockConsumer)
	go func() {
		if err := reorderWorker.Start(workerCtx); err != nil {
			log.Printf("Reorder worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(poService, stockLedger)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	reorderWorker.Stop()

	log.Println("Server exited")
}
