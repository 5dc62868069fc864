package main

import (
	"log"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mealyhq/payments-service/internal/pkg/config"
	"github.com/mealyhq/payments-service/internal/pkg/database"
	"github.com/mealyhq/payments-service/internal/pkg/health"
	"github.com/mealyhq/payments-service/internal/pkg/logger"
	"github.com/mealyhq/payments-service/internal/pkg/middleware"
	natspkg "github.com/mealyhq/payments-service/internal/pkg/nats"
	"github.com/mealyhq/payments-service/internal/pkg/server"
	"github.com/mealyhq/payments-service/services/payments/gateway"
	"github.com/mealyhq/payments-service/services/payments/handler"
	httpHandler "github.com/mealyhq/payments-service/services/payments/handler/http"
	"github.com/mealyhq/payments-service/services/payments/mpesa"
	"github.com/mealyhq/payments-service/services/payments/repository"
	"github.com/mealyhq/payments-service/services/payments/usecase"
)

func main() {
	appName := "payments-service"
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/payments.env"
	}
	configs := config.InitConfig(configPath)

	zapLogger, err := logger.InitZapLoggerFromConfig(configs)
	if err != nil {
		log.Fatalf("Failed to create Zap logger: %v", err)
	}
	defer zapLogger.Close()

	zapLogger.Info("Starting application",
		logger.String("app", appName),
		logger.String("version", configs.App.Version),
		logger.String("environment", configs.App.Environment),
		logger.String("gateway_environment", configs.Mpesa.Environment),
	)

	// Initialize PostgreSQL database connection
	postgresClient, err := database.NewPostgresClient(configs.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to PostgreSQL", logger.Err(err))
	}
	defer postgresClient.Close()

	// Initialize Redis client
	redisClient, err := database.NewRedisClient(configs.Redis)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Redis", logger.Err(err))
	}
	defer redisClient.Close()

	// Initialize NATS
	natsClient, err := natspkg.NewClient(configs.NATS.URL)
	if err != nil {
		zapLogger.Fatal("Failed to connect to NATS", logger.Err(err))
	}
	defer natsClient.Close()

	// Initialize repository
	paymentRepo := repository.NewPaymentRepo(postgresClient.GetDB())

	// Initialize gateways
	paymentGW := gateway.NewPaymentGW(natsClient)
	mpesaClient := mpesa.NewClient(configs.Mpesa)

	// Initialize usecase
	paymentUC := usecase.NewPaymentUC(configs, paymentRepo, paymentGW, mpesaClient, redisClient)

	// Initialize handlers
	paymentHandler := httpHandler.NewPaymentHandler(paymentUC, configs)
	Handler := handler.NewHandler(paymentHandler, configs)

	// Initialize Echo router
	e := echo.New()

	// Add middlewares
	e.Use(middleware.RequestIDMiddleware())
	e.Use(logger.ZapEchoMiddleware(zapLogger))

	// Register health endpoints
	health.RegisterHealthEndpoints(e, appName)

	// Register service routes
	Handler.RegisterRoutes(e)

	// Start server with graceful shutdown
	srv := server.NewGracefulServer(e, zapLogger,
		configs.Server.Port,
		time.Duration(configs.Server.ShutdownTimeout)*time.Second)

	if err := srv.Start(); err != nil {
		zapLogger.Fatal("Server terminated", logger.Err(err))
	}
}
