package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gorilla/mux"
	"github.com/pixmart/pixmart/internal/catalog"
	"github.com/pixmart/pixmart/internal/config"
	"github.com/pixmart/pixmart/internal/gateway"
	"github.com/pixmart/pixmart/internal/handlers"
	"github.com/pixmart/pixmart/internal/httpclient"
	"github.com/pixmart/pixmart/internal/middleware"
	"github.com/pixmart/pixmart/internal/otpauth"
	"github.com/pixmart/pixmart/internal/payment"
	"github.com/pixmart/pixmart/internal/repository"
	"github.com/pixmart/pixmart/internal/service"
	"github.com/pixmart/pixmart/internal/sms"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const flowTTL = 30 * time.Minute

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	dynamoClient, err := initDynamoDB(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize DynamoDB")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Endpoint,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Repositories
	userRepo := repository.NewUserRepository(dynamoClient, cfg.DynamoDB.TableName, logger)
	creditRepo := repository.NewCreditRepository(dynamoClient, cfg.DynamoDB.TableName, logger)
	planRepo := repository.NewPlanRepository(dynamoClient, cfg.DynamoDB.TableName, logger)

	// Services
	jwtService, err := service.NewJWTService(&cfg.JWT, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize JWT service")
	}
	refreshTokenService := service.NewRefreshTokenService(redisClient, logger)

	smsProvider := initSMSProvider(cfg, redisClient, userRepo, logger)
	adapter := initGatewayAdapter(cfg, creditRepo, logger)

	cat := catalog.New(planRepo, logger)
	orchestrator := payment.NewOrchestrator(cat, adapter, logger)

	authFlows := service.NewFlowManager(flowTTL, func(f *otpauth.Flow) { f.Close() }, logger)
	paymentFlows := service.NewFlowManager(flowTTL, func(f *payment.Flow) { f.Reset() }, logger)

	authHandlers := handlers.NewAuthHandlers(authFlows, smsProvider, jwtService, refreshTokenService, logger)
	paymentHandlers := handlers.NewPaymentHandlers(paymentFlows, orchestrator, cat, creditRepo, logger)

	authMiddleware := middleware.NewAuthMiddleware(jwtService, logger)
	router := setupRouter(authHandlers, paymentHandlers, authMiddleware, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func initDynamoDB(cfg *config.Config, logger *logrus.Logger) (*dynamodb.Client, error) {
	var awsCfg aws.Config
	var err error

	if cfg.DynamoDB.Endpoint != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO(),
			awsconfig.WithRegion(cfg.DynamoDB.Region),
			awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{
						URL:           cfg.DynamoDB.Endpoint,
						SigningRegion: cfg.DynamoDB.Region,
					}, nil
				})),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.TODO())
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg)
	logger.Info("DynamoDB client initialized")
	return client, nil
}

func initSMSProvider(cfg *config.Config, redisClient *redis.Client, userRepo *repository.UserRepository, logger *logrus.Logger) sms.Provider {
	if cfg.SMS.Mode == "http" {
		client := httpclient.New(cfg.SMS.BaseURL, cfg.SMS.Timeout, logger)
		logger.WithField("base_url", cfg.SMS.BaseURL).Info("Using HTTP SMS provider")
		return sms.NewHTTPProvider(client, logger)
	}

	logger.Info("Using local SMS provider (codes are logged, not sent)")
	return sms.NewLocalProvider(redisClient, userRepo, &cfg.OTP, logger)
}

func initGatewayAdapter(cfg *config.Config, creditRepo *repository.CreditRepository, logger *logrus.Logger) gateway.Adapter {
	if cfg.Gateway.Mode == "live" {
		client := httpclient.New(cfg.Gateway.BaseURL, cfg.Gateway.Timeout, logger).WithBearer(cfg.Gateway.SecretKey)
		confirmer := gateway.NewHTTPCardConfirmer(client)
		logger.WithField("base_url", cfg.Gateway.BaseURL).Info("Using live payment gateway")
		return gateway.NewLive(client, confirmer, logger)
	}

	logger.WithField("delay", cfg.Gateway.MockDelay.String()).Info("Using mock payment gateway")
	return gateway.NewMock(cfg.Gateway.MockDelay, creditRepo, logger)
}

func setupRouter(
	authHandlers *handlers.AuthHandlers,
	paymentHandlers *handlers.PaymentHandlers,
	authMiddleware *middleware.AuthMiddleware,
	logger *logrus.Logger,
) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.CORSMiddleware)
	router.Use(middleware.LoggingMiddleware(logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")

	api := router.PathPrefix("/api/v1").Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/otp/start", authHandlers.StartOTP).Methods("POST", "OPTIONS")
	auth.HandleFunc("/otp/verify", authHandlers.VerifyOTP).Methods("POST", "OPTIONS")
	auth.HandleFunc("/otp/register", authHandlers.Register).Methods("POST", "OPTIONS")
	auth.HandleFunc("/otp/cancel", authHandlers.CancelOTP).Methods("POST", "OPTIONS")
	auth.HandleFunc("/otp/close", authHandlers.CloseOTP).Methods("POST", "OPTIONS")
	auth.HandleFunc("/refresh", authHandlers.RefreshToken).Methods("POST", "OPTIONS")

	api.HandleFunc("/plans", paymentHandlers.ListPlans).Methods("GET", "OPTIONS")

	protected := api.PathPrefix("/").Subrouter()
	protected.Use(authMiddleware.RequireAuth)
	protected.HandleFunc("/auth/logout", authHandlers.Logout).Methods("POST")
	protected.HandleFunc("/payments/start", paymentHandlers.StartPurchase).Methods("POST")
	protected.HandleFunc("/payments/select-plan", paymentHandlers.SelectPlan).Methods("POST")
	protected.HandleFunc("/payments/authorize", paymentHandlers.Authorize).Methods("POST")
	protected.HandleFunc("/payments/cancel", paymentHandlers.CancelPurchase).Methods("POST")
	protected.HandleFunc("/payments/close", paymentHandlers.ClosePurchase).Methods("POST")
	protected.HandleFunc("/credits/balance", paymentHandlers.Balance).Methods("GET")
	protected.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(fmt.Sprintf(`{"user_id":"%s"}`, userID)))
	}).Methods("GET")

	return router
}
