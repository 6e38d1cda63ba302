package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/swarnapay/backend/docs"
	"github.com/swarnapay/backend/internal/database"
	"github.com/swarnapay/backend/internal/lease"
	mW "github.com/swarnapay/backend/internal/middleware"
	"github.com/swarnapay/backend/internal/rates"
	"github.com/swarnapay/backend/internal/services"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Gold Wallet Backend API
// @version 1.0
// @description API for a custodial digital gold wallet with trading and bill payments
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	// Set environment variable prefix
	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.temp_secret", "JWT_TEMP_SECRET")
	viper.BindEnv("jwt.refresh_secret", "JWT_REFRESH_SECRET")
	viper.BindEnv("gold.api_key", "GOLD_API_KEY")
	viper.BindEnv("gold.api_url", "GOLD_API_URL")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.SetDefault("gold.margin", 0.02)
	viper.SetDefault("gold.gst", 0.03)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Gold Wallet Backend API"
	docs.SwaggerInfo.Description = "API for a custodial digital gold wallet with trading and bill payments"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	rateCache := rates.NewCache(
		rates.NewGoldAPISource(),
		decimal.NewFromFloat(viper.GetFloat64("gold.margin")),
		decimal.NewFromFloat(viper.GetFloat64("gold.gst")),
		60*time.Second,
	)

	// Quote locks survive restarts only when Redis is reachable.
	var lockStore lease.Store
	if redisClient != nil {
		lockStore = lease.NewRedisStore(redisClient, lease.DefaultValidity, "")
	} else {
		log.Println("Redis unavailable, using in-process quote locks")
		lockStore = lease.NewMemoryStore(lease.DefaultValidity)
	}

	engine := services.NewSettlementService(db)
	authService := services.NewAuthService(db, engine)
	goldService := services.NewGoldService(engine, rateCache, lockStore)
	billService := services.NewBillService(engine)
	qrService := services.NewQRService(db)
	userService := services.NewUserService(db, engine, qrService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login/initiate", authService.LoginInitiate)
		r.Post("/auth/refresh", authService.Refresh)
		r.Get("/gold/rates", goldService.GetRates)
		r.Get("/bills/categories", billService.GetCategories)
		r.Get("/bills/billers/{category}", billService.GetBillers)

		// Second login step, guarded by the short-lived 2FA token
		r.Group(func(r chi.Router) {
			r.Use(mW.TempAuthMiddleware)
			r.Post("/auth/login/verify", authService.LoginVerify)
		})

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/user/profile", userService.GetProfile)
			r.Put("/user/profile", userService.UpdateProfile)
			r.Post("/user/kyc", userService.UpdateKYC)
			r.Get("/user/transactions", userService.GetTransactions)
			r.Post("/user/deposit", userService.Deposit)
			r.Get("/user/deposit/qr", userService.GetDepositQR)

			// Gold trading endpoints
			r.Get("/gold/portfolio", goldService.GetPortfolio)
			r.Post("/gold/buy/quote", goldService.CreateQuote)
			r.Post("/gold/buy/confirm", goldService.ConfirmBuy)
			r.Post("/gold/sell", goldService.Sell)

			// Bill payment endpoints
			r.Post("/bills/fetch", billService.FetchBill)
			r.Post("/bills/pay", billService.PayBill)
			r.Get("/bills/history", billService.GetHistory)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
