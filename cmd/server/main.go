// Signal Export Appraiser API
// @title Signal Export Appraiser API
// @version 1.0
// @description Batch vehicle appraisal service driving a headless browser against the Signal valuation site
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey OperatorKey
// @in header
// @name X-Operator-Key

package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/time/rate"

	_ "exportappraiser/docs"
	"exportappraiser/internal/config"
	"exportappraiser/internal/database"
	"exportappraiser/internal/handlers"
	"exportappraiser/internal/jobs"
	"exportappraiser/internal/metrics"
	"exportappraiser/internal/middleware"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	manager := config.NewManager(cfg)

	db, err := database.NewDatabase(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open run history database: %v", err)
	}
	defer db.Close()

	m := metrics.New()
	state := jobs.NewJobState()
	controller := jobs.NewController(state, manager, db, m)
	api := handlers.NewHandler(controller, manager, db)

	// Initialize Gin router
	r := gin.Default()

	// Configure trusted proxies for Cloudflare Tunnels
	r.SetTrustedProxies([]string{
		"127.0.0.1",
		"::1",
		"172.16.0.0/12",  // Docker networks
		"10.0.0.0/8",     // Private networks
		"192.168.0.0/16", // Private networks
	})

	// Configure CORS (the dashboard is served from another origin)
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Operator-Key"}
	r.Use(cors.New(corsConfig))

	r.Use(middleware.SecurityHeaders())

	// 60 requests per minute per IP across the whole API
	limiter := middleware.NewRateLimiter(rate.Limit(1), 60)
	operator := middleware.OperatorAuth(cfg.OperatorKeyHash)

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	// API routes
	apiGroup := r.Group("/api")
	apiGroup.Use(middleware.RateLimitMiddleware(limiter))
	{
		apiGroup.POST("/start-processing", operator, api.StartProcessing)
		apiGroup.GET("/status", api.GetStatus)
		apiGroup.GET("/results", api.GetResults)
		apiGroup.POST("/stop-processing", operator, api.StopProcessing)
		apiGroup.GET("/fetch-inventory", middleware.RefreshProtectionMiddleware(30*time.Second), api.FetchInventory)
		apiGroup.GET("/config", api.GetConfig)
		apiGroup.POST("/config", operator, api.UpdateConfig)
		apiGroup.GET("/history", api.GetHistory)
		apiGroup.GET("/history/:id", api.GetHistoryRun)
		apiGroup.GET("/health", api.HealthCheck)
	}

	fmt.Println("🚀 Signal Export Appraiser starting...")
	fmt.Printf("   💾 Run history: %s\n", cfg.DBPath)
	if cfg.SignalEmail == "" || cfg.SignalPassword == "" {
		fmt.Println("   ⚠️ Appraisal credentials not set - batches will be rejected until configured")
	}
	if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
		fmt.Println("   ⚠️ Supabase not configured - results will not be persisted")
	}
	if cfg.OperatorKeyHash == "" {
		fmt.Println("   ⚠️ OPERATOR_KEY_HASH not set - mutating endpoints are unprotected")
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
