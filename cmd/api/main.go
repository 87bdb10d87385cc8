package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"shellgame-backend/internal/config"
	"shellgame-backend/internal/handlers"
	"shellgame-backend/internal/middleware"
	"shellgame-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	redisService, err := services.NewRedisService(services.RedisConfig{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisService.Close()

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)

	node := services.NewHTTPNode(cfg.LedgerNodeURL)

	wallets := services.NewWalletManager(cfg.BalanceRefreshInterval)
	wallets.Register(services.NewKeystoreProvider("keystore", cfg.KeystorePath, node))
	if cfg.RemoteSignerURL != "" {
		wallets.Register(services.NewRemoteSignerProvider("remote", cfg.RemoteSignerURL))
	}

	txClient := services.NewLedgerClient(node, wallets, services.LedgerClientConfig{
		AppID:               cfg.GameAppID,
		ExplorerURL:         cfg.ExplorerURL,
		ConfirmationTimeout: cfg.ConfirmationTimeout,
		PollInterval:        cfg.ConfirmationPollInterval,
		ResultRetryBudget:   cfg.ResultRetryBudget,
		ResultRetryInterval: cfg.ResultRetryInterval,
	})

	gameEngine := services.NewGameEngine(wallets, txClient, cfg.ShuffleWindows())
	gameEngine.SetStore(redisService)

	wsHandler := handlers.NewWebSocketHandler(gameEngine, wallets)
	gameEngine.SetBroadcaster(wsHandler)

	// A disconnect mid-round must invalidate the in-flight round before
	// the next session can start one.
	wallets.SetTeardownHook(gameEngine.AbortInFlight)
	wallets.SetBalanceHook(wsHandler.BroadcastBalance)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			gameEngine.CleanupStaleRounds(10 * time.Minute)
		}
	}()

	walletHandler := handlers.NewWalletHandler(wallets, jwtService, redisService)
	gameHandler := handlers.NewGameHandler(gameEngine, redisService)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/wallet/providers", walletHandler.GetProviders)
	router.POST("/wallet/connect", walletHandler.Connect)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	{
		protected.POST("/wallet/disconnect", walletHandler.Disconnect)
		protected.GET("/wallet/balance", walletHandler.GetBalance)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		rounds := protected.Group("/rounds")
		rounds.Use(middleware.RateLimitMiddleware(redisService))
		{
			rounds.POST("", gameHandler.StartRound)
			rounds.GET("/current", gameHandler.GetCurrentRound)
			rounds.GET("/history", gameHandler.GetRoundHistory)
			rounds.GET("/:id", gameHandler.GetRound)
			rounds.POST("/:id/select", gameHandler.SelectSlot)
			rounds.POST("/:id/cancel", gameHandler.CancelRound)
			rounds.POST("/:id/claim", gameHandler.RetryClaim)
		}
	}

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
