package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mehdidhammou/ai-connect-four/internal/config"
	"github.com/mehdidhammou/ai-connect-four/internal/repository/redis"
	"github.com/mehdidhammou/ai-connect-four/internal/service/catalog"
	"github.com/mehdidhammou/ai-connect-four/internal/service/game"
	"github.com/mehdidhammou/ai-connect-four/internal/service/health"
	"github.com/mehdidhammou/ai-connect-four/internal/service/session"
	transportHttp "github.com/mehdidhammou/ai-connect-four/internal/transport/http"
	"github.com/mehdidhammou/ai-connect-four/internal/transport/http/middleware"
	"github.com/mehdidhammou/ai-connect-four/internal/transport/solver"
	"github.com/mehdidhammou/ai-connect-four/internal/transport/websocket"
	"github.com/mehdidhammou/ai-connect-four/pkg/auth"
)

func main() {
	config.LoadEnvFiles()
	cfg := config.LoadConfig()
	cfg.SetupLogging()

	// 1. Optional catalog cache
	if err := redis.InitRedis(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB); err != nil {
		log.Warn().Err(err).Msg("continuing without redis cache")
	}
	defer redis.CloseRedis()

	var cache catalog.CacheRepository
	if redis.IsRedisEnabled() && redis.RedisClient != nil {
		cache = redis.NewRedisCache(redis.RedisClient)
	}

	// 2. Session core
	solverClient := solver.NewClient(cfg.SolverAPIURL, cfg.SolverTimeout)
	machine, err := session.New(cfg.BoardRows, cfg.BoardColumns)
	if err != nil {
		log.Fatal().Err(err).Int("rows", cfg.BoardRows).Int("cols", cfg.BoardColumns).Msg("invalid board shape")
	}
	gameService := game.NewService(machine, solverClient, game.WithPacing(cfg.MovePacing))
	defer gameService.Close()

	if cfg.DefaultSolver.IsComplete() {
		if err := gameService.SelectSolver(cfg.DefaultSolver); err != nil {
			log.Warn().Err(err).Msg("ignoring default solver")
		}
	}

	catalogService := catalog.NewService(solverClient, cache, cfg.CatalogCacheTTL)
	monitor := health.NewMonitor(solverClient, cfg.HealthInterval)

	// 3. Bridge credentials
	secret := cfg.BridgeSecret
	if secret == "" {
		secret = auth.GenerateSecret()
		log.Info().Msg("BRIDGE_SECRET not set, generated a secret for this run")
	}
	token, err := auth.GenerateBridgeToken(secret, "local", cfg.BridgeTokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to mint bridge token")
	}
	log.Info().Str("token", token).Msg("renderer token, pass as Bearer header or websocket init jwt")

	// 4. Handlers
	connManager := websocket.NewConnectionManager()
	wsHandler := websocket.NewHandler(connManager, gameService, monitor, secret, cfg.AllowedOrigins)
	defer wsHandler.Close()
	gameHandler := transportHttp.NewGameHandler(gameService, catalogService, monitor)

	monitor.Start()
	defer monitor.Stop()

	// 5. Router
	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(), gin.Recovery())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	protected := router.Group("/")
	protected.Use(middleware.AuthMiddleware(secret))
	gameHandler.RegisterRoutes(protected)

	// token checked in the init message
	router.GET("/ws", gin.WrapF(wsHandler.HandleWebSocket))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("solver_api", cfg.SolverAPIURL).Msg("bridge starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("bridge is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("bridge exited gracefully")
}
