package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/alibekd/taskboard/internal/cache"
	"github.com/alibekd/taskboard/internal/config"
	"github.com/alibekd/taskboard/internal/database"
	"github.com/alibekd/taskboard/internal/handler"
	"github.com/alibekd/taskboard/internal/middleware"
	"github.com/alibekd/taskboard/internal/queue"
	"github.com/alibekd/taskboard/internal/repository"
	"github.com/alibekd/taskboard/internal/router"
	"github.com/alibekd/taskboard/internal/service"
	"github.com/alibekd/taskboard/internal/utils"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	defer db.Close()

	// Redis is best-effort: nil client degrades the cache to misses and
	// disables rate limiting.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; running without cache and rate limiting")
	}
	store := cache.New(rdb, cfg.CacheTTL)

	codec := &utils.TokenCodec{
		AccessSecret:  []byte(cfg.AccessSecret),
		RefreshSecret: []byte(cfg.RefreshSecret),
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	projects := repository.NewProjectRepo(db)
	tasks := repository.NewTaskRepo(db)

	auth := service.NewAuthService(users, tokens, store, codec, cfg.BcryptCost)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	ratelimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	router.Register(e, router.Handlers{
		Auth:     handler.NewAuthHandler(auth),
		Projects: handler.NewProjectHandler(projects, store),
		Tasks:    handler.NewTaskHandler(tasks, projects, store),
		Admin:    handler.NewAdminHandler(auth, users),
	}, auth, ratelimit)

	// Background workers: the activity consumer writes the audit trail,
	// the sweep clears long-expired refresh rows.  Neither affects
	// request correctness.
	go func() {
		if err := queue.StartActivityConsumer(); err != nil {
			log.Printf("activity consumer stopped: %v", err)
		}
	}()
	go sweepExpiredTokens(tokens)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// sweepExpiredTokens periodically deletes refresh rows that expired more
// than a day ago.  Revocation never depends on this; it only keeps the
// table from growing without bound.
func sweepExpiredTokens(tokens *repository.TokenRepo) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := tokens.DeleteExpired(ctx, time.Now().UTC().Add(-24*time.Hour))
		cancel()
		if err != nil {
			log.Printf("token sweep failed: %v", err)
			continue
		}
		if n > 0 {
			log.Printf("token sweep removed %d expired rows", n)
		}
	}
}
