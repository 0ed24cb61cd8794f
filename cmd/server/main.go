package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/estate-claims/internal/config"
	"github.com/iliyamo/estate-claims/internal/database"
	"github.com/iliyamo/estate-claims/internal/handler"
	"github.com/iliyamo/estate-claims/internal/middleware"
	"github.com/iliyamo/estate-claims/internal/queue"
	"github.com/iliyamo/estate-claims/internal/repository"
	"github.com/iliyamo/estate-claims/internal/router"
	"github.com/iliyamo/estate-claims/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	cacheCfg, err := config.LoadCacheConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	redisCfg, err := config.LoadRedisConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.EnsureSchema(ctx, db, database.DialectMySQL)
		cancel()
		if err != nil {
			log.Fatalf("database: ensure schema: %v", err)
		}
	}
	rdb := config.NewRedisClient(redisCfg) // nil disables cache and rate limit
	if rdb != nil {
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Services
	notifier := service.NewAsyncNotifier(queue.NewPublisher(cfg.RabbitURL), cfg.NotifyTimeout)
	sales := repository.NewSaleRepo(db)
	lifecycle := service.NewSaleLifecycleManager(sales, repository.NewItemRepo(db))
	ledger := service.NewOfferLedger(db, lifecycle, notifier)
	auth := service.NewBuyerAuthService(repository.NewBuyerRepo(db), sales, queue.NewCodeSender(cfg.RabbitURL), service.BuyerAuthConfig{
		CodeTTL:     cfg.CodeTTL,
		SessionTTL:  cfg.SessionTTL,
		CodePepper:  cfg.AuthCodePepper,
		MaxAttempts: cfg.AuthMaxAttempts,
	})

	if cfg.NotifyConsumer {
		go func() {
			if err := queue.StartNotificationConsumer(ctx, cfg.RabbitURL, cfg.LogDir); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("notify-consumer: stopped: %v", err)
			}
		}()
	}

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Printf("http: %s %s %d %s", v.Method, v.URIPath, v.Status, v.Latency)
			return nil
		},
	}))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, repository.NewSellerRepo(db)))
	router.RegisterPublic(e, handler.NewPublicHandler(lifecycle, ledger), middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterBuyer(e,
		handler.NewBuyerAuthHandler(auth, lifecycle, cfg.Env == "dev"),
		handler.NewOfferHandler(ledger),
		auth,
		middleware.NewTokenBucket(rlCfg, rdb),
	)
	router.RegisterSeller(e, handler.NewSellerHandler(lifecycle, ledger), cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	notifier.Wait()
}
