package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/verdello/shop-backend/internal/config"
	"github.com/verdello/shop-backend/internal/db"
	"github.com/verdello/shop-backend/internal/handlers"
	"github.com/verdello/shop-backend/internal/httperr"
	"github.com/verdello/shop-backend/internal/logging"
	mwauth "github.com/verdello/shop-backend/internal/middleware/auth"
	loggingmw "github.com/verdello/shop-backend/internal/middleware/logging"
	"github.com/verdello/shop-backend/internal/mykafka"
	"github.com/verdello/shop-backend/internal/seed"
	"github.com/verdello/shop-backend/internal/token"
	httpserver "github.com/verdello/shop-backend/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	config.MustNonEmpty(cfg.JWTSecret, "JWT_SECRET")

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	gdb, err := db.Open(ctx, cfg.DSN())
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	if cfg.SeedFile != "" {
		if err := seed.Run(logging.IntoContext(ctx, logger), gdb, cfg.SeedFile); err != nil {
			log.Fatalf("seed error: %v", err)
		}
	}

	var prod *mykafka.Producer
	if cfg.KafkaAddr != "" {
		prod, err = mykafka.NewProducer([]string{cfg.KafkaAddr})
		if err != nil {
			log.Fatalf("kafka error: %v", err)
		}
	}

	tokens := token.NewService([]byte(cfg.JWTSecret), cfg.TokenTTL)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httperr.Handler()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(
		middleware.Recover(),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}),
		loggingmw.RequestLogger(logger),
	)

	deps := httpserver.Deps{
		UserHandler:    &handlers.UserHandler{DB: gdb, Tokens: tokens, Producer: prod},
		ProductHandler: &handlers.ProductHandler{DB: gdb, Producer: prod},
		Auth:           &mwauth.Service{DB: gdb, Tokens: tokens},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := gdb.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	logger.Info("shutdown complete")
}
