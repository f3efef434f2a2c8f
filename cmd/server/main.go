package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ruminster/internal/audit"
	"ruminster/internal/comment"
	commenthandler "ruminster/internal/comment/handler"
	commentservice "ruminster/internal/comment/service"
	commentstore "ruminster/internal/comment/store"
	"ruminster/internal/identity"
	"ruminster/internal/notification"
	"ruminster/internal/platform/config"
	"ruminster/internal/platform/logger"
	"ruminster/internal/platform/metrics"
	"ruminster/internal/platform/middleware"
	"ruminster/internal/platform/postgres"
	"ruminster/internal/platform/redis"
	"ruminster/internal/platform/uow"
	"ruminster/internal/relation"
	relationhandler "ruminster/internal/relation/handler"
	relationservice "ruminster/internal/relation/service"
	relationstore "ruminster/internal/relation/store"
	"ruminster/internal/rumination"
	ruminationhandler "ruminster/internal/rumination/handler"
	ruminationservice "ruminster/internal/rumination/service"
	ruminationstore "ruminster/internal/rumination/store"
	"ruminster/internal/search"
	searchhandler "ruminster/internal/search/handler"
	httptransport "ruminster/internal/transport/http"
)

// main wires the dependency graph and owns the process lifecycle. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	tokenService := identity.NewTokenService(cfg.JWTSigningKey, "ruminster", "ruminster-api")
	jwtValidator := identity.NewTokenServiceAdapter(tokenService)
	var revocationChecker middleware.TokenRevocationChecker
	if store := identity.NewRevocationStore(redisClient); store != nil {
		revocationChecker = store
	}

	relationStore := relationstore.NewPostgres(db)
	ruminationStore := ruminationstore.NewPostgres(db)
	commentStore := commentstore.NewPostgres(db)

	recorder := audit.NewRecorder(log, []audit.Strategy{
		relation.NewLoggingStrategy(relationStore),
		rumination.NewLoggingStrategy(ruminationStore),
		comment.NewLoggingStrategy(commentStore),
	})
	runner := uow.NewPostgresRunner(db, recorder, log)
	outbox := notification.NewPostgresOutbox(db)

	relationSvc := relationservice.New(relationStore, runner,
		relationservice.WithLogger(log),
		relationservice.WithMetrics(relationservice.NewMetrics()),
		relationservice.WithNotifier(outbox),
		relationservice.WithMaxPageSize(cfg.MaxPageSize),
	)
	ruminationSvc := ruminationservice.New(ruminationStore, relationStore, runner,
		ruminationservice.WithLogger(log),
		ruminationservice.WithMetrics(ruminationservice.NewMetrics()),
		ruminationservice.WithMaxPageSize(cfg.MaxPageSize),
	)
	commentSvc := commentservice.New(commentStore, ruminationSvc, runner,
		commentservice.WithLogger(log),
		commentservice.WithMetrics(commentservice.NewMetrics()),
		commentservice.WithNotifier(outbox),
		commentservice.WithMaxPageSize(cfg.MaxPageSize),
	)
	searchSvc := search.New(ruminationStore, commentStore,
		search.WithLogger(log),
		search.WithMetrics(search.NewMetrics()),
		search.WithMaxPageSize(cfg.MaxPageSize),
	)

	httpMetrics := metrics.New()
	router := httptransport.NewRouter(
		relationhandler.New(relationSvc, log, httpMetrics, jwtValidator, revocationChecker, cfg.RequestTimeout),
		ruminationhandler.New(ruminationSvc, log, httpMetrics, jwtValidator, revocationChecker, cfg.RequestTimeout),
		commenthandler.New(commentSvc, log, httpMetrics, jwtValidator, revocationChecker, cfg.RequestTimeout),
		searchhandler.New(searchSvc, log, httpMetrics, jwtValidator, revocationChecker, cfg.RequestTimeout),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("starting ruminster", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
