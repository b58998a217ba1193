package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"presence/internal/aggregate"
	aggregatemetrics "presence/internal/aggregate/metrics"
	"presence/internal/attendance"
	attendancemetrics "presence/internal/attendance/metrics"
	"presence/internal/domain"
	"presence/internal/platform/config"
	"presence/internal/platform/httpserver"
	"presence/internal/platform/logger"
	platformredis "presence/internal/platform/redis"
	httptransport "presence/internal/transport/http"
	"presence/internal/verify"
	verifymetrics "presence/internal/verify/metrics"
	"presence/pkg/platform/circuit"
	"presence/pkg/platform/sentinel"
	"presence/pkg/platform/tx"
)

// main wires dependencies and owns process lifecycle. Stores are in-memory by
// default; DATABASE_URL switches records to PostgreSQL and REDIS_URL moves the
// report cache out of process. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	var (
		records     attendance.RecordStore
		occasions   attendance.OccasionStore
		corrections attendance.CorrectionStore
		txRunner    attendance.TxRunner
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Error("ping database", "error", err)
			os.Exit(1)
		}
		records = attendance.NewPostgresRecordStore(db)
		occasions = attendance.NewPostgresOccasionStore(db)
		corrections = attendance.NewPostgresCorrectionStore(db)
		txRunner = tx.NewRunner(db)
	} else {
		records = attendance.NewInMemoryRecordStore()
		occasions = attendance.NewInMemoryOccasionStore()
		corrections = attendance.NewInMemoryCorrectionStore()
	}

	var cache aggregate.ReportCache = aggregate.NewInMemoryReportCache(cfg.ReportTTL)
	var health []httptransport.HealthChecker
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cache = aggregate.NewRedisReportCache(redisClient.Client, cfg.ReportTTL)
		health = append(health, redisClient)
	}

	subjects := verify.NewInMemoryDirectory()
	roster := aggregate.NewInMemoryRoster()

	gateway := verify.NewGateway(newMatcher(cfg, log), cfg.MatcherTimeout, log, verifymetrics.New())
	machine := attendance.NewService(records, occasions, corrections, txRunner, log, attendancemetrics.New())

	aggMetrics := aggregatemetrics.New()
	reports := aggregate.NewService(records, cache, aggregate.DefaultThresholds(), cfg.ReportFreshFor, log, aggMetrics)
	sweeper := aggregate.NewSweeper(occasions, records, roster, cfg.SweepInterval, log, aggMetrics)

	router := httptransport.NewRouter(
		httptransport.NewAttendanceHandler(machine, gateway, subjects, log),
		httptransport.NewReportHandler(reports, log),
		health,
	)
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweeper.Run(ctx)

	go func() {
		log.Info("presence engine listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

func newMatcher(cfg config.Config, log *slog.Logger) verify.Matcher {
	if cfg.MatcherURL != "" {
		matcher := verify.NewHTTPMatcher(cfg.MatcherURL, &http.Client{Timeout: cfg.MatcherTimeout})
		return verify.NewBreakerMatcher(matcher, circuit.New("matcher"), log)
	}
	return verify.MatcherFunc(func(context.Context, []byte, *domain.SubjectID) (verify.MatchResult, error) {
		return verify.MatchResult{}, fmt.Errorf("matcher not configured: %w", sentinel.ErrUnavailable)
	})
}
