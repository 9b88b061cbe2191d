package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"qms/ticket-queue/internal/config"
	"qms/ticket-queue/internal/events"
	"qms/ticket-queue/internal/httpapi"
	"qms/ticket-queue/internal/ledger"
	"qms/ticket-queue/internal/ledger/memory"
	"qms/ticket-queue/internal/ledger/postgres"
	"qms/ticket-queue/internal/ledger/sheets"
	"qms/ticket-queue/internal/ledger/sqlite"
	"qms/ticket-queue/internal/logging"
	"qms/ticket-queue/internal/queue"
	"qms/ticket-queue/internal/telemetry"
)

const serviceName = "ticket-queue"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(serviceName, cfg.Log.Level, cfg.Log.Format, os.Stderr)

	shutdownTracing := telemetry.Setup(serviceName)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	ctx := context.Background()
	store, closeStore, err := openLedger(ctx, cfg.Ledger)
	if err != nil {
		logger.WithError(err).WithField("backend", cfg.Ledger.Backend).Fatal("ledger setup failed")
	}
	defer closeStore()
	logger.WithField("backend", cfg.Ledger.Backend).Info("ledger ready")

	var publisher events.Publisher = events.Nop{}
	if cfg.Events.NATSURL != "" {
		nats, err := events.ConnectNATS(events.NATSOptions{
			URL:           cfg.Events.NATSURL,
			Token:         cfg.Events.NATSToken,
			SubjectPrefix: cfg.Events.SubjectPrefix,
			Name:          serviceName,
		})
		if err != nil {
			logger.WithError(err).Warn("nats unavailable, events disabled")
		} else {
			defer nats.Close()
			publisher = nats
			logger.WithField("url", cfg.Events.NATSURL).Info("publishing queue events")
		}
	}

	loc, err := cfg.Queue.Location()
	if err != nil {
		logger.WithError(err).Fatal("queue time zone")
	}
	scope, err := queue.ParseScope(cfg.Queue.Scope, loc)
	if err != nil {
		logger.WithError(err).Fatal("queue scope")
	}
	mode, err := queue.ParseNumberingMode(cfg.Queue.Numbering)
	if err != nil {
		logger.WithError(err).Fatal("queue numbering")
	}
	if _, ok := store.(ledger.Sequencer); mode == queue.NumberingSequence && !ok {
		logger.WithField("backend", cfg.Ledger.Backend).Warn("backend has no sequencer, numbering falls back to scan")
	}

	service := queue.NewService(store, queue.Options{
		Scope:         scope,
		Numbering:     queue.Numbering{Prefix: cfg.Queue.Prefix, Pad: cfg.Queue.Pad},
		Mode:          mode,
		Serialize:     cfg.Queue.Serialize,
		LedgerTimeout: cfg.Ledger.Timeout,
		Publisher:     publisher,
		Logger:        logger,
	})
	handler := httpapi.NewHandler(service, httpapi.Options{
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Logger:         logger,
	})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute: cfg.RateLimit.PerMinute,
		IPBurst:     cfg.RateLimit.Burst,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      otelhttp.NewHandler(httpapi.ServerChain(logger, limiter, handler.Routes()), serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: writeTimeout(cfg.Ledger.Timeout),
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithFields(log.Fields{"addr": server.Addr, "scope": scope.Kind, "numbering": mode}).Info("ticket-queue listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("shutdown error")
	}
}

func openLedger(ctx context.Context, cfg config.LedgerConfig) (ledger.Ledger, func(), error) {
	switch cfg.Backend {
	case config.BackendSheets:
		store, err := sheets.Connect(ctx, sheets.Credentials{
			Email:      cfg.ServiceAccountEmail,
			PrivateKey: cfg.PrivateKey,
		}, sheets.Options{
			SpreadsheetID:    cfg.SpreadsheetID,
			SheetName:        cfg.SheetName,
			ValueInputOption: cfg.ValueInputOption,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.NewStore(pool), pool.Close, nil
	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return memory.New(), func() {}, nil
	}
}

// writeTimeout covers the longest request: issue makes up to three ledger
// calls (read, sequence, append), each bounded by ledgerTimeout.
func writeTimeout(ledgerTimeout time.Duration) time.Duration {
	return 3*ledgerTimeout + 5*time.Second
}
