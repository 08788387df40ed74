package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/trustline/pkg/config"
	"github.com/chris/trustline/pkg/handlers"
	wshandler "github.com/chris/trustline/pkg/handlers/websockets"
	"github.com/chris/trustline/pkg/ledger"
	"github.com/chris/trustline/pkg/metrics"
	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/otp"
	"github.com/chris/trustline/pkg/qr"
	"github.com/chris/trustline/pkg/scheduler"
	"github.com/chris/trustline/pkg/storage"
	dydbstore "github.com/chris/trustline/pkg/storage/dynamodb"
	"github.com/chris/trustline/pkg/storage/memory"
	redisstore "github.com/chris/trustline/pkg/storage/redis"
	"github.com/chris/trustline/pkg/trustscore"
	"github.com/chris/trustline/pkg/websockets"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.App.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var (
		store      storage.Storage
		challenges storage.ChallengeStore
		sched      scheduler.Scheduler
	)
	if cfg.App.LocalMode {
		mem := memory.New()
		seedLocalVendor(ctx, mem)
		store, challenges = mem, mem
		slog.Info("running in local mode with the in-memory store")
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO())
		if err != nil {
			log.Fatalf("unable to load SDK config, %v", err)
		}
		store = dydbstore.New(dynamodb.NewFromConfig(awsCfg), dydbstore.Tables{
			Relations:    cfg.DynamoDB.RelationsTable,
			Customers:    cfg.DynamoDB.CustomersTable,
			Vendors:      cfg.DynamoDB.VendorsTable,
			Transactions: cfg.DynamoDB.TransactionsTable,
			Tokens:       cfg.DynamoDB.TokensTable,
		})

		rdb, err := redisstore.NewClient(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("unable to create redis client: %v", err)
		}
		defer rdb.Close()
		challenges = redisstore.NewChallengeStore(rdb, cfg.Redis.KeyPrefix)

		if cfg.Scoring.Mode == config.ScoringModeQueue {
			sched = scheduler.NewSQSScheduler(sqs.NewFromConfig(awsCfg), cfg.SQS.QueueURL)
		}
	}

	engine := trustscore.NewEngine(store, m)
	var trigger trustscore.Trigger = &trustscore.SyncTrigger{Engine: engine}
	if sched != nil {
		trigger = &trustscore.QueueTrigger{Scheduler: sched}
	}

	var (
		publisher websockets.Publisher = &websockets.NoOpPublisher{}
		wsHandler http.Handler
	)
	if cfg.App.Websockets {
		hub := websockets.NewHub()
		publisher = hub
		wsHandler = wshandler.NewHandler(hub)
	}

	l := ledger.New(store, trigger, publisher, m, cfg.Policy.Ledger())

	qrManager := qr.NewManager(store, m)
	qrManager.ThresholdKm = cfg.Policy.ProximityKm

	otpService := otp.NewService(challenges, otp.LogNotifier{}, m)
	otpService.TTL = cfg.OTP.TTL
	otpService.MaxAttempts = cfg.OTP.MaxAttempts

	router := handlers.NewRouter(handlers.NewApiHandler(l, qrManager, otpService, engine), handlers.RouterOptions{
		Logger:     logger,
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Websockets: wsHandler,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("starting server", "port", cfg.App.Port, "scoring_mode", cfg.Scoring.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

// seedLocalVendor gives local mode a vendor to register customers against.
func seedLocalVendor(ctx context.Context, store storage.VendorStore) {
	vendor := &models.Vendor{
		VendorID:  "demo-vendor",
		Name:      "Demo Kirana",
		Location:  &models.Coordinate{Latitude: 12.9716, Longitude: 77.5946},
		CreatedAt: time.Now().UTC(),
	}
	if err := store.PutVendor(ctx, vendor); err != nil {
		slog.Error("failed to seed local vendor", "error", err)
	}
}
