package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/trustline/pkg/config"
	"github.com/chris/trustline/pkg/ledger"
	"github.com/chris/trustline/pkg/scheduler"
	dydbstore "github.com/chris/trustline/pkg/storage/dynamodb"
	"github.com/chris/trustline/pkg/trustscore"
)

// Reconciler runs one overdue and default sweep.
type Reconciler interface {
	Reconcile(ctx context.Context) (ledger.ReconcileReport, error)
}

var reconciler Reconciler

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.App.SlogLevel()})))

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	store := dydbstore.New(dynamodb.NewFromConfig(awsCfg), dydbstore.Tables{
		Relations:    cfg.DynamoDB.RelationsTable,
		Customers:    cfg.DynamoDB.CustomersTable,
		Vendors:      cfg.DynamoDB.VendorsTable,
		Transactions: cfg.DynamoDB.TransactionsTable,
		Tokens:       cfg.DynamoDB.TokensTable,
	})

	var trigger trustscore.Trigger = &trustscore.SyncTrigger{Engine: trustscore.NewEngine(store, nil)}
	if cfg.Scoring.Mode == config.ScoringModeQueue {
		trigger = &trustscore.QueueTrigger{Scheduler: scheduler.NewSQSScheduler(sqs.NewFromConfig(awsCfg), cfg.SQS.QueueURL)}
	}

	// Sweeps publish no websocket updates.
	reconciler = ledger.New(store, trigger, nil, nil, cfg.Policy.Ledger())
}

// HandleRequest is triggered by an EventBridge Schedule.
func HandleRequest(ctx context.Context) error {
	return sweep(ctx, reconciler)
}

func sweep(ctx context.Context, r Reconciler) error {
	slog.Info("Starting reconciliation sweep for due transactions...")

	report, err := r.Reconcile(ctx)
	if err != nil {
		slog.Error("reconciliation sweep failed", "error", err)
		return err
	}

	if report.Failed > 0 {
		slog.Warn("reconciliation sweep finished with failures",
			"overdue", report.Overdue, "defaulted", report.Defaulted, "failed", report.Failed)
		return nil
	}
	slog.Info("reconciliation sweep finished", "overdue", report.Overdue, "defaulted", report.Defaulted)
	return nil
}

func main() {
	lambda.Start(HandleRequest)
}
