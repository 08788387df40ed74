package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/chris/trustline/pkg/config"
	"github.com/chris/trustline/pkg/errs"
	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/scheduler"
	dydbstore "github.com/chris/trustline/pkg/storage/dynamodb"
	"github.com/chris/trustline/pkg/trustscore"
)

// Recomputer recomputes one relation's trust score.
type Recomputer interface {
	Recompute(ctx context.Context, key models.RelationKey) (int, error)
}

var engine Recomputer

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
	engine = trustscore.NewEngine(store, nil)
}

// HandleRequest recomputes the trust score named by each SQS record. Only transient failures are
// reported back for redelivery; malformed requests and vanished relations are dropped.
func HandleRequest(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	return process(ctx, engine, sqsEvent), nil
}

func process(ctx context.Context, r Recomputer, sqsEvent events.SQSEvent) events.SQSEventResponse {
	var resp events.SQSEventResponse
	for _, message := range sqsEvent.Records {
		req, err := scheduler.DecodeRecomputeRequest(message.Body)
		if err != nil {
			slog.Error("dropping malformed recompute request", "messageId", message.MessageId, "error", err)
			continue
		}

		key := models.RelationKey{CustomerID: req.CustomerID, VendorID: req.VendorID}
		score, err := r.Recompute(ctx, key)
		switch {
		case err == nil:
			slog.Info("trust score recomputed", "messageId", message.MessageId,
				"customer_id", key.CustomerID, "vendor_id", key.VendorID, "reason", req.Reason, "score", score)
		case errs.KindOf(err).Retryable():
			slog.Error("trust score recompute failed, will retry", "messageId", message.MessageId, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: message.MessageId})
		default:
			slog.Warn("dropping recompute request", "messageId", message.MessageId, "error", err)
		}
	}
	return resp
}

func main() {
	lambda.Start(HandleRequest)
}
