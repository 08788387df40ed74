package dynamodb

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/trustline/pkg/storage"
)

// Index names of the global secondary indexes the store queries.
const (
	relationsByPhoneIndex    = "customer_phone-vendor_id-index"
	transactionsByRelation   = "relation_key-created_at-index"
	transactionsByDueDate    = "payment_status-due_date-index"
	tokensByVendorExpiration = "vendor_id-expires_at-index"
)

// DynamoDBAPI is the subset of the DynamoDB client the store calls.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Tables names the DynamoDB tables backing each aggregate.
type Tables struct {
	Relations    string
	Customers    string
	Vendors      string
	Transactions string
	Tokens       string
}

// Store implements the Storage interface using AWS DynamoDB.
type Store struct {
	Client DynamoDBAPI
	Tables Tables
}

// New creates a new Store.
func New(client DynamoDBAPI, tables Tables) *Store {
	return &Store{
		Client: client,
		Tables: tables,
	}
}

// Make sure we conform to the interface
var _ storage.Storage = (*Store)(nil)

func strAV(s string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: s}
}

func numAV(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func boolAV(b bool) types.AttributeValue {
	return &types.AttributeValueMemberBOOL{Value: b}
}

// timeAV encodes t the way attributevalue encodes a time.Time field.
func timeAV(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: t.Format(time.RFC3339Nano)}
}

// unixCeil rounds t up to whole seconds so that comparisons against second-precision
// unixtime attributes agree with time.Time comparisons.
func unixCeil(t time.Time) int64 {
	return int64(math.Ceil(float64(t.UnixNano()) / float64(time.Second)))
}

func isConditionFailed(err error) bool {
	var condCheckFailed *types.ConditionalCheckFailedException
	return errors.As(err, &condCheckFailed)
}

// failedConditions returns the indexes of transaction items cancelled by their condition.
func failedConditions(err error) map[int]bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil
	}
	failed := make(map[int]bool)
	for i, reason := range tce.CancellationReasons {
		if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
			failed[i] = true
		}
	}
	return failed
}
