package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/storage"
)

func transactionKey(txID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"transaction_id": strAV(txID)}
}

// GetTransaction retrieves a transaction from DynamoDB by its ID.
func (s *Store) GetTransaction(ctx context.Context, txID string) (*models.Transaction, error) {
	input := &dynamodb.GetItemInput{
		TableName:      aws.String(s.Tables.Transactions),
		Key:            transactionKey(txID),
		ConsistentRead: aws.Bool(true),
	}

	result, err := s.Client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, storage.ErrNotFound
	}

	var tx models.Transaction
	if err := attributevalue.UnmarshalMap(result.Item, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	return &tx, nil
}

// ListTransactionsByRelation retrieves a relation's transactions, newest first.
func (s *Store) ListTransactionsByRelation(ctx context.Context, key models.RelationKey, limit int32) ([]models.Transaction, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.Transactions),
		IndexName:              aws.String(transactionsByRelation),
		KeyConditionExpression: aws.String("relation_key = :rk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rk": strAV(key.String()),
		},
		ScanIndexForward: aws.Bool(false), // Sort by created_at in descending order
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query for transactions by relation: %w", err)
	}

	var transactions []models.Transaction
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &transactions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transactions: %w", err)
	}
	return transactions, nil
}

// ListDueTransactions retrieves transactions in status whose due date is before cutoff.
func (s *Store) ListDueTransactions(ctx context.Context, status models.PaymentStatus, cutoff time.Time) ([]models.Transaction, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.Transactions),
		IndexName:              aws.String(transactionsByDueDate),
		KeyConditionExpression: aws.String("payment_status = :status AND due_date < :cutoff"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": strAV(string(status)),
			":cutoff": numAV(cutoff.Unix()),
		},
	}

	var transactions []models.Transaction
	for {
		result, err := s.Client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query for due transactions: %w", err)
		}

		var page []models.Transaction
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal due transactions: %w", err)
		}
		transactions = append(transactions, page...)

		if len(result.LastEvaluatedKey) == 0 {
			return transactions, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

// MarkOverdue moves a pending transaction to overdue.
func (s *Store) MarkOverdue(ctx context.Context, txID string, now time.Time) error {
	input := &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.Tables.Transactions),
		Key:                 transactionKey(txID),
		UpdateExpression:    aws.String("SET payment_status = :overdue, updated_at = :now"),
		ConditionExpression: aws.String("payment_status = :pending"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":overdue": strAV(string(models.OVERDUE)),
			":pending": strAV(string(models.PENDING)),
			":now":     timeAV(now),
		},
	}

	if _, err := s.Client.UpdateItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return storage.ErrConditionFailed
		}
		return fmt.Errorf("failed to mark transaction overdue in DynamoDB: %w", err)
	}
	return nil
}

// MarkDefaulted stamps defaulted_at on an overdue transaction exactly once.
func (s *Store) MarkDefaulted(ctx context.Context, txID string, now time.Time) error {
	input := &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.Tables.Transactions),
		Key:                 transactionKey(txID),
		UpdateExpression:    aws.String("SET defaulted_at = :now, updated_at = :now"),
		ConditionExpression: aws.String("payment_status = :overdue AND attribute_not_exists(defaulted_at)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":overdue": strAV(string(models.OVERDUE)),
			":now":     timeAV(now),
		},
	}

	if _, err := s.Client.UpdateItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return storage.ErrConditionFailed
		}
		return fmt.Errorf("failed to mark transaction defaulted in DynamoDB: %w", err)
	}
	return nil
}
