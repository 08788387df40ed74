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

func tokenKey(token string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"token": strAV(token)}
}

// consumeTokenUpdate flips an unused, unexpired token to used. When vendorID is set the
// token must also belong to that vendor.
func (s *Store) consumeTokenUpdate(token, customerID string, now time.Time, vendorID *string) *types.Update {
	cond := "attribute_exists(#token) AND #used = :false AND expires_at >= :now_unix"
	values := map[string]types.AttributeValue{
		":true":     boolAV(true),
		":false":    boolAV(false),
		":customer": strAV(customerID),
		":now":      timeAV(now),
		":now_unix": numAV(unixCeil(now)),
	}
	if vendorID != nil {
		cond += " AND vendor_id = :vendor"
		values[":vendor"] = strAV(*vendorID)
	}

	return &types.Update{
		TableName:           aws.String(s.Tables.Tokens),
		Key:                 tokenKey(token),
		UpdateExpression:    aws.String("SET #used = :true, used_by = :customer, used_at = :now"),
		ConditionExpression: aws.String(cond),
		ExpressionAttributeNames: map[string]string{
			"#token": "token",
			"#used":  "used",
		},
		ExpressionAttributeValues: values,
	}
}

// PutToken inserts a token if it does not already exist.
func (s *Store) PutToken(ctx context.Context, token *models.QRToken) error {
	tokenAV, err := attributevalue.MarshalMap(token)
	if err != nil {
		return fmt.Errorf("failed to marshal qr token: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(s.Tables.Tokens),
		Item:                tokenAV,
		ConditionExpression: aws.String("attribute_not_exists(#token)"),
		ExpressionAttributeNames: map[string]string{
			"#token": "token",
		},
	}

	if _, err := s.Client.PutItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to put qr token in DynamoDB: %w", err)
	}
	return nil
}

// GetToken retrieves a token.
func (s *Store) GetToken(ctx context.Context, token string) (*models.QRToken, error) {
	input := &dynamodb.GetItemInput{
		TableName:      aws.String(s.Tables.Tokens),
		Key:            tokenKey(token),
		ConsistentRead: aws.Bool(true),
	}

	result, err := s.Client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get qr token from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, storage.ErrNotFound
	}

	var qt models.QRToken
	if err := attributevalue.UnmarshalMap(result.Item, &qt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal qr token: %w", err)
	}
	return &qt, nil
}

// MarkTokenUsed flips used from false to true if the token exists and has not expired at now.
func (s *Store) MarkTokenUsed(ctx context.Context, token, customerID string, now time.Time) error {
	upd := s.consumeTokenUpdate(token, customerID, now, nil)
	input := &dynamodb.UpdateItemInput{
		TableName:                 upd.TableName,
		Key:                       upd.Key,
		UpdateExpression:          upd.UpdateExpression,
		ConditionExpression:       upd.ConditionExpression,
		ExpressionAttributeNames:  upd.ExpressionAttributeNames,
		ExpressionAttributeValues: upd.ExpressionAttributeValues,
	}

	if _, err := s.Client.UpdateItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return storage.ErrConditionFailed
		}
		return fmt.Errorf("failed to mark qr token used in DynamoDB: %w", err)
	}
	return nil
}

// ListActiveTokens retrieves a vendor's unexpired tokens, newest expiry first.
func (s *Store) ListActiveTokens(ctx context.Context, vendorID string, now time.Time) ([]models.QRToken, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.Tokens),
		IndexName:              aws.String(tokensByVendorExpiration),
		KeyConditionExpression: aws.String("vendor_id = :vendor AND expires_at >= :now_unix"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":vendor":   strAV(vendorID),
			":now_unix": numAV(unixCeil(now)),
		},
		ScanIndexForward: aws.Bool(false),
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query for active qr tokens: %w", err)
	}

	var tokens []models.QRToken
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal qr tokens: %w", err)
	}
	return tokens, nil
}
