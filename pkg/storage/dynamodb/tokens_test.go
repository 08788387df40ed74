package dynamodb

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testToken() *models.QRToken {
	return &models.QRToken{
		Token:     "tok",
		VendorID:  "v1",
		QRData:    "paynaka://scan/v1/tok",
		CreatedAt: t0,
		ExpiresAt: t0.Add(60 * time.Second),
	}
}

func TestPutToken(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		store, client := newTestStore()
		client.On("PutItem", ctx, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
			exp, ok := in.Item["expires_at"].(*types.AttributeValueMemberN)
			return *in.TableName == "qr_tokens" && ok &&
				exp.Value == strconv.FormatInt(t0.Add(60*time.Second).Unix(), 10) &&
				*in.ConditionExpression == "attribute_not_exists(#token)"
		})).Return(&dynamodb.PutItemOutput{}, nil)

		assert.NoError(t, store.PutToken(ctx, testToken()))
		client.AssertExpectations(t)
	})

	t.Run("Collision", func(t *testing.T) {
		store, client := newTestStore()
		client.On("PutItem", ctx, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

		assert.ErrorIs(t, store.PutToken(ctx, testToken()), storage.ErrAlreadyExists)
	})
}

func TestGetToken(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		store, client := newTestStore()
		item, _ := attributevalue.MarshalMap(testToken())
		client.On("GetItem", ctx, mock.Anything).Return(&dynamodb.GetItemOutput{Item: item}, nil)

		qt, err := store.GetToken(ctx, "tok")

		require.NoError(t, err)
		assert.Equal(t, "v1", qt.VendorID)
		assert.True(t, t0.Add(60*time.Second).Equal(qt.ExpiresAt))
		assert.False(t, qt.Used)
	})

	t.Run("Not Found", func(t *testing.T) {
		store, client := newTestStore()
		client.On("GetItem", ctx, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

		_, err := store.GetToken(ctx, "tok")

		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Storage Error", func(t *testing.T) {
		store, client := newTestStore()
		client.On("GetItem", ctx, mock.Anything).Return(nil, errors.New("boom"))

		_, err := store.GetToken(ctx, "tok")

		assert.Contains(t, err.Error(), "failed to get qr token from DynamoDB")
	})
}

func TestMarkTokenUsed(t *testing.T) {
	ctx := context.Background()
	now := t0.Add(30*time.Second + 200*time.Millisecond)

	t.Run("Success", func(t *testing.T) {
		store, client := newTestStore()
		client.On("UpdateItem", ctx, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
			_, scoped := in.ExpressionAttributeValues[":vendor"]
			return *in.ConditionExpression == "attribute_exists(#token) AND #used = :false AND expires_at >= :now_unix" &&
				!scoped &&
				in.ExpressionAttributeValues[":now_unix"].(*types.AttributeValueMemberN).Value == strconv.FormatInt(t0.Unix()+31, 10) &&
				in.ExpressionAttributeValues[":customer"].(*types.AttributeValueMemberS).Value == "c1"
		})).Return(&dynamodb.UpdateItemOutput{}, nil)

		assert.NoError(t, store.MarkTokenUsed(ctx, "tok", "c1", now))
		client.AssertExpectations(t)
	})

	t.Run("Condition Failed", func(t *testing.T) {
		store, client := newTestStore()
		client.On("UpdateItem", ctx, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

		assert.ErrorIs(t, store.MarkTokenUsed(ctx, "tok", "c1", now), storage.ErrConditionFailed)
	})

	t.Run("Storage Error", func(t *testing.T) {
		store, client := newTestStore()
		client.On("UpdateItem", ctx, mock.Anything).Return(nil, errors.New("boom"))

		err := store.MarkTokenUsed(ctx, "tok", "c1", now)

		assert.Contains(t, err.Error(), "failed to mark qr token used in DynamoDB")
	})
}

func TestListActiveTokens(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		store, client := newTestStore()
		item, _ := attributevalue.MarshalMap(testToken())
		client.On("Query", ctx, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return *in.IndexName == tokensByVendorExpiration &&
				strings.Contains(*in.KeyConditionExpression, "expires_at >= :now_unix")
		})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}, nil)

		tokens, err := store.ListActiveTokens(ctx, "v1", t0)

		require.NoError(t, err)
		require.Len(t, tokens, 1)
		assert.Equal(t, "tok", tokens[0].Token)
		client.AssertExpectations(t)
	})

	t.Run("Storage Error", func(t *testing.T) {
		store, client := newTestStore()
		client.On("Query", ctx, mock.Anything).Return(nil, errors.New("boom"))

		_, err := store.ListActiveTokens(ctx, "v1", t0)

		assert.Contains(t, err.Error(), "failed to query for active qr tokens")
	})
}
