package dynamodb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/storage"
)

func relationKey(key models.RelationKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"customer_id": strAV(key.CustomerID),
		"vendor_id":   strAV(key.VendorID),
	}
}

// GetRelation retrieves a relation by its (customer, vendor) key.
func (s *Store) GetRelation(ctx context.Context, key models.RelationKey) (*models.Relation, error) {
	input := &dynamodb.GetItemInput{
		TableName:      aws.String(s.Tables.Relations),
		Key:            relationKey(key),
		ConsistentRead: aws.Bool(true),
	}

	result, err := s.Client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get relation from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, storage.ErrNotFound
	}

	var rel models.Relation
	if err := attributevalue.UnmarshalMap(result.Item, &rel); err != nil {
		return nil, fmt.Errorf("failed to unmarshal relation: %w", err)
	}
	return &rel, nil
}

// FindRelationByPhone retrieves the relation a phone number holds with a vendor.
func (s *Store) FindRelationByPhone(ctx context.Context, phone, vendorID string) (*models.Relation, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.Relations),
		IndexName:              aws.String(relationsByPhoneIndex),
		KeyConditionExpression: aws.String("customer_phone = :phone AND vendor_id = :vendor"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":phone":  strAV(phone),
			":vendor": strAV(vendorID),
		},
		Limit: aws.Int32(1),
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query relation by phone: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, storage.ErrNotFound
	}

	var rel models.Relation
	if err := attributevalue.UnmarshalMap(result.Items[0], &rel); err != nil {
		return nil, fmt.Errorf("failed to unmarshal relation: %w", err)
	}
	return &rel, nil
}

// CountActiveRelationsByPhone counts active relations sharing a phone number across all vendors.
func (s *Store) CountActiveRelationsByPhone(ctx context.Context, phone string) (int, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.Tables.Relations),
		IndexName:              aws.String(relationsByPhoneIndex),
		KeyConditionExpression: aws.String("customer_phone = :phone"),
		FilterExpression:       aws.String("#status = :active"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":phone":  strAV(phone),
			":active": strAV(string(models.ACTIVE)),
		},
		Select: types.SelectCount,
	}

	total := 0
	for {
		result, err := s.Client.Query(ctx, input)
		if err != nil {
			return 0, fmt.Errorf("failed to count relations by phone: %w", err)
		}
		total += int(result.Count)
		if len(result.LastEvaluatedKey) == 0 {
			return total, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

// CreateRelation inserts a relation if none exists for its key.
func (s *Store) CreateRelation(ctx context.Context, rel *models.Relation) error {
	if rel.TrustScoreHistory == nil {
		rel.TrustScoreHistory = []models.ScoreEntry{}
	}
	relAV, err := attributevalue.MarshalMap(rel)
	if err != nil {
		return fmt.Errorf("failed to marshal relation: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(s.Tables.Relations),
		Item:                relAV,
		ConditionExpression: aws.String("attribute_not_exists(customer_id)"),
	}

	if _, err := s.Client.PutItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create relation in DynamoDB: %w", err)
	}
	return nil
}

// ApplyDraw debits the relation, inserts the transaction and consumes the QR token in one
// TransactWriteItems call. Item order is relation, transaction, token.
func (s *Store) ApplyDraw(ctx context.Context, in storage.DrawInput) error {
	txAV, err := attributevalue.MarshalMap(in.Transaction)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	items := []types.TransactWriteItem{
		{
			Update: &types.Update{
				TableName:        aws.String(s.Tables.Relations),
				Key:              relationKey(in.Key),
				UpdateExpression: aws.String("SET available_credit = available_credit - :amount, used_credit = used_credit + :amount, total_spent = total_spent + :amount, transaction_count = transaction_count + :one, version = version + :one, last_transaction_at = :now, updated_at = :now"),
				ConditionExpression: aws.String("attribute_exists(customer_id) AND #status = :active AND available_credit >= :amount"),
				ExpressionAttributeNames: map[string]string{
					"#status": "status",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":amount": numAV(in.Amount),
					":one":    numAV(1),
					":now":    timeAV(in.Now),
					":active": strAV(string(models.ACTIVE)),
				},
			},
		},
		{
			Put: &types.Put{
				TableName:           aws.String(s.Tables.Transactions),
				Item:                txAV,
				ConditionExpression: aws.String("attribute_not_exists(transaction_id)"),
			},
		},
	}
	if in.Token != "" {
		items = append(items, types.TransactWriteItem{
			Update: s.consumeTokenUpdate(in.Token, in.Key.CustomerID, in.Now, &in.Key.VendorID),
		})
	}

	slog.Log(ctx, slog.LevelDebug, "applying draw", "customer_id", in.Key.CustomerID, "vendor_id", in.Key.VendorID, "amount", in.Amount)

	_, err = s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		failed := failedConditions(err)
		switch {
		case failed[0]:
			return storage.ErrBalanceCheckFailed
		case failed[2]:
			return storage.ErrTokenCheckFailed
		case failed[1]:
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to execute draw transaction: %w", err)
	}
	return nil
}

// ApplyRepayment restores credit and settles the transaction in one TransactWriteItems call.
func (s *Store) ApplyRepayment(ctx context.Context, in storage.RepaymentInput) error {
	counter := "late_payments"
	if in.OnTime {
		counter = "on_time_payments"
	}

	items := []types.TransactWriteItem{
		{
			Update: &types.Update{
				TableName:           aws.String(s.Tables.Relations),
				Key:                 relationKey(in.Key),
				UpdateExpression:    aws.String(fmt.Sprintf("SET used_credit = used_credit - :restore, available_credit = available_credit + :restore, total_repaid = total_repaid + :amount, %s = %s + :one, version = version + :one, last_payment_at = :now, updated_at = :now", counter, counter)),
				ConditionExpression: aws.String("version = :version AND used_credit >= :restore"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":restore": numAV(in.Restore),
					":amount":  numAV(in.Amount),
					":one":     numAV(1),
					":version": numAV(in.ExpectedVersion),
					":now":     timeAV(in.Now),
				},
			},
		},
		{
			Update: &types.Update{
				TableName: aws.String(s.Tables.Transactions),
				Key: map[string]types.AttributeValue{
					"transaction_id": strAV(in.TransactionID),
				},
				UpdateExpression:    aws.String("SET payment_status = :paid, paid_date = :now, payment_method = :method, repaid_amount = :amount, updated_at = :now"),
				ConditionExpression: aws.String("payment_status IN (:pending, :overdue)"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":paid":    strAV(string(models.PAID)),
					":pending": strAV(string(models.PENDING)),
					":overdue": strAV(string(models.OVERDUE)),
					":method":  strAV(in.PaymentMethod),
					":amount":  numAV(in.Amount),
					":now":     timeAV(in.Now),
				},
			},
		},
	}

	_, err := s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		failed := failedConditions(err)
		switch {
		case failed[1]:
			return storage.ErrTransactionSettled
		case failed[0]:
			return storage.ErrVersionConflict
		}
		return fmt.Errorf("failed to execute repayment transaction: %w", err)
	}
	return nil
}

// IncrementDefaults adds one to the relation's default count and returns the updated relation.
func (s *Store) IncrementDefaults(ctx context.Context, key models.RelationKey, now time.Time) (*models.Relation, error) {
	input := &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.Tables.Relations),
		Key:                 relationKey(key),
		UpdateExpression:    aws.String("ADD default_count :one, version :one SET updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(customer_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": numAV(1),
			":now": timeAV(now),
		},
		ReturnValues: types.ReturnValueAllNew,
	}

	result, err := s.Client.UpdateItem(ctx, input)
	if err != nil {
		if isConditionFailed(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to increment default count in DynamoDB: %w", err)
	}

	var rel models.Relation
	if err := attributevalue.UnmarshalMap(result.Attributes, &rel); err != nil {
		return nil, fmt.Errorf("failed to unmarshal relation: %w", err)
	}
	return &rel, nil
}

// UpdateStatus moves the relation from one status to another.
func (s *Store) UpdateStatus(ctx context.Context, key models.RelationKey, from, to models.RelationStatus, now time.Time) error {
	input := &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.Tables.Relations),
		Key:                 relationKey(key),
		UpdateExpression:    aws.String("SET #status = :to, version = version + :one, updated_at = :now"),
		ConditionExpression: aws.String("#status = :from"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":to":   strAV(string(to)),
			":from": strAV(string(from)),
			":one":  numAV(1),
			":now":  timeAV(now),
		},
	}

	if _, err := s.Client.UpdateItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return storage.ErrConditionFailed
		}
		return fmt.Errorf("failed to update relation status in DynamoDB: %w", err)
	}
	return nil
}

// UpdateProfile changes the customer-facing fields of a relation that is not blocked.
func (s *Store) UpdateProfile(ctx context.Context, key models.RelationKey, customerName string, kycVerified bool, now time.Time) error {
	update := "SET kyc_verified = :kyc, version = version + :one, updated_at = :now"
	values := map[string]types.AttributeValue{
		":kyc":     boolAV(kycVerified),
		":one":     numAV(1),
		":now":     timeAV(now),
		":blocked": strAV(string(models.BLOCKED)),
	}
	if customerName != "" {
		update += ", customer_name = :name"
		values[":name"] = strAV(customerName)
	}

	input := &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.Tables.Relations),
		Key:                 relationKey(key),
		UpdateExpression:    aws.String(update),
		ConditionExpression: aws.String("attribute_exists(customer_id) AND #status <> :blocked"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: values,
	}

	if _, err := s.Client.UpdateItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return storage.ErrConditionFailed
		}
		return fmt.Errorf("failed to update relation profile in DynamoDB: %w", err)
	}
	return nil
}

// AppendScore sets the trust score and appends the entry to the history in one update,
// so concurrent recomputes never drop history entries.
func (s *Store) AppendScore(ctx context.Context, key models.RelationKey, entry models.ScoreEntry) error {
	entryAV, err := attributevalue.Marshal([]models.ScoreEntry{entry})
	if err != nil {
		return fmt.Errorf("failed to marshal score entry: %w", err)
	}

	input := &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.Tables.Relations),
		Key:                 relationKey(key),
		UpdateExpression:    aws.String("SET trust_score = :score, trust_score_history = list_append(if_not_exists(trust_score_history, :empty), :entry), updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(customer_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":score": numAV(int64(entry.Score)),
			":entry": entryAV,
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":now":   timeAV(entry.CalculatedAt),
		},
	}

	if _, err := s.Client.UpdateItem(ctx, input); err != nil {
		if isConditionFailed(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to append trust score in DynamoDB: %w", err)
	}
	return nil
}
