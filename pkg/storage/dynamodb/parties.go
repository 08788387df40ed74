package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/trustline/pkg/models"
	"github.com/chris/trustline/pkg/storage"
)

// PutVendor stores or replaces a vendor record.
func (s *Store) PutVendor(ctx context.Context, vendor *models.Vendor) error {
	vendorAV, err := attributevalue.MarshalMap(vendor)
	if err != nil {
		return fmt.Errorf("failed to marshal vendor: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.Tables.Vendors),
		Item:      vendorAV,
	}
	if _, err := s.Client.PutItem(ctx, input); err != nil {
		return fmt.Errorf("failed to put vendor in DynamoDB: %w", err)
	}
	return nil
}

// GetVendor retrieves a vendor by its ID.
func (s *Store) GetVendor(ctx context.Context, vendorID string) (*models.Vendor, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(s.Tables.Vendors),
		Key: map[string]types.AttributeValue{
			"vendor_id": strAV(vendorID),
		},
	}

	result, err := s.Client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, storage.ErrNotFound
	}

	var vendor models.Vendor
	if err := attributevalue.UnmarshalMap(result.Item, &vendor); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vendor: %w", err)
	}
	return &vendor, nil
}

// EnsureCustomer inserts customer if its phone is unknown and returns the stored record either way.
func (s *Store) EnsureCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	customerAV, err := attributevalue.MarshalMap(customer)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal customer: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(s.Tables.Customers),
		Item:                customerAV,
		ConditionExpression: aws.String("attribute_not_exists(customer_phone)"),
	}

	_, err = s.Client.PutItem(ctx, input)
	if err == nil {
		return customer, nil
	}
	if isConditionFailed(err) {
		return s.GetCustomerByPhone(ctx, customer.Phone)
	}
	return nil, fmt.Errorf("failed to create customer in DynamoDB: %w", err)
}

// GetCustomerByPhone retrieves a customer by phone.
func (s *Store) GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(s.Tables.Customers),
		Key: map[string]types.AttributeValue{
			"customer_phone": strAV(phone),
		},
		ConsistentRead: aws.Bool(true),
	}

	result, err := s.Client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, storage.ErrNotFound
	}

	var customer models.Customer
	if err := attributevalue.UnmarshalMap(result.Item, &customer); err != nil {
		return nil, fmt.Errorf("failed to unmarshal customer: %w", err)
	}
	return &customer, nil
}
