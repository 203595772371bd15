package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
)

// CreditRepository tracks per-user credit balances. Additions use an atomic
// ADD update so a purchase and a concurrent spend never lose an increment.
type CreditRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

func NewCreditRepository(client *dynamodb.Client, tableName string, logger *logrus.Logger) *CreditRepository {
	return &CreditRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func creditKey(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("CREDIT#%s", userID)},
		"SK": &types.AttributeValueMemberS{Value: "BALANCE"},
	}
}

// Balance returns the user's current credit balance; a user with no credit
// row has balance zero.
func (r *CreditRepository) Balance(ctx context.Context, userID string) (int64, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       creditKey(userID),
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to get credit balance from DynamoDB")
		return 0, fmt.Errorf("failed to get credit balance: %w", err)
	}

	if result.Item == nil {
		return 0, nil
	}

	attr, ok := result.Item["Balance"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("credit balance attribute missing for user %s", userID)
	}

	balance, err := strconv.ParseInt(attr.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse credit balance: %w", err)
	}

	return balance, nil
}

// Add credits amount to the user's balance and returns the new total.
func (r *CreditRepository) Add(ctx context.Context, userID string, amount int64) (int64, error) {
	result, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              creditKey(userID),
		UpdateExpression: aws.String("ADD Balance :amount SET UpdatedAt = :updated_at"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":amount":     &types.AttributeValueMemberN{Value: strconv.FormatInt(amount, 10)},
			":updated_at": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to add credits in DynamoDB")
		return 0, fmt.Errorf("failed to add credits: %w", err)
	}

	attr, ok := result.Attributes["Balance"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("credit balance missing from update result")
	}

	balance, err := strconv.ParseInt(attr.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse credit balance: %w", err)
	}

	return balance, nil
}
