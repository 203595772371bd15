package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/pixmart/pixmart/internal/models"
	"github.com/sirupsen/logrus"
)

type UserRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

func NewUserRepository(client *dynamodb.Client, tableName string, logger *logrus.Logger) *UserRepository {
	return &UserRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func (r *UserRepository) FindByPhone(ctx context.Context, phoneNumber string) (*models.User, error) {
	user := &models.User{PhoneNumber: phoneNumber}

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: user.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: user.GetSK()},
		},
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to get user from DynamoDB")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if result.Item == nil {
		return nil, nil // User not found
	}

	var dbUser models.User
	if err := attributevalue.UnmarshalMap(result.Item, &dbUser); err != nil {
		r.logger.WithError(err).Error("Failed to unmarshal user from DynamoDB")
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return &dbUser, nil
}

func (r *UserRepository) Create(ctx context.Context, phoneNumber string) (*models.User, error) {
	now := time.Now()
	user := &models.User{
		UserID:      uuid.New().String(),
		PhoneNumber: phoneNumber,
		Nickname:    "", // Chosen during registration
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		r.logger.WithError(err).Error("Failed to marshal user for DynamoDB")
		return nil, fmt.Errorf("failed to marshal user: %w", err)
	}

	item["PK"] = &types.AttributeValueMemberS{Value: user.GetPK()}
	item["SK"] = &types.AttributeValueMemberS{Value: user.GetSK()}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})

	if err != nil {
		if _, ok := err.(*types.ConditionalCheckFailedException); ok {
			return nil, fmt.Errorf("user already exists")
		}
		r.logger.WithError(err).Error("Failed to create user in DynamoDB")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (r *UserRepository) UpdateNickname(ctx context.Context, phoneNumber, nickname string) error {
	user := &models.User{PhoneNumber: phoneNumber}
	updatedAt := time.Now()

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: user.GetPK()},
			"SK": &types.AttributeValueMemberS{Value: user.GetSK()},
		},
		UpdateExpression: aws.String("SET nickname = :nickname, updated_at = :updated_at"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":nickname":   &types.AttributeValueMemberS{Value: nickname},
			":updated_at": &types.AttributeValueMemberS{Value: updatedAt.Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to update nickname in DynamoDB")
		return fmt.Errorf("failed to update nickname: %w", err)
	}

	return nil
}
