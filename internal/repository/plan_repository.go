package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pixmart/pixmart/internal/models"
	"github.com/sirupsen/logrus"
)

// PlanRepository reads the credit-pack catalog. Plans live under a single
// partition so one query returns the whole catalog.
type PlanRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

func NewPlanRepository(client *dynamodb.Client, tableName string, logger *logrus.Logger) *PlanRepository {
	return &PlanRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// ListActive returns the active catalog entries. An empty slice is not an
// error; callers fall back to the built-in catalog.
func (r *PlanRepository) ListActive(ctx context.Context) ([]models.Plan, error) {
	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		FilterExpression:       aws.String("active = :active"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: "PLAN"},
			":active": &types.AttributeValueMemberBOOL{Value: true},
		},
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to query plans from DynamoDB")
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}

	plans := make([]models.Plan, 0, len(result.Items))
	for _, item := range result.Items {
		var plan models.Plan
		if err := attributevalue.UnmarshalMap(item, &plan); err != nil {
			r.logger.WithError(err).Error("Failed to unmarshal plan from DynamoDB")
			return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
		}
		plans = append(plans, plan)
	}

	return plans, nil
}
