package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/vidgate/vidgate/pkg/models"
)

// ShareRepository handles share-token records in DynamoDB. Records share the
// video table, keyed SHARE#<token> so redemption is a single point lookup.
type ShareRepository struct {
	client    *dynamodb.Client
	tableName string
}

// NewShareRepository creates a ShareRepository from an existing DynamoDB client.
func NewShareRepository(client *dynamodb.Client, tableName string) *ShareRepository {
	return &ShareRepository{
		client:    client,
		tableName: tableName,
	}
}

// Create persists a share-token record. Tokens are write-once; a key
// collision is a persistence failure, not an update.
func (r *ShareRepository) Create(ctx context.Context, share *models.ShareToken) error {
	share.PK = fmt.Sprintf("SHARE#%s", share.Token)
	share.SK = "METADATA"
	share.CreatedAt = time.Now().UTC().Format(time.RFC3339)

	item, err := attributevalue.MarshalMap(share)
	if err != nil {
		return fmt.Errorf("failed to marshal share: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}

	return nil
}

// Get retrieves a share-token record by its token value.
func (r *ShareRepository) Get(ctx context.Context, token string) (*models.ShareToken, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("SHARE#%s", token)},
			"sk": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get share: %w", models.ErrUpstream, err)
	}

	if result.Item == nil {
		return nil, models.ErrShareNotFound
	}

	var share models.ShareToken
	if err := attributevalue.UnmarshalMap(result.Item, &share); err != nil {
		return nil, fmt.Errorf("failed to unmarshal share: %w", err)
	}

	return &share, nil
}
