package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/vidgate/vidgate/pkg/models"
)

// VideoRepository handles video metadata storage in DynamoDB.
type VideoRepository struct {
	client    *dynamodb.Client
	tableName string
}

// NewVideoRepository creates a VideoRepository from an existing DynamoDB client.
func NewVideoRepository(client *dynamodb.Client, tableName string) *VideoRepository {
	return &VideoRepository{
		client:    client,
		tableName: tableName,
	}
}

func videoKey(videoID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("VIDEO#%s", videoID)},
		"sk": &types.AttributeValueMemberS{Value: "METADATA"},
	}
}

// Create persists a new video metadata record. The record starts in the
// "uploaded" state; later transitions belong to the transcoding worker.
func (r *VideoRepository) Create(ctx context.Context, video *models.Video) error {
	now := time.Now().UTC().Format(time.RFC3339)

	video.PK = fmt.Sprintf("VIDEO#%s", video.VideoID)
	video.SK = "METADATA"
	video.CreatedAt = now
	video.UpdatedAt = now
	if video.Status == "" {
		video.Status = models.StatusUploaded
	}

	item, err := attributevalue.MarshalMap(video)
	if err != nil {
		return fmt.Errorf("failed to marshal video: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: video already exists: %s", models.ErrPersistence, video.VideoID)
		}
		return fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}

	return nil
}

// Get retrieves video metadata by ID.
func (r *VideoRepository) Get(ctx context.Context, videoID string) (*models.Video, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       videoKey(videoID),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get video: %w", models.ErrUpstream, err)
	}

	if result.Item == nil {
		return nil, models.ErrVideoNotFound
	}

	var video models.Video
	if err := attributevalue.UnmarshalMap(result.Item, &video); err != nil {
		return nil, fmt.Errorf("failed to unmarshal video: %w", err)
	}

	return &video, nil
}
