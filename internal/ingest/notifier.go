// Package ingest signals the transcoding worker after a raw upload lands.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/vidgate/vidgate/internal/metrics"
	"github.com/vidgate/vidgate/pkg/models"
)

// NotifyTimeout bounds the detached dispatch of a transcode notification.
const NotifyTimeout = 10 * time.Second

// SQSClient defines the SQS operations the notifier needs.
type SQSClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Notifier dispatches transcode jobs to the worker queue.
type Notifier struct {
	client   SQSClient
	queueURL string
	log      *slog.Logger
}

// NewNotifier creates a Notifier for the given queue.
func NewNotifier(client SQSClient, queueURL string, log *slog.Logger) *Notifier {
	return &Notifier{
		client:   client,
		queueURL: queueURL,
		log:      log,
	}
}

// Notify sends a transcode job message and waits for the result.
func (n *Notifier) Notify(ctx context.Context, job models.TranscodeJob) error {
	if err := job.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal transcode job: %w", err)
	}

	_, err = n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		metrics.TranscodeNotifications.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: queue transcode job: %w", models.ErrUpstream, err)
	}

	metrics.TranscodeNotifications.WithLabelValues("success").Inc()
	return nil
}

// NotifyAsync dispatches the job without blocking the caller. The goroutine
// runs on a detached context so a dropped upload connection cannot cancel
// the notification; failures are logged and never retried inline.
func (n *Notifier) NotifyAsync(job models.TranscodeJob) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), NotifyTimeout)
		defer cancel()

		if err := n.Notify(ctx, job); err != nil {
			n.log.Error("Failed to notify transcoding worker",
				"error", err,
				"videoId", job.VideoID,
			)
		}
	}()
}
