package collector

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
)

const (
	// maxMessages is the batch size of one ReceiveMessage call.
	maxMessages = 5
	// waitTimeSeconds enables long polling.
	waitTimeSeconds = 10
	deleteTimeout   = 5 * time.Second
	// processingTimeout bounds storing a single report.
	processingTimeout = 30 * time.Second
	retryDelay        = 2 * time.Second
)

// SQSClient is the subset of the SQS API the consumer uses.
type SQSClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Consumer drains queued reports into an Ingestor.
type Consumer struct {
	client   SQSClient
	queueURL string
	ingestor *Ingestor
	logger   *slog.Logger
}

// NewConsumer creates a consumer for queueURL.
func NewConsumer(client SQSClient, queueURL string, ingestor *Ingestor, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		client:   client,
		queueURL: queueURL,
		ingestor: ingestor,
		logger:   logger,
	}
}

// Start polls the queue until ctx is canceled, then waits for in-flight
// messages.
func (c *Consumer) Start(ctx context.Context) {
	c.logger.Info("queue consumer started", slog.String("queue_url", c.queueURL))
	var wg sync.WaitGroup

	for ctx.Err() == nil {
		output, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: maxMessages,
			WaitTimeSeconds:     waitTimeSeconds,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			c.logger.Error("failed to receive messages", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
			case <-time.After(retryDelay):
			}
			continue
		}

		for _, msg := range output.Messages {
			wg.Add(1)
			go func(m types.Message) {
				defer wg.Done()
				msgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), processingTimeout)
				defer cancel()
				c.processMessage(msgCtx, &m)
			}(msg)
		}
	}

	wg.Wait()
	c.logger.Info("queue consumer stopped")
}

// processMessage stores one message. Malformed reports are deleted since
// retrying cannot fix them; storage failures are left for redelivery.
func (c *Consumer) processMessage(ctx context.Context, msg *types.Message) {
	if msg.Body == nil {
		c.logger.Error("received message with empty body")
		c.delete(msg)
		return
	}

	report, err := c.ingestor.IngestEnvelope(ctx, []byte(*msg.Body))
	switch {
	case err == nil:
		c.logger.Info("queued report stored",
			slog.String("id", report.ID),
			slog.String("type", report.Type),
		)
	case domain.IsKind(err, domain.ErrorKindSchemaValidation):
		c.logger.Error("dropping invalid queued report",
			slog.String("message_id", aws.ToString(msg.MessageId)),
			slog.String("error", err.Error()),
		)
	default:
		c.logger.Error("failed to store queued report, will retry",
			slog.String("message_id", aws.ToString(msg.MessageId)),
			slog.String("error", err.Error()),
		)
		return
	}
	c.delete(msg)
}

func (c *Consumer) delete(msg *types.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()

	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		c.logger.Error("failed to delete message",
			slog.String("message_id", aws.ToString(msg.MessageId)),
			slog.String("error", err.Error()),
		)
	}
}
