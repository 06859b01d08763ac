package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
)

const (
	envelopeSchemaVersion = "1.0"
	reportMessageType     = "exceptionReport"
	reportMessageVersion  = "1.0"
)

// SQSClient is the subset of the SQS API the handler uses.
type SQSClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Envelope wraps a report on the queue.
type Envelope struct {
	SchemaVersion  string              `json:"schemaVersion"`
	MessageType    string              `json:"messageType"`
	MessageVersion string              `json:"messageVersion"`
	Message        *domain.FlushedData `json:"message"`
	Metadata       EnvelopeMetadata    `json:"metadata"`
}

// EnvelopeMetadata describes the queued message.
type EnvelopeMetadata struct {
	MessageID     string `json:"messageId"`
	ExceptionType string `json:"exceptionType"`
}

// SQSHandler returns a report callback that enqueues each report on queueURL.
func SQSHandler(client SQSClient, queueURL string) domain.HandleReportFunc {
	return func(ctx context.Context, data *domain.FlushedData, _ domain.ReportConfig) error {
		var typ string
		if data.Flushed != nil {
			typ = string(data.Flushed.ExceptionType())
		}

		body, err := json.Marshal(Envelope{
			SchemaVersion:  envelopeSchemaVersion,
			MessageType:    reportMessageType,
			MessageVersion: reportMessageVersion,
			Message:        data,
			Metadata: EnvelopeMetadata{
				MessageID:     uuid.NewString(),
				ExceptionType: typ,
			},
		})
		if err != nil {
			return fmt.Errorf("encode envelope: %w", err)
		}

		input := &sqs.SendMessageInput{
			QueueUrl:    aws.String(queueURL),
			MessageBody: aws.String(string(body)),
		}
		if typ != "" {
			input.MessageAttributes = map[string]types.MessageAttributeValue{
				"exceptionType": {
					DataType:    aws.String("String"),
					StringValue: aws.String(typ),
				},
			}
		}
		if _, err := client.SendMessage(ctx, input); err != nil {
			return fmt.Errorf("send to queue: %w", err)
		}
		return nil
	}
}
