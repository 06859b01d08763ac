package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
)

type mockSQSClient struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (m *mockSQSClient) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSHandler(t *testing.T) {
	client := &mockSQSClient{}
	handler := SQSHandler(client, "https://sqs.us-east-1.amazonaws.com/123/reports")

	if err := handler(context.Background(), jsRecord(), domain.ReportConfig{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.inputs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(client.inputs))
	}

	in := client.inputs[0]
	if aws.ToString(in.QueueUrl) != "https://sqs.us-east-1.amazonaws.com/123/reports" {
		t.Errorf("queue url = %s", aws.ToString(in.QueueUrl))
	}
	if attr := in.MessageAttributes["exceptionType"]; aws.ToString(attr.StringValue) != "js" {
		t.Errorf("exceptionType attribute = %q", aws.ToString(attr.StringValue))
	}

	var env struct {
		SchemaVersion string          `json:"schemaVersion"`
		MessageType   string          `json:"messageType"`
		Message       json.RawMessage `json:"message"`
		Metadata      EnvelopeMetadata
	}
	if err := json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &env); err != nil {
		t.Fatalf("body is not an envelope: %v", err)
	}
	if env.SchemaVersion != "1.0" || env.MessageType != "exceptionReport" {
		t.Errorf("unexpected envelope header: %+v", env)
	}
	if env.Metadata.MessageID == "" || env.Metadata.ExceptionType != "js" {
		t.Errorf("unexpected metadata: %+v", env.Metadata)
	}
}

func TestSQSHandler_ThroughReporter(t *testing.T) {
	client := &mockSQSClient{err: errors.New("throttled")}
	r := NewReporter(WithLogger(quietLogger()))

	err := r.Deliver(context.Background(), jsRecord(), domain.ReportConfig{HandleReport: SQSHandler(client, "q")})
	if !domain.IsKind(err, domain.ErrorKindDelivery) {
		t.Errorf("expected delivery fault, got %v", err)
	}
	if !errors.Is(err, client.err) {
		t.Error("queue error was not wrapped")
	}
}
