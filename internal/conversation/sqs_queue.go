package conversation

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSQueue is the production queueClient, backed by one SQS queue. The
// dispatcher's long-poll receive loop maps directly onto SQS wait times.
type SQSQueue struct {
	client *sqs.Client
	url    *string
}

// NewSQSQueue wraps an SQS client and queue URL.
func NewSQSQueue(client *sqs.Client, queueURL string) *SQSQueue {
	if client == nil {
		panic("conversation: SQS client required")
	}
	if queueURL == "" {
		panic("conversation: SQS queue URL required")
	}
	return &SQSQueue{client: client, url: aws.String(queueURL)}
}

// Send publishes one job body.
func (q *SQSQueue) Send(ctx context.Context, body string) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    q.url,
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("conversation: sqs send: %w", err)
	}
	return nil
}

// Receive long-polls for up to maxMessages jobs.
func (q *SQSQueue) Receive(ctx context.Context, maxMessages, waitSeconds int) ([]queueMessage, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            q.url,
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: sqs receive: %w", err)
	}

	jobs := make([]queueMessage, len(out.Messages))
	for i, m := range out.Messages {
		jobs[i] = queueMessage{
			ID:            aws.ToString(m.MessageId),
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		}
	}
	return jobs, nil
}

// Delete acknowledges a processed job; an empty receipt handle is ignored.
func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      q.url,
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("conversation: sqs delete: %w", err)
	}
	return nil
}
