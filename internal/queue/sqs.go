package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// SQSOptions tunes long polling and the visibility timeout that acts as the lease.
type SQSOptions struct {
	WaitSeconds       int32
	VisibilitySeconds int32
}

// SQSQueue is a Queue over one SQS queue URL. Commit deletes the message and
// Release makes it visible again immediately.
type SQSQueue struct {
	client   sqsAPI
	queueURL string
	opts     SQSOptions
}

// NewSQSQueue constructs an SQS-backed queue.
func NewSQSQueue(ctx context.Context, region, queueURL string, opts SQSOptions) (*SQSQueue, error) {
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return nil, fmt.Errorf("sqs queue url is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSQSQueue(sqs.NewFromConfig(cfg), queueURL, opts), nil
}

func newSQSQueue(client sqsAPI, queueURL string, opts SQSOptions) *SQSQueue {
	if opts.WaitSeconds < 0 || opts.WaitSeconds > 20 {
		opts.WaitSeconds = 20
	}
	if opts.VisibilitySeconds <= 0 {
		opts.VisibilitySeconds = 1200
	}
	return &SQSQueue{client: client, queueURL: queueURL, opts: opts}
}

// Send delivers a message to the configured SQS queue.
func (s *SQSQueue) Send(ctx context.Context, body []byte) error {
	_, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	return nil
}

func (s *SQSQueue) Receive(ctx context.Context) (*Delivery, error) {
	resp, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(s.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     s.opts.WaitSeconds,
		VisibilityTimeout:   s.opts.VisibilitySeconds,
		AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive message: %w", err)
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	msg := resp.Messages[0]
	receipt := aws.ToString(msg.ReceiptHandle)
	return NewDelivery(aws.ToString(msg.MessageId), []byte(aws.ToString(msg.Body)), receiveCount(msg),
		func(ctx context.Context) error {
			_, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(s.queueURL),
				ReceiptHandle: aws.String(receipt),
			})
			if err != nil {
				return fmt.Errorf("sqs delete message: %w", err)
			}
			return nil
		},
		func(ctx context.Context) error {
			_, err := s.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
				QueueUrl:          aws.String(s.queueURL),
				ReceiptHandle:     aws.String(receipt),
				VisibilityTimeout: 0,
			})
			if err != nil {
				return fmt.Errorf("sqs change visibility: %w", err)
			}
			return nil
		},
	), nil
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	parsed, err := strconv.Atoi(msg.Attributes["ApproximateReceiveCount"])
	if err != nil {
		return 0
	}
	return parsed
}
