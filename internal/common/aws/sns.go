// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"citation-validator/internal/models"
)

// SNSPublisher is the subset of the SNS client the notifier uses.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSClient struct {
	client SNSPublisher
}

func NewSNSClient(ctx context.Context, region string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSClient{client: sns.NewFromConfig(cfg)}, nil
}

// NewSNSClientWith wraps an existing publisher.
func NewSNSClientWith(p SNSPublisher) *SNSClient {
	return &SNSClient{client: p}
}

func (s *SNSClient) Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	return s.client.Publish(ctx, input)
}

// JobNotifier announces terminal validation job states on an SNS topic.
type JobNotifier struct {
	client   *SNSClient
	topicARN string
}

func NewJobNotifier(client *SNSClient, topicARN string) *JobNotifier {
	return &JobNotifier{client: client, topicARN: topicARN}
}

type jobNotification struct {
	JobID          string           `json:"jobId"`
	CheckID        string           `json:"checkId"`
	Status         models.JobStatus `json:"status"`
	Tier2Completed int              `json:"tier2Completed"`
	Tier2Total     int              `json:"tier2Total"`
	Tier3Completed int              `json:"tier3Completed"`
	Tier3Total     int              `json:"tier3Total"`
	Error          string           `json:"error,omitempty"`
	TotalCost      float64          `json:"totalCost"`
}

// NotifyJobFinished publishes the job summary. Non-terminal jobs are ignored.
func (n *JobNotifier) NotifyJobFinished(ctx context.Context, job models.ValidationJob) error {
	if !job.Status.Terminal() {
		return nil
	}
	body, err := json.Marshal(jobNotification{
		JobID:          job.ID,
		CheckID:        job.CheckID,
		Status:         job.Status,
		Tier2Completed: job.Tier2Completed,
		Tier2Total:     job.Tier2Total,
		Tier3Completed: job.Tier3Completed,
		Tier3Total:     job.Tier3Total,
		Error:          job.Error,
		TotalCost:      job.Usage.Cost,
	})
	if err != nil {
		return fmt.Errorf("marshal job notification: %w", err)
	}

	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(fmt.Sprintf("Citation validation %s", job.Status)),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"status": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(job.Status)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish job notification: %w", err)
	}
	return nil
}
