package aws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citation-validator/internal/models"
)

type fakePublisher struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{}, nil
}

func TestJobNotifier_PublishesTerminalJob(t *testing.T) {
	pub := &fakePublisher{}
	n := NewJobNotifier(NewSNSClientWith(pub), "arn:aws:sns:us-east-1:123:validation")

	job := models.ValidationJob{
		ID:             "job-1",
		CheckID:        "doc-1",
		Status:         models.JobStatusCompleted,
		Tier2Completed: 3,
		Tier2Total:     3,
		Usage:          models.Usage{Cost: 0.25},
	}
	require.NoError(t, n.NotifyJobFinished(context.Background(), job))
	require.Len(t, pub.inputs, 1)

	in := pub.inputs[0]
	assert.Equal(t, "arn:aws:sns:us-east-1:123:validation", *in.TopicArn)
	assert.Equal(t, "completed", *in.MessageAttributes["status"].StringValue)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(*in.Message), &body))
	assert.Equal(t, "job-1", body["jobId"])
	assert.Equal(t, 0.25, body["totalCost"])
}

func TestJobNotifier_SkipsNonTerminal(t *testing.T) {
	pub := &fakePublisher{}
	n := NewJobNotifier(NewSNSClientWith(pub), "arn")

	require.NoError(t, n.NotifyJobFinished(context.Background(), models.ValidationJob{Status: models.JobStatusProcessing}))
	assert.Empty(t, pub.inputs)
}

func TestJobNotifier_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("throttled")}
	n := NewJobNotifier(NewSNSClientWith(pub), "arn")

	err := n.NotifyJobFinished(context.Background(), models.ValidationJob{ID: "j", Status: models.JobStatusFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
