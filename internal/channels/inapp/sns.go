package inapp

import (
	"context"
	"strconv"

	"notification-workers/internal/common/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSService is the SNS client surface, narrowed for mocking.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSEmitter publishes events to a topic. Subscribers filter on the userId
// and event attributes.
type SNSEmitter struct {
	client   SNSService
	topicARN string
}

func NewSNSEmitter(client SNSService, topicARN string) *SNSEmitter {
	return &SNSEmitter{client: client, topicARN: topicARN}
}

func (e *SNSEmitter) Emit(ctx context.Context, userID int64, event string, payload interface{}) error {
	msg, err := newEnvelope(userID, event, payload)
	if err != nil {
		return errors.NewInvalidPayloadError(event, err)
	}

	_, err = e.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(e.topicARN),
		Message:  aws.String(string(msg)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"userId": {DataType: aws.String("Number"), StringValue: aws.String(strconv.FormatInt(userID, 10))},
			"event":  {DataType: aws.String("String"), StringValue: aws.String(event)},
		},
	})
	if err != nil {
		return errors.NewChannelDeliveryError("sns", err)
	}
	return nil
}
