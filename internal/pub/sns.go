package pub

import (
	"context"

	intTypes "inboxlens/internal/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/goccy/go-json"
)

type snsNotifier struct {
	cli *sns.Client
	arn string
}

// NewSNS builds a notifier publishing result events to an SNS topic, for
// hosts that consume fan-out through a queue instead of a callback URL.
func NewSNS(c *sns.Client, arn string) *snsNotifier {
	return &snsNotifier{cli: c, arn: arn}
}

func (s *snsNotifier) Notify(ctx context.Context, key string, data intTypes.ThreadData) error {
	payload, err := json.Marshal(resultEvent{ID: key, Data: data})
	if err != nil {
		return err
	}
	_, err = s.cli.Publish(ctx, &sns.PublishInput{
		TopicArn: &s.arn,
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"content-type": {DataType: aws.String("String"), StringValue: aws.String("application/json")},
		},
	})
	return err
}
