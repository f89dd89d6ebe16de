package escalate

import (
	"context"
	"encoding/json"

	perr "gatekeep/internal/platform/errors"
	"gatekeep/internal/platform/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSAPI is the slice of the SNS client the publisher uses (seam for tests)
type SNSAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher publishes escalation events to one SNS topic
type SNSPublisher struct {
	api      SNSAPI
	topicARN string
	log      *logger.Logger
}

// NewSNS builds a publisher over the ambient AWS credential chain
func NewSNS(ctx context.Context, topicARN string) (*SNSPublisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "load aws config")
	}
	return NewSNSWithAPI(sns.NewFromConfig(cfg), topicARN), nil
}

// NewSNSWithAPI builds a publisher over an explicit client (tests)
func NewSNSWithAPI(api SNSAPI, topicARN string) *SNSPublisher {
	return &SNSPublisher{api: api, topicARN: topicARN, log: logger.Named("escalate")}
}

// Publish serializes the event as JSON and publishes it, returning the SNS
// message id
func (p *SNSPublisher) Publish(ctx context.Context, ev Event) (string, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeEscalation, "marshal escalation event")
	}

	out, err := p.api.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		p.log.Error().Err(err).Str("topic", p.topicARN).Msg("escalation publish failed")
		return "", perr.Wrap(err, perr.ErrorCodeEscalation, "publish escalation event")
	}

	id := aws.ToString(out.MessageId)
	p.log.Info().Str("topic", p.topicARN).Str("message_id", id).Msg("escalation published")
	return id, nil
}
