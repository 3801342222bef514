package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SES sends through Amazon SES v2. SES has no bulk endpoint for pre-rendered
// content, so a batch is a sequence of SendEmail calls; throttling on any
// call surfaces as ErrRateLimited for the whole batch.
type SES struct {
	client *sesv2.Client
}

// NewSES builds an SES provider for the given region. Static credentials are
// optional; with empty keys the default AWS credential chain is used.
func NewSES(ctx context.Context, region, accessKey, secretKey string) (*SES, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SES{client: sesv2.NewFromConfig(cfg)}, nil
}

func (s *SES) Name() string { return "ses" }

func (s *SES) BatchSend(ctx context.Context, items []Item) ([]string, error) {
	ids := make([]string, 0, len(items))
	for i, item := range items {
		out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
			FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", item.FromName, item.From)),
			Destination: &types.Destination{
				ToAddresses: []string{item.To},
			},
			Content: &types.EmailContent{
				Simple: &types.Message{
					Subject: &types.Content{Data: aws.String(item.Subject)},
					Body: &types.Body{
						Html: &types.Content{Data: aws.String(item.HTML)},
						Text: &types.Content{Data: aws.String(item.Text)},
					},
				},
			},
		})
		if err != nil {
			var throttled *types.TooManyRequestsException
			if errors.As(err, &throttled) {
				return nil, ErrRateLimited
			}
			return nil, fmt.Errorf("item %d (%s): %w", i, item.To, err)
		}
		ids = append(ids, aws.ToString(out.MessageId))
	}
	return ids, nil
}
