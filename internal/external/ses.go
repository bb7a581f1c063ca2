package external

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"garasiku/internal/types"
)

// SESAPI is the slice of the SES v2 client the digest sender needs.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESClientConfig configures an SESClient. ConfigSetName is optional.
type SESClientConfig struct {
	ConfigSetName string
	Logger        *slog.Logger
}

// SESClient sends digests through AWS SES v2 using the Lambda execution
// role. The SDK handles its own retries.
type SESClient struct {
	api           SESAPI
	configSetName string
	logger        *slog.Logger
}

// NewSESClient builds an SESClient from an AWS config.
func NewSESClient(awsCfg aws.Config, cfg SESClientConfig) *SESClient {
	return NewSESClientWithAPI(sesv2.NewFromConfig(awsCfg), cfg)
}

// NewSESClientWithAPI builds an SESClient around api.
func NewSESClientWithAPI(api SESAPI, cfg SESClientConfig) *SESClient {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SESClient{api: api, configSetName: cfg.ConfigSetName, logger: cfg.Logger}
}

// Send delivers one digest with every address in input.To as a direct
// recipient. The run ID travels as the ReferenceID message tag.
func (s *SESClient) Send(ctx context.Context, input types.SendInput) (string, error) {
	out, err := s.api.SendEmail(ctx, s.buildInput(input))
	if err != nil {
		s.logger.WarnContext(ctx, "SES send failed", "subject", input.Subject, "error", err)
		return "", mapSESError(err)
	}
	return aws.ToString(out.MessageId), nil
}

func (s *SESClient) buildInput(input types.SendInput) *sesv2.SendEmailInput {
	utf8 := func(v string) *sestypes.Content {
		return &sestypes.Content{Data: aws.String(v), Charset: aws.String("UTF-8")}
	}

	msg := &sestypes.Message{Subject: utf8(input.Subject), Body: &sestypes.Body{}}
	if input.BodyHTML != "" {
		msg.Body.Html = utf8(input.BodyHTML)
	}

	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(input.From.String()),
		Destination:      &sestypes.Destination{ToAddresses: input.To},
		Content:          &sestypes.EmailContent{Simple: msg},
	}
	if s.configSetName != "" {
		in.ConfigurationSetName = aws.String(s.configSetName)
	}
	// Tag values allow only [A-Za-z0-9_-]; run IDs are UUIDs.
	if input.ReferenceID != "" {
		in.EmailTags = []sestypes.MessageTag{{Name: aws.String("ReferenceID"), Value: aws.String(input.ReferenceID)}}
	}
	return in
}

// mapSESError classifies SES failures. A rejected message (unverified or
// suppressed address) is blocked; throttling and a paused account are
// transient.
func mapSESError(err error) error {
	var rejected *sestypes.MessageRejected
	var throttled *sestypes.TooManyRequestsException
	var paused *sestypes.SendingPausedException

	switch {
	case errors.As(err, &rejected):
		return types.NewAppError(types.ErrCodeEmailBlocked, "SES rejected the digest: "+err.Error(), err)
	case errors.As(err, &throttled):
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "SES rate limit exceeded", err)
	case errors.As(err, &paused):
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "SES account sending is paused", err)
	default:
		return types.NewAppError(types.ErrCodeUpstreamEmailProvider, "SES send failed", err)
	}
}

var _ EmailProvider = (*SESClient)(nil)
