package external

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"garasiku/internal/types"
)

// mockSESAPI implements SESAPI for testing.
type mockSESAPI struct {
	sendEmailFunc func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

func (m *mockSESAPI) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	return m.sendEmailFunc(ctx, params, optFns...)
}

func TestSESSend_Success(t *testing.T) {
	var captured *sesv2.SendEmailInput

	api := &mockSESAPI{
		sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			captured = params
			return &sesv2.SendEmailOutput{MessageId: aws.String("ses-msg-abc123")}, nil
		},
	}

	client := NewSESClientWithAPI(api, SESClientConfig{ConfigSetName: "garasiku-tracking"})

	msgID, err := client.Send(context.Background(), digestInput())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if msgID != "ses-msg-abc123" {
		t.Errorf("expected message ID ses-msg-abc123, got %s", msgID)
	}

	if got := aws.ToString(captured.FromEmailAddress); got != "Garasiku Reminder <noreply@garasiku.id>" {
		t.Errorf("from = %q", got)
	}
	if len(captured.Destination.ToAddresses) != 2 {
		t.Errorf("expected both recipients on one message, got %v", captured.Destination.ToAddresses)
	}
	if got := aws.ToString(captured.Content.Simple.Subject.Data); got != "Weekly Service Task Reminder - Garasiku" {
		t.Errorf("subject = %q", got)
	}
	if captured.Content.Simple.Body.Html == nil || aws.ToString(captured.Content.Simple.Body.Html.Data) != "<h2>🔔 Weekly Reminder Garasiku</h2>" {
		t.Error("html body not set")
	}
	if captured.Content.Simple.Body.Text != nil {
		t.Error("digest mail has no plaintext part")
	}
	if aws.ToString(captured.ConfigurationSetName) != "garasiku-tracking" {
		t.Errorf("configuration set = %q", aws.ToString(captured.ConfigurationSetName))
	}
	if len(captured.EmailTags) != 1 || aws.ToString(captured.EmailTags[0].Value) != "run-20250115" {
		t.Errorf("unexpected tags: %+v", captured.EmailTags)
	}
}

func TestSESSend_NoConfigSetOrReference(t *testing.T) {
	var captured *sesv2.SendEmailInput
	api := &mockSESAPI{
		sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			captured = params
			return &sesv2.SendEmailOutput{}, nil
		},
	}

	input := digestInput()
	input.ReferenceID = ""
	input.From.Name = ""

	msgID, err := NewSESClientWithAPI(api, SESClientConfig{}).Send(context.Background(), input)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if msgID != "" {
		t.Errorf("expected empty message ID, got %q", msgID)
	}
	if captured.ConfigurationSetName != nil || captured.EmailTags != nil {
		t.Error("optional fields should be unset")
	}
	if aws.ToString(captured.FromEmailAddress) != "noreply@garasiku.id" {
		t.Errorf("from = %q", aws.ToString(captured.FromEmailAddress))
	}
}

func TestSESSend_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorCode
	}{
		{"rejected", &sestypes.MessageRejected{Message: aws.String("Email address is not verified")}, types.ErrCodeEmailBlocked},
		{"throttled", &sestypes.TooManyRequestsException{Message: aws.String("slow down")}, types.ErrCodeUpstreamRateLimited},
		{"paused", &sestypes.SendingPausedException{Message: aws.String("paused")}, types.ErrCodeUpstreamUnavailable},
		{"other", errors.New("dial tcp: i/o timeout"), types.ErrCodeUpstreamEmailProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockSESAPI{
				sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
					return nil, tt.err
				},
			}

			_, err := NewSESClientWithAPI(api, SESClientConfig{}).Send(context.Background(), digestInput())
			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected AppError, got %v", err)
			}
			if appErr.Code != tt.want {
				t.Errorf("code = %s, want %s", appErr.Code, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Error("underlying error should be wrapped")
			}
		})
	}
}
