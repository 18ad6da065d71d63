package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

var ErrSendFailed = errors.New("failed to send email")

type postmarkSender struct {
	client *postmark.Client
	from   string
}

// NewPostmarkSender creates a Postmark-backed sender. Both tokens are
// required; a half-configured mailer should fail at startup, not at the
// first booking confirmation.
func NewPostmarkSender(serverToken, accountToken, from string) (EmailSender, error) {
	if serverToken == "" || accountToken == "" {
		return nil, fmt.Errorf("postmark tokens are not configured")
	}
	if from == "" {
		return nil, fmt.Errorf("sender email is not configured")
	}
	return &postmarkSender{
		client: postmark.NewClient(serverToken, accountToken),
		from:   from,
	}, nil
}

func (s *postmarkSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.from,
		To:       params.SendTo,
		Subject:  params.Subject,
		Tag:      params.Tag,
		HTMLBody: params.BodyHTML,
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrSendFailed, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
