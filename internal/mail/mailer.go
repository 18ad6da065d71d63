package mail

import "context"

// EmailSender delivers a single transactional email. Implementations are
// fire-and-forget from the caller's point of view: a failed send is the
// caller's to log, never to propagate.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

type SendEmailParams struct {
	SendTo   string `json:"send_to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
}
