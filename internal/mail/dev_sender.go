package mail

import (
	"context"
	"log/slog"
)

// DevSender logs emails instead of delivering them. Used whenever Postmark
// credentials are absent so local runs never hit the wire.
type DevSender struct {
	log *slog.Logger
}

func NewDevSender(log *slog.Logger) *DevSender {
	return &DevSender{log: log}
}

func (d *DevSender) SendEmail(_ context.Context, params SendEmailParams) error {
	d.log.Info("dev mailer: email not sent",
		"to", params.SendTo,
		"subject", params.Subject,
		"tag", params.Tag,
	)
	return nil
}
