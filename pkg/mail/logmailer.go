package mail

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/probuildhq/probuild/pkg/metrics"
)

// LogMailer is the fallback transport used when SMTP is not configured.
// It records every message to the log and always reports success, so flows
// that send email (invitations, password resets) keep working in development
// and in deployments without an email provider.
type LogMailer struct {
	log *zap.Logger
}

// NewLogMailer constructs the logging fallback mailer.
func NewLogMailer(log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{log: log.Named("mail")}
}

// Send logs the message instead of delivering it. It never fails.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	metrics.MailDeliveries.WithLabelValues("logged").Inc()
	m.log.Info("email delivery skipped (smtp not configured)",
		zap.String("to", strings.Join(msg.To, ", ")),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.Body)),
	)
	return nil
}

// New selects the SMTP transport when settings are complete and falls back to
// the logging mailer otherwise. It never returns an error for missing
// configuration; a process must not fail to start because email is absent.
func New(cfg SMTPSettings, log *zap.Logger) Mailer {
	if !cfg.Configured() {
		return NewLogMailer(log)
	}

	mailer, err := NewSMTPMailer(cfg)
	if err != nil {
		if log != nil {
			log.Warn("smtp misconfigured, falling back to log mailer", zap.Error(err))
		}
		return NewLogMailer(log)
	}
	return mailer
}
