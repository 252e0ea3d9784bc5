package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"lending-backoffice/internal/config"
	"log/slog"
	"time"

	"github.com/go-mail/mail/v2"
	"github.com/shopspring/decimal"
)

type Reminder struct {
	To            string
	Name          string
	LoanID        int64
	AmountDue     decimal.Decimal
	RepaymentDate time.Time
	PenaltyDays   int
}

type Receipt struct {
	To            string
	Name          string
	LoanID        int64
	Amount        decimal.Decimal
	CollectedDate time.Time
	AmountDue     decimal.Decimal
	LoanClosed    bool
}

type Sender interface {
	SendReminder(ctx context.Context, r Reminder) error
	SendReceipt(ctx context.Context, r Receipt) error
}

// Dialer is satisfied by *mail.Dialer.
type Dialer interface {
	DialAndSend(m ...*mail.Message) error
}

type EmailSender struct {
	dialer  Dialer
	from    string
	enabled bool
	logger  *slog.Logger
}

var _ Sender = (*EmailSender)(nil)

func NewEmailSender(cfg config.SMTPConfig, logger *slog.Logger) *EmailSender {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	return newEmailSender(d, cfg.From, cfg.Enabled, logger)
}

func newEmailSender(d Dialer, from string, enabled bool, logger *slog.Logger) *EmailSender {
	return &EmailSender{
		dialer:  d,
		from:    from,
		enabled: enabled,
		logger:  logger.With("component", "emailSender"),
	}
}

func (s *EmailSender) SendReminder(ctx context.Context, r Reminder) error {
	subject := fmt.Sprintf("Repayment reminder for loan #%d", r.LoanID)
	status := fmt.Sprintf("<p>Your repayment is due on <strong>%s</strong>.</p>", r.RepaymentDate.Format(time.DateOnly))
	if r.PenaltyDays > 0 {
		subject = fmt.Sprintf("Loan #%d is overdue", r.LoanID)
		status = fmt.Sprintf("<p>Your repayment was due on <strong>%s</strong> and is <strong>%d</strong> day(s) overdue. Penalty interest accrues daily.</p>",
			r.RepaymentDate.Format(time.DateOnly), r.PenaltyDays)
	}

	body := fmt.Sprintf(`
		<h1>Repayment reminder</h1>
		<p>Dear %s,</p>
		%s
		<p>Amount due today: <strong>%s</strong></p>
		<small>This is an automated message, please do not reply.</small>
	`, html.EscapeString(r.Name), status, r.AmountDue.StringFixed(2))

	return s.send(ctx, r.To, subject, body)
}

func (s *EmailSender) SendReceipt(ctx context.Context, r Receipt) error {
	subject := fmt.Sprintf("Payment received for loan #%d", r.LoanID)
	closing := fmt.Sprintf("<p>Remaining amount due: <strong>%s</strong></p>", r.AmountDue.StringFixed(2))
	if r.LoanClosed {
		closing = "<p>Your loan is now fully repaid and closed.</p>"
	}

	body := fmt.Sprintf(`
		<h1>Payment receipt</h1>
		<p>Dear %s,</p>
		<p>We received <strong>%s</strong> on <strong>%s</strong>.</p>
		%s
		<small>This is an automated message, please do not reply.</small>
	`, html.EscapeString(r.Name), r.Amount.StringFixed(2), r.CollectedDate.Format(time.DateOnly), closing)

	return s.send(ctx, r.To, subject, body)
}

func (s *EmailSender) send(ctx context.Context, to, subject, body string) error {
	if !s.enabled {
		s.logger.DebugContext(ctx, "Email sending disabled, skipping", "to", to, "subject", subject)
		return nil
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.ErrorContext(ctx, "Failed to send email", "to", to, "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.InfoContext(ctx, "Email sent", "to", to, "subject", subject)
	return nil
}
