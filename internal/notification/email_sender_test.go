package notification

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-mail/mail/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

type MockDialer struct {
	mock.Mock
	sent []*mail.Message
}

func (m *MockDialer) DialAndSend(msgs ...*mail.Message) error {
	m.sent = append(m.sent, msgs...)
	return m.Called(len(msgs)).Error(0)
}

func rendered(t *testing.T, m *mail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestEmailSender_SendReminder(t *testing.T) {
	ctx := context.Background()
	due := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	t.Run("upcoming repayment", func(t *testing.T) {
		d := new(MockDialer)
		d.On("DialAndSend", 1).Return(nil).Once()
		s := newEmailSender(d, "noreply@lender.test", true, logger)

		err := s.SendReminder(ctx, Reminder{To: "asha@example.com", Name: "Asha", LoanID: 7, AmountDue: decimal.RequireFromString("12900.5"), RepaymentDate: due})

		require.NoError(t, err)
		require.Len(t, d.sent, 1)
		assert.Equal(t, []string{"Repayment reminder for loan #7"}, d.sent[0].GetHeader("Subject"))
		assert.Equal(t, []string{"asha@example.com"}, d.sent[0].GetHeader("To"))
		assert.Contains(t, rendered(t, d.sent[0]), "12900.50")
	})

	t.Run("overdue repayment", func(t *testing.T) {
		d := new(MockDialer)
		d.On("DialAndSend", 1).Return(nil).Once()
		s := newEmailSender(d, "noreply@lender.test", true, logger)

		err := s.SendReminder(ctx, Reminder{To: "asha@example.com", Name: "<Asha>", LoanID: 7, AmountDue: decimal.NewFromInt(14250), RepaymentDate: due, PenaltyDays: 10})

		require.NoError(t, err)
		assert.Equal(t, []string{"Loan #7 is overdue"}, d.sent[0].GetHeader("Subject"))
		assert.NotContains(t, rendered(t, d.sent[0]), "<Asha>")
	})

	t.Run("disabled sender does not dial", func(t *testing.T) {
		d := new(MockDialer)
		s := newEmailSender(d, "noreply@lender.test", false, logger)

		assert.NoError(t, s.SendReminder(ctx, Reminder{To: "asha@example.com", LoanID: 7}))
		d.AssertNotCalled(t, "DialAndSend", mock.Anything)
	})

	t.Run("dial failure is returned", func(t *testing.T) {
		d := new(MockDialer)
		d.On("DialAndSend", 1).Return(errors.New("535 auth failed")).Once()
		s := newEmailSender(d, "noreply@lender.test", true, logger)

		err := s.SendReminder(ctx, Reminder{To: "asha@example.com", LoanID: 7})

		assert.ErrorContains(t, err, "failed to send email: 535 auth failed")
	})
}

func TestEmailSender_SendReceipt(t *testing.T) {
	ctx := context.Background()
	d := new(MockDialer)
	d.On("DialAndSend", 1).Return(nil).Twice()
	s := newEmailSender(d, "noreply@lender.test", true, logger)
	collected := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SendReceipt(ctx, Receipt{To: "a@example.com", Name: "A", LoanID: 7, Amount: decimal.NewFromInt(5000), CollectedDate: collected, AmountDue: decimal.NewFromInt(8625)}))
	require.NoError(t, s.SendReceipt(ctx, Receipt{To: "a@example.com", Name: "A", LoanID: 7, Amount: decimal.NewFromInt(8625), CollectedDate: collected, LoanClosed: true}))

	require.Len(t, d.sent, 2)
	assert.Equal(t, []string{"Payment received for loan #7"}, d.sent[0].GetHeader("Subject"))
	assert.Contains(t, rendered(t, d.sent[0]), "8625.00")
	assert.Contains(t, rendered(t, d.sent[1]), "fully repaid")
}
