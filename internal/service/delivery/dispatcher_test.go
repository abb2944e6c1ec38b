package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jopa/salestracker/internal/domain/models"
)

type fakeSender struct {
	verifyErr error
	sendErr   error
	verified  int
	sent      []models.MailMessage
}

func (f *fakeSender) Verify(context.Context) error {
	f.verified++
	return f.verifyErr
}

func (f *fakeSender) Send(_ context.Context, msg models.MailMessage) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeNotifier struct {
	err  error
	sent []models.OutboundMessageRequest
}

func (f *fakeNotifier) SendText(_ context.Context, req models.OutboundMessageRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, req)
	return "wamid.1", nil
}

func document() models.ReportDocument {
	loc, _ := time.LoadLocation("Africa/Nairobi")
	today := models.DayWindow(time.Date(2025, 3, 10, 12, 0, 0, 0, loc), loc)
	return models.ReportDocument{
		Report: models.Report{ID: 42, Title: "Daily Report - 2025-03-10", TotalSales: 177.5, TotalProfit: 45},
		Snapshot: models.MetricsSnapshot{
			Today:               today,
			TodayTotals:         models.SalesTotals{Total: 177.5, Profit: 45, Count: 2},
			DayOverDayGrowthPct: 17750,
		},
	}
}

func TestDeliver_SendsReport(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, []string{"owner@example.com"}, "Jopa Sales System", nil)

	require.NoError(t, d.Deliver(context.Background(), document(), []byte("%PDF")))

	assert.Equal(t, 1, sender.verified)
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "Daily Sales Report - 2025-03-10", msg.Subject)
	assert.Equal(t, []string{"owner@example.com"}, msg.To)
	assert.Equal(t, "Jopa Sales System", msg.FromName)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "Daily_Report_2025-03-10.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, []byte("%PDF"), msg.Attachments[0].Content)
}

func TestDeliver_VerifyFailureIsNotFatal(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sender := &fakeSender{verifyErr: errors.New("auth failed")}
	d := NewDispatcher(sender, []string{"owner@example.com"}, "Jopa", zap.New(core))

	require.NoError(t, d.Deliver(context.Background(), document(), []byte("%PDF")))
	assert.Len(t, sender.sent, 1)
	assert.Equal(t, 1, logs.FilterMessageSnippet("verification failed").Len())
}

func TestDeliver_SendFailure(t *testing.T) {
	sendErr := errors.New("554 rejected")
	sender := &fakeSender{sendErr: sendErr}
	notifier := &fakeNotifier{}
	d := NewDispatcher(sender, []string{"owner@example.com"}, "Jopa", nil).WithDigest(notifier, "254700000000")

	err := d.Deliver(context.Background(), document(), []byte("%PDF"))
	assert.ErrorIs(t, err, sendErr)
	assert.Empty(t, notifier.sent)
}

func TestDeliver_NoRecipients(t *testing.T) {
	sender := &fakeSender{}
	err := NewDispatcher(sender, nil, "Jopa", nil).Deliver(context.Background(), document(), []byte("%PDF"))
	assert.ErrorIs(t, err, ErrNoRecipients)
	assert.Zero(t, sender.verified)
}

func TestDeliver_Digest(t *testing.T) {
	notifier := &fakeNotifier{}
	d := NewDispatcher(&fakeSender{}, []string{"owner@example.com"}, "Jopa", nil).WithDigest(notifier, "254700000000")

	require.NoError(t, d.Deliver(context.Background(), document(), []byte("%PDF")))
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "254700000000", notifier.sent[0].To)
	assert.Contains(t, notifier.sent[0].Message, "Sales: KES 177.50 (2 transactions)")
	assert.Contains(t, notifier.sent[0].Message, "17,750.00%")
	assert.Contains(t, notifier.sent[0].Message, "Top product: N/A")

	failing := &fakeNotifier{err: errors.New("token expired")}
	d = NewDispatcher(&fakeSender{}, []string{"owner@example.com"}, "Jopa", nil).WithDigest(failing, "254700000000")
	assert.NoError(t, d.Deliver(context.Background(), document(), []byte("%PDF")))
}
