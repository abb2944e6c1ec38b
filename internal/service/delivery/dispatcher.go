package delivery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jopa/salestracker/internal/domain/models"
	"github.com/jopa/salestracker/pkg/clients/mailer"
	"github.com/jopa/salestracker/pkg/clients/whatsapp"
)

// ErrNoRecipients is returned when the dispatcher has nobody to mail.
var ErrNoRecipients = errors.New("no report recipients configured")

// Dispatcher mails rendered reports and optionally posts a short digest.
type Dispatcher struct {
	sender     mailer.Sender
	recipients []string
	fromName   string
	notifier   whatsapp.Client
	notifyTo   string
	logger     *zap.Logger
}

// NewDispatcher builds a Dispatcher that mails recipients from fromName.
func NewDispatcher(sender mailer.Sender, recipients []string, fromName string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		sender:     sender,
		recipients: recipients,
		fromName:   fromName,
		logger:     logger,
	}
}

// WithDigest enables a WhatsApp text digest to "to" after each successful email.
func (d *Dispatcher) WithDigest(notifier whatsapp.Client, to string) *Dispatcher {
	d.notifier = notifier
	d.notifyTo = to
	return d
}

// Deliver verifies the mail transport, then sends the report PDF. A failed
// verification is logged and the send is still attempted.
func (d *Dispatcher) Deliver(ctx context.Context, doc models.ReportDocument, pdf []byte) error {
	if len(d.recipients) == 0 {
		return ErrNoRecipients
	}

	if err := d.sender.Verify(ctx); err != nil {
		d.logger.Warn("mail transport verification failed, attempting send anyway", zap.Error(err))
	} else {
		d.logger.Debug("mail transport verified")
	}

	msg := BuildMessage(doc, pdf, d.recipients, d.fromName)
	if err := d.sender.Send(ctx, msg); err != nil {
		return err
	}

	d.logger.Info("report emailed",
		zap.Uint("report_id", doc.Report.ID),
		zap.Strings("recipients", d.recipients),
		zap.Int("attachment_bytes", len(pdf)))

	d.sendDigest(ctx, doc)
	return nil
}

func (d *Dispatcher) sendDigest(ctx context.Context, doc models.ReportDocument) {
	if d.notifier == nil || d.notifyTo == "" {
		return
	}

	id, err := d.notifier.SendText(ctx, models.OutboundMessageRequest{To: d.notifyTo, Message: Digest(doc)})
	if err != nil {
		d.logger.Warn("whatsapp digest failed", zap.Uint("report_id", doc.Report.ID), zap.Error(err))
		return
	}
	d.logger.Info("whatsapp digest sent", zap.Uint("report_id", doc.Report.ID), zap.String("message_id", id))
}

// BuildMessage assembles the report email with the PDF attached.
func BuildMessage(doc models.ReportDocument, pdf []byte, recipients []string, fromName string) models.MailMessage {
	date := doc.Snapshot.Today.Start.Format("2006-01-02")
	return models.MailMessage{
		FromName: fromName,
		To:       recipients,
		Subject:  fmt.Sprintf("Daily Sales Report - %s", date),
		Body:     fmt.Sprintf("Please find attached the sales report for %s.", date),
		Attachments: []models.MailAttachment{{
			Filename:    fmt.Sprintf("Daily_Report_%s.pdf", date),
			ContentType: "application/pdf",
			Content:     pdf,
		}},
	}
}

// Digest is the short text summary posted to WhatsApp.
func Digest(doc models.ReportDocument) string {
	p := message.NewPrinter(language.English)
	s := doc.Snapshot
	return p.Sprintf("%s\nSales: KES %.2f (%d transactions)\nProfit: KES %.2f\nGrowth vs yesterday: %.2f%%\nTop product: %s\nLow stock items: %d",
		doc.Report.Title,
		s.TodayTotals.Total, s.TodayTotals.Count,
		s.TodayTotals.Profit,
		s.DayOverDayGrowthPct,
		s.TopProductName(),
		len(s.LowStockProducts))
}
