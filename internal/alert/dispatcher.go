// Package alert turns low-stock signals and negotiation requests into owner
// notifications. Notifications are stored inline; email goes through a
// bounded queue drained by one worker. Delivery is best-effort: failures are
// logged and never reach the operation that raised the alert.
package alert

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"omnistock/backend/internal/domain"
	"omnistock/backend/internal/stock"
)

const (
	TypeLowStockOnline  = "low_stock_online"
	TypeLowStockOffline = "low_stock_offline"
	TypeNegotiation     = "negotiation"
)

type NotificationWriter interface {
	CreateNotification(ctx context.Context, notification domain.Notification) (*domain.Notification, error)
}

const defaultQueueSize = 256

type outgoing struct {
	msg    Message
	fields []zap.Field
}

type Dispatcher struct {
	notifications NotificationWriter
	mailer        Mailer
	ownerEmail    string
	logger        *zap.Logger
	sendTimeout   time.Duration

	mu     sync.Mutex
	closed bool
	queue  chan outgoing
	done   chan struct{}
}

// NewDispatcher starts the email worker. Call Close to drain it.
func NewDispatcher(notifications NotificationWriter, mailer Mailer, ownerEmail string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mailer == nil {
		mailer = NewLogMailer(logger)
	}
	d := &Dispatcher{
		notifications: notifications,
		mailer:        mailer,
		ownerEmail:    strings.TrimSpace(ownerEmail),
		logger:        logger,
		sendTimeout:   15 * time.Second,
		queue:         make(chan outgoing, defaultQueueSize),
		done:          make(chan struct{}),
	}
	go d.run()
	return d
}

// Close stops accepting email and waits for the queued messages to be sent.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
	return nil
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for out := range d.queue {
		d.deliver(out.msg, out.fields)
	}
}

func sideLabel(channel domain.Channel) string {
	if channel == domain.ChannelOnline {
		return "Online"
	}
	return "Offline"
}

// LowStock records and emails one notification per alert.
func (d *Dispatcher) LowStock(ctx context.Context, alerts []stock.Alert) {
	for _, a := range alerts {
		side := sideLabel(a.Channel)
		kind := TypeLowStockOffline
		if a.Channel == domain.ChannelOnline {
			kind = TypeLowStockOnline
		}

		title := fmt.Sprintf("Low %s Stock Alert for %s (%s)", side, a.ItemName, a.Brand)
		d.record(ctx, domain.Notification{
			Title:    title,
			Message:  fmt.Sprintf("%s stock for %s (%s) is %d, below the limit of %d.", side, a.ItemName, a.Brand, a.Stock, a.Limit),
			Type:     kind,
			ItemName: a.ItemName,
			Brand:    a.Brand,
		})

		body, err := render(lowStockTemplate, struct {
			stock.Alert
			Side string
		}{Alert: a, Side: side})
		if err != nil {
			d.logger.Error("render low stock email", zap.Error(err))
			continue
		}
		d.send(Message{To: d.ownerEmail, Subject: title, HTMLBody: body},
			zap.String("item", a.ItemName), zap.String("brand", a.Brand), zap.String("channel", string(a.Channel)))
	}
}

// NegotiationSubmitted emails the owner with the customer as reply-to.
func (d *Dispatcher) NegotiationSubmitted(ctx context.Context, n domain.Negotiation) {
	title := fmt.Sprintf("Negotiation Request from %s", n.Customer.Name)
	d.record(ctx, domain.Notification{
		Title:   title,
		Message: fmt.Sprintf("%s asked for %s instead of %s.", n.Customer.Name, formatCents(n.NegotiatedTotalCents), formatCents(n.OriginalTotalCents)),
		Type:    TypeNegotiation,
	})

	body, err := render(negotiationTemplate, struct {
		domain.Negotiation
		OriginalTotal   string
		NegotiatedTotal string
	}{
		Negotiation:     n,
		OriginalTotal:   formatCents(n.OriginalTotalCents),
		NegotiatedTotal: formatCents(n.NegotiatedTotalCents),
	})
	if err != nil {
		d.logger.Error("render negotiation email", zap.Error(err))
		return
	}
	d.send(Message{
		To:       d.ownerEmail,
		ReplyTo:  n.Customer.Email,
		FromName: n.Customer.Name,
		Subject:  title,
		HTMLBody: body,
	}, zap.String("negotiation_id", n.ID))
}

func (d *Dispatcher) record(ctx context.Context, notification domain.Notification) {
	if d.notifications == nil {
		return
	}
	if _, err := d.notifications.CreateNotification(ctx, notification); err != nil {
		d.logger.Warn("store notification failed", zap.String("title", notification.Title), zap.Error(err))
	}
}

// send queues msg for the worker. A full or closed queue drops it.
func (d *Dispatcher) send(msg Message, fields ...zap.Field) {
	if msg.To == "" {
		d.logger.Debug("no owner email configured, skipping alert email", fields...)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Warn("alert dispatcher closed, dropping email", append(fields, zap.String("subject", msg.Subject))...)
		return
	}
	select {
	case d.queue <- outgoing{msg: msg, fields: fields}:
	default:
		d.logger.Warn("alert email queue full, dropping email", append(fields, zap.String("subject", msg.Subject))...)
	}
}

func (d *Dispatcher) deliver(msg Message, fields []zap.Field) {
	sendCtx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	if err := d.mailer.Send(sendCtx, msg); err != nil {
		d.logger.Warn("alert email failed", append(fields, zap.String("subject", msg.Subject), zap.Error(err))...)
		return
	}
	d.logger.Info("alert email sent", append(fields, zap.String("subject", msg.Subject))...)
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
