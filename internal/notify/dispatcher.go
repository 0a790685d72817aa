package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tapcard/cardshop/internal/apperr"
	"github.com/tapcard/cardshop/internal/logger"
	"github.com/tapcard/cardshop/internal/orders"
)

// Transport delivers one rendered message and returns the provider id.
type Transport interface {
	Send(ctx context.Context, to, subject, html string) (string, error)
}

type Dispatcher struct {
	renderer      *Renderer
	transport     Transport
	operator      string
	defaultLocale string
}

var _ orders.Notifier = (*Dispatcher)(nil)

// NewDispatcher returns a dispatcher that copies order_confirmation and
// admin_notification to operator. The operator copy uses defaultLocale.
func NewDispatcher(r *Renderer, t Transport, operator, defaultLocale string) *Dispatcher {
	return &Dispatcher{renderer: r, transport: t, operator: operator, defaultLocale: defaultLocale}
}

func operatorCopy(ev orders.NotificationEvent) bool {
	return ev == orders.NotifyOrderConfirmation || ev == orders.NotifyAdmin
}

func customerCopy(ev orders.NotificationEvent) bool {
	return ev != orders.NotifyAdmin
}

// Notify renders and sends the message for ev. A missing customer email is
// not an error. Both sends are attempted even if one fails; failures come
// back as a single Transport error.
func (d *Dispatcher) Notify(ctx context.Context, o *orders.Order, ev orders.NotificationEvent, locale string) (orders.Notification, error) {
	const op = "notify.Dispatch"
	if o == nil {
		return orders.Notification{}, apperr.Validation(op, "order is required")
	}
	if !ev.Valid() {
		return orders.Notification{}, apperr.Validation(op, "unknown notification event %q", ev)
	}
	if locale == "" {
		locale = o.Locale
	}
	loc := ResolveLocale(locale, d.defaultLocale)
	res := orders.Notification{Event: ev, Locale: loc.Code}

	var errs []error
	if customerCopy(ev) {
		if o.Customer.Email == "" {
			res.CustomerSkipped = true
			logger.Debug("customer notification skipped, no email",
				zap.String("order_number", o.OrderNumber), zap.String("event", string(ev)))
		} else {
			id, err := d.send(ctx, o, ev, loc, o.Customer.Email, false)
			if err != nil {
				errs = append(errs, fmt.Errorf("customer: %w", err))
			}
			res.CustomerMessageID = id
		}
	}
	if operatorCopy(ev) && d.operator != "" {
		id, err := d.send(ctx, o, ev, ResolveLocale(d.defaultLocale, ""), d.operator, true)
		if err != nil {
			errs = append(errs, fmt.Errorf("operator: %w", err))
		}
		res.OperatorMessageID = id
	}

	if len(errs) > 0 {
		return res, apperr.Transport(op, errors.Join(errs...))
	}
	return res, nil
}

func (d *Dispatcher) send(ctx context.Context, o *orders.Order, ev orders.NotificationEvent, loc Locale, to string, internal bool) (string, error) {
	msg, err := d.renderer.Render(o, ev, loc, internal)
	if err != nil {
		return "", err
	}
	id, err := d.transport.Send(ctx, to, msg.Subject, msg.HTML)
	if err != nil {
		logger.Warn("notification send failed",
			zap.String("order_number", o.OrderNumber),
			zap.String("event", string(ev)),
			zap.Bool("operator", internal),
			zap.Error(err),
		)
		return "", err
	}
	logger.Info("notification sent",
		zap.String("order_number", o.OrderNumber),
		zap.String("event", string(ev)),
		zap.String("locale", loc.Code),
		zap.String("message_id", id),
		zap.Bool("operator", internal),
	)
	return id, nil
}
