package orders

import "context"

type NotificationEvent string

const (
	NotifyOrderConfirmation NotificationEvent = "order_confirmation"
	NotifyWelcome           NotificationEvent = "welcome"
	NotifyPaymentConfirmed  NotificationEvent = "payment_confirmed"
	NotifyInProduction      NotificationEvent = "in_production"
	NotifyShipped           NotificationEvent = "shipped"
	NotifyDelivered         NotificationEvent = "delivered"
	NotifyInvoice           NotificationEvent = "invoice"
	NotifyAdmin             NotificationEvent = "admin_notification"
)

func NotificationEvents() []NotificationEvent {
	return []NotificationEvent{
		NotifyOrderConfirmation, NotifyWelcome, NotifyPaymentConfirmed, NotifyInProduction,
		NotifyShipped, NotifyDelivered, NotifyInvoice, NotifyAdmin,
	}
}

func (e NotificationEvent) Valid() bool {
	for _, x := range NotificationEvents() {
		if x == e {
			return true
		}
	}
	return false
}

// notificationFor maps a committed status to the message it triggers.
var notificationFor = map[Status]NotificationEvent{
	StatusPaid:      NotifyPaymentConfirmed,
	StatusShipped:   NotifyShipped,
	StatusDelivered: NotifyDelivered,
}

// Notification reports what a dispatch did. Empty ids mean no message was
// sent to that recipient.
type Notification struct {
	Event             NotificationEvent `json:"event"`
	Locale            string            `json:"locale"`
	CustomerMessageID string            `json:"customer_message_id,omitempty"`
	CustomerSkipped   bool              `json:"customer_skipped"`
	OperatorMessageID string            `json:"operator_message_id,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, o *Order, event NotificationEvent, locale string) (Notification, error)
}
