package checkout

import (
	"fmt"
	"sync"
)

// NotificationKind classifies what the shopper is told.
type NotificationKind string

const (
	NotifyOrderPlaced            NotificationKind = "order_placed"
	NotifyGatewayInitFailed      NotificationKind = "gateway_init_failed"
	NotifyPaymentFailed          NotificationKind = "payment_failed"
	NotifyReconciliationRequired NotificationKind = "reconciliation_required"
)

// Notification is a user-visible message raised by the orchestrator.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	Reference string           `json:"reference,omitempty"`
	OrderID   string           `json:"order_id,omitempty"`
}

// Notifier receives checkout notifications.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Notifiers fans a notification out to several notifiers.
type Notifiers []Notifier

func (ns Notifiers) Notify(n Notification) {
	for _, notifier := range ns {
		notifier.Notify(n)
	}
}

// Inbox keeps the notifications raised for one shopper until they are drained.
type Inbox struct {
	mu    sync.Mutex
	items []Notification
}

func (i *Inbox) Notify(n Notification) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items = append(i.items, n)
}

// Drain returns and forgets the pending notifications.
func (i *Inbox) Drain() []Notification {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.items
	i.items = nil
	return out
}

func gatewayInitFailed() Notification {
	return Notification{
		Kind:    NotifyGatewayInitFailed,
		Message: "We could not start the payment. Nothing was charged, please try again.",
	}
}

func paymentFailed(reference string) Notification {
	return Notification{
		Kind:      NotifyPaymentFailed,
		Message:   "Your payment was not completed. You can try paying again.",
		Reference: reference,
	}
}

func reconciliationRequired(reference string) Notification {
	return Notification{
		Kind: NotifyReconciliationRequired,
		Message: fmt.Sprintf("Your payment succeeded but we could not record your order. "+
			"Please contact support with payment reference %s.", reference),
		Reference: reference,
	}
}

func orderPlaced(reference, orderID string) Notification {
	return Notification{
		Kind:      NotifyOrderPlaced,
		Message:   "Thank you! Your order has been placed.",
		Reference: reference,
		OrderID:   orderID,
	}
}
