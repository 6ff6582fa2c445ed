package gateway

import "context"

type CreateOrderInput struct {
	AmountCents int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

type Order struct {
	ID          string
	AmountCents int64
	Currency    string
	Receipt     string
	Status      string
}

// WebhookEvent is the gateway-neutral view of a webhook delivery. PaymentID
// and OrderID are empty when the event payload does not carry them.
type WebhookEvent struct {
	EventType string
	PaymentID string
	OrderID   string
}

type Gateway interface {
	CreateOrder(ctx context.Context, input *CreateOrderInput) (*Order, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(payload []byte, signature string) bool
	ParseWebhook(payload []byte) (*WebhookEvent, error)
}
