package types

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// WebhookAckResponse acknowledges a gateway delivery so it is not retried.
type WebhookAckResponse struct {
	Received bool `json:"received"`
}

type Enrollment struct {
	Id               string `json:"id"`
	StudentId        string `json:"student_id"`
	ModuleId         string `json:"module_id"`
	Status           string `json:"status"`
	StartedAt        string `json:"started_at,omitempty"`
	ExpiresAt        string `json:"expires_at,omitempty"`
	GatewayOrderId   string `json:"gateway_order_id,omitempty"`
	GatewayPaymentId string `json:"gateway_payment_id,omitempty"`
	AmountPaidCents  int64  `json:"amount_paid_cents"`
	Currency         string `json:"currency"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

type EnrollmentEnvelopeResponse struct {
	Enrollment *Enrollment `json:"enrollment"`
}

type ListEnrollmentsResponse struct {
	Enrollments []*Enrollment `json:"enrollments"`
}

// CreateOrderResponse carries what the checkout page needs to open the
// Razorpay widget. KeyId is the public api key; Free means no order was
// created and the enrollment is already active.
type CreateOrderResponse struct {
	Enrollment  *Enrollment `json:"enrollment"`
	OrderId     string      `json:"order_id,omitempty"`
	AmountCents int64       `json:"amount_cents,omitempty"`
	Currency    string      `json:"currency,omitempty"`
	KeyId       string      `json:"key_id,omitempty"`
	Free        bool        `json:"free"`
}

type CheckEnrollmentResponse struct {
	Enrolled   bool        `json:"enrolled"`
	Enrollment *Enrollment `json:"enrollment,omitempty"`
}
