package entity

import "time"

type PaymentRecordStatus string

const (
	PaymentRecordStatusCreated   PaymentRecordStatus = "created"
	PaymentRecordStatusAttempted PaymentRecordStatus = "attempted"
	PaymentRecordStatusPaid      PaymentRecordStatus = "paid"
	PaymentRecordStatusFailed    PaymentRecordStatus = "failed"
	PaymentRecordStatusRefunded  PaymentRecordStatus = "refunded"
)

// PaymentRecord is the audit log of gateway order attempts, one row per
// gateway order. raw_response_json keeps the last payload seen from the
// gateway for dispute resolution.
type PaymentRecord struct {
	ID string

	StudentID string
	ModuleID  string

	GatewayOrderID   string
	GatewayPaymentID *string

	AmountCents int64

	Status PaymentRecordStatus

	RawResponseJSON *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
