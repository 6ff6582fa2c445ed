package entity

import "time"

type EnrollmentEvent struct {
	ID string

	EnrollmentID string

	EventType string

	OldStatus *EnrollmentStatus
	NewStatus EnrollmentStatus

	GatewayPaymentID *string
	PayloadJSON      *string

	CreatedAt time.Time
}
