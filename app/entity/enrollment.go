package entity

import "time"

type EnrollmentStatus string

const (
	EnrollmentStatusPending   EnrollmentStatus = "pending"
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
	EnrollmentStatusFailed    EnrollmentStatus = "failed"
)

// Enrollment is the single row per (student, module) pair. Rows are never
// deleted; re-subscription reuses the row with fresh gateway correlation.
type Enrollment struct {
	ID string

	StudentID string
	ModuleID  string

	Status EnrollmentStatus

	StartedAt *time.Time
	ExpiresAt *time.Time

	GatewayOrderID   *string
	GatewayPaymentID *string

	AmountPaidCents int64
	Currency        string

	CreatedAt time.Time
	UpdatedAt time.Time
}
