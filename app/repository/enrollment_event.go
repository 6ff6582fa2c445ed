package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-enrollments/app/entity"
)

// EnrollmentEventRepository appends to the enrollment_events audit trail.
// Writes are best-effort on the caller side and never block a transition.
type EnrollmentEventRepository struct {
	db DBTX
}

func NewEnrollmentEventRepository(db DBTX) *EnrollmentEventRepository {
	return &EnrollmentEventRepository{db: db}
}

func (r *EnrollmentEventRepository) Create(ctx context.Context, event *entity.EnrollmentEvent) error {
	query := `
		INSERT INTO enrollment_events (
			id, enrollment_id, event_type, old_status, new_status,
			gateway_payment_id, payload_json, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var oldStatus interface{}
	if event.OldStatus != nil {
		oldStatus = string(*event.OldStatus)
	}

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.EnrollmentID,
		event.EventType,
		oldStatus,
		event.NewStatus,
		nullableStringValue(event.GatewayPaymentID),
		nullableStringValue(event.PayloadJSON),
		event.CreatedAt,
	)
	return err
}
