package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-enrollments/app/entity"
)

// RunExpirePendingBatch fails pending enrollments whose gateway order was
// never settled within the configured timeout. The per-row update is
// conditional, so a settlement racing the batch wins.
func (s *EnrollmentService) RunExpirePendingBatch(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.Add(-s.enrollmentsCfg.PendingTimeout)
	items, err := s.ledger.ListExpiredPending(ctx, cutoff, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, enrollment := range items {
		if enrollment == nil || enrollment.Status != entity.EnrollmentStatusPending {
			continue
		}

		if err := s.ledger.FailPendingPair(ctx, enrollment.ID, now); err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		oldStatus := enrollment.Status
		_ = s.eventRepo.Create(ctx, &entity.EnrollmentEvent{
			ID:           uuid.NewString(),
			EnrollmentID: enrollment.ID,
			EventType:    "enrollment_expired",
			OldStatus:    &oldStatus,
			NewStatus:    entity.EnrollmentStatusFailed,
			CreatedAt:    now,
		})
	}

	return firstErr
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
