package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-enrollments/app/entity"
	"github.com/vibast-solutions/ms-go-enrollments/app/repository"
)

const (
	actorRoleStudent  = "student"
	actorRoleEducator = "educator"
	actorRoleAdmin    = "admin"
)

func (s *EnrollmentService) GetEnrollment(ctx context.Context, id string) (*entity.Enrollment, error) {
	enrollment, err := s.ledger.FindEnrollmentByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, ErrEnrollmentNotFound
	}
	return enrollment, nil
}

func (s *EnrollmentService) CancelEnrollment(ctx context.Context, req cancelEnrollmentRequest) (*entity.Enrollment, error) {
	enrollmentID := strings.TrimSpace(req.GetEnrollmentId())
	actorID := strings.TrimSpace(req.GetActorId())
	actorRole := strings.ToLower(strings.TrimSpace(req.GetActorRole()))
	if enrollmentID == "" || actorID == "" {
		return nil, ErrInvalidRequest
	}

	enrollment, err := s.ledger.FindEnrollmentByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, ErrEnrollmentNotFound
	}

	switch actorRole {
	case actorRoleAdmin:
	case actorRoleStudent:
		if enrollment.StudentID != actorID {
			return nil, ErrForbidden
		}
	case actorRoleEducator:
		module, err := s.modules.FindByID(ctx, enrollment.ModuleID)
		if err != nil {
			return nil, err
		}
		if module == nil || module.EducatorID != actorID {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}

	if enrollment.Status == entity.EnrollmentStatusCancelled {
		return enrollment, nil
	}
	if enrollment.Status == entity.EnrollmentStatusFailed {
		return nil, fmt.Errorf("%w: failed enrollments cannot be cancelled", ErrInvalidStatus)
	}

	now := time.Now().UTC()
	oldStatus := enrollment.Status

	if err := s.ledger.UpdateEnrollmentStatus(ctx, enrollment.ID, entity.EnrollmentStatusCancelled, now); err != nil {
		if errors.Is(err, repository.ErrEnrollmentNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, err
	}

	enrollment.Status = entity.EnrollmentStatusCancelled
	enrollment.UpdatedAt = now

	_ = s.eventRepo.Create(ctx, &entity.EnrollmentEvent{
		ID:           uuid.NewString(),
		EnrollmentID: enrollment.ID,
		EventType:    "enrollment_cancelled",
		OldStatus:    &oldStatus,
		NewStatus:    enrollment.Status,
		CreatedAt:    now,
	})

	return enrollment, nil
}

func (s *EnrollmentService) ListStudentEnrollments(ctx context.Context, studentID string) ([]*entity.Enrollment, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, ErrInvalidRequest
	}
	return s.ledger.ListEnrollmentsByStudent(ctx, studentID)
}

// ListModuleStudents returns the active enrollments of a module. Only the
// educator who owns the module may list them.
func (s *EnrollmentService) ListModuleStudents(ctx context.Context, moduleID, educatorID string) ([]*entity.Enrollment, error) {
	moduleID = strings.TrimSpace(moduleID)
	educatorID = strings.TrimSpace(educatorID)
	if moduleID == "" || educatorID == "" {
		return nil, ErrInvalidRequest
	}

	module, err := s.modules.FindByID(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if module == nil {
		return nil, ErrModuleNotFound
	}
	if module.EducatorID != educatorID {
		return nil, ErrForbidden
	}

	return s.ledger.ListActiveEnrollmentsByModule(ctx, moduleID)
}

// CheckEnrollment reports whether the student currently has access to the
// module. Only an active enrollment grants access.
func (s *EnrollmentService) CheckEnrollment(ctx context.Context, studentID, moduleID string) (bool, *entity.Enrollment, error) {
	studentID = strings.TrimSpace(studentID)
	moduleID = strings.TrimSpace(moduleID)
	if studentID == "" || moduleID == "" {
		return false, nil, ErrInvalidRequest
	}

	enrollment, err := s.ledger.FindEnrollmentByStudentAndModule(ctx, studentID, moduleID)
	if err != nil {
		return false, nil, err
	}
	if enrollment == nil {
		return false, nil, nil
	}

	return enrollment.Status == entity.EnrollmentStatusActive, enrollment, nil
}
