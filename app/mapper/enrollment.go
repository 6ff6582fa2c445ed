package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-enrollments/app/entity"
	"github.com/vibast-solutions/ms-go-enrollments/app/types"
)

func EnrollmentToResponse(item *entity.Enrollment) *types.Enrollment {
	if item == nil {
		return nil
	}

	return &types.Enrollment{
		Id:               item.ID,
		StudentId:        item.StudentID,
		ModuleId:         item.ModuleID,
		Status:           string(item.Status),
		StartedAt:        formatOptionalTime(item.StartedAt),
		ExpiresAt:        formatOptionalTime(item.ExpiresAt),
		GatewayOrderId:   derefString(item.GatewayOrderID),
		GatewayPaymentId: derefString(item.GatewayPaymentID),
		AmountPaidCents:  item.AmountPaidCents,
		Currency:         item.Currency,
		CreatedAt:        item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func EnrollmentsToResponse(items []*entity.Enrollment) []*types.Enrollment {
	result := make([]*types.Enrollment, 0, len(items))
	for _, item := range items {
		result = append(result, EnrollmentToResponse(item))
	}
	return result
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatOptionalTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
