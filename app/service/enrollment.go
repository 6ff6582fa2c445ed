package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-enrollments/app/entity"
	"github.com/vibast-solutions/ms-go-enrollments/app/gateway"
	"github.com/vibast-solutions/ms-go-enrollments/app/repository"
	"github.com/vibast-solutions/ms-go-enrollments/config"
)

const defaultBatchSize = int32(100)

type createOrderRequest interface {
	GetStudentId() string
	GetModuleId() string
}

type verifyPaymentRequest interface {
	GetRazorpayOrderId() string
	GetRazorpayPaymentId() string
	GetRazorpaySignature() string
	GetModuleId() string
}

type cancelEnrollmentRequest interface {
	GetEnrollmentId() string
	GetActorId() string
	GetActorRole() string
}

type enrollmentLedger interface {
	FindEnrollmentByID(ctx context.Context, id string) (*entity.Enrollment, error)
	FindEnrollmentByStudentAndModule(ctx context.Context, studentID, moduleID string) (*entity.Enrollment, error)
	FindEnrollmentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*entity.Enrollment, error)
	ListEnrollmentsByStudent(ctx context.Context, studentID string) ([]*entity.Enrollment, error)
	ListActiveEnrollmentsByModule(ctx context.Context, moduleID string) ([]*entity.Enrollment, error)
	CreateActiveEnrollment(ctx context.Context, enrollment *entity.Enrollment) error
	CreatePendingPair(ctx context.Context, enrollment *entity.Enrollment, record *entity.PaymentRecord) error
	Settle(ctx context.Context, input repository.SettleInput) (*repository.SettleResult, error)
	FindPaymentRecordByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*entity.PaymentRecord, error)
	FindPaymentRecordByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*entity.PaymentRecord, error)
	UpdateEnrollmentStatus(ctx context.Context, id string, status entity.EnrollmentStatus, now time.Time) error
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Enrollment, error)
	FailPendingPair(ctx context.Context, enrollmentID string, now time.Time) error
}

type moduleCatalog interface {
	FindByID(ctx context.Context, id string) (*entity.Module, error)
}

type enrollmentEventRepository interface {
	Create(ctx context.Context, event *entity.EnrollmentEvent) error
}

type EnrollmentService struct {
	ledger         enrollmentLedger
	modules        moduleCatalog
	eventRepo      enrollmentEventRepository
	gatewayClient  gateway.Gateway
	enrollmentsCfg config.EnrollmentsConfig
}

func NewEnrollmentService(
	ledger enrollmentLedger,
	modules moduleCatalog,
	eventRepo enrollmentEventRepository,
	gatewayClient gateway.Gateway,
	enrollmentsCfg config.EnrollmentsConfig,
) *EnrollmentService {
	return &EnrollmentService{
		ledger:         ledger,
		modules:        modules,
		eventRepo:      eventRepo,
		gatewayClient:  gatewayClient,
		enrollmentsCfg: enrollmentsCfg,
	}
}

// CreateOrderResult carries what the checkout client needs. Free modules
// skip the gateway entirely: the enrollment is already active and
// GatewayOrderID is empty.
type CreateOrderResult struct {
	Enrollment     *entity.Enrollment
	GatewayOrderID string
	AmountCents    int64
	Currency       string
	Free           bool
}

func (s *EnrollmentService) CreateOrder(ctx context.Context, req createOrderRequest) (*CreateOrderResult, error) {
	studentID := strings.TrimSpace(req.GetStudentId())
	moduleID := strings.TrimSpace(req.GetModuleId())
	if studentID == "" || moduleID == "" {
		return nil, ErrInvalidRequest
	}

	module, err := s.modules.FindByID(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if module == nil || !module.IsActive {
		return nil, ErrModuleNotFound
	}

	existing, err := s.ledger.FindEnrollmentByStudentAndModule(ctx, studentID, moduleID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == entity.EnrollmentStatusActive {
		return nil, ErrAlreadyEnrolled
	}

	now := time.Now().UTC()

	if module.PriceCents <= 0 {
		return s.enrollFree(ctx, studentID, module, now)
	}

	order, err := s.gatewayClient.CreateOrder(ctx, &gateway.CreateOrderInput{
		AmountCents: module.PriceCents,
		Currency:    module.Currency,
		Receipt:     buildReceipt(studentID, now),
		Notes: map[string]string{
			"student_id": studentID,
			"module_id":  moduleID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	orderID := order.ID
	enrollment := &entity.Enrollment{
		ID:              uuid.NewString(),
		StudentID:       studentID,
		ModuleID:        moduleID,
		Status:          entity.EnrollmentStatusPending,
		GatewayOrderID:  &orderID,
		AmountPaidCents: module.PriceCents,
		Currency:        module.Currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	rawOrder := marshalRawPayload(map[string]interface{}{
		"id":       order.ID,
		"amount":   order.AmountCents,
		"currency": order.Currency,
		"receipt":  order.Receipt,
		"status":   order.Status,
	})
	record := &entity.PaymentRecord{
		ID:              uuid.NewString(),
		StudentID:       studentID,
		ModuleID:        moduleID,
		GatewayOrderID:  orderID,
		AmountCents:     module.PriceCents,
		Status:          entity.PaymentRecordStatusCreated,
		RawResponseJSON: &rawOrder,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.ledger.CreatePendingPair(ctx, enrollment, record); err != nil {
		if errors.Is(err, repository.ErrEnrollmentAlreadyExists) {
			return nil, ErrAlreadyEnrolled
		}
		return nil, err
	}

	_ = s.eventRepo.Create(ctx, &entity.EnrollmentEvent{
		ID:           uuid.NewString(),
		EnrollmentID: enrollment.ID,
		EventType:    "order_created",
		NewStatus:    enrollment.Status,
		CreatedAt:    now,
	})

	return &CreateOrderResult{
		Enrollment:     enrollment,
		GatewayOrderID: orderID,
		AmountCents:    module.PriceCents,
		Currency:       module.Currency,
	}, nil
}

func (s *EnrollmentService) enrollFree(ctx context.Context, studentID string, module *entity.Module, now time.Time) (*CreateOrderResult, error) {
	startedAt := now
	enrollment := &entity.Enrollment{
		ID:        uuid.NewString(),
		StudentID: studentID,
		ModuleID:  module.ID,
		Status:    entity.EnrollmentStatusActive,
		StartedAt: &startedAt,
		Currency:  module.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.ledger.CreateActiveEnrollment(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrEnrollmentAlreadyExists) {
			return nil, ErrAlreadyEnrolled
		}
		return nil, err
	}

	_ = s.eventRepo.Create(ctx, &entity.EnrollmentEvent{
		ID:           uuid.NewString(),
		EnrollmentID: enrollment.ID,
		EventType:    "enrollment_activated",
		NewStatus:    enrollment.Status,
		CreatedAt:    now,
	})

	return &CreateOrderResult{
		Enrollment: enrollment,
		Currency:   module.Currency,
		Free:       true,
	}, nil
}

func (s *EnrollmentService) batchSize() int32 {
	if s.enrollmentsCfg.JobBatchSize > 0 {
		return s.enrollmentsCfg.JobBatchSize
	}
	return defaultBatchSize
}

// buildReceipt keeps gateway receipts unique per attempt while staying
// within Razorpay's 40 character receipt limit.
func buildReceipt(studentID string, now time.Time) string {
	ref := studentID
	if len(ref) > 8 {
		ref = ref[:8]
	}
	return fmt.Sprintf("order_%d_%s", now.UnixMilli(), ref)
}

func marshalRawPayload(v interface{}) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(encoded)
}
