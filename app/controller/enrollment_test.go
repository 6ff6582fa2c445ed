package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-enrollments/app/entity"
	"github.com/vibast-solutions/ms-go-enrollments/app/gateway"
	"github.com/vibast-solutions/ms-go-enrollments/app/repository"
	"github.com/vibast-solutions/ms-go-enrollments/app/service"
	"github.com/vibast-solutions/ms-go-enrollments/app/types"
	"github.com/vibast-solutions/ms-go-enrollments/config"
)

type controllerLedger struct {
	findByIDFn              func(ctx context.Context, id string) (*entity.Enrollment, error)
	findByPairFn            func(ctx context.Context, studentID, moduleID string) (*entity.Enrollment, error)
	findByOrderIDFn         func(ctx context.Context, gatewayOrderID string) (*entity.Enrollment, error)
	listByStudentFn         func(ctx context.Context, studentID string) ([]*entity.Enrollment, error)
	listByModuleFn          func(ctx context.Context, moduleID string) ([]*entity.Enrollment, error)
	createActiveFn          func(ctx context.Context, enrollment *entity.Enrollment) error
	createPendingPairFn     func(ctx context.Context, enrollment *entity.Enrollment, record *entity.PaymentRecord) error
	settleFn                func(ctx context.Context, input repository.SettleInput) (*repository.SettleResult, error)
	findRecordByPaymentIDFn func(ctx context.Context, gatewayPaymentID string) (*entity.PaymentRecord, error)
	findRecordByOrderIDFn   func(ctx context.Context, gatewayOrderID string) (*entity.PaymentRecord, error)
	updateStatusFn          func(ctx context.Context, id string, status entity.EnrollmentStatus, now time.Time) error
	listExpiredPendingFn    func(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Enrollment, error)
	failPendingPairFn       func(ctx context.Context, enrollmentID string, now time.Time) error
}

func (l *controllerLedger) FindEnrollmentByID(ctx context.Context, id string) (*entity.Enrollment, error) {
	if l.findByIDFn != nil {
		return l.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (l *controllerLedger) FindEnrollmentByStudentAndModule(ctx context.Context, studentID, moduleID string) (*entity.Enrollment, error) {
	if l.findByPairFn != nil {
		return l.findByPairFn(ctx, studentID, moduleID)
	}
	return nil, nil
}

func (l *controllerLedger) FindEnrollmentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*entity.Enrollment, error) {
	if l.findByOrderIDFn != nil {
		return l.findByOrderIDFn(ctx, gatewayOrderID)
	}
	return nil, nil
}

func (l *controllerLedger) ListEnrollmentsByStudent(ctx context.Context, studentID string) ([]*entity.Enrollment, error) {
	if l.listByStudentFn != nil {
		return l.listByStudentFn(ctx, studentID)
	}
	return []*entity.Enrollment{}, nil
}

func (l *controllerLedger) ListActiveEnrollmentsByModule(ctx context.Context, moduleID string) ([]*entity.Enrollment, error) {
	if l.listByModuleFn != nil {
		return l.listByModuleFn(ctx, moduleID)
	}
	return []*entity.Enrollment{}, nil
}

func (l *controllerLedger) CreateActiveEnrollment(ctx context.Context, enrollment *entity.Enrollment) error {
	if l.createActiveFn != nil {
		return l.createActiveFn(ctx, enrollment)
	}
	return nil
}

func (l *controllerLedger) CreatePendingPair(ctx context.Context, enrollment *entity.Enrollment, record *entity.PaymentRecord) error {
	if l.createPendingPairFn != nil {
		return l.createPendingPairFn(ctx, enrollment, record)
	}
	return nil
}

func (l *controllerLedger) Settle(ctx context.Context, input repository.SettleInput) (*repository.SettleResult, error) {
	if l.settleFn != nil {
		return l.settleFn(ctx, input)
	}
	return nil, repository.ErrEnrollmentNotFound
}

func (l *controllerLedger) FindPaymentRecordByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*entity.PaymentRecord, error) {
	if l.findRecordByPaymentIDFn != nil {
		return l.findRecordByPaymentIDFn(ctx, gatewayPaymentID)
	}
	return nil, nil
}

func (l *controllerLedger) FindPaymentRecordByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*entity.PaymentRecord, error) {
	if l.findRecordByOrderIDFn != nil {
		return l.findRecordByOrderIDFn(ctx, gatewayOrderID)
	}
	return nil, nil
}

func (l *controllerLedger) UpdateEnrollmentStatus(ctx context.Context, id string, status entity.EnrollmentStatus, now time.Time) error {
	if l.updateStatusFn != nil {
		return l.updateStatusFn(ctx, id, status, now)
	}
	return nil
}

func (l *controllerLedger) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Enrollment, error) {
	if l.listExpiredPendingFn != nil {
		return l.listExpiredPendingFn(ctx, cutoff, limit)
	}
	return []*entity.Enrollment{}, nil
}

func (l *controllerLedger) FailPendingPair(ctx context.Context, enrollmentID string, now time.Time) error {
	if l.failPendingPairFn != nil {
		return l.failPendingPairFn(ctx, enrollmentID, now)
	}
	return nil
}

type controllerModuleCatalog struct {
	findByIDFn func(ctx context.Context, id string) (*entity.Module, error)
}

func (c *controllerModuleCatalog) FindByID(ctx context.Context, id string) (*entity.Module, error) {
	if c.findByIDFn != nil {
		return c.findByIDFn(ctx, id)
	}
	return nil, nil
}

type controllerEventRepo struct{}

func (r *controllerEventRepo) Create(context.Context, *entity.EnrollmentEvent) error {
	return nil
}

type controllerGateway struct {
	order        *gateway.Order
	createErr    error
	checkoutOK   bool
	webhookOK    bool
	webhookEvent *gateway.WebhookEvent
}

func (g *controllerGateway) CreateOrder(context.Context, *gateway.CreateOrderInput) (*gateway.Order, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	if g.order != nil {
		return g.order, nil
	}
	return &gateway.Order{ID: "order_ctrl_1", AmountCents: 49900, Currency: "INR", Status: "created"}, nil
}

func (g *controllerGateway) VerifyPaymentSignature(string, string, string) bool {
	return g.checkoutOK
}

func (g *controllerGateway) VerifyWebhookSignature([]byte, string) bool {
	return g.webhookOK
}

func (g *controllerGateway) ParseWebhook([]byte) (*gateway.WebhookEvent, error) {
	if g.webhookEvent != nil {
		return g.webhookEvent, nil
	}
	return &gateway.WebhookEvent{EventType: "payment.captured"}, nil
}

func newControllerForTest(ledger *controllerLedger, modules *controllerModuleCatalog, g gateway.Gateway) *EnrollmentController {
	enrollmentService := service.NewEnrollmentService(
		ledger,
		modules,
		&controllerEventRepo{},
		g,
		config.EnrollmentsConfig{PendingTimeout: time.Hour, JobBatchSize: 100},
	)
	return NewEnrollmentController(enrollmentService, "rzp_test_key")
}

func activeModule() *controllerModuleCatalog {
	return &controllerModuleCatalog{findByIDFn: func(_ context.Context, id string) (*entity.Module, error) {
		return &entity.Module{ID: id, Title: "Algebra", EducatorID: "edu-1", PriceCents: 49900, Currency: "INR", IsActive: true}, nil
	}}
}

func TestCreateOrderBadBody(t *testing.T) {
	ctrl := newControllerForTest(&controllerLedger{}, activeModule(), &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payments/orders", bytes.NewBufferString("{bad"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := ctrl.CreateOrder(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateOrderSuccessIncludesKeyID(t *testing.T) {
	ctrl := newControllerForTest(&controllerLedger{}, activeModule(), &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payments/orders", bytes.NewBufferString(`{"student_id":"stu-1","module_id":"mod-1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.CreateOrder(ctx)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.CreateOrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.OrderId != "order_ctrl_1" || payload.KeyId != "rzp_test_key" || payload.Free {
		t.Fatalf("unexpected order payload: %+v", payload)
	}
}

func TestCreateOrderModuleNotFound(t *testing.T) {
	ctrl := newControllerForTest(&controllerLedger{}, &controllerModuleCatalog{}, &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payments/orders", bytes.NewBufferString(`{"student_id":"stu-1","module_id":"missing"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.CreateOrder(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCreateOrderGatewayDown(t *testing.T) {
	ctrl := newControllerForTest(&controllerLedger{}, activeModule(), &controllerGateway{createErr: context.DeadlineExceeded})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payments/orders", bytes.NewBufferString(`{"student_id":"stu-1","module_id":"mod-1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.CreateOrder(ctx)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestVerifyPaymentInvalidSignature(t *testing.T) {
	ctrl := newControllerForTest(&controllerLedger{}, activeModule(), &controllerGateway{checkoutOK: false})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payments/verify", bytes.NewBufferString(`{"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"forged"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.VerifyPayment(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestVerifyPaymentSuccess(t *testing.T) {
	orderID := "order_1"
	ledger := &controllerLedger{
		findByOrderIDFn: func(context.Context, string) (*entity.Enrollment, error) {
			return &entity.Enrollment{ID: "enr-1", StudentID: "stu-1", ModuleID: "mod-1", Status: entity.EnrollmentStatusPending, GatewayOrderID: &orderID}, nil
		},
		settleFn: func(_ context.Context, input repository.SettleInput) (*repository.SettleResult, error) {
			paymentID := input.GatewayPaymentID
			return &repository.SettleResult{
				Enrollment: &entity.Enrollment{
					ID: "enr-1", StudentID: "stu-1", ModuleID: "mod-1",
					Status: entity.EnrollmentStatusActive, GatewayOrderID: &orderID, GatewayPaymentID: &paymentID,
				},
				Activated:      true,
				PreviousStatus: entity.EnrollmentStatusPending,
			}, nil
		},
	}
	ctrl := newControllerForTest(ledger, activeModule(), &controllerGateway{checkoutOK: true})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payments/verify", bytes.NewBufferString(`{"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.VerifyPayment(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.EnrollmentEnvelopeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Enrollment.Status != string(entity.EnrollmentStatusActive) {
		t.Fatalf("unexpected enrollment payload: %+v", payload.Enrollment)
	}
}

func TestHandleWebhookMissingSignature(t *testing.T) {
	ctrl := newControllerForTest(&controllerLedger{}, activeModule(), &controllerGateway{webhookOK: true})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/razorpay", bytes.NewBufferString(`{"event":"payment.captured"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.HandleWebhook(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleWebhookIgnoredEventStillOK(t *testing.T) {
	ctrl := newControllerForTest(&controllerLedger{}, activeModule(), &controllerGateway{
		webhookOK:    true,
		webhookEvent: &gateway.WebhookEvent{EventType: "refund.created"},
	})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/razorpay", bytes.NewBufferString(`{"event":"refund.created"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Razorpay-Signature", "sig")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.HandleWebhook(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleWebhookUnknownOrderStillOK(t *testing.T) {
	ctrl := newControllerForTest(&controllerLedger{}, activeModule(), &controllerGateway{
		webhookOK:    true,
		webhookEvent: &gateway.WebhookEvent{EventType: "payment.captured", PaymentID: "pay_1", OrderID: "order_unknown"},
	})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/razorpay", bytes.NewBufferString(`{"event":"payment.captured"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Razorpay-Signature", "sig")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.HandleWebhook(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.WebhookAckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !payload.Received {
		t.Fatalf("expected received ack, got %+v", payload)
	}
}

func TestGetEnrollment(t *testing.T) {
	ledger := &controllerLedger{findByIDFn: func(_ context.Context, id string) (*entity.Enrollment, error) {
		if id != "enr-1" {
			return nil, nil
		}
		return &entity.Enrollment{ID: "enr-1", StudentID: "stu-1", ModuleID: "mod-1", Status: entity.EnrollmentStatusActive}, nil
	}}
	ctrl := newControllerForTest(ledger, activeModule(), &controllerGateway{})
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/enrollments/enr-1", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("enr-1")

	_ = ctrl.GetEnrollment(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.EnrollmentEnvelopeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.Enrollment == nil || payload.Enrollment.Id != "enr-1" {
		t.Fatalf("unexpected enrollment payload: %+v", payload.Enrollment)
	}

	req = httptest.NewRequest(http.MethodGet, "/enrollments/enr-9", nil)
	rec = httptest.NewRecorder()
	ctx = e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("enr-9")

	_ = ctrl.GetEnrollment(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCancelEnrollmentForbidden(t *testing.T) {
	ledger := &controllerLedger{findByIDFn: func(context.Context, string) (*entity.Enrollment, error) {
		return &entity.Enrollment{ID: "enr-1", StudentID: "stu-1", ModuleID: "mod-1", Status: entity.EnrollmentStatusActive}, nil
	}}
	ctrl := newControllerForTest(ledger, activeModule(), &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/enrollments/enr-1/cancel", bytes.NewBufferString(`{"actor_id":"stu-2","actor_role":"student"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("enr-1")

	_ = ctrl.CancelEnrollment(ctx)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestCancelEnrollmentNotFound(t *testing.T) {
	ctrl := newControllerForTest(&controllerLedger{}, activeModule(), &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/enrollments/enr-9/cancel", bytes.NewBufferString(`{"actor_id":"stu-1","actor_role":"student"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("enr-9")

	_ = ctrl.CancelEnrollment(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCheckEnrollmentRequiresParams(t *testing.T) {
	ctrl := newControllerForTest(&controllerLedger{}, activeModule(), &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/enrollments/check?student_id=stu-1", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.CheckEnrollment(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListStudentEnrollments(t *testing.T) {
	now := time.Now().UTC()
	ledger := &controllerLedger{listByStudentFn: func(context.Context, string) ([]*entity.Enrollment, error) {
		return []*entity.Enrollment{{
			ID: "enr-1", StudentID: "stu-1", ModuleID: "mod-1",
			Status: entity.EnrollmentStatusActive, Currency: "INR",
			CreatedAt: now, UpdatedAt: now,
		}}, nil
	}}
	ctrl := newControllerForTest(ledger, activeModule(), &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/enrollments?student_id=stu-1", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	_ = ctrl.ListStudentEnrollments(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var payload types.ListEnrollmentsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(payload.Enrollments) != 1 || payload.Enrollments[0].Id != "enr-1" {
		t.Fatalf("unexpected list payload: %+v", payload.Enrollments)
	}
}

func TestListModuleStudentsForbiddenForOtherEducator(t *testing.T) {
	ctrl := newControllerForTest(&controllerLedger{}, activeModule(), &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/modules/mod-1/students?educator_id=edu-2", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("moduleId")
	ctx.SetParamValues("mod-1")

	_ = ctrl.ListModuleStudents(ctx)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestListModuleStudentsRequiresEducatorID(t *testing.T) {
	ctrl := newControllerForTest(&controllerLedger{}, activeModule(), &controllerGateway{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/modules/mod-1/students", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("moduleId")
	ctx.SetParamValues("mod-1")

	_ = ctrl.ListModuleStudents(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
