package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-enrollments/app/entity"
	"github.com/vibast-solutions/ms-go-enrollments/app/repository"
)

const webhookEventPaymentCaptured = "payment.captured"

// VerifyPayment is the client-initiated settlement path: the browser posts
// back the order id, payment id and checkout signature after a successful
// Razorpay checkout. Settlement is idempotent with the webhook path; the
// two may arrive in any order.
func (s *EnrollmentService) VerifyPayment(ctx context.Context, req verifyPaymentRequest) (*entity.Enrollment, error) {
	orderID := strings.TrimSpace(req.GetRazorpayOrderId())
	paymentID := strings.TrimSpace(req.GetRazorpayPaymentId())
	signature := strings.TrimSpace(req.GetRazorpaySignature())
	if orderID == "" || paymentID == "" || signature == "" {
		return nil, ErrInvalidRequest
	}

	if !s.gatewayClient.VerifyPaymentSignature(orderID, paymentID, signature) {
		return nil, ErrInvalidSignature
	}

	enrollment, err := s.ledger.FindEnrollmentByGatewayOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, ErrEnrollmentNotFound
	}
	if moduleID := strings.TrimSpace(req.GetModuleId()); moduleID != "" && moduleID != enrollment.ModuleID {
		return nil, ErrInvalidRequest
	}

	raw := marshalRawPayload(map[string]string{
		"source":              "verify",
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	})

	return s.settle(ctx, orderID, paymentID, raw, "payment_verified")
}

// HandleWebhook is the gateway-initiated settlement path. The signature is
// checked against the raw body before anything is parsed. Events other
// than payment.captured, and captures for orders the ledger no longer
// tracks, are acknowledged without writes; callers should return 200 for
// a nil enrollment and nil error.
func (s *EnrollmentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*entity.Enrollment, error) {
	if !s.gatewayClient.VerifyWebhookSignature(payload, strings.TrimSpace(signature)) {
		return nil, ErrInvalidSignature
	}

	event, err := s.gatewayClient.ParseWebhook(payload)
	if err != nil {
		return nil, ErrInvalidRequest
	}
	if event.EventType != webhookEventPaymentCaptured {
		return nil, nil
	}
	if event.PaymentID == "" {
		return nil, ErrInvalidRequest
	}

	orderID := event.OrderID
	if orderID == "" {
		record, err := s.ledger.FindPaymentRecordByGatewayPaymentID(ctx, event.PaymentID)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, nil
		}
		orderID = record.GatewayOrderID
	}

	enrollment, err := s.settle(ctx, orderID, event.PaymentID, string(payload), "webhook_captured")
	if errors.Is(err, ErrEnrollmentNotFound) {
		// Re-subscription can orphan a gateway order. A capture for an
		// order with no ledger row must still be acknowledged, otherwise
		// the gateway redelivers it forever.
		return nil, nil
	}
	return enrollment, err
}

func (s *EnrollmentService) settle(ctx context.Context, orderID, paymentID, rawPayload, eventType string) (*entity.Enrollment, error) {
	now := time.Now().UTC()
	result, err := s.ledger.Settle(ctx, repository.SettleInput{
		GatewayOrderID:   orderID,
		GatewayPaymentID: paymentID,
		RawResponseJSON:  rawPayload,
		Now:              now,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEnrollmentNotFound), errors.Is(err, repository.ErrPaymentRecordNotFound):
			return nil, ErrEnrollmentNotFound
		case errors.Is(err, repository.ErrPaymentMismatch):
			return nil, ErrPaymentMismatch
		}
		return nil, err
	}

	if result.Activated {
		oldStatus := result.PreviousStatus
		gatewayPaymentID := paymentID
		payloadJSON := rawPayload
		_ = s.eventRepo.Create(ctx, &entity.EnrollmentEvent{
			ID:               uuid.NewString(),
			EnrollmentID:     result.Enrollment.ID,
			EventType:        eventType,
			OldStatus:        &oldStatus,
			NewStatus:        entity.EnrollmentStatusActive,
			GatewayPaymentID: &gatewayPaymentID,
			PayloadJSON:      &payloadJSON,
			CreatedAt:        now,
		})
	}

	return result.Enrollment, nil
}
