package types

import (
	"errors"
	"io"
	"strings"

	"github.com/labstack/echo/v4"
)

type CreateOrderRequest struct {
	StudentId string `json:"student_id"`
	ModuleId  string `json:"module_id"`
}

func (r *CreateOrderRequest) GetStudentId() string {
	if r == nil {
		return ""
	}
	return r.StudentId
}

func (r *CreateOrderRequest) GetModuleId() string {
	if r == nil {
		return ""
	}
	return r.ModuleId
}

func NewCreateOrderRequestFromContext(ctx echo.Context) (*CreateOrderRequest, error) {
	var body CreateOrderRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.StudentId = strings.TrimSpace(body.StudentId)
	body.ModuleId = strings.TrimSpace(body.ModuleId)

	return &body, nil
}

func (r *CreateOrderRequest) Validate() error {
	if strings.TrimSpace(r.GetStudentId()) == "" {
		return errors.New("student_id is required")
	}
	if strings.TrimSpace(r.GetModuleId()) == "" {
		return errors.New("module_id is required")
	}
	return nil
}

type VerifyPaymentRequest struct {
	RazorpayOrderId   string `json:"razorpay_order_id"`
	RazorpayPaymentId string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
	ModuleId          string `json:"module_id"`
}

func (r *VerifyPaymentRequest) GetRazorpayOrderId() string {
	if r == nil {
		return ""
	}
	return r.RazorpayOrderId
}

func (r *VerifyPaymentRequest) GetRazorpayPaymentId() string {
	if r == nil {
		return ""
	}
	return r.RazorpayPaymentId
}

func (r *VerifyPaymentRequest) GetRazorpaySignature() string {
	if r == nil {
		return ""
	}
	return r.RazorpaySignature
}

func (r *VerifyPaymentRequest) GetModuleId() string {
	if r == nil {
		return ""
	}
	return r.ModuleId
}

func NewVerifyPaymentRequestFromContext(ctx echo.Context) (*VerifyPaymentRequest, error) {
	var body VerifyPaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.RazorpayOrderId = strings.TrimSpace(body.RazorpayOrderId)
	body.RazorpayPaymentId = strings.TrimSpace(body.RazorpayPaymentId)
	body.RazorpaySignature = strings.TrimSpace(body.RazorpaySignature)
	body.ModuleId = strings.TrimSpace(body.ModuleId)

	return &body, nil
}

func (r *VerifyPaymentRequest) Validate() error {
	if strings.TrimSpace(r.GetRazorpayOrderId()) == "" {
		return errors.New("razorpay_order_id is required")
	}
	if strings.TrimSpace(r.GetRazorpayPaymentId()) == "" {
		return errors.New("razorpay_payment_id is required")
	}
	if strings.TrimSpace(r.GetRazorpaySignature()) == "" {
		return errors.New("razorpay_signature is required")
	}
	return nil
}

type CancelEnrollmentRequest struct {
	EnrollmentId string `json:"-"`
	ActorId      string `json:"actor_id"`
	ActorRole    string `json:"actor_role"`
}

func (r *CancelEnrollmentRequest) GetEnrollmentId() string {
	if r == nil {
		return ""
	}
	return r.EnrollmentId
}

func (r *CancelEnrollmentRequest) GetActorId() string {
	if r == nil {
		return ""
	}
	return r.ActorId
}

func (r *CancelEnrollmentRequest) GetActorRole() string {
	if r == nil {
		return ""
	}
	return r.ActorRole
}

func NewCancelEnrollmentRequestFromContext(ctx echo.Context) (*CancelEnrollmentRequest, error) {
	var body CancelEnrollmentRequest
	if err := ctx.Bind(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	body.EnrollmentId = strings.TrimSpace(ctx.Param("id"))
	body.ActorId = strings.TrimSpace(body.ActorId)
	body.ActorRole = strings.ToLower(strings.TrimSpace(body.ActorRole))

	return &body, nil
}

func (r *CancelEnrollmentRequest) Validate() error {
	if strings.TrimSpace(r.GetEnrollmentId()) == "" {
		return errors.New("enrollment id is required")
	}
	if strings.TrimSpace(r.GetActorId()) == "" {
		return errors.New("actor_id is required")
	}
	if role := strings.TrimSpace(r.GetActorRole()); role != "student" && role != "educator" && role != "admin" {
		return errors.New("actor_role must be student, educator, or admin")
	}
	return nil
}

type HandleWebhookRequest struct {
	Signature string
	Payload   []byte
}

func (r *HandleWebhookRequest) GetSignature() string {
	if r == nil {
		return ""
	}
	return r.Signature
}

func (r *HandleWebhookRequest) GetPayload() []byte {
	if r == nil {
		return nil
	}
	return r.Payload
}

func NewHandleWebhookRequestFromContext(ctx echo.Context) (*HandleWebhookRequest, error) {
	rawBody, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}

	return &HandleWebhookRequest{
		Signature: strings.TrimSpace(ctx.Request().Header.Get("X-Razorpay-Signature")),
		Payload:   rawBody,
	}, nil
}

func (r *HandleWebhookRequest) Validate() error {
	if strings.TrimSpace(r.GetSignature()) == "" {
		return errors.New("webhook signature is required")
	}
	if len(r.GetPayload()) == 0 {
		return errors.New("payload is required")
	}
	return nil
}

type CheckEnrollmentRequest struct {
	StudentId string
	ModuleId  string
}

func (r *CheckEnrollmentRequest) GetStudentId() string {
	if r == nil {
		return ""
	}
	return r.StudentId
}

func (r *CheckEnrollmentRequest) GetModuleId() string {
	if r == nil {
		return ""
	}
	return r.ModuleId
}

func NewCheckEnrollmentRequestFromContext(ctx echo.Context) (*CheckEnrollmentRequest, error) {
	return &CheckEnrollmentRequest{
		StudentId: strings.TrimSpace(ctx.QueryParam("student_id")),
		ModuleId:  strings.TrimSpace(ctx.QueryParam("module_id")),
	}, nil
}

func (r *CheckEnrollmentRequest) Validate() error {
	if strings.TrimSpace(r.GetStudentId()) == "" {
		return errors.New("student_id is required")
	}
	if strings.TrimSpace(r.GetModuleId()) == "" {
		return errors.New("module_id is required")
	}
	return nil
}
