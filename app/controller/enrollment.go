package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-enrollments/app/factory"
	"github.com/vibast-solutions/ms-go-enrollments/app/mapper"
	"github.com/vibast-solutions/ms-go-enrollments/app/service"
	"github.com/vibast-solutions/ms-go-enrollments/app/types"
)

type EnrollmentController struct {
	enrollmentService *service.EnrollmentService
	gatewayKeyID      string
	logger            logrus.FieldLogger
}

func NewEnrollmentController(enrollmentService *service.EnrollmentService, gatewayKeyID string) *EnrollmentController {
	return &EnrollmentController{
		enrollmentService: enrollmentService,
		gatewayKeyID:      strings.TrimSpace(gatewayKeyID),
		logger:            factory.NewModuleLogger("enrollments-controller"),
	}
}

func (c *EnrollmentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *EnrollmentController) CreateOrder(ctx echo.Context) error {
	req, err := types.NewCreateOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.enrollmentService.CreateOrder(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrModuleNotFound):
			return c.writeError(ctx, http.StatusNotFound, "module not found")
		case errors.Is(err, service.ErrAlreadyEnrolled):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrGatewayUnavailable):
			return c.writeError(ctx, http.StatusBadGateway, "payment gateway unavailable")
		default:
			c.logger.WithError(err).Error("Create order failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	response := &types.CreateOrderResponse{
		Enrollment:  mapper.EnrollmentToResponse(result.Enrollment),
		OrderId:     result.GatewayOrderID,
		AmountCents: result.AmountCents,
		Currency:    result.Currency,
		Free:        result.Free,
	}
	if !result.Free {
		response.KeyId = c.gatewayKeyID
	}

	return ctx.JSON(http.StatusCreated, response)
}

func (c *EnrollmentController) VerifyPayment(ctx echo.Context) error {
	req, err := types.NewVerifyPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.enrollmentService.VerifyPayment(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInvalidSignature):
			return c.writeError(ctx, http.StatusBadRequest, "invalid payment signature")
		case errors.Is(err, service.ErrEnrollmentNotFound):
			return c.writeError(ctx, http.StatusNotFound, "enrollment not found")
		case errors.Is(err, service.ErrPaymentMismatch):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		default:
			c.logger.WithError(err).Error("Verify payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.EnrollmentEnvelopeResponse{Enrollment: mapper.EnrollmentToResponse(item)})
}

// HandleWebhook acknowledges signed deliveries with 200 even when the
// event type is not one we act on, so the gateway does not retry.
func (c *EnrollmentController) HandleWebhook(ctx echo.Context) error {
	req, err := types.NewHandleWebhookRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	_, err = c.enrollmentService.HandleWebhook(ctx.Request().Context(), req.GetPayload(), req.GetSignature())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSignature):
			return c.writeError(ctx, http.StatusBadRequest, "invalid webhook signature")
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPaymentMismatch):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		default:
			c.logger.WithError(err).Error("Handle webhook failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.WebhookAckResponse{Received: true})
}

func (c *EnrollmentController) GetEnrollment(ctx echo.Context) error {
	id := strings.TrimSpace(ctx.Param("id"))
	if id == "" {
		return c.writeError(ctx, http.StatusBadRequest, "enrollment id is required")
	}

	item, err := c.enrollmentService.GetEnrollment(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrEnrollmentNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "enrollment not found")
		}
		c.logger.WithError(err).Error("Get enrollment failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.EnrollmentEnvelopeResponse{Enrollment: mapper.EnrollmentToResponse(item)})
}

func (c *EnrollmentController) CancelEnrollment(ctx echo.Context) error {
	req, err := types.NewCancelEnrollmentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.enrollmentService.CancelEnrollment(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrInvalidStatus):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrEnrollmentNotFound):
			return c.writeError(ctx, http.StatusNotFound, "enrollment not found")
		case errors.Is(err, service.ErrForbidden):
			return c.writeError(ctx, http.StatusForbidden, err.Error())
		default:
			c.logger.WithError(err).Error("Cancel enrollment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.EnrollmentEnvelopeResponse{Enrollment: mapper.EnrollmentToResponse(item)})
}

func (c *EnrollmentController) ListStudentEnrollments(ctx echo.Context) error {
	studentID := strings.TrimSpace(ctx.QueryParam("student_id"))
	if studentID == "" {
		return c.writeError(ctx, http.StatusBadRequest, "student_id is required")
	}

	items, err := c.enrollmentService.ListStudentEnrollments(ctx.Request().Context(), studentID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		c.logger.WithError(err).Error("List student enrollments failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListEnrollmentsResponse{Enrollments: mapper.EnrollmentsToResponse(items)})
}

func (c *EnrollmentController) ListModuleStudents(ctx echo.Context) error {
	moduleID := strings.TrimSpace(ctx.Param("moduleId"))
	educatorID := strings.TrimSpace(ctx.QueryParam("educator_id"))
	if moduleID == "" {
		return c.writeError(ctx, http.StatusBadRequest, "module id is required")
	}
	if educatorID == "" {
		return c.writeError(ctx, http.StatusBadRequest, "educator_id is required")
	}

	items, err := c.enrollmentService.ListModuleStudents(ctx.Request().Context(), moduleID, educatorID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrModuleNotFound):
			return c.writeError(ctx, http.StatusNotFound, "module not found")
		case errors.Is(err, service.ErrForbidden):
			return c.writeError(ctx, http.StatusForbidden, err.Error())
		default:
			c.logger.WithError(err).Error("List module students failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.ListEnrollmentsResponse{Enrollments: mapper.EnrollmentsToResponse(items)})
}

func (c *EnrollmentController) CheckEnrollment(ctx echo.Context) error {
	req, err := types.NewCheckEnrollmentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	enrolled, item, err := c.enrollmentService.CheckEnrollment(ctx.Request().Context(), req.GetStudentId(), req.GetModuleId())
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		c.logger.WithError(err).Error("Check enrollment failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.CheckEnrollmentResponse{
		Enrolled:   enrolled,
		Enrollment: mapper.EnrollmentToResponse(item),
	})
}

func (c *EnrollmentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
