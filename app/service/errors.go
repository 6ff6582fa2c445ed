package service

import "errors"

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrModuleNotFound     = errors.New("module not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrAlreadyEnrolled    = errors.New("student is already enrolled")
	ErrInvalidSignature   = errors.New("invalid gateway signature")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrForbidden          = errors.New("actor is not allowed to perform this action")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrPaymentMismatch    = errors.New("payment does not match enrollment")
)
