package service

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind классифицирует ошибку сервиса для клиента API.
type Kind string

const (
	KindValidation              Kind = "validation_error"
	KindInvalidDiscountCode     Kind = "invalid_discount_code"
	KindDiscountMismatch        Kind = "discount_mismatch"
	KindPriceMismatch           Kind = "price_mismatch"
	KindUnauthorized            Kind = "unauthorized"
	KindLicenseValidationFailed Kind = "license_validation_failed"
	KindLinkExpired             Kind = "link_expired"
	KindInvalidSignature        Kind = "invalid_signature"
	KindNotFound                Kind = "not_found"
	KindPaymentGateway          Kind = "payment_gateway_error"
	KindInternal                Kind = "internal_error"
)

// Причины отказа валидатора лицензий, передаются в details.reason.
const (
	ReasonLicenseNotFound       = "license_not_found"
	ReasonLicenseExpired        = "license_expired"
	ReasonDownloadQuotaExceeded = "download_quota_exceeded"
)

// Error описывает ошибку бизнес-логики, которую можно показать клиенту.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status возвращает HTTP-статус для вида ошибки.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindInvalidDiscountCode, KindDiscountMismatch, KindPriceMismatch:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindLicenseValidationFailed, KindLinkExpired, KindInvalidSignature:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindPaymentGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func validationError(fields map[string]string) *Error {
	details := make(map[string]any, len(fields))
	for k, v := range fields {
		details[k] = v
	}
	return &Error{Kind: KindValidation, Message: "Invalid request data", Details: details}
}

func internalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: "An unexpected error occurred", Err: err}
}

// AsError приводит произвольную ошибку к *Error. Неизвестные ошибки становятся internal_error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return internalError(err)
}
