// Package apperrors defines the domain error type shared by all services.
// Domain errors carry a stable code suitable for client-side branching and
// map to 4xx responses; anything else is treated as an infrastructure error.
package apperrors

import (
	"errors"
	"fmt"
)

// Stable error codes.
const (
	CodeCartEmpty               = "CART_EMPTY"
	CodeVariantNotFound         = "VARIANT_NOT_FOUND"
	CodeVariantInactive         = "VARIANT_INACTIVE"
	CodeInsufficientStock       = "INSUFFICIENT_STOCK"
	CodeAddressNotFound         = "ADDRESS_NOT_FOUND"
	CodeOrderNotFound           = "ORDER_NOT_FOUND"
	CodePaymentNotFound         = "PAYMENT_NOT_FOUND"
	CodePaymentFailed           = "PAYMENT_FAILED"
	CodeRefundFailed            = "REFUND_FAILED"
	CodeCouponNotFound          = "COUPON_NOT_FOUND"
	CodeCouponInactive          = "COUPON_INACTIVE"
	CodeCouponExpired           = "COUPON_EXPIRED"
	CodeCouponExhausted         = "COUPON_EXHAUSTED"
	CodeCouponAlreadyUsed       = "COUPON_ALREADY_USED"
	CodeCouponMinOrder          = "COUPON_MIN_ORDER"
	CodeInvalidStateTransition  = "INVALID_STATE_TRANSITION"
	CodeInvalidReturnTransition = "INVALID_RETURN_TRANSITION"
	CodeReturnNotFound          = "RETURN_NOT_FOUND"
	CodeReturnNotAllowed        = "RETURN_NOT_ALLOWED"
	CodeReturnAlreadyExists     = "RETURN_ALREADY_EXISTS"
	CodeUseFullCancel           = "USE_FULL_CANCEL"
	CodeInvalidItems            = "INVALID_ITEMS"
	CodeInvalidInput            = "INVALID_INPUT"
)

// Error is a user-actionable domain error with a stable code.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates a domain error with a stable code.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetails attaches structured context for the client.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// AsError unwraps err into a domain *Error, or nil if it is not one.
func AsError(err error) *Error {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// HasCode reports whether err is a domain error carrying code.
func HasCode(err error, code string) bool {
	if domainErr := AsError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}
