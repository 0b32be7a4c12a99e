package orders

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart          = errors.New("order: cart is empty")
	ErrProductUnavailable = errors.New("order: product unavailable")
	ErrInsufficientStock  = errors.New("order: insufficient stock")

	ErrCouponNotFound      = errors.New("coupon: not found")
	ErrCouponNotActive     = errors.New("coupon: not active")
	ErrCouponNotYetStarted = errors.New("coupon: not yet active")
	ErrCouponExpired       = errors.New("coupon: expired")
	ErrCouponBelowMinimum  = errors.New("coupon: order below minimum amount")
	ErrCouponUsageExceeded = errors.New("coupon: usage limit exceeded")

	ErrNotFound       = errors.New("order: not found")
	ErrForbidden      = errors.New("order: forbidden")
	ErrNotCancellable = errors.New("order: cannot be cancelled")
	ErrInvalidStatus  = errors.New("order: invalid status")

	// ErrInvalidTransition is a known status that the order cannot move to.
	// It reports the same code as ErrInvalidStatus.
	ErrInvalidTransition = fmt.Errorf("%w: transition not allowed", ErrInvalidStatus)
	ErrInvalidInput      = errors.New("order: invalid input")

	// ErrPersistence wraps any store I/O failure.
	ErrPersistence = errors.New("order: persistence failure")

	// ErrStoreNotFound is returned by stores when a row does not exist.
	ErrStoreNotFound = errors.New("store: not found")
)

type Code string

const (
	CodeEmptyCart          Code = "empty_cart"
	CodeProductUnavailable Code = "product_unavailable"
	CodeInsufficientStock  Code = "insufficient_stock"
	CodeCouponNotFound     Code = "coupon_not_found"
	CodeCouponNotActive    Code = "coupon_not_active"
	CodeCouponNotYetStart  Code = "coupon_not_yet_started"
	CodeCouponExpired      Code = "coupon_expired"
	CodeCouponBelowMinimum Code = "coupon_below_minimum"
	CodeCouponUsage        Code = "coupon_usage_exceeded"
	CodeNotFound           Code = "not_found"
	CodeForbidden          Code = "forbidden"
	CodeNotCancellable     Code = "not_cancellable"
	CodeInvalidStatus      Code = "invalid_status"
	CodeInvalidInput       Code = "invalid_input"
	CodePersistence        Code = "persistence_failure"
)

var codes = []struct {
	err  error
	code Code
	msg  string
}{
	{ErrEmptyCart, CodeEmptyCart, "cart is empty"},
	{ErrProductUnavailable, CodeProductUnavailable, "a product in the cart is no longer available"},
	{ErrInsufficientStock, CodeInsufficientStock, "insufficient stock for a product in the cart"},
	{ErrCouponNotFound, CodeCouponNotFound, "coupon not found"},
	{ErrCouponNotActive, CodeCouponNotActive, "coupon is not active"},
	{ErrCouponNotYetStarted, CodeCouponNotYetStart, "coupon is not yet active"},
	{ErrCouponExpired, CodeCouponExpired, "coupon has expired"},
	{ErrCouponBelowMinimum, CodeCouponBelowMinimum, "order does not reach the coupon minimum amount"},
	{ErrCouponUsageExceeded, CodeCouponUsage, "coupon usage limit exceeded"},
	{ErrNotFound, CodeNotFound, "order not found"},
	{ErrForbidden, CodeForbidden, "not authorized for this order"},
	{ErrNotCancellable, CodeNotCancellable, "order cannot be cancelled"},
	{ErrInvalidStatus, CodeInvalidStatus, "invalid order status"},
	{ErrInvalidInput, CodeInvalidInput, "invalid input"},
}

// ErrorCode maps err to a stable code and a caller-safe message.
// Anything unrecognised is reported as a persistence failure.
func ErrorCode(err error) (Code, string) {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code, c.msg
		}
	}
	return CodePersistence, "the order could not be processed, please retry"
}
