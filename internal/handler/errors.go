package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

// Error kinds reported in the "kind" field of error bodies.
const (
	kindNotFound          = "not_found"
	kindInvalidTransition = "invalid_state_transition"
	kindInsufficientStock = "insufficient_stock"
	kindEmptyCart         = "empty_cart"
	kindInvalidDiscount   = "invalid_discount"
	kindInvalidQuantity   = "invalid_quantity"
	kindInvalidPrice      = "invalid_price"
	kindInvalidStatus     = "invalid_status"
	kindOrderCompleted    = "order_completed"
	kindBadRequest        = "bad_request"
	kindInternal          = "internal"
)

// apiError is an error already shaped for the wire.
type apiError struct {
	status  int
	kind    string
	message string
	// reason is set for invalid_discount.
	reason discount.Reason
}

func badRequest(msg string) *apiError {
	return &apiError{status: http.StatusBadRequest, kind: kindBadRequest, message: msg}
}

func (e *apiError) Error() string { return e.message }

// classify maps domain errors to their HTTP representation.
func classify(err error) *apiError {
	var (
		apiErr   *apiError
		stockErr *order.InsufficientStockError
		transErr *order.InvalidTransitionError
		discErr  *discount.InvalidDiscountError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &stockErr):
		return &apiError{status: http.StatusConflict, kind: kindInsufficientStock, message: stockErr.Error()}
	case errors.As(err, &transErr):
		return &apiError{status: http.StatusConflict, kind: kindInvalidTransition, message: transErr.Error()}
	case errors.As(err, &discErr):
		return &apiError{
			status:  http.StatusUnprocessableEntity,
			kind:    kindInvalidDiscount,
			message: discErr.Error(),
			reason:  discErr.Reason,
		}
	case errors.Is(err, order.ErrEmptyCart):
		return &apiError{status: http.StatusUnprocessableEntity, kind: kindEmptyCart, message: "Cart is empty"}
	case errors.Is(err, order.ErrInvalidQuantity):
		return &apiError{status: http.StatusUnprocessableEntity, kind: kindInvalidQuantity, message: order.ErrInvalidQuantity.Error()}
	case errors.Is(err, order.ErrInvalidPrice):
		return &apiError{status: http.StatusUnprocessableEntity, kind: kindInvalidPrice, message: order.ErrInvalidPrice.Error()}
	case errors.Is(err, order.ErrInvalidStatus):
		return &apiError{status: http.StatusBadRequest, kind: kindInvalidStatus, message: err.Error()}
	case errors.Is(err, order.ErrOrderCompleted):
		return &apiError{status: http.StatusConflict, kind: kindOrderCompleted, message: order.ErrOrderCompleted.Error()}
	case errors.Is(err, user.ErrNotFound):
		return notFound("User not found")
	case errors.Is(err, order.ErrNotFound):
		return notFound("Order not found")
	case errors.Is(err, order.ErrLineItemNotFound):
		return notFound("Order item not found")
	case errors.Is(err, product.ErrNotFound):
		return notFound("Product not found")
	case errors.Is(err, discount.ErrNotFound):
		return notFound("Discount code not found")
	default:
		return &apiError{status: http.StatusInternalServerError, kind: kindInternal, message: "internal server error"}
	}
}

func notFound(msg string) *apiError {
	return &apiError{status: http.StatusNotFound, kind: kindNotFound, message: msg}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := classify(err)
	if e.status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}

	writeJSON(w, e.status, func(enc *jx.Encoder) {
		enc.Obj(func(enc *jx.Encoder) {
			enc.Field("code", func(enc *jx.Encoder) { enc.Int(e.status) })
			enc.Field("kind", func(enc *jx.Encoder) { enc.Str(e.kind) })
			enc.Field("message", func(enc *jx.Encoder) { enc.Str(e.message) })
			if e.reason != "" {
				enc.Field("reason", func(enc *jx.Encoder) { enc.Str(string(e.reason)) })
			}
		})
	})
}
