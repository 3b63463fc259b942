// Package handler exposes the order and discount services over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
)

// OrderService is the order workflow used by the handlers.
type OrderService interface {
	CreateOrder(ctx context.Context, userID int64, req order.CreateRequest) (*order.Order, error)
	GetOrder(ctx context.Context, id int64) (*order.Order, error)
	ListUserOrders(ctx context.Context, userID int64) ([]*order.Order, error)
	CancelOrder(ctx context.Context, id int64) (*order.Order, error)
	UpdateStatus(ctx context.Context, id int64, status string) (*order.Order, error)
	UpdateLineItem(ctx context.Context, orderID, itemID int64, upd order.LineItemUpdate) (*order.Order, error)
}

// DiscountValidator evaluates codes before checkout.
type DiscountValidator interface {
	Validate(ctx context.Context, code string, orderAmount decimal.Decimal) (discount.Outcome, error)
}

// DiscountLedger answers usage queries.
type DiscountLedger interface {
	Stats(ctx context.Context, code string) (*discount.Stats, error)
	History(ctx context.Context, userID int64) ([]discount.Usage, error)
}

var (
	_ OrderService      = (*order.Service)(nil)
	_ DiscountValidator = (*discount.Validator)(nil)
	_ DiscountLedger    = (*discount.Ledger)(nil)
)

// Handler serves the storefront API.
type Handler struct {
	orders    OrderService
	discounts DiscountValidator
	ledger    DiscountLedger
}

// New constructs a Handler.
func New(orders OrderService, discounts DiscountValidator, ledger DiscountLedger) *Handler {
	return &Handler{
		orders:    orders,
		discounts: discounts,
		ledger:    ledger,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users/{userID}/orders", h.CreateOrder)
	mux.HandleFunc("GET /api/users/{userID}/orders", h.ListUserOrders)
	mux.HandleFunc("GET /api/users/{userID}/discount-usages", h.UserDiscountUsages)

	mux.HandleFunc("GET /api/orders/{orderID}", h.GetOrder)
	mux.HandleFunc("POST /api/orders/{orderID}/cancel", h.CancelOrder)
	mux.HandleFunc("PUT /api/orders/{orderID}/status", h.UpdateStatus)
	mux.HandleFunc("PATCH /api/orders/{orderID}/items/{itemID}", h.UpdateLineItem)

	mux.HandleFunc("GET /api/discounts/validate", h.ValidateDiscount)
	mux.HandleFunc("GET /api/discounts/{code}/usage", h.DiscountUsage)
}
