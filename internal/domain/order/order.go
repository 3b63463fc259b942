package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the aggregate root for a customer purchase. It exclusively owns
// its line items.
type Order struct {
	ID     int64
	Number string
	UserID int64
	Status Status

	// TotalAmount is the sum of line subtotals, less DiscountAmount once a
	// discount is applied, never negative.
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	DiscountCode   string

	ShippingAddress string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	Notes           string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time

	Items []*LineItem
}

// LineItem is one product line of an order. UnitPrice is the catalog price
// captured when the order was placed.
type LineItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal

	order *Order
}

// Order returns the owning order, or nil for a detached item.
func (li *LineItem) Order() *Order { return li.order }

func (li *LineItem) recalculate() {
	li.Subtotal = li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity))).Round(2)
}

// NewLineItem returns a detached line item with its subtotal computed. The
// unit price is rounded half-up to cents.
func NewLineItem(productID int64, qty int, unitPrice decimal.Decimal) *LineItem {
	li := &LineItem{ProductID: productID, Quantity: qty, UnitPrice: unitPrice.Round(2)}
	li.recalculate()
	return li
}

// Details are the customer-supplied fields of a new order.
type Details struct {
	ShippingAddress string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	Notes           string
}

// New returns a pending order for userID with a freshly generated number.
// A zero userID is rendered as 0 in the number.
func New(userID int64, details Details, now time.Time) *Order {
	now = now.UTC()
	return &Order{
		Number:          GenerateNumber(userID, now),
		UserID:          userID,
		Status:          StatusPending,
		TotalAmount:     decimal.Zero,
		DiscountAmount:  decimal.Zero,
		ShippingAddress: details.ShippingAddress,
		CustomerName:    details.CustomerName,
		CustomerEmail:   details.CustomerEmail,
		CustomerPhone:   details.CustomerPhone,
		Notes:           details.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// GenerateNumber formats an order number as ORD-<unix millis>-<user id>.
func GenerateNumber(userID int64, now time.Time) string {
	if userID < 0 {
		userID = 0
	}
	return fmt.Sprintf("ORD-%d-%d", now.UnixMilli(), userID)
}

// AddItem attaches li to the order and recalculates the total.
func (o *Order) AddItem(li *LineItem) {
	li.order = o
	li.OrderID = o.ID
	o.Items = append(o.Items, li)
	o.refreshTotal()
}

// RemoveItem detaches li from the order. It reports false when li does not
// belong to the order.
func (o *Order) RemoveItem(li *LineItem) bool {
	for i, it := range o.Items {
		if it != li {
			continue
		}
		o.Items = append(o.Items[:i], o.Items[i+1:]...)
		li.order = nil
		o.refreshTotal()
		return true
	}
	return false
}

// Item returns the line item with the given id.
func (o *Order) Item(id int64) (*LineItem, bool) {
	for _, it := range o.Items {
		if it.ID == id {
			return it, true
		}
	}
	return nil, false
}

// Subtotal returns the sum of line subtotals before any discount.
func (o *Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal)
	}
	return sum
}

// ItemCount returns the total number of units across all lines.
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// RecalculateTotal resets TotalAmount to the sum of line subtotals.
func (o *Order) RecalculateTotal() {
	o.TotalAmount = o.Subtotal()
}

// ApplyDiscount records amount against the order and sets the total to
// max(0, subtotal - amount).
func (o *Order) ApplyDiscount(code string, amount decimal.Decimal) {
	amount = amount.Round(2)
	o.DiscountCode = code
	o.DiscountAmount = amount

	total := o.Subtotal().Sub(amount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.TotalAmount = total
}

// UpdateItemQuantity corrects the quantity of a line and recalculates.
func (o *Order) UpdateItemQuantity(li *LineItem, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	li.Quantity = qty
	li.recalculate()
	o.refreshTotal()
	return nil
}

// UpdateItemPrice corrects the unit price of a line and recalculates.
// Prices finer than a cent are rejected.
func (o *Order) UpdateItemPrice(li *LineItem, price decimal.Decimal) error {
	if !price.IsPositive() || !price.Equal(price.Round(2)) {
		return ErrInvalidPrice
	}
	li.UnitPrice = price
	li.recalculate()
	o.refreshTotal()
	return nil
}

// refreshTotal recomputes the total, keeping any recorded discount.
func (o *Order) refreshTotal() {
	if o.DiscountAmount.IsPositive() {
		o.ApplyDiscount(o.DiscountCode, o.DiscountAmount)
		return
	}
	o.RecalculateTotal()
}

// CanBeCancelled reports whether Cancel would succeed.
func (o *Order) CanBeCancelled() bool {
	return o.Status == StatusPending || o.Status == StatusConfirmed
}

// IsCompleted reports whether the order reached a terminal status.
func (o *Order) IsCompleted() bool {
	return o.Status.IsTerminal()
}

// Confirm moves a pending order to confirmed.
func (o *Order) Confirm(now time.Time) error {
	return o.transition(StatusConfirmed, now)
}

// Ship moves a confirmed order to shipped and stamps ShippedAt.
func (o *Order) Ship(now time.Time) error {
	if err := o.transition(StatusShipped, now); err != nil {
		return err
	}
	t := now.UTC()
	o.ShippedAt = &t
	return nil
}

// Deliver moves a shipped order to delivered and stamps DeliveredAt.
func (o *Order) Deliver(now time.Time) error {
	if err := o.transition(StatusDelivered, now); err != nil {
		return err
	}
	t := now.UTC()
	o.DeliveredAt = &t
	return nil
}

// Cancel moves a pending or confirmed order to cancelled.
func (o *Order) Cancel(now time.Time) error {
	if err := o.transition(StatusCancelled, now); err != nil {
		return err
	}
	t := now.UTC()
	o.CancelledAt = &t
	return nil
}

// TransitionTo dispatches to the transition method for target.
func (o *Order) TransitionTo(target Status, now time.Time) error {
	switch target {
	case StatusConfirmed:
		return o.Confirm(now)
	case StatusShipped:
		return o.Ship(now)
	case StatusDelivered:
		return o.Deliver(now)
	case StatusCancelled:
		return o.Cancel(now)
	default:
		return &InvalidTransitionError{From: o.Status, To: target}
	}
}

func (o *Order) transition(to Status, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return &InvalidTransitionError{From: o.Status, To: to}
	}
	o.Status = to
	o.UpdatedAt = now.UTC()
	return nil
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create inserts the order and its items, assigning their ids.
	Create(ctx context.Context, o *Order) error
	// Update writes the order's status, totals and timestamps.
	Update(ctx context.Context, o *Order) error
	UpdateItem(ctx context.Context, li *LineItem) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	// GetForUpdate is GetByID with the order row locked for the enclosing
	// transaction.
	GetForUpdate(ctx context.Context, id int64) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]*Order, error)
}

// Attach links loaded items to o without touching totals. Repositories use
// it when rehydrating an order.
func (o *Order) Attach(items []*LineItem) {
	o.Items = items
	for _, li := range items {
		li.order = o
	}
}
