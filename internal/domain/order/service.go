package order

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

// ErrOrderCompleted is returned when a completed order is edited.
var ErrOrderCompleted = errors.New("order is already completed")

// DiscountValidator evaluates a discount code against an order amount.
type DiscountValidator interface {
	Validate(ctx context.Context, code string, orderAmount decimal.Decimal) (discount.Outcome, error)
}

// UsageRecorder records an applied discount.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, d *discount.Discount, userID int64, orderID *int64, amount decimal.Decimal) (*discount.Usage, error)
}

// Transactor runs fn inside a single storage transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Deps are the collaborators of a Service.
type Deps struct {
	Users     user.Repository
	Carts     cart.Repository
	Products  product.Repository
	Orders    Repository
	Discounts DiscountValidator
	Usages    UsageRecorder
	Tx        Transactor
}

// CreateRequest holds the customer input for turning a cart into an order.
type CreateRequest struct {
	Details
	// DiscountCode is optional; blank after trimming means none.
	DiscountCode string
}

// LineItemUpdate is an administrative correction of a line. Nil fields are
// left unchanged.
type LineItemUpdate struct {
	Quantity  *int
	UnitPrice *decimal.Decimal
}

// Service implements the order workflows.
type Service struct {
	users     user.Repository
	carts     cart.Repository
	products  product.Repository
	orders    Repository
	discounts DiscountValidator
	usages    UsageRecorder
	tx        Transactor

	now    func() time.Time
	tracer trace.Tracer
	m      instruments
}

// NewService creates an order Service.
func NewService(deps Deps, opts ...Option) *Service {
	s := &Service{
		users:     deps.Users,
		carts:     deps.Carts,
		products:  deps.Products,
		orders:    deps.Orders,
		discounts: deps.Discounts,
		usages:    deps.Usages,
		tx:        deps.Tx,
		now:       time.Now,
		tracer:    otel.GetTracerProvider().Tracer(instrumentationName),
		m:         defaultInstruments(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder converts the user's cart into a pending order. Every step runs
// in one transaction: stock deductions, the usage record and the cart clear
// are all rolled back if any later step fails.
func (s *Service) CreateOrder(ctx context.Context, userID int64, req CreateRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.CreateOrder",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	start := s.now()
	var created *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.createOrder(ctx, userID, req)
		if err != nil {
			return err
		}
		created = o
		return nil
	})

	result := "success"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order failed")
	}
	s.m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("status", result)))
	s.m.duration.Record(ctx, s.now().Sub(start).Seconds())
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("order.id", created.ID),
		attribute.String("order.number", created.Number),
	)
	zctx.From(ctx).Info("order created",
		zap.Int64("order_id", created.ID),
		zap.String("order_number", created.Number),
		zap.Int64("user_id", userID),
		zap.String("total", created.TotalAmount.StringFixed(2)),
		zap.String("discount_code", created.DiscountCode),
	)
	return created, nil
}

func (s *Service) createOrder(ctx context.Context, userID int64, req CreateRequest) (*Order, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, errors.Wrap(err, "get user")
	}

	c, err := s.carts.FindOrCreateForUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	// Lock every product row before reading stock so concurrent checkouts
	// for the same product serialize here.
	locked, err := s.products.LockByIDs(ctx, c.ProductIDs())
	if err != nil {
		return nil, errors.Wrap(err, "lock products")
	}
	products := make(map[int64]product.Product, len(locked))
	for _, p := range locked {
		products[p.ID] = p
	}

	requested := make(map[int64]int, len(c.Items))
	for _, it := range c.Items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		requested[it.ProductID] += it.Quantity
	}
	for _, it := range c.Items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, errors.Wrapf(product.ErrNotFound, "product %d", it.ProductID)
		}
		if want := requested[it.ProductID]; want > p.Stock {
			return nil, &InsufficientStockError{
				ProductID: p.ID,
				Available: p.Stock,
				Requested: want,
			}
		}
	}

	// Line prices come from the locked rows, not the cart snapshot.
	o := New(userID, req.Details, s.now())
	for _, it := range c.Items {
		o.AddItem(NewLineItem(it.ProductID, it.Quantity, products[it.ProductID].Price))
	}
	rawTotal := o.TotalAmount

	// The discount is settled before anything is written.
	var applied discount.Outcome
	if code := strings.TrimSpace(req.DiscountCode); code != "" {
		applied, err = s.discounts.Validate(ctx, code, rawTotal)
		if err != nil {
			return nil, errors.Wrap(err, "validate discount")
		}
		if err := applied.Err(); err != nil {
			return nil, err
		}
		o.ApplyDiscount(applied.Discount.Code, applied.Amount)
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	for _, li := range sortedByProduct(o.Items) {
		if err := s.products.DecrementStock(ctx, li.ProductID, li.Quantity); err != nil {
			if errors.Is(err, product.ErrOutOfStock) {
				return nil, &InsufficientStockError{
					ProductID: li.ProductID,
					Available: products[li.ProductID].Stock,
					Requested: requested[li.ProductID],
				}
			}
			return nil, errors.Wrapf(err, "deduct stock for product %d", li.ProductID)
		}
	}

	if applied.Valid {
		orderID := o.ID
		if _, err := s.usages.RecordUsage(ctx, applied.Discount, userID, &orderID, applied.Amount); err != nil {
			return nil, errors.Wrap(err, "record discount usage")
		}
	}

	if err := s.carts.Clear(ctx, c.ID); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}

	return o, nil
}

// GetOrder returns the order with its line items.
func (s *Service) GetOrder(ctx context.Context, id int64) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// ListUserOrders returns the user's orders, newest first.
func (s *Service) ListUserOrders(ctx context.Context, userID int64) ([]*Order, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// CancelOrder cancels a pending or confirmed order and returns its units to
// stock.
func (s *Service) CancelOrder(ctx context.Context, id int64) (*Order, error) {
	return s.changeStatus(ctx, id, StatusCancelled)
}

// UpdateStatus moves the order to the named status. Names are parsed
// case-insensitively.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) (*Order, error) {
	target, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return s.changeStatus(ctx, id, target)
}

func (s *Service) changeStatus(ctx context.Context, id int64, target Status) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateStatus",
		trace.WithAttributes(
			attribute.Int64("order.id", id),
			attribute.String("order.status.target", string(target)),
		),
	)
	defer span.End()

	var (
		updated *Order
		from    Status
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, id)
		if err != nil {
			return errors.Wrap(err, "get order")
		}
		from = o.Status
		if err := o.TransitionTo(target, s.now()); err != nil {
			return err
		}
		if target == StatusCancelled {
			for _, li := range sortedByProduct(o.Items) {
				if err := s.products.IncrementStock(ctx, li.ProductID, li.Quantity); err != nil {
					return errors.Wrapf(err, "restock product %d", li.ProductID)
				}
			}
		}
		if err := s.orders.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		updated = o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status change failed")
		return nil, err
	}

	s.m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("to", string(target))))
	lg := zctx.From(ctx)
	if target == StatusCancelled {
		lg.Info("order cancelled",
			zap.Int64("order_id", id),
			zap.String("from", string(from)),
			zap.Int("restocked_lines", len(updated.Items)),
		)
		return updated, nil
	}
	lg.Info("order status changed",
		zap.Int64("order_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
	)
	return updated, nil
}

// UpdateLineItem applies an administrative correction to one line and
// recalculates the order total, keeping any recorded discount.
func (s *Service) UpdateLineItem(ctx context.Context, orderID, itemID int64, upd LineItemUpdate) (*Order, error) {
	var updated *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return errors.Wrap(err, "get order")
		}
		if o.IsCompleted() {
			return ErrOrderCompleted
		}
		li, ok := o.Item(itemID)
		if !ok {
			return ErrLineItemNotFound
		}
		if upd.Quantity != nil {
			if err := o.UpdateItemQuantity(li, *upd.Quantity); err != nil {
				return err
			}
		}
		if upd.UnitPrice != nil {
			if err := o.UpdateItemPrice(li, *upd.UnitPrice); err != nil {
				return err
			}
		}
		o.UpdatedAt = s.now().UTC()

		if err := s.orders.UpdateItem(ctx, li); err != nil {
			return errors.Wrap(err, "update order item")
		}
		if err := s.orders.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// sortedByProduct returns items ordered by product id, matching the row
// lock order of LockByIDs.
func sortedByProduct(items []*LineItem) []*LineItem {
	out := make([]*LineItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
