package order

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

// --- Mock implementations ---

type mockUserRepo struct {
	byID map[int64]*user.User
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (*user.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) Upsert(_ context.Context, u *user.User) error {
	m.byID[u.ID] = u
	return nil
}

type mockCartRepo struct {
	cart    *cart.Cart
	cleared bool
}

func (m *mockCartRepo) FindOrCreateForUser(_ context.Context, userID int64) (*cart.Cart, error) {
	if m.cart == nil {
		m.cart = &cart.Cart{ID: 1, UserID: userID}
	}
	return m.cart, nil
}

func (m *mockCartRepo) AddItem(_ context.Context, _, productID int64, qty int) error {
	m.cart.Items = append(m.cart.Items, cart.Item{ProductID: productID, Quantity: qty})
	return nil
}

func (m *mockCartRepo) Clear(_ context.Context, _ int64) error {
	m.cleared = true
	m.cart.Items = nil
	return nil
}

type mockProductRepo struct {
	byID     map[int64]*product.Product
	locked   [][]int64
	restored map[int64]int
	// staleStock makes DecrementStock fail as if a concurrent checkout won.
	staleStock bool
}

func newProductRepo(products ...product.Product) *mockProductRepo {
	m := &mockProductRepo{byID: make(map[int64]*product.Product), restored: make(map[int64]int)}
	for i := range products {
		m.byID[products[i].ID] = &products[i]
	}
	return m
}

func (m *mockProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) LockByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	m.locked = append(m.locked, sorted)

	var out []product.Product
	for _, id := range sorted {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) DecrementStock(_ context.Context, id int64, qty int) error {
	p, ok := m.byID[id]
	if !ok {
		return product.ErrNotFound
	}
	if m.staleStock || p.Stock < qty {
		return product.ErrOutOfStock
	}
	p.Stock -= qty
	return nil
}

func (m *mockProductRepo) IncrementStock(_ context.Context, id int64, qty int) error {
	m.byID[id].Stock += qty
	m.restored[id] += qty
	return nil
}

func (m *mockProductRepo) Upsert(_ context.Context, p *product.Product) error {
	m.byID[p.ID] = p
	return nil
}

type mockOrderRepo struct {
	byID    map[int64]*Order
	nextID  int64
	created []*Order
	updates int
}

func newOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{byID: make(map[int64]*Order)}
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.nextID++
	o.ID = m.nextID
	for i, li := range o.Items {
		li.ID = int64(i + 1)
		li.OrderID = o.ID
	}
	m.byID[o.ID] = o
	m.created = append(m.created, o)
	return nil
}

func (m *mockOrderRepo) Update(_ context.Context, o *Order) error {
	m.updates++
	m.byID[o.ID] = o
	return nil
}

func (m *mockOrderRepo) UpdateItem(_ context.Context, _ *LineItem) error { return nil }

func (m *mockOrderRepo) GetByID(_ context.Context, id int64) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) GetForUpdate(ctx context.Context, id int64) (*Order, error) {
	return m.GetByID(ctx, id)
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID int64) ([]*Order, error) {
	var out []*Order
	for _, o := range m.created {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

type mockValidator struct {
	outcome discount.Outcome
	err     error
	gotCode string
	gotAmt  decimal.Decimal
}

func (m *mockValidator) Validate(_ context.Context, code string, amount decimal.Decimal) (discount.Outcome, error) {
	m.gotCode = code
	m.gotAmt = amount
	return m.outcome, m.err
}

type mockRecorder struct {
	calls   int
	orderID int64
	amount  decimal.Decimal
	err     error
}

func (m *mockRecorder) RecordUsage(_ context.Context, d *discount.Discount, userID int64, orderID *int64, amount decimal.Decimal) (*discount.Usage, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.calls++
	m.orderID = *orderID
	m.amount = amount
	return &discount.Usage{DiscountID: d.ID, UserID: userID, OrderID: orderID, Amount: amount}, nil
}

type mockTx struct {
	calls      int
	rolledBack int
}

func (m *mockTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	if err := fn(ctx); err != nil {
		m.rolledBack++
		return err
	}
	return nil
}

// --- Helpers ---

type fixture struct {
	users     *mockUserRepo
	carts     *mockCartRepo
	products  *mockProductRepo
	orders    *mockOrderRepo
	validator *mockValidator
	recorder  *mockRecorder
	tx        *mockTx
	svc       *Service
}

func newFixture(items []cart.Item, products ...product.Product) *fixture {
	f := &fixture{
		users:     &mockUserRepo{byID: map[int64]*user.User{7: {ID: 7, Email: "ann@example.com"}}},
		carts:     &mockCartRepo{cart: &cart.Cart{ID: 11, UserID: 7, Items: items}},
		products:  newProductRepo(products...),
		orders:    newOrderRepo(),
		validator: &mockValidator{},
		recorder:  &mockRecorder{},
		tx:        &mockTx{},
	}
	f.svc = NewService(Deps{
		Users:     f.users,
		Carts:     f.carts,
		Products:  f.products,
		Orders:    f.orders,
		Discounts: f.validator,
		Usages:    f.recorder,
		Tx:        f.tx,
	})
	f.svc.now = func() time.Time { return testNow }
	return f
}

func validOutcome(code, amount string) discount.Outcome {
	return discount.Outcome{
		Valid:    true,
		Discount: &discount.Discount{ID: 5, Code: code, Active: true},
		Amount:   dec(amount),
	}
}

// --- Tests ---

func TestCreateOrder(t *testing.T) {
	f := newFixture(
		[]cart.Item{{ProductID: 2, Quantity: 1}, {ProductID: 1, Quantity: 2}},
		product.Product{ID: 1, Name: "Mouse", Price: dec("25000"), Stock: 10},
		product.Product{ID: 2, Name: "Keyboard", Price: dec("100000"), Stock: 3},
	)

	o, err := f.svc.CreateOrder(context.Background(), 7, CreateRequest{
		Details: Details{CustomerName: "Ann", ShippingAddress: "Main st 1"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), o.ID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "ORD-1772366400000-7", o.Number)
	assert.Equal(t, "Ann", o.CustomerName)
	assert.True(t, o.TotalAmount.Equal(dec("150000")), "got %s", o.TotalAmount)
	assert.True(t, o.DiscountAmount.IsZero())
	require.Len(t, o.Items, 2)

	assert.Equal(t, 8, f.products.byID[1].Stock)
	assert.Equal(t, 2, f.products.byID[2].Stock)
	assert.Equal(t, [][]int64{{1, 2}}, f.products.locked)
	assert.True(t, f.carts.cleared)
	assert.Equal(t, 0, f.recorder.calls)
	assert.Equal(t, 1, f.tx.calls)
}

func TestCreateOrderUsesLivePrice(t *testing.T) {
	f := newFixture(
		[]cart.Item{{ProductID: 1, Quantity: 2, Product: product.Product{ID: 1, Price: dec("10")}}},
		product.Product{ID: 1, Price: dec("12.50"), Stock: 5},
	)

	o, err := f.svc.CreateOrder(context.Background(), 7, CreateRequest{})
	require.NoError(t, err)
	assert.True(t, o.Items[0].UnitPrice.Equal(dec("12.50")))
	assert.True(t, o.TotalAmount.Equal(dec("25.00")))
}

func TestCreateOrderWithDiscount(t *testing.T) {
	f := newFixture(
		[]cart.Item{{ProductID: 1, Quantity: 1}},
		product.Product{ID: 1, Price: dec("150000"), Stock: 5},
	)
	f.validator.outcome = validOutcome("WELCOME10", "15000")

	o, err := f.svc.CreateOrder(context.Background(), 7, CreateRequest{DiscountCode: "  WELCOME10 "})
	require.NoError(t, err)

	assert.Equal(t, "WELCOME10", f.validator.gotCode)
	assert.True(t, f.validator.gotAmt.Equal(dec("150000")), "discount evaluated against raw total")
	assert.Equal(t, "WELCOME10", o.DiscountCode)
	assert.True(t, o.DiscountAmount.Equal(dec("15000")))
	assert.True(t, o.TotalAmount.Equal(dec("135000")), "got %s", o.TotalAmount)

	assert.Equal(t, 1, f.recorder.calls)
	assert.Equal(t, o.ID, f.recorder.orderID)
	assert.True(t, f.recorder.amount.Equal(dec("15000")))
}

func TestCreateOrderDiscountFloorsAtZero(t *testing.T) {
	f := newFixture(
		[]cart.Item{{ProductID: 1, Quantity: 1}},
		product.Product{ID: 1, Price: dec("30000"), Stock: 5},
	)
	f.validator.outcome = validOutcome("FLAT50K", "50000")

	o, err := f.svc.CreateOrder(context.Background(), 7, CreateRequest{DiscountCode: "FLAT50K"})
	require.NoError(t, err)
	assert.True(t, o.TotalAmount.IsZero(), "got %s", o.TotalAmount)
	assert.True(t, o.DiscountAmount.Equal(dec("50000")))
}

func TestCreateOrderFailures(t *testing.T) {
	tests := []struct {
		name    string
		userID  int64
		items   []cart.Item
		setup   func(f *fixture)
		wantErr error
		check   func(t *testing.T, err error)
	}{
		{
			name:    "UserNotFound",
			userID:  99,
			items:   []cart.Item{{ProductID: 1, Quantity: 1}},
			wantErr: user.ErrNotFound,
		},
		{
			name:    "EmptyCart",
			userID:  7,
			wantErr: ErrEmptyCart,
		},
		{
			name:    "ProductNotFound",
			userID:  7,
			items:   []cart.Item{{ProductID: 404, Quantity: 1}},
			wantErr: product.ErrNotFound,
		},
		{
			name:   "InsufficientStock",
			userID: 7,
			items:  []cart.Item{{ProductID: 1, Quantity: 15}},
			check: func(t *testing.T, err error) {
				var se *InsufficientStockError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, 10, se.Available)
				assert.Equal(t, 15, se.Requested)
				assert.Equal(t, "Insufficient stock. Available: 10, Requested: 15", se.Error())
			},
		},
		{
			name:   "InvalidDiscount",
			userID: 7,
			items:  []cart.Item{{ProductID: 1, Quantity: 1}},
			setup: func(f *fixture) {
				f.validator.outcome = discount.Outcome{
					Reason:         discount.ReasonInsufficientAmount,
					MinOrderAmount: dec("100000"),
				}
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, discount.ErrInvalidDiscount)
				var de *discount.InvalidDiscountError
				require.True(t, errors.As(err, &de))
				assert.Equal(t, discount.ReasonInsufficientAmount, de.Reason)
			},
		},
		{
			name:   "DiscountLookupFails",
			userID: 7,
			items:  []cart.Item{{ProductID: 1, Quantity: 1}},
			setup: func(f *fixture) {
				f.validator.err = errors.New("connection reset")
			},
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "connection reset")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.items, product.Product{ID: 1, Price: dec("50000"), Stock: 10})
			if tt.setup != nil {
				tt.setup(f)
			}

			o, err := f.svc.CreateOrder(context.Background(), tt.userID, CreateRequest{DiscountCode: "CODE"})
			require.Error(t, err)
			assert.Nil(t, o)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, err)
			}

			// Nothing was written.
			assert.Empty(t, f.orders.created)
			assert.Equal(t, 10, f.products.byID[1].Stock)
			assert.Equal(t, 0, f.recorder.calls)
			assert.False(t, f.carts.cleared)
			assert.Equal(t, 1, f.tx.rolledBack)
		})
	}
}

func TestCreateOrderStockRace(t *testing.T) {
	f := newFixture(
		[]cart.Item{{ProductID: 1, Quantity: 1}},
		product.Product{ID: 1, Price: dec("10"), Stock: 1},
	)
	f.products.staleStock = true

	_, err := f.svc.CreateOrder(context.Background(), 7, CreateRequest{})
	var se *InsufficientStockError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Requested)
	assert.Equal(t, 1, f.tx.rolledBack)
}

func TestCreateOrderUsageLimitRace(t *testing.T) {
	f := newFixture(
		[]cart.Item{{ProductID: 1, Quantity: 1}},
		product.Product{ID: 1, Price: dec("150000"), Stock: 5},
	)
	f.validator.outcome = validOutcome("WELCOME10", "15000")
	f.recorder.err = &discount.InvalidDiscountError{Reason: discount.ReasonLimitReached}

	_, err := f.svc.CreateOrder(context.Background(), 7, CreateRequest{DiscountCode: "WELCOME10"})
	assert.ErrorIs(t, err, discount.ErrInvalidDiscount)
	assert.False(t, f.carts.cleared)
	assert.Equal(t, 1, f.tx.rolledBack)
}

func placeOrder(t *testing.T, f *fixture) *Order {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), 7, CreateRequest{})
	require.NoError(t, err)
	return o
}

func TestCancelOrderRestocks(t *testing.T) {
	f := newFixture(
		[]cart.Item{{ProductID: 1, Quantity: 3}},
		product.Product{ID: 1, Price: dec("10"), Stock: 10},
	)
	o := placeOrder(t, f)
	require.Equal(t, 7, f.products.byID[1].Stock)

	got, err := f.svc.CancelOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.NotNil(t, got.CancelledAt)
	assert.Equal(t, 10, f.products.byID[1].Stock)
	assert.Equal(t, 3, f.products.restored[1])

	_, err = f.svc.CancelOrder(context.Background(), o.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 10, f.products.byID[1].Stock, "second cancel must not restock")
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(
		[]cart.Item{{ProductID: 1, Quantity: 1}},
		product.Product{ID: 1, Price: dec("10"), Stock: 10},
	)
	o := placeOrder(t, f)
	ctx := context.Background()

	for _, status := range []string{"confirmed", "SHIPPED", "Delivered"} {
		got, err := f.svc.UpdateStatus(ctx, o.ID, status)
		require.NoError(t, err, status)
		want, _ := ParseStatus(status)
		assert.Equal(t, want, got.Status)
	}
	assert.Equal(t, StatusDelivered, o.Status)
	assert.Empty(t, f.products.restored)

	_, err := f.svc.UpdateStatus(ctx, o.ID, "cancelled")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(ctx, o.ID, "refunded")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.UpdateStatus(ctx, 999, "confirmed")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateLineItem(t *testing.T) {
	f := newFixture(
		[]cart.Item{{ProductID: 1, Quantity: 2}},
		product.Product{ID: 1, Price: dec("100"), Stock: 10},
	)
	o := placeOrder(t, f)
	ctx := context.Background()
	itemID := o.Items[0].ID

	qty := 3
	got, err := f.svc.UpdateLineItem(ctx, o.ID, itemID, LineItemUpdate{Quantity: &qty})
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(dec("300")), "got %s", got.TotalAmount)

	price := dec("50")
	got, err = f.svc.UpdateLineItem(ctx, o.ID, itemID, LineItemUpdate{UnitPrice: &price})
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(dec("150")), "got %s", got.TotalAmount)

	zero := 0
	_, err = f.svc.UpdateLineItem(ctx, o.ID, itemID, LineItemUpdate{Quantity: &zero})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	subCent := dec("2.555")
	_, err = f.svc.UpdateLineItem(ctx, o.ID, itemID, LineItemUpdate{UnitPrice: &subCent})
	assert.ErrorIs(t, err, ErrInvalidPrice)
	got, err = f.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.Items[0].UnitPrice.Equal(dec("50")), "got %s", got.Items[0].UnitPrice)
	assert.True(t, got.TotalAmount.Equal(dec("150")), "got %s", got.TotalAmount)

	_, err = f.svc.UpdateLineItem(ctx, o.ID, 999, LineItemUpdate{Quantity: &qty})
	assert.ErrorIs(t, err, ErrLineItemNotFound)

	_, err = f.svc.CancelOrder(ctx, o.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateLineItem(ctx, o.ID, itemID, LineItemUpdate{Quantity: &qty})
	assert.ErrorIs(t, err, ErrOrderCompleted)
}

func TestListUserOrders(t *testing.T) {
	f := newFixture(
		[]cart.Item{{ProductID: 1, Quantity: 1}},
		product.Product{ID: 1, Price: dec("10"), Stock: 10},
	)
	placeOrder(t, f)

	orders, err := f.svc.ListUserOrders(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	_, err = f.svc.ListUserOrders(context.Background(), 99)
	assert.ErrorIs(t, err, user.ErrNotFound)
}
