package discount

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDiscountRepo struct {
	byCode       map[string]*Discount
	findErr      error
	incrementErr error
	increments   []int64
}

func newDiscountRepo(discounts ...*Discount) *mockDiscountRepo {
	m := &mockDiscountRepo{byCode: make(map[string]*Discount, len(discounts))}
	for _, x := range discounts {
		cp := *x
		m.byCode[strings.ToUpper(x.Code)] = &cp
	}
	return m
}

func (m *mockDiscountRepo) FindByCode(_ context.Context, code string) (*Discount, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	x, ok := m.byCode[strings.ToUpper(code)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *x
	return &cp, nil
}

// IncrementUsedCount mirrors the conditional update used by the storage layer.
func (m *mockDiscountRepo) IncrementUsedCount(_ context.Context, id int64) error {
	if m.incrementErr != nil {
		return m.incrementErr
	}
	for _, x := range m.byCode {
		if x.ID != id {
			continue
		}
		if x.LimitReached() {
			return ErrUsageLimitReached
		}
		x.UsedCount++
		m.increments = append(m.increments, id)
		return nil
	}
	return ErrNotFound
}

func (m *mockDiscountRepo) Upsert(_ context.Context, x *Discount) error {
	m.byCode[strings.ToUpper(x.Code)] = x
	return nil
}

func TestValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		repo       *mockDiscountRepo
		code       string
		amount     string
		wantReason Reason
		wantAmount string
		wantErr    string
	}{
		{
			name:       "ValidCode",
			repo:       newDiscountRepo(welcome10()),
			code:       "WELCOME10",
			amount:     "150000",
			wantAmount: "15000",
		},
		{
			name:       "LookupIgnoresCase",
			repo:       newDiscountRepo(welcome10()),
			code:       "welcome10",
			amount:     "150000",
			wantAmount: "15000",
		},
		{
			name:       "SurroundingWhitespaceIsIgnored",
			repo:       newDiscountRepo(welcome10()),
			code:       "  Welcome10 ",
			amount:     "150000",
			wantAmount: "15000",
		},
		{
			name:       "UnknownCode",
			repo:       newDiscountRepo(welcome10()),
			code:       "BOGUS",
			amount:     "150000",
			wantReason: ReasonNotFound,
		},
		{
			name:       "BlankCode",
			repo:       newDiscountRepo(welcome10()),
			code:       "   ",
			amount:     "150000",
			wantReason: ReasonNotFound,
		},
		{
			name:       "InsufficientAmount",
			repo:       newDiscountRepo(welcome10()),
			code:       "WELCOME10",
			amount:     "50000",
			wantReason: ReasonInsufficientAmount,
		},
		{
			name:    "StorageFailure",
			repo:    &mockDiscountRepo{findErr: errors.New("connection reset")},
			code:    "WELCOME10",
			amount:  "150000",
			wantErr: "lookup discount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(tt.repo)
			v.now = func() time.Time { return fixedNow }

			out, err := v.Validate(context.Background(), tt.code, d(tt.amount))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantReason, out.Reason)
			if tt.wantAmount != "" {
				require.True(t, out.Valid)
				assert.True(t, d(tt.wantAmount).Equal(out.Amount), "got %s", out.Amount)
			}
		})
	}
}

func TestValidator_Apply(t *testing.T) {
	repo := newDiscountRepo(welcome10())
	v := NewValidator(repo)

	amount, err := v.Apply(context.Background(), "WELCOME10", d("150000"))
	require.NoError(t, err)
	assert.True(t, d("15000").Equal(amount))

	_, err = v.Apply(context.Background(), "WELCOME10", d("50000"))
	var invalid *InvalidDiscountError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, ReasonInsufficientAmount, invalid.Reason)
	assert.True(t, d("100000").Equal(invalid.MinOrderAmount))

	_, err = v.Apply(context.Background(), "NOPE", d("150000"))
	require.ErrorIs(t, err, ErrInvalidDiscount)

	// Validation never mutates the used count.
	stored := repo.byCode["WELCOME10"]
	assert.Equal(t, 10, stored.UsedCount)
	assert.Empty(t, repo.increments)
}
