package discount

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Reason identifies why a discount code was rejected.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonNotFound           Reason = "not-found"
	ReasonInactive           Reason = "inactive"
	ReasonNotStarted         Reason = "not-started"
	ReasonExpired            Reason = "expired"
	ReasonLimitReached       Reason = "limit-reached"
	ReasonInsufficientAmount Reason = "insufficient-amount"
)

var hundred = decimal.NewFromInt(100)

// Outcome is the result of evaluating a code against an order amount.
type Outcome struct {
	Valid    bool
	Reason   Reason
	Discount *Discount
	// Amount is the calculated discount, set only when Valid.
	Amount decimal.Decimal
	// MinOrderAmount is the required minimum, set for ReasonInsufficientAmount.
	MinOrderAmount decimal.Decimal
}

// Err returns nil for a valid outcome and an *InvalidDiscountError otherwise.
func (o Outcome) Err() error {
	if o.Valid {
		return nil
	}
	return &InvalidDiscountError{Reason: o.Reason, MinOrderAmount: o.MinOrderAmount}
}

// Message returns a human-readable description of the outcome.
func (o Outcome) Message() string {
	if o.Valid {
		return fmt.Sprintf("Discount applied: %s", o.Amount.StringFixed(2))
	}
	return reasonMessage(o.Reason, o.MinOrderAmount)
}

// InvalidDiscountError reports a rejected discount code.
type InvalidDiscountError struct {
	Reason         Reason
	MinOrderAmount decimal.Decimal
}

func (e *InvalidDiscountError) Error() string {
	return reasonMessage(e.Reason, e.MinOrderAmount)
}

// Is makes every InvalidDiscountError match ErrInvalidDiscount.
func (e *InvalidDiscountError) Is(target error) bool {
	return target == ErrInvalidDiscount
}

func reasonMessage(r Reason, minAmount decimal.Decimal) string {
	switch r {
	case ReasonNotFound:
		return "Discount code not found"
	case ReasonInactive:
		return "Discount code is inactive"
	case ReasonNotStarted:
		return "Discount code is not yet valid"
	case ReasonExpired:
		return "Discount code has expired"
	case ReasonLimitReached:
		return "Discount code usage limit reached"
	case ReasonInsufficientAmount:
		return fmt.Sprintf("Minimum order amount is %s", minAmount.StringFixed(2))
	default:
		return "Invalid discount code"
	}
}

// Evaluate checks d against orderAmount at now. A nil d yields
// ReasonNotFound. Checks run in a fixed order and the first failure wins.
func Evaluate(d *Discount, orderAmount decimal.Decimal, now time.Time) Outcome {
	if d == nil {
		return Outcome{Reason: ReasonNotFound}
	}
	out := Outcome{Discount: d}

	if !d.Active {
		out.Reason = ReasonInactive
		return out
	}
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		out.Reason = ReasonNotStarted
		return out
	}
	// Window end is exclusive.
	if d.EndsAt != nil && !now.Before(*d.EndsAt) {
		out.Reason = ReasonExpired
		return out
	}
	if d.LimitReached() {
		out.Reason = ReasonLimitReached
		return out
	}
	if d.MinOrderAmount.Valid && orderAmount.LessThan(d.MinOrderAmount.Decimal) {
		out.Reason = ReasonInsufficientAmount
		out.MinOrderAmount = d.MinOrderAmount.Decimal
		return out
	}

	out.Valid = true
	out.Amount = Calculate(d, orderAmount)
	return out
}

// Calculate returns the discount amount for orderAmount, rounded half-up to
// two decimal places. Fixed amounts are not clamped to the order amount.
func Calculate(d *Discount, orderAmount decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch d.Type {
	case TypePercentage:
		amount = orderAmount.Mul(d.Value).Div(hundred)
		if d.MaxDiscountAmount.Valid && amount.GreaterThan(d.MaxDiscountAmount.Decimal) {
			amount = d.MaxDiscountAmount.Decimal
		}
	case TypeFixedAmount:
		amount = d.Value
	default:
		return decimal.Zero
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount.Round(2)
}

// ParseType converts a stored or user-supplied type name.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypePercentage, TypeFixedAmount:
		return Type(s), nil
	case "fixed":
		return TypeFixedAmount, nil
	default:
		return "", fmt.Errorf("unsupported discount type: %q", s)
	}
}
