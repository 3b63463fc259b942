package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/order"
)

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// money writes d as a JSON number with two decimals.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(d.StringFixed(2)))
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func optTimestamp(e *jx.Encoder, name string, t *time.Time) {
	if t == nil {
		return
	}
	e.Field(name, func(e *jx.Encoder) { timestamp(e, *t) })
}

func optStr(e *jx.Encoder, name, v string) {
	if v == "" {
		return
	}
	e.Field(name, func(e *jx.Encoder) { e.Str(v) })
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("orderNumber", func(e *jx.Encoder) { e.Str(o.Number) })
		e.Field("userId", func(e *jx.Encoder) { e.Int64(o.UserID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("subtotal", func(e *jx.Encoder) { money(e, o.Subtotal()) })
		e.Field("discountAmount", func(e *jx.Encoder) { money(e, o.DiscountAmount) })
		optStr(e, "discountCode", o.DiscountCode)
		e.Field("totalAmount", func(e *jx.Encoder) { money(e, o.TotalAmount) })
		e.Field("itemCount", func(e *jx.Encoder) { e.Int(o.ItemCount()) })
		optStr(e, "shippingAddress", o.ShippingAddress)
		optStr(e, "customerName", o.CustomerName)
		optStr(e, "customerEmail", o.CustomerEmail)
		optStr(e, "customerPhone", o.CustomerPhone)
		optStr(e, "notes", o.Notes)
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, o.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { timestamp(e, o.UpdatedAt) })
		optTimestamp(e, "shippedAt", o.ShippedAt)
		optTimestamp(e, "deliveredAt", o.DeliveredAt)
		optTimestamp(e, "cancelledAt", o.CancelledAt)
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, li := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Int64(li.ID) })
						e.Field("productId", func(e *jx.Encoder) { e.Int64(li.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(li.Quantity) })
						e.Field("unitPrice", func(e *jx.Encoder) { money(e, li.UnitPrice) })
						e.Field("subtotal", func(e *jx.Encoder) { money(e, li.Subtotal) })
					})
				}
			})
		})
	})
}

func encodeOrders(e *jx.Encoder, orders []*order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("orders", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, o := range orders {
					encodeOrder(e, o)
				}
			})
		})
	})
}

func encodeOutcome(e *jx.Encoder, out discount.Outcome) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("valid", func(e *jx.Encoder) { e.Bool(out.Valid) })
		if out.Discount != nil {
			e.Field("code", func(e *jx.Encoder) { e.Str(out.Discount.Code) })
		}
		if out.Valid {
			e.Field("discountAmount", func(e *jx.Encoder) { money(e, out.Amount) })
		} else {
			e.Field("reason", func(e *jx.Encoder) { e.Str(string(out.Reason)) })
		}
		if out.Reason == discount.ReasonInsufficientAmount {
			e.Field("minOrderAmount", func(e *jx.Encoder) { money(e, out.MinOrderAmount) })
		}
		e.Field("message", func(e *jx.Encoder) { e.Str(out.Message()) })
	})
}

func encodeStats(e *jx.Encoder, s *discount.Stats) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("discountId", func(e *jx.Encoder) { e.Int64(s.DiscountID) })
		e.Field("code", func(e *jx.Encoder) { e.Str(s.Code) })
		e.Field("usageCount", func(e *jx.Encoder) { e.Int(s.UsageCount) })
		e.Field("totalAmount", func(e *jx.Encoder) { money(e, s.TotalAmount) })
	})
}

func encodeUsages(e *jx.Encoder, usages []discount.Usage) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("usages", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, u := range usages {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Int64(u.ID) })
						e.Field("discountId", func(e *jx.Encoder) { e.Int64(u.DiscountID) })
						e.Field("userId", func(e *jx.Encoder) { e.Int64(u.UserID) })
						e.Field("orderId", func(e *jx.Encoder) {
							if u.OrderID == nil {
								e.Null()
								return
							}
							e.Int64(*u.OrderID)
						})
						e.Field("amount", func(e *jx.Encoder) { money(e, u.Amount) })
						e.Field("usedAt", func(e *jx.Encoder) { timestamp(e, u.UsedAt) })
					})
				}
			})
		})
	})
}
