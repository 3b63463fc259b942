package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// ValidateDiscount evaluates ?code=&amount= without recording anything.
// Invalid codes are a normal 200 outcome with valid=false.
func (h *Handler) ValidateDiscount(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := decimal.NewFromString(strings.TrimSpace(q.Get("amount")))
	if err != nil || amount.IsNegative() {
		h.writeError(w, r, badRequest("amount must be a non-negative number"))
		return
	}

	out, err := h.discounts.Validate(r.Context(), q.Get("code"), amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOutcome(e, out) })
}

// DiscountUsage reports how often a code was used and the total discounted.
func (h *Handler) DiscountUsage(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ledger.Stats(r.Context(), r.PathValue("code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeStats(e, stats) })
}

// UserDiscountUsages lists the user's discount usage history.
func (h *Handler) UserDiscountUsages(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	usages, err := h.ledger.History(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeUsages(e, usages) })
}
