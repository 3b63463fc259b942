package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/order"
)

// CreateOrder turns the user's cart into an order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req, err := decodeCreateOrder(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	o, err := h.orders.CreateOrder(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// ListUserOrders lists a user's orders, newest first.
func (h *Handler) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	orders, err := h.orders.ListUserOrders(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrders(e, orders) })
}

// GetOrder returns one order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, func(id int64) (*order.Order, error) {
		return h.orders.GetOrder(r.Context(), id)
	})
}

// CancelOrder cancels an order and restocks its lines.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, func(id int64) (*order.Order, error) {
		return h.orders.CancelOrder(r.Context(), id)
	})
}

// UpdateStatus applies {"status": "..."}.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, func(id int64) (*order.Order, error) {
		body, err := readBody(w, r)
		if err != nil {
			return nil, err
		}
		status, err := decodeStatus(body)
		if err != nil {
			return nil, err
		}
		return h.orders.UpdateStatus(r.Context(), id, status)
	})
}

// UpdateLineItem applies {"quantity": n, "unitPrice": p} to one line.
func (h *Handler) UpdateLineItem(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, func(id int64) (*order.Order, error) {
		itemID, err := pathID(r, "itemID")
		if err != nil {
			return nil, err
		}
		body, err := readBody(w, r)
		if err != nil {
			return nil, err
		}
		upd, err := decodeLineItemUpdate(body)
		if err != nil {
			return nil, err
		}
		return h.orders.UpdateLineItem(r.Context(), id, itemID, upd)
	})
}

func (h *Handler) orderAction(w http.ResponseWriter, r *http.Request, fn func(id int64) (*order.Order, error)) {
	id, err := pathID(r, "orderID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := fn(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}
