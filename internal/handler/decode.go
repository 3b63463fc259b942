package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

const maxBodyBytes = 1 << 20

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, badRequest("request body too large or unreadable")
	}
	return b, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid " + name)
	}
	return id, nil
}

// decodeObject walks a JSON object, treating an empty body as {}.
func decodeObject(body []byte, fn func(d *jx.Decoder, key string) error) error {
	if len(body) == 0 {
		return nil
	}
	err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		return fn(d, string(key))
	})
	if err != nil {
		return badRequest("malformed JSON body")
	}
	return nil
}

func decodeCreateOrder(body []byte) (order.CreateRequest, error) {
	var req order.CreateRequest
	err := decodeObject(body, func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "shippingAddress":
			dst = &req.ShippingAddress
		case "customerName":
			dst = &req.CustomerName
		case "customerEmail":
			dst = &req.CustomerEmail
		case "customerPhone":
			dst = &req.CustomerPhone
		case "notes":
			dst = &req.Notes
		case "discountCode":
			dst = &req.DiscountCode
		default:
			return d.Skip()
		}
		return optString(d, dst)
	})
	return req, err
}

func decodeStatus(body []byte) (string, error) {
	var status string
	err := decodeObject(body, func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		return optString(d, &status)
	})
	if err != nil {
		return "", err
	}
	if status == "" {
		return "", badRequest("status is required")
	}
	return status, nil
}

func decodeLineItemUpdate(body []byte) (order.LineItemUpdate, error) {
	var upd order.LineItemUpdate
	err := decodeObject(body, func(d *jx.Decoder, key string) error {
		switch key {
		case "quantity":
			if d.Next() == jx.Null {
				return d.Null()
			}
			q, err := d.Int()
			if err != nil {
				return err
			}
			upd.Quantity = &q
		case "unitPrice":
			if d.Next() == jx.Null {
				return d.Null()
			}
			p, err := decodeMoney(d)
			if err != nil {
				return err
			}
			upd.UnitPrice = &p
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return upd, err
	}
	if upd.Quantity == nil && upd.UnitPrice == nil {
		return upd, badRequest("quantity or unitPrice is required")
	}
	return upd, nil
}

// decodeMoney accepts a JSON number or a numeric string.
func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = string(n)
	default:
		return decimal.Zero, errors.New("expected number")
	}
	return decimal.NewFromString(raw)
}

func optString(d *jx.Decoder, dst *string) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return err
	}
	*dst = s
	return nil
}
