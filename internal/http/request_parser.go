package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"lifehub/internal/core"
)

const maxBodyBytes = 64 << 10

// errBadRequest marks bodies that cannot be decoded at all.
var errBadRequest = errors.New("bad request")

// decodeJSON reads a single JSON object into dst, rejecting unknown fields
// and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", errBadRequest)
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: body larger than %d bytes", errBadRequest, maxErr.Limit)
		default:
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON object", errBadRequest)
	}
	return nil
}

// amountParam accepts an amount as a JSON string ("12,50") or number (12.5).
type amountParam string

func (a *amountParam) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amountParam(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	*a = amountParam(data)
	return nil
}

// positive parses a strictly positive amount.
func (a amountParam) positive(op string) (decimal.Decimal, error) {
	d, err := core.ParseAmount(string(a))
	if err != nil {
		return decimal.Zero, core.Validation(op, "invalid amount %q: must be a positive number", string(a))
	}
	return d, nil
}

// signed parses an optional amount that may be zero or negative, such as
// an opening balance.
func (a amountParam) signed(op string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(string(a)), ",", ".")
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, core.Validation(op, "invalid amount %q", string(a))
	}
	return d.Round(2), nil
}

// parseDateOrToday parses YYYY-MM-DD, defaulting to today when empty.
func parseDateOrToday(s string) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return core.Today(), nil
	}
	return core.ParseDate(s)
}

// parseLimit reads the "limit" query parameter. Zero means the service default.
func parseLimit(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("limit"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, core.Validation("", "invalid limit %q: must be a positive integer", v)
	}
	return n, nil
}
