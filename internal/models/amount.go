package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a sum of money in Rwandan francs. RWF has no subunits in
// practice, so every amount is a whole number.
type Amount int64

// ErrAmountOverflow is returned when arithmetic leaves the int64 range.
var ErrAmountOverflow = errors.New("amount out of range")

// ParseAmount parses a decimal string such as "5000", "5000.00" or
// "5,000" into an exact Amount. Fractional francs are rejected.
func ParseAmount(s string) (Amount, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("invalid amount %q: fractional francs are not allowed", s)
	}
	if !d.BigInt().IsInt64() {
		return 0, fmt.Errorf("invalid amount %q: %w", s, ErrAmountOverflow)
	}
	return Amount(d.IntPart()), nil
}

// Times multiplies a unit price by a quantity. Amounts built from request
// input go through MulQuantity instead.
func (a Amount) Times(qty int) Amount {
	return a * Amount(qty)
}

// MulQuantity multiplies a unit price by a quantity and reports overflow.
func (a Amount) MulQuantity(qty int) (Amount, error) {
	q := Amount(qty)
	if a == 0 || q == 0 {
		return 0, nil
	}
	if (a == -1 && q == math.MinInt64) || (q == -1 && a == math.MinInt64) {
		return 0, ErrAmountOverflow
	}
	p := a * q
	if p/q != a {
		return 0, ErrAmountOverflow
	}
	return p, nil
}

// Plus adds two amounts and reports overflow.
func (a Amount) Plus(b Amount) (Amount, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrAmountOverflow
	}
	return sum, nil
}

// String renders the amount with thousands separators, e.g. "12,500 RWF".
func (a Amount) String() string {
	return FormatRWF(a)
}

// FormatRWF renders an amount with thousands separators and the currency code.
func FormatRWF(a Amount) string {
	n := int64(a)
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + " RWF"
}

// MarshalJSON encodes the amount as a plain JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(a), 10)), nil
}

// UnmarshalJSON accepts either a JSON number or a decimal string. Backends
// serialising DECIMAL columns commonly send "5000.00".
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}
	parsed, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
