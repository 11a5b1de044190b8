// Package inventory implements the packed category representation that the
// catalog persists for every event. A row has the textual form
//
//	{name}:{price}:{quantity}[:{phase}]
//
// and is decoded into a Category at the storage boundary. The package does
// no I/O.
package inventory

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Category is one decoded inventory row. Price is held in minor currency
// units (paise, cents) so that arithmetic on it is exact.
type Category struct {
	Name     string
	Price    int64
	Quantity int
	Phase    string // empty for legacy rows created before phases existed
}

// Key is the natural composite key of a row within one event.
type Key struct {
	Name  string
	Phase string
}

func (k Key) String() string {
	if k.Phase == "" {
		return k.Name
	}
	return k.Name + "@" + k.Phase
}

// Key returns the row's composite key.
func (c Category) Key() Key { return Key{Name: c.Name, Phase: c.Phase} }

var (
	// ErrMalformed is wrapped by every DecodeError.
	ErrMalformed = errors.New("malformed category row")
	// ErrInsufficient is returned by Take when the row holds fewer units
	// than requested.
	ErrInsufficient = errors.New("insufficient quantity")
	// ErrNotFound is returned when no row matches a key.
	ErrNotFound = errors.New("category not found")
	// ErrDuplicateKey is returned when more than one row shares a key.
	ErrDuplicateKey = errors.New("duplicate category key")
	// ErrInvalidAmount is returned for negative or zero decrements.
	ErrInvalidAmount = errors.New("invalid amount")
)

// DecodeError reports a row that could not be decoded. Callers treat it as
// "skip this row".
type DecodeError struct {
	Raw    string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode category %q: %s", e.Raw, e.Reason)
}

func (e *DecodeError) Unwrap() error { return ErrMalformed }

// Decode parses a packed row. Fields are trimmed. Anything after the third
// separator is the phase name, so a phase may itself contain ':'; it is
// trimmed as a whole.
func Decode(raw string) (Category, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 3 {
		return Category{}, &DecodeError{Raw: raw, Reason: "expected at least 3 fields"}
	}
	for i := 0; i < 3; i++ {
		parts[i] = strings.TrimSpace(parts[i])
	}
	name := parts[0]
	if name == "" {
		return Category{}, &DecodeError{Raw: raw, Reason: "empty name"}
	}
	price, err := parsePrice(parts[1])
	if err != nil {
		return Category{}, &DecodeError{Raw: raw, Reason: err.Error()}
	}
	qty, err := strconv.Atoi(parts[2])
	if err != nil {
		return Category{}, &DecodeError{Raw: raw, Reason: "quantity is not an integer"}
	}
	if qty < 0 {
		return Category{}, &DecodeError{Raw: raw, Reason: "negative quantity"}
	}
	phase := strings.TrimSpace(strings.Join(parts[3:], ":"))
	return Category{Name: name, Price: price, Quantity: qty, Phase: phase}, nil
}

// Encode is the inverse of Decode. The trailing phase segment is omitted
// when Phase is empty so legacy rows keep their three-field shape.
func Encode(c Category) string {
	s := c.Name + ":" + FormatPrice(c.Price) + ":" + strconv.Itoa(c.Quantity)
	if c.Phase != "" {
		s += ":" + c.Phase
	}
	return s
}

// Validate reports whether c can be encoded and decoded back unchanged.
func (c Category) Validate() error {
	switch {
	case strings.TrimSpace(c.Name) == "" || c.Name != strings.TrimSpace(c.Name):
		return fmt.Errorf("%w: name must be non-empty and trimmed", ErrMalformed)
	case strings.Contains(c.Name, ":"):
		return fmt.Errorf("%w: name must not contain ':'", ErrMalformed)
	case c.Price < 0:
		return fmt.Errorf("%w: negative price", ErrMalformed)
	case c.Price > MaxPrice:
		return fmt.Errorf("%w: price out of range", ErrMalformed)
	case c.Quantity < 0:
		return fmt.Errorf("%w: negative quantity", ErrMalformed)
	case c.Phase != strings.TrimSpace(c.Phase):
		return fmt.Errorf("%w: phase must be trimmed", ErrMalformed)
	}
	return nil
}

// Decrement subtracts amount from the row's quantity with a floor of zero
// and re-encodes it. Requests larger than the remaining quantity are
// absorbed by the floor; Take is the refusing variant.
func Decrement(raw string, amount int) (string, error) {
	if amount < 0 {
		return "", ErrInvalidAmount
	}
	c, err := Decode(raw)
	if err != nil {
		return "", err
	}
	c.Quantity = max(0, c.Quantity-amount)
	return Encode(c), nil
}

// Find returns the index and decoded value of the row matching k. Rows
// that fail to decode are skipped.
func Find(rows []string, k Key) (int, Category, error) {
	idx := -1
	var found Category
	for i, raw := range rows {
		c, err := Decode(raw)
		if err != nil || c.Key() != k {
			continue
		}
		if idx >= 0 {
			return -1, Category{}, fmt.Errorf("%w: %s", ErrDuplicateKey, k)
		}
		idx, found = i, c
	}
	if idx < 0 {
		return -1, Category{}, fmt.Errorf("%w: %s", ErrNotFound, k)
	}
	return idx, found, nil
}

// Take is the conditional decrement: it removes qty units from the row
// matching k, or fails with ErrInsufficient leaving rows untouched. The
// returned slice is a copy; every other row is preserved verbatim.
func Take(rows []string, k Key, qty int) ([]string, Category, error) {
	if qty <= 0 {
		return nil, Category{}, ErrInvalidAmount
	}
	idx, c, err := Find(rows, k)
	if err != nil {
		return nil, Category{}, err
	}
	if c.Quantity < qty {
		return nil, c, fmt.Errorf("%w: %s has %d, requested %d", ErrInsufficient, k, c.Quantity, qty)
	}
	c.Quantity -= qty
	out := make([]string, len(rows))
	copy(out, rows)
	out[idx] = Encode(c)
	return out, c, nil
}

// MaxPrice is the largest unit price in minor units. It leaves headroom
// for quantity and surcharge arithmetic in int64.
const MaxPrice = math.MaxInt64 / 10000

func parsePrice(s string) (int64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("price is not a number")
	}
	if f < 0 {
		return 0, errors.New("negative price")
	}
	minor := math.Round(f * 100)
	if minor > MaxPrice {
		return 0, errors.New("price out of range")
	}
	return int64(minor), nil
}

// FormatPrice renders minor units the way the catalog writes prices:
// whole amounts without decimals, otherwise two decimals.
func FormatPrice(minor int64) string {
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	if minor%100 == 0 {
		return sign + strconv.FormatInt(minor/100, 10)
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
