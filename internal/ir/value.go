package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/shopspring/decimal"
)

// IRValue is a sealed interface representing constrained literal types.
// Only IRNull, IRString, IRInt, IRDecimal, IRBool, IRDate, IRArray and
// IRObject implement it. There is no float type: fractional numbers are
// IRDecimal so that rendering never depends on binary float formatting.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull represents a JSON null value.
type IRNull struct{}

func (IRNull) irValue() {}

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString represents a string literal.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer literal.
type IRInt int64

func (IRInt) irValue() {}

// IRDecimal represents an exact fractional literal.
type IRDecimal struct {
	decimal.Decimal
}

func (IRDecimal) irValue() {}

// MarshalJSON renders the decimal as a bare JSON number.
func (d IRDecimal) MarshalJSON() ([]byte, error) {
	return []byte(d.Decimal.String()), nil
}

// IRBool represents a boolean literal.
type IRBool bool

func (IRBool) irValue() {}

// DateLayout is the only accepted textual form of an IRDate.
const DateLayout = "2006-01-02"

// IRDate represents a calendar date without time of day.
// Always construct via ParseDate so the value is a valid YYYY-MM-DD string.
type IRDate string

func (IRDate) irValue() {}

// IRArray represents an array of IRValue elements.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject represents a map of string keys to IRValue elements.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// NewIRDecimal parses an exact decimal from its source text.
// The text is never routed through float64.
func NewIRDecimal(text string) (IRDecimal, error) {
	d, err := decimal.NewFromString(text)
	if err != nil {
		return IRDecimal{}, fmt.Errorf("invalid decimal literal %q", text)
	}
	return IRDecimal{Decimal: d}, nil
}

// ParseDate validates s as YYYY-MM-DD and returns it as an IRDate.
func ParseDate(s string) (IRDate, error) {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date literal %q: expected YYYY-MM-DD", s)
	}
	return IRDate(s), nil
}

// NumberFromText converts numeric source text into IRInt when it is an
// integral literal, otherwise into IRDecimal.
func NumberFromText(text string) (IRValue, error) {
	if !strings.ContainsAny(text, ".eE") {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return IRInt(n), nil
		}
	}
	d, err := NewIRDecimal(text)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// KindName returns a short human-readable name for the literal kind.
// Used in validation messages.
func KindName(v IRValue) string {
	switch v.(type) {
	case IRNull:
		return "null"
	case IRString:
		return "string"
	case IRInt:
		return "int"
	case IRDecimal:
		return "decimal"
	case IRBool:
		return "bool"
	case IRDate:
		return "date"
	case IRArray:
		return "array"
	case IRObject:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order which differs for astral characters.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// ParseJSONLiteral decodes a single JSON scalar into an IRValue.
// Numbers keep their source text: integral numbers become IRInt, anything
// with a fraction or exponent becomes IRDecimal. Arrays and objects are
// rejected because a literal is always a scalar.
func ParseJSONLiteral(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid literal: %w", err)
	}

	switch val := raw.(type) {
	case nil:
		return IRNull{}, nil
	case bool:
		return IRBool(val), nil
	case string:
		return IRString(val), nil
	case json.Number:
		return NumberFromText(val.String())
	default:
		return nil, fmt.Errorf("literal must be a scalar, got %T", raw)
	}
}
