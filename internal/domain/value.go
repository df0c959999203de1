package domain

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// jsonNumber принимает только числа в записи JSON: без знака плюс и ведущих нулей
// ("007", "+5" и ASIN вида "0545010225" остаются строками).
var jsonNumber = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// ValueKind описывает тип значения ячейки каталога.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindDecimal
	KindString
)

// Value — типизированное значение одной ячейки каталога.
// Тип определяется один раз при загрузке и больше не меняется.
type Value struct {
	kind ValueKind
	raw  string
}

// NullValue возвращает пустое значение (нет данных или нет совпадения при join).
func NullValue() Value {
	return Value{kind: KindNull}
}

func StringValue(s string) Value {
	return Value{kind: KindString, raw: s}
}

// ParseValue определяет тип ячейки по её текстовому представлению:
// пустая строка даёт null, True/False дают bool, целое даёт int, десятичное число даёт decimal, иначе строка.
// Числом считается только текст в записи JSON, остальное сохраняется строкой как есть.
func ParseValue(s string) Value {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return NullValue()
	}

	switch strings.ToLower(trimmed) {
	case "true":
		return Value{kind: KindBool, raw: "true"}
	case "false":
		return Value{kind: KindBool, raw: "false"}
	case "nan":
		return NullValue()
	}

	if !jsonNumber.MatchString(trimmed) {
		return StringValue(s)
	}

	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil && strconv.FormatInt(n, 10) == trimmed {
		return Value{kind: KindInt, raw: trimmed}
	}

	if d, err := decimal.NewFromString(trimmed); err == nil {
		return Value{kind: KindDecimal, raw: d.String()}
	}

	return StringValue(s)
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// String возвращает текстовое представление значения ("" для null).
func (v Value) String() string { return v.raw }

// Decimal возвращает числовое значение для int и decimal ячеек.
func (v Value) Decimal() (decimal.Decimal, bool) {
	if v.kind != KindInt && v.kind != KindDecimal {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(v.raw)
	if err != nil {
		return decimal.Zero, false
	}

	return d, true
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool, KindInt, KindDecimal:
		return []byte(v.raw), nil
	default:
		return json.Marshal(v.raw)
	}
}
