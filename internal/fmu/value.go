package fmu

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the declared primitive type of a model variable.
type Kind int

const (
	KindReal Kind = iota
	KindInteger
	KindBoolean
	KindString
	KindEnumeration
)

var kindNames = [...]string{"Real", "Integer", "Boolean", "String", "Enumeration"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind maps an FMI type element name to a Kind.
func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if strings.EqualFold(n, name) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown variable type %q", name)
}

// Value is a start value or override carrying its own primitive kind.
// The zero Value is Real 0.
type Value struct {
	kind Kind
	num  float64
	i    int64
	b    bool
	s    string
}

func RealValue(v float64) Value  { return Value{kind: KindReal, num: v} }
func IntegerValue(v int64) Value { return Value{kind: KindInteger, i: v} }
func EnumValue(v int64) Value    { return Value{kind: KindEnumeration, i: v} }
func BooleanValue(v bool) Value  { return Value{kind: KindBoolean, b: v} }
func StringValue(v string) Value { return Value{kind: KindString, s: v} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNumeric() bool {
	return v.kind == KindReal || v.kind == KindInteger || v.kind == KindEnumeration
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Float returns the numeric value. Booleans and strings report false.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindReal:
		return v.num, true
	case KindInteger, KindEnumeration:
		return float64(v.i), true
	}
	return 0, false
}

// Bool returns the boolean value for Boolean kinds.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBoolean {
		return false, false
	}
	return v.b, true
}

// Interface returns the Go representation: float64, int64, bool or string.
func (v Value) Interface() any {
	switch v.kind {
	case KindReal:
		return v.num
	case KindInteger, KindEnumeration:
		return v.i
	case KindBoolean:
		return v.b
	default:
		return v.s
	}
}

// String renders the value the way it is written in a model description.
func (v Value) String() string {
	switch v.kind {
	case KindReal:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindInteger, KindEnumeration:
		return strconv.FormatInt(v.i, 10)
	case KindBoolean:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// ParseValue reads an XML start literal for the given declared kind.
func ParseValue(kind Kind, literal string) (Value, error) {
	switch kind {
	case KindReal:
		f, err := strconv.ParseFloat(strings.TrimSpace(literal), 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid Real literal %q", literal)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, fmt.Errorf("non-finite Real literal %q", literal)
		}
		return RealValue(f), nil
	case KindInteger, KindEnumeration:
		n, err := strconv.ParseInt(strings.TrimSpace(literal), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid %s literal %q", kind, literal)
		}
		return Value{kind: kind, i: n}, nil
	case KindBoolean:
		switch strings.TrimSpace(literal) {
		case "true", "1":
			return BooleanValue(true), nil
		case "false", "0":
			return BooleanValue(false), nil
		}
		return Value{}, fmt.Errorf("invalid Boolean literal %q", literal)
	case KindString:
		return StringValue(literal), nil
	}
	return Value{}, fmt.Errorf("unsupported kind %s", kind)
}

// Convert returns v expressed as the target kind. Numeric strings become
// numbers, integral reals become integers, and booleans accept the usual
// textual and 0/1 spellings.
func (v Value) Convert(target Kind) (Value, error) {
	if v.kind == target {
		return v, nil
	}
	switch target {
	case KindReal:
		if f, ok := v.Float(); ok {
			return RealValue(f), nil
		}
		if b, ok := v.Bool(); ok {
			if b {
				return RealValue(1), nil
			}
			return RealValue(0), nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return Value{}, fmt.Errorf("cannot use %q as Real", v.s)
		}
		return RealValue(f), nil

	case KindInteger, KindEnumeration:
		var f float64
		switch v.kind {
		case KindInteger, KindEnumeration:
			return Value{kind: target, i: v.i}, nil
		case KindBoolean:
			if v.b {
				return Value{kind: target, i: 1}, nil
			}
			return Value{kind: target, i: 0}, nil
		case KindReal:
			f = v.num
		case KindString:
			if n, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64); err == nil {
				return Value{kind: target, i: n}, nil
			}
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
			if err != nil {
				return Value{}, fmt.Errorf("cannot use %q as %s", v.s, target)
			}
			f = parsed
		}
		if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) || math.Abs(f) > math.MaxInt64 {
			return Value{}, fmt.Errorf("cannot use %v as %s: not integral", f, target)
		}
		return Value{kind: target, i: int64(f)}, nil

	case KindBoolean:
		if f, ok := v.Float(); ok {
			return BooleanValue(f != 0), nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v.s))
		if err != nil {
			return Value{}, fmt.Errorf("cannot use %q as Boolean", v.s)
		}
		return BooleanValue(b), nil

	case KindString:
		return StringValue(v.String()), nil
	}
	return Value{}, fmt.Errorf("unsupported kind %s", target)
}
