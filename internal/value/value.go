// Package value defines the engine-neutral value model that crosses the
// driver boundary: query parameters going out, result cells coming back.
package value

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the variants of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindDouble
	KindString
	KindTimestamp
	KindBytes
	KindUUID
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindTimestamp:
		return "timestamp"
	case KindBytes:
		return "bytes"
	case KindUUID:
		return "uuid"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a closed variant over the types every driver must speak:
// null, bool, int64, double, string, timestamp, byte sequence, and UUID.
// The zero Value is null.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	t     time.Time
	bytes []byte
	u     uuid.UUID
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps a 64-bit integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Double wraps a 64-bit float.
func Double(f float64) Value { return Value{kind: KindDouble, f: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Timestamp wraps a point in time.
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, t: t} }

// Bytes wraps a byte sequence. The slice is not copied.
func Bytes(p []byte) Value { return Value{kind: KindBytes, bytes: p} }

// UUID wraps a UUID.
func UUID(u uuid.UUID) Value { return Value{kind: KindUUID, u: u} }

// Kind reports which variant this value holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// BoolValue returns the wrapped bool; valid only for KindBool.
func (v Value) BoolValue() bool { return v.b }

// IntValue returns the wrapped int64; valid only for KindInt.
func (v Value) IntValue() int64 { return v.i }

// DoubleValue returns the wrapped float64; valid only for KindDouble.
func (v Value) DoubleValue() float64 { return v.f }

// StringValue returns the wrapped string; valid only for KindString.
func (v Value) StringValue() string { return v.s }

// TimeValue returns the wrapped timestamp; valid only for KindTimestamp.
func (v Value) TimeValue() time.Time { return v.t }

// BytesValue returns the wrapped byte sequence; valid only for KindBytes.
func (v Value) BytesValue() []byte { return v.bytes }

// UUIDValue returns the wrapped UUID; valid only for KindUUID.
func (v Value) UUIDValue() uuid.UUID { return v.u }

// Native unwraps the value to the Go type a driver binds positionally:
// nil, bool, int64, float64, string, time.Time, []byte, or uuid.UUID.
func (v Value) Native() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindDouble:
		return v.f
	case KindString:
		return v.s
	case KindTimestamp:
		return v.t
	case KindBytes:
		return v.bytes
	case KindUUID:
		return v.u
	default:
		return nil
	}
}

// Equal reports deep equality of two values, including the variant.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindDouble:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindTimestamp:
		return v.t.Equal(o.t)
	case KindBytes:
		return bytes.Equal(v.bytes, o.bytes)
	case KindUUID:
		return v.u == o.u
	default:
		return false
	}
}

// String renders the value for display. Secrets are never Values, so this
// is safe to log.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindDouble:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindTimestamp:
		return v.t.Format(time.RFC3339Nano)
	case KindBytes:
		return fmt.Sprintf("%d bytes", len(v.bytes))
	case KindUUID:
		return v.u.String()
	default:
		return fmt.Sprintf("value(%s)", v.kind)
	}
}
