package value

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestValueKinds(t *testing.T) {
	now := time.Now()
	id := uuid.New()

	tests := []struct {
		name string
		v    Value
		kind Kind
	}{
		{"null", Null(), KindNull},
		{"bool", Bool(true), KindBool},
		{"int", Int(42), KindInt},
		{"double", Double(3.5), KindDouble},
		{"string", String("hello"), KindString},
		{"timestamp", Timestamp(now), KindTimestamp},
		{"bytes", Bytes([]byte{1, 2}), KindBytes},
		{"uuid", UUID(id), KindUUID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Kind(); got != tt.kind {
				t.Errorf("Kind() = %v, want %v", got, tt.kind)
			}
		})
	}
}

func TestZeroValueIsNull(t *testing.T) {
	var v Value
	if !v.IsNull() {
		t.Error("zero Value should be null")
	}
	if v.Native() != nil {
		t.Errorf("Native() of null = %v, want nil", v.Native())
	}
}

func TestValueEqual(t *testing.T) {
	now := time.Now()
	id := uuid.New()

	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"null == null", Null(), Null(), true},
		{"null != int zero", Null(), Int(0), false},
		{"same ints", Int(7), Int(7), true},
		{"different ints", Int(7), Int(8), false},
		{"int != double", Int(1), Double(1), false},
		{"same strings", String("x"), String("x"), true},
		{"same bools", Bool(false), Bool(false), true},
		{"same timestamps", Timestamp(now), Timestamp(now), true},
		{"equal times different locations", Timestamp(now.UTC()), Timestamp(now.Local()), true},
		{"same bytes", Bytes([]byte{1, 2, 3}), Bytes([]byte{1, 2, 3}), true},
		{"different bytes", Bytes([]byte{1}), Bytes([]byte{2}), false},
		{"same uuids", UUID(id), UUID(id), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValueNative(t *testing.T) {
	if got := Int(9).Native(); got != int64(9) {
		t.Errorf("Native() = %v (%T), want int64 9", got, got)
	}
	if got := Bool(true).Native(); got != true {
		t.Errorf("Native() = %v, want true", got)
	}
	if got := String("s").Native(); got != "s" {
		t.Errorf("Native() = %v, want \"s\"", got)
	}
}

func TestValueString_BytesNotDumped(t *testing.T) {
	v := Bytes(make([]byte, 1024))
	if got := v.String(); got != "1024 bytes" {
		t.Errorf("String() = %q, want %q", got, "1024 bytes")
	}
}

func TestRowSetGet(t *testing.T) {
	r := NewRow()
	r.Set("id", Int(1))
	r.Set("name", String("a"))

	v, ok := r.Get("id")
	if !ok || !v.Equal(Int(1)) {
		t.Errorf("Get(id) = %v, %v; want 1, true", v, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) should report not found")
	}
}

func TestRowOverwriteKeepsPosition(t *testing.T) {
	r := NewRow()
	r.Set("a", Int(1))
	r.Set("b", Int(2))
	r.Set("a", Int(10))

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	col, v := r.At(0)
	if col != "a" || !v.Equal(Int(10)) {
		t.Errorf("At(0) = %q, %v; want a, 10", col, v)
	}
}

func TestRowClone(t *testing.T) {
	r := NewRow()
	r.Set("a", Int(1))

	c := r.Clone()
	c.Set("a", Int(2))

	if v, _ := r.Get("a"); !v.Equal(Int(1)) {
		t.Errorf("clone mutation leaked into original: %v", v)
	}
	if !r.Equal(r.Clone()) {
		t.Error("fresh clone should equal original")
	}
}

func TestRowEqual(t *testing.T) {
	a := NewRow()
	a.Set("x", Int(1))
	a.Set("y", Null())

	b := NewRow()
	b.Set("x", Int(1))
	b.Set("y", Null())

	if !a.Equal(b) {
		t.Error("identical rows should be equal")
	}

	// Same columns, different order.
	c := NewRow()
	c.Set("y", Null())
	c.Set("x", Int(1))
	if a.Equal(c) {
		t.Error("rows with different column order should not be equal")
	}
}

func TestRequestStringOmitsParams(t *testing.T) {
	q := NewRequest("SELECT * FROM t WHERE secret = $1", String("hunter2"))
	if got := q.String(); got != "SELECT * FROM t WHERE secret = $1 [1 params]" {
		t.Errorf("String() = %q", got)
	}
}
