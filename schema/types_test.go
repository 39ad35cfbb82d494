package schema

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestColumnType_Coerce(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name string
		typ  ColumnType
		in   any
		want any
	}{
		{"int64 to int32", Int32, int64(12), int32(12)},
		{"int64 to int8", Int8, int64(-5), int8(-5)},
		{"int64 to uint16", Uint16, int64(65535), uint16(65535)},
		{"string digits to int64", Int64, "42", int64(42)},
		{"bytes to string", String, []byte("hi"), "hi"},
		{"int to bool", Bool, int64(1), true},
		{"float to float32", Float32, 0.5, float32(0.5)},
		{"int to float64", Float64, int64(3), float64(3)},
		{"nanos to duration", Duration, int64(1500), 1500 * time.Nanosecond},
		{"uuid string", UUID, id.String(), id},
		{"uuid bytes", UUID, id[:], id},
		{"nil stays nil", Int64, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.typ.Coerce(tt.in)
			if err != nil {
				t.Fatalf("Coerce() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("Coerce() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestColumnType_CoerceComplexValues(t *testing.T) {
	d, err := Decimal.Coerce("12.50")
	if err != nil || !d.(decimal.Decimal).Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("decimal coerce = %v, %v", d, err)
	}

	ts, err := Time.Coerce("2024-05-06 07:08:09")
	if err != nil {
		t.Fatalf("time coerce error = %v", err)
	}
	if want := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC); !ts.(time.Time).Equal(want) {
		t.Fatalf("time coerce = %v, want %v", ts, want)
	}

	src := []byte{1, 2}
	b, err := Bytes.Coerce(src)
	if err != nil {
		t.Fatal(err)
	}
	src[0] = 9
	if b.([]byte)[0] != 1 {
		t.Fatal("bytes coerce should copy the driver buffer")
	}
}

func TestColumnType_CoerceErrors(t *testing.T) {
	tests := []struct {
		name string
		typ  ColumnType
		in   any
	}{
		{"overflow int8", Int8, int64(300)},
		{"negative unsigned", Uint32, int64(-1)},
		{"string into int", Int64, "abc"},
		{"bool from struct", Bool, struct{}{}},
		{"bad uuid", UUID, "not-a-uuid"},
		{"bad time", Time, "yesterday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.typ.Coerce(tt.in); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestColumnType_Width(t *testing.T) {
	if w, ok := Int32.FixedWidth(); !ok || w != 4 {
		t.Fatalf("Int32 width = %d, %v", w, ok)
	}
	if _, ok := String.FixedWidth(); ok {
		t.Fatal("String should be variable width")
	}
	if got := String.MeasureValue("hello"); got != 5 {
		t.Fatalf("MeasureValue = %d", got)
	}
	if got := Int64.MeasureValue(int64(1)); got != 8 {
		t.Fatalf("MeasureValue = %d", got)
	}
}
