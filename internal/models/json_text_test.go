package models

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestJSONTextScanAcceptsNumericStorage(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{in: int64(1000), want: "1000"},
		{in: float64(2.5), want: "2.5"},
		{in: true, want: "true"},
		{in: "\"keymanager:rl\"", want: "\"keymanager:rl\""},
		{in: []byte(`{"total":3}`), want: `{"total":3}`},
	}
	for _, tc := range cases {
		var got JSONText
		if err := got.Scan(tc.in); err != nil {
			t.Fatalf("scan %T: %v", tc.in, err)
		}
		if string(got) != tc.want {
			t.Fatalf("scan %T: expected %s, got %s", tc.in, tc.want, string(got))
		}
	}

	empty := JSONText("5")
	if err := empty.Scan(nil); err != nil || empty != nil {
		t.Fatalf("expected nil scan to clear value, got %q, %v", string(empty), err)
	}
	if err := empty.Scan(struct{}{}); err == nil {
		t.Fatalf("expected unsupported type error")
	}
}

func TestJSONTextValueIsText(t *testing.T) {
	value, err := JSONText("200").Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if s, ok := value.(string); !ok || s != "200" {
		t.Fatalf("expected string 200, got %#v", value)
	}
	value, err = JSONText(nil).Value()
	if err != nil || value != nil {
		t.Fatalf("expected nil value for empty document, got %#v, %v", value, err)
	}
}

func TestJSONTextColumnTypePerDialect(t *testing.T) {
	pg := &gorm.DB{Config: &gorm.Config{Dialector: postgres.Dialector{}}}
	if got := (JSONText{}).GormDBDataType(pg, nil); got != "JSONB" {
		t.Fatalf("expected JSONB on postgres, got %s", got)
	}
	lite := &gorm.DB{Config: &gorm.Config{Dialector: sqlite.Dialector{}}}
	if got := (JSONText{}).GormDBDataType(lite, nil); got != "TEXT" {
		t.Fatalf("expected TEXT on sqlite, got %s", got)
	}
}
