package settings

import (
	"encoding/json"
	"testing"
)

func TestIntValue(t *testing.T) {
	StoreDBConfig(map[string]json.RawMessage{
		"A": json.RawMessage("7"),
		"B": json.RawMessage(`"12"`),
		"C": json.RawMessage("-3"),
		"D": json.RawMessage("null"),
	})
	t.Cleanup(func() { StoreDBConfig(nil) })

	if got := IntValue("A", 1); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := IntValue("B", 1); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
	if got := IntValue("C", 1); got != 1 {
		t.Fatalf("expected fallback for negative value, got %d", got)
	}
	if got := IntValue("D", 4); got != 4 {
		t.Fatalf("expected fallback for null value, got %d", got)
	}
	if got := IntValue("missing", 9); got != 9 {
		t.Fatalf("expected fallback for missing key, got %d", got)
	}
}

func TestBoolValue(t *testing.T) {
	StoreDBConfig(map[string]json.RawMessage{
		"A": json.RawMessage("true"),
		"B": json.RawMessage(`"off"`),
		"C": json.RawMessage("1"),
		"D": json.RawMessage("null"),
		"E": json.RawMessage(`"maybe"`),
	})
	t.Cleanup(func() { StoreDBConfig(nil) })

	if !BoolValue("A", false) {
		t.Fatalf("expected true")
	}
	if BoolValue("B", true) {
		t.Fatalf("expected off to be false")
	}
	if !BoolValue("C", false) {
		t.Fatalf("expected 1 to be true")
	}
	if !BoolValue("D", true) || !BoolValue("E", true) || BoolValue("missing", false) {
		t.Fatalf("expected fallback for null, unknown and missing values")
	}
}

func TestStringValue(t *testing.T) {
	StoreDBConfig(map[string]json.RawMessage{
		"A": json.RawMessage(`" redis:6379 "`),
		"B": json.RawMessage(`""`),
		"C": json.RawMessage("5"),
		"D": json.RawMessage("null"),
	})
	t.Cleanup(func() { StoreDBConfig(nil) })

	if got := StringValue("A", ""); got != "redis:6379" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	for _, key := range []string{"B", "C", "D", "missing"} {
		if got := StringValue(key, "fallback"); got != "fallback" {
			t.Fatalf("key %s: expected fallback, got %q", key, got)
		}
	}
}
