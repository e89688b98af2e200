package bulkimport

import "testing"

func TestParseClassifiesRows(t *testing.T) {
	rows := Parse("desc1,secretA\n,secretB\n,\nbadrow\n\n   \n")
	if len(rows) != 4 {
		t.Fatalf("expected 4 non-blank rows, got %d", len(rows))
	}
	want := []struct {
		kind        RowKind
		description string
		secret      string
	}{
		{RowCandidate, "desc1", "secretA"},
		{RowCandidate, "", "secretB"},
		{RowSkipped, "", ""},
		{RowMalformed, "", ""},
	}
	for i, w := range want {
		if rows[i].Kind != w.kind || rows[i].Description != w.description || rows[i].Secret != w.secret {
			t.Fatalf("row %d: expected %+v, got %+v", i, w, rows[i])
		}
	}
	if rows[3].Line != 4 {
		t.Fatalf("expected malformed row on line 4, got %d", rows[3].Line)
	}
}

func TestParseDelimiters(t *testing.T) {
	cases := []struct {
		line        string
		description string
		secret      string
	}{
		{"name;key1", "name", "key1"},
		{"name\tkey2", "name", "key2"},
		{"a,b;c", "a", "b;c"},
		{"a;b\tc", "a", "b\tc"},
		{"  spaced , key3  \r", "spaced", "key3"},
		{"label,key,with,commas", "label", "key,with,commas"},
	}
	for _, tc := range cases {
		rows := Parse(tc.line)
		if len(rows) != 1 {
			t.Fatalf("%q: expected one row, got %d", tc.line, len(rows))
		}
		if rows[0].Kind != RowCandidate || rows[0].Description != tc.description || rows[0].Secret != tc.secret {
			t.Fatalf("%q: unexpected row %+v", tc.line, rows[0])
		}
	}
}

func TestParseCRLF(t *testing.T) {
	rows := Parse("a,k1\r\nb,k2\r\n")
	if len(rows) != 2 || rows[0].Secret != "k1" || rows[1].Secret != "k2" {
		t.Fatalf("expected CRLF to be stripped, got %+v", rows)
	}
}

func TestParseSkipsDescriptionOnly(t *testing.T) {
	rows := Parse("desc;\n")
	if len(rows) != 1 || rows[0].Kind != RowSkipped {
		t.Fatalf("expected skipped row, got %+v", rows)
	}
}
