// Package bulkimport adds provider keys in batches from CSV-like text.
package bulkimport

import "strings"

// RowKind classifies a parsed line.
type RowKind int

const (
	// RowCandidate has a delimiter and a non-empty secret. It is attempted.
	RowCandidate RowKind = iota
	// RowSkipped has a delimiter but no secret. It is ignored entirely.
	RowSkipped
	// RowMalformed has no delimiter. It counts as a failed row.
	RowMalformed
)

// Row is one non-blank line of an import payload.
type Row struct {
	Line        int // 1-based line number in the payload.
	Kind        RowKind
	Description string
	Secret      string
}

// delimiters in order of preference. The first one present on a line wins.
var delimiters = []string{",", ";", "\t"}

// Parse splits content into rows. Blank lines are dropped and a trailing \r is stripped.
func Parse(content string) []Row {
	lines := strings.Split(content, "\n")
	rows := make([]Row, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, parseLine(i+1, line))
	}
	return rows
}

func parseLine(number int, line string) Row {
	for _, delimiter := range delimiters {
		description, secret, found := strings.Cut(line, delimiter)
		if !found {
			continue
		}
		row := Row{
			Line:        number,
			Kind:        RowCandidate,
			Description: strings.TrimSpace(description),
			Secret:      strings.TrimSpace(secret),
		}
		if row.Secret == "" {
			row.Kind = RowSkipped
		}
		return row
	}
	return Row{Line: number, Kind: RowMalformed}
}
