package sheet

import (
	"strconv"
	"strings"
)

// MinFields is the number of columns a row needs to be kept.
const MinFields = 8

// Column positions in the export.
const (
	colID = iota
	colCategory
	colCategoryOrder
	colQuestion
	colAnswer
	colActive
	colCreatedAt
	colUpdatedAt
)

// Row is one active FAQ entry.
type Row struct {
	ID            int    `json:"id"`
	Category      string `json:"category"`
	CategoryOrder int    `json:"categoryOrder"`
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	Active        bool   `json:"active"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

// ParseStats counts what ParseRows discarded.
type ParseStats struct {
	Lines    int
	Short    int
	Inactive int
}

// ParseRows converts an export into rows. The first line is a header and is
// skipped along with blank lines, rows with fewer than MinFields columns and
// rows whose active flag is not "TRUE" in any letter case. Unparseable numbers
// become zero.
func ParseRows(text string) ([]Row, ParseStats) {
	var stats ParseStats
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return nil, stats
	}

	rows := make([]Row, 0, len(lines)-1)
	for _, line := range lines[1:] {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.Lines++

		fields := SplitLine(line)
		if len(fields) < MinFields {
			stats.Short++
			continue
		}
		if !strings.EqualFold(fields[colActive], "TRUE") {
			stats.Inactive++
			continue
		}
		rows = append(rows, Row{
			ID:            atoi(fields[colID]),
			Category:      fields[colCategory],
			CategoryOrder: atoi(fields[colCategoryOrder]),
			Question:      fields[colQuestion],
			Answer:        fields[colAnswer],
			Active:        true,
			CreatedAt:     fields[colCreatedAt],
			UpdatedAt:     fields[colUpdatedAt],
		})
	}
	return rows, stats
}

// SplitLine splits one line on commas that are outside double quotes and
// unquotes each field.
func SplitLine(line string) []string {
	var (
		fields       []string
		field        strings.Builder
		insideQuotes bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			insideQuotes = !insideQuotes
			field.WriteRune(r)
		case r == ',' && !insideQuotes:
			fields = append(fields, unquote(field.String()))
			field.Reset()
		default:
			field.WriteRune(r)
		}
	}
	return append(fields, unquote(field.String()))
}

func unquote(field string) string {
	field = strings.TrimSpace(field)
	if len(field) >= 2 && field[0] == '"' && field[len(field)-1] == '"' {
		field = field[1 : len(field)-1]
	}
	return strings.TrimSpace(strings.ReplaceAll(field, `""`, `"`))
}

func atoi(s string) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}
