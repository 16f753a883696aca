// Package formatter renders markdown reports for crawl runs.
package formatter

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// AlignTables pads every markdown table in content so its columns line up
// in a terminal. Widths are display widths, so CJK text counts double.
func AlignTables(content string) string {
	lines := strings.Split(content, "\n")

	var (
		out   []string
		table []string
	)

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|") {
			table = append(table, line)

			continue
		}

		if len(table) > 0 {
			out = append(out, alignTable(table)...)
			table = nil
		}

		out = append(out, line)
	}

	if len(table) > 0 {
		out = append(out, alignTable(table)...)
	}

	return strings.Join(out, "\n")
}

func splitRow(row string) []string {
	parts := strings.Split(strings.TrimSpace(row), "|")
	parts = parts[1 : len(parts)-1]

	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}

	return cells
}

func isSeparator(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}

	return true
}

func alignTable(rows []string) []string {
	// header plus separator at minimum
	if len(rows) < 2 {
		return rows
	}

	table := make([][]string, len(rows))
	cols := 0

	for i, row := range rows {
		table[i] = splitRow(row)
		cols = max(cols, len(table[i]))
	}

	sepIdx := -1
	if isSeparator(table[1]) {
		sepIdx = 1
	}

	widths := make([]int, cols)
	for i := range widths {
		widths[i] = 3
	}

	for r, row := range table {
		if r == sepIdx {
			continue
		}

		for c, cell := range row {
			widths[c] = max(widths[c], runewidth.StringWidth(cell))
		}
	}

	result := make([]string, 0, len(table))

	for r, row := range table {
		var sb strings.Builder

		sb.WriteString("|")

		for c := 0; c < cols; c++ {
			sb.WriteString(" ")

			if r == sepIdx {
				sb.WriteString(strings.Repeat("-", widths[c]))
			} else {
				cell := ""
				if c < len(row) {
					cell = row[c]
				}

				sb.WriteString(runewidth.FillRight(cell, widths[c]))
			}

			sb.WriteString(" |")
		}

		result = append(result, sb.String())
	}

	return result
}
