package answer

import "strings"

// RenderRows formats a result set as an aligned text table: header line, then
// one line per row, every column right-aligned to its widest value. LLM
// prompts embed this rendering so the model sees the result the way a human
// would read it on a terminal.
func RenderRows(columns []string, rows [][]string) string {
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var sb strings.Builder
	writeLine := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				sb.WriteString("  ")
			}
			if i < len(widths) {
				sb.WriteString(strings.Repeat(" ", widths[i]-len(cell)))
			}
			sb.WriteString(cell)
		}
		sb.WriteByte('\n')
	}

	writeLine(columns)
	for _, row := range rows {
		writeLine(row)
	}
	return strings.TrimRight(sb.String(), "\n")
}
