package exporter

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/WangYihang/Catalog-Crawler/pkg/export"
)

const (
	csvSeparator = ";"
	utf8BOM      = "\ufeff"
)

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return ""
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// WriteCSV writes a BOM-prefixed, semicolon-separated file. Every field is
// quoted and rows end with "\n".
func WriteCSV(w io.Writer, rows []export.Row) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(utf8BOM)

	fields := make([]string, len(export.Columns))
	for i, h := range export.Headers() {
		fields[i] = quote(h)
	}
	bw.WriteString(strings.Join(fields, csvSeparator))

	for _, row := range rows {
		for i := range fields {
			var v any
			if i < len(row) {
				v = row[i]
			}
			fields[i] = quote(cellText(v))
		}
		bw.WriteString("\n")
		bw.WriteString(strings.Join(fields, csvSeparator))
	}
	return bw.Flush()
}
