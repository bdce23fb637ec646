package exporter

import (
	"fmt"
	"io"

	"github.com/WangYihang/Catalog-Crawler/pkg/export"
	"github.com/WangYihang/Catalog-Crawler/pkg/normalize"
	"github.com/xuri/excelize/v2"
)

// SheetName is the name of the only worksheet
const SheetName = "Компании"

const (
	bannerRow = 1
	headerRow = 2
	firstData = 3
)

var zoneFills = map[string]string{
	normalize.ZoneCenter:      "E8F4F8",
	normalize.ZoneMiddle:      "F0F8E8",
	normalize.ZoneResidential: "FFF8E8",
}

var numFormats = map[export.ColumnKind]string{
	export.KindDecimal:    "0.0",
	export.KindInteger:    "0",
	export.KindCoordinate: "0.000000",
}

func thinBorder() []excelize.Border {
	var b []excelize.Border
	for _, side := range []string{"left", "right", "top", "bottom"} {
		b = append(b, excelize.Border{Type: side, Color: "CCCCCC", Style: 1})
	}
	return b
}

type styles struct {
	banner int
	header int
	kinds  map[export.ColumnKind]int
	zones  map[string]int
}

func newStyles(f *excelize.File) (*styles, error) {
	s := &styles{kinds: map[export.ColumnKind]int{}, zones: map[string]int{}}
	var err error

	s.banner, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Family: "Calibri", Size: 10, Italic: true, Color: "666666"},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}

	s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Family: "Calibri", Size: 11, Bold: true, Color: "000000"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D3D3D3"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    thinBorder(),
	})
	if err != nil {
		return nil, err
	}

	cellFont := &excelize.Font{Family: "Calibri", Size: 10}
	text := &excelize.Alignment{Horizontal: "left", Vertical: "center", WrapText: true}
	number := &excelize.Alignment{Horizontal: "right", Vertical: "center"}

	for _, kind := range []export.ColumnKind{export.KindText, export.KindDecimal, export.KindInteger, export.KindCoordinate, export.KindLink} {
		st := &excelize.Style{Font: cellFont, Alignment: text, Border: thinBorder()}
		if nf, ok := numFormats[kind]; ok {
			nf := nf
			st.CustomNumFmt = &nf
			st.Alignment = number
		}
		if kind == export.KindLink {
			st.Font = &excelize.Font{Family: "Calibri", Size: 10, Color: "0563C1", Underline: "single"}
		}
		if s.kinds[kind], err = f.NewStyle(st); err != nil {
			return nil, err
		}
	}

	for zone, color := range zoneFills {
		s.zones[zone], err = f.NewStyle(&excelize.Style{
			Font:      cellFont,
			Alignment: text,
			Border:    thinBorder(),
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func colName(col int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return name
}

// WriteXLSX writes rows to a single styled worksheet: a merged statistics
// banner in row 1, the header in row 2, data from row 3 with frozen panes,
// an autofilter, hyperlink cells and colour scales on rating and distance.
func WriteXLSX(w io.Writer, rows []export.Row, banner string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}
	st, err := newStyles(f)
	if err != nil {
		return fmt.Errorf("xlsx: styles: %w", err)
	}

	cols := export.Columns
	lastCol := colName(len(cols))
	lastRow := headerRow + len(rows)

	if err := writeBanner(f, st, banner, lastCol); err != nil {
		return err
	}
	if err := writeHeader(f, st, cols); err != nil {
		return err
	}

	for r, row := range rows {
		rowNum := firstData + r
		for c, col := range cols {
			var v any
			if c < len(row) {
				v = row[c]
			}
			if err := writeCell(f, st, col, cellName(c+1, rowNum), v); err != nil {
				return err
			}
		}
		f.SetRowHeight(SheetName, rowNum, 20)
	}

	if err := f.AutoFilter(SheetName, fmt.Sprintf("A%d:%s%d", headerRow, lastCol, lastRow), nil); err != nil {
		return fmt.Errorf("xlsx: autofilter: %w", err)
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRow,
		TopLeftCell: cellName(1, firstData),
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("xlsx: panes: %w", err)
	}
	if len(rows) > 0 {
		if err := addColorScales(f, cols, lastRow); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func writeBanner(f *excelize.File, st *styles, banner, lastCol string) error {
	if err := f.SetCellValue(SheetName, "A1", banner); err != nil {
		return err
	}
	if err := f.MergeCell(SheetName, "A1", fmt.Sprintf("%s%d", lastCol, bannerRow)); err != nil {
		return fmt.Errorf("xlsx: merge banner: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "A1", st.banner); err != nil {
		return err
	}
	return f.SetRowHeight(SheetName, bannerRow, 20)
}

func writeHeader(f *excelize.File, st *styles, cols []export.Column) error {
	for c, col := range cols {
		cell := cellName(c+1, headerRow)
		if err := f.SetCellValue(SheetName, cell, col.Header); err != nil {
			return err
		}
		name := colName(c + 1)
		if err := f.SetColWidth(SheetName, name, name, col.Width); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetName, cellName(1, headerRow), cellName(len(cols), headerRow), st.header); err != nil {
		return err
	}
	return f.SetRowHeight(SheetName, headerRow, 25)
}

func writeCell(f *excelize.File, st *styles, col export.Column, cell string, v any) error {
	style := st.kinds[col.Kind]

	switch {
	case col.Kind == export.KindLink:
		link, _ := v.(string)
		if link == "" {
			break
		}
		if err := f.SetCellValue(SheetName, cell, col.Label); err != nil {
			return err
		}
		if err := f.SetCellHyperLink(SheetName, cell, link, "External"); err != nil {
			return fmt.Errorf("xlsx: link %s: %w", cell, err)
		}
	case v != nil:
		if err := f.SetCellValue(SheetName, cell, v); err != nil {
			return err
		}
		if col.Header == export.HeaderZone {
			if zs, ok := st.zones[cellText(v)]; ok {
				style = zs
			}
		}
	}
	return f.SetCellStyle(SheetName, cell, cell, style)
}

func addColorScales(f *excelize.File, cols []export.Column, lastRow int) error {
	scales := map[string]excelize.ConditionalFormatOptions{
		export.HeaderRating: {
			Type: "3_color_scale", Criteria: "=",
			MinType: "num", MinValue: "3", MinColor: "#FFC7CE",
			MidType: "num", MidValue: "4.2", MidColor: "#FFEB9C",
			MaxType: "num", MaxValue: "5", MaxColor: "#C6EFCE",
		},
		export.HeaderDistance: {
			Type: "3_color_scale", Criteria: "=",
			MinType: "num", MinValue: "0.5", MinColor: "#C6EFCE",
			MidType: "num", MidValue: "7.5", MidColor: "#FFEB9C",
			MaxType: "num", MaxValue: "15", MaxColor: "#FFC7CE",
		},
	}
	for c, col := range cols {
		opts, ok := scales[col.Header]
		if !ok {
			continue
		}
		name := colName(c + 1)
		ref := fmt.Sprintf("%s%d:%s%d", name, firstData, name, lastRow)
		if err := f.SetConditionalFormat(SheetName, ref, []excelize.ConditionalFormatOptions{opts}); err != nil {
			return fmt.Errorf("xlsx: colour scale %s: %w", col.Header, err)
		}
	}
	return nil
}
