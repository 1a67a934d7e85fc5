package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

var errNoSheet = errors.New("no active sheet")

// Column describes one column of a report sheet.
type Column struct {
	Title string
	Width float64
}

// Workbook is the spreadsheet the report service fills sheet by sheet.
type Workbook interface {
	// Sheet starts a sheet and writes its header row.
	Sheet(name string, columns []Column) error
	// Append writes one data row below the previous one.
	Append(values ...interface{}) error
	Save(w io.Writer) error
	Close() error
}

type excelWorkbook struct {
	file        *excelize.File
	sheet       string
	row         int
	headerStyle int
}

// NewWorkbook creates an empty excelize workbook.
func NewWorkbook() Workbook {
	return &excelWorkbook{file: excelize.NewFile()}
}

func (b *excelWorkbook) Sheet(name string, columns []Column) error {
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	if b.sheet == "" {
		if err := b.file.SetSheetName(b.file.GetSheetName(0), name); err != nil {
			return fmt.Errorf("rename sheet %q: %w", name, err)
		}
	} else if _, err := b.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %q: %w", name, err)
	}
	b.sheet, b.row = name, 1

	titles := make([]interface{}, len(columns))
	for i, c := range columns {
		titles[i] = c.Title
		if c.Width > 0 {
			col, err := excelize.ColumnNumberToName(i + 1)
			if err != nil {
				return err
			}
			if err := b.file.SetColWidth(name, col, col, c.Width); err != nil {
				return err
			}
		}
	}
	if err := b.Append(titles...); err != nil {
		return err
	}
	if len(columns) == 0 {
		return nil
	}

	if b.headerStyle == 0 {
		style, err := b.file.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true},
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
		})
		if err != nil {
			return err
		}
		b.headerStyle = style
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	if err := b.file.SetCellStyle(name, "A1", last, b.headerStyle); err != nil {
		return err
	}
	if err := b.file.AutoFilter(name, "A1:"+last, nil); err != nil {
		return err
	}
	return b.file.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func (b *excelWorkbook) Append(values ...interface{}) error {
	if b.sheet == "" {
		return errNoSheet
	}
	cell, err := excelize.CoordinatesToCellName(1, b.row)
	if err != nil {
		return err
	}
	if err := b.file.SetSheetRow(b.sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d of %q: %w", b.row, b.sheet, err)
	}
	b.row++
	return nil
}

func (b *excelWorkbook) Save(w io.Writer) error {
	return b.file.Write(w)
}

func (b *excelWorkbook) Close() error {
	return b.file.Close()
}
