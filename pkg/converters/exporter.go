// Package converters writes restriction records to spreadsheet and CSV files.
package converters

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/feichai0017/tapu-processor/internal/models"
)

// BOM lets spreadsheet applications detect UTF-8 CSV files.
var BOM = []byte{0xEF, 0xBB, 0xBF}

const sheetName = "Kayitlar"

var ErrUnsupportedFormat = errors.New("unsupported output format")

// Headers is the fixed column layout of every export.
var Headers = []string{
	"Kaynak Dosyasi",
	"S/B/I",
	"Haciz Turu",
	"Aciklama",
	"Aciklama Extracted",
	"Tarih",
	"Dosya Numarasi",
	"Yevmiye",
	"Icra Dairesi",
	"Il",
	"Ilce",
	"Mahalle",
	"Bagimsiz Bolum Nitelik",
	"Ada",
	"Parsel",
	"Blok",
	"Kat",
	"Giris",
	"BBNo",
}

// Writer persists a batch of records to path in the given format.
type Writer interface {
	Write(records []models.RestrictionRecord, path string, format models.OutputFormat) error
}

type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Write(records []models.RestrictionRecord, path string, format models.OutputFormat) error {
	switch format {
	case models.FormatExcel:
		return writeExcel(records, path)
	case models.FormatCSV:
		return writeCSV(records, path)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func writeExcel(records []models.RestrictionRecord, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}

	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, excelRow(&records[i])); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeCSV(records []models.RestrictionRecord, path string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	buf := bufio.NewWriter(file)
	if _, err := buf.Write(BOM); err != nil {
		return err
	}

	w := csv.NewWriter(buf)
	if err := w.Write(Headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range records {
		if err := w.Write(csvRow(&records[i])); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return buf.Flush()
}

func textColumns(r *models.RestrictionRecord) (before []string, after []string) {
	before = []string{
		r.Source, r.SBI, r.HacizType, r.Description, r.DescriptionExt, r.Date, r.FileNumber,
	}
	after = []string{
		r.EnforcementOffice, r.Province, r.District, r.Neighborhood, r.UnitQualifier,
		r.Ada, r.Parsel, r.Building, r.Floor, r.Entry, r.UnitNumber,
	}
	return before, after
}

func excelRow(r *models.RestrictionRecord) []interface{} {
	before, after := textColumns(r)
	row := make([]interface{}, 0, len(Headers))
	for _, v := range before {
		row = append(row, v)
	}
	if r.JournalNumber != nil {
		row = append(row, *r.JournalNumber)
	} else {
		row = append(row, nil)
	}
	for _, v := range after {
		row = append(row, v)
	}
	return row
}

func csvRow(r *models.RestrictionRecord) []string {
	before, after := textColumns(r)
	journal := ""
	if r.JournalNumber != nil {
		journal = strconv.Itoa(*r.JournalNumber)
	}
	row := make([]string, 0, len(Headers))
	row = append(row, before...)
	row = append(row, journal)
	return append(row, after...)
}
