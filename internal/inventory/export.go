package inventory

import (
	"context"
	"io"

	"github.com/xuri/excelize/v2"
)

const ledgerSheet = "Ledger"

var ledgerHeadings = []string{"Tanggal", "Produk", "Jenis", "Klien", "Jumlah", "Harga/kg"}

// ExportLedger writes the filtered product ledger of owner as an XLSX workbook.
func (s *Service) ExportLedger(ctx context.Context, owner string, filter Filter, w io.Writer) error {
	ledger, err := s.ProductLedger(ctx, owner, filter)
	if err != nil {
		return err
	}
	return WriteLedgerXLSX(w, ledger)
}

// WriteLedgerXLSX renders ledger entries followed by the summary block.
func WriteLedgerXLSX(w io.Writer, ledger Ledger) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ledgerSheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return err
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return err
	}

	for i, h := range ledgerHeadings {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(ledgerSheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(ledgerHeadings), 1)
	if err := f.SetCellStyle(ledgerSheet, "A1", last, bold); err != nil {
		return err
	}

	row := 2
	for _, e := range ledger.Entries {
		client := ""
		if e.ClientCode != nil {
			client = *e.ClientCode
		}
		values := []any{e.Date, e.ProductName, string(e.Type), client, e.Quantity, e.PricePerKg}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(ledgerSheet, cell, &values); err != nil {
			return err
		}
		if err := f.SetCellStyle(ledgerSheet, cell, cell, dateStyle); err != nil {
			return err
		}
		row++
	}

	row++
	summary := [][]any{
		{"Total Produksi", ledger.Summary.TotalProduced},
		{"Total Penjualan", ledger.Summary.TotalSold},
		{"Stok Tersedia", ledger.Summary.AvailableStock},
	}
	for _, values := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(ledgerSheet, cell, &values); err != nil {
			return err
		}
		if err := f.SetCellStyle(ledgerSheet, cell, cell, bold); err != nil {
			return err
		}
		row++
	}
	if err := f.SetColWidth(ledgerSheet, "A", "F", 16); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}
