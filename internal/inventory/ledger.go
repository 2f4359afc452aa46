package inventory

import (
	"sort"

	"github.com/shopspring/decimal"
)

// BuildProductLedger merges outputs and sales into a dated ledger. The summary
// is computed from the entries that survive the filter, so it always matches
// what the user is looking at.
func BuildProductLedger(outputs []Output, sales []Sale, filter Filter) Ledger {
	entries := make([]LedgerEntry, 0, len(outputs)+len(sales))
	for _, o := range outputs {
		if !filter.Matches(o.ProductName, o.Date) {
			continue
		}
		entries = append(entries, LedgerEntry{
			ID:          o.ID,
			Date:        o.Date,
			ProductName: normalizeName(o.ProductName),
			Type:        LedgerProduction,
			Quantity:    o.QuantityProduced,
			PricePerKg:  o.FinalAveragePrice,
		})
	}
	for _, s := range sales {
		if !filter.Matches(s.ProductName, s.Date) {
			continue
		}
		client := s.ClientCode
		entries = append(entries, LedgerEntry{
			ID:          s.ID,
			Date:        s.Date,
			ProductName: normalizeName(s.ProductName),
			Type:        LedgerSale,
			ClientCode:  &client,
			Quantity:    -s.Quantity,
			PricePerKg:  s.SalePrice,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Type != b.Type {
			return a.Type == LedgerProduction
		}
		return a.ID < b.ID
	})

	produced := decimal.Zero
	sold := decimal.Zero
	for _, e := range entries {
		qty := decimal.NewFromFloat(e.Quantity)
		if e.Type == LedgerProduction {
			produced = produced.Add(qty)
		} else {
			sold = sold.Sub(qty)
		}
	}
	return Ledger{
		Entries: entries,
		Summary: LedgerSummary{
			TotalProduced:  produced.InexactFloat64(),
			TotalSold:      sold.InexactFloat64(),
			AvailableStock: produced.Sub(sold).InexactFloat64(),
		},
	}
}

// BuildStockCard lists one material's vouchers with a running balance. Vouchers
// dated before filter.From roll into the opening balance.
func BuildStockCard(vouchers []Voucher, filter Filter) StockCard {
	name := normalizeName(filter.Name)
	rows := make([]Voucher, 0, len(vouchers))
	for _, v := range vouchers {
		if normalizeName(v.MaterialName) == name {
			rows = append(rows, v)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})

	card := StockCard{MaterialName: name}
	balance := decimal.Zero
	window := Filter{To: filter.To}
	for _, v := range rows {
		qty := decimal.NewFromFloat(v.Quantity)
		if !filter.From.IsZero() && v.Date.Before(startOfDay(filter.From)) {
			balance = balance.Add(qty)
			card.OpeningBalance = balance.InexactFloat64()
			continue
		}
		if !window.Matches(v.MaterialName, v.Date) {
			continue
		}
		balance = balance.Add(qty)
		entry := StockCardEntry{
			VoucherID:  v.ID,
			Date:       v.Date,
			BalanceQty: balance.InexactFloat64(),
			UnitPrice:  v.PricePerUnit,
			Remarks:    v.Remarks,
			ProcessID:  v.ProcessID,
		}
		if qty.IsNegative() {
			entry.Type = MovementOut
			entry.QtyOut = qty.Neg().InexactFloat64()
		} else {
			entry.Type = MovementIn
			entry.QtyIn = qty.InexactFloat64()
		}
		card.Entries = append(card.Entries, entry)
	}
	card.ClosingBalance = balance.InexactFloat64()
	return card
}
