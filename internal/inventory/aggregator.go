package inventory

import (
	"sort"

	"github.com/shopspring/decimal"
)

// RawMaterialPosition derives available stock and average purchase price of
// one material from every voucher that names it.
func RawMaterialPosition(vouchers []Voucher, name string) RawMaterialStock {
	name = normalizeName(name)
	pos := RawMaterialStock{Name: name}
	available := decimal.Zero
	inQty := decimal.Zero
	inCost := decimal.Zero
	consumed := decimal.Zero
	for _, v := range vouchers {
		if normalizeName(v.MaterialName) != name {
			continue
		}
		qty := decimal.NewFromFloat(v.Quantity)
		available = available.Add(qty)
		if qty.IsPositive() {
			inQty = inQty.Add(qty)
			inCost = inCost.Add(voucherTotal(v))
		} else {
			consumed = consumed.Sub(qty)
		}
		if v.Code != "" {
			pos.Code = v.Code
		}
		if v.UnitType != "" {
			pos.Unit = v.UnitType
		}
	}
	pos.AvailableStock = available.InexactFloat64()
	pos.TotalPurchased = inQty.InexactFloat64()
	pos.TotalConsumed = consumed.InexactFloat64()
	pos.Negative = available.IsNegative()
	if inQty.IsPositive() {
		pos.AveragePrice = inCost.Div(inQty).InexactFloat64()
	}
	return pos
}

// RawMaterialPositions derives the position of every material, ordered by name.
func RawMaterialPositions(vouchers []Voucher) []RawMaterialStock {
	names := make(map[string]struct{})
	for _, v := range vouchers {
		names[normalizeName(v.MaterialName)] = struct{}{}
	}
	out := make([]RawMaterialStock, 0, len(names))
	for _, name := range sortedKeys(names) {
		out = append(out, RawMaterialPosition(vouchers, name))
	}
	return out
}

// FinishedGoodPosition derives available stock and batch-weighted average price
// of one product. Batches with zero or negative net quantity carry no weight.
func FinishedGoodPosition(outputs []Output, sales []Sale, name string) FinishedGood {
	name = normalizeName(name)
	pos := FinishedGood{Name: name}
	produced := decimal.Zero
	weight := decimal.Zero
	value := decimal.Zero
	for _, o := range outputs {
		if normalizeName(o.ProductName) != name {
			continue
		}
		qty := decimal.NewFromFloat(o.QuantityProduced)
		produced = produced.Add(qty)
		if qty.IsPositive() {
			weight = weight.Add(qty)
			value = value.Add(qty.Mul(decimal.NewFromFloat(o.FinalAveragePrice)))
		}
		if o.ProductCode != "" {
			pos.Code = o.ProductCode
		}
		if o.Unit != "" {
			pos.QuantityType = o.Unit
		}
	}
	sold := decimal.Zero
	for _, s := range sales {
		if normalizeName(s.ProductName) == name {
			sold = sold.Add(decimal.NewFromFloat(s.Quantity))
		}
	}
	available := produced.Sub(sold)
	pos.AvailableStock = available.InexactFloat64()
	pos.Negative = available.IsNegative()
	if weight.IsPositive() {
		pos.AveragePrice = value.Div(weight).InexactFloat64()
	}
	return pos
}

// FinishedGoodPositions derives every product seen in outputs or sales, ordered by name.
func FinishedGoodPositions(outputs []Output, sales []Sale) []FinishedGood {
	names := make(map[string]struct{})
	for _, o := range outputs {
		names[normalizeName(o.ProductName)] = struct{}{}
	}
	for _, s := range sales {
		names[normalizeName(s.ProductName)] = struct{}{}
	}
	out := make([]FinishedGood, 0, len(names))
	for _, name := range sortedKeys(names) {
		out = append(out, FinishedGoodPosition(outputs, sales, name))
	}
	return out
}

// NetQuantity applies scrape and reduction deductions to the total process output.
func NetQuantity(totalOutput, scrape float64, scrapeUnit DeductionUnit, reduction float64, reductionUnit DeductionUnit) float64 {
	total := decimal.NewFromFloat(totalOutput)
	net := total.Sub(deduction(total, scrape, scrapeUnit)).Sub(deduction(total, reduction, reductionUnit))
	return net.InexactFloat64()
}

// FinalAveragePrice is totalCost/netQty plus the per-unit process charge,
// rounded to two decimals; zero when nothing net was produced.
func FinalAveragePrice(totalCost, netQty, processCharge float64) float64 {
	net := decimal.NewFromFloat(netQty)
	if !net.IsPositive() {
		return 0
	}
	return decimal.NewFromFloat(totalCost).
		Div(net).
		Add(decimal.NewFromFloat(processCharge)).
		Round(2).
		InexactFloat64()
}

// ProcessTotalCost values the consumed lines at their recorded rates.
func ProcessTotalCost(lines []ProcessLine) float64 {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(decimal.NewFromFloat(l.Quantity).Mul(decimal.NewFromFloat(l.Rate)))
	}
	return total.InexactFloat64()
}

func deduction(total decimal.Decimal, amount float64, unit DeductionUnit) decimal.Decimal {
	a := decimal.NewFromFloat(amount)
	if unit == DeductionPercent {
		return total.Mul(a).Div(decimal.NewFromInt(100))
	}
	return a
}

func voucherTotal(v Voucher) decimal.Decimal {
	return decimal.NewFromFloat(v.Quantity).Mul(decimal.NewFromFloat(v.PricePerUnit))
}

func multiply(a, b float64) float64 {
	return decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).InexactFloat64()
}

func sumFloats(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.InexactFloat64()
}

func formatQty(q float64) string {
	return decimal.NewFromFloat(q).Round(4).String()
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
