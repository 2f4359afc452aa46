package inventory

import (
	"strings"
	"time"
)

// DeductionUnit says how a scrape or reduction amount is interpreted.
type DeductionUnit string

const (
	// DeductionKg is an absolute quantity.
	DeductionKg DeductionUnit = "kg"
	// DeductionPercent is a percentage of the total process output.
	DeductionPercent DeductionUnit = "%"
)

// LedgerType tags finished-goods ledger entries.
type LedgerType string

const (
	// LedgerProduction is an inflow from a finalized output.
	LedgerProduction LedgerType = "Production"
	// LedgerSale is an outflow to a client.
	LedgerSale LedgerType = "Sale"
)

// MovementType tags raw-material stock card rows.
type MovementType string

const (
	// MovementIn represents an inbound movement.
	MovementIn MovementType = "IN"
	// MovementOut represents an outbound movement.
	MovementOut MovementType = "OUT"
)

// Voucher records a raw-material purchase (positive quantity) or consumption
// (negative quantity). Consumption vouchers written by a process carry its ProcessID.
type Voucher struct {
	ID           string    `json:"id"`
	Owner        string    `json:"-"`
	Date         time.Time `json:"date"`
	MaterialName string    `json:"material_name"`
	Code         string    `json:"code"`
	Quantity     float64   `json:"quantity"`
	UnitType     string    `json:"unit_type"`
	PricePerUnit float64   `json:"price_per_unit"`
	TotalPrice   float64   `json:"total_price"`
	Remarks      string    `json:"remarks"`
	ProcessID    string    `json:"process_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Linked reports whether the voucher is owned by a process.
func (v Voucher) Linked() bool {
	return v.ProcessID != ""
}

// ProcessLine is one raw material consumed by a process.
type ProcessLine struct {
	MaterialName string  `json:"material_name"`
	Quantity     float64 `json:"quantity"`
	Ratio        float64 `json:"ratio"`
	Rate         float64 `json:"rate"`
	Code         string  `json:"code"`
	Unit         string  `json:"unit"`
}

// Process is a production run converting raw materials into a finished-good batch.
type Process struct {
	ID                 string        `json:"id"`
	Owner              string        `json:"-"`
	Date               time.Time     `json:"date"`
	ProcessName        string        `json:"process_name"`
	OutputProductName  string        `json:"output_product_name"`
	OutputProductCode  string        `json:"output_product_code"`
	TotalProcessOutput float64       `json:"total_process_output"`
	OutputUnit         string        `json:"output_unit"`
	Lines              []ProcessLine `json:"lines"`
	Notes              string        `json:"notes"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Output is the finalized, costed quantity produced by a process.
type Output struct {
	ID                 string        `json:"id"`
	Owner              string        `json:"-"`
	Date               time.Time     `json:"date"`
	ProductName        string        `json:"product_name"`
	ProductCode        string        `json:"product_code"`
	ProcessID          string        `json:"process_id"`
	ProcessName        string        `json:"process_name"`
	TotalProcessOutput float64       `json:"total_process_output"`
	ScrapeQty          float64       `json:"scrape_qty"`
	ScrapeUnit         DeductionUnit `json:"scrape_unit"`
	ReductionQty       float64       `json:"reduction_qty"`
	ReductionUnit      DeductionUnit `json:"reduction_unit"`
	TotalCost          float64       `json:"total_cost"`
	ProcessCharge      float64       `json:"process_charge"`
	QuantityProduced   float64       `json:"quantity_produced"`
	FinalAveragePrice  float64       `json:"final_average_price"`
	Unit               string        `json:"unit"`
	Notes              string        `json:"notes"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Sale is a disposal of finished goods to a client.
type Sale struct {
	ID          string    `json:"id"`
	Owner       string    `json:"-"`
	Date        time.Time `json:"date"`
	ProductName string    `json:"product_name"`
	ClientCode  string    `json:"client_code"`
	Quantity    float64   `json:"quantity"`
	SalePrice   float64   `json:"sale_price"`
	TotalAmount float64   `json:"total_amount"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RawMaterialStock is the derived position of one raw material.
type RawMaterialStock struct {
	Name           string  `json:"name"`
	Code           string  `json:"code"`
	Unit           string  `json:"unit"`
	AvailableStock float64 `json:"available_stock"`
	AveragePrice   float64 `json:"average_price"`
	TotalPurchased float64 `json:"total_purchased"`
	TotalConsumed  float64 `json:"total_consumed"`
	Negative       bool    `json:"negative"`
}

// FinishedGood is the derived position of one finished product.
type FinishedGood struct {
	Name           string  `json:"name"`
	Code           string  `json:"code"`
	AvailableStock float64 `json:"available_stock"`
	AveragePrice   float64 `json:"average_price"`
	QuantityType   string  `json:"quantity_type"`
	Negative       bool    `json:"negative"`
}

// Snapshot bundles every derived position of one owner.
type Snapshot struct {
	Owner         string             `json:"owner"`
	RawMaterials  []RawMaterialStock `json:"raw_materials"`
	FinishedGoods []FinishedGood     `json:"finished_goods"`
	ComputedAt    time.Time          `json:"computed_at"`
}

// NegativeCount returns how many positions are below zero.
func (s Snapshot) NegativeCount() int {
	n := 0
	for _, m := range s.RawMaterials {
		if m.Negative {
			n++
		}
	}
	for _, g := range s.FinishedGoods {
		if g.Negative {
			n++
		}
	}
	return n
}

// LedgerEntry is a typed finished-goods movement for display.
type LedgerEntry struct {
	ID          string     `json:"id"`
	Date        time.Time  `json:"date"`
	ProductName string     `json:"product_name"`
	Type        LedgerType `json:"type"`
	ClientCode  *string    `json:"client_code"`
	Quantity    float64    `json:"quantity"`
	PricePerKg  float64    `json:"price_per_kg"`
}

// LedgerSummary totals the entries a ledger currently shows.
type LedgerSummary struct {
	TotalProduced  float64 `json:"total_produced"`
	TotalSold      float64 `json:"total_sold"`
	AvailableStock float64 `json:"available_stock"`
}

// Ledger is a filtered finished-goods ledger.
type Ledger struct {
	Entries []LedgerEntry `json:"entries"`
	Summary LedgerSummary `json:"summary"`
}

// StockCardEntry is one raw-material card row with its running balance.
type StockCardEntry struct {
	VoucherID  string       `json:"voucher_id"`
	Date       time.Time    `json:"date"`
	Type       MovementType `json:"type"`
	QtyIn      float64      `json:"qty_in"`
	QtyOut     float64      `json:"qty_out"`
	BalanceQty float64      `json:"balance_qty"`
	UnitPrice  float64      `json:"unit_price"`
	Remarks    string       `json:"remarks"`
	ProcessID  string       `json:"process_id,omitempty"`
}

// StockCard is the card of one raw material.
type StockCard struct {
	MaterialName   string           `json:"material_name"`
	OpeningBalance float64          `json:"opening_balance"`
	Entries        []StockCardEntry `json:"entries"`
	ClosingBalance float64          `json:"closing_balance"`
}

// Filter narrows list and ledger reads. Zero values mean "no constraint".
type Filter struct {
	Name string
	From time.Time
	To   time.Time
}

// Matches reports whether a record with name and date passes the filter.
// From and To are inclusive by calendar day.
func (f Filter) Matches(name string, date time.Time) bool {
	if f.Name != "" && normalizeName(name) != normalizeName(f.Name) {
		return false
	}
	if !f.From.IsZero() && date.Before(startOfDay(f.From)) {
		return false
	}
	if !f.To.IsZero() && !date.Before(startOfDay(f.To).AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// VoucherInput is the create/edit payload for a voucher.
type VoucherInput struct {
	Owner        string    `validate:"required"`
	Date         time.Time `validate:"required"`
	MaterialName string    `validate:"required,max=200"`
	Code         string    `validate:"max=50"`
	Quantity     float64   `validate:"ne=0"`
	UnitType     string    `validate:"required,max=20"`
	PricePerUnit float64   `validate:"gte=0"`
	Remarks      string    `validate:"max=500"`
	SubmissionID string
}

// ProcessLineInput is one raw-material line of a process form.
type ProcessLineInput struct {
	MaterialName string  `json:"material_name" validate:"required,max=200"`
	Quantity     float64 `json:"quantity" validate:"gte=0"`
	Ratio        float64 `json:"ratio" validate:"gte=0,lte=100"`
	Code         string  `json:"code" validate:"max=50"`
	Unit         string  `json:"unit" validate:"max=20"`
}

// ProcessInput is the create/edit payload for a process.
type ProcessInput struct {
	Owner              string             `validate:"required"`
	Date               time.Time          `validate:"required"`
	ProcessName        string             `validate:"required,max=200"`
	OutputProductName  string             `validate:"required,max=200"`
	OutputProductCode  string             `validate:"max=50"`
	TotalProcessOutput float64            `validate:"gt=0"`
	OutputUnit         string             `validate:"required,max=20"`
	Lines              []ProcessLineInput `validate:"required,min=1,dive"`
	Notes              string             `validate:"max=1000"`
	SubmissionID       string
}

// OutputInput is the create/edit payload for an output.
type OutputInput struct {
	Owner         string        `validate:"required"`
	Date          time.Time     `validate:"required"`
	ProcessID     string        `validate:"required"`
	ScrapeQty     float64       `validate:"gte=0"`
	ScrapeUnit    DeductionUnit `validate:"omitempty,oneof=kg %"`
	ReductionQty  float64       `validate:"gte=0"`
	ReductionUnit DeductionUnit `validate:"omitempty,oneof=kg %"`
	ProcessCharge float64       `validate:"gte=0"`
	Notes         string        `validate:"max=1000"`
	SubmissionID  string
}

// SaleInput is the create/edit payload for a sale.
type SaleInput struct {
	Owner        string    `validate:"required"`
	Date         time.Time `validate:"required"`
	ProductName  string    `validate:"required,max=200"`
	ClientCode   string    `validate:"required,max=50"`
	Quantity     float64   `validate:"gt=0"`
	SalePrice    float64   `validate:"gte=0"`
	SubmissionID string
}

func normalizeName(name string) string {
	return strings.TrimSpace(name)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
