package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRawMaterialPositionIgnoresConsumptionInAverage(t *testing.T) {
	vouchers := []Voucher{
		{ID: "1", MaterialName: "Gula", Code: "GL", Quantity: 10, UnitType: "kg", PricePerUnit: 100},
		{ID: "2", MaterialName: "Gula ", Quantity: 30, PricePerUnit: 120},
		{ID: "3", MaterialName: "Gula", Quantity: -15, PricePerUnit: 999},
		{ID: "4", MaterialName: "Garam", Quantity: 5, PricePerUnit: 1},
	}

	pos := RawMaterialPosition(vouchers, "Gula")
	require.Equal(t, "GL", pos.Code)
	require.Equal(t, "kg", pos.Unit)
	require.InDelta(t, 25, pos.AvailableStock, 0.0001)
	require.InDelta(t, 115, pos.AveragePrice, 0.0001)
	require.InDelta(t, 40, pos.TotalPurchased, 0.0001)
	require.InDelta(t, 15, pos.TotalConsumed, 0.0001)
	require.False(t, pos.Negative)
}

func TestRawMaterialPositionWithoutInflow(t *testing.T) {
	pos := RawMaterialPosition([]Voucher{{MaterialName: "Gula", Quantity: -4, PricePerUnit: 10}}, "Gula")
	require.InDelta(t, -4, pos.AvailableStock, 0.0001)
	require.Zero(t, pos.AveragePrice)
	require.True(t, pos.Negative)
}

func TestRawMaterialPositionsSortedByName(t *testing.T) {
	positions := RawMaterialPositions([]Voucher{
		{MaterialName: "Tepung", Quantity: 1},
		{MaterialName: "Air", Quantity: 1},
		{MaterialName: "Gula", Quantity: 1},
	})
	require.Len(t, positions, 3)
	require.Equal(t, "Air", positions[0].Name)
	require.Equal(t, "Gula", positions[1].Name)
	require.Equal(t, "Tepung", positions[2].Name)
}

func TestFinishedGoodPositionWeightsPositiveBatches(t *testing.T) {
	outputs := []Output{
		{ProductName: "Sirup", ProductCode: "SR", Unit: "kg", QuantityProduced: 10, FinalAveragePrice: 20},
		{ProductName: "Sirup", QuantityProduced: 30, FinalAveragePrice: 24},
		{ProductName: "Sirup", QuantityProduced: -5, FinalAveragePrice: 0},
		{ProductName: "Kecap", QuantityProduced: 100, FinalAveragePrice: 1},
	}
	sales := []Sale{
		{ProductName: "Sirup", Quantity: 12},
		{ProductName: "Kecap", Quantity: 3},
	}

	pos := FinishedGoodPosition(outputs, sales, "Sirup")
	require.Equal(t, "SR", pos.Code)
	require.Equal(t, "kg", pos.QuantityType)
	require.InDelta(t, 23, pos.AvailableStock, 0.0001)
	require.InDelta(t, 23, pos.AveragePrice, 0.0001)
}

func TestFinishedGoodPositionsIncludeSoldOnlyProducts(t *testing.T) {
	positions := FinishedGoodPositions(nil, []Sale{{ProductName: "Sirup", Quantity: 2}})
	require.Len(t, positions, 1)
	require.InDelta(t, -2, positions[0].AvailableStock, 0.0001)
	require.True(t, positions[0].Negative)
	require.Zero(t, positions[0].AveragePrice)
}

func TestNetQuantityAndFinalPrice(t *testing.T) {
	net := NetQuantity(100, 5, DeductionKg, 10, DeductionPercent)
	require.InDelta(t, 85, net, 0.0001)
	require.InDelta(t, 13.76, FinalAveragePrice(1000, net, 2), 0.0001)

	require.InDelta(t, 70, NetQuantity(100, 10, DeductionPercent, 20, DeductionPercent), 0.0001)
	require.InDelta(t, -5, NetQuantity(10, 10, DeductionKg, 5, DeductionKg), 0.0001)
}

func TestFinalAveragePriceZeroWhenNothingProduced(t *testing.T) {
	require.Zero(t, FinalAveragePrice(1000, 0, 2))
	require.Zero(t, FinalAveragePrice(1000, -3, 2))
}

func TestProcessTotalCost(t *testing.T) {
	cost := ProcessTotalCost([]ProcessLine{
		{MaterialName: "Gula", Quantity: 3, Rate: 10.005},
		{MaterialName: "Air", Quantity: 2, Rate: 1},
	})
	require.InDelta(t, 32.015, cost, 1e-9)
}

func TestAmountsKeepFullPrecision(t *testing.T) {
	vouchers := []Voucher{
		{MaterialName: "Gula", Quantity: 1, PricePerUnit: 10},
		{MaterialName: "Gula", Quantity: 2, PricePerUnit: 10.5},
	}
	pos := RawMaterialPosition(vouchers, "Gula")
	require.InDelta(t, 31.0/3, pos.AveragePrice, 1e-9)

	require.InDelta(t, 0.999, multiply(3, 0.333), 1e-12)
	require.InDelta(t, 10.005*3, ProcessTotalCost([]ProcessLine{{Quantity: 3, Rate: 10.005}}), 1e-9)
}
