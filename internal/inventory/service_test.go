package inventory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-mill/internal/shared"
)

type memoryState struct {
	vouchers  map[string]Voucher
	processes map[string]Process
	outputs   map[string]Output
	sales     map[string]Sale
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		vouchers:  make(map[string]Voucher, len(s.vouchers)),
		processes: make(map[string]Process, len(s.processes)),
		outputs:   make(map[string]Output, len(s.outputs)),
		sales:     make(map[string]Sale, len(s.sales)),
	}
	for k, v := range s.vouchers {
		out.vouchers[k] = v
	}
	for k, p := range s.processes {
		p.Lines = append([]ProcessLine(nil), p.Lines...)
		out.processes[k] = p
	}
	for k, o := range s.outputs {
		out.outputs[k] = o
	}
	for k, sale := range s.sales {
		out.sales[k] = sale
	}
	return out
}

// memoryRepo commits a transaction's writes only when fn succeeds.
type memoryRepo struct {
	mu    sync.Mutex
	state memoryState
	fail  error
}

type memoryTx struct {
	state *memoryState
	fail  error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: memoryState{}.clone()}
}

func (r *memoryRepo) WithTx(ctx context.Context, owner string, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	working := r.state.clone()
	if err := fn(ctx, &memoryTx{state: &working, fail: r.fail}); err != nil {
		return err
	}
	r.state = working
	return nil
}

func (r *memoryRepo) reader() *memoryTx {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.state.clone()
	return &memoryTx{state: &snapshot}
}

func (r *memoryRepo) ListOwners(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owners := make(map[string]struct{})
	for _, v := range r.state.vouchers {
		owners[v.Owner] = struct{}{}
	}
	for _, o := range r.state.outputs {
		owners[o.Owner] = struct{}{}
	}
	for _, s := range r.state.sales {
		owners[s.Owner] = struct{}{}
	}
	return sortedKeys(owners), nil
}

func (r *memoryRepo) ListVouchers(ctx context.Context, owner string, filter Filter) ([]Voucher, error) {
	return r.reader().ListVouchers(ctx, owner, filter)
}

func (r *memoryRepo) ListProcesses(ctx context.Context, owner string, filter Filter) ([]Process, error) {
	return r.reader().ListProcesses(ctx, owner, filter)
}

func (r *memoryRepo) ListOutputs(ctx context.Context, owner string, filter Filter) ([]Output, error) {
	return r.reader().ListOutputs(ctx, owner, filter)
}

func (r *memoryRepo) ListSales(ctx context.Context, owner string, filter Filter) ([]Sale, error) {
	return r.reader().ListSales(ctx, owner, filter)
}

func (r *memoryRepo) GetVoucher(ctx context.Context, owner, id string) (Voucher, error) {
	return r.reader().GetVoucher(ctx, owner, id)
}

func (r *memoryRepo) GetProcess(ctx context.Context, owner, id string) (Process, error) {
	return r.reader().GetProcess(ctx, owner, id)
}

func (r *memoryRepo) GetOutput(ctx context.Context, owner, id string) (Output, error) {
	return r.reader().GetOutput(ctx, owner, id)
}

func (r *memoryRepo) GetSale(ctx context.Context, owner, id string) (Sale, error) {
	return r.reader().GetSale(ctx, owner, id)
}

func (tx *memoryTx) ListVouchers(_ context.Context, owner string, filter Filter) ([]Voucher, error) {
	var out []Voucher
	for _, v := range tx.state.vouchers {
		if v.Owner == owner && filter.Matches(v.MaterialName, v.Date) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) || (out[i].Date.Equal(out[j].Date) && out[i].ID < out[j].ID) })
	return out, nil
}

func (tx *memoryTx) ListProcesses(_ context.Context, owner string, filter Filter) ([]Process, error) {
	var out []Process
	for _, p := range tx.state.processes {
		if p.Owner == owner && filter.Matches(p.ProcessName, p.Date) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memoryTx) ListOutputs(_ context.Context, owner string, filter Filter) ([]Output, error) {
	var out []Output
	for _, o := range tx.state.outputs {
		if o.Owner == owner && filter.Matches(o.ProductName, o.Date) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memoryTx) ListSales(_ context.Context, owner string, filter Filter) ([]Sale, error) {
	var out []Sale
	for _, s := range tx.state.sales {
		if s.Owner == owner && filter.Matches(s.ProductName, s.Date) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memoryTx) GetVoucher(_ context.Context, owner, id string) (Voucher, error) {
	v, ok := tx.state.vouchers[id]
	if !ok || v.Owner != owner {
		return Voucher{}, ErrNotFound
	}
	return v, nil
}

func (tx *memoryTx) GetProcess(_ context.Context, owner, id string) (Process, error) {
	p, ok := tx.state.processes[id]
	if !ok || p.Owner != owner {
		return Process{}, ErrNotFound
	}
	return p, nil
}

func (tx *memoryTx) GetOutput(_ context.Context, owner, id string) (Output, error) {
	o, ok := tx.state.outputs[id]
	if !ok || o.Owner != owner {
		return Output{}, ErrNotFound
	}
	return o, nil
}

func (tx *memoryTx) GetSale(_ context.Context, owner, id string) (Sale, error) {
	s, ok := tx.state.sales[id]
	if !ok || s.Owner != owner {
		return Sale{}, ErrNotFound
	}
	return s, nil
}

func (tx *memoryTx) GetOutputByProcess(_ context.Context, owner, processID string) (Output, error) {
	for _, o := range tx.state.outputs {
		if o.Owner == owner && o.ProcessID == processID {
			return o, nil
		}
	}
	return Output{}, ErrNotFound
}

func (tx *memoryTx) InsertVoucher(_ context.Context, v Voucher) error {
	if tx.fail != nil {
		return tx.fail
	}
	tx.state.vouchers[v.ID] = v
	return nil
}

func (tx *memoryTx) UpdateVoucher(ctx context.Context, v Voucher) error {
	if _, err := tx.GetVoucher(ctx, v.Owner, v.ID); err != nil {
		return err
	}
	tx.state.vouchers[v.ID] = v
	return nil
}

func (tx *memoryTx) DeleteVoucher(ctx context.Context, owner, id string) error {
	if _, err := tx.GetVoucher(ctx, owner, id); err != nil {
		return err
	}
	delete(tx.state.vouchers, id)
	return nil
}

func (tx *memoryTx) DeleteVouchersByProcess(_ context.Context, owner, processID string) error {
	for id, v := range tx.state.vouchers {
		if v.Owner == owner && v.ProcessID == processID {
			delete(tx.state.vouchers, id)
		}
	}
	return nil
}

func (tx *memoryTx) InsertProcess(_ context.Context, p Process) error {
	tx.state.processes[p.ID] = p
	return nil
}

func (tx *memoryTx) UpdateProcess(ctx context.Context, p Process) error {
	if _, err := tx.GetProcess(ctx, p.Owner, p.ID); err != nil {
		return err
	}
	tx.state.processes[p.ID] = p
	return nil
}

func (tx *memoryTx) DeleteProcess(ctx context.Context, owner, id string) error {
	if _, err := tx.GetProcess(ctx, owner, id); err != nil {
		return err
	}
	delete(tx.state.processes, id)
	return nil
}

func (tx *memoryTx) InsertOutput(_ context.Context, o Output) error {
	tx.state.outputs[o.ID] = o
	return nil
}

func (tx *memoryTx) UpdateOutput(ctx context.Context, o Output) error {
	if _, err := tx.GetOutput(ctx, o.Owner, o.ID); err != nil {
		return err
	}
	tx.state.outputs[o.ID] = o
	return nil
}

func (tx *memoryTx) DeleteOutput(ctx context.Context, owner, id string) error {
	if _, err := tx.GetOutput(ctx, owner, id); err != nil {
		return err
	}
	delete(tx.state.outputs, id)
	return nil
}

func (tx *memoryTx) InsertSale(_ context.Context, s Sale) error {
	tx.state.sales[s.ID] = s
	return nil
}

func (tx *memoryTx) UpdateSale(ctx context.Context, s Sale) error {
	if _, err := tx.GetSale(ctx, s.Owner, s.ID); err != nil {
		return err
	}
	tx.state.sales[s.ID] = s
	return nil
}

func (tx *memoryTx) DeleteSale(ctx context.Context, owner, id string) error {
	if _, err := tx.GetSale(ctx, owner, id); err != nil {
		return err
	}
	delete(tx.state.sales, id)
	return nil
}

type memoryIdempotency struct {
	keys map[string]struct{}
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	if _, ok := m.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = struct{}{}
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

type recordedMutation struct {
	entity, action string
	failed         bool
}

type recorderStub struct {
	calls []recordedMutation
}

func (r *recorderStub) RecordMutation(entity, action string, err error) {
	r.calls = append(r.calls, recordedMutation{entity: entity, action: action, failed: err != nil})
}

const owner = "budi"

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	return NewService(repo, nil, nil, ServiceConfig{}), repo
}

func purchase(t *testing.T, svc *Service, name string, qty, price float64) string {
	t.Helper()
	out, err := svc.CreateVoucher(context.Background(), VoucherInput{
		Owner: owner, Date: day(1), MaterialName: name, Quantity: qty, UnitType: "kg", PricePerUnit: price,
	})
	require.NoError(t, err)
	return out.ID
}

func produce(t *testing.T, svc *Service, product string, total float64, lines ...ProcessLineInput) string {
	t.Helper()
	out, err := svc.CreateProcess(context.Background(), ProcessInput{
		Owner: owner, Date: day(2), ProcessName: "Giling " + product, OutputProductName: product,
		TotalProcessOutput: total, OutputUnit: "kg", Lines: lines,
	})
	require.NoError(t, err)
	return out.ID
}

func finalize(t *testing.T, svc *Service, processID string) string {
	t.Helper()
	out, err := svc.CreateOutput(context.Background(), OutputInput{Owner: owner, Date: day(3), ProcessID: processID})
	require.NoError(t, err)
	return out.ID
}

func rawStock(t *testing.T, svc *Service, name string) RawMaterialStock {
	t.Helper()
	items, err := svc.RawMaterials(context.Background(), owner)
	require.NoError(t, err)
	for _, item := range items {
		if item.Name == name {
			return item
		}
	}
	return RawMaterialStock{Name: name}
}

func finishedStock(t *testing.T, svc *Service, name string) FinishedGood {
	t.Helper()
	items, err := svc.FinishedGoods(context.Background(), owner)
	require.NoError(t, err)
	for _, item := range items {
		if item.Name == name {
			return item
		}
	}
	return FinishedGood{Name: name}
}

func TestVoucherPurchasesWeightAveragePrice(t *testing.T) {
	svc, _ := newTestService(t)
	purchase(t, svc, "Gula", 100, 10)
	purchase(t, svc, " Gula ", 50, 13)

	stock := rawStock(t, svc, "Gula")
	require.InDelta(t, 150, stock.AvailableStock, 0.0001)
	require.InDelta(t, 11, stock.AveragePrice, 0.0001)
	require.InDelta(t, 150, stock.TotalPurchased, 0.0001)
}

func TestProcessConsumesRawMaterialAtAveragePrice(t *testing.T) {
	svc, _ := newTestService(t)
	purchase(t, svc, "Gula", 100, 10)

	id := produce(t, svc, "Sirup", 50, ProcessLineInput{MaterialName: "Gula", Ratio: 80})

	require.InDelta(t, 60, rawStock(t, svc, "Gula").AvailableStock, 0.0001)
	process, err := svc.GetProcess(context.Background(), owner, id)
	require.NoError(t, err)
	require.Len(t, process.Lines, 1)
	require.InDelta(t, 40, process.Lines[0].Quantity, 0.0001)
	require.InDelta(t, 10, process.Lines[0].Rate, 0.0001)
	require.Equal(t, "kg", process.Lines[0].Unit)

	vouchers, err := svc.ListVouchers(context.Background(), owner, Filter{Name: "Gula"})
	require.NoError(t, err)
	require.Len(t, vouchers, 2)
	linked := 0
	for _, v := range vouchers {
		if v.Linked() {
			linked++
			require.Equal(t, id, v.ProcessID)
			require.InDelta(t, -40, v.Quantity, 0.0001)
		}
	}
	require.Equal(t, 1, linked)
}

func TestProcessRejectsConsumptionBeyondStock(t *testing.T) {
	svc, _ := newTestService(t)
	purchase(t, svc, "Gula", 100, 10)

	_, err := svc.CreateProcess(context.Background(), ProcessInput{
		Owner: owner, Date: day(2), ProcessName: "Giling", OutputProductName: "Sirup",
		TotalProcessOutput: 120, OutputUnit: "kg",
		Lines: []ProcessLineInput{
			{MaterialName: "Gula", Quantity: 70},
			{MaterialName: "Gula", Quantity: 50},
		},
	})
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.InDelta(t, 100, stockErr.Available, 0.0001)
	require.InDelta(t, 120, stockErr.Requested, 0.0001)

	require.InDelta(t, 100, rawStock(t, svc, "Gula").AvailableStock, 0.0001)
	processes, err := svc.ListProcesses(context.Background(), owner, Filter{})
	require.NoError(t, err)
	require.Empty(t, processes)
}

func TestUpdateProcessValidatesAgainstRestoredStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	purchase(t, svc, "Gula", 100, 10)
	id := produce(t, svc, "Sirup", 80, ProcessLineInput{MaterialName: "Gula", Quantity: 80})

	in := ProcessInput{
		Owner: owner, Date: day(2), ProcessName: "Giling", OutputProductName: "Sirup",
		TotalProcessOutput: 100, OutputUnit: "kg",
		Lines: []ProcessLineInput{{MaterialName: "Gula", Quantity: 100}},
	}
	_, err := svc.UpdateProcess(ctx, id, in)
	require.NoError(t, err)
	require.InDelta(t, 0, rawStock(t, svc, "Gula").AvailableStock, 0.0001)

	in.Lines[0].Quantity = 101
	_, err = svc.UpdateProcess(ctx, id, in)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.InDelta(t, 100, stockErr.Available, 0.0001)
	require.InDelta(t, 0, rawStock(t, svc, "Gula").AvailableStock, 0.0001)
}

func TestNoOpProcessEditLeavesStockUnchanged(t *testing.T) {
	svc, _ := newTestService(t)
	purchase(t, svc, "Gula", 100, 10)
	purchase(t, svc, "Air", 40, 1)
	id := produce(t, svc, "Sirup", 100,
		ProcessLineInput{MaterialName: "Gula", Quantity: 60},
		ProcessLineInput{MaterialName: "Air", Quantity: 40},
	)
	before, err := svc.Snapshot(context.Background(), owner)
	require.NoError(t, err)

	process, err := svc.GetProcess(context.Background(), owner, id)
	require.NoError(t, err)
	in := ProcessInput{
		Owner: owner, Date: process.Date, ProcessName: process.ProcessName,
		OutputProductName: process.OutputProductName, TotalProcessOutput: process.TotalProcessOutput,
		OutputUnit: process.OutputUnit,
	}
	for _, l := range process.Lines {
		in.Lines = append(in.Lines, ProcessLineInput{MaterialName: l.MaterialName, Quantity: l.Quantity, Ratio: l.Ratio})
	}
	_, err = svc.UpdateProcess(context.Background(), id, in)
	require.NoError(t, err)

	after, err := svc.Snapshot(context.Background(), owner)
	require.NoError(t, err)
	require.Equal(t, before.RawMaterials, after.RawMaterials)
	require.Equal(t, before.FinishedGoods, after.FinishedGoods)
}

func TestDeleteProcessRestoresRawMaterialAndKeepsOutput(t *testing.T) {
	svc, _ := newTestService(t)
	purchase(t, svc, "Gula", 100, 10)
	id := produce(t, svc, "Sirup", 50, ProcessLineInput{MaterialName: "Gula", Quantity: 50})
	finalize(t, svc, id)

	_, err := svc.DeleteProcess(context.Background(), owner, id)
	require.NoError(t, err)

	require.InDelta(t, 100, rawStock(t, svc, "Gula").AvailableStock, 0.0001)
	require.InDelta(t, 50, finishedStock(t, svc, "Sirup").AvailableStock, 0.0001)

	_, err = svc.DeleteProcess(context.Background(), owner, id)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOutputCostingWithScrapeAndReduction(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	purchase(t, svc, "Gula", 100, 10)
	processID := produce(t, svc, "Sirup", 100, ProcessLineInput{MaterialName: "Gula", Quantity: 100})

	res, err := svc.CreateOutput(ctx, OutputInput{
		Owner: owner, Date: day(3), ProcessID: processID,
		ScrapeQty: 5, ScrapeUnit: DeductionKg,
		ReductionQty: 10, ReductionUnit: DeductionPercent,
		ProcessCharge: 2,
	})
	require.NoError(t, err)

	output, err := svc.GetOutput(ctx, owner, res.ID)
	require.NoError(t, err)
	require.InDelta(t, 1000, output.TotalCost, 0.0001)
	require.InDelta(t, 85, output.QuantityProduced, 0.0001)
	require.InDelta(t, 13.76, output.FinalAveragePrice, 0.0001)
	require.Equal(t, "Sirup", output.ProductName)

	stock := finishedStock(t, svc, "Sirup")
	require.InDelta(t, 85, stock.AvailableStock, 0.0001)
	require.InDelta(t, 13.76, stock.AveragePrice, 0.0001)
}

func TestOutputOnePerProcess(t *testing.T) {
	svc, _ := newTestService(t)
	purchase(t, svc, "Gula", 100, 10)
	processID := produce(t, svc, "Sirup", 50, ProcessLineInput{MaterialName: "Gula", Quantity: 50})
	finalize(t, svc, processID)

	_, err := svc.CreateOutput(context.Background(), OutputInput{Owner: owner, Date: day(4), ProcessID: processID})
	require.ErrorIs(t, err, ErrOutputExists)
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.CreateOutput(context.Background(), OutputInput{Owner: owner, Date: day(4), ProcessID: "missing"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "ProcessID")
}

func TestUpdateProcessRecostsOutput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	purchase(t, svc, "Gula", 100, 10)
	processID := produce(t, svc, "Sirup", 50, ProcessLineInput{MaterialName: "Gula", Quantity: 50})
	res, err := svc.CreateOutput(ctx, OutputInput{
		Owner: owner, Date: day(3), ProcessID: processID, ReductionQty: 10, ReductionUnit: DeductionPercent,
	})
	require.NoError(t, err)

	_, err = svc.UpdateProcess(ctx, processID, ProcessInput{
		Owner: owner, Date: day(2), ProcessName: "Giling", OutputProductName: "Sirup",
		TotalProcessOutput: 200, OutputUnit: "kg",
		Lines: []ProcessLineInput{{MaterialName: "Gula", Quantity: 100}},
	})
	require.NoError(t, err)

	output, err := svc.GetOutput(ctx, owner, res.ID)
	require.NoError(t, err)
	require.InDelta(t, 200, output.TotalProcessOutput, 0.0001)
	require.InDelta(t, 180, output.QuantityProduced, 0.0001)
	require.InDelta(t, 1000, output.TotalCost, 0.0001)
	require.InDelta(t, 5.56, output.FinalAveragePrice, 0.0001)
}

func TestDeleteOutputKeepsRawConsumption(t *testing.T) {
	svc, _ := newTestService(t)
	purchase(t, svc, "Gula", 100, 10)
	processID := produce(t, svc, "Sirup", 50, ProcessLineInput{MaterialName: "Gula", Quantity: 50})
	outputID := finalize(t, svc, processID)

	_, err := svc.DeleteOutput(context.Background(), owner, outputID)
	require.NoError(t, err)

	require.InDelta(t, 50, rawStock(t, svc, "Gula").AvailableStock, 0.0001)
	require.InDelta(t, 0, finishedStock(t, svc, "Sirup").AvailableStock, 0.0001)
}

func TestDeleteOutputAfterSaleWarnsNegative(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	purchase(t, svc, "Gula", 100, 10)
	processID := produce(t, svc, "Sirup", 20, ProcessLineInput{MaterialName: "Gula", Quantity: 20})
	outputID := finalize(t, svc, processID)
	_, err := svc.CreateSale(ctx, SaleInput{Owner: owner, Date: day(4), ProductName: "Sirup", ClientCode: "C-01", Quantity: 5, SalePrice: 30})
	require.NoError(t, err)

	res, err := svc.DeleteOutput(ctx, owner, outputID)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)

	stock := finishedStock(t, svc, "Sirup")
	require.True(t, stock.Negative)
	require.InDelta(t, -5, stock.AvailableStock, 0.0001)
}

func TestSaleEditAddsBackOriginalQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	purchase(t, svc, "Gula", 100, 10)
	finalize(t, svc, produce(t, svc, "Sirup", 20, ProcessLineInput{MaterialName: "Gula", Quantity: 20}))

	res, err := svc.CreateSale(ctx, SaleInput{Owner: owner, Date: day(4), ProductName: "Sirup", ClientCode: "C-01", Quantity: 10, SalePrice: 30})
	require.NoError(t, err)
	require.InDelta(t, 10, finishedStock(t, svc, "Sirup").AvailableStock, 0.0001)

	in := SaleInput{Owner: owner, Date: day(4), ProductName: "Sirup", ClientCode: "C-01", Quantity: 15, SalePrice: 30}
	_, err = svc.UpdateSale(ctx, res.ID, in)
	require.NoError(t, err)
	require.InDelta(t, 5, finishedStock(t, svc, "Sirup").AvailableStock, 0.0001)

	sale, err := svc.GetSale(ctx, owner, res.ID)
	require.NoError(t, err)
	require.InDelta(t, 15, sale.Quantity, 0.0001)
	require.InDelta(t, 450, sale.TotalAmount, 0.0001)

	in.Quantity = 21
	_, err = svc.UpdateSale(ctx, res.ID, in)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.InDelta(t, 20, stockErr.Available, 0.0001)
	require.InDelta(t, 5, finishedStock(t, svc, "Sirup").AvailableStock, 0.0001)
}

func TestSaleBeyondStockRejected(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateSale(context.Background(), SaleInput{Owner: owner, Date: day(4), ProductName: "Sirup", ClientCode: "C-01", Quantity: 1, SalePrice: 30})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	sales, err := svc.ListSales(context.Background(), owner, Filter{})
	require.NoError(t, err)
	require.Empty(t, sales)
}

func TestDeleteSaleReturnsStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	purchase(t, svc, "Gula", 100, 10)
	finalize(t, svc, produce(t, svc, "Sirup", 20, ProcessLineInput{MaterialName: "Gula", Quantity: 20}))
	res, err := svc.CreateSale(ctx, SaleInput{Owner: owner, Date: day(4), ProductName: "Sirup", ClientCode: "C-01", Quantity: 20, SalePrice: 30})
	require.NoError(t, err)
	require.InDelta(t, 0, finishedStock(t, svc, "Sirup").AvailableStock, 0.0001)

	_, err = svc.DeleteSale(ctx, owner, res.ID)
	require.NoError(t, err)
	require.InDelta(t, 20, finishedStock(t, svc, "Sirup").AvailableStock, 0.0001)
}

func TestLinkedVoucherIsManagedByProcess(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	purchase(t, svc, "Gula", 100, 10)
	produce(t, svc, "Sirup", 50, ProcessLineInput{MaterialName: "Gula", Quantity: 50})

	vouchers, err := svc.ListVouchers(ctx, owner, Filter{})
	require.NoError(t, err)
	var linkedID string
	for _, v := range vouchers {
		if v.Linked() {
			linkedID = v.ID
		}
	}
	require.NotEmpty(t, linkedID)

	_, err = svc.DeleteVoucher(ctx, owner, linkedID)
	require.ErrorIs(t, err, ErrLinkedVoucher)
	_, err = svc.UpdateVoucher(ctx, linkedID, VoucherInput{Owner: owner, Date: day(2), MaterialName: "Gula", Quantity: -10, UnitType: "kg"})
	require.ErrorIs(t, err, ErrLinkedVoucher)
}

func TestVoucherEditMayDriveStockNegative(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := purchase(t, svc, "Gula", 100, 10)
	produce(t, svc, "Sirup", 80, ProcessLineInput{MaterialName: "Gula", Quantity: 80})

	res, err := svc.UpdateVoucher(ctx, id, VoucherInput{Owner: owner, Date: day(1), MaterialName: "Gula", Quantity: 50, UnitType: "kg", PricePerUnit: 10})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)

	stock := rawStock(t, svc, "Gula")
	require.True(t, stock.Negative)
	require.InDelta(t, -30, stock.AvailableStock, 0.0001)
}

func TestVoucherEditChangesStockByDelta(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := purchase(t, svc, "Gula", 100, 10)
	purchase(t, svc, "Gula", 20, 10)
	edit := func(qty float64) {
		t.Helper()
		_, err := svc.UpdateVoucher(ctx, id, VoucherInput{Owner: owner, Date: day(1), MaterialName: "Gula", Quantity: qty, UnitType: "kg", PricePerUnit: 10})
		require.NoError(t, err)
	}

	before := rawStock(t, svc, "Gula").AvailableStock
	edit(130)
	require.InDelta(t, before+30, rawStock(t, svc, "Gula").AvailableStock, 0.0001)

	before = rawStock(t, svc, "Gula").AvailableStock
	edit(130)
	require.InDelta(t, before, rawStock(t, svc, "Gula").AvailableStock, 0.0001)

	edit(70)
	require.InDelta(t, before-60, rawStock(t, svc, "Gula").AvailableStock, 0.0001)
}

func TestVoucherCreateDeleteReplayMatchesRemainingSum(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	quantities := []float64{40, 25, -10, 60, -5, 15}
	ids := make([]string, 0, len(quantities))
	for _, q := range quantities {
		out, err := svc.CreateVoucher(ctx, VoucherInput{Owner: owner, Date: day(1), MaterialName: "Gula", Quantity: q, UnitType: "kg", PricePerUnit: 10})
		require.NoError(t, err)
		ids = append(ids, out.ID)
	}

	remaining := map[string]float64{}
	for i, id := range ids {
		remaining[id] = quantities[i]
	}
	for _, i := range []int{1, 4, 5} {
		_, err := svc.DeleteVoucher(ctx, owner, ids[i])
		require.NoError(t, err)
		delete(remaining, ids[i])

		var want float64
		for _, q := range remaining {
			want += q
		}
		require.InDelta(t, want, rawStock(t, svc, "Gula").AvailableStock, 0.0001)
	}

	vouchers, err := svc.ListVouchers(ctx, owner, Filter{})
	require.NoError(t, err)
	require.Len(t, vouchers, 3)
	_, err = svc.GetVoucher(ctx, owner, ids[1])
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestManualConsumptionVoucherChecksStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	purchase(t, svc, "Gula", 10, 10)

	_, err := svc.CreateVoucher(ctx, VoucherInput{Owner: owner, Date: day(2), MaterialName: "Gula", Quantity: -11, UnitType: "kg"})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	_, err = svc.CreateVoucher(ctx, VoucherInput{Owner: owner, Date: day(2), MaterialName: "Gula", Quantity: -10, UnitType: "kg"})
	require.NoError(t, err)
	require.InDelta(t, 0, rawStock(t, svc, "Gula").AvailableStock, 0.0001)
}

func TestRatioOutsideToleranceWarns(t *testing.T) {
	svc, _ := newTestService(t)
	purchase(t, svc, "Gula", 100, 10)

	res, err := svc.CreateProcess(context.Background(), ProcessInput{
		Owner: owner, Date: day(2), ProcessName: "Giling", OutputProductName: "Sirup",
		TotalProcessOutput: 100, OutputUnit: "kg",
		Lines: []ProcessLineInput{{MaterialName: "Gula", Ratio: 90}},
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)

	res, err = svc.CreateProcess(context.Background(), ProcessInput{
		Owner: owner, Date: day(2), ProcessName: "Giling", OutputProductName: "Sirup",
		TotalProcessOutput: 10, OutputUnit: "kg",
		Lines: []ProcessLineInput{{MaterialName: "Gula", Quantity: 9.95}},
	})
	require.NoError(t, err)
	require.Empty(t, res.Warnings)
}

func TestMutationsRequireOwner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateVoucher(ctx, VoucherInput{Date: day(1), MaterialName: "Gula", Quantity: 1, UnitType: "kg"})
	require.ErrorIs(t, err, ErrNoOwner)
	_, err = svc.DeleteSale(ctx, "", "x")
	require.ErrorIs(t, err, ErrNoOwner)
	_, err = svc.Snapshot(ctx, "")
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestValidationErrorsCarryFields(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateSale(context.Background(), SaleInput{Owner: owner, Date: day(4), ClientCode: "C-01"})
	require.ErrorIs(t, err, shared.ErrValidation)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "ProductName")
	require.Contains(t, verr.Fields, "Quantity")

	_, err = svc.CreateProcess(context.Background(), ProcessInput{
		Owner: owner, Date: day(2), ProcessName: "Giling", OutputProductName: "Sirup",
		TotalProcessOutput: 10, OutputUnit: "kg",
		Lines: []ProcessLineInput{{MaterialName: "Gula"}},
	})
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "Lines[0].Quantity")
}

func TestOwnersAreIsolated(t *testing.T) {
	svc, _ := newTestService(t)
	purchase(t, svc, "Gula", 100, 10)

	items, err := svc.RawMaterials(context.Background(), "sari")
	require.NoError(t, err)
	require.Empty(t, items)

	_, err = svc.GetVoucher(context.Background(), "sari", "unknown")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFailedTransactionLeavesNoTrace(t *testing.T) {
	svc, repo := newTestService(t)
	purchase(t, svc, "Gula", 100, 10)
	repo.fail = errors.New("disk full")

	_, err := svc.CreateProcess(context.Background(), ProcessInput{
		Owner: owner, Date: day(2), ProcessName: "Giling", OutputProductName: "Sirup",
		TotalProcessOutput: 10, OutputUnit: "kg",
		Lines: []ProcessLineInput{{MaterialName: "Gula", Quantity: 10}},
	})
	require.Error(t, err)
	require.NotErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, "Terjadi kesalahan, silakan coba lagi", ResultFromError(err).Message)

	repo.fail = nil
	require.InDelta(t, 100, rawStock(t, svc, "Gula").AvailableStock, 0.0001)
}

func TestSubmissionIDGuardsDoubleSubmit(t *testing.T) {
	repo := newMemoryRepo()
	idem := &memoryIdempotency{keys: make(map[string]struct{})}
	recorder := &recorderStub{}
	svc := NewService(repo, nil, idem, ServiceConfig{Recorder: recorder})
	ctx := context.Background()

	in := VoucherInput{Owner: owner, Date: day(1), MaterialName: "Gula", Quantity: 10, UnitType: "kg", PricePerUnit: 5, SubmissionID: "form-1"}
	_, err := svc.CreateVoucher(ctx, in)
	require.NoError(t, err)
	_, err = svc.CreateVoucher(ctx, in)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)

	failing := VoucherInput{Owner: owner, Date: day(1), MaterialName: "Gula", Quantity: -50, UnitType: "kg", SubmissionID: "form-2"}
	_, err = svc.CreateVoucher(ctx, failing)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.NotContains(t, idem.keys, "voucher:"+owner+":form-2")

	require.Equal(t, []recordedMutation{
		{entity: "voucher", action: "create"},
		{entity: "voucher", action: "create", failed: true},
		{entity: "voucher", action: "create", failed: true},
	}, recorder.calls)

	vouchers, err := svc.ListVouchers(ctx, owner, Filter{})
	require.NoError(t, err)
	require.Len(t, vouchers, 1)
}

func TestProductLedgerThroughService(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	purchase(t, svc, "Gula", 100, 10)
	finalize(t, svc, produce(t, svc, "Sirup", 20, ProcessLineInput{MaterialName: "Gula", Quantity: 20}))
	_, err := svc.CreateSale(ctx, SaleInput{Owner: owner, Date: day(5), ProductName: "Sirup", ClientCode: "C-01", Quantity: 4, SalePrice: 30})
	require.NoError(t, err)

	ledger, err := svc.ProductLedger(ctx, owner, Filter{Name: "Sirup"})
	require.NoError(t, err)
	require.Len(t, ledger.Entries, 2)
	require.Equal(t, LedgerProduction, ledger.Entries[0].Type)
	require.Equal(t, LedgerSale, ledger.Entries[1].Type)
	require.InDelta(t, 16, ledger.Summary.AvailableStock, 0.0001)

	card, err := svc.MaterialCard(ctx, owner, Filter{Name: "Gula", From: day(2)})
	require.NoError(t, err)
	require.InDelta(t, 100, card.OpeningBalance, 0.0001)
	require.Len(t, card.Entries, 1)
	require.Equal(t, MovementOut, card.Entries[0].Type)
	require.InDelta(t, 80, card.ClosingBalance, 0.0001)
}

func TestReconcileListsOwners(t *testing.T) {
	svc, _ := newTestService(t)
	purchase(t, svc, "Gula", 100, 10)

	owners, err := svc.Owners(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{owner}, owners)

	snap, err := svc.Reconcile(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, snap.RawMaterials, 1)
	require.Zero(t, snap.NegativeCount())
}
