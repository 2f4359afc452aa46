package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-mill/internal/platform/db"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	store
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, store: store{q: pool}}
}

// WithTx executes fn inside a repeatable-read transaction while holding the
// owner's advisory lock.
func (r *Repository) WithTx(ctx context.Context, owner string, fn func(context.Context, TxRepository) error) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("inventory: acquire conn: %w", err)
	}
	defer conn.Release()

	return db.WithAdvisoryLock(ctx, conn, "inventory:"+owner, func() error {
		return db.WithTx(ctx, conn, func(tx pgx.Tx) error {
			return fn(ctx, &store{q: tx})
		})
	})
}

// ListOwners returns every owner that holds at least one record.
func (r *Repository) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
SELECT owner FROM vouchers
UNION SELECT owner FROM processes
UNION SELECT owner FROM outputs
UNION SELECT owner FROM sales
ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// store implements TxRepository over a querier.
type store struct {
	q querier
}

const voucherColumns = `id::text, owner, date, material_name, code, quantity, unit_type, price_per_unit,
total_price, remarks, COALESCE(process_id::text, ''), created_at, updated_at`

func scanVoucher(row pgx.Row) (Voucher, error) {
	var v Voucher
	err := row.Scan(&v.ID, &v.Owner, &v.Date, &v.MaterialName, &v.Code, &v.Quantity, &v.UnitType,
		&v.PricePerUnit, &v.TotalPrice, &v.Remarks, &v.ProcessID, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func (s *store) ListVouchers(ctx context.Context, owner string, filter Filter) ([]Voucher, error) {
	rows, err := s.q.Query(ctx, `SELECT `+voucherColumns+` FROM vouchers
WHERE owner = $1 AND ($2::text = '' OR material_name = $2)
  AND ($3::date IS NULL OR date >= $3) AND ($4::date IS NULL OR date <= $4)
ORDER BY date, created_at, id`, owner, normalizeName(filter.Name), dateParam(filter.From), dateParam(filter.To))
	if err != nil {
		return nil, err
	}
	return collect(rows, scanVoucher)
}

func (s *store) GetVoucher(ctx context.Context, owner, id string) (Voucher, error) {
	v, err := scanVoucher(s.q.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE owner = $1 AND id::text = $2`, owner, id))
	return v, notFound(err)
}

func (s *store) InsertVoucher(ctx context.Context, v Voucher) error {
	_, err := s.q.Exec(ctx, `INSERT INTO vouchers (id, owner, date, material_name, code, quantity, unit_type,
price_per_unit, total_price, remarks, process_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, '')::uuid, $12, $13)`,
		v.ID, v.Owner, v.Date, v.MaterialName, v.Code, v.Quantity, v.UnitType, v.PricePerUnit,
		v.TotalPrice, v.Remarks, v.ProcessID, v.CreatedAt, v.UpdatedAt)
	return err
}

func (s *store) UpdateVoucher(ctx context.Context, v Voucher) error {
	tag, err := s.q.Exec(ctx, `UPDATE vouchers SET date = $3, material_name = $4, code = $5, quantity = $6,
unit_type = $7, price_per_unit = $8, total_price = $9, remarks = $10, updated_at = $11
WHERE owner = $1 AND id::text = $2`,
		v.Owner, v.ID, v.Date, v.MaterialName, v.Code, v.Quantity, v.UnitType, v.PricePerUnit,
		v.TotalPrice, v.Remarks, v.UpdatedAt)
	return affected(tag, err)
}

func (s *store) DeleteVoucher(ctx context.Context, owner, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM vouchers WHERE owner = $1 AND id::text = $2`, owner, id)
	return affected(tag, err)
}

func (s *store) DeleteVouchersByProcess(ctx context.Context, owner, processID string) error {
	_, err := s.q.Exec(ctx, `DELETE FROM vouchers WHERE owner = $1 AND process_id::text = $2`, owner, processID)
	return err
}

const processColumns = `id::text, owner, date, process_name, output_product_name, output_product_code,
total_process_output, output_unit, lines, notes, created_at, updated_at`

func scanProcess(row pgx.Row) (Process, error) {
	var p Process
	err := row.Scan(&p.ID, &p.Owner, &p.Date, &p.ProcessName, &p.OutputProductName, &p.OutputProductCode,
		&p.TotalProcessOutput, &p.OutputUnit, &p.Lines, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *store) ListProcesses(ctx context.Context, owner string, filter Filter) ([]Process, error) {
	rows, err := s.q.Query(ctx, `SELECT `+processColumns+` FROM processes
WHERE owner = $1 AND ($2::text = '' OR process_name = $2)
  AND ($3::date IS NULL OR date >= $3) AND ($4::date IS NULL OR date <= $4)
ORDER BY date, created_at, id`, owner, normalizeName(filter.Name), dateParam(filter.From), dateParam(filter.To))
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProcess)
}

func (s *store) GetProcess(ctx context.Context, owner, id string) (Process, error) {
	p, err := scanProcess(s.q.QueryRow(ctx, `SELECT `+processColumns+` FROM processes WHERE owner = $1 AND id::text = $2`, owner, id))
	return p, notFound(err)
}

func (s *store) InsertProcess(ctx context.Context, p Process) error {
	_, err := s.q.Exec(ctx, `INSERT INTO processes (id, owner, date, process_name, output_product_name,
output_product_code, total_process_output, output_unit, lines, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.Owner, p.Date, p.ProcessName, p.OutputProductName, p.OutputProductCode,
		p.TotalProcessOutput, p.OutputUnit, p.Lines, p.Notes, p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *store) UpdateProcess(ctx context.Context, p Process) error {
	tag, err := s.q.Exec(ctx, `UPDATE processes SET date = $3, process_name = $4, output_product_name = $5,
output_product_code = $6, total_process_output = $7, output_unit = $8, lines = $9, notes = $10, updated_at = $11
WHERE owner = $1 AND id::text = $2`,
		p.Owner, p.ID, p.Date, p.ProcessName, p.OutputProductName, p.OutputProductCode,
		p.TotalProcessOutput, p.OutputUnit, p.Lines, p.Notes, p.UpdatedAt)
	return affected(tag, err)
}

func (s *store) DeleteProcess(ctx context.Context, owner, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM processes WHERE owner = $1 AND id::text = $2`, owner, id)
	return affected(tag, err)
}

const outputColumns = `id::text, owner, date, product_name, product_code, process_id::text, process_name,
total_process_output, scrape_qty, scrape_unit, reduction_qty, reduction_unit, total_cost, process_charge,
quantity_produced, final_average_price, unit, notes, created_at, updated_at`

func scanOutput(row pgx.Row) (Output, error) {
	var o Output
	err := row.Scan(&o.ID, &o.Owner, &o.Date, &o.ProductName, &o.ProductCode, &o.ProcessID, &o.ProcessName,
		&o.TotalProcessOutput, &o.ScrapeQty, &o.ScrapeUnit, &o.ReductionQty, &o.ReductionUnit, &o.TotalCost,
		&o.ProcessCharge, &o.QuantityProduced, &o.FinalAveragePrice, &o.Unit, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (s *store) ListOutputs(ctx context.Context, owner string, filter Filter) ([]Output, error) {
	rows, err := s.q.Query(ctx, `SELECT `+outputColumns+` FROM outputs
WHERE owner = $1 AND ($2::text = '' OR product_name = $2)
  AND ($3::date IS NULL OR date >= $3) AND ($4::date IS NULL OR date <= $4)
ORDER BY date, created_at, id`, owner, normalizeName(filter.Name), dateParam(filter.From), dateParam(filter.To))
	if err != nil {
		return nil, err
	}
	return collect(rows, scanOutput)
}

func (s *store) GetOutput(ctx context.Context, owner, id string) (Output, error) {
	o, err := scanOutput(s.q.QueryRow(ctx, `SELECT `+outputColumns+` FROM outputs WHERE owner = $1 AND id::text = $2`, owner, id))
	return o, notFound(err)
}

func (s *store) GetOutputByProcess(ctx context.Context, owner, processID string) (Output, error) {
	o, err := scanOutput(s.q.QueryRow(ctx, `SELECT `+outputColumns+` FROM outputs WHERE owner = $1 AND process_id::text = $2`, owner, processID))
	return o, notFound(err)
}

func (s *store) InsertOutput(ctx context.Context, o Output) error {
	_, err := s.q.Exec(ctx, `INSERT INTO outputs (id, owner, date, product_name, product_code, process_id,
process_name, total_process_output, scrape_qty, scrape_unit, reduction_qty, reduction_unit, total_cost,
process_charge, quantity_produced, final_average_price, unit, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		o.ID, o.Owner, o.Date, o.ProductName, o.ProductCode, o.ProcessID, o.ProcessName, o.TotalProcessOutput,
		o.ScrapeQty, o.ScrapeUnit, o.ReductionQty, o.ReductionUnit, o.TotalCost, o.ProcessCharge,
		o.QuantityProduced, o.FinalAveragePrice, o.Unit, o.Notes, o.CreatedAt, o.UpdatedAt)
	return err
}

func (s *store) UpdateOutput(ctx context.Context, o Output) error {
	tag, err := s.q.Exec(ctx, `UPDATE outputs SET date = $3, product_name = $4, product_code = $5,
process_id = $6, process_name = $7, total_process_output = $8, scrape_qty = $9, scrape_unit = $10,
reduction_qty = $11, reduction_unit = $12, total_cost = $13, process_charge = $14, quantity_produced = $15,
final_average_price = $16, unit = $17, notes = $18, updated_at = $19
WHERE owner = $1 AND id::text = $2`,
		o.Owner, o.ID, o.Date, o.ProductName, o.ProductCode, o.ProcessID, o.ProcessName, o.TotalProcessOutput,
		o.ScrapeQty, o.ScrapeUnit, o.ReductionQty, o.ReductionUnit, o.TotalCost, o.ProcessCharge,
		o.QuantityProduced, o.FinalAveragePrice, o.Unit, o.Notes, o.UpdatedAt)
	return affected(tag, err)
}

func (s *store) DeleteOutput(ctx context.Context, owner, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM outputs WHERE owner = $1 AND id::text = $2`, owner, id)
	return affected(tag, err)
}

const saleColumns = `id::text, owner, date, product_name, client_code, quantity, sale_price, total_amount,
created_at, updated_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.Owner, &s.Date, &s.ProductName, &s.ClientCode, &s.Quantity, &s.SalePrice,
		&s.TotalAmount, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (s *store) ListSales(ctx context.Context, owner string, filter Filter) ([]Sale, error) {
	rows, err := s.q.Query(ctx, `SELECT `+saleColumns+` FROM sales
WHERE owner = $1 AND ($2::text = '' OR product_name = $2)
  AND ($3::date IS NULL OR date >= $3) AND ($4::date IS NULL OR date <= $4)
ORDER BY date, created_at, id`, owner, normalizeName(filter.Name), dateParam(filter.From), dateParam(filter.To))
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSale)
}

func (s *store) GetSale(ctx context.Context, owner, id string) (Sale, error) {
	sale, err := scanSale(s.q.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE owner = $1 AND id::text = $2`, owner, id))
	return sale, notFound(err)
}

func (s *store) InsertSale(ctx context.Context, sale Sale) error {
	_, err := s.q.Exec(ctx, `INSERT INTO sales (id, owner, date, product_name, client_code, quantity,
sale_price, total_amount, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sale.ID, sale.Owner, sale.Date, sale.ProductName, sale.ClientCode, sale.Quantity, sale.SalePrice,
		sale.TotalAmount, sale.CreatedAt, sale.UpdatedAt)
	return err
}

func (s *store) UpdateSale(ctx context.Context, sale Sale) error {
	tag, err := s.q.Exec(ctx, `UPDATE sales SET date = $3, product_name = $4, client_code = $5, quantity = $6,
sale_price = $7, total_amount = $8, updated_at = $9
WHERE owner = $1 AND id::text = $2`,
		sale.Owner, sale.ID, sale.Date, sale.ProductName, sale.ClientCode, sale.Quantity, sale.SalePrice,
		sale.TotalAmount, sale.UpdatedAt)
	return affected(tag, err)
}

func (s *store) DeleteSale(ctx context.Context, owner, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM sales WHERE owner = $1 AND id::text = $2`, owner, id)
	return affected(tag, err)
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func dateParam(t time.Time) pgtype.Date {
	return pgtype.Date{Time: t, Valid: !t.IsZero()}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
