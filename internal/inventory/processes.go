package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

const ratioTolerance = 1

// CreateProcess records a production run and consumes its raw materials.
func (s *Service) CreateProcess(ctx context.Context, in ProcessInput) (Outcome, error) {
	if in.Owner == "" {
		return Outcome{}, ErrNoOwner
	}
	if err := s.check(in); err != nil {
		return Outcome{}, err
	}
	lines, err := normalizeLines(in.TotalProcessOutput, in.Lines)
	if err != nil {
		return Outcome{}, err
	}
	now := s.clock()
	process := processFromInput(in, lines)
	process.ID = s.newID()
	process.CreatedAt = now
	process.UpdatedAt = now

	out := Outcome{ID: process.ID}
	err = s.mutate(ctx, "process", "create", in.Owner, in.SubmissionID, func(ctx context.Context, tx TxRepository) error {
		if err := s.applyProcess(ctx, tx, &process); err != nil {
			return err
		}
		return tx.InsertProcess(ctx, process)
	})
	if err != nil {
		return Outcome{}, err
	}
	out.Warnings = s.ratioWarnings(process)
	return out, nil
}

// UpdateProcess reverses the old consumption, validates the new lines against
// the restored stock and re-costs the process output when one exists.
func (s *Service) UpdateProcess(ctx context.Context, id string, in ProcessInput) (Outcome, error) {
	if in.Owner == "" {
		return Outcome{}, ErrNoOwner
	}
	if err := s.check(in); err != nil {
		return Outcome{}, err
	}
	lines, err := normalizeLines(in.TotalProcessOutput, in.Lines)
	if err != nil {
		return Outcome{}, err
	}
	process := processFromInput(in, lines)
	out := Outcome{ID: id}
	err = s.mutate(ctx, "process", "update", in.Owner, "", func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetProcess(ctx, in.Owner, id)
		if err != nil {
			return err
		}
		process.ID = old.ID
		process.CreatedAt = old.CreatedAt
		process.UpdatedAt = s.clock()
		if err := tx.DeleteVouchersByProcess(ctx, in.Owner, old.ID); err != nil {
			return err
		}
		if err := s.applyProcess(ctx, tx, &process); err != nil {
			return err
		}
		if err := tx.UpdateProcess(ctx, process); err != nil {
			return err
		}
		output, err := tx.GetOutputByProcess(ctx, in.Owner, old.ID)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		previous := output.ProductName
		costOutput(&output, process)
		output.UpdatedAt = process.UpdatedAt
		if err := tx.UpdateOutput(ctx, output); err != nil {
			return err
		}
		out.Warnings, err = s.productWarnings(ctx, tx, in.Owner, previous, output.ProductName)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	out.Warnings = append(s.ratioWarnings(process), out.Warnings...)
	return out, nil
}

// DeleteProcess removes a process and returns its raw materials to stock. A
// finalized output of the process is kept.
func (s *Service) DeleteProcess(ctx context.Context, owner, id string) (Outcome, error) {
	err := s.mutate(ctx, "process", "delete", owner, "", func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetProcess(ctx, owner, id); err != nil {
			return err
		}
		if err := tx.DeleteVouchersByProcess(ctx, owner, id); err != nil {
			return err
		}
		return tx.DeleteProcess(ctx, owner, id)
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{ID: id}, nil
}

// applyProcess checks every material against the stock visible in tx, stamps
// the line rates and writes the consumption vouchers.
func (s *Service) applyProcess(ctx context.Context, tx TxRepository, p *Process) error {
	required := make(map[string]decimal.Decimal)
	for _, l := range p.Lines {
		required[l.MaterialName] = required[l.MaterialName].Add(decimal.NewFromFloat(l.Quantity))
	}
	positions := make(map[string]RawMaterialStock, len(required))
	for _, name := range sortedKeys(keysOf(required)) {
		pos, err := materialPosition(ctx, tx, p.Owner, name, "")
		if err != nil {
			return err
		}
		need := required[name].InexactFloat64()
		if exceeds(need, pos.AvailableStock) {
			return &InsufficientStockError{Name: name, Available: pos.AvailableStock, Requested: need}
		}
		positions[name] = pos
	}
	for i := range p.Lines {
		line := &p.Lines[i]
		pos := positions[line.MaterialName]
		line.Rate = pos.AveragePrice
		if line.Code == "" {
			line.Code = pos.Code
		}
		if line.Unit == "" {
			line.Unit = pos.Unit
		}
		voucher := Voucher{
			ID:           s.newID(),
			Owner:        p.Owner,
			Date:         p.Date,
			MaterialName: line.MaterialName,
			Code:         line.Code,
			Quantity:     -line.Quantity,
			UnitType:     line.Unit,
			PricePerUnit: line.Rate,
			TotalPrice:   multiply(-line.Quantity, line.Rate),
			Remarks:      fmt.Sprintf("Pemakaian proses %s", p.ProcessName),
			ProcessID:    p.ID,
			CreatedAt:    p.UpdatedAt,
			UpdatedAt:    p.UpdatedAt,
		}
		if err := tx.InsertVoucher(ctx, voucher); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ratioWarnings(p Process) []string {
	total := decimal.Zero
	for _, l := range p.Lines {
		total = total.Add(decimal.NewFromFloat(l.Ratio))
	}
	if total.Sub(decimal.NewFromInt(100)).Abs().LessThanOrEqual(decimal.NewFromInt(ratioTolerance)) {
		return nil
	}
	s.logger.Warn("process ratios do not sum to 100",
		slog.String("owner", p.Owner),
		slog.String("process_id", p.ID),
		slog.String("ratio_total", total.String()))
	return []string{fmt.Sprintf("total rasio bahan %s%%, seharusnya 100%%", total.Round(2).String())}
}

// normalizeLines derives the missing half of each quantity/ratio pair.
func normalizeLines(totalOutput float64, in []ProcessLineInput) ([]ProcessLine, error) {
	total := decimal.NewFromFloat(totalOutput)
	hundred := decimal.NewFromInt(100)
	lines := make([]ProcessLine, 0, len(in))
	for i, l := range in {
		qty := decimal.NewFromFloat(l.Quantity)
		ratio := decimal.NewFromFloat(l.Ratio)
		switch {
		case qty.IsZero() && ratio.IsPositive():
			qty = total.Mul(ratio).Div(hundred)
		case ratio.IsZero() && qty.IsPositive():
			ratio = qty.Div(total).Mul(hundred)
		case qty.IsZero():
			return nil, newValidationError(fmt.Sprintf("Lines[%d].Quantity", i), "isi jumlah atau rasio")
		}
		lines = append(lines, ProcessLine{
			MaterialName: normalizeName(l.MaterialName),
			Quantity:     qty.InexactFloat64(),
			Ratio:        ratio.InexactFloat64(),
			Code:         l.Code,
			Unit:         l.Unit,
		})
	}
	return lines, nil
}

func processFromInput(in ProcessInput, lines []ProcessLine) Process {
	return Process{
		Owner:              in.Owner,
		Date:               in.Date,
		ProcessName:        normalizeName(in.ProcessName),
		OutputProductName:  normalizeName(in.OutputProductName),
		OutputProductCode:  in.OutputProductCode,
		TotalProcessOutput: in.TotalProcessOutput,
		OutputUnit:         in.OutputUnit,
		Lines:              lines,
		Notes:              in.Notes,
	}
}

func keysOf(m map[string]decimal.Decimal) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}
