package inventory

import (
	"context"
	"log/slog"
)

// CreateOutput finalizes the costed output of a process.
func (s *Service) CreateOutput(ctx context.Context, in OutputInput) (Outcome, error) {
	if in.Owner == "" {
		return Outcome{}, ErrNoOwner
	}
	if err := s.check(in); err != nil {
		return Outcome{}, err
	}
	now := s.clock()
	output := outputFromInput(in)
	output.ID = s.newID()
	output.CreatedAt = now
	output.UpdatedAt = now

	err := s.mutate(ctx, "output", "create", in.Owner, in.SubmissionID, func(ctx context.Context, tx TxRepository) error {
		process, err := s.outputProcess(ctx, tx, in.Owner, in.ProcessID)
		if err != nil {
			return err
		}
		costOutput(&output, process)
		return tx.InsertOutput(ctx, output)
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{ID: output.ID}, nil
}

// UpdateOutput re-costs an output. When its process no longer exists the
// stored process figures are reused.
func (s *Service) UpdateOutput(ctx context.Context, id string, in OutputInput) (Outcome, error) {
	if in.Owner == "" {
		return Outcome{}, ErrNoOwner
	}
	if err := s.check(in); err != nil {
		return Outcome{}, err
	}
	out := Outcome{ID: id}
	err := s.mutate(ctx, "output", "update", in.Owner, "", func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetOutput(ctx, in.Owner, id)
		if err != nil {
			return err
		}
		output := outputFromInput(in)
		output.ID = old.ID
		output.CreatedAt = old.CreatedAt
		output.UpdatedAt = s.clock()

		if in.ProcessID == old.ProcessID {
			process, err := tx.GetProcess(ctx, in.Owner, old.ProcessID)
			switch {
			case err == nil:
				costOutput(&output, process)
			case isNotFound(err):
				output.ProductName = old.ProductName
				output.ProductCode = old.ProductCode
				output.ProcessName = old.ProcessName
				output.TotalProcessOutput = old.TotalProcessOutput
				output.TotalCost = old.TotalCost
				output.Unit = old.Unit
				priceOutput(&output)
			default:
				return err
			}
		} else {
			process, err := s.outputProcess(ctx, tx, in.Owner, in.ProcessID)
			if err != nil {
				return err
			}
			costOutput(&output, process)
		}
		if err := tx.UpdateOutput(ctx, output); err != nil {
			return err
		}
		out.Warnings, err = s.productWarnings(ctx, tx, in.Owner, old.ProductName, output.ProductName)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// DeleteOutput removes the finished-goods contribution of an output. Raw
// materials stay consumed until the process itself is deleted.
func (s *Service) DeleteOutput(ctx context.Context, owner, id string) (Outcome, error) {
	out := Outcome{ID: id}
	err := s.mutate(ctx, "output", "delete", owner, "", func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetOutput(ctx, owner, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteOutput(ctx, owner, id); err != nil {
			return err
		}
		out.Warnings, err = s.productWarnings(ctx, tx, owner, old.ProductName)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// outputProcess loads a process that does not have an output yet.
func (s *Service) outputProcess(ctx context.Context, tx TxRepository, owner, processID string) (Process, error) {
	process, err := tx.GetProcess(ctx, owner, processID)
	if isNotFound(err) {
		return Process{}, newValidationError("ProcessID", "proses tidak ditemukan")
	}
	if err != nil {
		return Process{}, err
	}
	_, err = tx.GetOutputByProcess(ctx, owner, processID)
	if err == nil {
		return Process{}, ErrOutputExists
	}
	if !isNotFound(err) {
		return Process{}, err
	}
	return process, nil
}

func outputFromInput(in OutputInput) Output {
	scrapeUnit := in.ScrapeUnit
	if scrapeUnit == "" {
		scrapeUnit = DeductionKg
	}
	reductionUnit := in.ReductionUnit
	if reductionUnit == "" {
		reductionUnit = DeductionKg
	}
	return Output{
		Owner:         in.Owner,
		Date:          in.Date,
		ProcessID:     in.ProcessID,
		ScrapeQty:     in.ScrapeQty,
		ScrapeUnit:    scrapeUnit,
		ReductionQty:  in.ReductionQty,
		ReductionUnit: reductionUnit,
		ProcessCharge: in.ProcessCharge,
		Notes:         in.Notes,
	}
}

// costOutput copies the process figures onto o and prices it.
func costOutput(o *Output, p Process) {
	o.ProcessID = p.ID
	o.ProcessName = p.ProcessName
	o.ProductName = p.OutputProductName
	o.ProductCode = p.OutputProductCode
	o.TotalProcessOutput = p.TotalProcessOutput
	o.Unit = p.OutputUnit
	o.TotalCost = ProcessTotalCost(p.Lines)
	priceOutput(o)
}

func priceOutput(o *Output) {
	o.QuantityProduced = NetQuantity(o.TotalProcessOutput, o.ScrapeQty, o.ScrapeUnit, o.ReductionQty, o.ReductionUnit)
	o.FinalAveragePrice = FinalAveragePrice(o.TotalCost, o.QuantityProduced, o.ProcessCharge)
}

// productPosition computes the position of a product as seen inside tx,
// ignoring the sale excludeID when set.
func productPosition(ctx context.Context, tx TxRepository, owner, name, excludeID string) (FinishedGood, error) {
	filter := Filter{Name: name}
	outputs, err := tx.ListOutputs(ctx, owner, filter)
	if err != nil {
		return FinishedGood{}, err
	}
	sales, err := tx.ListSales(ctx, owner, filter)
	if err != nil {
		return FinishedGood{}, err
	}
	if excludeID != "" {
		kept := sales[:0]
		for _, sale := range sales {
			if sale.ID != excludeID {
				kept = append(kept, sale)
			}
		}
		sales = kept
	}
	return FinishedGoodPosition(outputs, sales, name), nil
}

func (s *Service) productWarnings(ctx context.Context, tx TxRepository, owner string, names ...string) ([]string, error) {
	var warnings []string
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = normalizeName(name)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		pos, err := productPosition(ctx, tx, owner, name, "")
		if err != nil {
			return nil, err
		}
		if pos.Negative {
			s.logger.Warn("finished good stock negative", slog.String("owner", owner), slog.String("product", name), slog.Float64("available", pos.AvailableStock))
			warnings = append(warnings, negativeWarning(name, pos.AvailableStock))
		}
	}
	return warnings, nil
}
