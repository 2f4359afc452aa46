package inventory

import (
	"context"
	"log/slog"
)

// CreateVoucher records a purchase or a manual consumption. Consumption may not
// exceed the material currently on hand.
func (s *Service) CreateVoucher(ctx context.Context, in VoucherInput) (Outcome, error) {
	if in.Owner == "" {
		return Outcome{}, ErrNoOwner
	}
	if err := s.check(in); err != nil {
		return Outcome{}, err
	}
	now := s.clock()
	voucher := voucherFromInput(in)
	voucher.ID = s.newID()
	voucher.CreatedAt = now
	voucher.UpdatedAt = now

	err := s.mutate(ctx, "voucher", "create", in.Owner, in.SubmissionID, func(ctx context.Context, tx TxRepository) error {
		if voucher.Quantity < 0 {
			if err := ensureMaterial(ctx, tx, in.Owner, voucher.MaterialName, -voucher.Quantity, ""); err != nil {
				return err
			}
		}
		return tx.InsertVoucher(ctx, voucher)
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{ID: voucher.ID}, nil
}

// UpdateVoucher replaces a voucher. Consumption is checked against the stock
// left once the old voucher is reversed; shrinking a purchase may leave the
// material negative, which is reported as a warning.
func (s *Service) UpdateVoucher(ctx context.Context, id string, in VoucherInput) (Outcome, error) {
	if in.Owner == "" {
		return Outcome{}, ErrNoOwner
	}
	if err := s.check(in); err != nil {
		return Outcome{}, err
	}
	out := Outcome{ID: id}
	err := s.mutate(ctx, "voucher", "update", in.Owner, "", func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetVoucher(ctx, in.Owner, id)
		if err != nil {
			return err
		}
		if old.Linked() {
			return ErrLinkedVoucher
		}
		voucher := voucherFromInput(in)
		voucher.ID = old.ID
		voucher.CreatedAt = old.CreatedAt
		voucher.UpdatedAt = s.clock()
		if voucher.Quantity < 0 {
			if err := ensureMaterial(ctx, tx, in.Owner, voucher.MaterialName, -voucher.Quantity, old.ID); err != nil {
				return err
			}
		}
		if err := tx.UpdateVoucher(ctx, voucher); err != nil {
			return err
		}
		out.Warnings, err = s.materialWarnings(ctx, tx, in.Owner, old.MaterialName, voucher.MaterialName)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// DeleteVoucher removes a voucher that is not owned by a process.
func (s *Service) DeleteVoucher(ctx context.Context, owner, id string) (Outcome, error) {
	out := Outcome{ID: id}
	err := s.mutate(ctx, "voucher", "delete", owner, "", func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetVoucher(ctx, owner, id)
		if err != nil {
			return err
		}
		if old.Linked() {
			return ErrLinkedVoucher
		}
		if err := tx.DeleteVoucher(ctx, owner, id); err != nil {
			return err
		}
		out.Warnings, err = s.materialWarnings(ctx, tx, owner, old.MaterialName)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func voucherFromInput(in VoucherInput) Voucher {
	return Voucher{
		Owner:        in.Owner,
		Date:         in.Date,
		MaterialName: normalizeName(in.MaterialName),
		Code:         in.Code,
		Quantity:     in.Quantity,
		UnitType:     in.UnitType,
		PricePerUnit: in.PricePerUnit,
		TotalPrice:   multiply(in.Quantity, in.PricePerUnit),
		Remarks:      in.Remarks,
	}
}

// materialPosition computes the position of name as seen inside tx, ignoring
// the voucher excludeID when set.
func materialPosition(ctx context.Context, tx TxRepository, owner, name, excludeID string) (RawMaterialStock, error) {
	vouchers, err := tx.ListVouchers(ctx, owner, Filter{Name: name})
	if err != nil {
		return RawMaterialStock{}, err
	}
	if excludeID != "" {
		kept := vouchers[:0]
		for _, v := range vouchers {
			if v.ID != excludeID {
				kept = append(kept, v)
			}
		}
		vouchers = kept
	}
	return RawMaterialPosition(vouchers, name), nil
}

func ensureMaterial(ctx context.Context, tx TxRepository, owner, name string, requested float64, excludeID string) error {
	pos, err := materialPosition(ctx, tx, owner, name, excludeID)
	if err != nil {
		return err
	}
	if exceeds(requested, pos.AvailableStock) {
		return &InsufficientStockError{Name: pos.Name, Available: pos.AvailableStock, Requested: requested}
	}
	return nil
}

func (s *Service) materialWarnings(ctx context.Context, tx TxRepository, owner string, names ...string) ([]string, error) {
	var warnings []string
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = normalizeName(name)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		pos, err := materialPosition(ctx, tx, owner, name, "")
		if err != nil {
			return nil, err
		}
		if pos.Negative {
			s.logger.Warn("raw material stock negative", slog.String("owner", owner), slog.String("material", name), slog.Float64("available", pos.AvailableStock))
			warnings = append(warnings, negativeWarning(name, pos.AvailableStock))
		}
	}
	return warnings, nil
}
