package inventory

import "context"

// CreateSale records a sale that fits within the finished stock on hand.
func (s *Service) CreateSale(ctx context.Context, in SaleInput) (Outcome, error) {
	if in.Owner == "" {
		return Outcome{}, ErrNoOwner
	}
	if err := s.check(in); err != nil {
		return Outcome{}, err
	}
	now := s.clock()
	sale := saleFromInput(in)
	sale.ID = s.newID()
	sale.CreatedAt = now
	sale.UpdatedAt = now

	err := s.mutate(ctx, "sale", "create", in.Owner, in.SubmissionID, func(ctx context.Context, tx TxRepository) error {
		if err := ensureProduct(ctx, tx, in.Owner, sale.ProductName, sale.Quantity, ""); err != nil {
			return err
		}
		return tx.InsertSale(ctx, sale)
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{ID: sale.ID}, nil
}

// UpdateSale replaces a sale. The original quantity counts as available again
// when the product is unchanged.
func (s *Service) UpdateSale(ctx context.Context, id string, in SaleInput) (Outcome, error) {
	if in.Owner == "" {
		return Outcome{}, ErrNoOwner
	}
	if err := s.check(in); err != nil {
		return Outcome{}, err
	}
	err := s.mutate(ctx, "sale", "update", in.Owner, "", func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetSale(ctx, in.Owner, id)
		if err != nil {
			return err
		}
		sale := saleFromInput(in)
		sale.ID = old.ID
		sale.CreatedAt = old.CreatedAt
		sale.UpdatedAt = s.clock()
		if err := ensureProduct(ctx, tx, in.Owner, sale.ProductName, sale.Quantity, old.ID); err != nil {
			return err
		}
		return tx.UpdateSale(ctx, sale)
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{ID: id}, nil
}

// DeleteSale removes a sale, returning its quantity to finished stock.
func (s *Service) DeleteSale(ctx context.Context, owner, id string) (Outcome, error) {
	err := s.mutate(ctx, "sale", "delete", owner, "", func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetSale(ctx, owner, id); err != nil {
			return err
		}
		return tx.DeleteSale(ctx, owner, id)
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{ID: id}, nil
}

func ensureProduct(ctx context.Context, tx TxRepository, owner, name string, requested float64, excludeID string) error {
	pos, err := productPosition(ctx, tx, owner, name, excludeID)
	if err != nil {
		return err
	}
	if exceeds(requested, pos.AvailableStock) {
		return &InsufficientStockError{Name: pos.Name, Available: pos.AvailableStock, Requested: requested}
	}
	return nil
}

func saleFromInput(in SaleInput) Sale {
	return Sale{
		Owner:       in.Owner,
		Date:        in.Date,
		ProductName: normalizeName(in.ProductName),
		ClientCode:  in.ClientCode,
		Quantity:    in.Quantity,
		SalePrice:   in.SalePrice,
		TotalAmount: multiply(in.Quantity, in.SalePrice),
	}
}
