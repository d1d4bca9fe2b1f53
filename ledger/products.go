package ledger

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/toxnroot/trans-invoice-v3/models"
	"github.com/toxnroot/trans-invoice-v3/store"
)

type productList struct {
	Products []models.Product `json:"products"`
}

func decodeProducts(snap *store.Snapshot) ([]models.Product, error) {
	var pl productList
	if err := snap.DataTo(&pl); err != nil {
		return nil, err
	}
	if pl.Products == nil {
		pl.Products = []models.Product{}
	}
	return pl.Products, nil
}

// mutateProducts reads the invoice's line items, lets fn compute the new
// list and writes the whole list back.
func (s *Service) mutateProducts(ctx context.Context, id string, fn func([]models.Product) ([]models.Product, error)) ([]models.Product, error) {
	key := invoiceKey(id)
	var next []models.Product

	if s.productMode == ProductCompareAndSwap {
		err := store.RunTransaction(ctx, s.store, func(tx *store.Tx) error {
			snap, err := tx.Get(key)
			if err != nil {
				return err
			}
			if !snap.Exists() {
				return errors.Wrap(ErrInvoiceNotFound, id)
			}
			cur, err := decodeProducts(snap)
			if err != nil {
				return err
			}
			if next, err = fn(cur); err != nil {
				return err
			}
			tx.Update(key, store.Fields{"products": next})
			return nil
		})
		if err != nil {
			return nil, storeErr(err, ErrInvoiceNotFound, key)
		}
		return next, nil
	}

	snap, err := store.Get(ctx, s.store, key)
	if err != nil {
		return nil, storeErr(err, ErrInvoiceNotFound, key)
	}
	cur, err := decodeProducts(snap)
	if err != nil {
		return nil, err
	}
	if next, err = fn(cur); err != nil {
		return nil, err
	}
	if err := store.Update(ctx, s.store, key, store.Fields{"products": next}); err != nil {
		return nil, storeErr(err, ErrInvoiceNotFound, key)
	}
	return next, nil
}

// AddProduct validates in and appends it as a new line item.
func (s *Service) AddProduct(ctx context.Context, invoiceID string, in models.ProductInput) ([]models.Product, error) {
	in, err := s.validateProduct(in)
	if err != nil {
		return nil, err
	}

	products, err := s.mutateProducts(ctx, invoiceID, func(cur []models.Product) ([]models.Product, error) {
		p := in.ToProduct(models.NextProductID(cur, s.now()))
		return append(cur, p), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"invoice_id": invoiceID, "count": len(products)}).Debug("product added")
	return products, nil
}

// UpdateProduct replaces the line item at index, keeping its id.
func (s *Service) UpdateProduct(ctx context.Context, invoiceID string, index int, in models.ProductInput) ([]models.Product, error) {
	in, err := s.validateProduct(in)
	if err != nil {
		return nil, err
	}

	return s.mutateProducts(ctx, invoiceID, func(cur []models.Product) ([]models.Product, error) {
		if index < 0 || index >= len(cur) {
			return nil, errors.Wrapf(ErrProductNotFound, "index %d", index)
		}
		next := append([]models.Product{}, cur...)
		next[index] = in.ToProduct(cur[index].ID)
		return next, nil
	})
}

// DeleteProduct removes the line item at index. An index outside the list
// leaves it unchanged.
func (s *Service) DeleteProduct(ctx context.Context, invoiceID string, index int) ([]models.Product, error) {
	return s.mutateProducts(ctx, invoiceID, func(cur []models.Product) ([]models.Product, error) {
		next := make([]models.Product, 0, len(cur))
		for i, p := range cur {
			if i != index {
				next = append(next, p)
			}
		}
		return next, nil
	})
}
