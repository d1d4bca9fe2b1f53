package ledger

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/toxnroot/trans-invoice-v3/models"
	"github.com/toxnroot/trans-invoice-v3/store"
)

func invoiceFields(inv *models.Invoice) (store.Fields, error) {
	fields, err := store.EncodeFields(inv)
	if err != nil {
		return nil, err
	}
	delete(fields, "id")
	return fields, nil
}

func decodeInvoice(snap *store.Snapshot) (*models.Invoice, error) {
	var inv models.Invoice
	if err := snap.DataTo(&inv); err != nil {
		return nil, err
	}
	inv.ID = snap.Key.ID
	if inv.Products == nil {
		inv.Products = []models.Product{}
	}
	return &inv, nil
}

func readCounter(tx *store.Tx) (int64, error) {
	snap, err := tx.Get(counterKey)
	if err != nil {
		return 0, err
	}
	if !snap.Exists() {
		return 0, nil
	}
	return int64Field(snap.Fields, "value")
}

// CreateOrUpdateInvoice saves a draft when id is empty and patches the
// stored invoice otherwise.
func (s *Service) CreateOrUpdateInvoice(ctx context.Context, id string, patch models.InvoicePatch, actor string) (*models.Invoice, error) {
	if id == "" {
		return s.CreateInvoice(ctx, patch, actor)
	}
	return s.UpdateInvoice(ctx, id, patch)
}

// CreateInvoice persists a new invoice built from the draft defaults and
// patch. The next invoice number and the counter are written in the same
// transaction; a concurrent creator makes the commit fail with ErrConflict.
// Any invoiceNumber in the patch is ignored.
func (s *Service) CreateInvoice(ctx context.Context, patch models.InvoicePatch, actor string) (*models.Invoice, error) {
	patch.InvoiceNumber = nil
	if err := s.validatePatch(&patch); err != nil {
		return nil, err
	}

	inv := models.NewDraft(actor, s.now())
	patch.Apply(&inv)
	inv.RecalculateTotals()
	inv.ID = store.NewID()

	err := store.RunTransaction(ctx, s.store, func(tx *store.Tx) error {
		last, err := readCounter(tx)
		if err != nil {
			return err
		}
		inv.InvoiceNumber = last + 1

		fields, err := invoiceFields(&inv)
		if err != nil {
			return err
		}
		tx.Set(invoiceKey(inv.ID), fields)
		tx.Set(counterKey, store.Fields{"value": inv.InvoiceNumber})
		return nil
	})
	if err != nil {
		return nil, storeErr(err, ErrInvoiceNotFound, counterKey)
	}

	s.logger.WithFields(logrus.Fields{
		"invoice_id":     inv.ID,
		"invoice_number": inv.InvoiceNumber,
		"user_id":        inv.UserID,
	}).Info("invoice created")
	return &inv, nil
}

// UpdateInvoice merges the set fields of patch into the stored invoice as a
// single document write. Lock state is not checked here.
//
// A changed invoiceNumber is checked against every other invoice and moves
// the counter up when it passes it, all in the same transaction as the
// write, so creations never hand the number out again.
func (s *Service) UpdateInvoice(ctx context.Context, id string, patch models.InvoicePatch) (*models.Invoice, error) {
	key := invoiceKey(id)
	var from int64
	renumbered := false

	err := store.RunTransaction(ctx, s.store, func(tx *store.Tx) error {
		snap, err := tx.Get(key)
		if err != nil {
			return err
		}
		if !snap.Exists() {
			return errors.Wrap(ErrInvoiceNotFound, id)
		}
		if err := s.validatePatch(&patch); err != nil {
			return err
		}
		if from, err = int64Field(snap.Fields, "invoiceNumber"); err != nil {
			return err
		}

		fields, err := store.EncodeFields(patch)
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}

		renumbered = patch.InvoiceNumber != nil && *patch.InvoiceNumber != from
		if renumbered {
			if err := reserveNumber(tx, id, *patch.InvoiceNumber); err != nil {
				return err
			}
		}
		tx.Update(key, fields)
		return nil
	})
	if err != nil {
		return nil, storeErr(err, ErrInvoiceNotFound, key)
	}

	if renumbered {
		s.logger.WithFields(logrus.Fields{
			"invoice_id": id,
			"from":       from,
			"to":         *patch.InvoiceNumber,
		}).Warn("invoice number edited")
	}
	return s.GetInvoice(ctx, id)
}

// reserveNumber fails when another invoice holds number and raises the
// counter to number when it is behind. It must run before tx buffers any
// other write.
func reserveNumber(tx *store.Tx, id string, number int64) error {
	counter, err := readCounter(tx)
	if err != nil {
		return err
	}
	snaps, err := tx.List(collInvoices)
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		if snap.Key.ID == id {
			continue
		}
		n, err := int64Field(snap.Fields, "invoiceNumber")
		if err != nil {
			return err
		}
		if n == number {
			return invalid("invoiceNumber", "already assigned to another invoice")
		}
	}
	if number > counter {
		tx.Set(counterKey, store.Fields{"value": number})
	}
	return nil
}

// UpdateInvoiceStatus sets the lock and transfer flags that are present.
func (s *Service) UpdateInvoiceStatus(ctx context.Context, id string, status models.StatusUpdate) error {
	fields := store.Fields{}
	if status.IsCompleted != nil {
		fields["isCompleted"] = *status.IsCompleted
	}
	if status.IsTransfer != nil {
		fields["isTransfer"] = *status.IsTransfer
	}
	if len(fields) == 0 {
		return invalid("status", "nothing to update")
	}
	if err := store.Update(ctx, s.store, invoiceKey(id), fields); err != nil {
		return storeErr(err, ErrInvoiceNotFound, invoiceKey(id))
	}
	s.logger.WithFields(logrus.Fields{"invoice_id": id, "status": fields}).Debug("invoice status updated")
	return nil
}

func (s *Service) UpdateInvoiceNote(ctx context.Context, id, note string) error {
	err := store.Update(ctx, s.store, invoiceKey(id), store.Fields{"note": note})
	return storeErr(err, ErrInvoiceNotFound, invoiceKey(id))
}

// DeleteInvoice removes an invoice. When it holds the last assigned number
// the counter steps back by one so the number is reused; deleting any other
// invoice leaves a gap.
func (s *Service) DeleteInvoice(ctx context.Context, id string) error {
	var number, counter int64
	reclaimed := false

	err := store.RunTransaction(ctx, s.store, func(tx *store.Tx) error {
		snap, err := tx.Get(invoiceKey(id))
		if err != nil {
			return err
		}
		if !snap.Exists() {
			return errors.Wrap(ErrInvoiceNotFound, id)
		}
		if number, err = int64Field(snap.Fields, "invoiceNumber"); err != nil {
			return err
		}
		if counter, err = readCounter(tx); err != nil {
			return err
		}

		if number == counter && counter > 0 {
			tx.Set(counterKey, store.Fields{"value": counter - 1})
			reclaimed = true
		}
		tx.Delete(invoiceKey(id))
		return nil
	})
	if err != nil {
		return storeErr(err, ErrInvoiceNotFound, invoiceKey(id))
	}

	s.logger.WithFields(logrus.Fields{
		"invoice_id":     id,
		"invoice_number": number,
		"reclaimed":      reclaimed,
	}).Info("invoice deleted")
	return nil
}

func (s *Service) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	snap, err := store.Get(ctx, s.store, invoiceKey(id))
	if err != nil {
		return nil, storeErr(err, ErrInvoiceNotFound, invoiceKey(id))
	}
	return decodeInvoice(snap)
}

// ListInvoices returns invoices newest number first. A non-empty query keeps
// invoices whose customer name contains it (case-insensitive) or whose
// number contains it.
func (s *Service) ListInvoices(ctx context.Context, query string) ([]models.Invoice, error) {
	snaps, err := s.store.List(ctx, collInvoices)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	result := make([]models.Invoice, 0, len(snaps))
	for _, snap := range snaps {
		inv, err := decodeInvoice(snap)
		if err != nil {
			return nil, err
		}
		if inv.Matches(query) {
			result = append(result, *inv)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].InvoiceNumber > result[j].InvoiceNumber
	})
	return result, nil
}

// LastInvoiceNumber reports the counter value, 0 if none was assigned.
func (s *Service) LastInvoiceNumber(ctx context.Context) (int64, error) {
	snap, err := s.store.Read(ctx, counterKey)
	if err != nil {
		return 0, err
	}
	if !snap.Exists() {
		return 0, nil
	}
	return int64Field(snap.Fields, "value")
}

// CounterStatus pairs the numbering counter with the highest number any
// stored invoice carries. Restore leaves the counter alone, so Highest can
// run ahead of Last until the lagging numbers are used up or purged.
type CounterStatus struct {
	Last    int64 `json:"lastInvoiceNumber"`
	Highest int64 `json:"highestInvoiceNumber"`
}

// Behind reports whether new invoices could be handed a number that is
// already stored.
func (c CounterStatus) Behind() bool { return c.Highest > c.Last }

func (s *Service) Counter(ctx context.Context) (CounterStatus, error) {
	last, err := s.LastInvoiceNumber(ctx)
	if err != nil {
		return CounterStatus{}, err
	}
	invoices, err := s.ListInvoices(ctx, "")
	if err != nil {
		return CounterStatus{}, err
	}
	status := CounterStatus{Last: last}
	for _, inv := range invoices {
		if inv.InvoiceNumber > status.Highest {
			status.Highest = inv.InvoiceNumber
		}
	}
	return status, nil
}
