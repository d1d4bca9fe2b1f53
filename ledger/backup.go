package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/toxnroot/trans-invoice-v3/store"
)

// Backup exports every invoice as an indented JSON array of records, each
// carrying its document id alongside the stored fields. Fields the ledger
// does not know about are exported unchanged.
func (s *Service) Backup(ctx context.Context) ([]byte, error) {
	snaps, err := s.store.List(ctx, collInvoices)
	if err != nil {
		return nil, err
	}

	records := make([]store.Fields, 0, len(snaps))
	for _, snap := range snaps {
		records = append(records, snap.Fields.Merge(store.Fields{"id": snap.Key.ID}))
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, err
	}
	s.logger.WithField("count", len(records)).Info("invoices exported")
	return data, nil
}

// Restore upserts every record of a Backup payload at its original id in a
// single batch. The numbering counter is not touched.
func (s *Service) Restore(ctx context.Context, data []byte) (int, error) {
	records, err := parseBackup(data)
	if err != nil {
		return 0, err
	}

	b := store.NewBatch(s.store)
	for _, rec := range records {
		id := rec["id"].(string)
		fields := make(store.Fields, len(rec))
		for k, v := range rec {
			if k != "id" {
				fields[k] = v
			}
		}
		b.Set(invoiceKey(id), fields)
	}
	if err := b.Commit(ctx); err != nil {
		return 0, err
	}

	s.logger.WithField("count", len(records)).Info("invoices restored")
	return len(records), nil
}

func parseBackup(data []byte) ([]store.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var records []store.Fields
	if err := dec.Decode(&records); err != nil {
		return nil, invalid("backup", "payload must be a JSON array of invoice records")
	}
	if records == nil {
		return nil, invalid("backup", "payload must be a JSON array of invoice records")
	}
	for i, rec := range records {
		if rec == nil {
			return nil, invalid(fmt.Sprintf("backup[%d]", i), "record must be an object")
		}
		id, ok := rec["id"].(string)
		if !ok || id == "" {
			return nil, invalid(fmt.Sprintf("backup[%d].id", i), "is required")
		}
	}
	return records, nil
}

// DeleteAllInvoices removes every invoice and resets the counter to zero in
// one batch. Creations racing with the purge are not detected.
func (s *Service) DeleteAllInvoices(ctx context.Context) (int, error) {
	snaps, err := s.store.List(ctx, collInvoices)
	if err != nil {
		return 0, err
	}

	b := store.NewBatch(s.store)
	for _, snap := range snaps {
		b.Delete(snap.Key)
	}
	b.Set(counterKey, store.Fields{"value": 0})
	if err := b.Commit(ctx); err != nil {
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{"count": len(snaps)}).Warn("all invoices purged")
	return len(snaps), nil
}
