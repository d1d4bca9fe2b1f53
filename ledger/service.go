// Package ledger is the invoice ledger core: invoice numbering, deletion
// with counter reconciliation, field and line-item mutation, bulk
// backup/restore/purge, user profiles and suggestion lists. It runs on any
// store.Store and performs no authorization; callers gate role-restricted
// operations and retry on ErrConflict.
package ledger

import (
	"encoding/json"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/toxnroot/trans-invoice-v3/store"
)

const (
	collInvoices = "invoices"
	collMetadata = "metadata"
	collUsers    = "users"
	collDropdown = "dropdown"
)

var counterKey = store.Key{Collection: collMetadata, ID: "lastInvoiceNumber"}

func invoiceKey(id string) store.Key { return store.Key{Collection: collInvoices, ID: id} }
func userKey(uid string) store.Key   { return store.Key{Collection: collUsers, ID: uid} }

// ProductWriteMode selects how line-item list mutations are persisted.
type ProductWriteMode string

const (
	// ProductOverwrite writes the recomputed list back unconditionally; a
	// concurrent edit of the same list is lost.
	ProductOverwrite ProductWriteMode = "overwrite"
	// ProductCompareAndSwap commits only if the invoice is unchanged since
	// it was read, failing with ErrConflict otherwise.
	ProductCompareAndSwap ProductWriteMode = "compare-and-swap"
)

func ParseProductWriteMode(s string) (ProductWriteMode, error) {
	switch m := ProductWriteMode(s); m {
	case ProductOverwrite, ProductCompareAndSwap:
		return m, nil
	case "":
		return ProductOverwrite, nil
	}
	return "", errors.Errorf("unknown product write mode %q", s)
}

type Service struct {
	store       store.Store
	suggestions SuggestionStore
	logger      logrus.FieldLogger
	validate    *validator.Validate
	productMode ProductWriteMode
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithSuggestionStore replaces the default document-backed suggestion lists.
func WithSuggestionStore(ss SuggestionStore) Option {
	return func(s *Service) {
		s.suggestions = ss
	}
}

func WithProductWriteMode(m ProductWriteMode) Option {
	return func(s *Service) {
		s.productMode = m
	}
}

// WithClock overrides time.Now for draft dates and product ids.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(s store.Store, opts ...Option) *Service {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	svc := &Service{
		store:       s,
		logger:      discard,
		validate:    newValidator(),
		productMode: ProductOverwrite,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.suggestions == nil {
		svc.suggestions = NewDocumentSuggestions(s)
	}
	return svc
}

// Store returns the underlying document store.
func (s *Service) Store() store.Store { return s.store }

func int64Field(f store.Fields, name string) (int64, error) {
	switch v := f[name].(type) {
	case nil:
		return 0, nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		fl, err := v.Float64()
		if err != nil {
			return 0, errors.Wrapf(err, "field %s", name)
		}
		return int64(fl), nil
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	}
	return 0, errors.Errorf("field %s has type %T", name, f[name])
}
