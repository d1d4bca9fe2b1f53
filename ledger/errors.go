package ledger

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/toxnroot/trans-invoice-v3/store"
)

var (
	ErrInvoiceNotFound = errors.New("ledger: invoice not found")
	ErrProductNotFound = errors.New("ledger: product not found")
	ErrUserNotFound    = errors.New("ledger: user not found")
	ErrConflict        = errors.New("ledger: concurrent modification, retry")
	ErrInvoiceLocked   = errors.New("ledger: invoice is completed")
	ErrUnauthorized    = errors.New("ledger: unauthorized")
	ErrValidation      = errors.New("ledger: validation failed")
)

// ValidationError reports a rejected input field. It matches ErrValidation
// under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ledger: validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, store.ErrNotFound)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, store.ErrConflict)
}

// storeErr maps storage errors for key onto the ledger taxonomy.
func storeErr(err error, notFound error, key store.Key) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return errors.Wrap(notFound, key.ID)
	case errors.Is(err, store.ErrConflict):
		return errors.Wrap(ErrConflict, key.String())
	}
	return err
}
