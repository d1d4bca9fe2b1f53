package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/toxnroot/trans-invoice-v3/config"
	"github.com/toxnroot/trans-invoice-v3/ledger"
)

// respondError writes the JSON error body for err. Unexpected errors are
// logged and reported without detail.
func respondError(c *gin.Context, logger logrus.FieldLogger, err error) {
	var ve *ledger.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field, "code": "ValidationFailed"})
	case ledger.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "ValidationFailed"})
	case errors.Is(err, ledger.ErrInvoiceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found", "code": "NotFound"})
	case errors.Is(err, ledger.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found", "code": "NotFound"})
	case errors.Is(err, ledger.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found", "code": "NotFound"})
	case ledger.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "NotFound"})
	case errors.Is(err, ledger.ErrInvoiceLocked):
		c.JSON(http.StatusConflict, gin.H{"error": "Invoice is completed and cannot be edited", "code": "InvoiceLocked"})
	case ledger.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": "Concurrent modification, please retry", "code": "Conflict"})
	case errors.Is(err, ledger.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "code": "Unauthorized"})
	default:
		config.LogError(logger, "handlers", c.HandlerName(), c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": "Internal"})
	}
}

// retryConflicts re-runs fn while it fails with a commit conflict, up to
// attempts times.
func retryConflicts(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); !ledger.IsConflict(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(i+1) * 5 * time.Millisecond):
		}
	}
	return err
}
