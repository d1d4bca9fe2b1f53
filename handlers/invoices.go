package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/toxnroot/trans-invoice-v3/config"
	"github.com/toxnroot/trans-invoice-v3/ledger"
	"github.com/toxnroot/trans-invoice-v3/models"
)

var nowFunc = time.Now

type InvoiceHandler struct {
	svc    *ledger.Service
	config *config.Config
	logger logrus.FieldLogger
}

func NewInvoiceHandler(svc *ledger.Service, cfg *config.Config, logger logrus.FieldLogger) *InvoiceHandler {
	return &InvoiceHandler{
		svc:    svc,
		config: cfg,
		logger: logger,
	}
}

// InvoiceResponse is an invoice with its derived totals.
type InvoiceResponse struct {
	models.Invoice
	Totals models.Totals `json:"totals"`
}

func newInvoiceResponse(inv *models.Invoice) InvoiceResponse {
	return InvoiceResponse{Invoice: *inv, Totals: inv.Totals()}
}

type UpdateNoteRequest struct {
	Note string `json:"note"`
}

// checkSavable applies the editor's save rules to the fields a request sets.
func checkSavable(p *models.InvoicePatch, creating bool) error {
	if creating && p.CustomerName == nil {
		return &ledger.ValidationError{Field: "customerName", Message: "is required"}
	}
	if p.CustomerName != nil && strings.TrimSpace(*p.CustomerName) == "" {
		return &ledger.ValidationError{Field: "customerName", Message: "is required"}
	}
	if p.Date != nil && strings.TrimSpace(*p.Date) == "" {
		return &ledger.ValidationError{Field: "date", Message: "is required"}
	}
	if (creating && p.Products == nil) || (p.Products != nil && len(*p.Products) == 0) {
		return &ledger.ValidationError{Field: "products", Message: "at least one product is required"}
	}
	return nil
}

// checkUnlocked refuses edits of a completed invoice when lock enforcement
// is on.
func (h *InvoiceHandler) checkUnlocked(c *gin.Context, id string) error {
	if !h.config.EnforceInvoiceLock {
		return nil
	}
	inv, err := h.svc.GetInvoice(c.Request.Context(), id)
	if err != nil {
		return err
	}
	if inv.IsCompleted {
		return errors.Wrap(ledger.ErrInvoiceLocked, id)
	}
	return nil
}

func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	invoices, err := h.svc.ListInvoices(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		resp = append(resp, newInvoiceResponse(&invoices[i]))
	}
	c.JSON(http.StatusOK, gin.H{"invoices": resp, "count": len(resp)})
}

func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	inv, err := h.svc.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newInvoiceResponse(inv))
}

// NewDraft returns the defaults a new invoice starts from without saving it.
func (h *InvoiceHandler) NewDraft(c *gin.Context) {
	draft := models.NewDraft(c.GetString("userID"), nowFunc())
	c.JSON(http.StatusOK, newInvoiceResponse(&draft))
}

func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req models.InvoicePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := checkSavable(&req, true); err != nil {
		respondError(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	var inv *models.Invoice
	err := retryConflicts(ctx, h.config.TxMaxAttempts, func() error {
		var err error
		inv, err = h.svc.CreateOrUpdateInvoice(ctx, "", req, c.GetString("userID"))
		return err
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, newInvoiceResponse(inv))
}

func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	id := c.Param("id")
	var req models.InvoicePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.InvoiceNumber != nil && c.GetString("role") != string(models.RoleAdmin) {
		respondError(c, h.logger, errors.Wrap(ledger.ErrUnauthorized, "only admins can renumber invoices"))
		return
	}
	if err := checkSavable(&req, false); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if req.TouchesContent() {
		if err := h.checkUnlocked(c, id); err != nil {
			respondError(c, h.logger, err)
			return
		}
	}

	inv, err := h.svc.CreateOrUpdateInvoice(c.Request.Context(), id, req, c.GetString("userID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newInvoiceResponse(inv))
}

func (h *InvoiceHandler) UpdateStatus(c *gin.Context) {
	var req models.StatusUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.UpdateInvoiceStatus(c.Request.Context(), c.Param("id"), req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Status updated"})
}

func (h *InvoiceHandler) UpdateNote(c *gin.Context) {
	id := c.Param("id")
	var req UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.checkUnlocked(c, id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.svc.UpdateInvoiceNote(c.Request.Context(), id, req.Note); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Note updated"})
}

func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	id := c.Param("id")
	if err := h.checkUnlocked(c, id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	err := retryConflicts(ctx, h.config.TxMaxAttempts, func() error {
		return h.svc.DeleteInvoice(ctx, id)
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Invoice deleted"})
}

func (h *InvoiceHandler) DeleteAllInvoices(c *gin.Context) {
	n, err := h.svc.DeleteAllInvoices(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.WithFields(logrus.Fields{"user_id": c.GetString("userID"), "count": n}).Warn("invoices purged over http")
	c.JSON(http.StatusOK, gin.H{"message": "All invoices deleted", "deleted": n})
}

// Counter reports the numbering counter for admins checking a restore.
func (h *InvoiceHandler) Counter(c *gin.Context) {
	status, err := h.svc.Counter(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"lastInvoiceNumber":    status.Last,
		"highestInvoiceNumber": status.Highest,
		"behind":               status.Behind(),
	})
}

func parseIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Product index must be an integer"})
		return 0, false
	}
	return index, true
}

func (h *InvoiceHandler) AddProduct(c *gin.Context) {
	h.mutateProducts(c, http.StatusCreated, func(id string, in models.ProductInput) ([]models.Product, error) {
		return h.svc.AddProduct(c.Request.Context(), id, in)
	}, true)
}

func (h *InvoiceHandler) UpdateProduct(c *gin.Context) {
	index, ok := parseIndex(c)
	if !ok {
		return
	}
	h.mutateProducts(c, http.StatusOK, func(id string, in models.ProductInput) ([]models.Product, error) {
		return h.svc.UpdateProduct(c.Request.Context(), id, index, in)
	}, true)
}

func (h *InvoiceHandler) DeleteProduct(c *gin.Context) {
	index, ok := parseIndex(c)
	if !ok {
		return
	}
	h.mutateProducts(c, http.StatusOK, func(id string, _ models.ProductInput) ([]models.Product, error) {
		return h.svc.DeleteProduct(c.Request.Context(), id, index)
	}, false)
}

func (h *InvoiceHandler) mutateProducts(c *gin.Context, status int, op func(string, models.ProductInput) ([]models.Product, error), withBody bool) {
	id := c.Param("id")
	var in models.ProductInput
	if withBody {
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if err := h.checkUnlocked(c, id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	var products []models.Product
	err := retryConflicts(c.Request.Context(), h.config.TxMaxAttempts, func() error {
		var err error
		products, err = op(id, in)
		return err
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(status, gin.H{"products": products})
}
