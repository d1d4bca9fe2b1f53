package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/toxnroot/trans-invoice-v3/ledger"
)

// maxBackupSize bounds a restore upload.
const maxBackupSize = 32 << 20

type BackupHandler struct {
	svc    *ledger.Service
	logger logrus.FieldLogger
}

func NewBackupHandler(svc *ledger.Service, logger logrus.FieldLogger) *BackupHandler {
	return &BackupHandler{svc: svc, logger: logger}
}

func (h *BackupHandler) Backup(c *gin.Context) {
	data, err := h.svc.Backup(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	name := fmt.Sprintf("invoices-%s.json", nowFunc().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/json", data)
}

// Restore reads a backup file from the raw request body.
func (h *BackupHandler) Restore(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBackupSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	n, err := h.svc.Restore(c.Request.Context(), data)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{"user_id": c.GetString("userID"), "count": n}).Info("backup restored over http")
	c.JSON(http.StatusOK, gin.H{"message": "Backup restored", "restored": n})
}
