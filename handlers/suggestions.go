package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/toxnroot/trans-invoice-v3/ledger"
	"github.com/toxnroot/trans-invoice-v3/models"
	"github.com/toxnroot/trans-invoice-v3/suggest"
)

type SuggestionHandler struct {
	svc       *ledger.Service
	completer suggest.Completer
	logger    logrus.FieldLogger
}

func NewSuggestionHandler(svc *ledger.Service, completer suggest.Completer, logger logrus.FieldLogger) *SuggestionHandler {
	if completer == nil {
		completer = suggest.SubstringFilter{}
	}
	return &SuggestionHandler{
		svc:       svc,
		completer: completer,
		logger:    logger,
	}
}

type SuggestionRequest struct {
	Value string `json:"value"`
}

func (h *SuggestionHandler) List(c *gin.Context) {
	list := models.SuggestionList(c.Param("list"))
	values, err := h.svc.GetSuggestions(c.Request.Context(), list)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list, "values": values})
}

// Complete ranks the list's values against the partial input in ?q=.
func (h *SuggestionHandler) Complete(c *gin.Context) {
	ctx := c.Request.Context()
	list := models.SuggestionList(c.Param("list"))
	values, err := h.svc.GetSuggestions(ctx, list)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	matches, err := h.completer.Complete(ctx, c.Query("q"), values)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list, "values": matches})
}

func (h *SuggestionHandler) Add(c *gin.Context) {
	var req SuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.AddSuggestion(c.Request.Context(), models.SuggestionList(c.Param("list")), req.Value); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Suggestion added"})
}

func (h *SuggestionHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteSuggestion(c.Request.Context(), models.SuggestionList(c.Param("list")), c.Query("value")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Suggestion deleted"})
}
