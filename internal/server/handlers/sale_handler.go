package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jopa/salestracker/internal/auth"
	"github.com/jopa/salestracker/internal/service/ledger"
)

// SaleHandler records and corrects sales.
type SaleHandler struct {
	svc    *ledger.Service
	logger *zap.Logger
}

// NewSaleHandler constructs the sales HTTP adapter.
func NewSaleHandler(svc *ledger.Service, logger *zap.Logger) *SaleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SaleHandler{svc: svc, logger: logger}
}

// Create records a sale against the caller's account.
func (h *SaleHandler) Create(c *gin.Context) {
	var req ledger.SaleInput
	if !bindJSON(c, h.logger, &req) {
		return
	}
	actor, _ := auth.CurrentUser(c)

	sale, err := h.svc.RecordSale(c.Request.Context(), actor.ID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

func (h *SaleHandler) List(c *gin.Context) {
	sales, err := h.svc.ListSales(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sales)
}

func (h *SaleHandler) ByProduct(c *gin.Context) {
	productID, ok := parseID(c, "productId")
	if !ok {
		return
	}
	sales, err := h.svc.SalesByProduct(c.Request.Context(), productID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sales)
}

func (h *SaleHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ledger.SaleUpdate
	if !bindJSON(c, h.logger, &req) {
		return
	}
	sale, err := h.svc.UpdateSale(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (h *SaleHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteSale(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "sale deleted"})
}
