package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/application/documents"
)

// PurchaseHandler handles purchase receipt endpoints
type PurchaseHandler struct {
	BaseHandler
	service *documents.PurchaseService
}

// NewPurchaseHandler creates a new PurchaseHandler
func NewPurchaseHandler(service *documents.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{service: service}
}

// RegisterRoutes registers purchase receipt routes
func (h *PurchaseHandler) RegisterRoutes(rg *gin.RouterGroup) {
	receipts := rg.Group("/receipts")
	{
		receipts.POST("", h.Post)
		receipts.POST("/:id/cancel", h.Cancel)
	}
}

// ReceiptLineRequest is one product line of a purchase receipt
// @Description Receipt line with quantity and acquisition cost
type ReceiptLineRequest struct {
	ProductID    string  `json:"product_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	WarehouseID  string  `json:"warehouse_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440001"`
	Quantity     float64 `json:"quantity" binding:"required,gt=0" example:"100.0"`
	Currency     string  `json:"currency" example:"USD"`
	UnitCost     float64 `json:"unit_cost" binding:"required,gt=0" example:"25.0"`
	ExchangeRate float64 `json:"exchange_rate" binding:"gte=0" example:"17.25"`
}

// PostReceiptRequest is the request body for posting a purchase receipt
// @Description Purchase receipt to post into the stock ledger
type PostReceiptRequest struct {
	ReceiptID string               `json:"receipt_id" binding:"required" example:"PO-2024-001"`
	EntryDate string               `json:"entry_date" example:"2024-01-15"`
	Lines     []ReceiptLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// PostReceiptResponse reports the created lots and their total value
// @Description Result of posting a purchase receipt
type PostReceiptResponse struct {
	Lots       []LotResponse `json:"lots"`
	TotalValue float64       `json:"total_value" example:"43125.0"`
}

// Post godoc
// @ID           postPurchaseReceipt
// @Summary      Post a purchase receipt
// @Description  Create one stock lot per receipt line with a frozen cost basis
// @Tags         receipts
// @Accept       json
// @Produce      json
// @Param        request body PostReceiptRequest true "Receipt to post"
// @Success      201 {object} APIResponse[PostReceiptResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /receipts [post]
func (h *PurchaseHandler) Post(c *gin.Context) {
	var req PostReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var entryDate time.Time
	if req.EntryDate != "" {
		var err error
		entryDate, err = parseDateTime(req.EntryDate)
		if err != nil {
			h.BadRequest(c, "Invalid entry_date format")
			return
		}
	}

	lines := make([]documents.ReceiptLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		productID, err := uuid.Parse(l.ProductID)
		if err != nil {
			h.BadRequest(c, "Invalid product ID format")
			return
		}
		warehouseID, err := uuid.Parse(l.WarehouseID)
		if err != nil {
			h.BadRequest(c, "Invalid warehouse ID format")
			return
		}
		lines = append(lines, documents.ReceiptLine{
			ProductID:    productID,
			WarehouseID:  warehouseID,
			Quantity:     decimal.NewFromFloat(l.Quantity),
			Currency:     l.Currency,
			UnitCost:     decimal.NewFromFloat(l.UnitCost),
			ExchangeRate: decimal.NewFromFloat(l.ExchangeRate),
		})
	}

	result, err := h.service.PostReceipt(c.Request.Context(), documents.PostReceiptRequest{
		ReceiptID: req.ReceiptID,
		EntryDate: entryDate,
		Lines:     lines,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, PostReceiptResponse{
		Lots:       toLotResponses(result.Lots),
		TotalValue: result.TotalValue.InexactFloat64(),
	})
}

// Cancel godoc
// @ID           cancelPurchaseReceipt
// @Summary      Cancel a posted purchase receipt
// @Description  Unwind the receipt's lots; fails if any lot was already consumed
// @Tags         receipts
// @Produce      json
// @Param        id path string true "Receipt ID"
// @Success      204 "No Content"
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /receipts/{id}/cancel [post]
func (h *PurchaseHandler) Cancel(c *gin.Context) {
	receiptID := c.Param("id")
	if receiptID == "" {
		h.BadRequest(c, "Receipt ID is required")
		return
	}

	if err := h.service.CancelReceipt(c.Request.Context(), receiptID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
