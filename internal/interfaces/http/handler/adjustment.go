package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/application/documents"
)

// AdjustmentHandler handles stock adjustment endpoints
type AdjustmentHandler struct {
	BaseHandler
	service *documents.AdjustmentService
}

// NewAdjustmentHandler creates a new AdjustmentHandler
func NewAdjustmentHandler(service *documents.AdjustmentService) *AdjustmentHandler {
	return &AdjustmentHandler{service: service}
}

// RegisterRoutes registers stock adjustment routes
func (h *AdjustmentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	adjustments := rg.Group("/adjustments")
	{
		adjustments.POST("", h.Post)
		adjustments.POST("/:id/cancel", h.Cancel)
	}
}

// AdjustmentLineRequest is one signed line of a stock adjustment.
// Positive quantities enter stock; currency and unit cost may be omitted
// to fall back to the product's last known cost. Negative quantities
// leave stock at FIFO cost.
// @Description Signed adjustment line
type AdjustmentLineRequest struct {
	ProductID    string  `json:"product_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	WarehouseID  string  `json:"warehouse_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440001"`
	Quantity     float64 `json:"quantity" binding:"required" example:"-4.0"`
	Currency     string  `json:"currency" example:"MXN"`
	UnitCost     float64 `json:"unit_cost" binding:"gte=0" example:"90.0"`
	ExchangeRate float64 `json:"exchange_rate" binding:"gte=0" example:"1.0"`
}

// PostAdjustmentRequest is the request body for posting a stock adjustment
// @Description Stock adjustment document with signed lines
type PostAdjustmentRequest struct {
	AdjustmentID string                  `json:"adjustment_id" binding:"required" example:"ADJ-2024-001"`
	EntryDate    string                  `json:"entry_date" example:"2024-01-15"`
	Lines        []AdjustmentLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// PostAdjustmentResponse reports the adjustment's stock effects
// @Description Result of posting a stock adjustment
type PostAdjustmentResponse struct {
	CreatedLots  []LotResponse         `json:"created_lots"`
	Consumptions []ConsumptionResponse `json:"consumptions"`
}

// Post godoc
// @ID           postAdjustment
// @Summary      Post a stock adjustment
// @Description  Apply signed quantity corrections; positive lines create lots, negative lines consume FIFO
// @Tags         adjustments
// @Accept       json
// @Produce      json
// @Param        request body PostAdjustmentRequest true "Adjustment to post"
// @Success      201 {object} APIResponse[PostAdjustmentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /adjustments [post]
func (h *AdjustmentHandler) Post(c *gin.Context) {
	var req PostAdjustmentRequest
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

	lines := make([]documents.AdjustmentLine, 0, len(req.Lines))
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
		lines = append(lines, documents.AdjustmentLine{
			ProductID:    productID,
			WarehouseID:  warehouseID,
			Quantity:     decimal.NewFromFloat(l.Quantity),
			Currency:     l.Currency,
			UnitCost:     decimal.NewFromFloat(l.UnitCost),
			ExchangeRate: decimal.NewFromFloat(l.ExchangeRate),
		})
	}

	result, err := h.service.PostAdjustment(c.Request.Context(), documents.PostAdjustmentRequest{
		AdjustmentID: req.AdjustmentID,
		EntryDate:    entryDate,
		Lines:        lines,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, PostAdjustmentResponse{
		CreatedLots:  toLotResponses(result.CreatedLots),
		Consumptions: toConsumptionResponses(result.Consumptions),
	})
}

// Cancel godoc
// @ID           cancelAdjustment
// @Summary      Cancel a posted stock adjustment
// @Description  Unwind the adjustment's lots and restore its consumed stock
// @Tags         adjustments
// @Produce      json
// @Param        id path string true "Adjustment ID"
// @Success      204 "No Content"
// @Failure      409 {object} ErrorResponse
// @Router       /adjustments/{id}/cancel [post]
func (h *AdjustmentHandler) Cancel(c *gin.Context) {
	adjustmentID := c.Param("id")
	if adjustmentID == "" {
		h.BadRequest(c, "Adjustment ID is required")
		return
	}

	if err := h.service.CancelAdjustment(c.Request.Context(), adjustmentID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
