package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/application/documents"
)

// TransferHandler handles warehouse transfer endpoints
type TransferHandler struct {
	BaseHandler
	service *documents.TransferService
}

// NewTransferHandler creates a new TransferHandler
func NewTransferHandler(service *documents.TransferService) *TransferHandler {
	return &TransferHandler{service: service}
}

// RegisterRoutes registers warehouse transfer routes
func (h *TransferHandler) RegisterRoutes(rg *gin.RouterGroup) {
	transfers := rg.Group("/transfers")
	{
		transfers.POST("", h.Post)
		transfers.POST("/:id/cancel", h.Cancel)
	}
}

// TransferLineRequest is one product line of a warehouse transfer
// @Description Transfer line with the quantity to relocate
type TransferLineRequest struct {
	ProductID string  `json:"product_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Quantity  float64 `json:"quantity" binding:"required,gt=0" example:"10.0"`
}

// PostTransferRequest is the request body for posting a warehouse transfer
// @Description Transfer between two warehouses
type PostTransferRequest struct {
	TransferID             string                `json:"transfer_id" binding:"required" example:"TR-2024-001"`
	SourceWarehouseID      string                `json:"source_warehouse_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440001"`
	DestinationWarehouseID string                `json:"destination_warehouse_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440002"`
	Lines                  []TransferLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// PostTransferResponse reports the lots created at the destination
// @Description Result of posting a warehouse transfer
type PostTransferResponse struct {
	CreatedLots []LotResponse `json:"created_lots"`
	TotalCost   float64       `json:"total_cost" example:"400.0"`
}

// Post godoc
// @ID           postTransfer
// @Summary      Post a warehouse transfer
// @Description  Consume stock FIFO at the source and recreate it at the destination, preserving each lot's cost basis and entry date
// @Tags         transfers
// @Accept       json
// @Produce      json
// @Param        request body PostTransferRequest true "Transfer to post"
// @Success      201 {object} APIResponse[PostTransferResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /transfers [post]
func (h *TransferHandler) Post(c *gin.Context) {
	var req PostTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	sourceID, err := uuid.Parse(req.SourceWarehouseID)
	if err != nil {
		h.BadRequest(c, "Invalid source warehouse ID format")
		return
	}
	destinationID, err := uuid.Parse(req.DestinationWarehouseID)
	if err != nil {
		h.BadRequest(c, "Invalid destination warehouse ID format")
		return
	}

	lines := make([]documents.TransferLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		productID, err := uuid.Parse(l.ProductID)
		if err != nil {
			h.BadRequest(c, "Invalid product ID format")
			return
		}
		lines = append(lines, documents.TransferLine{
			ProductID: productID,
			Quantity:  decimal.NewFromFloat(l.Quantity),
		})
	}

	result, err := h.service.PostTransfer(c.Request.Context(), documents.PostTransferRequest{
		TransferID:             req.TransferID,
		SourceWarehouseID:      sourceID,
		DestinationWarehouseID: destinationID,
		Lines:                  lines,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, PostTransferResponse{
		CreatedLots: toLotResponses(result.CreatedLots),
		TotalCost:   result.TotalCost.InexactFloat64(),
	})
}

// Cancel godoc
// @ID           cancelTransfer
// @Summary      Cancel a posted warehouse transfer
// @Description  Draw down the destination lots and restore the source side; fails if destination stock was already touched
// @Tags         transfers
// @Produce      json
// @Param        id path string true "Transfer ID"
// @Success      204 "No Content"
// @Failure      409 {object} ErrorResponse
// @Router       /transfers/{id}/cancel [post]
func (h *TransferHandler) Cancel(c *gin.Context) {
	transferID := c.Param("id")
	if transferID == "" {
		h.BadRequest(c, "Transfer ID is required")
		return
	}

	if err := h.service.CancelTransfer(c.Request.Context(), transferID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
