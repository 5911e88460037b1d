package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/application/documents"
)

// SalesHandler handles sales shipment endpoints
type SalesHandler struct {
	BaseHandler
	service *documents.SalesService
}

// NewSalesHandler creates a new SalesHandler
func NewSalesHandler(service *documents.SalesService) *SalesHandler {
	return &SalesHandler{service: service}
}

// RegisterRoutes registers sales shipment routes
func (h *SalesHandler) RegisterRoutes(rg *gin.RouterGroup) {
	shipments := rg.Group("/shipments")
	{
		shipments.POST("", h.Post)
		shipments.POST("/:id/cancel", h.Cancel)
	}
}

// ShipmentLineRequest is one product line of a sales shipment
// @Description Shipment line identifying what leaves which warehouse
type ShipmentLineRequest struct {
	ProductID   string  `json:"product_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	WarehouseID string  `json:"warehouse_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440001"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0" example:"15.0"`
}

// PostShipmentRequest is the request body for posting a sales shipment
// @Description Sales shipment to post against the stock ledger
type PostShipmentRequest struct {
	ShipmentID string                `json:"shipment_id" binding:"required" example:"SH-2024-001"`
	Lines      []ShipmentLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ShipmentLineCostResponse is the cost of goods sold for one shipment line
// @Description Per-line cost breakdown of a posted shipment
type ShipmentLineCostResponse struct {
	Line         int                   `json:"line" example:"1"`
	Consumptions []ConsumptionResponse `json:"consumptions"`
	TotalCost    float64               `json:"total_cost" example:"1600.0"`
}

// PostShipmentResponse reports the shipment's cost of goods sold
// @Description Result of posting a sales shipment
type PostShipmentResponse struct {
	Lines     []ShipmentLineCostResponse `json:"lines"`
	TotalCost float64                    `json:"total_cost" example:"1600.0"`
}

// Post godoc
// @ID           postSalesShipment
// @Summary      Post a sales shipment
// @Description  Consume stock FIFO per line and report the cost of goods sold
// @Tags         shipments
// @Accept       json
// @Produce      json
// @Param        request body PostShipmentRequest true "Shipment to post"
// @Success      201 {object} APIResponse[PostShipmentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /shipments [post]
func (h *SalesHandler) Post(c *gin.Context) {
	var req PostShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	lines := make([]documents.ShipmentLine, 0, len(req.Lines))
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
		lines = append(lines, documents.ShipmentLine{
			ProductID:   productID,
			WarehouseID: warehouseID,
			Quantity:    decimal.NewFromFloat(l.Quantity),
		})
	}

	result, err := h.service.PostShipment(c.Request.Context(), documents.PostShipmentRequest{
		ShipmentID: req.ShipmentID,
		Lines:      lines,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := PostShipmentResponse{
		Lines:     make([]ShipmentLineCostResponse, 0, len(result.Lines)),
		TotalCost: result.TotalCost.InexactFloat64(),
	}
	for _, lc := range result.Lines {
		resp.Lines = append(resp.Lines, ShipmentLineCostResponse{
			Line:         lc.Line,
			Consumptions: toConsumptionResponses(lc.Consumptions),
			TotalCost:    lc.TotalCost.InexactFloat64(),
		})
	}

	h.Created(c, resp)
}

// Cancel godoc
// @ID           cancelSalesShipment
// @Summary      Cancel a posted sales shipment
// @Description  Return the shipped stock by recreating one lot per consumption
// @Tags         shipments
// @Produce      json
// @Param        id path string true "Shipment ID"
// @Success      204 "No Content"
// @Failure      409 {object} ErrorResponse
// @Router       /shipments/{id}/cancel [post]
func (h *SalesHandler) Cancel(c *gin.Context) {
	shipmentID := c.Param("id")
	if shipmentID == "" {
		h.BadRequest(c, "Shipment ID is required")
		return
	}

	if err := h.service.CancelShipment(c.Request.Context(), shipmentID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
