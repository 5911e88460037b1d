package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appcosting "github.com/stockledger/backend/internal/application/costing"
)

// StockHandler handles stock query and lot endpoints
type StockHandler struct {
	BaseHandler
	engine *appcosting.Engine
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(engine *appcosting.Engine) *StockHandler {
	return &StockHandler{engine: engine}
}

// RegisterRoutes registers stock query routes
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	stock := rg.Group("/stock")
	{
		stock.GET("/cached", h.CachedStock)
		stock.GET("/authoritative", h.AuthoritativeStock)
	}

	warehouses := rg.Group("/warehouses")
	{
		warehouses.GET("/:id/stock-levels", h.WarehouseStockLevels)
		warehouses.GET("/:id/valuation", h.Valuation)
	}

	lots := rg.Group("/lots")
	{
		lots.GET("/:id/kardex", h.LotKardex)
		lots.POST("/:id/move", h.MoveLot)
	}

	products := rg.Group("/products")
	{
		products.GET("/:id/last-cost", h.LastKnownCost)
	}
}

// StockLevelResponse represents a cached stock level in API responses
// @Description Denormalized stock quantity for a warehouse and product
type StockLevelResponse struct {
	WarehouseID string  `json:"warehouse_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	ProductID   string  `json:"product_id" example:"550e8400-e29b-41d4-a716-446655440001"`
	Quantity    float64 `json:"quantity" example:"100.0"`
}

// ValuationEntryResponse is one line of a warehouse valuation
// @Description Per-product quantity and base-currency value from active lots
type ValuationEntryResponse struct {
	WarehouseID string  `json:"warehouse_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	ProductID   string  `json:"product_id" example:"550e8400-e29b-41d4-a716-446655440001"`
	Quantity    float64 `json:"quantity" example:"15.0"`
	TotalValue  float64 `json:"total_value" example:"1600.0"`
}

// KardexSummaryResponse totals a lot's movement history
// @Description Kardex summary figures
type KardexSummaryResponse struct {
	InitialQuantity   float64 `json:"initial_quantity" example:"100.0"`
	ConsumedQuantity  float64 `json:"consumed_quantity" example:"25.0"`
	RemainingQuantity float64 `json:"remaining_quantity" example:"75.0"`
	ConsumedCost      float64 `json:"consumed_cost" example:"2500.0"`
	RemainingValue    float64 `json:"remaining_value" example:"7500.0"`
}

// LotKardexResponse is a lot with its consumption history and summary
// @Description Lot movement history
type LotKardexResponse struct {
	Lot          LotResponse           `json:"lot"`
	Consumptions []ConsumptionResponse `json:"consumptions"`
	Summary      KardexSummaryResponse `json:"summary"`
}

// LastCostResponse is the cost snapshot of a product's newest lot
// @Description Last known acquisition cost of a product
type LastCostResponse struct {
	Currency     string  `json:"currency" example:"USD"`
	UnitCost     float64 `json:"unit_cost" example:"25.0"`
	ExchangeRate float64 `json:"exchange_rate" example:"17.25"`
	UnitCostBase float64 `json:"unit_cost_base" example:"431.25"`
	EntryDate    string  `json:"entry_date" example:"2024-01-15T00:00:00Z"`
}

// MoveLotRequest is the request body for relocating a whole lot
// @Description Destination warehouse for a lot relocation
type MoveLotRequest struct {
	DestinationWarehouseID string `json:"destination_warehouse_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
}

// pairParams parses the warehouse_id and product_id query parameters
func (h *StockHandler) pairParams(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	warehouseIDStr := c.Query("warehouse_id")
	productIDStr := c.Query("product_id")
	if warehouseIDStr == "" || productIDStr == "" {
		h.BadRequest(c, "warehouse_id and product_id are required")
		return uuid.Nil, uuid.Nil, false
	}

	warehouseID, err := uuid.Parse(warehouseIDStr)
	if err != nil {
		h.BadRequest(c, "Invalid warehouse ID format")
		return uuid.Nil, uuid.Nil, false
	}
	productID, err := uuid.Parse(productIDStr)
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return uuid.Nil, uuid.Nil, false
	}
	return warehouseID, productID, true
}

// CachedStock godoc
// @ID           getCachedStock
// @Summary      Get cached stock level
// @Description  Read the denormalized stock quantity for a warehouse-product pair
// @Tags         stock
// @Produce      json
// @Param        warehouse_id query string true "Warehouse ID" format(uuid)
// @Param        product_id query string true "Product ID" format(uuid)
// @Success      200 {object} APIResponse[QuantityData]
// @Failure      400 {object} ErrorResponse
// @Router       /stock/cached [get]
func (h *StockHandler) CachedStock(c *gin.Context) {
	warehouseID, productID, ok := h.pairParams(c)
	if !ok {
		return
	}

	quantity, err := h.engine.CachedStock(c.Request.Context(), warehouseID, productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, QuantityData{Quantity: quantity.InexactFloat64()})
}

// AuthoritativeStock godoc
// @ID           getAuthoritativeStock
// @Summary      Get authoritative stock level
// @Description  Sum the remaining quantity of the pair's active lots
// @Tags         stock
// @Produce      json
// @Param        warehouse_id query string true "Warehouse ID" format(uuid)
// @Param        product_id query string true "Product ID" format(uuid)
// @Success      200 {object} APIResponse[QuantityData]
// @Failure      400 {object} ErrorResponse
// @Router       /stock/authoritative [get]
func (h *StockHandler) AuthoritativeStock(c *gin.Context) {
	warehouseID, productID, ok := h.pairParams(c)
	if !ok {
		return
	}

	quantity, err := h.engine.StockFromLots(c.Request.Context(), warehouseID, productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, QuantityData{Quantity: quantity.InexactFloat64()})
}

// WarehouseStockLevels godoc
// @ID           listWarehouseStockLevels
// @Summary      List a warehouse's stock levels
// @Description  Read the cached stock levels of every product in a warehouse
// @Tags         stock
// @Produce      json
// @Param        id path string true "Warehouse ID" format(uuid)
// @Success      200 {object} APIResponse[[]StockLevelResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /warehouses/{id}/stock-levels [get]
func (h *StockHandler) WarehouseStockLevels(c *gin.Context) {
	warehouseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid warehouse ID format")
		return
	}

	levels, err := h.engine.WarehouseStockLevels(c.Request.Context(), warehouseID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]StockLevelResponse, 0, len(levels))
	for _, level := range levels {
		resp = append(resp, StockLevelResponse{
			WarehouseID: level.WarehouseID.String(),
			ProductID:   level.ProductID.String(),
			Quantity:    level.Quantity.InexactFloat64(),
		})
	}

	h.Success(c, resp)
}

// Valuation godoc
// @ID           getWarehouseValuation
// @Summary      Get a warehouse valuation
// @Description  Aggregate the warehouse's active lots into per-product quantity and base-currency value
// @Tags         stock
// @Produce      json
// @Param        id path string true "Warehouse ID" format(uuid)
// @Success      200 {object} APIResponse[[]ValuationEntryResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /warehouses/{id}/valuation [get]
func (h *StockHandler) Valuation(c *gin.Context) {
	warehouseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid warehouse ID format")
		return
	}

	entries, err := h.engine.Valuation(c.Request.Context(), warehouseID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]ValuationEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, ValuationEntryResponse{
			WarehouseID: e.WarehouseID.String(),
			ProductID:   e.ProductID.String(),
			Quantity:    e.Quantity.InexactFloat64(),
			TotalValue:  e.TotalValue.InexactFloat64(),
		})
	}

	h.Success(c, resp)
}

// LotKardex godoc
// @ID           getLotKardex
// @Summary      Get a lot's kardex
// @Description  Read a lot with its ordered consumption history and summary
// @Tags         lots
// @Produce      json
// @Param        id path string true "Lot ID" format(uuid)
// @Success      200 {object} APIResponse[LotKardexResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /lots/{id}/kardex [get]
func (h *StockHandler) LotKardex(c *gin.Context) {
	lotID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid lot ID format")
		return
	}

	kardex, err := h.engine.LotKardex(c.Request.Context(), lotID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, LotKardexResponse{
		Lot:          toLotResponse(kardex.Lot),
		Consumptions: toConsumptionResponses(kardex.Consumptions),
		Summary: KardexSummaryResponse{
			InitialQuantity:   kardex.Summary.InitialQuantity.InexactFloat64(),
			ConsumedQuantity:  kardex.Summary.ConsumedQuantity.InexactFloat64(),
			RemainingQuantity: kardex.Summary.RemainingQuantity.InexactFloat64(),
			ConsumedCost:      kardex.Summary.ConsumedCost.InexactFloat64(),
			RemainingValue:    kardex.Summary.RemainingValue.InexactFloat64(),
		},
	})
}

// MoveLot godoc
// @ID           moveLot
// @Summary      Move a whole lot to another warehouse
// @Description  Relocate the lot's remaining quantity; identity and cost basis travel unchanged
// @Tags         lots
// @Accept       json
// @Produce      json
// @Param        id path string true "Lot ID" format(uuid)
// @Param        request body MoveLotRequest true "Destination"
// @Success      204 "No Content"
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /lots/{id}/move [post]
func (h *StockHandler) MoveLot(c *gin.Context) {
	lotID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid lot ID format")
		return
	}

	var req MoveLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	destinationID, err := uuid.Parse(req.DestinationWarehouseID)
	if err != nil {
		h.BadRequest(c, "Invalid destination warehouse ID format")
		return
	}

	if err := h.engine.MoveLot(c.Request.Context(), lotID, destinationID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// LastKnownCost godoc
// @ID           getLastKnownCost
// @Summary      Get a product's last known cost
// @Description  Read the cost fields of the product's most recently created lot
// @Tags         products
// @Produce      json
// @Param        id path string true "Product ID" format(uuid)
// @Success      200 {object} APIResponse[LastCostResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /products/{id}/last-cost [get]
func (h *StockHandler) LastKnownCost(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}

	info, err := h.engine.LastKnownCost(c.Request.Context(), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, LastCostResponse{
		Currency:     info.Currency,
		UnitCost:     info.UnitCost.InexactFloat64(),
		ExchangeRate: info.ExchangeRate.InexactFloat64(),
		UnitCostBase: info.UnitCostBase.InexactFloat64(),
		EntryDate:    info.EntryDate.Format(time.RFC3339),
	})
}
