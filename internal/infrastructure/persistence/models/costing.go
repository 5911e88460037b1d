package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/costing"
)

// LotModel is the persistence model for the Lot entity. Seq records
// insertion order and is the FIFO tie-break for lots sharing an entry
// date.
type LotModel struct {
	BaseModel
	Seq              int64           `gorm:"not null;uniqueIndex"`
	Code             string          `gorm:"type:varchar(100);not null;uniqueIndex"`
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_lots_warehouse_product,priority:2"`
	WarehouseID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_lots_warehouse_product,priority:1"`
	InitialQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CurrentQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitCostBase     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	OriginalCurrency string          `gorm:"type:varchar(3);not null"`
	OriginalUnitCost decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ExchangeRate     decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	SourceType       string          `gorm:"type:varchar(20);not null;index:idx_lots_source,priority:1"`
	SourceID         string          `gorm:"type:varchar(100);index:idx_lots_source,priority:2"`
	ParentLotID      *uuid.UUID      `gorm:"type:uuid"`
	EntryDate        time.Time       `gorm:"not null;index"`
	Status           string          `gorm:"type:varchar(20);not null;index"`
}

// TableName returns the table name for GORM
func (LotModel) TableName() string {
	return "lots"
}

// ToDomain converts the persistence model to a domain Lot entity
func (m *LotModel) ToDomain() *costing.Lot {
	return &costing.Lot{
		BaseEntity:       m.BaseModel.ToDomain(),
		Seq:              m.Seq,
		Code:             m.Code,
		ProductID:        m.ProductID,
		WarehouseID:      m.WarehouseID,
		InitialQuantity:  m.InitialQuantity,
		CurrentQuantity:  m.CurrentQuantity,
		UnitCostBase:     m.UnitCostBase,
		OriginalCurrency: m.OriginalCurrency,
		OriginalUnitCost: m.OriginalUnitCost,
		ExchangeRate:     m.ExchangeRate,
		SourceType:       costing.SourceType(m.SourceType),
		SourceID:         m.SourceID,
		ParentLotID:      m.ParentLotID,
		EntryDate:        m.EntryDate,
		Status:           costing.LotStatus(m.Status),
	}
}

// FromDomain populates the persistence model from a domain Lot entity
func (m *LotModel) FromDomain(l *costing.Lot) {
	m.FromDomainBaseEntity(l.BaseEntity)
	m.Seq = l.Seq
	m.Code = l.Code
	m.ProductID = l.ProductID
	m.WarehouseID = l.WarehouseID
	m.InitialQuantity = l.InitialQuantity
	m.CurrentQuantity = l.CurrentQuantity
	m.UnitCostBase = l.UnitCostBase
	m.OriginalCurrency = l.OriginalCurrency
	m.OriginalUnitCost = l.OriginalUnitCost
	m.ExchangeRate = l.ExchangeRate
	m.SourceType = string(l.SourceType)
	m.SourceID = l.SourceID
	m.ParentLotID = l.ParentLotID
	m.EntryDate = l.EntryDate
	m.Status = string(l.Status)
}

// LotModelFromDomain creates a new persistence model from a domain Lot entity
func LotModelFromDomain(l *costing.Lot) *LotModel {
	m := &LotModel{}
	m.FromDomain(l)
	return m
}

// ConsumptionModel is the persistence model for the append-only
// consumption ledger. Rows are inserted once and never updated.
type ConsumptionModel struct {
	BaseModel
	Seq           int64           `gorm:"not null;uniqueIndex"`
	LotID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	LotCode       string          `gorm:"type:varchar(100);not null"`
	Type          string          `gorm:"type:varchar(20);not null"`
	ReferenceType string          `gorm:"type:varchar(50);not null;index:idx_lot_consumptions_reference,priority:1"`
	ReferenceID   string          `gorm:"type:varchar(100);not null;index:idx_lot_consumptions_reference,priority:2"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TotalCost     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (ConsumptionModel) TableName() string {
	return "lot_consumptions"
}

// ToDomain converts the persistence model to a domain Consumption entity
func (m *ConsumptionModel) ToDomain() *costing.Consumption {
	return &costing.Consumption{
		BaseEntity:    m.BaseModel.ToDomain(),
		Seq:           m.Seq,
		LotID:         m.LotID,
		LotCode:       m.LotCode,
		Type:          costing.ConsumptionType(m.Type),
		ReferenceType: m.ReferenceType,
		ReferenceID:   m.ReferenceID,
		Quantity:      m.Quantity,
		UnitCost:      m.UnitCost,
		TotalCost:     m.TotalCost,
	}
}

// FromDomain populates the persistence model from a domain Consumption entity
func (m *ConsumptionModel) FromDomain(c *costing.Consumption) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.Seq = c.Seq
	m.LotID = c.LotID
	m.LotCode = c.LotCode
	m.Type = string(c.Type)
	m.ReferenceType = c.ReferenceType
	m.ReferenceID = c.ReferenceID
	m.Quantity = c.Quantity
	m.UnitCost = c.UnitCost
	m.TotalCost = c.TotalCost
}

// ConsumptionModelFromDomain creates a new persistence model from a domain Consumption entity
func ConsumptionModelFromDomain(c *costing.Consumption) *ConsumptionModel {
	m := &ConsumptionModel{}
	m.FromDomain(c)
	return m
}

// StockLevelModel is the persistence model for the per (warehouse,
// product) quantity projection.
type StockLevelModel struct {
	BaseModel
	WarehouseID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_levels_warehouse_product,priority:1"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_levels_warehouse_product,priority:2"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (StockLevelModel) TableName() string {
	return "stock_levels"
}

// ToDomain converts the persistence model to a domain StockLevel entity
func (m *StockLevelModel) ToDomain() *costing.StockLevel {
	return &costing.StockLevel{
		BaseEntity:  m.BaseModel.ToDomain(),
		WarehouseID: m.WarehouseID,
		ProductID:   m.ProductID,
		Quantity:    m.Quantity,
	}
}

// FromDomain populates the persistence model from a domain StockLevel entity
func (m *StockLevelModel) FromDomain(s *costing.StockLevel) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.WarehouseID = s.WarehouseID
	m.ProductID = s.ProductID
	m.Quantity = s.Quantity
}

// StockLevelModelFromDomain creates a new persistence model from a domain StockLevel entity
func StockLevelModelFromDomain(s *costing.StockLevel) *StockLevelModel {
	m := &StockLevelModel{}
	m.FromDomain(s)
	return m
}
