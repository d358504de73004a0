// Package repository 提供 store 接口的 PostgreSQL 实现
package repository

import (
	"gorm.io/gorm"

	"github.com/bitfantasy/medstock/internal/pharmacy/entity"
	"github.com/bitfantasy/medstock/internal/pharmacy/store"
)

// Repositories 聚合全部仓储
type Repositories struct {
	Orders    store.OrderStore
	Batches   store.BatchStore
	Products  store.ProductStore
	Suppliers store.SupplierStore
	Sales     store.SaleStore
	Audit     store.AuditStore
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Orders:    NewOrderRepository(db),
		Batches:   NewBatchRepository(db),
		Products:  NewProductRepository(db),
		Suppliers: NewSupplierRepository(db),
		Sales:     NewSaleRepository(db),
		Audit:     NewAuditRepository(db),
	}
}

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.Supplier{},
		&entity.Product{},
		&entity.PurchaseOrder{},
		&entity.PurchaseOrderItem{},
		&entity.ProductBatch{},
		&entity.StockMovement{},
		&entity.Sale{},
		&entity.SaleItem{},
		&entity.ActivityLog{},
	)
}
