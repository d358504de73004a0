// Package service 实现采购订单工作流与库存台账的业务逻辑
package service

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bitfantasy/medstock/internal/pharmacy/store"
)

// Stores 服务层依赖的全部存储接口
type Stores struct {
	Orders    store.OrderStore
	Batches   store.BatchStore
	Products  store.ProductStore
	Suppliers store.SupplierStore
	Sales     store.SaleStore
	Audit     store.AuditStore
}

// Services 聚合业务服务
type Services struct {
	Orders    *OrderService
	Stock     *StockService
	Sales     *SaleService
	Products  *ProductService
	Suppliers *SupplierService
	Auditor   *Auditor
}

// New 组装服务。cache 可为 nil，此时现存量查询直接走存储。
func New(st Stores, cache *redis.Client, logger *zap.Logger) *Services {
	auditor := NewAuditor(st.Audit, logger)
	stock := NewStockService(st.Batches, cache, logger)
	return &Services{
		Orders:    NewOrderService(st.Orders, st.Suppliers, st.Products, stock, auditor, logger),
		Stock:     stock,
		Sales:     NewSaleService(st.Sales, st.Products, stock, auditor, logger),
		Products:  NewProductService(st.Products),
		Suppliers: NewSupplierService(st.Suppliers),
		Auditor:   auditor,
	}
}
