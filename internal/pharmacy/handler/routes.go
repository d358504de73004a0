package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/medstock/internal/middleware"
)

// RegisterRoutes 在认证分组下挂载全部业务路由
func RegisterRoutes(g *gin.RouterGroup, h *Handlers) {
	suppliers := g.Group("/suppliers")
	{
		suppliers.GET("", h.Supplier.ListSuppliers)
		suppliers.POST("", h.Supplier.CreateSupplier)
		suppliers.GET("/:id", h.Supplier.GetSupplier)
		suppliers.PUT("/:id", h.Supplier.UpdateSupplier)
	}

	products := g.Group("/products")
	{
		products.GET("", h.Product.ListProducts)
		products.POST("", h.Product.CreateProduct)
		products.GET("/:id", h.Product.GetProduct)
		products.PUT("/:id", h.Product.UpdateProduct)
	}

	orders := g.Group("/purchase-orders")
	{
		orders.GET("", h.Order.ListOrders)
		orders.POST("", h.Order.CreateOrder)
		orders.GET("/:id", h.Order.GetOrder)
		orders.PUT("/:id", h.Order.UpdateOrder)
		orders.POST("/:id/items", h.Order.AddItem)
		orders.POST("/:id/approve", middleware.RequireRole("manager"), h.Order.ApproveOrder)
		orders.POST("/:id/process", h.Order.ProcessOrder)
		orders.POST("/:id/cancel", h.Order.CancelOrder)
		orders.POST("/:id/payments", h.Order.RecordPayment)
		orders.GET("/:id/history", h.Order.OrderHistory)
		orders.GET("/:id/export", h.Order.ExportOrder)
	}

	stock := g.Group("/stock")
	{
		stock.GET("/movements", h.Stock.ListMovements)
		stock.POST("/adjustments", h.Stock.AdjustStock)
		stock.GET("/products/:product_id", h.Stock.GetOnHand)
		stock.GET("/products/:product_id/batches", h.Stock.ListBatches)
	}

	sales := g.Group("/sales")
	{
		sales.GET("", h.Sale.ListSales)
		sales.POST("", h.Sale.CreateSale)
		sales.GET("/:id", h.Sale.GetSale)
	}
}
