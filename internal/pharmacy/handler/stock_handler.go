package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/medstock/internal/pharmacy/service"
)

// StockHandler 库存处理器
type StockHandler struct {
	svc *service.StockService
}

func NewStockHandler(svc *service.StockService) *StockHandler {
	return &StockHandler{svc: svc}
}

// GetOnHand 产品现有库存
// GET /api/v1/stock/products/:product_id
func (h *StockHandler) GetOnHand(c *gin.Context) {
	productID := c.Param("product_id")
	total, err := h.svc.GetOnHand(c.Request.Context(), productID)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"product_id": productID, "on_hand": total})
}

// ListBatches 产品批次明细
// GET /api/v1/stock/products/:product_id/batches
func (h *StockHandler) ListBatches(c *gin.Context) {
	batches, err := h.svc.ListBatches(c.Request.Context(), c.Param("product_id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, batches)
}

// ListMovements 库存流水
// GET /api/v1/stock/movements?product_id=xxx
func (h *StockHandler) ListMovements(c *gin.Context) {
	page, pageSize := GetPagination(c)
	movements, total, err := h.svc.ListMovements(c.Request.Context(), c.Query("product_id"), page, pageSize)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, ListResponse{Items: movements, Pagination: paging(page, pageSize, total)})
}

// AdjustStock 手工出库（报损/盘亏）
// POST /api/v1/stock/adjustments
func (h *StockHandler) AdjustStock(c *gin.Context) {
	var req service.DecreaseStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	req.MovementType = ""
	req.ActorID = GetUserID(c)

	consumed, err := h.svc.DecreaseStock(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, consumed)
}
