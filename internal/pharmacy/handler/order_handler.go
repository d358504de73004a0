package handler

import (
	"fmt"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/medstock/internal/pharmacy/service"
	"github.com/bitfantasy/medstock/internal/pharmacy/store"
)

// OrderHandler 采购订单处理器
type OrderHandler struct {
	svc *service.OrderService
}

func NewOrderHandler(svc *service.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// ListOrders 采购订单列表
// GET /api/v1/purchase-orders?supplier_id=xxx&status=xxx&start=xxx&end=xxx
func (h *OrderHandler) ListOrders(c *gin.Context) {
	page, pageSize := GetPagination(c)
	q := store.OrderQuery{
		SupplierID: c.Query("supplier_id"),
		Status:     c.Query("status"),
		Page:       page,
		Size:       pageSize,
	}
	if v := c.Query("start"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			BadRequest(c, "start 格式应为 YYYY-MM-DD")
			return
		}
		q.Start = &t
	}
	if v := c.Query("end"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			BadRequest(c, "end 格式应为 YYYY-MM-DD")
			return
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		q.End = &end
	}

	items, total, err := h.svc.ListOrders(c.Request.Context(), q)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, ListResponse{Items: items, Pagination: paging(page, pageSize, total)})
}

// GetOrder 采购订单详情
// GET /api/v1/purchase-orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.svc.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// CreateOrder 创建采购订单
// POST /api/v1/purchase-orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	req.ActorID = GetUserID(c)

	order, err := h.svc.CreateOrder(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, order)
}

// UpdateOrder 修改待审订单
// PUT /api/v1/purchase-orders/:id
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	var req service.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	req.ActorID = GetUserID(c)

	order, err := h.svc.UpdateOrder(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// AddItem 向待审订单追加行项
// POST /api/v1/purchase-orders/:id/items
func (h *OrderHandler) AddItem(c *gin.Context) {
	var req service.OrderItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.svc.AddItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// ApproveOrder 审批通过
// POST /api/v1/purchase-orders/:id/approve
func (h *OrderHandler) ApproveOrder(c *gin.Context) {
	order, err := h.svc.ApproveOrder(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// ProcessOrder 收货入库
// POST /api/v1/purchase-orders/:id/process
func (h *OrderHandler) ProcessOrder(c *gin.Context) {
	order, err := h.svc.ProcessOrder(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// CancelOrder 取消订单
// POST /api/v1/purchase-orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.svc.CancelOrder(c.Request.Context(), c.Param("id"), req.Reason, GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// RecordPayment 登记付款
// POST /api/v1/purchase-orders/:id/payments
func (h *OrderHandler) RecordPayment(c *gin.Context) {
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	req.ActorID = GetUserID(c)

	order, err := h.svc.RecordPayment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, order)
}

// OrderHistory 订单工作流事件
// GET /api/v1/purchase-orders/:id/history
func (h *OrderHandler) OrderHistory(c *gin.Context) {
	logs, err := h.svc.OrderHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, logs)
}

// ExportOrder 导出订单xlsx
// GET /api/v1/purchase-orders/:id/export
func (h *OrderHandler) ExportOrder(c *gin.Context) {
	f, filename, err := h.svc.ExportOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(filename)))
	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "导出失败: "+err.Error())
	}
}
