package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/medstock/internal/pharmacy/service"
)

// SaleHandler 销售处理器
type SaleHandler struct {
	svc *service.SaleService
}

func NewSaleHandler(svc *service.SaleService) *SaleHandler {
	return &SaleHandler{svc: svc}
}

// CreateSale 创建销售单并出库
// POST /api/v1/sales
func (h *SaleHandler) CreateSale(c *gin.Context) {
	var req service.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	req.ActorID = GetUserID(c)

	sale, err := h.svc.CreateSale(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, sale)
}

// GetSale 销售单详情
// GET /api/v1/sales/:id
func (h *SaleHandler) GetSale(c *gin.Context) {
	sale, err := h.svc.GetSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, sale)
}

// ListSales 销售单列表
// GET /api/v1/sales?start=xxx&end=xxx
func (h *SaleHandler) ListSales(c *gin.Context) {
	page, pageSize := GetPagination(c)

	var start, end *time.Time
	if v := c.Query("start"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			BadRequest(c, "start 格式应为 YYYY-MM-DD")
			return
		}
		start = &t
	}
	if v := c.Query("end"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			BadRequest(c, "end 格式应为 YYYY-MM-DD")
			return
		}
		e := t.Add(24*time.Hour - time.Nanosecond)
		end = &e
	}

	sales, total, err := h.svc.ListSales(c.Request.Context(), start, end, page, pageSize)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, ListResponse{Items: sales, Pagination: paging(page, pageSize, total)})
}
