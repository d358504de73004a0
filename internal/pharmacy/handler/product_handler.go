package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/medstock/internal/pharmacy/service"
)

// ProductHandler 药品档案处理器
type ProductHandler struct {
	svc *service.ProductService
}

func NewProductHandler(svc *service.ProductService) *ProductHandler {
	return &ProductHandler{svc: svc}
}

// ListProducts 药品列表
// GET /api/v1/products?search=xxx
func (h *ProductHandler) ListProducts(c *gin.Context) {
	page, pageSize := GetPagination(c)
	products, total, err := h.svc.ListProducts(c.Request.Context(), c.Query("search"), page, pageSize)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, ListResponse{Items: products, Pagination: paging(page, pageSize, total)})
}

// GetProduct 药品详情
// GET /api/v1/products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	product, err := h.svc.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, product)
}

// CreateProduct 新建药品
// POST /api/v1/products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	product, err := h.svc.CreateProduct(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, product)
}

// UpdateProduct 修改药品
// PUT /api/v1/products/:id
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	var req service.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	product, err := h.svc.UpdateProduct(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, product)
}
