// Package handler HTTP 接入层
package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/medstock/internal/pharmacy/service"
)

// Handlers 处理器集合
type Handlers struct {
	Order    *OrderHandler
	Stock    *StockHandler
	Sale     *SaleHandler
	Product  *ProductHandler
	Supplier *SupplierHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svcs *service.Services) *Handlers {
	return &Handlers{
		Order:    NewOrderHandler(svcs.Orders),
		Stock:    NewStockHandler(svcs.Stock),
		Sale:     NewSaleHandler(svcs.Sales),
		Product:  NewProductHandler(svcs.Products),
		Supplier: NewSupplierHandler(svcs.Suppliers),
	}
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// Fail 按业务错误类型映射状态码
func Fail(c *gin.Context, err error) {
	var ve *service.ValidationError
	var nfe *service.NotFoundError
	var ise *service.InsufficientStockError
	switch {
	case errors.As(err, &ve):
		BadRequest(c, ve.Error())
	case errors.As(err, &nfe):
		NotFound(c, nfe.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		Conflict(c, err.Error())
	case errors.As(err, &ise):
		Conflict(c, ise.Error())
	default:
		InternalError(c, err.Error())
	}
}

func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

func paging(page, pageSize int, total int64) *Pagination {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return &Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      int(total),
		TotalPages: totalPages,
	}
}
