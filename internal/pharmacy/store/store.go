// Package store 定义库存/采购核心依赖的存储接口。
// repository 包提供 PostgreSQL(gorm) 实现，store/memory 提供内存实现
// （开发模式与测试使用），组合根按配置二选一。
package store

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/medstock/internal/pharmacy/entity"
)

var ErrNotFound = errors.New("record not found")

// OrderQuery 订单列表查询条件
type OrderQuery struct {
	SupplierID string
	Status     string
	Start      *time.Time
	End        *time.Time
	Page       int
	Size       int
}

// OrderPatch 状态迁移时随状态一起写入的审计字段
type OrderPatch struct {
	ApprovedBy   *string
	ApprovedAt   *time.Time
	ProcessedBy  *string
	ProcessedAt  *time.Time
	CancelReason *string
}

// OrderStore 采购订单存储
type OrderStore interface {
	Create(ctx context.Context, order *entity.PurchaseOrder) error
	// Save 在订单状态仍为 want 时保存订单及行项，状态已被并发迁移时
	// 返回 false。状态列只由 UpdateStatus 写入，Save 从不改写。
	Save(ctx context.Context, order *entity.PurchaseOrder, want string) (bool, error)
	FindByID(ctx context.Context, id string) (*entity.PurchaseOrder, error)
	FindBySupplier(ctx context.Context, supplierID string) ([]entity.PurchaseOrder, error)
	FindByDateRange(ctx context.Context, start, end time.Time) ([]entity.PurchaseOrder, error)
	List(ctx context.Context, q OrderQuery) ([]entity.PurchaseOrder, int64, error)
	NextOrderNumber(ctx context.Context) (string, error)

	// UpdateStatus 原子地把订单从 from 迁移到 to 并写入 patch。
	// 当前状态不等于 from 时返回 false（并发迁移只允许一个成功）。
	UpdateStatus(ctx context.Context, id, from, to string, patch OrderPatch) (bool, error)

	// MarkItemStocked 记录行项库存已落账（process 重试时跳过）
	MarkItemStocked(ctx context.Context, itemID, batchID string, at time.Time) error
}

// BatchStore 批次库存存储。一个产品的读写必须在 WithProductLock
// 的临界区内进行；不同产品互不阻塞。
type BatchStore interface {
	// WithProductLock 串行化同一产品的库存读写。gorm 实现在事务内
	// 持有 advisory lock，内存实现持有按产品分键的互斥锁。
	WithProductLock(ctx context.Context, productID string, fn func(s BatchStore) error) error

	FindBatch(ctx context.Context, id string) (*entity.ProductBatch, error)
	ListByProduct(ctx context.Context, productID string) ([]entity.ProductBatch, error) // 按创建时间升序
	FindByProductAndBatchNo(ctx context.Context, productID, batchNo string) (*entity.ProductBatch, error)
	Create(ctx context.Context, batch *entity.ProductBatch) error
	UpdateQuantity(ctx context.Context, batchID string, quantity int) error
	SumOnHand(ctx context.Context, productID string) (int, error)

	RecordMovement(ctx context.Context, m *entity.StockMovement) error
	FindMovementByReference(ctx context.Context, movementType, reference string) (*entity.StockMovement, error)
	ListMovements(ctx context.Context, productID string, page, size int) ([]entity.StockMovement, int64, error)
}

// ProductStore 药品档案存储
type ProductStore interface {
	Create(ctx context.Context, p *entity.Product) error
	Save(ctx context.Context, p *entity.Product) error
	FindByID(ctx context.Context, id string) (*entity.Product, error)
	List(ctx context.Context, keyword string, page, size int) ([]entity.Product, int64, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// SupplierStore 供应商存储
type SupplierStore interface {
	Create(ctx context.Context, s *entity.Supplier) error
	Save(ctx context.Context, s *entity.Supplier) error
	FindByID(ctx context.Context, id string) (*entity.Supplier, error)
	List(ctx context.Context, keyword string, page, size int) ([]entity.Supplier, int64, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// SaleStore 销售单存储
type SaleStore interface {
	Create(ctx context.Context, sale *entity.Sale) error
	FindByID(ctx context.Context, id string) (*entity.Sale, error)
	List(ctx context.Context, start, end *time.Time, page, size int) ([]entity.Sale, int64, error)
	NextSaleNumber(ctx context.Context) (string, error)
}

// AuditStore 操作日志存储。Emit 失败不影响业务操作。
type AuditStore interface {
	Emit(ctx context.Context, log *entity.ActivityLog) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]entity.ActivityLog, error)
}
