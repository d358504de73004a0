package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bitfantasy/medstock/internal/pharmacy/entity"
	"github.com/bitfantasy/medstock/internal/pharmacy/store"
)

// OrderRepository 采购订单仓储
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *entity.PurchaseOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// Save 保存订单及行项，仅在状态列仍为 want 时生效，且从不改写状态列。
// 行项按主键更新或插入，缺席的已有行项被删除。
func (r *OrderRepository) Save(ctx context.Context, order *entity.PurchaseOrder, want string) (bool, error) {
	var saved bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.PurchaseOrder{}).
			Where("id = ? AND status = ?", order.ID, want).
			Select("*").Omit("status", "created_at", clause.Associations).
			Updates(order)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&entity.PurchaseOrder{}).
				Where("id = ?", order.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return store.ErrNotFound
			}
			return nil
		}
		keep := make([]string, 0, len(order.Items))
		for i := range order.Items {
			if err := tx.Save(&order.Items[i]).Error; err != nil {
				return err
			}
			keep = append(keep, order.Items[i].ID)
		}
		q := tx.Where("order_id = ?", order.ID)
		if len(keep) > 0 {
			q = q.Where("id NOT IN ?", keep)
		}
		if err := q.Delete(&entity.PurchaseOrderItem{}).Error; err != nil {
			return err
		}
		saved = true
		return nil
	})
	return saved, err
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	var order entity.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) FindBySupplier(ctx context.Context, supplierID string) ([]entity.PurchaseOrder, error) {
	var orders []entity.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("supplier_id = ?", supplierID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (r *OrderRepository) FindByDateRange(ctx context.Context, start, end time.Time) ([]entity.PurchaseOrder, error) {
	var orders []entity.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("created_at BETWEEN ? AND ?", start, end).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (r *OrderRepository) List(ctx context.Context, q store.OrderQuery) ([]entity.PurchaseOrder, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{})
	if q.SupplierID != "" {
		query = query.Where("supplier_id = ?", q.SupplierID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Start != nil {
		query = query.Where("created_at >= ?", *q.Start)
	}
	if q.End != nil {
		query = query.Where("created_at <= ?", *q.End)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []entity.PurchaseOrder
	if q.Size > 0 {
		page := q.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * q.Size).Limit(q.Size)
	}
	err := query.Preload("Supplier").Order("created_at DESC").Find(&orders).Error
	return orders, total, err
}

// NextOrderNumber 生成订单号，格式 PO-{年份}-{序号}
func (r *OrderRepository) NextOrderNumber(ctx context.Context) (string, error) {
	prefix := fmt.Sprintf("PO-%s-", time.Now().Format("2006"))
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{}).
		Where("order_number LIKE ?", prefix+"%").
		Count(&count).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

// UpdateStatus 带状态前置条件的更新。WHERE status = from 保证并发
// 迁移只有一个成功，其余返回 false。
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, from, to string, patch store.OrderPatch) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if patch.ApprovedBy != nil {
		updates["approved_by"] = patch.ApprovedBy
		updates["approved_at"] = patch.ApprovedAt
	}
	if patch.ProcessedBy != nil {
		updates["processed_by"] = patch.ProcessedBy
		updates["processed_at"] = patch.ProcessedAt
	}
	if patch.CancelReason != nil {
		updates["cancel_reason"] = *patch.CancelReason
	}

	res := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{}).
		Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, store.ErrNotFound
	}
	return false, nil
}

func (r *OrderRepository) MarkItemStocked(ctx context.Context, itemID, batchID string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&entity.PurchaseOrderItem{}).
		Where("id = ?", itemID).
		Updates(map[string]interface{}{
			"stocked_batch_id": batchID,
			"stocked_at":       at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}
