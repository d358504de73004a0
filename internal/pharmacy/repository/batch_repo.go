package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/bitfantasy/medstock/internal/pharmacy/entity"
	"github.com/bitfantasy/medstock/internal/pharmacy/store"
)

// BatchRepository 批次库存仓储
type BatchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// WithProductLock 在事务内持有按产品分键的 advisory lock，
// 同一产品的库存读写串行执行，不同产品互不阻塞。
// fn 内的所有操作都在该事务中，出错整体回滚。
func (r *BatchRepository) WithProductLock(ctx context.Context, productID string, fn func(bs store.BatchStore) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", productID).Error; err != nil {
			return err
		}
		return fn(&BatchRepository{db: tx})
	})
}

func (r *BatchRepository) FindBatch(ctx context.Context, id string) (*entity.ProductBatch, error) {
	var batch entity.ProductBatch
	err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *BatchRepository) ListByProduct(ctx context.Context, productID string) ([]entity.ProductBatch, error) {
	var batches []entity.ProductBatch
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC, id ASC").
		Find(&batches).Error
	return batches, err
}

func (r *BatchRepository) FindByProductAndBatchNo(ctx context.Context, productID, batchNo string) (*entity.ProductBatch, error) {
	var batch entity.ProductBatch
	err := r.db.WithContext(ctx).
		First(&batch, "product_id = ? AND batch_no = ?", productID, batchNo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *BatchRepository) Create(ctx context.Context, batch *entity.ProductBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *BatchRepository) UpdateQuantity(ctx context.Context, batchID string, quantity int) error {
	res := r.db.WithContext(ctx).Model(&entity.ProductBatch{}).
		Where("id = ?", batchID).
		Update("quantity", quantity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *BatchRepository) SumOnHand(ctx context.Context, productID string) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entity.ProductBatch{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return int(total), err
}

func (r *BatchRepository) RecordMovement(ctx context.Context, m *entity.StockMovement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *BatchRepository) FindMovementByReference(ctx context.Context, movementType, reference string) (*entity.StockMovement, error) {
	var m entity.StockMovement
	err := r.db.WithContext(ctx).
		First(&m, "movement_type = ? AND reference = ?", movementType, reference).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *BatchRepository) ListMovements(ctx context.Context, productID string, page, size int) ([]entity.StockMovement, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.StockMovement{})
	if productID != "" {
		query = query.Where("product_id = ?", productID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var movements []entity.StockMovement
	if size > 0 {
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * size).Limit(size)
	}
	err := query.Order("created_at DESC").Find(&movements).Error
	return movements, total, err
}
