package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bitfantasy/medstock/internal/pharmacy/entity"
	"github.com/bitfantasy/medstock/internal/pharmacy/store"
)

// SaleRepository 销售单仓储
type SaleRepository struct {
	db *gorm.DB
}

func NewSaleRepository(db *gorm.DB) *SaleRepository {
	return &SaleRepository{db: db}
}

func (r *SaleRepository) Create(ctx context.Context, sale *entity.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

func (r *SaleRepository) FindByID(ctx context.Context, id string) (*entity.Sale, error) {
	var sale entity.Sale
	err := r.db.WithContext(ctx).Preload("Items").First(&sale, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *SaleRepository) List(ctx context.Context, start, end *time.Time, page, size int) ([]entity.Sale, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Sale{})
	if start != nil {
		query = query.Where("created_at >= ?", *start)
	}
	if end != nil {
		query = query.Where("created_at <= ?", *end)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sales []entity.Sale
	if size > 0 {
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * size).Limit(size)
	}
	err := query.Preload("Items").Order("created_at DESC").Find(&sales).Error
	return sales, total, err
}

// NextSaleNumber 生成销售单号，格式 SO-{日期}-{序号}
func (r *SaleRepository) NextSaleNumber(ctx context.Context) (string, error) {
	prefix := fmt.Sprintf("SO-%s-", time.Now().Format("20060102"))
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Sale{}).
		Where("sale_number LIKE ?", prefix+"%").
		Count(&count).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}
