package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bitfantasy/medstock/internal/pharmacy/entity"
	"github.com/bitfantasy/medstock/internal/pharmacy/store"
)

const onHandCacheTTL = 30 * time.Second

// StockService 库存台账。批次数量只能经由本服务变更，
// 每次变更都落一条流水。所有读写在产品级临界区内执行。
type StockService struct {
	batches store.BatchStore
	cache   *redis.Client // 可为 nil
	logger  *zap.Logger
}

func NewStockService(batches store.BatchStore, cache *redis.Client, logger *zap.Logger) *StockService {
	return &StockService{batches: batches, cache: cache, logger: logger}
}

// IncreaseStockRequest 入库请求
type IncreaseStockRequest struct {
	ProductID    string `json:"product_id" binding:"required"`
	Quantity     int    `json:"quantity" binding:"required,gt=0"`
	UnitCost     float64
	BatchNo      string
	ExpiryDate   *time.Time
	Reference    string // 幂等键，采购入库为订单行 ID
	SourceItemID *string
	ActorID      string
}

// IncreaseStock 入库：指定批号且批次存在时并入，否则建新批次，均落流水。
// Reference 非空时幂等：同一 reference 的入库只生效一次，
// 重复调用返回首次创建的批次。
func (s *StockService) IncreaseStock(ctx context.Context, req IncreaseStockRequest) (*entity.ProductBatch, error) {
	if req.ProductID == "" {
		return nil, invalidField("product_id", "不能为空")
	}
	if req.Quantity <= 0 {
		return nil, invalidField("quantity", "必须大于 0")
	}

	var result *entity.ProductBatch
	err := s.batches.WithProductLock(ctx, req.ProductID, func(bs store.BatchStore) error {
		if req.Reference != "" {
			prev, err := bs.FindMovementByReference(ctx, entity.MovementPurchaseIn, req.Reference)
			if err == nil {
				existing, err := bs.FindBatch(ctx, prev.BatchID)
				if err != nil {
					return fmt.Errorf("查询已入库批次失败: %w", err)
				}
				result = existing
				return nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("查询入库流水失败: %w", err)
			}
		}

		// 指定批号且批次已存在时并入该批次，否则新建
		if req.BatchNo != "" {
			existing, err := bs.FindByProductAndBatchNo(ctx, req.ProductID, req.BatchNo)
			if err == nil {
				if err := bs.UpdateQuantity(ctx, existing.ID, existing.Quantity+req.Quantity); err != nil {
					return fmt.Errorf("并入批次失败: %w", err)
				}
				movement := &entity.StockMovement{
					ID:           uuid.New().String(),
					ProductID:    req.ProductID,
					BatchID:      existing.ID,
					MovementType: entity.MovementPurchaseIn,
					Quantity:     req.Quantity,
					Reference:    req.Reference,
					CreatedBy:    req.ActorID,
				}
				if err := bs.RecordMovement(ctx, movement); err != nil {
					return fmt.Errorf("写入库存流水失败: %w", err)
				}
				existing.Quantity += req.Quantity
				result = existing
				return nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("查询批次失败: %w", err)
			}
		}

		batchNo := req.BatchNo
		if batchNo == "" {
			batchNo = "B" + time.Now().Format("20060102150405")
		}
		batch := &entity.ProductBatch{
			ID:           uuid.New().String(),
			ProductID:    req.ProductID,
			BatchNo:      batchNo,
			Quantity:     req.Quantity,
			UnitCost:     req.UnitCost,
			SourceItemID: req.SourceItemID,
			ExpiryDate:   req.ExpiryDate,
		}
		if err := bs.Create(ctx, batch); err != nil {
			return fmt.Errorf("创建批次失败: %w", err)
		}
		movement := &entity.StockMovement{
			ID:           uuid.New().String(),
			ProductID:    req.ProductID,
			BatchID:      batch.ID,
			MovementType: entity.MovementPurchaseIn,
			Quantity:     req.Quantity,
			Reference:    req.Reference,
			CreatedBy:    req.ActorID,
		}
		if err := bs.RecordMovement(ctx, movement); err != nil {
			return fmt.Errorf("写入库存流水失败: %w", err)
		}
		result = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateOnHand(ctx, req.ProductID)
	return result, nil
}

// DecreaseStockRequest 出库请求
type DecreaseStockRequest struct {
	ProductID    string `json:"product_id" binding:"required"`
	Quantity     int    `json:"quantity" binding:"required,gt=0"`
	MovementType string
	Reference    string
	ActorID      string
}

// BatchConsumption 一次出库在单个批次上的扣减
type BatchConsumption struct {
	BatchID  string  `json:"batch_id"`
	BatchNo  string  `json:"batch_no"`
	Quantity int     `json:"quantity"`
	UnitCost float64 `json:"unit_cost"`
}

// DecreaseStock 出库：按批次先进先出扣减。现有总量不足时
// 整体拒绝，不做部分扣减。
func (s *StockService) DecreaseStock(ctx context.Context, req DecreaseStockRequest) ([]BatchConsumption, error) {
	if req.ProductID == "" {
		return nil, invalidField("product_id", "不能为空")
	}
	if req.Quantity <= 0 {
		return nil, invalidField("quantity", "必须大于 0")
	}
	movementType := req.MovementType
	if movementType == "" {
		movementType = entity.MovementManualOut
	}

	var consumed []BatchConsumption
	err := s.batches.WithProductLock(ctx, req.ProductID, func(bs store.BatchStore) error {
		batches, err := bs.ListByProduct(ctx, req.ProductID)
		if err != nil {
			return fmt.Errorf("查询批次失败: %w", err)
		}
		available := 0
		for _, b := range batches {
			available += b.Quantity
		}
		if available < req.Quantity {
			return &InsufficientStockError{
				ProductID: req.ProductID,
				Requested: req.Quantity,
				Available: available,
			}
		}

		remaining := req.Quantity
		for _, b := range batches {
			if remaining == 0 {
				break
			}
			if b.Quantity == 0 {
				continue
			}
			take := b.Quantity
			if take > remaining {
				take = remaining
			}
			if err := bs.UpdateQuantity(ctx, b.ID, b.Quantity-take); err != nil {
				return fmt.Errorf("扣减批次失败: %w", err)
			}
			movement := &entity.StockMovement{
				ID:           uuid.New().String(),
				ProductID:    req.ProductID,
				BatchID:      b.ID,
				MovementType: movementType,
				Quantity:     -take,
				Reference:    req.Reference,
				CreatedBy:    req.ActorID,
			}
			if err := bs.RecordMovement(ctx, movement); err != nil {
				return fmt.Errorf("写入库存流水失败: %w", err)
			}
			consumed = append(consumed, BatchConsumption{
				BatchID:  b.ID,
				BatchNo:  b.BatchNo,
				Quantity: take,
				UnitCost: b.UnitCost,
			})
			remaining -= take
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateOnHand(ctx, req.ProductID)
	return consumed, nil
}

// RestoreConsumptions 把一次已扣减的出库按批次原样加回并落冲正流水，
// 用于多行销售中后续行失败时回滚前面已生效的扣减。
func (s *StockService) RestoreConsumptions(ctx context.Context, productID string, consumptions []BatchConsumption, reference, actorID string) error {
	if len(consumptions) == 0 {
		return nil
	}
	err := s.batches.WithProductLock(ctx, productID, func(bs store.BatchStore) error {
		for _, c := range consumptions {
			batch, err := bs.FindBatch(ctx, c.BatchID)
			if err != nil {
				return fmt.Errorf("查询批次失败: %w", err)
			}
			if err := bs.UpdateQuantity(ctx, batch.ID, batch.Quantity+c.Quantity); err != nil {
				return fmt.Errorf("恢复批次数量失败: %w", err)
			}
			movement := &entity.StockMovement{
				ID:           uuid.New().String(),
				ProductID:    productID,
				BatchID:      batch.ID,
				MovementType: entity.MovementSaleReversal,
				Quantity:     c.Quantity,
				Reference:    reference,
				CreatedBy:    actorID,
			}
			if err := bs.RecordMovement(ctx, movement); err != nil {
				return fmt.Errorf("写入库存流水失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateOnHand(ctx, productID)
	return nil
}

// GetOnHand 产品现有库存（全部批次数量之和）
func (s *StockService) GetOnHand(ctx context.Context, productID string) (int, error) {
	if s.cache != nil {
		val, err := s.cache.Get(ctx, onHandKey(productID)).Result()
		if err == nil {
			if n, perr := strconv.Atoi(val); perr == nil {
				return n, nil
			}
		}
	}

	total, err := s.batches.SumOnHand(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("统计库存失败: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, onHandKey(productID), strconv.Itoa(total), onHandCacheTTL).Err(); err != nil {
			s.logger.Debug("on-hand cache set failed", zap.String("product_id", productID), zap.Error(err))
		}
	}
	return total, nil
}

func (s *StockService) ListBatches(ctx context.Context, productID string) ([]entity.ProductBatch, error) {
	return s.batches.ListByProduct(ctx, productID)
}

func (s *StockService) ListMovements(ctx context.Context, productID string, page, size int) ([]entity.StockMovement, int64, error) {
	return s.batches.ListMovements(ctx, productID, page, size)
}

func (s *StockService) invalidateOnHand(ctx context.Context, productID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, onHandKey(productID)).Err(); err != nil {
		s.logger.Debug("on-hand cache del failed", zap.String("product_id", productID), zap.Error(err))
	}
}

func onHandKey(productID string) string {
	return "medstock:onhand:" + productID
}
