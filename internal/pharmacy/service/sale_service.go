package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bitfantasy/medstock/internal/pharmacy/entity"
	"github.com/bitfantasy/medstock/internal/pharmacy/store"
)

// SaleService 零售销售。销售即出库，按批次先进先出扣减库存。
type SaleService struct {
	sales    store.SaleStore
	products store.ProductStore
	stock    *StockService
	auditor  *Auditor
	logger   *zap.Logger
}

func NewSaleService(
	sales store.SaleStore,
	products store.ProductStore,
	stock *StockService,
	auditor *Auditor,
	logger *zap.Logger,
) *SaleService {
	return &SaleService{
		sales:    sales,
		products: products,
		stock:    stock,
		auditor:  auditor,
		logger:   logger,
	}
}

// SaleItemRequest 销售行项。UnitPrice 为 0 时取药品零售价。
type SaleItemRequest struct {
	ProductID string  `json:"product_id" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" binding:"gte=0"`
}

// CreateSaleRequest 创建销售单
type CreateSaleRequest struct {
	Items   []SaleItemRequest `json:"items" binding:"required,min=1,dive"`
	Notes   string            `json:"notes"`
	ActorID string            `json:"-"`
}

func (s *SaleService) CreateSale(ctx context.Context, req CreateSaleRequest) (*entity.Sale, error) {
	if len(req.Items) == 0 {
		return nil, invalidField("items", "至少包含一个行项")
	}

	// 校验产品并补全单价
	need := make(map[string]int)
	items := make([]entity.SaleItem, 0, len(req.Items))
	for _, r := range req.Items {
		if r.Quantity <= 0 {
			return nil, invalidField("items.quantity", "必须大于 0")
		}
		product, err := s.products.FindByID(ctx, r.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, &NotFoundError{Entity: "产品", ID: r.ProductID}
		}
		if err != nil {
			return nil, fmt.Errorf("查询产品失败: %w", err)
		}
		price := r.UnitPrice
		if price == 0 {
			price = product.RetailPrice
		}
		items = append(items, entity.SaleItem{
			ID:         uuid.New().String(),
			ProductID:  r.ProductID,
			Quantity:   r.Quantity,
			UnitPrice:  price,
			TotalPrice: float64(r.Quantity) * price,
		})
		need[r.ProductID] += r.Quantity
	}

	// 预检各产品库存，能整体满足才开始扣减
	for productID, qty := range need {
		onHand, err := s.stock.GetOnHand(ctx, productID)
		if err != nil {
			return nil, err
		}
		if onHand < qty {
			return nil, &InsufficientStockError{ProductID: productID, Requested: qty, Available: onHand}
		}
	}

	number, err := s.sales.NextSaleNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成销售单号失败: %w", err)
	}

	sale := &entity.Sale{
		ID:         uuid.New().String(),
		SaleNumber: number,
		SoldBy:     req.ActorID,
		Notes:      req.Notes,
	}
	var total float64
	for i := range items {
		items[i].SaleID = sale.ID
		total += items[i].TotalPrice
	}
	sale.TotalAmount = total
	sale.Items = items

	// 逐行扣减。某行落败时把前面已生效的扣减按批次冲正，
	// 不留下指向未落库销售单的出库流水。
	type appliedLine struct {
		item     *entity.SaleItem
		consumed []BatchConsumption
	}
	var applied []appliedLine
	for i := range sale.Items {
		item := &sale.Items[i]
		consumed, err := s.stock.DecreaseStock(ctx, DecreaseStockRequest{
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			MovementType: entity.MovementSaleOut,
			Reference:    item.ID,
			ActorID:      req.ActorID,
		})
		if err != nil {
			for j := len(applied) - 1; j >= 0; j-- {
				line := applied[j]
				if rerr := s.stock.RestoreConsumptions(ctx, line.item.ProductID, line.consumed, line.item.ID, req.ActorID); rerr != nil {
					s.logger.Error("销售冲正失败",
						zap.String("sale_item_id", line.item.ID),
						zap.String("product_id", line.item.ProductID),
						zap.Error(rerr))
				}
			}
			return nil, fmt.Errorf("销售行 %s 出库失败: %w", item.ID, err)
		}
		applied = append(applied, appliedLine{item: item, consumed: consumed})
	}

	if err := s.sales.Create(ctx, sale); err != nil {
		return nil, fmt.Errorf("创建销售单失败: %w", err)
	}

	s.auditor.Emit(ctx, &entity.ActivityLog{
		EntityType: "sale",
		EntityID:   sale.ID,
		Event:      entity.EventSaleCreated,
		Content:    fmt.Sprintf("销售单 %s，金额 %.2f", sale.SaleNumber, sale.TotalAmount),
		OperatorID: req.ActorID,
	})
	return sale, nil
}

func (s *SaleService) GetSale(ctx context.Context, id string) (*entity.Sale, error) {
	sale, err := s.sales.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Entity: "销售单", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("查询销售单失败: %w", err)
	}
	return sale, nil
}

func (s *SaleService) ListSales(ctx context.Context, start, end *time.Time, page, size int) ([]entity.Sale, int64, error) {
	if start != nil && end != nil && end.Before(*start) {
		return nil, 0, invalidField("end", "不能早于 start")
	}
	return s.sales.List(ctx, start, end, page, size)
}
