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

// OrderService 采购订单工作流：
// pending → approved → processed，pending/approved 可取消。
// 状态迁移通过存储层的条件更新线性化，并发冲突只有一个成功。
type OrderService struct {
	orders    store.OrderStore
	suppliers store.SupplierStore
	products  store.ProductStore
	stock     *StockService
	auditor   *Auditor
	logger    *zap.Logger
}

func NewOrderService(
	orders store.OrderStore,
	suppliers store.SupplierStore,
	products store.ProductStore,
	stock *StockService,
	auditor *Auditor,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orders:    orders,
		suppliers: suppliers,
		products:  products,
		stock:     stock,
		auditor:   auditor,
		logger:    logger,
	}
}

// OrderItemRequest 订单行项
type OrderItemRequest struct {
	ProductID string  `json:"product_id" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" binding:"required,gt=0"`
	BatchNo   string  `json:"batch_no"`
}

// CreateOrderRequest 创建采购订单
type CreateOrderRequest struct {
	SupplierID string             `json:"supplier_id" binding:"required"`
	Notes      string             `json:"notes"`
	Items      []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	ActorID    string             `json:"-"`
}

func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*entity.PurchaseOrder, error) {
	if err := s.checkSupplier(ctx, req.SupplierID); err != nil {
		return nil, err
	}
	items, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	number, err := s.orders.NextOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成订单号失败: %w", err)
	}

	order := &entity.PurchaseOrder{
		ID:          uuid.New().String(),
		OrderNumber: number,
		SupplierID:  req.SupplierID,
		Status:      entity.OrderStatusPending,
		CreatedBy:   req.ActorID,
		Notes:       req.Notes,
		Items:       items,
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	order.RecalcTotals()

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("创建订单失败: %w", err)
	}

	s.auditor.Emit(ctx, &entity.ActivityLog{
		EntityType: "order",
		EntityID:   order.ID,
		Event:      entity.EventOrderCreated,
		ToStatus:   entity.OrderStatusPending,
		Content:    fmt.Sprintf("创建采购订单 %s，共 %d 个行项", order.OrderNumber, len(order.Items)),
		OperatorID: req.ActorID,
	})
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	order, err := s.orders.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Entity: "采购订单", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("查询订单失败: %w", err)
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, q store.OrderQuery) ([]entity.PurchaseOrder, int64, error) {
	if q.Status != "" && !statusKnown(q.Status) {
		return nil, 0, invalidField("status", "未知状态")
	}
	return s.orders.List(ctx, q)
}

func (s *OrderService) GetOrdersBySupplier(ctx context.Context, supplierID string) ([]entity.PurchaseOrder, error) {
	if err := s.checkSupplier(ctx, supplierID); err != nil {
		return nil, err
	}
	return s.orders.FindBySupplier(ctx, supplierID)
}

func (s *OrderService) GetOrdersByDateRange(ctx context.Context, start, end time.Time) ([]entity.PurchaseOrder, error) {
	if end.Before(start) {
		return nil, invalidField("end", "不能早于 start")
	}
	return s.orders.FindByDateRange(ctx, start, end)
}

// UpdateOrderRequest 修改待审订单（整单替换行项）
type UpdateOrderRequest struct {
	Notes   *string            `json:"notes"`
	Items   []OrderItemRequest `json:"items" binding:"omitempty,min=1,dive"`
	ActorID string             `json:"-"`
}

// UpdateOrder 仅 pending 状态允许修改
func (s *OrderService) UpdateOrder(ctx context.Context, id string, req UpdateOrderRequest) (*entity.PurchaseOrder, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.OrderStatusPending {
		return nil, &InvalidTransitionError{OrderID: id, From: order.Status, To: order.Status}
	}

	if req.Notes != nil {
		order.Notes = *req.Notes
	}
	if req.Items != nil {
		items, err := s.buildItems(ctx, req.Items)
		if err != nil {
			return nil, err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		order.Items = items
	}
	order.RecalcTotals()

	ok, err := s.orders.Save(ctx, order, entity.OrderStatusPending)
	if err != nil {
		return nil, fmt.Errorf("保存订单失败: %w", err)
	}
	if !ok {
		return nil, s.staleOrderError(ctx, id)
	}
	return order, nil
}

// AddItem 向待审订单追加一个行项
func (s *OrderService) AddItem(ctx context.Context, orderID string, req OrderItemRequest) (*entity.PurchaseOrder, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.OrderStatusPending {
		return nil, &InvalidTransitionError{OrderID: orderID, From: order.Status, To: order.Status}
	}

	items, err := s.buildItems(ctx, []OrderItemRequest{req})
	if err != nil {
		return nil, err
	}
	items[0].OrderID = order.ID
	items[0].SortOrder = len(order.Items)
	order.Items = append(order.Items, items[0])
	order.RecalcTotals()

	ok, err := s.orders.Save(ctx, order, entity.OrderStatusPending)
	if err != nil {
		return nil, fmt.Errorf("保存订单失败: %w", err)
	}
	if !ok {
		return nil, s.staleOrderError(ctx, orderID)
	}
	return order, nil
}

// ApproveOrder 审批通过：pending → approved
func (s *OrderService) ApproveOrder(ctx context.Context, id, actorID string) (*entity.PurchaseOrder, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !entity.CanTransition(order.Status, entity.OrderStatusApproved) {
		return nil, &InvalidTransitionError{OrderID: id, From: order.Status, To: entity.OrderStatusApproved}
	}

	now := time.Now()
	ok, err := s.orders.UpdateStatus(ctx, id, entity.OrderStatusPending, entity.OrderStatusApproved, store.OrderPatch{
		ApprovedBy: &actorID,
		ApprovedAt: &now,
	})
	if err != nil {
		return nil, fmt.Errorf("更新订单状态失败: %w", err)
	}
	if !ok {
		// 并发迁移落败，按当前状态报错
		current, gerr := s.GetOrder(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, &InvalidTransitionError{OrderID: id, From: current.Status, To: entity.OrderStatusApproved}
	}

	s.auditor.Emit(ctx, &entity.ActivityLog{
		EntityType: "order",
		EntityID:   id,
		Event:      entity.EventOrderApproved,
		FromStatus: entity.OrderStatusPending,
		ToStatus:   entity.OrderStatusApproved,
		OperatorID: actorID,
	})
	return s.GetOrder(ctx, id)
}

// ProcessOrder 收货入库：approved → processed。
// 先逐行入库（以订单行 ID 为幂等键），全部落账后再迁移状态。
// 中途失败订单停留在 approved，重试会跳过已入库的行，
// 库存不会重复增加。
func (s *OrderService) ProcessOrder(ctx context.Context, id, actorID string) (*entity.PurchaseOrder, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !entity.CanTransition(order.Status, entity.OrderStatusProcessed) {
		return nil, &InvalidTransitionError{OrderID: id, From: order.Status, To: entity.OrderStatusProcessed}
	}

	for i := range order.Items {
		item := &order.Items[i]
		if item.StockedAt != nil {
			continue
		}
		batch, err := s.stock.IncreaseStock(ctx, IncreaseStockRequest{
			ProductID:    item.ProductID,
			Quantity:     item.OrderedQuantity,
			UnitCost:     item.UnitPrice,
			BatchNo:      item.BatchNo,
			Reference:    item.ID,
			SourceItemID: &item.ID,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, fmt.Errorf("订单行 %s 入库失败: %w", item.ID, err)
		}
		if err := s.orders.MarkItemStocked(ctx, item.ID, batch.ID, time.Now()); err != nil {
			return nil, fmt.Errorf("标记订单行已入库失败: %w", err)
		}
	}

	now := time.Now()
	ok, err := s.orders.UpdateStatus(ctx, id, entity.OrderStatusApproved, entity.OrderStatusProcessed, store.OrderPatch{
		ProcessedBy: &actorID,
		ProcessedAt: &now,
	})
	if err != nil {
		return nil, fmt.Errorf("更新订单状态失败: %w", err)
	}
	if !ok {
		current, gerr := s.GetOrder(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, &InvalidTransitionError{OrderID: id, From: current.Status, To: entity.OrderStatusProcessed}
	}

	s.auditor.Emit(ctx, &entity.ActivityLog{
		EntityType: "order",
		EntityID:   id,
		Event:      entity.EventOrderProcessed,
		FromStatus: entity.OrderStatusApproved,
		ToStatus:   entity.OrderStatusProcessed,
		Content:    fmt.Sprintf("收货入库 %d 个行项", len(order.Items)),
		OperatorID: actorID,
	})
	return s.GetOrder(ctx, id)
}

// CancelOrder 取消订单：pending/approved → cancelled
func (s *OrderService) CancelOrder(ctx context.Context, id, reason, actorID string) (*entity.PurchaseOrder, error) {
	if reason == "" {
		return nil, invalidField("reason", "不能为空")
	}
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !entity.CanTransition(order.Status, entity.OrderStatusCancelled) {
		return nil, &InvalidTransitionError{OrderID: id, From: order.Status, To: entity.OrderStatusCancelled}
	}

	ok, err := s.orders.UpdateStatus(ctx, id, order.Status, entity.OrderStatusCancelled, store.OrderPatch{
		CancelReason: &reason,
	})
	if err != nil {
		return nil, fmt.Errorf("更新订单状态失败: %w", err)
	}
	if !ok {
		current, gerr := s.GetOrder(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, &InvalidTransitionError{OrderID: id, From: current.Status, To: entity.OrderStatusCancelled}
	}

	s.auditor.Emit(ctx, &entity.ActivityLog{
		EntityType: "order",
		EntityID:   id,
		Event:      entity.EventOrderCancelled,
		FromStatus: order.Status,
		ToStatus:   entity.OrderStatusCancelled,
		Content:    reason,
		OperatorID: actorID,
	})
	return s.GetOrder(ctx, id)
}

// RecordPaymentRequest 记录付款
type RecordPaymentRequest struct {
	Amount  float64 `json:"amount" binding:"required,gt=0"`
	ActorID string  `json:"-"`
}

// RecordPayment 登记对供应商的付款，维护 paid/due 金额。
// 已取消的订单不允许付款，付款额不能超过未付金额。
func (s *OrderService) RecordPayment(ctx context.Context, id string, req RecordPaymentRequest) (*entity.PurchaseOrder, error) {
	if req.Amount <= 0 {
		return nil, invalidField("amount", "必须大于 0")
	}
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == entity.OrderStatusCancelled {
		return nil, invalidField("order", "已取消的订单不能付款")
	}
	if req.Amount > order.DueAmount {
		return nil, invalidField("amount", fmt.Sprintf("超过未付金额 %.2f", order.DueAmount))
	}

	order.PaidAmount += req.Amount
	order.DueAmount = order.TotalAmount - order.PaidAmount
	ok, err := s.orders.Save(ctx, order, order.Status)
	if err != nil {
		return nil, fmt.Errorf("保存付款失败: %w", err)
	}
	if !ok {
		return nil, s.staleOrderError(ctx, id)
	}

	s.auditor.Emit(ctx, &entity.ActivityLog{
		EntityType: "order",
		EntityID:   id,
		Event:      entity.EventOrderPaid,
		Content:    fmt.Sprintf("付款 %.2f，剩余未付 %.2f", req.Amount, order.DueAmount),
		OperatorID: req.ActorID,
	})
	return order, nil
}

// OrderHistory 订单的工作流事件
func (s *OrderService) OrderHistory(ctx context.Context, id string) ([]entity.ActivityLog, error) {
	if _, err := s.GetOrder(ctx, id); err != nil {
		return nil, err
	}
	return s.auditor.History(ctx, "order", id)
}

// staleOrderError 条件保存落空：重读订单并以其当前状态报错
func (s *OrderService) staleOrderError(ctx context.Context, id string) error {
	current, err := s.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	return &InvalidTransitionError{OrderID: id, From: current.Status, To: current.Status}
}

func (s *OrderService) checkSupplier(ctx context.Context, supplierID string) error {
	if supplierID == "" {
		return invalidField("supplier_id", "不能为空")
	}
	ok, err := s.suppliers.Exists(ctx, supplierID)
	if err != nil {
		return fmt.Errorf("查询供应商失败: %w", err)
	}
	if !ok {
		return &NotFoundError{Entity: "供应商", ID: supplierID}
	}
	return nil
}

func (s *OrderService) buildItems(ctx context.Context, reqs []OrderItemRequest) ([]entity.PurchaseOrderItem, error) {
	if len(reqs) == 0 {
		return nil, invalidField("items", "至少包含一个行项")
	}
	items := make([]entity.PurchaseOrderItem, 0, len(reqs))
	for i, r := range reqs {
		if r.Quantity <= 0 {
			return nil, invalidField("items.quantity", "必须大于 0")
		}
		if r.UnitPrice <= 0 {
			return nil, invalidField("items.unit_price", "必须大于 0")
		}
		ok, err := s.products.Exists(ctx, r.ProductID)
		if err != nil {
			return nil, fmt.Errorf("查询产品失败: %w", err)
		}
		if !ok {
			return nil, &NotFoundError{Entity: "产品", ID: r.ProductID}
		}
		items = append(items, entity.PurchaseOrderItem{
			ID:              uuid.New().String(),
			ProductID:       r.ProductID,
			OrderedQuantity: r.Quantity,
			UnitPrice:       r.UnitPrice,
			BatchNo:         r.BatchNo,
			SortOrder:       i,
		})
	}
	return items, nil
}

func statusKnown(status string) bool {
	for _, s := range entity.OrderStatuses() {
		if s == status {
			return true
		}
	}
	return false
}
