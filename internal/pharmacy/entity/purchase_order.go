package entity

import "time"

// 采购订单状态
const (
	OrderStatusPending   = "pending"
	OrderStatusApproved  = "approved"
	OrderStatusProcessed = "processed"
	OrderStatusCancelled = "cancelled"
)

// orderTransitions 采购订单状态机：当前状态 → 允许的目标状态。
// processed 和 cancelled 为终态，没有出边。
var orderTransitions = map[string][]string{
	OrderStatusPending:  {OrderStatusApproved, OrderStatusCancelled},
	OrderStatusApproved: {OrderStatusProcessed, OrderStatusCancelled},
}

// CanTransition 判断订单状态迁移是否合法
func CanTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderStatuses 全部合法状态（校验用）
func OrderStatuses() []string {
	return []string{OrderStatusPending, OrderStatusApproved, OrderStatusProcessed, OrderStatusCancelled}
}

// PurchaseOrder 采购订单
type PurchaseOrder struct {
	ID          string `json:"id" gorm:"primaryKey;size:36"`
	OrderNumber string `json:"order_number" gorm:"size:32;uniqueIndex;not null"`
	SupplierID  string `json:"supplier_id" gorm:"size:36;not null;index"`
	Status      string `json:"status" gorm:"size:20;not null;default:pending"`

	// 金额：DueAmount 始终等于 TotalAmount - PaidAmount，且不为负
	TotalAmount float64 `json:"total_amount" gorm:"type:decimal(15,2);default:0"`
	PaidAmount  float64 `json:"paid_amount" gorm:"type:decimal(15,2);default:0"`
	DueAmount   float64 `json:"due_amount" gorm:"type:decimal(15,2);default:0"`

	// 审计：各字段仅由对应的状态迁移写入
	CreatedBy    string     `json:"created_by" gorm:"size:36;not null"`
	ApprovedBy   *string    `json:"approved_by" gorm:"size:36"`
	ApprovedAt   *time.Time `json:"approved_at"`
	ProcessedBy  *string    `json:"processed_by" gorm:"size:36"`
	ProcessedAt  *time.Time `json:"processed_at"`
	CancelReason string     `json:"cancel_reason" gorm:"size:500"`

	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Supplier *Supplier           `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
	Items    []PurchaseOrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}

// RecalcTotals 按行项重算订单金额
func (o *PurchaseOrder) RecalcTotals() {
	var total float64
	for i := range o.Items {
		o.Items[i].TotalPrice = float64(o.Items[i].OrderedQuantity) * o.Items[i].UnitPrice
		total += o.Items[i].TotalPrice
	}
	o.TotalAmount = total
	o.DueAmount = o.TotalAmount - o.PaidAmount
}

// PurchaseOrderItem 采购订单行项。订单离开 pending 后行项不可变；
// StockedBatchID/StockedAt 记录该行库存已落账（process 重试幂等依据）。
type PurchaseOrderItem struct {
	ID              string  `json:"id" gorm:"primaryKey;size:36"`
	OrderID         string  `json:"order_id" gorm:"size:36;not null;index"`
	ProductID       string  `json:"product_id" gorm:"size:36;not null;index"`
	OrderedQuantity int     `json:"ordered_quantity" gorm:"not null"`
	UnitPrice       float64 `json:"unit_price" gorm:"type:decimal(12,4);not null"`
	TotalPrice      float64 `json:"total_price" gorm:"type:decimal(15,2);not null"`
	BatchNo         string  `json:"batch_no" gorm:"size:50"` // 供应商批号，入库时沿用

	StockedBatchID *string    `json:"stocked_batch_id" gorm:"size:36"`
	StockedAt      *time.Time `json:"stocked_at"`

	SortOrder int       `json:"sort_order" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PurchaseOrderItem) TableName() string {
	return "purchase_order_items"
}
