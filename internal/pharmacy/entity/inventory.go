package entity

import "time"

// 库存流水类型
const (
	MovementPurchaseIn   = "PURCHASE_IN"   // 采购入库
	MovementSaleOut      = "SALE_OUT"      // 销售出库
	MovementManualOut    = "MANUAL_OUT"    // 手工出库/报损
	MovementSaleReversal = "SALE_REVERSAL" // 销售失败冲正
)

// ProductBatch 药品批次库存。Quantity 不允许为负，
// 批次数量只由库存台账（stock ledger）写入。
type ProductBatch struct {
	ID        string  `json:"id" gorm:"primaryKey;size:36"`
	ProductID string  `json:"product_id" gorm:"size:36;not null;index"`
	BatchNo   string  `json:"batch_no" gorm:"size:50;not null;index"`
	Quantity  int     `json:"quantity" gorm:"not null;default:0"`
	UnitCost  float64 `json:"unit_cost" gorm:"type:decimal(12,4);default:0"`

	// 采购入库的批次回溯到来源订单行；其它途径入库时为空
	SourceItemID *string `json:"source_item_id" gorm:"size:36;index"`

	ExpiryDate *time.Time `json:"expiry_date"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (ProductBatch) TableName() string {
	return "product_batches"
}

// StockMovement 库存流水（只追加）。入库为正数，出库为负数。
// Reference 是入库幂等键：同一 reference 的采购入库只落账一次。
type StockMovement struct {
	ID           string `json:"id" gorm:"primaryKey;size:36"`
	ProductID    string `json:"product_id" gorm:"size:36;not null;index"`
	BatchID      string `json:"batch_id" gorm:"size:36;not null;index"`
	MovementType string `json:"movement_type" gorm:"size:20;not null"`
	Quantity     int    `json:"quantity" gorm:"not null"`
	Reference    string `json:"reference" gorm:"size:64;index"`

	CreatedBy string    `json:"created_by" gorm:"size:36"`
	CreatedAt time.Time `json:"created_at"`
}

func (StockMovement) TableName() string {
	return "stock_movements"
}
