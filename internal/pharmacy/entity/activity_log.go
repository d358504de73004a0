package entity

import "time"

// 工作流事件
const (
	EventOrderCreated   = "order.created"
	EventOrderApproved  = "order.approved"
	EventOrderProcessed = "order.processed"
	EventOrderCancelled = "order.cancelled"
	EventOrderPaid      = "order.paid"
	EventSaleCreated    = "sale.created"
)

// ActivityLog 操作日志。工作流事件尽力而为地写入，
// 写入失败不回滚已经成功的业务操作。
type ActivityLog struct {
	ID         string `json:"id" gorm:"primaryKey;size:36"`
	EntityType string `json:"entity_type" gorm:"size:50;not null;index:idx_activity_entity"` // order/sale/stock
	EntityID   string `json:"entity_id" gorm:"size:36;not null;index:idx_activity_entity"`
	Event      string `json:"event" gorm:"size:50;not null"`

	FromStatus string `json:"from_status" gorm:"size:20"`
	ToStatus   string `json:"to_status" gorm:"size:20"`
	Content    string `json:"content" gorm:"type:text"`

	OperatorID string    `json:"operator_id" gorm:"size:36"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}
