package entity

import "time"

// Sale 零售销售单。创建即完成，出库通过库存台账按批次先进先出扣减。
type Sale struct {
	ID          string  `json:"id" gorm:"primaryKey;size:36"`
	SaleNumber  string  `json:"sale_number" gorm:"size:32;uniqueIndex;not null"`
	TotalAmount float64 `json:"total_amount" gorm:"type:decimal(15,2);not null;default:0"`

	SoldBy    string    `json:"sold_by" gorm:"size:36;not null"`
	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []SaleItem `json:"items,omitempty" gorm:"foreignKey:SaleID"`
}

func (Sale) TableName() string {
	return "sales"
}

// SaleItem 销售行项
type SaleItem struct {
	ID         string  `json:"id" gorm:"primaryKey;size:36"`
	SaleID     string  `json:"sale_id" gorm:"size:36;not null;index"`
	ProductID  string  `json:"product_id" gorm:"size:36;not null;index"`
	Quantity   int     `json:"quantity" gorm:"not null"`
	UnitPrice  float64 `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	TotalPrice float64 `json:"total_price" gorm:"type:decimal(15,2);not null"`

	CreatedAt time.Time `json:"created_at"`
}

func (SaleItem) TableName() string {
	return "sale_items"
}
