package entity

import "time"

// Supplier 供应商
type Supplier struct {
	ID      string `json:"id" gorm:"primaryKey;size:36"`
	Code    string `json:"code" gorm:"size:50;uniqueIndex;not null"`
	Name    string `json:"name" gorm:"size:200;not null"`
	Contact string `json:"contact" gorm:"size:100"`
	Phone   string `json:"phone" gorm:"size:50"`
	Address string `json:"address" gorm:"size:500"`
	License string `json:"license" gorm:"size:100"` // 药品经营许可证号
	Status  string `json:"status" gorm:"size:20;default:active"`

	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedBy string    `json:"created_by" gorm:"size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Supplier) TableName() string {
	return "suppliers"
}
