package entity

import "time"

// Product 药品档案
type Product struct {
	ID          string `json:"id" gorm:"primaryKey;size:36"`
	Code        string `json:"code" gorm:"size:50;uniqueIndex;not null"`
	Name        string `json:"name" gorm:"size:200;not null"`
	GenericName string `json:"generic_name" gorm:"size:200"`
	Category    string `json:"category" gorm:"size:50;index"` // otc/rx/device/other
	Unit        string `json:"unit" gorm:"size:20;not null;default:盒"`
	Spec        string `json:"spec" gorm:"size:200"` // 规格，如 0.25g*24粒
	ShelfLife   int    `json:"shelf_life_months" gorm:"default:0"`
	RetailPrice float64 `json:"retail_price" gorm:"type:decimal(12,2);default:0"`
	Status      string `json:"status" gorm:"size:20;default:active"`

	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}
