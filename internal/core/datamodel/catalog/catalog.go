// Package catalog holds the persistence models for products, labs and
// subcategories.
package catalog

import "time"

type Product struct {
	ProductID     int64     `gorm:"column:product_id;primaryKey"`
	ProductName   string    `gorm:"column:product_name;size:255;not null"`
	Description   *string   `gorm:"column:description"`
	PriceCents    int64     `gorm:"column:price_cents;not null"`
	StockQuantity int       `gorm:"column:stock_quantity;not null"`
	Ages          *string   `gorm:"column:ages;size:50"`
	SupportInst   *string   `gorm:"column:support_instances"`
	LabID         *int64    `gorm:"column:lab_id;index"`
	SubcategoryID int64     `gorm:"column:subcategory_id;not null;index"`
	IsActive      bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (Product) TableName() string { return "products" }

type Lab struct {
	LabID       int64   `gorm:"column:lab_id;primaryKey"`
	LabName     string  `gorm:"column:lab_name;size:255;not null"`
	Description *string `gorm:"column:description"`
	LabFileURL  *string `gorm:"column:lab_file_url;size:500"`
	VideoURL    *string `gorm:"column:video_url;size:500"`
}

func (Lab) TableName() string { return "labs" }

type Subcategory struct {
	SubcategoryID   int64   `gorm:"column:subcategory_id;primaryKey"`
	SubcategoryName string  `gorm:"column:subcategory_name;size:100;not null"`
	Description     *string `gorm:"column:description"`
}

func (Subcategory) TableName() string { return "subcategories" }
