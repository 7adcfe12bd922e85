package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductTemplate is the product-level entity whose sale price the import
// pipeline updates. Barcoded variants hang off it as Products.
type ProductTemplate struct {
	ID        int             `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	ListPrice decimal.Decimal `db:"list_price" json:"listPrice"`
	CreatedAt time.Time       `db:"created_at" json:"-"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// Product is a sellable variant carrying the barcode used for resolution.
type Product struct {
	ID          int       `db:"id" json:"id"`
	TemplateID  int       `db:"template_id" json:"templateId"`
	Name        string    `db:"name" json:"name"`
	DefaultCode *string   `db:"default_code" json:"defaultCode,omitempty"`
	Barcode     *string   `db:"barcode" json:"barcode,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}
