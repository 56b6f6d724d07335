package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reference entity types delivered by the backend. The set is open;
// these are the ones the terminal decodes for validation.
const (
	EntityProduct         = "Product"
	EntityCategory        = "Category"
	EntityTax             = "Tax"
	EntityCrv             = "Crv"
	EntityLookupGroup     = "LookupGroup"
	EntityProductImage    = "ProductImage"
	EntityProductTax      = "ProductTax"
	EntityDeviceInfo      = "DeviceInfo"
	EntityDeviceAttribute = "DeviceAttribute"
	EntityConditionalSale = "ConditionalSale"
)

type Product struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Upc        string          `json:"upc"`
	Price      decimal.Decimal `json:"price"`
	CategoryID string          `json:"category_id"`
	Active     bool            `json:"active"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
}

type Tax struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Rate decimal.Decimal `json:"rate"`
}

// Crv is a container redemption value charge attached to a product.
type Crv struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

type ProductTax struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	TaxID     string `json:"tax_id"`
}
