package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DealStatus string

const (
	DealStatusPaid   DealStatus = "paid"
	DealStatusUnpaid DealStatus = "unpaid"
)

func (s DealStatus) Valid() bool {
	return s == DealStatusPaid || s == DealStatusUnpaid
}

type ActivityType string

const (
	ActivityTypeGmail   ActivityType = "gmail"
	ActivityTypeTwilio  ActivityType = "twilio"
	ActivityTypeShopify ActivityType = "shopify"
	ActivityTypeNote    ActivityType = "note"
)

// Stage is a pipeline column. Stages are seeded and never edited from the board.
type Stage struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	OrderIndex int       `json:"order_index"`
	Color      string    `json:"color"`
	CreatedAt  time.Time `json:"created_at"`
}

type Deal struct {
	ID                 string          `json:"id"`
	DealCode           string          `json:"deal_id"`
	StageID            string          `json:"stage_id"`
	ClientName         string          `json:"client_name"`
	ClientInitials     string          `json:"client_initials"`
	AvatarColor        string          `json:"avatar_color"`
	InterestedProducts string          `json:"interested_products"`
	EstimatedBudget    decimal.Decimal `json:"estimated_budget"`
	Margin             decimal.Decimal `json:"margin"`
	Status             DealStatus      `json:"status"`
	ShippingDate       *string         `json:"shipping_date"` // YYYY-MM-DD
	Notes              *string         `json:"notes"`
	OrderIndex         int             `json:"order_index"`
	CreatedBy          string          `json:"created_by"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	Products   []Product  `json:"products"`
	Tags       []Tag      `json:"tags"`
	Activities []Activity `json:"activities"`
}

// Clone returns a deep copy so board snapshots never share slices with the live projection.
func (d Deal) Clone() Deal {
	out := d
	if d.ShippingDate != nil {
		v := *d.ShippingDate
		out.ShippingDate = &v
	}
	if d.Notes != nil {
		v := *d.Notes
		out.Notes = &v
	}
	out.Products = append([]Product(nil), d.Products...)
	out.Tags = append([]Tag(nil), d.Tags...)
	out.Activities = make([]Activity, len(d.Activities))
	for i, a := range d.Activities {
		out.Activities[i] = a.Clone()
	}
	return out
}

type Product struct {
	ID          string          `json:"id"`
	DealID      string          `json:"deal_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	OrderIndex  int             `json:"order_index"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RecomputeTotal sets TotalPrice from Quantity and UnitPrice; a caller-supplied total is ignored.
func (p *Product) RecomputeTotal() {
	p.TotalPrice = p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

type Tag struct {
	ID        string    `json:"id"`
	DealID    string    `json:"deal_id"`
	Tag       string    `json:"tag"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

type Activity struct {
	ID           string         `json:"id"`
	DealID       string         `json:"deal_id"`
	ActivityType ActivityType   `json:"activity_type"`
	Title        string         `json:"title"`
	Description  *string        `json:"description"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (a Activity) Clone() Activity {
	out := a
	if a.Description != nil {
		v := *a.Description
		out.Description = &v
	}
	if a.Metadata != nil {
		out.Metadata = make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
