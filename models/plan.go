package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan is one billing plan of the catalog. The current billing-period
// bounds are maintained by the subscription-schedule webhook events.
type Plan struct {
	ID                 string          `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Name               string          `json:"name" gorm:"not null"`
	Description        string          `json:"description"`
	Price              decimal.Decimal `json:"price" gorm:"type:decimal(12,2)"`
	Currency           string          `json:"currency" gorm:"type:varchar(8);default:'usd'"`
	Interval           string          `json:"interval" gorm:"type:varchar(20);default:'month'"`
	StripePriceId      string          `json:"stripePriceId"`
	CurrentPeriodStart *time.Time      `json:"currentPeriodStart"`
	CurrentPeriodEnd   *time.Time      `json:"currentPeriodEnd"`
	Active             bool            `json:"active" gorm:"default:true"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// PlanCreate is the payload accepted by the plan creation endpoint.
type PlanCreate struct {
	Name          string          `json:"name" binding:"required"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	Interval      string          `json:"interval"`
	StripePriceId string          `json:"stripePriceId"`
}
