package models

import "time"

type InstallmentInterval string

const (
	IntervalMonthly InstallmentInterval = "monthly"
	IntervalDaily   InstallmentInterval = "daily"
)

// InstallmentPlan describes how an order's total is split over time.
// A zero Duration means financing is not available / not tracked.
type InstallmentPlan struct {
	Duration int                 `json:"duration"`
	Interval InstallmentInterval `json:"interval"`
}

type Bicycle struct {
	ID                   int                 `json:"id"`
	Name                 string              `json:"name"`
	Description          string              `json:"description"`
	Price                float64             `json:"price"`
	CategoryID           int                 `json:"category_id"`
	Stock                int                 `json:"stock"`
	Features             []string            `json:"features,omitempty"`
	IsFeatured           bool                `json:"is_featured"`
	InstallmentAvailable bool                `json:"installment_available"`
	InstallmentDuration  int                 `json:"installment_duration"`
	InstallmentInterval  InstallmentInterval `json:"installment_interval"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// Plan returns the bicycle's current installment plan and whether
// financing is offered at all.
func (b *Bicycle) Plan() (InstallmentPlan, bool) {
	if !b.InstallmentAvailable || b.InstallmentDuration <= 0 {
		return InstallmentPlan{}, false
	}
	return InstallmentPlan{Duration: b.InstallmentDuration, Interval: b.InstallmentInterval}, true
}

type CreateBicycleRequest struct {
	Name                 string              `json:"name" binding:"required"`
	Description          string              `json:"description"`
	Price                float64             `json:"price" binding:"required,gt=0"`
	CategoryID           int                 `json:"category_id" binding:"required"`
	Stock                int                 `json:"stock" binding:"gte=0"`
	Features             []string            `json:"features"`
	IsFeatured           bool                `json:"is_featured"`
	InstallmentAvailable bool                `json:"installment_available"`
	InstallmentDuration  int                 `json:"installment_duration" binding:"gte=0"`
	InstallmentInterval  InstallmentInterval `json:"installment_interval" binding:"omitempty,oneof=monthly daily"`
}

type UpdateBicycleRequest struct {
	Name                 string               `json:"name"`
	Description          *string              `json:"description"`
	Price                float64              `json:"price" binding:"omitempty,gt=0"`
	Stock                *int                 `json:"stock" binding:"omitempty,gte=0"`
	Features             []string             `json:"features"`
	IsFeatured           *bool                `json:"is_featured"`
	InstallmentAvailable *bool                `json:"installment_available"`
	InstallmentDuration  *int                 `json:"installment_duration" binding:"omitempty,gte=0"`
	InstallmentInterval  *InstallmentInterval `json:"installment_interval" binding:"omitempty,oneof=monthly daily"`
}
