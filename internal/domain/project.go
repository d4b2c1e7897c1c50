package domain

import (
	"context"
	"time"
)

// Project status is a free-text workflow label; these are the values the
// backend itself writes.
const (
	ProjectStatusOnboarding = "Onboarding"
	ProjectStatusActive     = "Active"
	ProjectStatusPastDue    = "Past due"
	ProjectStatusCancelled  = "Cancelled"
)

type Project struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"userId"`
	Name                 string     `json:"name"`
	Status               string     `json:"status"`
	Progress             int        `json:"progress"`
	CurrentPhase         string     `json:"currentPhase"`
	EstimatedDelivery    *time.Time `json:"estimatedDelivery"`
	Plan                 string     `json:"plan"`
	StripeSubscriptionID *string    `json:"stripeSubscriptionId,omitempty"`
	CheckoutSessionID    *string    `json:"-"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

type CreateProjectRequest struct {
	Name              string     `json:"name" binding:"required,max=200"`
	Status            string     `json:"status" binding:"omitempty,max=60"`
	Progress          int        `json:"progress" binding:"min=0,max=100"`
	CurrentPhase      string     `json:"currentPhase" binding:"omitempty,max=120"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery"`
	Plan              string     `json:"plan" binding:"omitempty,max=60"`
}

// UpdateProjectRequest uses pointers so omitted fields are left alone.
type UpdateProjectRequest struct {
	Name              *string    `json:"name" binding:"omitempty,max=200"`
	Status            *string    `json:"status" binding:"omitempty,max=60"`
	Progress          *int       `json:"progress" binding:"omitempty,min=0,max=100"`
	CurrentPhase      *string    `json:"currentPhase" binding:"omitempty,max=120"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery"`
	Plan              *string    `json:"plan" binding:"omitempty,max=60"`
}

// Apply copies the non-nil fields of req onto p.
func (req *UpdateProjectRequest) Apply(p *Project) {
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
	if req.Progress != nil {
		p.Progress = *req.Progress
	}
	if req.CurrentPhase != nil {
		p.CurrentPhase = *req.CurrentPhase
	}
	if req.EstimatedDelivery != nil {
		p.EstimatedDelivery = req.EstimatedDelivery
	}
	if req.Plan != nil {
		p.Plan = *req.Plan
	}
}

type ProjectRepository interface {
	Create(ctx context.Context, project *Project) error
	GetByID(ctx context.Context, id string) (*Project, error)
	// ListByUser returns projects newest first.
	ListByUser(ctx context.Context, userID string) ([]Project, error)
	// GetLatestByUser returns the most recently created project.
	GetLatestByUser(ctx context.Context, userID string) (*Project, error)
	ListAll(ctx context.Context) ([]Project, error)
	Update(ctx context.Context, project *Project) error
	Delete(ctx context.Context, id string) error
	// UpdateStatusBySubscription sets plan (when non-empty) on every project
	// bound to a Stripe subscription, and status on those whose current
	// status is in onlyFrom (all of them when onlyFrom is empty).
	UpdateStatusBySubscription(ctx context.Context, subscriptionID, status, plan string, onlyFrom []string) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type ProjectUsecase interface {
	ListMine(ctx context.Context) ([]Project, error)
	GetMine(ctx context.Context, projectID string) (*Project, error)
}
