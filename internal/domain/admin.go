package domain

import (
	"context"
	"time"
)

// AdminStats contains dashboard statistics
type AdminStats struct {
	TotalUsers         int64                      `json:"totalUsers"`
	UsersByRole        UsersByRole                `json:"usersByRole"`
	TotalProjects      int64                      `json:"totalProjects"`
	ProjectsByStatus   map[string]int64           `json:"projectsByStatus"`
	OnboardingByStatus map[CompletionStatus]int64 `json:"onboardingByStatus"`
	Billing            BillingStats               `json:"billing"`
	SystemHealth       SystemHealth               `json:"systemHealth"`
}

type UsersByRole struct {
	Admin int64 `json:"admin"`
	User  int64 `json:"user"`
}

// BillingStats is derived from the live subscription list.
type BillingStats struct {
	Available               bool   `json:"available"`
	ActiveSubscriptions     int64  `json:"activeSubscriptions"`
	MonthlyRecurringRevenue int64  `json:"monthlyRecurringRevenue"` // cents
	Currency                string `json:"currency"`
}

type SystemHealth struct {
	Status      string `json:"status"`      // "healthy", "degraded"
	LastChecked string `json:"lastChecked"` // ISO8601 timestamp
}

// SubscriptionStatusUnknown is reported when enrichment could not complete.
const SubscriptionStatusUnknown = "unknown"

// AdminUser represents a user for admin management
type AdminUser struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	Name               string    `json:"name"`
	Role               Role      `json:"role"`
	ProjectCount       int64     `json:"projectCount"`
	SubscriptionStatus string    `json:"subscriptionStatus"`
	PlanName           string    `json:"planName"`
	StripeCustomerID   string    `json:"-"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type AdminUserDetail struct {
	User       AdminUser       `json:"user"`
	Projects   []Project       `json:"projects"`
	Onboarding *OnboardingData `json:"onboarding"`
}

// Request structs for User CRUD
type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,max=120"`
	Role     Role   `json:"role" binding:"omitempty,oneof=USER ADMIN"`
	Password string `json:"password" binding:"omitempty,min=8,max=72"`
}

type UpdateUserRequest struct {
	Email string `json:"email" binding:"omitempty,email"`
	Name  string `json:"name" binding:"omitempty,max=120"`
	Role  Role   `json:"role" binding:"omitempty,oneof=USER ADMIN"`
}

// PaginatedResult for list responses
type PaginatedResult[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
}

// ExportFile is a rendered spreadsheet ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AdminRepository defines admin-specific data access
type AdminRepository interface {
	CountUsersByRole(ctx context.Context) (map[Role]int64, error)
	// ListUsers pages users newest first; role filters when non-empty.
	ListUsers(ctx context.Context, role Role, page, pageSize int) ([]AdminUser, int64, error)
	ListAllUsers(ctx context.Context) ([]AdminUser, error)
}

// AdminUsecase defines admin business logic
type AdminUsecase interface {
	// Stats
	GetStats(ctx context.Context) (*AdminStats, error)

	// Users
	ListUsers(ctx context.Context, role Role, page, pageSize int) (*PaginatedResult[AdminUser], error)
	GetUser(ctx context.Context, userID string) (*AdminUserDetail, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (*AdminUser, error)
	UpdateUser(ctx context.Context, userID string, req UpdateUserRequest) (*AdminUser, error)
	DeleteUser(ctx context.Context, userID string) error

	// Projects
	ListUserProjects(ctx context.Context, userID string) ([]Project, error)
	CreateProject(ctx context.Context, userID string, req CreateProjectRequest) (*Project, error)
	UpdateProject(ctx context.Context, projectID string, req UpdateProjectRequest) (*Project, error)
	DeleteProject(ctx context.Context, projectID string) error

	// Billing
	ListSubscriptions(ctx context.Context, params SubscriptionListParams) (*SubscriptionPage, error)

	// Export
	Export(ctx context.Context, format string) (*ExportFile, error)
}
