package repositories

import (
	"context"
	"time"

	domain "github.com/itszainshop-byte/zain/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Companies() DeliveryCompanyRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order documents. Update enforces optimistic locking
// when the order carries a LastSyncTime; concurrent writers surface as a
// RepositoryError with IsConflict.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	Update(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// DeliveryCompanyRepository persists delivery-company configuration records.
type DeliveryCompanyRepository interface {
	Insert(ctx context.Context, company domain.DeliveryCompany) (domain.DeliveryCompany, error)
	Update(ctx context.Context, company domain.DeliveryCompany) (domain.DeliveryCompany, error)
	Delete(ctx context.Context, companyID string) error
	FindByID(ctx context.Context, companyID string) (domain.DeliveryCompany, error)
	FindByCode(ctx context.Context, code string) (domain.DeliveryCompany, error)
	List(ctx context.Context, filter CompanyListFilter) (domain.CursorPage[domain.DeliveryCompany], error)
	// FindDefault returns the active default company when one is configured.
	FindDefault(ctx context.Context) (domain.DeliveryCompany, error)
	// ClearDefaults unsets the default flag on every company except keepID,
	// in a single transaction.
	ClearDefaults(ctx context.Context, keepID string) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// OrderListFilter controls order listing for batch dispatch, webhook order
// resolution, and admin views.
type OrderListFilter struct {
	Status         []string
	DeliveryStatus []string
	CompanyID      string
	Unassigned     bool
	OrderNumber    string
	// TrackingNumber matches the canonical tracking field; LegacyTracking
	// matches the spelling used by documents written before the rename.
	TrackingNumber string
	LegacyTracking string
	DateRange      domain.RangeQuery[time.Time]
	Pagination     domain.Pagination
}

// CompanyListFilter controls company listing.
type CompanyListFilter struct {
	ActiveOnly bool
	Pagination domain.Pagination
}
