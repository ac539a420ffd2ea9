package services

import (
	"context"
	"time"

	domain "github.com/itszainshop-byte/zain/internal/domain"
	"github.com/itszainshop-byte/zain/internal/dispatch"
)

// DeliveryService orchestrates dispatching orders to delivery companies,
// previewing validator runs, and applying provider status webhooks.
type DeliveryService interface {
	SendOrder(ctx context.Context, cmd SendOrderCommand) (SendOrderResult, error)
	BatchSendOrders(ctx context.Context, cmd BatchSendCommand) (BatchSendResult, error)
	BatchAssign(ctx context.Context, cmd BatchAssignCommand) (BatchAssignResult, error)
	DeliveryStatusFor(ctx context.Context, orderID string) (DeliveryStatusResult, error)
	ValidateMappings(ctx context.Context, cmd ValidateMappingsCommand) (MappingValidationResult, error)
	ValidateMappingsAll(ctx context.Context, cmd ValidateMappingsAllCommand) ([]MappingValidationResult, error)
	ValidateConfig(ctx context.Context, companyID string) (ConfigValidationResult, error)
	Proxy(ctx context.Context, cmd ProxyCommand) (ProxyResult, error)
	ApplyStatusWebhook(ctx context.Context, cmd WebhookCommand) (WebhookResult, error)
}

// CompanyService manages delivery-company configuration records.
type CompanyService interface {
	Create(ctx context.Context, cmd UpsertCompanyCommand) (domain.DeliveryCompany, error)
	Update(ctx context.Context, companyID string, cmd UpsertCompanyCommand) (domain.DeliveryCompany, error)
	Delete(ctx context.Context, companyID string) error
	Get(ctx context.Context, companyID string) (domain.DeliveryCompany, error)
	GetByCode(ctx context.Context, code string) (domain.DeliveryCompany, error)
	List(ctx context.Context, filter CompanyListFilter) (domain.CursorPage[domain.DeliveryCompany], error)
}

// SystemService aggregates utility endpoints such as health checks.
type SystemService interface {
	HealthReport(ctx context.Context) (domain.SystemHealthReport, error)
}

// DeliveryEventPublisher publishes delivery domain events for downstream consumers.
type DeliveryEventPublisher interface {
	PublishDeliveryEvent(ctx context.Context, event DeliveryEvent) error
}

// DeliveryEvent captures metadata for emitted delivery events.
type DeliveryEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	CompanyID      string
	CompanyCode    string
	TrackingNumber string
	DeliveryStatus string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// Command and DTO definitions ------------------------------------------------

// SendOrderCommand requests dispatching a single order. When neither CompanyID
// nor CompanyCode is set the active default company is used, falling back to
// the first active company by name.
type SendOrderCommand struct {
	OrderID     string
	CompanyID   string
	CompanyCode string
	DeliveryFee *float64
	Notes       string
}

// SendOrderResult reports a successful dispatch.
type SendOrderResult struct {
	Order          domain.Order
	Company        CompanyRef
	TrackingNumber string
	DeliveryStatus domain.DeliveryStatus
	Response       map[string]any
}

// BatchSendCommand dispatches several orders to one company sequentially.
type BatchSendCommand struct {
	OrderIDs    []string
	CompanyID   string
	CompanyCode string
	DeliveryFee *float64
	StopOnError bool
}

// BatchSendResult summarises a batch dispatch run.
type BatchSendResult struct {
	Total     int
	Succeeded int
	Failed    int
	Company   CompanyRef
	Results   []BatchSendEntry
}

// BatchSendEntry is the per-order outcome within a batch dispatch.
type BatchSendEntry struct {
	OrderID        string
	OK             bool
	TrackingNumber string
	DeliveryStatus string
	Error          string
}

// BatchAssignCommand assigns a company to orders without calling the provider.
type BatchAssignCommand struct {
	OrderIDs       []string
	CompanyID      string
	TrackingNumber string
	DeliveryStatus string
	OrderStatus    string
}

// BatchAssignResult reports how many orders were modified.
type BatchAssignResult struct {
	Total    int
	Modified int
	Failed   []BatchAssignFailure
}

// BatchAssignFailure records a per-order assignment failure.
type BatchAssignFailure struct {
	OrderID string
	Error   string
}

// DeliveryStatusResult is the current delivery state of an order.
type DeliveryStatusResult struct {
	OrderID        string
	OrderNumber    string
	Company        CompanyRef
	DeliveryStatus domain.DeliveryStatus
	TrackingNumber string
	AssignedAt     *time.Time
	StatusUpdated  *time.Time
	EstimatedDate  *time.Time
	ActualDate     *time.Time
}

// CompanyRef is the identity subset of a company carried in results.
type CompanyRef struct {
	ID   string
	Code string
	Name string
}

// ValidateMappingsCommand previews the field-mapping validator for one company.
type ValidateMappingsCommand struct {
	OrderID     string
	CompanyID   string
	CompanyCode string
}

// ValidateMappingsAllCommand previews mappings against several companies.
type ValidateMappingsAllCommand struct {
	OrderID    string
	CompanyIDs []string
	ActiveOnly bool
}

// MappingValidationResult pairs a company with its mapping report for an order.
type MappingValidationResult struct {
	Company CompanyRef
	Report  dispatch.MappingReport
}

// ConfigValidationResult pairs the config report with parameter resolution details.
type ConfigValidationResult struct {
	Company CompanyRef
	Report  dispatch.ConfigReport
	Params  []dispatch.ParamResolution
}

// ProxyCommand forwards a request to a provider URL using stored credentials.
type ProxyCommand struct {
	URL         string
	Method      string
	Headers     map[string]string
	Params      map[string]any
	CompanyID   string
	CompanyCode string
}

// ProxyResult carries the upstream response back to the caller.
type ProxyResult struct {
	StatusCode int
	Body       map[string]any
	RawBody    string
}

// WebhookCommand is the normalised provider status update. Order resolution
// tries OrderID, then OrderNumber, then TrackingNumber against both tracking
// spellings.
type WebhookCommand struct {
	OrderID        string
	OrderNumber    string
	TrackingNumber string
	CompanyID      string
	CompanyCode    string
	Status         string
	Notes          string
	OrderStatus    string
	EstimatedDate  *time.Time
	ActualDate     *time.Time
	OccurredAt     *time.Time
}

// WebhookResult reports the applied status transition.
type WebhookResult struct {
	OrderID        string
	OrderNumber    string
	PreviousStatus domain.DeliveryStatus
	DeliveryStatus domain.DeliveryStatus
	TrackingNumber string
}

// UpsertCompanyCommand carries the writable company fields.
type UpsertCompanyCommand struct {
	Code             string
	Name             string
	IsActive         *bool
	IsDefault        *bool
	APIConfiguration domain.APIConfiguration
	Credentials      domain.CompanyCredentials
	FieldMappings    []domain.FieldMapping
	StatusMappings   []domain.StatusMapping
	AreaMappings     []domain.AreaMapping
	CustomFields     map[string]string
	LastSyncTime     time.Time
}

// CompanyListFilter controls company listing.
type CompanyListFilter struct {
	ActiveOnly bool
	PageSize   int
	PageToken  string
}
