package firestore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/itszainshop-byte/zain/internal/domain"
	"github.com/itszainshop-byte/zain/internal/repositories"
	pfirestore "github.com/itszainshop-byte/zain/internal/platform/firestore"
)

const (
	orderCollection      = "orders"
	defaultOrderPageSize = 50
	maxOrderPageSize     = 200
)

// OrderRepository persists order documents in Firestore using optimistic locking.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil)
	return &OrderRepository{base: base, provider: provider}, nil
}

// Insert creates the order document, failing when the id already exists.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, errors.New("order id is required")
	}

	doc := fromDomainOrder(order, time.Now().UTC())
	docRef, err := r.base.DocumentRef(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	if _, err := docRef.Create(ctx, doc); err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.insert", err)
	}
	return r.FindByID(ctx, order.ID)
}

// Update writes the order document. When LastSyncTime is set the write runs in
// a transaction comparing Firestore's update time, so a concurrent writer
// surfaces as a conflict instead of a silent overwrite.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, errors.New("order id is required")
	}

	doc := fromDomainOrder(order, time.Now().UTC())

	if order.LastSyncTime.IsZero() {
		if _, err := r.base.Set(ctx, order.ID, doc); err != nil {
			return domain.Order{}, err
		}
		return r.FindByID(ctx, order.ID)
	}

	if err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef, err := r.base.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		if !snap.UpdateTime.Equal(order.LastSyncTime) {
			return status.Error(codes.Aborted, "order stale update")
		}
		return tx.Set(docRef, doc)
	}); err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.update", err)
	}

	return r.FindByID(ctx, order.ID)
}

// FindByID loads the order by document id.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, errors.New("order id is required")
	}

	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return hydrateOrder(doc), nil
}

// List returns a cursor page of orders matching the filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = defaultOrderPageSize
	}
	if pageSize > maxOrderPageSize {
		pageSize = maxOrderPageSize
	}

	cursor, err := decodeOrderCursor(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if len(filter.Status) == 1 {
			q = q.Where("status", "==", filter.Status[0])
		} else if len(filter.Status) > 1 {
			q = q.Where("status", "in", filter.Status)
		}
		if len(filter.DeliveryStatus) == 1 {
			q = q.Where("delivery.status", "==", filter.DeliveryStatus[0])
		} else if len(filter.DeliveryStatus) > 1 {
			q = q.Where("delivery.status", "in", filter.DeliveryStatus)
		}
		if id := strings.TrimSpace(filter.CompanyID); id != "" {
			q = q.Where("delivery.companyId", "==", id)
		}
		if filter.Unassigned {
			q = q.Where("delivery.companyId", "==", "")
		}
		if number := strings.TrimSpace(filter.OrderNumber); number != "" {
			q = q.Where("orderNumber", "==", number)
		}
		if tracking := strings.TrimSpace(filter.TrackingNumber); tracking != "" {
			q = q.Where("delivery.deliveryTrackingNumber", "==", tracking)
		}
		if tracking := strings.TrimSpace(filter.LegacyTracking); tracking != "" {
			q = q.Where("delivery.trackingNumber", "==", tracking)
		}
		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", *filter.DateRange.From)
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<", *filter.DateRange.To)
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if cursor != nil {
			q = q.StartAfter(cursor.CreatedAt, cursor.ID)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{}
	for i, doc := range docs {
		if i == pageSize {
			page.NextPageToken = encodeOrderCursor(orderCursor{
				CreatedAt: docs[i-1].Data.CreatedAt,
				ID:        docs[i-1].ID,
			})
			break
		}
		page.Items = append(page.Items, hydrateOrder(doc))
	}
	return page, nil
}

type orderCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

func encodeOrderCursor(c orderCursor) string {
	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeOrderCursor(token string) (*orderCursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("orders.list: invalid page token: %w", err)
	}
	var cursor orderCursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return nil, fmt.Errorf("orders.list: invalid page token: %w", err)
	}
	return &cursor, nil
}

type orderDocument struct {
	OrderNumber string                `firestore:"orderNumber"`
	Status      string                `firestore:"status"`
	Customer    orderCustomerDocument `firestore:"customer"`
	ItemsCount  int                   `firestore:"itemsCount"`
	Total       float64               `firestore:"total"`
	Currency    string                `firestore:"currency"`
	Notes       string                `firestore:"notes,omitempty"`
	Delivery    orderDeliveryDocument `firestore:"delivery"`
	Metadata    map[string]any        `firestore:"metadata,omitempty"`
	CreatedAt   time.Time             `firestore:"createdAt"`
	UpdatedAt   time.Time             `firestore:"updatedAt"`
}

type orderCustomerDocument struct {
	Name    string `firestore:"name"`
	Phone   string `firestore:"phone"`
	Email   string `firestore:"email,omitempty"`
	City    string `firestore:"city,omitempty"`
	Address string `firestore:"address,omitempty"`
	Zip     string `firestore:"zip,omitempty"`
}

type orderDeliveryDocument struct {
	CompanyID   string `firestore:"companyId"`
	CompanyCode string `firestore:"companyCode,omitempty"`
	CompanyName string `firestore:"companyName,omitempty"`
	Status      string `firestore:"status"`
	// Both tracking spellings persist so documents written before the rename
	// keep reading back.
	TrackingNumber       string         `firestore:"deliveryTrackingNumber,omitempty"`
	LegacyTrackingNumber string         `firestore:"trackingNumber,omitempty"`
	AssignedAt           *time.Time     `firestore:"assignedAt,omitempty"`
	Fee                  float64        `firestore:"fee"`
	Response             map[string]any `firestore:"response,omitempty"`
	Notes                string         `firestore:"notes,omitempty"`
	EstimatedDate        *time.Time     `firestore:"estimatedDate,omitempty"`
	ActualDate           *time.Time     `firestore:"actualDate,omitempty"`
	StatusUpdated        *time.Time     `firestore:"statusUpdated,omitempty"`
}

func hydrateOrder(doc pfirestore.Document[orderDocument]) domain.Order {
	order := toDomainOrder(doc.Data)
	order.ID = doc.ID
	order.LastSyncTime = doc.UpdateTime
	if order.CreatedAt.IsZero() {
		order.CreatedAt = doc.CreateTime
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = doc.UpdateTime
	}
	return order
}

func toDomainOrder(doc orderDocument) domain.Order {
	deliveryStatus := domain.DeliveryStatus(strings.TrimSpace(doc.Delivery.Status))
	if deliveryStatus == "" {
		deliveryStatus = domain.DeliveryStatusUnassigned
	}
	return domain.Order{
		OrderNumber: strings.TrimSpace(doc.OrderNumber),
		Status:      domain.OrderStatus(strings.TrimSpace(doc.Status)),
		Customer: domain.OrderCustomer{
			Name:    strings.TrimSpace(doc.Customer.Name),
			Phone:   strings.TrimSpace(doc.Customer.Phone),
			Email:   strings.TrimSpace(doc.Customer.Email),
			City:    strings.TrimSpace(doc.Customer.City),
			Address: strings.TrimSpace(doc.Customer.Address),
			Zip:     strings.TrimSpace(doc.Customer.Zip),
		},
		ItemsCount: doc.ItemsCount,
		Total:      doc.Total,
		Currency:   strings.TrimSpace(doc.Currency),
		Notes:      doc.Notes,
		Delivery: domain.OrderDelivery{
			CompanyID:            strings.TrimSpace(doc.Delivery.CompanyID),
			CompanyCode:          strings.TrimSpace(doc.Delivery.CompanyCode),
			CompanyName:          strings.TrimSpace(doc.Delivery.CompanyName),
			Status:               deliveryStatus,
			TrackingNumber:       strings.TrimSpace(doc.Delivery.TrackingNumber),
			LegacyTrackingNumber: strings.TrimSpace(doc.Delivery.LegacyTrackingNumber),
			AssignedAt:           doc.Delivery.AssignedAt,
			Fee:                  doc.Delivery.Fee,
			Response:             doc.Delivery.Response,
			Notes:                doc.Delivery.Notes,
			EstimatedDate:        doc.Delivery.EstimatedDate,
			ActualDate:           doc.Delivery.ActualDate,
			StatusUpdated:        doc.Delivery.StatusUpdated,
		},
		Metadata:  doc.Metadata,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func fromDomainOrder(order domain.Order, now time.Time) orderDocument {
	doc := orderDocument{
		OrderNumber: strings.TrimSpace(order.OrderNumber),
		Status:      string(order.Status),
		Customer: orderCustomerDocument{
			Name:    strings.TrimSpace(order.Customer.Name),
			Phone:   strings.TrimSpace(order.Customer.Phone),
			Email:   strings.TrimSpace(order.Customer.Email),
			City:    strings.TrimSpace(order.Customer.City),
			Address: strings.TrimSpace(order.Customer.Address),
			Zip:     strings.TrimSpace(order.Customer.Zip),
		},
		ItemsCount: order.ItemsCount,
		Total:      order.Total,
		Currency:   strings.TrimSpace(order.Currency),
		Notes:      order.Notes,
		Delivery: orderDeliveryDocument{
			CompanyID:            strings.TrimSpace(order.Delivery.CompanyID),
			CompanyCode:          strings.TrimSpace(order.Delivery.CompanyCode),
			CompanyName:          strings.TrimSpace(order.Delivery.CompanyName),
			Status:               string(order.Delivery.Status),
			TrackingNumber:       strings.TrimSpace(order.Delivery.TrackingNumber),
			LegacyTrackingNumber: strings.TrimSpace(order.Delivery.LegacyTrackingNumber),
			AssignedAt:           order.Delivery.AssignedAt,
			Fee:                  order.Delivery.Fee,
			Response:             order.Delivery.Response,
			Notes:                order.Delivery.Notes,
			EstimatedDate:        order.Delivery.EstimatedDate,
			ActualDate:           order.Delivery.ActualDate,
			StatusUpdated:        order.Delivery.StatusUpdated,
		},
		Metadata:  order.Metadata,
		CreatedAt: order.CreatedAt,
		UpdatedAt: now,
	}
	if doc.Delivery.Status == "" {
		doc.Delivery.Status = string(domain.DeliveryStatusUnassigned)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	return doc
}

// CollectionName exposes the Firestore collection for migration tooling.
func (r *OrderRepository) CollectionName() string {
	return orderCollection
}
