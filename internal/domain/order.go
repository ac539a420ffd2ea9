package domain

import (
	"strings"
	"time"
)

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order awaits payment completion.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid indicates payment succeeded.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusProcessing indicates the order is being prepared for handoff.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order has been handed to a delivery company.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusCompleted indicates the order has been delivered and closed.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCanceled indicates the order has been canceled.
	OrderStatusCanceled OrderStatus = "canceled"
)

// DeliveryStatus is the fixed internal vocabulary for shipment progress,
// used uniformly regardless of provider.
type DeliveryStatus string

const (
	// DeliveryStatusUnassigned is the zero state before dispatch.
	DeliveryStatusUnassigned DeliveryStatus = "unassigned"
	// DeliveryStatusAssigned indicates the order was accepted by a delivery company.
	DeliveryStatusAssigned DeliveryStatus = "assigned"
	// DeliveryStatusPickedUp indicates the parcel left the store.
	DeliveryStatusPickedUp DeliveryStatus = "picked_up"
	// DeliveryStatusInTransit indicates the parcel is moving through the carrier network.
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	// DeliveryStatusOutForDelivery indicates the parcel is on the last leg.
	DeliveryStatusOutForDelivery DeliveryStatus = "out_for_delivery"
	// DeliveryStatusDelivered indicates successful delivery.
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	// DeliveryStatusFailed indicates a failed delivery attempt.
	DeliveryStatusFailed DeliveryStatus = "delivery_failed"
	// DeliveryStatusReturned indicates the parcel was returned to the store.
	DeliveryStatusReturned DeliveryStatus = "returned"
	// DeliveryStatusCancelled indicates the shipment was cancelled.
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

// ValidDeliveryStatus reports whether raw (already normalised) is one of the
// eight post-dispatch internal delivery statuses.
func ValidDeliveryStatus(raw string) bool {
	switch DeliveryStatus(raw) {
	case DeliveryStatusAssigned, DeliveryStatusPickedUp, DeliveryStatusInTransit,
		DeliveryStatusOutForDelivery, DeliveryStatusDelivered, DeliveryStatusFailed,
		DeliveryStatusReturned, DeliveryStatusCancelled:
		return true
	default:
		return false
	}
}

// OrderCustomer is the customer snapshot carried on the order document.
type OrderCustomer struct {
	Name    string
	Phone   string
	Email   string
	City    string
	Address string
	Zip     string
}

// OrderDelivery groups the delivery fields the dispatch core owns on an order.
type OrderDelivery struct {
	CompanyID   string
	CompanyCode string
	CompanyName string
	Status      DeliveryStatus
	// TrackingNumber is canonical; LegacyTrackingNumber mirrors it for older
	// consumers and must be kept equal whenever either is set.
	TrackingNumber       string
	LegacyTrackingNumber string
	AssignedAt           *time.Time
	Fee                  float64
	Response             map[string]any
	Notes                string
	EstimatedDate        *time.Time
	ActualDate           *time.Time
	StatusUpdated        *time.Time
}

// Order captures the order document subset the delivery core reads and writes.
// The core never mutates order contents or payment fields.
type Order struct {
	ID          string
	OrderNumber string
	Status      OrderStatus
	Customer    OrderCustomer
	ItemsCount  int
	Total       float64
	Currency    string
	Notes       string
	Delivery    OrderDelivery
	Metadata    map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// LastSyncTime carries the storage update time used as an optimistic
	// locking precondition on writes.
	LastSyncTime time.Time
}

// SetTrackingNumber sets both the canonical and legacy tracking fields.
func (o *Order) SetTrackingNumber(tracking string) {
	tracking = strings.TrimSpace(tracking)
	o.Delivery.TrackingNumber = tracking
	o.Delivery.LegacyTrackingNumber = tracking
}

// TrackingNumber returns the canonical tracking number, falling back to the
// legacy mirror for documents written before the rename.
func (o *Order) TrackingNumber() string {
	if t := strings.TrimSpace(o.Delivery.TrackingNumber); t != "" {
		return t
	}
	return strings.TrimSpace(o.Delivery.LegacyTrackingNumber)
}
