package dispatch

import (
	"strings"
	"time"

	domain "github.com/itszainshop-byte/zain/internal/domain"
)

// MappingReport is the structured result of running the field-mapping validator.
// Validators never return Go errors for validation outcomes; callers branch on OK.
type MappingReport struct {
	OK      bool
	Missing []string
	// Payload is built from ALL mappings (required and optional) and serves
	// both as the outbound request body and as the preview returned to
	// callers before they commit to a send.
	Payload map[string]any
}

// legacyFieldAliases maps internal field spellings onto equivalent lookups so
// mappings written against older document shapes keep resolving.
var legacyFieldAliases = map[string][]string{
	"trackingNumber":         {"deliveryTrackingNumber"},
	"deliveryTrackingNumber": {"trackingNumber"},
	"orderNumber":            {"id"},
	"phone":                  {"customer.phone"},
	"city":                   {"customer.city"},
	"address":                {"customer.address"},
}

// ValidateRequiredMappings resolves every configured field mapping against the
// order and reports the required ones that could not be resolved. A value
// counts as present only when it is non-nil and, for strings, non-empty after
// trim.
func ValidateRequiredMappings(order *domain.Order, company *domain.DeliveryCompany) MappingReport {
	report := MappingReport{
		OK:      true,
		Missing: []string{},
		Payload: map[string]any{},
	}
	if company == nil {
		return report
	}

	for _, mapping := range company.FieldMappings {
		companyField := strings.TrimSpace(mapping.CompanyField)
		internalField := strings.TrimSpace(mapping.InternalField)
		if companyField == "" || internalField == "" {
			continue
		}

		value, ok := resolveOrderField(order, internalField)
		if ok {
			report.Payload[companyField] = value
			continue
		}
		if mapping.Required {
			report.OK = false
			report.Missing = append(report.Missing, internalField)
		}
	}

	return report
}

// resolveOrderField looks up a (possibly dotted) internal field path on the
// order, trying legacy aliases when the direct lookup comes back empty.
func resolveOrderField(order *domain.Order, path string) (any, bool) {
	if order == nil {
		return nil, false
	}
	if value, ok := lookupOrderPath(order, path); ok {
		return value, true
	}
	for _, alias := range legacyFieldAliases[path] {
		if value, ok := lookupOrderPath(order, alias); ok {
			return value, true
		}
	}
	return nil, false
}

func lookupOrderPath(order *domain.Order, path string) (any, bool) {
	switch path {
	case "id", "_id":
		return presentString(order.ID)
	case "orderNumber", "order_number":
		return presentString(order.OrderNumber)
	case "status":
		return presentString(string(order.Status))
	case "notes":
		return presentString(order.Notes)
	case "currency":
		return presentString(order.Currency)
	case "total":
		return order.Total, true
	case "itemsCount", "items_count":
		return order.ItemsCount, true
	case "customer.name", "customerName":
		return presentString(order.Customer.Name)
	case "customer.phone", "customerPhone":
		return presentString(order.Customer.Phone)
	case "customer.email", "customerEmail":
		return presentString(order.Customer.Email)
	case "customer.city":
		return presentString(order.Customer.City)
	case "customer.address":
		return presentString(order.Customer.Address)
	case "customer.zip":
		return presentString(order.Customer.Zip)
	case "deliveryTrackingNumber":
		return presentString(order.Delivery.TrackingNumber)
	case "trackingNumber":
		return presentString(order.Delivery.LegacyTrackingNumber)
	case "deliveryStatus":
		return presentString(string(order.Delivery.Status))
	case "deliveryFee":
		return order.Delivery.Fee, true
	case "deliveryNotes":
		return presentString(order.Delivery.Notes)
	case "deliveryEstimatedDate":
		return presentTime(order.Delivery.EstimatedDate)
	case "createdAt":
		return presentTime(&order.CreatedAt)
	}

	if rest, ok := strings.CutPrefix(path, "metadata."); ok {
		return lookupNested(order.Metadata, rest)
	}
	return lookupNested(order.Metadata, path)
}

// lookupNested walks dotted segments through nested string-keyed maps.
func lookupNested(values map[string]any, path string) (any, bool) {
	if len(values) == 0 || path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	var current any = values
	for _, segment := range segments {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = asMap[segment]
		if !ok {
			return nil, false
		}
	}
	return presentValue(current)
}

func presentValue(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case string:
		return presentString(v)
	case *string:
		if v == nil {
			return nil, false
		}
		return presentString(*v)
	case *time.Time:
		return presentTime(v)
	default:
		return value, true
	}
}

func presentString(value string) (any, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, false
	}
	return trimmed, true
}

func presentTime(value *time.Time) (any, bool) {
	if value == nil || value.IsZero() {
		return nil, false
	}
	return value.UTC().Format(time.RFC3339), true
}
