package dispatch

import (
	"strconv"
	"strings"

	domain "github.com/itszainshop-byte/zain/internal/domain"
)

// Extraction holds the tracking number and provider-native status pulled out of
// a provider response body.
type Extraction struct {
	TrackingNumber string
	ProviderStatus string
}

// ResponseAdapter extracts dispatch results from a provider response. Delivery
// companies do not share a response schema, so extraction is isolated behind
// one adapter per known provider family with a generic best-effort fallback.
type ResponseAdapter interface {
	// Name identifies the adapter in logs and stored responses.
	Name() string
	// Matches reports whether this adapter should handle the company.
	Matches(company *domain.DeliveryCompany) bool
	// Extract pulls tracking/status values from the decoded response body.
	Extract(body map[string]any) (Extraction, bool)
}

// DefaultAdapters returns the adapter chain consulted in order; the generic
// adapter is last and matches every company.
func DefaultAdapters() []ResponseAdapter {
	return []ResponseAdapter{
		jsonRPCResultAdapter{},
		genericAdapter{},
	}
}

// jsonRPCResultAdapter unwraps the JSON-RPC "result" envelope before applying
// the shared key candidates. It handles session-style backends (login/password/
// database credentials) that answer {"jsonrpc":"2.0","result":{...}}.
type jsonRPCResultAdapter struct{}

func (jsonRPCResultAdapter) Name() string { return "jsonrpc" }

func (jsonRPCResultAdapter) Matches(company *domain.DeliveryCompany) bool {
	if company == nil {
		return false
	}
	return resolveTransport(company.APIConfiguration) == domain.TransportJSONRPC
}

func (jsonRPCResultAdapter) Extract(body map[string]any) (Extraction, bool) {
	result, ok := body["result"]
	if !ok {
		return extractCandidates(body)
	}
	switch typed := result.(type) {
	case map[string]any:
		if extraction, ok := extractCandidates(typed); ok {
			return extraction, true
		}
	case string:
		if trimmed := strings.TrimSpace(typed); trimmed != "" {
			return Extraction{TrackingNumber: trimmed}, true
		}
	case float64:
		// Some RPC backends answer with the bare record id.
		return Extraction{TrackingNumber: formatNumber(typed)}, true
	}
	return extractCandidates(body)
}

// genericAdapter tries the known response-shape candidates directly on the
// body. It matches every company and terminates the adapter chain.
type genericAdapter struct{}

func (genericAdapter) Name() string { return "generic" }

func (genericAdapter) Matches(*domain.DeliveryCompany) bool { return true }

func (genericAdapter) Extract(body map[string]any) (Extraction, bool) {
	return extractCandidates(body)
}

var trackingKeyCandidates = [][]string{
	{"trackingNumber"},
	{"tracking_number"},
	{"tracking"},
	{"barcode"},
	{"shipmentId"},
	{"shipment_id"},
	{"deliveryId"},
	{"delivery_id"},
	{"data", "trackingNumber"},
	{"data", "tracking_number"},
	{"data", "barcode"},
	{"data", "id"},
}

var statusKeyCandidates = [][]string{
	{"status"},
	{"deliveryStatus"},
	{"delivery_status"},
	{"state"},
	{"data", "status"},
	{"data", "state"},
}

func extractCandidates(body map[string]any) (Extraction, bool) {
	var extraction Extraction
	for _, path := range trackingKeyCandidates {
		if value, ok := stringAtPath(body, path); ok {
			extraction.TrackingNumber = value
			break
		}
	}
	for _, path := range statusKeyCandidates {
		if value, ok := stringAtPath(body, path); ok {
			extraction.ProviderStatus = value
			break
		}
	}
	return extraction, extraction.TrackingNumber != "" || extraction.ProviderStatus != ""
}

func stringAtPath(body map[string]any, path []string) (string, bool) {
	var current any = body
	for _, segment := range path {
		asMap, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		current, ok = asMap[segment]
		if !ok {
			return "", false
		}
	}
	switch typed := current.(type) {
	case string:
		trimmed := strings.TrimSpace(typed)
		return trimmed, trimmed != ""
	case float64:
		return formatNumber(typed), true
	default:
		return "", false
	}
}

func formatNumber(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
