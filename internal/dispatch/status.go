package dispatch

import (
	"strings"

	domain "github.com/itszainshop-byte/zain/internal/domain"
)

var statusWhitespace = strings.NewReplacer(" ", "_", "\t", "_", "-", "_")

// NormalizeProviderStatus trims, case-folds and collapses whitespace and dashes
// to underscores so provider spellings like "Out For Delivery" and
// "out-for-delivery" compare equal.
func NormalizeProviderStatus(raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.Join(strings.Fields(normalized), " ")
	return statusWhitespace.Replace(normalized)
}

// MapStatus translates a provider-native status string into the internal
// delivery status vocabulary.
//
// Resolution order: the company's configured status mappings (first
// case-insensitive match wins), then the normalised value itself when it is
// already one of the internal statuses, then DeliveryStatusAssigned. The
// company may be nil — the webhook path can receive updates before a company
// is resolved — in which case only the fixed-vocabulary fallback applies.
func MapStatus(company *domain.DeliveryCompany, providerStatus string) domain.DeliveryStatus {
	normalized := NormalizeProviderStatus(providerStatus)
	if normalized == "" {
		return domain.DeliveryStatusAssigned
	}

	if company != nil {
		for _, m := range company.StatusMappings {
			// Both sides run through the same normalisation so configured
			// spellings like "In Depot" match "in-depot" and "IN_DEPOT".
			if NormalizeProviderStatus(m.CompanyStatus) != normalized {
				continue
			}
			candidate := NormalizeProviderStatus(m.InternalStatus)
			if domain.ValidDeliveryStatus(candidate) {
				return domain.DeliveryStatus(candidate)
			}
			break
		}
	}

	if domain.ValidDeliveryStatus(normalized) {
		return domain.DeliveryStatus(normalized)
	}

	return domain.DeliveryStatusAssigned
}
