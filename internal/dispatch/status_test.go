package dispatch

import (
	"testing"

	domain "github.com/itszainshop-byte/zain/internal/domain"
)

func TestNormalizeProviderStatus(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Delivered", "delivered"},
		{"  Out For Delivery  ", "out_for_delivery"},
		{"out-for-delivery", "out_for_delivery"},
		{"IN\tTRANSIT", "in_transit"},
		{"picked   up", "picked_up"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeProviderStatus(tc.in); got != tc.want {
			t.Errorf("NormalizeProviderStatus(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMapStatusPrefersCompanyMapping(t *testing.T) {
	company := &domain.DeliveryCompany{
		StatusMappings: []domain.StatusMapping{
			{CompanyStatus: "done", InternalStatus: "delivered"},
			{CompanyStatus: "DONE", InternalStatus: "returned"},
		},
	}

	if got := MapStatus(company, "Done"); got != domain.DeliveryStatusDelivered {
		t.Fatalf("MapStatus = %q, want delivered (first match wins)", got)
	}
}

func TestMapStatusRoundTripsSpacedMappings(t *testing.T) {
	company := &domain.DeliveryCompany{
		StatusMappings: []domain.StatusMapping{
			{CompanyStatus: "In Depot", InternalStatus: "picked_up"},
			{CompanyStatus: "On-Route", InternalStatus: "out_for_delivery"},
		},
	}

	cases := []struct {
		in   string
		want domain.DeliveryStatus
	}{
		{"In Depot", domain.DeliveryStatusPickedUp},
		{"in depot", domain.DeliveryStatusPickedUp},
		{"in-depot", domain.DeliveryStatusPickedUp},
		{"IN_DEPOT", domain.DeliveryStatusPickedUp},
		{"On-Route", domain.DeliveryStatusOutForDelivery},
		{"on route", domain.DeliveryStatusOutForDelivery},
	}
	for _, tc := range cases {
		if got := MapStatus(company, tc.in); got != tc.want {
			t.Errorf("MapStatus(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMapStatusIgnoresMappingOutsideVocabulary(t *testing.T) {
	company := &domain.DeliveryCompany{
		StatusMappings: []domain.StatusMapping{
			{CompanyStatus: "done", InternalStatus: "finished"},
		},
	}

	if got := MapStatus(company, "done"); got != domain.DeliveryStatusAssigned {
		t.Fatalf("MapStatus = %q, want assigned fallback for invalid mapping target", got)
	}
}

func TestMapStatusFallsBackToVocabulary(t *testing.T) {
	company := &domain.DeliveryCompany{}

	if got := MapStatus(company, "Out For Delivery"); got != domain.DeliveryStatusOutForDelivery {
		t.Fatalf("MapStatus = %q, want out_for_delivery", got)
	}
	if got := MapStatus(company, "weird-state"); got != domain.DeliveryStatusAssigned {
		t.Fatalf("MapStatus = %q, want assigned default", got)
	}
}

func TestMapStatusNilCompany(t *testing.T) {
	if got := MapStatus(nil, "delivered"); got != domain.DeliveryStatusDelivered {
		t.Fatalf("MapStatus(nil) = %q, want delivered", got)
	}
	if got := MapStatus(nil, "unknown"); got != domain.DeliveryStatusAssigned {
		t.Fatalf("MapStatus(nil) = %q, want assigned", got)
	}
}
