package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ContactNumberDigits is the exact number of digits a contact number must carry.
const ContactNumberDigits = 10

// MaxPrice is the largest price the listings table can hold (NUMERIC(12, 2)).
const MaxPrice = 9999999999.99

var requestOrder = []RequestStatus{RequestPending, RequestAccepted, RequestPickedUp, RequestPaymentReceived}

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleHomeowner, RoleCollector, RoleCorporation:
		return true
	}
	return false
}

// CanOwnListings reports whether actors with this role may post listings.
func (r Role) CanOwnListings() bool {
	return r == RoleHomeowner || r == RoleCollector
}

// RequestType returns the request type raised by this role.
func (r Role) RequestType() (RequestType, bool) {
	switch r {
	case RoleCollector:
		return RequestTypeCollector, true
	case RoleCorporation:
		return RequestTypeCorporation, true
	}
	return "", false
}

// Audience returns the owner role whose listings this role discovers and requests:
// collectors buy from homeowners, corporations buy from collectors.
func (r Role) Audience() (Role, bool) {
	switch r {
	case RoleCollector:
		return RoleHomeowner, true
	case RoleCorporation:
		return RoleCollector, true
	}
	return "", false
}

// Valid reports whether s is a canonical listing status.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingOpen, ListingSold, ListingClosed:
		return true
	}
	return false
}

// Valid reports whether s is a known request status.
func (s RequestStatus) Valid() bool {
	return s.rank() >= 0
}

func (s RequestStatus) rank() int {
	for i, v := range requestOrder {
		if v == s {
			return i
		}
	}
	return -1
}

// Next returns the status that follows s, or false when s is terminal or unknown.
func (s RequestStatus) Next() (RequestStatus, bool) {
	i := s.rank()
	if i < 0 || i == len(requestOrder)-1 {
		return "", false
	}
	return requestOrder[i+1], true
}

// IsAcceptedOrLater reports whether pickup details must be present for s.
func (s RequestStatus) IsAcceptedOrLater() bool {
	return s.rank() >= 1
}

// Terminal reports whether no further transition leaves s.
func (s RequestStatus) Terminal() bool {
	return s == RequestPaymentReceived
}

// ParsePrice parses a non-negative decimal price and rounds it to cents.
func ParsePrice(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: price is required", ErrValidation)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: price %q is not a number", ErrValidation, raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	v = math.Round(v*100) / 100
	if v > MaxPrice {
		return 0, fmt.Errorf("%w: price must not exceed %.2f", ErrValidation, MaxPrice)
	}
	return v, nil
}

// FormatPrice renders a price the way ParsePrice accepts it back.
func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NormalizeContactNumber strips every non-digit and requires exactly ten digits.
func NormalizeContactNumber(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: contact number is required", ErrValidation)
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if len(digits) != ContactNumberDigits {
		return "", fmt.Errorf("%w: contact number must be exactly %d digits", ErrValidation, ContactNumberDigits)
	}
	return digits, nil
}

// ValidContactNumber reports whether s is already a normalized contact number.
func ValidContactNumber(s string) bool {
	if len(s) != ContactNumberDigits {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseWasteType resolves a category case-insensitively. Empty defaults to Plastic.
func ParseWasteType(raw string) (WasteType, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return WastePlastic, nil
	}
	for _, wt := range WasteTypes() {
		if strings.EqualFold(raw, string(wt)) {
			return wt, nil
		}
	}
	return "", fmt.Errorf("%w: unknown waste type %q", ErrValidation, raw)
}

// WasteTypes lists the accepted categories.
func WasteTypes() []WasteType {
	return []WasteType{WastePlastic, WasteElectronics, WastePaper, WasteMetal, WasteGlass}
}
