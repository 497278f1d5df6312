package domain

import (
	"time"
)

// Role is the claim an authenticated actor carries.
type Role string

const (
	RoleHomeowner   Role = "homeowner"
	RoleCollector   Role = "collector"
	RoleCorporation Role = "corporation"
)

// Actor is the authenticated identity every mutation is performed as.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// ListingStatus is the lifecycle status of a Listing.
type ListingStatus string

const (
	ListingOpen   ListingStatus = "open"
	ListingSold   ListingStatus = "sold"
	ListingClosed ListingStatus = "closed"
)

// RequestStatus is the lifecycle status of a Request. Values only move forward.
type RequestStatus string

const (
	RequestPending         RequestStatus = "pending"
	RequestAccepted        RequestStatus = "accepted"
	RequestPickedUp        RequestStatus = "picked_up"
	RequestPaymentReceived RequestStatus = "payment_received"
)

// RequestType mirrors the role of the actor who raised the request.
type RequestType string

const (
	RequestTypeCollector   RequestType = "collector"
	RequestTypeCorporation RequestType = "corporation"
)

// WasteType is the closed set of categories a listing can carry.
type WasteType string

const (
	WastePlastic     WasteType = "Plastic"
	WasteElectronics WasteType = "Electronics"
	WastePaper       WasteType = "Paper"
	WasteMetal       WasteType = "Metal"
	WasteGlass       WasteType = "Glass"
)

// Listing is a posted waste item available for pickup or purchase.
type Listing struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"ownerId"`
	OwnerRole   Role          `json:"ownerRole"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Price       float64       `json:"price"`
	WasteType   WasteType     `json:"wasteType"`
	ImageURL    string        `json:"imageUrl,omitempty"`
	Status      ListingStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Request is a collector's or corporation's interest in one listing.
// PickupLocation and ContactNumber are set iff Status is accepted or later.
type Request struct {
	ID             string        `json:"id"`
	ListingID      string        `json:"listingId"`
	RequesterID    string        `json:"requesterId"`
	Type           RequestType   `json:"type"`
	Status         RequestStatus `json:"status"`
	PickupLocation string        `json:"pickupLocation,omitempty"`
	ContactNumber  string        `json:"contactNumber,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	AcceptedAt     *time.Time    `json:"acceptedAt,omitempty"`
	PickedUpAt     *time.Time    `json:"pickedUpAt,omitempty"`
	PaidAt         *time.Time    `json:"paidAt,omitempty"`
}

// RequestWithListing is a request joined with the listing it references.
type RequestWithListing struct {
	Request
	Listing *Listing `json:"listing,omitempty"`
}

// ListingInput carries the fields submitted when creating a listing.
// Price is kept as text so that parsing failures surface as validation errors.
type ListingInput struct {
	Title       string
	Description string
	Price       string
	WasteType   string
	ImageURL    string
}

// ListingPatch overwrites the non-nil fields of a listing.
type ListingPatch struct {
	Title       *string
	Description *string
	Price       *string
	WasteType   *string
	ImageURL    *string
}

// Empty reports whether the patch would change nothing.
func (p ListingPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Price == nil && p.WasteType == nil && p.ImageURL == nil
}

// ListingFilter narrows a listing query. Zero fields do not filter.
type ListingFilter struct {
	OwnerID   string
	OwnerRole Role
	Status    ListingStatus
}

// RequestFilter narrows a request query. Zero fields do not filter.
type RequestFilter struct {
	ListingID   string
	RequesterID string
	Status      RequestStatus
}
