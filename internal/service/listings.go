package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"

	"github.com/punchamoorthee/trash2cash/internal/domain"
	"github.com/punchamoorthee/trash2cash/internal/media"
	"github.com/punchamoorthee/trash2cash/internal/store"
)

// ListingService manages listing fields and status and owns cascade delete.
type ListingService struct {
	base
	media media.Uploader
}

func NewListingService(st store.Store, up media.Uploader, opts ...Option) *ListingService {
	return &ListingService{base: newBase(st, opts), media: up}
}

// Create posts a new open listing owned by actor.
func (s *ListingService) Create(ctx context.Context, actor domain.Actor, in domain.ListingInput) (*domain.Listing, error) {
	if !actor.Role.CanOwnListings() {
		return nil, fmt.Errorf("%w: role %q cannot post listings", domain.ErrUnauthorized, actor.Role)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", domain.ErrValidation)
	}
	price, err := domain.ParsePrice(in.Price)
	if err != nil {
		return nil, err
	}
	wasteType, err := domain.ParseWasteType(in.WasteType)
	if err != nil {
		return nil, err
	}
	imageURL, err := s.resolveImage(ctx, in.ImageURL)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	l := &domain.Listing{
		ID:          s.newID(),
		OwnerID:     actor.ID,
		OwnerRole:   actor.Role,
		Title:       title,
		Description: description,
		Price:       price,
		WasteType:   wasteType,
		ImageURL:    imageURL,
		Status:      domain.ListingOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertListing(ctx, l); err != nil {
		return nil, storeErr(err, "listing", l.ID)
	}
	listingStatusChanges.WithLabelValues(string(domain.ListingOpen)).Inc()
	return l, nil
}

// Get fetches one listing.
func (s *ListingService) Get(ctx context.Context, id string) (*domain.Listing, error) {
	l, err := s.store.GetListing(ctx, id)
	if err != nil {
		return nil, storeErr(err, "listing", id)
	}
	return l, nil
}

// List returns listings matching f, newest first. A zero filter lists everything.
func (s *ListingService) List(ctx context.Context, f domain.ListingFilter) ([]domain.Listing, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown listing status %q", domain.ErrValidation, f.Status)
	}
	if f.OwnerRole != "" && !f.OwnerRole.CanOwnListings() {
		return nil, fmt.Errorf("%w: role %q does not own listings", domain.ErrValidation, f.OwnerRole)
	}
	listings, err := s.store.FindListings(ctx, f)
	if err != nil {
		return nil, storeErr(err, "listings", "")
	}
	return listings, nil
}

// Discover lists the open listings actor may request: those in the actor's
// audience that the actor neither owns nor has already requested.
func (s *ListingService) Discover(ctx context.Context, actor domain.Actor) ([]domain.Listing, error) {
	audience, ok := actor.Role.Audience()
	if !ok {
		return nil, fmt.Errorf("%w: role %q does not request listings", domain.ErrUnauthorized, actor.Role)
	}
	open, err := s.store.FindListings(ctx, domain.ListingFilter{Status: domain.ListingOpen, OwnerRole: audience})
	if err != nil {
		return nil, storeErr(err, "listings", "")
	}
	mine, err := s.store.FindRequests(ctx, domain.RequestFilter{RequesterID: actor.ID})
	if err != nil {
		return nil, storeErr(err, "requests", "")
	}
	requested := make(map[string]bool, len(mine))
	for _, r := range mine {
		requested[r.ListingID] = true
	}
	visible := make([]domain.Listing, 0, len(open))
	for _, l := range open {
		if l.OwnerID == actor.ID || requested[l.ID] {
			continue
		}
		visible = append(visible, l)
	}
	return visible, nil
}

// Update overwrites the fields set in patch. Status and id are never touched.
func (s *ListingService) Update(ctx context.Context, actor domain.Actor, id string, patch domain.ListingPatch) (*domain.Listing, error) {
	var (
		title, description *string
		price              *float64
		wasteType          *domain.WasteType
		imageURL           *string
	)
	if patch.Title != nil {
		v := strings.TrimSpace(*patch.Title)
		if v == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", domain.ErrValidation)
		}
		title = &v
	}
	if patch.Description != nil {
		v := strings.TrimSpace(*patch.Description)
		if v == "" {
			return nil, fmt.Errorf("%w: description cannot be empty", domain.ErrValidation)
		}
		description = &v
	}
	if patch.Price != nil {
		v, err := domain.ParsePrice(*patch.Price)
		if err != nil {
			return nil, err
		}
		price = &v
	}
	if patch.WasteType != nil {
		v, err := domain.ParseWasteType(*patch.WasteType)
		if err != nil {
			return nil, err
		}
		wasteType = &v
	}
	if patch.ImageURL != nil {
		// Check ownership before paying for an upload.
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := requireOwner(actor, current); err != nil {
			return nil, err
		}
		v, err := s.resolveImage(ctx, *patch.ImageURL)
		if err != nil {
			return nil, err
		}
		imageURL = &v
	}

	var updated *domain.Listing
	err := s.store.Tx(ctx, func(q store.Queries) error {
		l, err := q.LockListing(ctx, id)
		if err != nil {
			return storeErr(err, "listing", id)
		}
		if err := requireOwner(actor, l); err != nil {
			return err
		}
		if patch.Empty() {
			updated = l
			return nil
		}
		if title != nil {
			l.Title = *title
		}
		if description != nil {
			l.Description = *description
		}
		if price != nil {
			l.Price = *price
		}
		if wasteType != nil {
			l.WasteType = *wasteType
		}
		if imageURL != nil {
			l.ImageURL = *imageURL
		}
		l.UpdatedAt = s.clock()
		if err := q.UpdateListing(ctx, l); err != nil {
			return storeErr(err, "listing", id)
		}
		updated = l
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "listing", id)
	}
	return updated, nil
}

// UpdateStatus lets the owner overwrite the listing status directly. Reopening is
// refused while an accepted request is still attached to the listing.
func (s *ListingService) UpdateStatus(ctx context.Context, actor domain.Actor, id string, status domain.ListingStatus) (*domain.Listing, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown listing status %q", domain.ErrValidation, status)
	}
	var (
		updated *domain.Listing
		changed bool
	)
	err := s.store.Tx(ctx, func(q store.Queries) error {
		l, err := q.LockListing(ctx, id)
		if err != nil {
			return storeErr(err, "listing", id)
		}
		if err := requireOwner(actor, l); err != nil {
			return err
		}
		if status == domain.ListingOpen && l.Status != domain.ListingOpen {
			reqs, err := q.FindRequests(ctx, domain.RequestFilter{ListingID: id})
			if err != nil {
				return storeErr(err, "requests", id)
			}
			for _, r := range reqs {
				if r.Status.IsAcceptedOrLater() {
					return fmt.Errorf("%w: listing %s has request %s at %s", domain.ErrInvalidState, id, r.ID, r.Status)
				}
			}
		}
		changed = l.Status != status
		if err := s.setStatus(ctx, q, l, status); err != nil {
			return err
		}
		updated = l
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "listing", id)
	}
	if changed {
		listingStatusChanges.WithLabelValues(string(status)).Inc()
	}
	return updated, nil
}

// setStatus writes status through q. It is the single place listing status changes.
func (b base) setStatus(ctx context.Context, q store.Queries, l *domain.Listing, status domain.ListingStatus) error {
	if l.Status == status {
		return nil
	}
	l.Status = status
	l.UpdatedAt = b.clock()
	if err := q.UpdateListing(ctx, l); err != nil {
		return storeErr(err, "listing", l.ID)
	}
	return nil
}

// Delete removes the listing and every request referencing it in one
// transaction and returns how many requests went with it.
func (s *ListingService) Delete(ctx context.Context, actor domain.Actor, id string) (int64, error) {
	var removed int64
	err := s.store.Tx(ctx, func(q store.Queries) error {
		l, err := q.LockListing(ctx, id)
		if err != nil {
			return storeErr(err, "listing", id)
		}
		if err := requireOwner(actor, l); err != nil {
			return err
		}
		n, err := q.DeleteRequestsForListing(ctx, id)
		if err != nil {
			return storeErr(err, "requests of listing", id)
		}
		if err := q.DeleteListing(ctx, id); err != nil {
			return storeErr(err, "listing", id)
		}
		removed = n
		return nil
	})
	if err != nil {
		return 0, storeErr(err, "listing", id)
	}
	cascadeDeletedRequests.Add(float64(removed))
	log.Printf("listing %s deleted by %s together with %d requests", id, actor.ID, removed)
	return removed, nil
}

// resolveImage returns the URL to store for raw. Inline data: URIs are uploaded
// so that listings never carry image bytes. Links must be http(s) or point at
// the media backend.
func (s *ListingService) resolveImage(ctx context.Context, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if !media.IsDataURI(raw) {
		if !s.linkAllowed(raw) {
			return "", fmt.Errorf("%w: image reference must be an http(s) URL", domain.ErrValidation)
		}
		return raw, nil
	}
	if s.media == nil {
		return "", fmt.Errorf("%w: no media service configured for inline images", domain.ErrUpstream)
	}
	// base64 inflates by 4/3; refuse before decoding.
	if limit := s.maxImageBytes; limit > 0 && int64(len(raw)) > limit/3*4+1024 {
		return "", fmt.Errorf("%w: inline image exceeds %d bytes", domain.ErrValidation, limit)
	}
	contentType, data, err := media.DecodeDataURI(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if limit := s.maxImageBytes; limit > 0 && int64(len(data)) > limit {
		return "", fmt.Errorf("%w: inline image exceeds %d bytes", domain.ErrValidation, limit)
	}
	return UploadImage(ctx, s.media, "", contentType, bytes.NewReader(data))
}

func (s *ListingService) linkAllowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return true
	}
	if loc, ok := s.media.(media.Locator); ok {
		if base := strings.TrimRight(loc.PublicBase(), "/"); base != "" {
			return strings.HasPrefix(raw, base+"/")
		}
	}
	return false
}

// UploadImage stores an image through up and classifies failures into domain kinds.
func UploadImage(ctx context.Context, up media.Uploader, name, contentType string, r io.Reader) (string, error) {
	u, err := up.Upload(ctx, name, contentType, r)
	switch {
	case err == nil:
		return u, nil
	case errors.Is(err, media.ErrUnsupportedType):
		return "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
	default:
		log.Printf("media upload failed: %v", err)
		return "", fmt.Errorf("%w: image upload failed: %v", domain.ErrUpstream, err)
	}
}
