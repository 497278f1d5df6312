package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/punchamoorthee/trash2cash/internal/domain"
	"github.com/punchamoorthee/trash2cash/internal/store"
)

// RequestService drives requests from pending to payment_received and keeps the
// referenced listing's status in step inside the same transaction.
type RequestService struct {
	base
}

func NewRequestService(st store.Store, opts ...Option) *RequestService {
	return &RequestService{base: newBase(st, opts)}
}

// Create raises a pending request by actor on listingID. An empty typ is
// derived from the actor's role.
func (s *RequestService) Create(ctx context.Context, actor domain.Actor, listingID string, typ domain.RequestType) (*domain.Request, error) {
	own, ok := actor.Role.RequestType()
	if !ok {
		return nil, fmt.Errorf("%w: role %q cannot raise requests", domain.ErrUnauthorized, actor.Role)
	}
	if typ == "" {
		typ = own
	}
	if typ != own {
		return nil, fmt.Errorf("%w: request type %q does not match role %q", domain.ErrValidation, typ, actor.Role)
	}
	audience, _ := actor.Role.Audience()

	var created *domain.Request
	err := s.store.Tx(ctx, func(q store.Queries) error {
		l, err := q.LockListing(ctx, listingID)
		if err != nil {
			return storeErr(err, "listing", listingID)
		}
		if l.OwnerID == actor.ID {
			return fmt.Errorf("%w: cannot request your own listing %s", domain.ErrConflict, l.ID)
		}
		if l.OwnerRole != audience {
			return fmt.Errorf("%w: %s listings are not offered to %s accounts", domain.ErrUnauthorized, l.OwnerRole, actor.Role)
		}
		if l.Status != domain.ListingOpen {
			return fmt.Errorf("%w: listing %s is %s", domain.ErrConflict, l.ID, l.Status)
		}
		r := &domain.Request{
			ID:          s.newID(),
			ListingID:   l.ID,
			RequesterID: actor.ID,
			Type:        typ,
			Status:      domain.RequestPending,
			CreatedAt:   s.clock(),
		}
		if err := q.InsertRequest(ctx, r); err != nil {
			return storeErr(err, "request on listing", l.ID)
		}
		created = r
		return nil
	})
	if err != nil {
		return nil, storeErr(err, "listing", listingID)
	}
	return created, nil
}

// Accept is performed by the listing owner. The request takes the pickup details
// and the listing is marked sold in the same transaction.
func (s *RequestService) Accept(ctx context.Context, actor domain.Actor, requestID, pickupLocation, contactNumber string) (*domain.Request, error) {
	location := strings.TrimSpace(pickupLocation)
	if location == "" {
		return nil, fmt.Errorf("%w: pickup location is required", domain.ErrValidation)
	}
	phone, err := domain.NormalizeContactNumber(contactNumber)
	if err != nil {
		return nil, err
	}

	r, err := s.lifecycle(ctx, "accept", requestID, func(q store.Queries, l *domain.Listing, r *domain.Request) error {
		if err := requireOwner(actor, l); err != nil {
			return err
		}
		now := s.clock()
		if err := advance(r, domain.RequestPending, now); err != nil {
			return err
		}
		if l.Status != domain.ListingOpen {
			return fmt.Errorf("%w: listing %s is already %s", domain.ErrConflict, l.ID, l.Status)
		}
		r.PickupLocation = location
		r.ContactNumber = phone
		if err := q.UpdateRequest(ctx, r); err != nil {
			return storeErr(err, "request", r.ID)
		}
		return s.setStatus(ctx, q, l, domain.ListingSold)
	})
	if err != nil {
		return nil, err
	}
	transitioned(domain.RequestPending, domain.RequestAccepted)
	listingStatusChanges.WithLabelValues(string(domain.ListingSold)).Inc()
	return r, nil
}

// MarkPickedUp is performed by the requester once the waste has been collected.
func (s *RequestService) MarkPickedUp(ctx context.Context, actor domain.Actor, requestID string) (*domain.Request, error) {
	r, err := s.lifecycle(ctx, "pickup", requestID, func(q store.Queries, _ *domain.Listing, r *domain.Request) error {
		if err := requireRequester(actor, r); err != nil {
			return err
		}
		if err := advance(r, domain.RequestAccepted, s.clock()); err != nil {
			return err
		}
		if err := q.UpdateRequest(ctx, r); err != nil {
			return storeErr(err, "request", r.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	transitioned(domain.RequestAccepted, domain.RequestPickedUp)
	return r, nil
}

// MarkPaymentReceived is performed by the listing owner and closes the listing.
func (s *RequestService) MarkPaymentReceived(ctx context.Context, actor domain.Actor, requestID string) (*domain.Request, error) {
	r, err := s.lifecycle(ctx, "payment", requestID, func(q store.Queries, l *domain.Listing, r *domain.Request) error {
		if err := requireOwner(actor, l); err != nil {
			return err
		}
		if err := advance(r, domain.RequestPickedUp, s.clock()); err != nil {
			return err
		}
		if err := q.UpdateRequest(ctx, r); err != nil {
			return storeErr(err, "request", r.ID)
		}
		return s.setStatus(ctx, q, l, domain.ListingClosed)
	})
	if err != nil {
		return nil, err
	}
	transitioned(domain.RequestPickedUp, domain.RequestPaymentReceived)
	listingStatusChanges.WithLabelValues(string(domain.ListingClosed)).Inc()
	return r, nil
}

// Withdraw deletes a pending request on behalf of its requester.
func (s *RequestService) Withdraw(ctx context.Context, actor domain.Actor, requestID string) error {
	_, err := s.lifecycle(ctx, "withdraw", requestID, func(q store.Queries, _ *domain.Listing, r *domain.Request) error {
		if err := requireRequester(actor, r); err != nil {
			return err
		}
		if r.Status != domain.RequestPending {
			return fmt.Errorf("%w: request %s is %s and can no longer be withdrawn", domain.ErrInvalidState, r.ID, r.Status)
		}
		if err := q.DeleteRequest(ctx, r.ID); err != nil {
			return storeErr(err, "request", r.ID)
		}
		return nil
	})
	return err
}

// lifecycle runs fn in a transaction holding the listing lock and then the
// request lock. The listing is always locked first, the same order Delete uses.
func (s *RequestService) lifecycle(ctx context.Context, op, requestID string, fn func(q store.Queries, l *domain.Listing, r *domain.Request) error) (*domain.Request, error) {
	current, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, storeErr(err, "request", requestID)
	}
	var out *domain.Request
	err = s.store.Tx(ctx, func(q store.Queries) error {
		l, err := q.LockListing(ctx, current.ListingID)
		if err != nil {
			return storeErr(err, "request", requestID)
		}
		r, err := q.LockRequest(ctx, requestID)
		if err != nil {
			return storeErr(err, "request", requestID)
		}
		if err := fn(q, l, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		err = storeErr(err, "request", requestID)
		if isConflict(err) {
			lifecycleConflicts.WithLabelValues(op).Inc()
		}
		return nil, err
	}
	return out, nil
}

// advance moves r from status from to its successor and stamps the transition.
func advance(r *domain.Request, from domain.RequestStatus, now time.Time) error {
	if r.Status != from {
		return fmt.Errorf("%w: request %s is %s, expected %s", domain.ErrInvalidState, r.ID, r.Status, from)
	}
	next, ok := from.Next()
	if !ok {
		return fmt.Errorf("%w: request %s is already %s", domain.ErrInvalidState, r.ID, r.Status)
	}
	r.Status = next
	switch next {
	case domain.RequestAccepted:
		r.AcceptedAt = &now
	case domain.RequestPickedUp:
		r.PickedUpAt = &now
	case domain.RequestPaymentReceived:
		r.PaidAt = &now
	}
	return nil
}

func transitioned(from, to domain.RequestStatus) {
	requestTransitions.WithLabelValues(string(from), string(to)).Inc()
}

// Get returns a request with its listing. Only the requester and the listing
// owner may read it.
func (s *RequestService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.RequestWithListing, error) {
	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, storeErr(err, "request", id)
	}
	l, err := s.store.GetListing(ctx, r.ListingID)
	if err != nil {
		return nil, storeErr(err, "listing", r.ListingID)
	}
	if r.RequesterID != actor.ID && l.OwnerID != actor.ID {
		return nil, fmt.Errorf("%w: request %s is not visible to this account", domain.ErrUnauthorized, id)
	}
	return &domain.RequestWithListing{Request: *r, Listing: l}, nil
}

// ForActor returns the requests raised by actor, newest first, each joined with
// its listing through one batch fetch.
func (s *RequestService) ForActor(ctx context.Context, actor domain.Actor) ([]domain.RequestWithListing, error) {
	reqs, err := s.store.FindRequests(ctx, domain.RequestFilter{RequesterID: actor.ID})
	if err != nil {
		return nil, storeErr(err, "requests", "")
	}
	return s.enrich(ctx, reqs)
}

// ForListing returns every request on a listing. Only the owner may see them.
func (s *RequestService) ForListing(ctx context.Context, actor domain.Actor, listingID string) ([]domain.Request, error) {
	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, storeErr(err, "listing", listingID)
	}
	if err := requireOwner(actor, l); err != nil {
		return nil, err
	}
	reqs, err := s.store.FindRequests(ctx, domain.RequestFilter{ListingID: listingID})
	if err != nil {
		return nil, storeErr(err, "requests", listingID)
	}
	return reqs, nil
}

func (s *RequestService) enrich(ctx context.Context, reqs []domain.Request) ([]domain.RequestWithListing, error) {
	out := make([]domain.RequestWithListing, 0, len(reqs))
	if len(reqs) == 0 {
		return out, nil
	}
	seen := make(map[string]bool, len(reqs))
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		if !seen[r.ListingID] {
			seen[r.ListingID] = true
			ids = append(ids, r.ListingID)
		}
	}
	listings, err := s.store.GetListingsByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr(err, "listings", "")
	}
	for _, r := range reqs {
		item := domain.RequestWithListing{Request: r}
		if l, ok := listings[r.ListingID]; ok {
			item.Listing = &l
		}
		out = append(out, item)
	}
	return out, nil
}
